package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

type ScheduleTestSuite struct {
	suite.Suite
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleTestSuite))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (suite *ScheduleTestSuite) TestQuarterlyAnchors() {
	dates, err := Dates(date(2020, time.January, 15), date(2021, time.January, 15), FrequencyQuarterly)
	suite.Require().NoError(err)

	expected := []time.Time{
		date(2020, time.January, 15),
		date(2020, time.April, 15),
		date(2020, time.July, 15),
		date(2020, time.October, 15),
		date(2021, time.January, 15),
	}
	suite.Equal(expected, dates)
}

func (suite *ScheduleTestSuite) TestYearlyAnchors() {
	dates, err := Dates(date(2018, time.March, 1), date(2021, time.March, 1), FrequencyYearly)
	suite.Require().NoError(err)

	expected := []time.Time{
		date(2018, time.March, 1),
		date(2019, time.March, 1),
		date(2020, time.March, 1),
		date(2021, time.March, 1),
	}
	suite.Equal(expected, dates)
}

func (suite *ScheduleTestSuite) TestEndDateAlwaysIncluded() {
	// End does not fall on an anchor.
	dates, err := Dates(date(2020, time.January, 15), date(2020, time.June, 1), FrequencyQuarterly)
	suite.Require().NoError(err)

	expected := []time.Time{
		date(2020, time.January, 15),
		date(2020, time.April, 15),
		date(2020, time.June, 1),
	}
	suite.Equal(expected, dates)
}

func (suite *ScheduleTestSuite) TestAnchorOnMonthEnd() {
	// AddDate keeps fixed month increments even across short months.
	dates, err := Dates(date(2020, time.November, 30), date(2021, time.June, 30), FrequencyQuarterly)
	suite.Require().NoError(err)

	// Nov 30 + 3 months normalizes to Mar 2.
	suite.Equal(date(2021, time.March, 2), dates[1])
}

func (suite *ScheduleTestSuite) TestShortRangeHasOnlyStartAndEnd() {
	dates, err := Dates(date(2020, time.January, 1), date(2020, time.February, 1), FrequencyQuarterly)
	suite.Require().NoError(err)
	suite.Len(dates, 2)
}

func (suite *ScheduleTestSuite) TestInvalidRange() {
	_, err := Dates(date(2021, time.January, 1), date(2020, time.January, 1), FrequencyQuarterly)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDateRange))
}

func (suite *ScheduleTestSuite) TestUnknownFrequency() {
	_, err := Dates(date(2020, time.January, 1), date(2021, time.January, 1), Frequency("monthly"))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidFrequency))
}
