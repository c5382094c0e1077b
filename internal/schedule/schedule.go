package schedule

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Frequency controls how often the portfolio is rebalanced.
type Frequency string

const (
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Months returns the anchor spacing of the frequency in months.
func (f Frequency) Months() (int, error) {
	switch f {
	case FrequencyQuarterly:
		return 3, nil
	case FrequencyYearly:
		return 12, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidFrequency, "unknown rebalance frequency: %s", f)
	}
}

// Dates returns the scheduled rebalance dates between start and end,
// inclusive of both. Intermediate dates are anchored to the start date in
// fixed month increments, so a quarterly schedule starting Jan 15 lands on
// Apr 15, Jul 15 and Oct 15 regardless of month length. The end date is
// always included so the run closes with a final valuation point, even when
// it does not fall on an anchor.
func Dates(start, end time.Time, freq Frequency) ([]time.Time, error) {
	if !start.Before(end) {
		return nil, errors.Newf(errors.ErrCodeInvalidDateRange,
			"start date %s must precede end date %s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	months, err := freq.Months()
	if err != nil {
		return nil, err
	}

	dates := []time.Time{start}
	for i := 1; ; i++ {
		next := start.AddDate(0, months*i, 0)
		if !next.Before(end) {
			break
		}
		dates = append(dates, next)
	}
	dates = append(dates, end)

	return dates, nil
}
