package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-backtest/internal/schedule"
	"github.com/rxtech-lab/argo-backtest/internal/universe"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const validConfigYaml = `
start_date: 2019-01-01
end_date: 2021-01-01
initial_capital: 100000
rebalance_frequency: quarterly
filter:
  min_market_cap: 1000000000
  min_roe: 10
ranking:
  metrics:
    - name: roe
      order: desc
  top_n: 10
sizing:
  scheme: equal
`

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestParseValidConfig() {
	config, err := NewBacktestConfigFromYaml(validConfigYaml)
	suite.Require().NoError(err)

	suite.Equal(time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), config.StartDate)
	suite.Equal(time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), config.EndDate)
	suite.Equal(100000.0, config.InitialCapital)
	suite.Equal(schedule.FrequencyQuarterly, config.RebalanceFrequency)
	suite.Equal(1e9, config.Filter.MinMarketCap.Unwrap())
	suite.Equal(10.0, config.Filter.MinROE.Unwrap())
	suite.True(config.Filter.MaxPERatio.IsNone())
	suite.Equal(10, config.Ranking.TopN)
	suite.Equal(universe.WeightingEqual, config.Sizing.Scheme)
}

func (suite *ConfigTestSuite) TestDefaultsApplied() {
	config, err := NewBacktestConfigFromYaml(validConfigYaml)
	suite.Require().NoError(err)

	suite.Equal(defaultRiskFreeRate, config.RiskFreeRate)
	suite.Equal(defaultRebalanceDrift, config.RebalanceDrift)
	suite.Equal(defaultPriceLookbackDays, config.PriceLookbackDays)
	suite.Equal(defaultPriceLookbackMaxDays, config.PriceLookbackMaxDays)
	suite.True(config.Benchmark.IsNone())
}

func (suite *ConfigTestSuite) TestOverridesApplied() {
	content := validConfigYaml + `
risk_free_rate: 4.5
rebalance_drift: 0.05
benchmark: NIFTY50
`
	config, err := NewBacktestConfigFromYaml(content)
	suite.Require().NoError(err)

	suite.Equal(4.5, config.RiskFreeRate)
	suite.Equal(0.05, config.RebalanceDrift)
	suite.Equal("NIFTY50", config.Benchmark.Unwrap())
}

func (suite *ConfigTestSuite) TestInvalidYamlRejected() {
	_, err := NewBacktestConfigFromYaml("start_date: [not a date")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestMissingDateRejected() {
	content := `
end_date: 2021-01-01
initial_capital: 100000
rebalance_frequency: quarterly
ranking:
  metrics:
    - name: roe
  top_n: 5
sizing:
  scheme: equal
`
	_, err := NewBacktestConfigFromYaml(content)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *ConfigTestSuite) TestReversedDatesRejected() {
	content := `
start_date: 2021-01-01
end_date: 2019-01-01
initial_capital: 100000
rebalance_frequency: quarterly
ranking:
  metrics:
    - name: roe
  top_n: 5
sizing:
  scheme: equal
`
	_, err := NewBacktestConfigFromYaml(content)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDateRange))
}

func (suite *ConfigTestSuite) TestUnknownRankingMetricRejected() {
	content := `
start_date: 2019-01-01
end_date: 2021-01-01
initial_capital: 100000
rebalance_frequency: quarterly
ranking:
  metrics:
    - name: sentiment
  top_n: 5
sizing:
  scheme: equal
`
	_, err := NewBacktestConfigFromYaml(content)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownMetric))
}

func (suite *ConfigTestSuite) TestConfigSchemaReflects() {
	schema, err := GetConfigSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "initial_capital")
	suite.Contains(schema, "rebalance_frequency")
}
