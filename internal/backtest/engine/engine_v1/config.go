package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v2"

	"github.com/rxtech-lab/argo-backtest/internal/schedule"
	"github.com/rxtech-lab/argo-backtest/internal/universe"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const (
	// defaultRiskFreeRate is the annual risk-free rate in percent used when
	// the configuration does not set one.
	defaultRiskFreeRate = 0.0
	// defaultRebalanceDrift skips a rebalance when target weights moved less
	// than this fraction and the symbol set is unchanged.
	defaultRebalanceDrift = 0.01
	// Price fallback windows: up to defaultPriceLookbackDays back is quiet,
	// beyond that and up to defaultPriceLookbackMaxDays is tolerated with a
	// recorded gap, beyond that the symbol has no usable price.
	defaultPriceLookbackDays    = 30
	defaultPriceLookbackMaxDays = 90
)

// BacktestConfig is the complete strategy configuration parsed from YAML.
type BacktestConfig struct {
	StartDate time.Time `json:"start_date" jsonschema:"required" jsonschema_description:"Backtest start date (YYYY-MM-DD)"`
	EndDate   time.Time `json:"end_date" jsonschema:"required" jsonschema_description:"Backtest end date (YYYY-MM-DD)"`

	InitialCapital     float64            `json:"initial_capital" validate:"required,gt=0" jsonschema:"required" jsonschema_description:"Starting cash"`
	RebalanceFrequency schedule.Frequency `json:"rebalance_frequency" validate:"required,oneof=quarterly yearly" jsonschema:"required,enum=quarterly,enum=yearly"`

	Filter  universe.FilterConfig  `json:"filter" jsonschema_description:"Eligibility thresholds applied before ranking"`
	Ranking universe.RankingConfig `json:"ranking" jsonschema:"required"`
	Sizing  universe.SizingConfig  `json:"sizing" jsonschema:"required"`

	// RiskFreeRate is annual, in percent.
	RiskFreeRate float64 `json:"risk_free_rate" validate:"gte=0"`
	// RebalanceDrift is the minimum fractional weight change that triggers
	// trading on a scheduled date.
	RebalanceDrift float64 `json:"rebalance_drift" validate:"gte=0,lt=1"`

	PriceLookbackDays    int `json:"price_lookback_days" validate:"gt=0"`
	PriceLookbackMaxDays int `json:"price_lookback_max_days" validate:"gt=0"`

	// Benchmark is an optional symbol whose buy-and-hold return the report
	// compares against.
	Benchmark optional.Option[string] `json:"benchmark,omitempty"`
}

// rawBacktestConfig is the YAML shape of BacktestConfig. Dates arrive as
// strings and optional scalars as pointers because yaml.v2 handles neither
// time.Time in DateOnly form nor Option values.
type rawBacktestConfig struct {
	StartDate          string                 `yaml:"start_date"`
	EndDate            string                 `yaml:"end_date"`
	InitialCapital     float64                `yaml:"initial_capital"`
	RebalanceFrequency string                 `yaml:"rebalance_frequency"`
	Filter             universe.FilterConfig  `yaml:"filter"`
	Ranking            universe.RankingConfig `yaml:"ranking"`
	Sizing             universe.SizingConfig  `yaml:"sizing"`
	RiskFreeRate       *float64               `yaml:"risk_free_rate"`
	RebalanceDrift     *float64               `yaml:"rebalance_drift"`
	PriceLookbackDays  *int                   `yaml:"price_lookback_days"`
	PriceLookbackMax   *int                   `yaml:"price_lookback_max_days"`
	Benchmark          *string                `yaml:"benchmark"`
}

// NewBacktestConfigFromYaml parses, defaults and validates a configuration.
func NewBacktestConfigFromYaml(content string) (BacktestConfig, error) {
	var raw rawBacktestConfig
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return BacktestConfig{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse configuration yaml", err)
	}

	config := BacktestConfig{
		InitialCapital:       raw.InitialCapital,
		RebalanceFrequency:   schedule.Frequency(raw.RebalanceFrequency),
		Filter:               raw.Filter,
		Ranking:              raw.Ranking,
		Sizing:               raw.Sizing,
		RiskFreeRate:         defaultRiskFreeRate,
		RebalanceDrift:       defaultRebalanceDrift,
		PriceLookbackDays:    defaultPriceLookbackDays,
		PriceLookbackMaxDays: defaultPriceLookbackMaxDays,
		Benchmark:            optional.FromNillable(raw.Benchmark),
	}

	var err error
	if config.StartDate, err = parseDate(raw.StartDate, "start_date"); err != nil {
		return BacktestConfig{}, err
	}
	if config.EndDate, err = parseDate(raw.EndDate, "end_date"); err != nil {
		return BacktestConfig{}, err
	}

	if raw.RiskFreeRate != nil {
		config.RiskFreeRate = *raw.RiskFreeRate
	}
	if raw.RebalanceDrift != nil {
		config.RebalanceDrift = *raw.RebalanceDrift
	}
	if raw.PriceLookbackDays != nil {
		config.PriceLookbackDays = *raw.PriceLookbackDays
	}
	if raw.PriceLookbackMax != nil {
		config.PriceLookbackMaxDays = *raw.PriceLookbackMax
	}

	if err := config.Validate(); err != nil {
		return BacktestConfig{}, err
	}

	return config, nil
}

func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Newf(errors.ErrCodeMissingParameter, "%s is required", field)
	}

	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "%s must be YYYY-MM-DD", field)
	}

	return t, nil
}

// Validate checks structural and cross-field constraints.
func (c BacktestConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "configuration failed validation", err)
	}

	if !c.StartDate.Before(c.EndDate) {
		return errors.Newf(errors.ErrCodeInvalidDateRange, "start_date %s must precede end_date %s",
			c.StartDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly))
	}
	if _, err := c.RebalanceFrequency.Months(); err != nil {
		return err
	}
	if err := c.Ranking.Validate(); err != nil {
		return err
	}
	if err := c.Sizing.Validate(); err != nil {
		return err
	}
	if c.PriceLookbackMaxDays < c.PriceLookbackDays {
		return errors.New(errors.ErrCodeInvalidConfiguration, "price_lookback_max_days must be >= price_lookback_days")
	}

	return nil
}

// GetConfigSchema reflects the configuration into a JSON schema for editor
// tooling.
func GetConfigSchema() (string, error) {
	reflector := jsonschema.Reflector{
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(optional.Option[float64]{}):
				return &jsonschema.Schema{Type: "number"}
			case reflect.TypeOf(optional.Option[string]{}):
				return &jsonschema.Schema{Type: "string"}
			case reflect.TypeOf(time.Time{}):
				return &jsonschema.Schema{Type: "string", Format: "date"}
			}
			return nil
		},
	}

	schema := reflector.Reflect(&BacktestConfig{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(data), nil
}
