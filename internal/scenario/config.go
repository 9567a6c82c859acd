// Package scenario wires a synthesizer, an execution manager and a simulated
// order router together from a yaml description, for demos and end-to-end
// tests.
package scenario

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/azuric/pairs/internal/strategy"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// TickKind is the type of one replayed market event.
type TickKind string

const (
	TickKindTrade TickKind = "TRADE"
	TickKindBid   TickKind = "BID"
	TickKindAsk   TickKind = "ASK"
)

// InstrumentConfig declares one regular instrument.
type InstrumentConfig struct {
	Symbol   string  `yaml:"symbol" json:"symbol" jsonschema:"description=Instrument symbol" validate:"required"`
	TickSize float64 `yaml:"tick_size" json:"tick_size" jsonschema:"description=Price tick size,default=0.01"`
}

// SyntheticConfig declares one synthetic ratio instrument.
type SyntheticConfig struct {
	Symbol      string `yaml:"symbol" json:"symbol" jsonschema:"description=Synthetic symbol" validate:"required"`
	Numerator   string `yaml:"numerator" json:"numerator" jsonschema:"description=Numerator constituent symbol" validate:"required"`
	Denominator string `yaml:"denominator" json:"denominator" jsonschema:"description=Denominator constituent symbol" validate:"required"`
}

// TickConfig is one replayed market event. At is the offset in seconds from
// the scenario start.
type TickConfig struct {
	Kind   TickKind `yaml:"kind" json:"kind" jsonschema:"enum=TRADE,enum=BID,enum=ASK" validate:"required,oneof=TRADE BID ASK"`
	Symbol string   `yaml:"symbol" json:"symbol" validate:"required"`
	Price  float64  `yaml:"price" json:"price" validate:"required"`
	Size   float64  `yaml:"size" json:"size" validate:"required,gt=0"`
	At     float64  `yaml:"at" json:"at" jsonschema:"description=Seconds from scenario start"`
}

// OrderConfig is one spread order submitted during replay, after the tick
// with the given index was processed.
type OrderConfig struct {
	Symbol      string                `yaml:"symbol" json:"symbol" validate:"required"`
	Side        types.Side            `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Quantity    float64               `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	SpreadPrice float64               `yaml:"spread_price" json:"spread_price" validate:"required,gt=0"`
	AfterTick   int                   `yaml:"after_tick" json:"after_tick" validate:"gte=0"`
	Params      types.ExecutionParams `yaml:"params" json:"params"`
}

// Config is a full replay scenario.
type Config struct {
	Instruments []InstrumentConfig         `yaml:"instruments" json:"instruments" validate:"required,min=1,dive"`
	Synthetics  []SyntheticConfig          `yaml:"synthetics" json:"synthetics" validate:"dive"`
	Bar         types.BarSpec              `yaml:"bar" json:"bar"`
	Ticks       []TickConfig               `yaml:"ticks" json:"ticks" validate:"dive"`
	Orders      []OrderConfig              `yaml:"orders" json:"orders" validate:"dive"`
	Strategies  []strategy.ThresholdConfig `yaml:"strategies" json:"strategies" validate:"dive"`
	// FillSlices is the number of partial executions the simulated router
	// fills each leg order in.
	FillSlices int `yaml:"fill_slices" json:"fill_slices" jsonschema:"default=1"`
}

// Validate validates the scenario configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeScenarioConfig, "invalid scenario config", err)
	}

	return c.Bar.Validate()
}

// Load reads and validates a scenario from a yaml file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeScenarioParse, err, "failed to read scenario %s", path)
	}

	return Parse(raw)
}

// Parse parses and validates a yaml scenario.
func Parse(raw []byte) (Config, error) {
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeScenarioParse, "failed to parse scenario yaml", err)
	}

	if config.Bar.Kind == "" {
		config.Bar = types.BarSpec{Kind: types.BarKindTime, Seconds: 60}
	}

	if config.FillSlices <= 0 {
		config.FillSlices = 1
	}

	for i := range config.Orders {
		if config.Orders[i].Params.ClipSize == 0 {
			config.Orders[i].Params = types.DefaultExecutionParams()
		}
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Schema returns the JSON schema for the scenario configuration.
func Schema() (string, error) {
	reflector := new(jsonschema.Reflector)
	reflector.DoNotReference = true
	schema := reflector.Reflect(&Config{})

	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
