// Package strategy holds simple signal strategies layered on top of the
// synthetic feed. Entry/exit decision logic is deliberately thin; the
// execution core only needs the signal contract.
package strategy

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// SignalCallback receives strategy signals.
type SignalCallback func(signal types.Signal)

// ThresholdConfig configures a Threshold strategy.
type ThresholdConfig struct {
	// Symbol is the synthetic symbol the strategy trades.
	Symbol string `yaml:"symbol" json:"symbol" jsonschema:"description=Synthetic symbol to trade" validate:"required"`
	// EntryRatio triggers a buy when the synthetic trades at or below it.
	EntryRatio float64 `yaml:"entry_ratio" json:"entry_ratio" jsonschema:"description=Buy when ratio trades at or below" validate:"required,gt=0"`
	// ExitRatio triggers a sell when the synthetic trades at or above it.
	ExitRatio float64 `yaml:"exit_ratio" json:"exit_ratio" jsonschema:"description=Sell when ratio trades at or above" validate:"required,gtfield=EntryRatio"`
}

// Validate validates the ThresholdConfig struct.
func (c *ThresholdConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid threshold config", err)
	}

	return nil
}

// Threshold emits a buy signal when the synthetic ratio trades at or below
// the entry threshold and a sell signal when it trades at or above the exit
// threshold while in position.
type Threshold struct {
	mu           sync.Mutex
	config       ThresholdConfig
	instrumentID int
	inPosition   bool
	onSignal     *SignalCallback
}

// NewThreshold creates a Threshold strategy watching the given synthetic
// instrument id.
func NewThreshold(config ThresholdConfig, instrumentID int, onSignal *SignalCallback) (*Threshold, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Threshold{
		config:       config,
		instrumentID: instrumentID,
		onSignal:     onSignal,
	}, nil
}

// OnTrade feeds one synthetic trade into the strategy. Trades on other
// instruments are ignored.
func (t *Threshold) OnTrade(tick types.TradeTick) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tick.InstrumentID != t.instrumentID {
		return
	}

	switch {
	case !t.inPosition && tick.Price <= t.config.EntryRatio:
		t.inPosition = true
		t.emit(types.SignalKindBuy, tick)
	case t.inPosition && tick.Price >= t.config.ExitRatio:
		t.inPosition = false
		t.emit(types.SignalKindSell, tick)
	}
}

// InPosition reports whether the strategy currently holds a position.
func (t *Threshold) InPosition() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.inPosition
}

func (t *Threshold) emit(kind types.SignalKind, tick types.TradeTick) {
	if t.onSignal == nil {
		return
	}

	(*t.onSignal)(types.Signal{
		InstrumentID: tick.InstrumentID,
		Symbol:       t.config.Symbol,
		Kind:         kind,
		Price:        tick.Price,
		Time:         tick.Time,
	})
}
