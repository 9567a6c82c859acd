package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/azuric/pairs/pkg/errors"
)

type Side string

type LegRole string

type PriceBasis string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	LegRoleNumerator   LegRole = "NUMERATOR"
	LegRoleDenominator LegRole = "DENOMINATOR"
)

const (
	// PriceBasisMid prices legs off the quote midpoint.
	PriceBasisMid PriceBasis = "MID"
	// PriceBasisTouch prices legs off the best bid or ask selected by side.
	PriceBasisTouch PriceBasis = "TOUCH"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}

	return SideBuy
}

// Opposite returns the other leg role.
func (r LegRole) Opposite() LegRole {
	if r == LegRoleNumerator {
		return LegRoleDenominator
	}

	return LegRoleNumerator
}

// SpreadOrder is an order on a synthetic ratio instrument. It is never routed
// anywhere itself; it is replicated by trading the two constituent legs.
type SpreadOrder struct {
	ID     int64  `yaml:"id" json:"id"`
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
	Side   Side   `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	// Quantity is the synthetic quantity to execute across all clips.
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	// SpreadPrice is the reference ratio price the legs are priced from.
	SpreadPrice float64   `yaml:"spread_price" json:"spread_price" validate:"required,gt=0"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
}

// Validate validates the SpreadOrder struct.
func (o *SpreadOrder) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid spread order", err)
	}

	return nil
}

// LegOrder is a real order on one constituent instrument.
type LegOrder struct {
	ID           int64     `yaml:"id" json:"id"`
	InstrumentID int       `yaml:"instrument_id" json:"instrument_id"`
	Symbol       string    `yaml:"symbol" json:"symbol"`
	Side         Side      `yaml:"side" json:"side"`
	Quantity     float64   `yaml:"quantity" json:"quantity"`
	Price        float64   `yaml:"price" json:"price"`
	Role         LegRole   `yaml:"role" json:"role"`
	TraceTag     string    `yaml:"trace_tag" json:"trace_tag"`
	SubmittedAt  time.Time `yaml:"submitted_at" json:"submitted_at"`
}

// Default spread execution parameters.
const (
	DefaultClipSize         = 100.0
	DefaultMaxExecutionTime = 5 * time.Minute
)

// ExecutionParams configures how one spread order is worked.
type ExecutionParams struct {
	// LiquidLeg is the leg executed first in every clip.
	LiquidLeg LegRole `yaml:"liquid_leg" json:"liquid_leg" jsonschema:"description=Leg executed first in each clip,enum=NUMERATOR,enum=DENOMINATOR" validate:"required,oneof=NUMERATOR DENOMINATOR"`
	// ClipSize bounds the quantity worked per clip.
	ClipSize float64 `yaml:"clip_size" json:"clip_size" jsonschema:"description=Maximum quantity per clip,default=100" validate:"required,gt=0"`
	// MaxExecutionTime is a declared budget for the whole execution. It is
	// validated and carried but not enforced anywhere yet.
	MaxExecutionTime time.Duration `yaml:"max_execution_time" json:"max_execution_time" jsonschema:"description=Execution time budget in nanoseconds" validate:"required,gt=0"`
	// PriceBasis selects mid or touch pricing for leg orders.
	PriceBasis PriceBasis `yaml:"price_basis" json:"price_basis" jsonschema:"description=Leg pricing basis,enum=MID,enum=TOUCH" validate:"required,oneof=MID TOUCH"`
	// LoggingEnabled gates per-spread execution logging.
	LoggingEnabled bool `yaml:"logging_enabled" json:"logging_enabled" jsonschema:"description=Enable per-spread logging,default=true"`
}

// DefaultExecutionParams returns the default spread execution parameters.
func DefaultExecutionParams() ExecutionParams {
	return ExecutionParams{
		LiquidLeg:        LegRoleNumerator,
		ClipSize:         DefaultClipSize,
		MaxExecutionTime: DefaultMaxExecutionTime,
		PriceBasis:       PriceBasisTouch,
		LoggingEnabled:   true,
	}
}

// Validate validates the ExecutionParams struct.
func (p *ExecutionParams) Validate() error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidExecutionParams, "invalid execution parameters", err)
	}

	return nil
}
