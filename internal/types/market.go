package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/azuric/pairs/pkg/errors"
)

// TradeTick is a single trade print on an instrument.
type TradeTick struct {
	InstrumentID int       `yaml:"instrument_id" json:"instrument_id"`
	Price        float64   `yaml:"price" json:"price"`
	Size         float64   `yaml:"size" json:"size"`
	Time         time.Time `yaml:"time" json:"time"`
}

// QuoteTick is one side of the book (best bid or best ask) on an instrument.
type QuoteTick struct {
	InstrumentID int       `yaml:"instrument_id" json:"instrument_id"`
	Price        float64   `yaml:"price" json:"price"`
	Size         float64   `yaml:"size" json:"size"`
	Time         time.Time `yaml:"time" json:"time"`
}

// BarKind selects how a bar accumulator decides that a bar is complete.
type BarKind string

const (
	// BarKindTime closes a bar once the configured number of seconds elapsed.
	BarKindTime BarKind = "TIME"
	// BarKindVolume closes a bar once accumulated volume reaches the threshold.
	BarKindVolume BarKind = "VOLUME"
)

// BarSpec configures bar construction for one instrument.
type BarSpec struct {
	Kind BarKind `yaml:"kind" json:"kind" validate:"required,oneof=TIME VOLUME"`
	// Seconds is the bar length for time bars.
	Seconds int `yaml:"seconds" json:"seconds" validate:"required_if=Kind TIME,omitempty,gt=0"`
	// VolumeThreshold is the bar capacity for volume bars.
	VolumeThreshold float64 `yaml:"volume_threshold" json:"volume_threshold" validate:"required_if=Kind VOLUME,omitempty,gt=0"`
}

// Validate validates the BarSpec struct.
func (s BarSpec) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidBarSpec, "invalid bar spec", err)
	}

	return nil
}

// Bar is one completed price bar for an instrument.
//
// Direction is the signed sum of per-trade tick classifications (+1 up, -1
// down, 0 untyped). It can be fractional: when a trade is split across two
// volume bars its direction contribution is split by the same ratio as its
// volume.
type Bar struct {
	InstrumentID int       `yaml:"instrument_id" json:"instrument_id"`
	Open         float64   `yaml:"open" json:"open"`
	High         float64   `yaml:"high" json:"high"`
	Low          float64   `yaml:"low" json:"low"`
	Close        float64   `yaml:"close" json:"close"`
	Volume       float64   `yaml:"volume" json:"volume"`
	TickVolume   float64   `yaml:"tick_volume" json:"tick_volume"`
	Direction    float64   `yaml:"direction" json:"direction"`
	VWAP         float64   `yaml:"vwap" json:"vwap"`
	TickCount    int       `yaml:"tick_count" json:"tick_count"`
	StartTime    time.Time `yaml:"start_time" json:"start_time"`
	CloseTime    time.Time `yaml:"close_time" json:"close_time"`
}
