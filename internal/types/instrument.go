package types

// InstrumentKind distinguishes real, tradable instruments from synthetic
// ratio instruments that have no order book of their own.
type InstrumentKind string

const (
	InstrumentKindRegular   InstrumentKind = "REGULAR"
	InstrumentKindSynthetic InstrumentKind = "SYNTHETIC"
)

// Instrument is the reference-data record for a tradable or synthetic identity.
type Instrument struct {
	ID       int            `yaml:"id" json:"id"`
	Symbol   string         `yaml:"symbol" json:"symbol" validate:"required"`
	TickSize float64        `yaml:"tick_size" json:"tick_size"`
	Kind     InstrumentKind `yaml:"kind" json:"kind" validate:"required,oneof=REGULAR SYNTHETIC"`
}

// IsSynthetic reports whether the instrument is a synthetic ratio instrument.
func (i Instrument) IsSynthetic() bool {
	return i.Kind == InstrumentKindSynthetic
}
