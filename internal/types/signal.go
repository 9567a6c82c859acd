package types

import "time"

// SignalKind classifies a strategy signal.
type SignalKind string

const (
	SignalKindBuy  SignalKind = "BUY"
	SignalKindSell SignalKind = "SELL"
)

// Signal is a strategy-layer trading signal on a synthetic instrument.
type Signal struct {
	InstrumentID int        `yaml:"instrument_id" json:"instrument_id"`
	Symbol       string     `yaml:"symbol" json:"symbol"`
	Kind         SignalKind `yaml:"kind" json:"kind"`
	Price        float64    `yaml:"price" json:"price"`
	Time         time.Time  `yaml:"time" json:"time"`
}
