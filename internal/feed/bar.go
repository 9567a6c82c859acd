package feed

import (
	"time"

	"github.com/azuric/pairs/internal/types"
)

// barAccumulator builds price bars for one real instrument. A bar rolls when
// its time window elapses (time bars) or its volume capacity is reached
// (volume bars). A trade that overflows a volume bar is split by ratio; the
// overflow fraction is carried as pending state into the next bar.
type barAccumulator struct {
	instrumentID int
	spec         types.BarSpec

	started   bool
	startTime time.Time
	open      float64
	high      float64
	low       float64
	closePx   float64
	lastClose float64

	volume     float64
	tickVolume float64
	direction  float64
	vwapNum    float64
	tickCount  int

	pendingVolume     float64
	pendingTickVolume float64
	pendingDirection  float64
	pendingVWAPNum    float64
	pendingTicks      int
}

func newBarAccumulator(instrumentID int, spec types.BarSpec) *barAccumulator {
	return &barAccumulator{
		instrumentID: instrumentID,
		spec:         spec,
	}
}

// applyTrade folds one classified trade into the accumulator and returns any
// bar that became due. direction is +1, -1 or 0 (untyped).
func (a *barAccumulator) applyTrade(tick types.TradeTick, direction int) []types.Bar {
	var due []types.Bar

	if a.spec.Kind == types.BarKindTime && a.started &&
		tick.Time.Sub(a.startTime) >= time.Duration(a.spec.Seconds)*time.Second {
		due = append(due, a.roll(tick.Time))
	}

	if !a.started {
		a.begin(tick)
	}

	switch a.spec.Kind {
	case types.BarKindTime:
		a.add(tick, 1, direction)
	case types.BarKindVolume:
		remaining := a.spec.VolumeThreshold - a.volume
		if tick.Size > remaining {
			ratio := remaining / tick.Size
			a.add(tick, ratio, direction)

			carry := 1 - ratio
			a.pendingVolume = tick.Size * carry
			a.pendingTickVolume = carry
			a.pendingDirection = float64(direction) * carry
			a.pendingVWAPNum = tick.Price * tick.Size * carry
			// both the closing bar and the next bar count one tick for
			// the split trade
			a.pendingTicks = 1

			due = append(due, a.roll(tick.Time))
			due = append(due, a.drainPending(tick)...)
		} else {
			a.add(tick, 1, direction)
			if a.volume >= a.spec.VolumeThreshold {
				due = append(due, a.roll(tick.Time))
			}
		}
	}

	return due
}

// drainPending emits whole bars while the carried overflow alone reaches the
// volume threshold, so a trade larger than the remaining capacity plus one
// full bar never seeds a bar over capacity. Each over-capacity seed is split
// again by the kept ratio, with the remainder carried forward.
func (a *barAccumulator) drainPending(tick types.TradeTick) []types.Bar {
	var due []types.Bar

	for a.pendingVolume >= a.spec.VolumeThreshold {
		a.begin(tick)

		if a.volume > a.spec.VolumeThreshold {
			keep := a.spec.VolumeThreshold / a.volume
			carry := 1 - keep

			a.pendingVolume = a.volume * carry
			a.pendingTickVolume = a.tickVolume * carry
			a.pendingDirection = a.direction * carry
			a.pendingVWAPNum = a.vwapNum * carry
			a.pendingTicks = 1

			a.volume *= keep
			a.tickVolume *= keep
			a.direction *= keep
			a.vwapNum *= keep
		}

		due = append(due, a.roll(tick.Time))
	}

	return due
}

// begin opens a fresh bar seeded with the prior close and pending overflow.
func (a *barAccumulator) begin(tick types.TradeTick) {
	open := tick.Price
	if a.lastClose != 0 {
		open = a.lastClose
	}

	a.open = open
	a.high = open
	a.low = open
	a.closePx = open

	a.volume = a.pendingVolume
	a.tickVolume = a.pendingTickVolume
	a.direction = a.pendingDirection
	a.vwapNum = a.pendingVWAPNum
	a.tickCount = a.pendingTicks

	a.pendingVolume = 0
	a.pendingTickVolume = 0
	a.pendingDirection = 0
	a.pendingVWAPNum = 0
	a.pendingTicks = 0

	a.startTime = tick.Time
	a.started = true
}

// add attributes ratio of the trade's size, VWAP contribution, tick volume
// and direction to the current bar. The bar always counts one full tick.
func (a *barAccumulator) add(tick types.TradeTick, ratio float64, direction int) {
	size := tick.Size * ratio

	a.volume += size
	a.tickVolume += ratio
	a.direction += float64(direction) * ratio
	a.vwapNum += tick.Price * size
	a.tickCount++

	a.closePx = tick.Price
	if tick.Price > a.high {
		a.high = tick.Price
	}

	if tick.Price < a.low {
		a.low = tick.Price
	}
}

// roll closes the current bar and resets the accumulator. Pending overflow
// state survives the roll and seeds the next bar.
func (a *barAccumulator) roll(closeTime time.Time) types.Bar {
	vwap := 0.0
	if a.volume > 0 {
		vwap = a.vwapNum / a.volume
	}

	bar := types.Bar{
		InstrumentID: a.instrumentID,
		Open:         a.open,
		High:         a.high,
		Low:          a.low,
		Close:        a.closePx,
		Volume:       a.volume,
		TickVolume:   a.tickVolume,
		Direction:    a.direction,
		VWAP:         vwap,
		TickCount:    a.tickCount,
		StartTime:    a.startTime,
		CloseTime:    closeTime,
	}

	a.lastClose = a.closePx
	a.started = false
	a.volume = 0
	a.tickVolume = 0
	a.direction = 0
	a.vwapNum = 0
	a.tickCount = 0

	return bar
}
