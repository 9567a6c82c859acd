// Package feed synthesizes a consistent trade/quote/bar stream for synthetic
// ratio instruments from the raw streams of their two real constituents, and
// aggregates raw ticks into price bars per real instrument.
package feed

import (
	"math"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/refdata"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// syntheticBarSyncWindow is the maximum distance between the two
// constituents' bar close times for a synthetic bar to be generated.
const syntheticBarSyncWindow = 50 * time.Second

type TradeCallback func(tick types.TradeTick)

type QuoteCallback func(tick types.QuoteTick)

type BarCallback func(bar types.Bar)

// Callbacks holds the synthesizer's outbound event handlers. All fields are
// pointers - nil means no callback will be invoked. Delivery is synchronous
// on the calling goroutine while the synthesizer lock is held; handlers must
// be non-blocking and must not call back into the synthesizer.
type Callbacks struct {
	// OnTrade receives re-emitted constituent trades and derived synthetic trades.
	OnTrade *TradeCallback

	// OnBid receives best-bid updates, real and synthetic.
	OnBid *QuoteCallback

	// OnAsk receives best-ask updates, real and synthetic.
	OnAsk *QuoteCallback

	// OnBar receives completed bars, real and synthetic.
	OnBar *BarCallback
}

// constituents maps a synthetic instrument to its two real legs.
type constituents struct {
	num int
	den int
}

// snapshot is the live market state for one subscribed instrument.
type snapshot struct {
	inst      types.Instrument
	lastTrade optional.Option[types.TradeTick]
	bid       optional.Option[types.QuoteTick]
	ask       optional.Option[types.QuoteTick]
	// quoteCache holds the latest bid and ask prices for midpoint reads
	quoteCache [2]float64
	lastBar    optional.Option[types.Bar]
}

// classify returns the tick direction of a trade against the prevailing
// quote: +1 if price is at or through the ask (or above the last trade when
// no ask exists), -1 symmetrically against the bid, 0 otherwise.
func (sn *snapshot) classify(price float64) int {
	switch {
	case sn.ask.IsSome():
		if price >= sn.ask.Unwrap().Price {
			return 1
		}
	case sn.lastTrade.IsSome():
		if price > sn.lastTrade.Unwrap().Price {
			return 1
		}
	}

	switch {
	case sn.bid.IsSome():
		if price <= sn.bid.Unwrap().Price {
			return -1
		}
	case sn.lastTrade.IsSome():
		if price < sn.lastTrade.Unwrap().Price {
			return -1
		}
	}

	return 0
}

// Synthesizer derives trade, quote and bar events for synthetic ratio
// instruments from their constituents' raw events. All entry points serialize
// through one mutex; callbacks run on the calling goroutine under that lock.
type Synthesizer struct {
	mu          sync.Mutex
	instruments refdata.Repository
	defaultSpec types.BarSpec
	callbacks   Callbacks
	log         *logger.Logger

	snapshots map[int]*snapshot
	bars      map[int]*barAccumulator

	// forward mapping and the two reverse indices are always updated together
	synthetics map[int]constituents
	numIndex   map[int]map[int]struct{}
	denIndex   map[int]map[int]struct{}
}

// NewSynthesizer creates a Synthesizer. defaultSpec is the bar configuration
// applied when constituents are auto-subscribed.
func NewSynthesizer(instruments refdata.Repository, defaultSpec types.BarSpec, callbacks Callbacks, log *logger.Logger) (*Synthesizer, error) {
	if err := defaultSpec.Validate(); err != nil {
		return nil, err
	}

	return &Synthesizer{
		instruments: instruments,
		defaultSpec: defaultSpec,
		callbacks:   callbacks,
		log:         log,
		snapshots:   make(map[int]*snapshot),
		bars:        make(map[int]*barAccumulator),
		synthetics:  make(map[int]constituents),
		numIndex:    make(map[int]map[int]struct{}),
		denIndex:    make(map[int]map[int]struct{}),
	}, nil
}

// Subscribe creates the market snapshot and, for regular instruments, the bar
// accumulator for the given instrument. Subscribing twice is a no-op.
func (s *Synthesizer) Subscribe(instrumentID int, spec types.BarSpec) error {
	inst, err := s.instruments.ByID(instrumentID)
	if err != nil {
		return err
	}

	if err := spec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribeLocked(inst, spec)

	return nil
}

func (s *Synthesizer) subscribeLocked(inst types.Instrument, spec types.BarSpec) {
	if _, ok := s.snapshots[inst.ID]; ok {
		return
	}

	s.snapshots[inst.ID] = &snapshot{inst: inst}
	if !inst.IsSynthetic() {
		s.bars[inst.ID] = newBarAccumulator(inst.ID, spec)
	}
}

// Unsubscribe destroys the instrument's snapshot and bar accumulator and
// removes every synthetic mapping the instrument participates in.
func (s *Synthesizer) Unsubscribe(instrumentID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[instrumentID]; ok && snap.inst.IsSynthetic() {
		s.removeMappingLocked(instrumentID)
	}

	for _, synthID := range s.mappingsUsingLocked(instrumentID) {
		s.removeMappingLocked(synthID)
	}

	delete(s.snapshots, instrumentID)
	delete(s.bars, instrumentID)
}

// AddSyntheticInstrument registers a synthetic mapping. All three symbols
// must resolve; the synthetic must carry the synthetic flag and the two
// constituents must be distinct regular instruments. Unsubscribed
// constituents are subscribed automatically with the default bar spec.
func (s *Synthesizer) AddSyntheticInstrument(syntheticSymbol, numeratorSymbol, denominatorSymbol string) error {
	synth, err := s.instruments.BySymbol(syntheticSymbol)
	if err != nil {
		return err
	}

	if !synth.IsSynthetic() {
		return errors.Newf(errors.ErrCodeNotSynthetic, "instrument %q is not synthetic", syntheticSymbol)
	}

	num, err := s.instruments.BySymbol(numeratorSymbol)
	if err != nil {
		return err
	}

	den, err := s.instruments.BySymbol(denominatorSymbol)
	if err != nil {
		return err
	}

	if num.IsSynthetic() || den.IsSynthetic() {
		return errors.New(errors.ErrCodeNotRegular, "synthetic constituents must be regular instruments")
	}

	if num.ID == den.ID {
		return errors.Newf(errors.ErrCodeIdenticalLegs, "constituents of %q must be distinct", syntheticSymbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.synthetics[synth.ID]; ok {
		return errors.Newf(errors.ErrCodeMappingExists, "synthetic mapping for %q already exists", syntheticSymbol)
	}

	s.subscribeLocked(num, s.defaultSpec)
	s.subscribeLocked(den, s.defaultSpec)
	s.subscribeLocked(synth, s.defaultSpec)

	s.synthetics[synth.ID] = constituents{num: num.ID, den: den.ID}
	addIndex(s.numIndex, num.ID, synth.ID)
	addIndex(s.denIndex, den.ID, synth.ID)

	s.log.Info("synthetic instrument registered",
		zap.String("symbol", syntheticSymbol),
		zap.String("numerator", numeratorSymbol),
		zap.String("denominator", denominatorSymbol),
	)

	return nil
}

// RemoveSyntheticInstrument removes a synthetic mapping and the synthetic's
// snapshot. The constituents stay subscribed.
func (s *Synthesizer) RemoveSyntheticInstrument(syntheticSymbol string) error {
	synth, err := s.instruments.BySymbol(syntheticSymbol)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.synthetics[synth.ID]; !ok {
		return errors.Newf(errors.ErrCodeMappingNotFound, "no synthetic mapping for %q", syntheticSymbol)
	}

	s.removeMappingLocked(synth.ID)
	delete(s.snapshots, synth.ID)

	return nil
}

// OnTrade handles a raw trade from the market-data collaborator.
func (s *Synthesizer) OnTrade(tick types.TradeTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tick.InstrumentID]
	if !ok {
		return
	}

	direction := snap.classify(tick.Price)
	if acc := s.bars[tick.InstrumentID]; acc != nil {
		for _, bar := range acc.applyTrade(tick, direction) {
			s.closeBarLocked(bar)
		}
	}

	snap.lastTrade = optional.Some(tick)

	if snap.inst.IsSynthetic() {
		return
	}

	s.emitTrade(tick)

	for synthID := range s.numIndex[tick.InstrumentID] {
		s.deriveTradeLocked(synthID)
	}

	for synthID := range s.denIndex[tick.InstrumentID] {
		s.deriveTradeLocked(synthID)
	}
}

// OnBid handles a best-bid update from the market-data collaborator.
func (s *Synthesizer) OnBid(tick types.QuoteTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tick.InstrumentID]
	if !ok {
		return
	}

	snap.bid = optional.Some(tick)
	snap.quoteCache[0] = tick.Price

	if snap.inst.IsSynthetic() {
		return
	}

	s.emitBid(tick)

	// a numerator bid moves the synthetic bid, a denominator bid the synthetic ask
	for synthID := range s.numIndex[tick.InstrumentID] {
		s.deriveBidLocked(synthID)
	}

	for synthID := range s.denIndex[tick.InstrumentID] {
		s.deriveAskLocked(synthID)
	}
}

// OnAsk handles a best-ask update from the market-data collaborator.
func (s *Synthesizer) OnAsk(tick types.QuoteTick) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[tick.InstrumentID]
	if !ok {
		return
	}

	snap.ask = optional.Some(tick)
	snap.quoteCache[1] = tick.Price

	if snap.inst.IsSynthetic() {
		return
	}

	s.emitAsk(tick)

	for synthID := range s.numIndex[tick.InstrumentID] {
		s.deriveAskLocked(synthID)
	}

	for synthID := range s.denIndex[tick.InstrumentID] {
		s.deriveBidLocked(synthID)
	}
}

// OnBarClosed handles an externally produced bar for a real instrument. The
// bar feeds synthetic bar generation the same way internally rolled bars do.
func (s *Synthesizer) OnBarClosed(bar types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snapshots[bar.InstrumentID]; !ok {
		return
	}

	s.closeBarLocked(bar)
}

// LastTrade returns the latest trade for the instrument, if any.
func (s *Synthesizer) LastTrade(instrumentID int) optional.Option[types.TradeTick] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[instrumentID]; ok {
		return snap.lastTrade
	}

	return optional.None[types.TradeTick]()
}

// Bid returns the latest best bid for the instrument, if any.
func (s *Synthesizer) Bid(instrumentID int) optional.Option[types.QuoteTick] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[instrumentID]; ok {
		return snap.bid
	}

	return optional.None[types.QuoteTick]()
}

// Ask returns the latest best ask for the instrument, if any.
func (s *Synthesizer) Ask(instrumentID int) optional.Option[types.QuoteTick] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[instrumentID]; ok {
		return snap.ask
	}

	return optional.None[types.QuoteTick]()
}

// Mid returns the quote midpoint from the instrument's cached bid and ask.
// None until both sides have been quoted.
func (s *Synthesizer) Mid(instrumentID int) optional.Option[float64] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.snapshots[instrumentID]; ok {
		bid, ask := snap.quoteCache[0], snap.quoteCache[1]
		if bid > 0 && ask > 0 {
			return optional.Some((bid + ask) / 2)
		}
	}

	return optional.None[float64]()
}

func (s *Synthesizer) closeBarLocked(bar types.Bar) {
	if snap, ok := s.snapshots[bar.InstrumentID]; ok {
		snap.lastBar = optional.Some(bar)
	}

	s.emitBar(bar)

	for synthID := range s.numIndex[bar.InstrumentID] {
		s.deriveBarLocked(synthID)
	}

	for synthID := range s.denIndex[bar.InstrumentID] {
		s.deriveBarLocked(synthID)
	}
}

// deriveTradeLocked attempts synthetic trade generation: both constituents'
// latest trades must fall in the same minute and the ratio must be non-zero.
func (s *Synthesizer) deriveTradeLocked(synthID int) {
	c := s.synthetics[synthID]

	ns, ds := s.snapshots[c.num], s.snapshots[c.den]
	if ns == nil || ds == nil || ns.lastTrade.IsNone() || ds.lastTrade.IsNone() {
		return
	}

	nt, dt := ns.lastTrade.Unwrap(), ds.lastTrade.Unwrap()
	if !sameMinute(nt.Time, dt.Time) || dt.Price == 0 {
		return
	}

	price := nt.Price / dt.Price
	if price == 0 {
		return
	}

	tick := types.TradeTick{
		InstrumentID: synthID,
		Price:        price,
		Size:         math.Min(nt.Size, dt.Size),
		Time:         laterOf(nt.Time, dt.Time),
	}

	if ss, ok := s.snapshots[synthID]; ok {
		ss.lastTrade = optional.Some(tick)
	}

	s.emitTrade(tick)
}

// deriveBidLocked computes synthetic bid = numerator bid / denominator ask.
func (s *Synthesizer) deriveBidLocked(synthID int) {
	c := s.synthetics[synthID]

	ns, ds := s.snapshots[c.num], s.snapshots[c.den]
	if ns == nil || ds == nil || ns.bid.IsNone() || ds.ask.IsNone() {
		return
	}

	nb, da := ns.bid.Unwrap(), ds.ask.Unwrap()
	if !sameMinute(nb.Time, da.Time) || da.Price == 0 {
		return
	}

	tick := types.QuoteTick{
		InstrumentID: synthID,
		Price:        nb.Price / da.Price,
		Size:         math.Min(nb.Size, da.Size),
		Time:         laterOf(nb.Time, da.Time),
	}

	if ss, ok := s.snapshots[synthID]; ok {
		ss.bid = optional.Some(tick)
		ss.quoteCache[0] = tick.Price
	}

	s.emitBid(tick)
}

// deriveAskLocked computes synthetic ask = numerator ask / denominator bid.
func (s *Synthesizer) deriveAskLocked(synthID int) {
	c := s.synthetics[synthID]

	ns, ds := s.snapshots[c.num], s.snapshots[c.den]
	if ns == nil || ds == nil || ns.ask.IsNone() || ds.bid.IsNone() {
		return
	}

	na, db := ns.ask.Unwrap(), ds.bid.Unwrap()
	if !sameMinute(na.Time, db.Time) || db.Price == 0 {
		return
	}

	tick := types.QuoteTick{
		InstrumentID: synthID,
		Price:        na.Price / db.Price,
		Size:         math.Min(na.Size, db.Size),
		Time:         laterOf(na.Time, db.Time),
	}

	if ss, ok := s.snapshots[synthID]; ok {
		ss.ask = optional.Some(tick)
		ss.quoteCache[1] = tick.Price
	}

	s.emitAsk(tick)
}

// deriveBarLocked generates a synthetic bar once both constituents' latest
// bars closed within the sync window. High and low are approximated as the
// extrema of the open and close ratios, not true intrabar extrema.
func (s *Synthesizer) deriveBarLocked(synthID int) {
	c := s.synthetics[synthID]

	ns, ds := s.snapshots[c.num], s.snapshots[c.den]
	if ns == nil || ds == nil || ns.lastBar.IsNone() || ds.lastBar.IsNone() {
		return
	}

	nb, db := ns.lastBar.Unwrap(), ds.lastBar.Unwrap()
	if absDuration(nb.CloseTime.Sub(db.CloseTime)) > syntheticBarSyncWindow {
		return
	}

	if db.Open == 0 || db.Close == 0 {
		return
	}

	open := nb.Open / db.Open
	closePx := nb.Close / db.Close

	bar := types.Bar{
		InstrumentID: synthID,
		Open:         open,
		High:         math.Max(open, closePx),
		Low:          math.Min(open, closePx),
		Close:        closePx,
		Volume:       math.Min(nb.Volume, db.Volume),
		StartTime:    earlierOf(nb.StartTime, db.StartTime),
		CloseTime:    laterOf(nb.CloseTime, db.CloseTime),
	}

	if ss, ok := s.snapshots[synthID]; ok {
		ss.lastBar = optional.Some(bar)
	}

	s.emitBar(bar)
}

// mappingsUsingLocked returns the synthetic ids that use the instrument as a
// constituent.
func (s *Synthesizer) mappingsUsingLocked(instrumentID int) []int {
	var ids []int
	for synthID := range s.numIndex[instrumentID] {
		ids = append(ids, synthID)
	}

	for synthID := range s.denIndex[instrumentID] {
		ids = append(ids, synthID)
	}

	return ids
}

// removeMappingLocked removes the forward mapping and both reverse index
// entries together.
func (s *Synthesizer) removeMappingLocked(synthID int) {
	c, ok := s.synthetics[synthID]
	if !ok {
		return
	}

	delete(s.synthetics, synthID)
	dropIndex(s.numIndex, c.num, synthID)
	dropIndex(s.denIndex, c.den, synthID)
}

func (s *Synthesizer) emitTrade(tick types.TradeTick) {
	if s.callbacks.OnTrade != nil {
		(*s.callbacks.OnTrade)(tick)
	}
}

func (s *Synthesizer) emitBid(tick types.QuoteTick) {
	if s.callbacks.OnBid != nil {
		(*s.callbacks.OnBid)(tick)
	}
}

func (s *Synthesizer) emitAsk(tick types.QuoteTick) {
	if s.callbacks.OnAsk != nil {
		(*s.callbacks.OnAsk)(tick)
	}
}

func (s *Synthesizer) emitBar(bar types.Bar) {
	if s.callbacks.OnBar != nil {
		(*s.callbacks.OnBar)(bar)
	}
}

func addIndex(index map[int]map[int]struct{}, key, synthID int) {
	set, ok := index[key]
	if !ok {
		set = make(map[int]struct{})
		index[key] = set
	}

	set[synthID] = struct{}{}
}

func dropIndex(index map[int]map[int]struct{}, key, synthID int) {
	set, ok := index[key]
	if !ok {
		return
	}

	delete(set, synthID)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}

	return b
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}
