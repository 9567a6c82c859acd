package scenario

import (
	"time"

	"github.com/azuric/pairs/internal/execution"
	"github.com/azuric/pairs/internal/feed"
	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/orderfeed"
	"github.com/azuric/pairs/internal/refdata"
	"github.com/azuric/pairs/internal/strategy"
	"github.com/azuric/pairs/internal/types"
)

// OnProgress reports replay progress after each processed tick.
type OnProgress func(current, total int)

// Report summarizes one scenario replay.
type Report struct {
	// Submitted holds the immediate result of every submitted spread order.
	Submitted []types.ExecutionResult
	// Events holds every status event observed during the replay.
	Events []types.StatusEvent
	// Signals holds the strategy signals emitted during the replay.
	Signals []types.Signal
	Stats   types.ExecutionStats
	Trades  int
	Quotes  int
	Bars    int
}

// replayBaseTime anchors tick offsets to a fixed minute boundary so scenario
// authors control same-minute synchronization exactly.
var replayBaseTime = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

// Run replays a scenario and returns the report. onProgress may be nil.
func Run(config Config, log *logger.Logger, onProgress OnProgress) (Report, error) {
	if err := config.Validate(); err != nil {
		return Report{}, err
	}

	report := Report{}

	instruments := refdata.NewStatic()
	nextID := 1

	bySymbol := make(map[string]types.Instrument)

	for _, ic := range config.Instruments {
		inst := types.Instrument{ID: nextID, Symbol: ic.Symbol, TickSize: ic.TickSize, Kind: types.InstrumentKindRegular}
		nextID++

		if err := instruments.Add(inst); err != nil {
			return Report{}, err
		}

		bySymbol[inst.Symbol] = inst
	}

	for _, sc := range config.Synthetics {
		inst := types.Instrument{ID: nextID, Symbol: sc.Symbol, Kind: types.InstrumentKindSynthetic}
		nextID++

		if err := instruments.Add(inst); err != nil {
			return Report{}, err
		}

		bySymbol[inst.Symbol] = inst
	}

	var strategies []*strategy.Threshold

	onSignal := strategy.SignalCallback(func(signal types.Signal) {
		report.Signals = append(report.Signals, signal)
	})

	onTrade := feed.TradeCallback(func(tick types.TradeTick) {
		report.Trades++

		for _, s := range strategies {
			s.OnTrade(tick)
		}
	})
	onQuote := feed.QuoteCallback(func(tick types.QuoteTick) {
		report.Quotes++
	})
	onBar := feed.BarCallback(func(bar types.Bar) {
		report.Bars++
	})

	synthesizer, err := feed.NewSynthesizer(instruments, config.Bar, feed.Callbacks{
		OnTrade: &onTrade,
		OnBid:   &onQuote,
		OnAsk:   &onQuote,
		OnBar:   &onBar,
	}, log)
	if err != nil {
		return Report{}, err
	}

	for _, ic := range config.Instruments {
		if err := synthesizer.Subscribe(bySymbol[ic.Symbol].ID, config.Bar); err != nil {
			return Report{}, err
		}
	}

	for _, sc := range config.Synthetics {
		if err := synthesizer.AddSyntheticInstrument(sc.Symbol, sc.Numerator, sc.Denominator); err != nil {
			return Report{}, err
		}
	}

	for _, tc := range config.Strategies {
		inst, ok := bySymbol[tc.Symbol]
		if !ok {
			continue
		}

		s, err := strategy.NewThreshold(tc, inst.ID, &onSignal)
		if err != nil {
			return Report{}, err
		}

		strategies = append(strategies, s)
	}

	router := orderfeed.NewSimRouter(config.FillSlices)
	adapter := orderfeed.NewAdapter(router, log)
	manager := execution.NewManager(instruments, synthesizer, adapter, log)
	router.Bind(manager.OnFillReport)

	manager.SubscribeStatus(func(event types.StatusEvent) {
		report.Events = append(report.Events, event)
	})

	submitted := make([]bool, len(config.Orders))

	submitDue := func(tickIndex int) {
		for i, oc := range config.Orders {
			if submitted[i] || oc.AfterTick > tickIndex {
				continue
			}

			submitted[i] = true
			order := types.SpreadOrder{
				Symbol:      oc.Symbol,
				Side:        oc.Side,
				Quantity:    oc.Quantity,
				SpreadPrice: oc.SpreadPrice,
				CreatedAt:   time.Now(),
			}
			report.Submitted = append(report.Submitted, manager.Submit(order, oc.Params))
			router.Pump()
		}
	}

	for i, tc := range config.Ticks {
		inst, ok := bySymbol[tc.Symbol]
		if !ok {
			continue
		}

		ts := replayBaseTime.Add(time.Duration(tc.At * float64(time.Second)))

		switch tc.Kind {
		case TickKindTrade:
			synthesizer.OnTrade(types.TradeTick{InstrumentID: inst.ID, Price: tc.Price, Size: tc.Size, Time: ts})
		case TickKindBid:
			synthesizer.OnBid(types.QuoteTick{InstrumentID: inst.ID, Price: tc.Price, Size: tc.Size, Time: ts})
			manager.OnPrice(inst.ID)
		case TickKindAsk:
			synthesizer.OnAsk(types.QuoteTick{InstrumentID: inst.ID, Price: tc.Price, Size: tc.Size, Time: ts})
			manager.OnPrice(inst.ID)
		}

		router.Pump()
		submitDue(i)

		if onProgress != nil {
			onProgress(i+1, len(config.Ticks))
		}
	}

	// orders scheduled past the last tick still get submitted
	submitDue(len(config.Ticks))

	report.Stats = manager.Stats()

	return report, nil
}
