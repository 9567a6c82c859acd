package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/refdata"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

const (
	numID   = 1
	denID   = 2
	synthID = 3
)

type SynthesizerTestSuite struct {
	suite.Suite
	repo        *refdata.Static
	synthesizer *Synthesizer
	base        time.Time

	trades []types.TradeTick
	bids   []types.QuoteTick
	asks   []types.QuoteTick
	bars   []types.Bar
}

func TestSynthesizerSuite(t *testing.T) {
	suite.Run(t, new(SynthesizerTestSuite))
}

func (suite *SynthesizerTestSuite) SetupTest() {
	suite.base = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	suite.trades = nil
	suite.bids = nil
	suite.asks = nil
	suite.bars = nil

	suite.repo = refdata.NewStatic()
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: numID, Symbol: "AAA", TickSize: 0.01, Kind: types.InstrumentKindRegular}))
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: denID, Symbol: "BBB", TickSize: 0.01, Kind: types.InstrumentKindRegular}))
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: synthID, Symbol: "AAA/BBB", Kind: types.InstrumentKindSynthetic}))

	onTrade := TradeCallback(func(tick types.TradeTick) { suite.trades = append(suite.trades, tick) })
	onBid := QuoteCallback(func(tick types.QuoteTick) { suite.bids = append(suite.bids, tick) })
	onAsk := QuoteCallback(func(tick types.QuoteTick) { suite.asks = append(suite.asks, tick) })
	onBar := BarCallback(func(bar types.Bar) { suite.bars = append(suite.bars, bar) })

	synthesizer, err := NewSynthesizer(suite.repo, types.BarSpec{Kind: types.BarKindTime, Seconds: 60}, Callbacks{
		OnTrade: &onTrade,
		OnBid:   &onBid,
		OnAsk:   &onAsk,
		OnBar:   &onBar,
	}, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.synthesizer = synthesizer

	suite.Require().NoError(suite.synthesizer.AddSyntheticInstrument("AAA/BBB", "AAA", "BBB"))
}

func (suite *SynthesizerTestSuite) at(offset time.Duration) time.Time {
	return suite.base.Add(offset)
}

func (suite *SynthesizerTestSuite) syntheticTrades() []types.TradeTick {
	var out []types.TradeTick

	for _, tick := range suite.trades {
		if tick.InstrumentID == synthID {
			out = append(out, tick)
		}
	}

	return out
}

func (suite *SynthesizerTestSuite) TestSyntheticTradeSameMinute() {
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(40 * time.Second)})

	synthetic := suite.syntheticTrades()
	suite.Require().Len(synthetic, 1)
	suite.InDelta(5.0, synthetic[0].Price, 1e-9)
	suite.Equal(3.0, synthetic[0].Size)
	suite.Equal(suite.at(40*time.Second), synthetic[0].Time)
}

func (suite *SynthesizerTestSuite) TestNoSyntheticTradeAcrossMinutes() {
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(65 * time.Second)})

	suite.Empty(suite.syntheticTrades())
	// the real trades are still re-emitted
	suite.Len(suite.trades, 2)
}

func (suite *SynthesizerTestSuite) TestSyntheticTradeUpdatesOnEitherLeg() {
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(5 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 11, Size: 4, Time: suite.at(20 * time.Second)})

	synthetic := suite.syntheticTrades()
	suite.Require().Len(synthetic, 2)
	suite.InDelta(5.5, synthetic[1].Price, 1e-9)
	suite.Equal(3.0, synthetic[1].Size)
}

func (suite *SynthesizerTestSuite) TestSyntheticBidFromNumeratorBidAndDenominatorAsk() {
	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: numID, Price: 10, Size: 8, Time: suite.at(5 * time.Second)})
	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: denID, Price: 2, Size: 6, Time: suite.at(20 * time.Second)})

	var synthetic []types.QuoteTick

	for _, tick := range suite.bids {
		if tick.InstrumentID == synthID {
			synthetic = append(synthetic, tick)
		}
	}

	suite.Require().Len(synthetic, 1)
	suite.InDelta(5.0, synthetic[0].Price, 1e-9)
	suite.Equal(6.0, synthetic[0].Size)
}

func (suite *SynthesizerTestSuite) TestSyntheticAskFromNumeratorAskAndDenominatorBid() {
	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: numID, Price: 10.2, Size: 8, Time: suite.at(5 * time.Second)})
	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: denID, Price: 1.9, Size: 6, Time: suite.at(20 * time.Second)})

	var synthetic []types.QuoteTick

	for _, tick := range suite.asks {
		if tick.InstrumentID == synthID {
			synthetic = append(synthetic, tick)
		}
	}

	suite.Require().Len(synthetic, 1)
	suite.InDelta(10.2/1.9, synthetic[0].Price, 1e-9)
}

func (suite *SynthesizerTestSuite) TestAccessorsExposeSyntheticState() {
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(40 * time.Second)})

	last := suite.synthesizer.LastTrade(synthID)
	suite.Require().True(last.IsSome())
	suite.InDelta(5.0, last.Unwrap().Price, 1e-9)

	suite.True(suite.synthesizer.Bid(synthID).IsNone())
	suite.True(suite.synthesizer.Ask(synthID).IsNone())
}

func (suite *SynthesizerTestSuite) TestMidFromCachedQuotes() {
	suite.True(suite.synthesizer.Mid(numID).IsNone())

	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: numID, Price: 9.8, Size: 8, Time: suite.at(5 * time.Second)})
	suite.True(suite.synthesizer.Mid(numID).IsNone())

	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: numID, Price: 10.2, Size: 8, Time: suite.at(6 * time.Second)})

	mid := suite.synthesizer.Mid(numID)
	suite.Require().True(mid.IsSome())
	suite.InDelta(10.0, mid.Unwrap(), 1e-9)

	suite.True(suite.synthesizer.Mid(99).IsNone())
}

func (suite *SynthesizerTestSuite) TestSyntheticMidFromDerivedQuotes() {
	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: numID, Price: 10, Size: 8, Time: suite.at(5 * time.Second)})
	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: numID, Price: 10.4, Size: 8, Time: suite.at(6 * time.Second)})
	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: denID, Price: 1.9, Size: 6, Time: suite.at(7 * time.Second)})
	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: denID, Price: 2, Size: 6, Time: suite.at(8 * time.Second)})

	mid := suite.synthesizer.Mid(synthID)
	suite.Require().True(mid.IsSome())
	// bid = 10/2, ask = 10.4/1.9
	suite.InDelta((5.0+10.4/1.9)/2, mid.Unwrap(), 1e-9)
}

func (suite *SynthesizerTestSuite) TestSyntheticBarWithinSyncWindow() {
	suite.synthesizer.OnBarClosed(types.Bar{
		InstrumentID: numID, Open: 10, Close: 11, Volume: 100,
		StartTime: suite.at(0), CloseTime: suite.at(60 * time.Second),
	})
	suite.synthesizer.OnBarClosed(types.Bar{
		InstrumentID: denID, Open: 2, Close: 2.2, Volume: 80,
		StartTime: suite.at(0), CloseTime: suite.at(100 * time.Second),
	})

	var synthetic []types.Bar

	for _, bar := range suite.bars {
		if bar.InstrumentID == synthID {
			synthetic = append(synthetic, bar)
		}
	}

	suite.Require().Len(synthetic, 1)

	bar := synthetic[0]
	suite.InDelta(5.0, bar.Open, 1e-9)
	suite.InDelta(5.0, bar.Close, 1e-9)
	suite.InDelta(5.0, bar.High, 1e-9)
	suite.InDelta(5.0, bar.Low, 1e-9)
	suite.Equal(80.0, bar.Volume)
	suite.Equal(suite.at(100*time.Second), bar.CloseTime)
}

func (suite *SynthesizerTestSuite) TestNoSyntheticBarOutsideSyncWindow() {
	suite.synthesizer.OnBarClosed(types.Bar{
		InstrumentID: numID, Open: 10, Close: 11,
		StartTime: suite.at(0), CloseTime: suite.at(60 * time.Second),
	})
	suite.synthesizer.OnBarClosed(types.Bar{
		InstrumentID: denID, Open: 2, Close: 2.2,
		StartTime: suite.at(60 * time.Second), CloseTime: suite.at(120 * time.Second),
	})

	for _, bar := range suite.bars {
		suite.NotEqual(synthID, bar.InstrumentID)
	}
}

func (suite *SynthesizerTestSuite) TestRollingBarsFeedSyntheticBars() {
	// both legs roll their first time bar on the trade past the window
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(0)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 5, Time: suite.at(0)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 11, Size: 5, Time: suite.at(61 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2.2, Size: 5, Time: suite.at(62 * time.Second)})

	var synthetic []types.Bar

	for _, bar := range suite.bars {
		if bar.InstrumentID == synthID {
			synthetic = append(synthetic, bar)
		}
	}

	suite.Require().Len(synthetic, 1)
	suite.InDelta(5.0, synthetic[0].Open, 1e-9)
}

func (suite *SynthesizerTestSuite) TestDuplicateMappingRejected() {
	err := suite.synthesizer.AddSyntheticInstrument("AAA/BBB", "AAA", "BBB")
	suite.True(errors.HasCode(err, errors.ErrCodeMappingExists))
}

func (suite *SynthesizerTestSuite) TestMappingRequiresSyntheticFlag() {
	err := suite.synthesizer.AddSyntheticInstrument("AAA", "AAA", "BBB")
	suite.True(errors.HasCode(err, errors.ErrCodeNotSynthetic))
}

func (suite *SynthesizerTestSuite) TestMappingRejectsIdenticalLegs() {
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: 4, Symbol: "AAA/AAA", Kind: types.InstrumentKindSynthetic}))

	err := suite.synthesizer.AddSyntheticInstrument("AAA/AAA", "AAA", "AAA")
	suite.True(errors.HasCode(err, errors.ErrCodeIdenticalLegs))
}

func (suite *SynthesizerTestSuite) TestMappingRejectsSyntheticConstituent() {
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: 4, Symbol: "X/Y", Kind: types.InstrumentKindSynthetic}))

	err := suite.synthesizer.AddSyntheticInstrument("X/Y", "AAA/BBB", "BBB")
	suite.True(errors.HasCode(err, errors.ErrCodeNotRegular))
}

func (suite *SynthesizerTestSuite) TestRemoveSyntheticInstrument() {
	suite.Require().NoError(suite.synthesizer.RemoveSyntheticInstrument("AAA/BBB"))

	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(40 * time.Second)})

	suite.Empty(suite.syntheticTrades())
	suite.True(errors.HasCode(suite.synthesizer.RemoveSyntheticInstrument("AAA/BBB"), errors.ErrCodeMappingNotFound))
}

func (suite *SynthesizerTestSuite) TestUnsubscribeConstituentDropsMapping() {
	suite.synthesizer.Unsubscribe(numID)

	// the numerator is gone and the mapping with it
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10, Size: 5, Time: suite.at(10 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: denID, Price: 2, Size: 3, Time: suite.at(40 * time.Second)})
	suite.Empty(suite.syntheticTrades())

	// re-registering is allowed again and resubscribes the constituent
	suite.Require().NoError(suite.synthesizer.AddSyntheticInstrument("AAA/BBB", "AAA", "BBB"))
}

func (suite *SynthesizerTestSuite) TestIgnoresUnsubscribedInstrument() {
	suite.Require().NoError(suite.repo.Add(types.Instrument{ID: 9, Symbol: "CCC", Kind: types.InstrumentKindRegular}))

	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: 9, Price: 1, Size: 1, Time: suite.at(0)})
	suite.Empty(suite.trades)
}

func (suite *SynthesizerTestSuite) TestTradeDirectionClassification() {
	suite.synthesizer.OnBid(types.QuoteTick{InstrumentID: numID, Price: 9.9, Size: 1, Time: suite.at(0)})
	suite.synthesizer.OnAsk(types.QuoteTick{InstrumentID: numID, Price: 10.1, Size: 1, Time: suite.at(0)})

	// at the ask, at the bid, in between
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10.1, Size: 100, Time: suite.at(time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 9.9, Size: 100, Time: suite.at(2 * time.Second)})
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10.0, Size: 100, Time: suite.at(3 * time.Second)})

	// roll the bar and inspect the direction sum
	suite.synthesizer.OnTrade(types.TradeTick{InstrumentID: numID, Price: 10.0, Size: 1, Time: suite.at(61 * time.Second)})

	suite.Require().NotEmpty(suite.bars)
	suite.InDelta(0.0, suite.bars[0].Direction, 1e-9)
	suite.Equal(3, suite.bars[0].TickCount)
}

func (suite *SynthesizerTestSuite) TestSubscribeUnknownInstrument() {
	err := suite.synthesizer.Subscribe(99, types.BarSpec{Kind: types.BarKindTime, Seconds: 60})
	suite.True(errors.HasCode(err, errors.ErrCodeInstrumentNotFound))
}
