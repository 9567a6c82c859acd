// Package marketdata bridges live Binance streams into the feed layer. It
// resolves stream symbols against the instrument repository and converts raw
// websocket events into typed ticks.
package marketdata

import (
	"context"
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/refdata"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// FeedSink consumes the typed ticks produced by a stream.
type FeedSink interface {
	OnTrade(tick types.TradeTick)
	OnBid(tick types.QuoteTick)
	OnAsk(tick types.QuoteTick)
}

// Service interfaces for mocking the Binance websocket API

// StreamService abstracts the Binance websocket subscriptions.
type StreamService interface {
	SubscribeAggTrade(symbol string, handler binance.WsAggTradeHandler, errHandler binance.ErrHandler) (stop chan struct{}, err error)
	SubscribeBookTicker(symbol string, handler binance.WsBookTickerHandler, errHandler binance.ErrHandler) (stop chan struct{}, err error)
}

type binanceStreamService struct{}

// NewBinanceStreamService returns the StreamService backed by the public
// Binance websocket endpoints.
func NewBinanceStreamService() StreamService {
	return &binanceStreamService{}
}

func (s *binanceStreamService) SubscribeAggTrade(symbol string, handler binance.WsAggTradeHandler, errHandler binance.ErrHandler) (chan struct{}, error) {
	_, stopC, err := binance.WsAggTradeServe(symbol, handler, errHandler)

	return stopC, err
}

func (s *binanceStreamService) SubscribeBookTicker(symbol string, handler binance.WsBookTickerHandler, errHandler binance.ErrHandler) (chan struct{}, error) {
	_, stopC, err := binance.WsBookTickerServe(symbol, handler, errHandler)

	return stopC, err
}

// BinanceStream subscribes to aggregated trades and best bid/ask for a set of
// instruments and pushes the converted ticks into a FeedSink.
type BinanceStream struct {
	mu          sync.Mutex
	service     StreamService
	instruments refdata.Repository
	sink        FeedSink
	log         *logger.Logger
	stops       []chan struct{}
	started     bool
}

// NewBinanceStream creates a BinanceStream feeding the given sink.
func NewBinanceStream(service StreamService, instruments refdata.Repository, sink FeedSink, log *logger.Logger) *BinanceStream {
	return &BinanceStream{
		service:     service,
		instruments: instruments,
		sink:        sink,
		log:         log,
	}
}

// Start subscribes to the trade and book-ticker streams for every symbol.
// Every symbol must resolve to a regular instrument. Start can only be called
// once; the stream stops when ctx is cancelled or Stop is called.
func (s *BinanceStream) Start(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New(errors.ErrCodeStreamActive, "stream already started")
	}

	for _, symbol := range symbols {
		inst, err := s.instruments.BySymbol(symbol)
		if err != nil {
			s.stopLocked()

			return err
		}

		if inst.IsSynthetic() {
			s.stopLocked()

			return errors.Newf(errors.ErrCodeNotRegular, "cannot stream synthetic instrument %q", symbol)
		}

		stop, err := s.service.SubscribeAggTrade(symbol, s.tradeHandler(inst), s.errHandler(symbol))
		if err != nil {
			s.stopLocked()

			return errors.Wrapf(errors.ErrCodeStreamSubscribe, err, "failed to subscribe trades for %s", symbol)
		}

		s.stops = append(s.stops, stop)

		stop, err = s.service.SubscribeBookTicker(symbol, s.quoteHandler(inst), s.errHandler(symbol))
		if err != nil {
			s.stopLocked()

			return errors.Wrapf(errors.ErrCodeStreamSubscribe, err, "failed to subscribe book ticker for %s", symbol)
		}

		s.stops = append(s.stops, stop)
	}

	s.started = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log.Info("binance stream started", zap.Strings("symbols", symbols))

	return nil
}

// Stop closes every active subscription. Safe to call more than once.
func (s *BinanceStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.started = false
}

func (s *BinanceStream) stopLocked() {
	for _, stop := range s.stops {
		close(stop)
	}

	s.stops = nil
}

func (s *BinanceStream) tradeHandler(inst types.Instrument) binance.WsAggTradeHandler {
	return func(event *binance.WsAggTradeEvent) {
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			s.log.Warn("unparseable trade price", zap.String("symbol", inst.Symbol), zap.String("price", event.Price))

			return
		}

		size, err := strconv.ParseFloat(event.Quantity, 64)
		if err != nil {
			s.log.Warn("unparseable trade quantity", zap.String("symbol", inst.Symbol), zap.String("quantity", event.Quantity))

			return
		}

		s.sink.OnTrade(types.TradeTick{
			InstrumentID: inst.ID,
			Price:        price,
			Size:         size,
			Time:         time.UnixMilli(event.TradeTime),
		})
	}
}

// quoteHandler splits one book-ticker event into a bid and an ask tick. The
// event carries no timestamp, so receive time is used.
func (s *BinanceStream) quoteHandler(inst types.Instrument) binance.WsBookTickerHandler {
	return func(event *binance.WsBookTickerEvent) {
		now := time.Now()

		bidPrice, err1 := strconv.ParseFloat(event.BestBidPrice, 64)
		bidSize, err2 := strconv.ParseFloat(event.BestBidQty, 64)

		if err1 == nil && err2 == nil {
			s.sink.OnBid(types.QuoteTick{InstrumentID: inst.ID, Price: bidPrice, Size: bidSize, Time: now})
		}

		askPrice, err1 := strconv.ParseFloat(event.BestAskPrice, 64)
		askSize, err2 := strconv.ParseFloat(event.BestAskQty, 64)

		if err1 == nil && err2 == nil {
			s.sink.OnAsk(types.QuoteTick{InstrumentID: inst.ID, Price: askPrice, Size: askSize, Time: now})
		}
	}
}

func (s *BinanceStream) errHandler(symbol string) binance.ErrHandler {
	return func(err error) {
		s.log.Error("binance stream error", zap.String("symbol", symbol), zap.Error(err))
	}
}
