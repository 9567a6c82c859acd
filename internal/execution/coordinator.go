package execution

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// StatusCallback receives spread execution status events. Events are
// delivered synchronously on the calling goroutine while the coordinator
// lock is held: handlers must be non-blocking and must not call back into
// the same coordinator.
type StatusCallback func(event types.StatusEvent)

// LegRouter is the coordinator's view of the order feed adapter.
type LegRouter interface {
	Submit(order types.LegOrder, spreadOrderID int64) (types.LegOrder, error)
	Cancel(order types.LegOrder) error
	Replace(order types.LegOrder, price, quantity float64) error
}

// Coordinator owns one spread order's lifecycle. It works the order clip by
// clip: the liquid (primary) leg is submitted first; once it fills, the
// hedge leg is derived from the actual primary fill quantity and submitted;
// once both legs of the clip are filled the next clip begins.
//
// The configured MaxExecutionTime is carried but not enforced.
type Coordinator struct {
	mu sync.Mutex

	order       types.SpreadOrder
	params      types.ExecutionParams
	numerator   types.Instrument
	denominator types.Instrument
	prices      PriceSource
	router      LegRouter
	onStatus    *StatusCallback
	log         *logger.Logger

	status      types.ExecutionStatus
	outstanding float64
	clipSize    float64

	primary       optional.Option[types.LegOrder]
	hedge         optional.Option[types.LegOrder]
	primaryFilled float64
	hedgeFilled   float64
	primaryDone   bool
	hedgeDone     bool

	position   types.SpreadPosition
	startTime  time.Time
	endTime    optional.Option[time.Time]
	failReason string
}

// NewCoordinator creates a coordinator in the Initialized state.
func NewCoordinator(
	order types.SpreadOrder,
	params types.ExecutionParams,
	numerator, denominator types.Instrument,
	prices PriceSource,
	router LegRouter,
	onStatus *StatusCallback,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		order:       order,
		params:      params,
		numerator:   numerator,
		denominator: denominator,
		prices:      prices,
		router:      router,
		onStatus:    onStatus,
		log:         log,
		status:      types.ExecutionStatusInitialized,
		outstanding: order.Quantity,
	}
}

// StartExecution begins working the spread order. Valid only from the
// Initialized state.
func (c *Coordinator) StartExecution() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != types.ExecutionStatusInitialized {
		return errors.Newf(errors.ErrCodeInvalidTransition,
			"cannot start execution of spread %d from status %s", c.order.ID, c.status)
	}

	c.startTime = time.Now()
	c.setStatusLocked(types.ExecutionStatusInProgress, "execution started")

	if err := c.startClipLocked(); err != nil {
		c.failLocked(err.Error())

		return err
	}

	return nil
}

// Cancel cancels outstanding leg orders and ends the execution. No-op when
// the execution already reached a terminal status.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return
	}

	c.cancelOutstandingLocked()
	c.endTime = optional.Some(time.Now())
	c.setStatusLocked(types.ExecutionStatusCancelled, "cancelled by request")
}

// OnFillReport applies one routed execution report for the given leg role.
// It is the single step function of the clip state machine: each invocation
// advances at most one transition, so deep clip chains never recurse.
func (c *Coordinator) OnFillReport(role types.LegRole, report types.FillReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return
	}

	switch report.ExecType {
	case types.ExecTypeNew:
		// acknowledgement only
	case types.ExecTypeReplaced:
		c.applyReplaceLocked(role, report)
	case types.ExecTypeTrade:
		c.applyFillLocked(role, report)
	case types.ExecTypeRejected:
		c.markLegDeadLocked(role)
		c.cancelOutstandingLocked()
		c.failLocked(fmt.Sprintf("%s leg order rejected: %s", role, report.Text))
	case types.ExecTypeCancelled:
		// a cancel the coordinator did not ask for
		c.markLegDeadLocked(role)
		c.cancelOutstandingLocked()
		c.failLocked(fmt.Sprintf("%s leg order unexpectedly cancelled", role))
	}
}

// OnPriceUpdate re-prices the outstanding primary order when a constituent
// price moves. Updates for unrelated instruments are ignored; orders with
// partial fills are left untouched.
func (c *Coordinator) OnPriceUpdate(instrumentID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() {
		return
	}

	if instrumentID != c.numerator.ID && instrumentID != c.denominator.ID {
		return
	}

	if c.primary.IsNone() || c.primaryDone || c.primaryFilled > 0 {
		return
	}

	order := c.primary.Unwrap()

	price, err := c.legPriceLocked(order.Role)
	if err != nil || price <= 0 || price == order.Price {
		return
	}

	if err := c.router.Replace(order, price, order.Quantity); err != nil {
		c.logf("failed to replace primary leg", zap.Error(err))

		return
	}

	order.Price = price
	c.primary = optional.Some(order)
}

// Status returns the current execution status.
func (c *Coordinator) Status() types.ExecutionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Position returns the current spread position.
func (c *Coordinator) Position() types.SpreadPosition {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.position
}

// Result returns the execution result as of now.
func (c *Coordinator) Result() types.ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.ExecutionResult{
		SpreadOrderID: c.order.ID,
		Status:        c.status,
		StartTime:     c.startTime,
		EndTime:       c.endTime,
		ErrorMessage:  c.failReason,
	}
}

// OutstandingQuantity returns the synthetic quantity not yet executed.
func (c *Coordinator) OutstandingQuantity() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.outstanding
}

func (c *Coordinator) instrument(role types.LegRole) types.Instrument {
	if role == types.LegRoleNumerator {
		return c.numerator
	}

	return c.denominator
}

// legSide is the side a leg trades at for this spread: a spread buy buys the
// numerator and sells the denominator, a spread sell the reverse.
func (c *Coordinator) legSide(role types.LegRole) types.Side {
	if role == types.LegRoleNumerator {
		return c.order.Side
	}

	return c.order.Side.Opposite()
}

// legPriceLocked prices one leg off the counterpart leg's current level.
func (c *Coordinator) legPriceLocked(role types.LegRole) (float64, error) {
	counterpart := role.Opposite()
	counterInst := c.instrument(counterpart)

	counterPrice, err := currentPrice(c.prices, counterInst.ID, c.legSide(counterpart), c.params.PriceBasis)
	if err != nil {
		return 0, err
	}

	return legPrice(role, c.order.SpreadPrice, counterPrice, c.instrument(role))
}

// startClipLocked opens the next clip: sizes it, prices the primary leg and
// submits it.
func (c *Coordinator) startClipLocked() error {
	c.clipSize = math.Min(c.params.ClipSize, c.outstanding)

	role := c.params.LiquidLeg
	inst := c.instrument(role)

	price, err := c.legPriceLocked(role)
	if err != nil {
		return err
	}

	order := types.LegOrder{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Side:         c.legSide(role),
		Quantity:     c.clipSize,
		Price:        price,
		Role:         role,
	}

	submitted, err := c.router.Submit(order, c.order.ID)
	if err != nil {
		return err
	}

	c.primary = optional.Some(submitted)
	c.logf("primary leg submitted",
		zap.Int64("order_id", submitted.ID),
		zap.String("symbol", submitted.Symbol),
		zap.String("side", string(submitted.Side)),
		zap.Float64("quantity", submitted.Quantity),
		zap.Float64("price", submitted.Price),
	)

	return nil
}

// submitHedgeLocked derives the hedge from the primary's actual fill
// quantity and submits it. Partial primary fills are tolerated: the hedge
// matches whatever the primary filled.
func (c *Coordinator) submitHedgeLocked() error {
	role := c.params.LiquidLeg.Opposite()
	inst := c.instrument(role)

	price, err := c.legPriceLocked(role)
	if err != nil {
		return err
	}

	order := types.LegOrder{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		Side:         c.legSide(role),
		Quantity:     c.primaryFilled,
		Price:        price,
		Role:         role,
	}

	submitted, err := c.router.Submit(order, c.order.ID)
	if err != nil {
		return err
	}

	c.hedge = optional.Some(submitted)
	c.logf("hedge leg submitted",
		zap.Int64("order_id", submitted.ID),
		zap.String("symbol", submitted.Symbol),
		zap.String("side", string(submitted.Side)),
		zap.Float64("quantity", submitted.Quantity),
		zap.Float64("price", submitted.Price),
	)

	return nil
}

func (c *Coordinator) applyReplaceLocked(role types.LegRole, report types.FillReport) {
	if role == c.params.LiquidLeg && c.primary.IsSome() {
		order := c.primary.Unwrap()
		order.Price = report.LastPrice
		c.primary = optional.Some(order)
	}
}

func (c *Coordinator) applyFillLocked(role types.LegRole, report types.FillReport) {
	side := report.Side
	if side == "" {
		side = c.legSide(role)
	}

	c.position.ApplyFill(role, side, report.LastQty, report.LastPrice)

	if role == c.params.LiquidLeg {
		c.primaryFilled += report.LastQty

		if report.OrderStatus == types.OrderStatusFilled {
			c.primaryDone = true

			// hedging is deferred until the primary order fully fills
			if err := c.submitHedgeLocked(); err != nil {
				c.failLocked(err.Error())
			}
		}

		return
	}

	c.hedgeFilled += report.LastQty

	if report.OrderStatus == types.OrderStatusFilled {
		c.hedgeDone = true
		c.completeClipLocked()
	}
}

// completeClipLocked closes the current clip and either finishes the
// execution or starts the next clip inline.
func (c *Coordinator) completeClipLocked() {
	c.outstanding -= c.hedgeFilled
	c.resetClipLocked()

	if c.outstanding <= 0 {
		c.endTime = optional.Some(time.Now())
		c.setStatusLocked(types.ExecutionStatusCompleted, "execution completed")

		return
	}

	c.setStatusLocked(types.ExecutionStatusPartiallyFilled,
		fmt.Sprintf("clip complete, %.2f outstanding", c.outstanding))
	c.setStatusLocked(types.ExecutionStatusInProgress, "starting next clip")

	if err := c.startClipLocked(); err != nil {
		c.failLocked(err.Error())
	}
}

func (c *Coordinator) resetClipLocked() {
	c.primary = optional.None[types.LegOrder]()
	c.hedge = optional.None[types.LegOrder]()
	c.primaryFilled = 0
	c.hedgeFilled = 0
	c.primaryDone = false
	c.hedgeDone = false
}

// markLegDeadLocked flags a leg that the router already terminated so it is
// not cancelled again.
func (c *Coordinator) markLegDeadLocked(role types.LegRole) {
	if role == c.params.LiquidLeg {
		c.primaryDone = true
	} else {
		c.hedgeDone = true
	}
}

// cancelOutstandingLocked cancels whichever leg orders are still working.
func (c *Coordinator) cancelOutstandingLocked() {
	if c.primary.IsSome() && !c.primaryDone {
		if err := c.router.Cancel(c.primary.Unwrap()); err != nil {
			c.logf("failed to cancel primary leg", zap.Error(err))
		}
	}

	if c.hedge.IsSome() && !c.hedgeDone {
		if err := c.router.Cancel(c.hedge.Unwrap()); err != nil {
			c.logf("failed to cancel hedge leg", zap.Error(err))
		}
	}
}

func (c *Coordinator) failLocked(reason string) {
	if c.status.IsTerminal() {
		return
	}

	c.failReason = reason
	c.endTime = optional.Some(time.Now())
	c.setStatusLocked(types.ExecutionStatusFailed, reason)
}

// setStatusLocked transitions the status and delivers the event on the
// calling goroutine while the lock is held.
func (c *Coordinator) setStatusLocked(status types.ExecutionStatus, message string) {
	c.status = status

	event := types.StatusEvent{
		SpreadOrderID: c.order.ID,
		Status:        status,
		Message:       message,
		Timestamp:     time.Now(),
	}

	c.logf("spread execution status",
		zap.Int64("spread_order_id", event.SpreadOrderID),
		zap.String("status", string(status)),
		zap.String("message", message),
	)

	if c.onStatus != nil {
		(*c.onStatus)(event)
	}
}

func (c *Coordinator) logf(msg string, fields ...zap.Field) {
	if c.params.LoggingEnabled {
		c.log.Info(msg, fields...)
	}
}
