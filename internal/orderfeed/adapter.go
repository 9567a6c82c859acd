// Package orderfeed is the sole bridge to the order-routing collaborator. It
// tags and forwards leg orders, and demultiplexes execution reports back to
// the owning spread order by leg order id.
package orderfeed

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// spreadOrderIDOffset keeps generated spread-order ids clear of
// externally-issued ids.
const spreadOrderIDOffset int64 = 1_000_000

// Router is the outbound order-routing collaborator.
type Router interface {
	// Submit routes a leg order. spreadOrderID is carried for traceability.
	Submit(order types.LegOrder, spreadOrderID int64) error
	// Cancel cancels a previously submitted leg order.
	Cancel(order types.LegOrder) error
	// Replace amends price and quantity of a previously submitted leg order.
	Replace(order types.LegOrder, price, quantity float64) error
}

// RoutedFillHandler receives execution reports resolved to their owning
// spread order and leg role.
type RoutedFillHandler func(spreadOrderID int64, role types.LegRole, report types.FillReport)

type legRef struct {
	spreadOrderID int64
	role          types.LegRole
}

// Adapter owns the leg-order id space and the spread/leg order id mappings.
type Adapter struct {
	mu           sync.Mutex
	router       Router
	log          *logger.Logger
	onFill       RoutedFillHandler
	byOrder      map[int64]legRef
	bySpread     map[int64][]int64
	nextLegID    int64
	nextSpreadID int64
}

// NewAdapter creates an Adapter forwarding to the given router.
func NewAdapter(router Router, log *logger.Logger) *Adapter {
	return &Adapter{
		router:       router,
		log:          log,
		byOrder:      make(map[int64]legRef),
		bySpread:     make(map[int64][]int64),
		nextLegID:    1,
		nextSpreadID: spreadOrderIDOffset,
	}
}

// Bind installs the routed-fill handler. Must be called before reports arrive.
func (a *Adapter) Bind(handler RoutedFillHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.onFill = handler
}

// NextSpreadOrderID issues a spread-order id from the reserved range.
func (a *Adapter) NextSpreadOrderID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextSpreadID++

	return a.nextSpreadID
}

// Submit assigns the leg order an id and trace tag, records the ownership
// mapping and forwards the order to the router. The stamped order is
// returned; on router failure the mapping is rolled back.
func (a *Adapter) Submit(order types.LegOrder, spreadOrderID int64) (types.LegOrder, error) {
	a.mu.Lock()
	order.ID = a.nextLegID
	a.nextLegID++
	order.TraceTag = uuid.NewString()
	order.SubmittedAt = time.Now()
	a.byOrder[order.ID] = legRef{spreadOrderID: spreadOrderID, role: order.Role}
	a.bySpread[spreadOrderID] = append(a.bySpread[spreadOrderID], order.ID)
	a.mu.Unlock()

	if err := a.router.Submit(order, spreadOrderID); err != nil {
		a.mu.Lock()
		a.dropOrderLocked(order.ID)
		a.mu.Unlock()

		return types.LegOrder{}, errors.Wrapf(errors.ErrCodeSubmitFailed, err,
			"failed to submit %s leg order for spread %d", order.Role, spreadOrderID)
	}

	return order, nil
}

// Cancel forwards a cancel request directly.
func (a *Adapter) Cancel(order types.LegOrder) error {
	return a.router.Cancel(order)
}

// Replace forwards a replace request directly.
func (a *Adapter) Replace(order types.LegOrder, price, quantity float64) error {
	return a.router.Replace(order, price, quantity)
}

// ProcessExecutionReport resolves the owning spread order of a fill report
// and raises the routed fill event. Returns false when the order id is
// unknown. Terminal reports release the id mapping.
func (a *Adapter) ProcessExecutionReport(report types.FillReport) bool {
	a.mu.Lock()

	ref, ok := a.byOrder[report.OrderID]
	if !ok {
		a.mu.Unlock()
		a.log.Debug("execution report for unknown order", zap.Int64("order_id", report.OrderID))

		return false
	}

	if isTerminalReport(report) {
		a.dropOrderLocked(report.OrderID)
	}

	handler := a.onFill
	a.mu.Unlock()

	if handler != nil {
		handler(ref.spreadOrderID, ref.role, report)
	}

	return true
}

func (a *Adapter) dropOrderLocked(orderID int64) {
	ref, ok := a.byOrder[orderID]
	if !ok {
		return
	}

	delete(a.byOrder, orderID)

	ids := a.bySpread[ref.spreadOrderID]
	for i, id := range ids {
		if id == orderID {
			a.bySpread[ref.spreadOrderID] = append(ids[:i], ids[i+1:]...)

			break
		}
	}

	if len(a.bySpread[ref.spreadOrderID]) == 0 {
		delete(a.bySpread, ref.spreadOrderID)
	}
}

func isTerminalReport(report types.FillReport) bool {
	switch report.OrderStatus {
	case types.OrderStatusFilled, types.OrderStatusCancelled, types.OrderStatusRejected:
		return true
	default:
		return false
	}
}
