package orderfeed

import (
	"sync"

	"github.com/azuric/pairs/internal/types"
)

// SimRouter is a paper implementation of Router for tests and scenario
// replay. Submitted orders fill at their limit price, optionally split into
// several partial executions. Reports are queued and only delivered when
// Pump is called, so fill delivery never re-enters the caller of Submit.
type SimRouter struct {
	mu sync.Mutex
	// fillSlices is how many executions each order is filled in.
	fillSlices int
	reject     map[string]struct{}
	queue      []types.FillReport
	deliver    func(report types.FillReport)
}

// NewSimRouter creates a SimRouter filling each order in fillSlices
// executions (minimum 1).
func NewSimRouter(fillSlices int) *SimRouter {
	if fillSlices < 1 {
		fillSlices = 1
	}

	return &SimRouter{
		fillSlices: fillSlices,
		reject:     make(map[string]struct{}),
	}
}

// Bind installs the report sink, typically Adapter.ProcessExecutionReport.
func (r *SimRouter) Bind(deliver func(report types.FillReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliver = deliver
}

// RejectSymbol makes every subsequent order on the symbol reject.
func (r *SimRouter) RejectSymbol(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reject[symbol] = struct{}{}
}

// Submit implements Router.
func (r *SimRouter) Submit(order types.LegOrder, spreadOrderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reject[order.Symbol]; ok {
		r.queue = append(r.queue, types.FillReport{
			OrderID:     order.ID,
			ExecType:    types.ExecTypeRejected,
			OrderStatus: types.OrderStatusRejected,
			Side:        order.Side,
			Text:        "rejected by simulation",
		})

		return nil
	}

	r.queue = append(r.queue, types.FillReport{
		OrderID:     order.ID,
		ExecType:    types.ExecTypeNew,
		OrderStatus: types.OrderStatusNew,
		Side:        order.Side,
	})

	sliceQty := order.Quantity / float64(r.fillSlices)
	filled := 0.0

	for i := 0; i < r.fillSlices; i++ {
		qty := sliceQty
		status := types.OrderStatusPartiallyFilled

		if i == r.fillSlices-1 {
			qty = order.Quantity - filled
			status = types.OrderStatusFilled
		}

		filled += qty
		r.queue = append(r.queue, types.FillReport{
			OrderID:     order.ID,
			ExecType:    types.ExecTypeTrade,
			OrderStatus: status,
			FilledQty:   filled,
			LastPrice:   order.Price,
			LastQty:     qty,
			Side:        order.Side,
		})
	}

	return nil
}

// Cancel implements Router. Queued unfilled reports for the order are
// replaced by a cancellation report.
func (r *SimRouter) Cancel(order types.LegOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.queue[:0]
	for _, report := range r.queue {
		if report.OrderID != order.ID {
			kept = append(kept, report)
		}
	}

	r.queue = kept
	r.queue = append(r.queue, types.FillReport{
		OrderID:     order.ID,
		ExecType:    types.ExecTypeCancelled,
		OrderStatus: types.OrderStatusCancelled,
		Side:        order.Side,
		Text:        "cancelled",
	})

	return nil
}

// Replace implements Router. The simulation fills at the original price, so
// a replace only acknowledges.
func (r *SimRouter) Replace(order types.LegOrder, price, quantity float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue = append(r.queue, types.FillReport{
		OrderID:     order.ID,
		ExecType:    types.ExecTypeReplaced,
		OrderStatus: types.OrderStatusNew,
		LastPrice:   price,
		Side:        order.Side,
	})

	return nil
}

// Pump delivers queued reports one at a time until the queue drains. Reports
// enqueued while pumping (for example a hedge submitted on a primary fill)
// are delivered in the same call.
func (r *SimRouter) Pump() {
	for {
		r.mu.Lock()

		if len(r.queue) == 0 || r.deliver == nil {
			r.mu.Unlock()

			return
		}

		report := r.queue[0]
		r.queue = r.queue[1:]
		deliver := r.deliver
		r.mu.Unlock()

		deliver(report)
	}
}
