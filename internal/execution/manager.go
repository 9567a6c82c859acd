// Package execution replicates orders on synthetic ratio instruments by
// sequencing real orders on their two constituent legs.
package execution

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/azuric/pairs/internal/logger"
	"github.com/azuric/pairs/internal/orderfeed"
	"github.com/azuric/pairs/internal/refdata"
	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// Manager is the external-facing spread execution API: a concurrency-safe
// registry of coordinators keyed by spread-order id. It routes fill reports
// and price updates to coordinators and aggregates execution statistics.
type Manager struct {
	mu           sync.Mutex
	instruments  refdata.Repository
	prices       PriceSource
	adapter      *orderfeed.Adapter
	log          *logger.Logger
	coordinators map[int64]*Coordinator
	stats        types.ExecutionStats
	subscribers  []StatusCallback
}

// NewManager creates a Manager and binds itself as the adapter's routed-fill
// handler.
func NewManager(instruments refdata.Repository, prices PriceSource, adapter *orderfeed.Adapter, log *logger.Logger) *Manager {
	m := &Manager{
		instruments:  instruments,
		prices:       prices,
		adapter:      adapter,
		log:          log,
		coordinators: make(map[int64]*Coordinator),
	}

	adapter.Bind(m.routeFill)

	return m
}

// Submit validates the request, builds a coordinator and starts it. The
// returned result reflects the immediate outcome: InProgress when execution
// started, Failed otherwise. A failure in one submission never affects other
// registered coordinators.
func (m *Manager) Submit(order types.SpreadOrder, params types.ExecutionParams) (result types.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("spread submission panicked",
				zap.Int64("spread_order_id", order.ID),
				zap.Any("panic", r),
			)

			result = failedResult(order.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := order.Validate(); err != nil {
		return failedResult(order.ID, err.Error())
	}

	if err := params.Validate(); err != nil {
		return failedResult(order.ID, err.Error())
	}

	numerator, denominator, err := m.resolveLegs(order.Symbol)
	if err != nil {
		return failedResult(order.ID, err.Error())
	}

	if order.ID == 0 {
		order.ID = m.adapter.NextSpreadOrderID()
	}

	onStatus := StatusCallback(m.handleStatus)
	coordinator := NewCoordinator(order, params, numerator, denominator, m.prices, m.adapter, &onStatus, m.log)

	m.mu.Lock()
	if _, exists := m.coordinators[order.ID]; exists {
		m.mu.Unlock()

		return failedResult(order.ID, fmt.Sprintf("spread order %d is already executing", order.ID))
	}

	m.coordinators[order.ID] = coordinator
	m.stats.Total++
	m.mu.Unlock()

	if err := coordinator.StartExecution(); err != nil {
		return coordinator.Result()
	}

	return coordinator.Result()
}

// Status returns the execution status for a spread order. Unknown ids
// degrade to Failed.
func (m *Manager) Status(spreadOrderID int64) types.ExecutionStatus {
	if coordinator := m.coordinator(spreadOrderID); coordinator != nil {
		return coordinator.Status()
	}

	return types.ExecutionStatusFailed
}

// Position returns the spread position for a spread order. Unknown ids
// return an empty position.
func (m *Manager) Position(spreadOrderID int64) types.SpreadPosition {
	if coordinator := m.coordinator(spreadOrderID); coordinator != nil {
		return coordinator.Position()
	}

	return types.SpreadPosition{}
}

// Cancel cancels a spread execution. Unknown ids are a silent no-op.
func (m *Manager) Cancel(spreadOrderID int64) {
	if coordinator := m.coordinator(spreadOrderID); coordinator != nil {
		coordinator.Cancel()
	}
}

// OnFillReport feeds an execution report from the order-routing collaborator
// through the adapter to the owning coordinator.
func (m *Manager) OnFillReport(report types.FillReport) {
	if !m.adapter.ProcessExecutionReport(report) {
		m.log.Debug("fill report not handled", zap.Int64("order_id", report.OrderID))
	}
}

// OnPrice fans a constituent price update out to every active coordinator;
// each decides relevance by its own instruments.
func (m *Manager) OnPrice(instrumentID int) {
	for _, coordinator := range m.activeCoordinators() {
		coordinator.OnPriceUpdate(instrumentID)
	}
}

// SubscribeStatus registers a subscriber for re-broadcast status events.
func (m *Manager) SubscribeStatus(callback StatusCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers = append(m.subscribers, callback)
}

// Stats returns a snapshot of the aggregated execution statistics.
func (m *Manager) Stats() types.ExecutionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

// ActiveCount returns the number of registered, non-terminal executions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.coordinators)
}

func (m *Manager) coordinator(spreadOrderID int64) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.coordinators[spreadOrderID]
}

func (m *Manager) activeCoordinators() []*Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	coordinators := make([]*Coordinator, 0, len(m.coordinators))
	for _, coordinator := range m.coordinators {
		coordinators = append(coordinators, coordinator)
	}

	return coordinators
}

func (m *Manager) routeFill(spreadOrderID int64, role types.LegRole, report types.FillReport) {
	coordinator := m.coordinator(spreadOrderID)
	if coordinator == nil {
		m.log.Debug("fill report for unknown spread order", zap.Int64("spread_order_id", spreadOrderID))

		return
	}

	coordinator.OnFillReport(role, report)
}

// handleStatus deregisters coordinators on terminal status, updates counters
// and re-broadcasts the event to subscribers.
func (m *Manager) handleStatus(event types.StatusEvent) {
	m.mu.Lock()

	if event.Status.IsTerminal() {
		delete(m.coordinators, event.SpreadOrderID)

		switch event.Status {
		case types.ExecutionStatusCompleted:
			m.stats.Completed++
		case types.ExecutionStatusFailed:
			m.stats.Failed++
		case types.ExecutionStatusCancelled:
			m.stats.Cancelled++
		}

		m.stats.LastExecutionTime = optional.Some(event.Timestamp)
	}

	subscribers := make([]StatusCallback, len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(event)
	}
}

// resolveLegs parses a synthetic symbol of the form "NUM/DEN", resolves the
// synthetic instrument itself and both constituents.
func (m *Manager) resolveLegs(symbol string) (types.Instrument, types.Instrument, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return types.Instrument{}, types.Instrument{},
			errors.Newf(errors.ErrCodeInvalidSymbol, "malformed synthetic symbol %q, want NUM/DEN", symbol)
	}

	synth, err := m.instruments.BySymbol(symbol)
	if err != nil {
		return types.Instrument{}, types.Instrument{}, err
	}

	if !synth.IsSynthetic() {
		return types.Instrument{}, types.Instrument{},
			errors.Newf(errors.ErrCodeNotSynthetic, "instrument %q is not synthetic", symbol)
	}

	numerator, err := m.instruments.BySymbol(parts[0])
	if err != nil {
		return types.Instrument{}, types.Instrument{}, err
	}

	denominator, err := m.instruments.BySymbol(parts[1])
	if err != nil {
		return types.Instrument{}, types.Instrument{}, err
	}

	return numerator, denominator, nil
}

func failedResult(spreadOrderID int64, message string) types.ExecutionResult {
	now := time.Now()

	return types.ExecutionResult{
		SpreadOrderID: spreadOrderID,
		Status:        types.ExecutionStatusFailed,
		StartTime:     now,
		EndTime:       optional.Some(now),
		ErrorMessage:  message,
	}
}
