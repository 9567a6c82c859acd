package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// ExecutionStatus is the lifecycle state of one spread execution.
type ExecutionStatus string

const (
	ExecutionStatusInitialized     ExecutionStatus = "INITIALIZED"
	ExecutionStatusInProgress      ExecutionStatus = "IN_PROGRESS"
	ExecutionStatusPartiallyFilled ExecutionStatus = "PARTIALLY_FILLED"
	ExecutionStatusCompleted       ExecutionStatus = "COMPLETED"
	ExecutionStatusCancelled       ExecutionStatus = "CANCELLED"
	ExecutionStatusFailed          ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the status ends the execution lifecycle.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusCancelled || s == ExecutionStatusFailed
}

// StatusEvent is emitted on every spread execution status change.
type StatusEvent struct {
	SpreadOrderID int64           `yaml:"spread_order_id" json:"spread_order_id"`
	Status        ExecutionStatus `yaml:"status" json:"status"`
	Message       string          `yaml:"message" json:"message"`
	Timestamp     time.Time       `yaml:"timestamp" json:"timestamp"`
}

// ExecutionResult summarizes one spread execution.
type ExecutionResult struct {
	SpreadOrderID int64           `yaml:"spread_order_id" json:"spread_order_id"`
	Status        ExecutionStatus `yaml:"status" json:"status"`
	StartTime     time.Time       `yaml:"start_time" json:"start_time"`
	// EndTime is set once the execution reaches a terminal status.
	EndTime      optional.Option[time.Time] `yaml:"end_time" json:"end_time"`
	ErrorMessage string                     `yaml:"error_message" json:"error_message"`
}

// ExecType classifies a fill report.
type ExecType string

const (
	ExecTypeNew       ExecType = "NEW"
	ExecTypeTrade     ExecType = "TRADE"
	ExecTypeCancelled ExecType = "CANCELLED"
	ExecTypeReplaced  ExecType = "REPLACED"
	ExecTypeRejected  ExecType = "REJECTED"
)

// OrderStatus is the routing collaborator's view of one leg order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// FillReport is an execution report from the order-routing collaborator.
type FillReport struct {
	OrderID     int64       `yaml:"order_id" json:"order_id"`
	ExecType    ExecType    `yaml:"exec_type" json:"exec_type"`
	OrderStatus OrderStatus `yaml:"order_status" json:"order_status"`
	// FilledQty is the cumulative filled quantity on the order.
	FilledQty float64 `yaml:"filled_qty" json:"filled_qty"`
	// LastPrice and LastQty describe the most recent execution.
	LastPrice float64 `yaml:"last_price" json:"last_price"`
	LastQty   float64 `yaml:"last_qty" json:"last_qty"`
	Side      Side    `yaml:"side" json:"side"`
	Text      string  `yaml:"text" json:"text"`
}

// ExecutionStats aggregates spread execution outcomes across a manager.
type ExecutionStats struct {
	Total             int                        `yaml:"total" json:"total"`
	Completed         int                        `yaml:"completed" json:"completed"`
	Failed            int                        `yaml:"failed" json:"failed"`
	Cancelled         int                        `yaml:"cancelled" json:"cancelled"`
	LastExecutionTime optional.Option[time.Time] `yaml:"last_execution_time" json:"last_execution_time"`
}
