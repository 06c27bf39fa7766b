// Package lifecycle defines the legal state transitions for orders and
// mandates. Every status change in the system goes through these tables;
// anything not listed here is treated as an illegal transition and ignored.
package lifecycle

import (
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

var orderEdges = map[types.OrderStatus][]types.OrderStatus{
	types.OrderQueued:    {types.OrderSubmitted, types.OrderFailed},
	types.OrderSubmitted: {types.OrderAccepted, types.OrderRejected, types.OrderFailed, types.OrderAllotted, types.OrderCancelled},
	types.OrderAccepted:  {types.OrderAllotted, types.OrderCancelled},
}

var mandateEdges = map[types.MandateStatus][]types.MandateStatus{
	types.MandateCreated:   {types.MandateSubmitted, types.MandateRejected},
	types.MandateSubmitted: {types.MandateApproved, types.MandateRejected, types.MandateCancelled, types.MandateExpired},
	types.MandateApproved:  {types.MandateCancelled, types.MandateExpired},
}

// CanTransitionOrder reports whether an order may move from one status to
// another. Terminal statuses have no outgoing edges.
func CanTransitionOrder(from, to types.OrderStatus) bool {
	for _, next := range orderEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionMandate(from, to types.MandateStatus) bool {
	for _, next := range mandateEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderTerminal reports whether no further transitions are possible.
func OrderTerminal(s types.OrderStatus) bool {
	return len(orderEdges[s]) == 0
}

func MandateTerminal(s types.MandateStatus) bool {
	return len(mandateEdges[s]) == 0
}

// PollableOrderStatuses lists the statuses the reconciliation poller asks the
// partner about: orders already handed over but not yet in a terminal state.
func PollableOrderStatuses() []types.OrderStatus {
	return []types.OrderStatus{types.OrderSubmitted, types.OrderAccepted}
}

func PollableMandateStatuses() []types.MandateStatus {
	return []types.MandateStatus{types.MandateSubmitted, types.MandateApproved}
}
