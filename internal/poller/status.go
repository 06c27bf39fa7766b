package poller

import (
	"strings"

	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// MapOrderStatus translates partner order status tokens into local statuses.
// Unknown tokens map to "" and the order is left for the next cycle.
func MapOrderStatus(status string) types.OrderStatus {
	switch normalize(status) {
	case "ALLOTTED", "ALLOTMENT_DONE":
		return types.OrderAllotted
	case "ACCEPTED", "VALIDATED":
		return types.OrderAccepted
	case "REJECTED":
		return types.OrderRejected
	case "CANCELLED":
		return types.OrderCancelled
	case "FAILED":
		return types.OrderFailed
	default:
		return ""
	}
}

func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "-", "_")
}
