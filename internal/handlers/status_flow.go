package handlers

import (
	"strings"

	"storefront/internal/models"
)

// fulfillmentOrder is the canonical forward ordering used for comparisons.
// CANCELLED deliberately has no rank; it is handled as a jump, not a step.
var fulfillmentOrder = []string{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusShipped,
	models.StatusOutOfDelivery,
	models.StatusDelivered,
}

func statusRank(status string) int {
	for i, s := range fulfillmentOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// nextStatus applies candidate to current only when it is strictly later in
// the canonical ordering. A stale or out-of-order carrier ping therefore
// never regresses fulfillment.
func nextStatus(current, candidate string) string {
	currentRank := statusRank(current)
	candidateRank := statusRank(candidate)
	if candidateRank < 0 || candidateRank <= currentRank {
		return current
	}
	return candidate
}

func isFulfillmentStatus(status string) bool {
	return status == models.StatusCancelled || statusRank(status) >= 0
}

// carrierStatusByLabel maps free-text carrier labels to candidate fulfillment
// statuses. Unlisted labels are logged as tracking events with no status
// side effect.
var carrierStatusByLabel = map[string]string{
	"order confirmed":   models.StatusConfirmed,
	"ready for pickup":  models.StatusShipped,
	"handed to courier": models.StatusShipped,
	"shipped":           models.StatusShipped,
	"in transit":        models.StatusShipped,
	"out for delivery":  models.StatusOutOfDelivery,
	"delivered":         models.StatusDelivered,
}

func carrierStatusFor(label string) (string, bool) {
	status, ok := carrierStatusByLabel[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}

// adminEventLabel is the synthesized tracking entry for an administrative
// status change.
func adminEventLabel(status string) (string, string) {
	switch status {
	case models.StatusConfirmed:
		return "Order Confirmed", "Your order has been confirmed"
	case models.StatusShipped:
		return "Ready for Pickup", "Your order is packed and ready for dispatch"
	case models.StatusOutOfDelivery:
		return "Out for Delivery", "Your order is on its way"
	case models.StatusDelivered:
		return "Delivered", "Your order has been delivered"
	case models.StatusCancelled:
		return "Order Cancelled", "Your order has been cancelled"
	default:
		return "Order Received", "We have received your order"
	}
}
