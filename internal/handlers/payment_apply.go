package handlers

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"storefront/internal/gateway"
	"storefront/internal/models"
)

// reconcileOutcome merges a gateway-settled outcome into the order's payment
// fields and returns the mongo update to persist, or changed=false when the
// outcome must not touch the order. Pure; the caller owns persistence.
//
// Rules: a PAID outcome on an already-PAID order is a no-op (duplicate and
// re-ordered deliveries are expected); paidAt is set exactly once; a FAILED
// outcome cancels the order but never overrides an earlier success; a PENDING
// outcome never mutates anything. Fulfillment status stays PENDING on
// success - confirming an order is an administrative decision, not a payment
// side effect.
func reconcileOutcome(order *models.Order, outcome gateway.Outcome, method string, now time.Time) (bson.M, bool) {
	switch outcome.State {
	case gateway.OutcomePaid:
		if order.PaymentStatus == models.PaymentPaid {
			return nil, false
		}
		set := bson.M{
			"paymentStatus": models.PaymentPaid,
			"paymentMethod": method,
			"paidAt":        now,
			"updatedAt":     now,
		}
		if outcome.PaymentID != "" {
			set["paymentId"] = outcome.PaymentID
		}
		if outcome.PaymentType != "" {
			set["paymentType"] = outcome.PaymentType
		}
		return set, true

	case gateway.OutcomeFailed:
		if order.PaymentStatus == models.PaymentPaid {
			return nil, false
		}
		reason := outcome.FailureReason
		if reason == "" {
			reason = "payment failed"
		}
		return bson.M{
			"paymentStatus": models.PaymentFailed,
			"status":        models.StatusCancelled,
			"paymentMethod": method,
			"failureReason": reason,
			"updatedAt":     now,
		}, true

	default:
		return nil, false
	}
}
