package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/cache"
	"storefront/internal/gateway"
	"storefront/internal/models"
)

// PaymentGateways bundles the three adapters. Handlers resolve one by the
// :gateway route param and only ever use the common interface.
type PaymentGateways struct {
	Razorpay *gateway.Razorpay
	PhonePe  *gateway.PhonePe
	PayPal   *gateway.PayPal
}

// byName returns the adapter and the payment method tag recorded on orders.
func (pg PaymentGateways) byName(name string) (gateway.Gateway, string, bool) {
	switch name {
	case "razorpay":
		return pg.Razorpay, models.MethodRazorpay, true
	case "phonepe":
		return pg.PhonePe, models.MethodPhonePe, true
	case "paypal":
		return pg.PayPal, models.MethodPayPal, true
	default:
		return nil, "", false
	}
}

// intentUpdate maps a fresh intent onto the order field that stores it.
// PayPal keeps its order id separate so the capture id can take paymentId
// later without losing the intent mapping.
func intentUpdate(name, intentID string, now time.Time) bson.M {
	field := "paymentId"
	if name == "paypal" {
		field = "paypalOrderId"
	}
	return bson.M{field: intentID, "updatedAt": now}
}

func storedIntentRef(name string, order *models.Order) string {
	if name == "paypal" {
		return order.PaypalOrderID
	}
	return order.PaymentID
}

type createPaymentRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// CreatePaymentOrder starts a payment attempt: ownership check, payability
// check, gateway intent, and persistence of the intent reference. The charge
// amount is always the order's stored total, never a client-supplied figure.
func CreatePaymentOrder(db *mongo.Database, gateways PaymentGateways) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/:gateway/create-order"
		defer handlePanic(c, route)

		gw, _, ok := gateways.byName(c.Param("gateway"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment gateway"})
			return
		}

		var req createPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		order, ok := loadOwnedOrder(c, db, req.OrderID)
		if !ok {
			return
		}
		if !order.IsPayable() {
			c.JSON(http.StatusConflict, gin.H{"error": "order is not payable", "paymentStatus": order.PaymentStatus})
			return
		}

		intent, err := gw.CreateIntent(c.Request.Context(), order.OrderNumber, order.TotalAmount)
		if err != nil {
			log.Printf("[PAYMENT] [ERROR] %s create intent failed: %v", gw.Name(), err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable, try again"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		_, err = db.Collection("orders").UpdateOne(
			ctx,
			bson.M{"_id": order.ID},
			bson.M{"$set": intentUpdate(gw.Name(), intent.ID, time.Now())},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Printf("[PAYMENT] [INFO] %s intent %s created for %s", gw.Name(), intent.ID, order.OrderNumber)
		c.JSON(http.StatusOK, intent)
	}
}

type confirmPaymentRequest struct {
	OrderID string `json:"orderId" binding:"required"`

	// Razorpay signature triple.
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`

	// PhonePe poll reference.
	MerchantOrderID string `json:"merchantOrderId"`

	// PayPal capture reference.
	PaypalOrderID string `json:"paypalOrderId"`

	PaymentType string `json:"paymentType"`
}

func (r confirmPaymentRequest) proof(gatewayName string) gateway.Proof {
	switch gatewayName {
	case "razorpay":
		return gateway.Proof{
			IntentID:      r.RazorpayOrderID,
			TransactionID: r.RazorpayPaymentID,
			Signature:     r.RazorpaySignature,
			PaymentType:   r.PaymentType,
		}
	case "phonepe":
		return gateway.Proof{IntentID: r.MerchantOrderID, PaymentType: r.PaymentType}
	default:
		return gateway.Proof{IntentID: r.PaypalOrderID, PaymentType: r.PaymentType}
	}
}

// ConfirmPayment reconciles a caller-driven confirmation. Trust is always
// re-derived server-side by the adapter; a transport failure leaves the
// order untouched and retryable, only a definitive decline cancels it.
func ConfirmPayment(db *mongo.Database, gateways PaymentGateways) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/:gateway/verify"
		defer handlePanic(c, route)

		gw, method, ok := gateways.byName(c.Param("gateway"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment gateway"})
			return
		}

		var req confirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		order, ok := loadOwnedOrder(c, db, req.OrderID)
		if !ok {
			return
		}

		if order.PaymentStatus == models.PaymentPaid {
			// Duplicate confirmation of a settled order is a no-op.
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "payment already verified", "order": order})
			return
		}
		if order.Status == models.StatusCancelled {
			c.JSON(http.StatusConflict, gin.H{"error": "order is cancelled"})
			return
		}

		// Confirmation is only meaningful against an intent this service
		// created; otherwise a proof from some other, cheaper payment could
		// settle this order.
		intentRef := storedIntentRef(gw.Name(), order)
		if intentRef == "" {
			c.JSON(http.StatusConflict, gin.H{"error": "no payment attempt recorded for this order"})
			return
		}

		outcome, err := gw.Verify(c.Request.Context(), intentRef, req.proof(gw.Name()))
		if err != nil {
			if errors.Is(err, gateway.ErrBadProof) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Printf("[PAYMENT] [ERROR] %s verify failed for %s: %v", gw.Name(), order.OrderNumber, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable, retry confirmation"})
			return
		}

		applyAndRespond(c, db, order, outcome, method)
	}
}

// PhonePeWebhook is the out-of-band sink for gateway B. No session
// accompanies the call, so the order is located purely by the stored
// merchant order id. Replays are filtered by the redis guard and, failing
// that, by the PAID no-op in reconciliation.
func PhonePeWebhook(db *mongo.Database, guard *cache.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/phonepe/webhook"
		defer handlePanic(c, route)

		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
			return
		}

		event, err := gateway.DecodeWebhook(raw)
		if err != nil {
			log.Println("[PAYMENT] [ERROR] webhook decode failed:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
			return
		}

		if !event.WebhookSuccess() {
			log.Printf("[PAYMENT] [INFO] webhook ignored, code=%s", event.Code)
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		seen, err := guard.Seen(ctx, "phonepe-webhook", event.MerchantOrderID)
		if err != nil {
			log.Println("[PAYMENT] [ERROR] webhook dedup check failed:", err)
		}
		if err == nil && seen {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "duplicate delivery"})
			return
		}

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"paymentId": event.MerchantOrderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			log.Printf("[PAYMENT] [ERROR] webhook for unknown reference %s", event.MerchantOrderID)
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		now := time.Now()
		set, changed := reconcileOutcome(&order, gateway.Outcome{State: gateway.OutcomePaid, PaymentID: event.MerchantOrderID}, models.MethodPhonePe, now)
		if changed {
			if _, err := db.Collection("orders").UpdateOne(ctx, bson.M{"_id": order.ID}, bson.M{"$set": set}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
				return
			}
			log.Printf("[PAYMENT] [INFO] webhook settled %s", order.OrderNumber)
		}

		// Marked only after the write landed: a failed apply must stay
		// retryable across the gateway's redeliveries.
		if _, err := guard.MarkOnce(ctx, "phonepe-webhook", event.MerchantOrderID, 24*time.Hour); err != nil {
			log.Println("[PAYMENT] [ERROR] webhook dedup mark failed:", err)
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// PaymentConfig exposes the publishable gateway identifiers the frontend
// needs to start a checkout.
func PaymentConfig(gateways PaymentGateways) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"razorpay": gin.H{"key": gateways.Razorpay.ClientKey()},
			"phonepe":  gin.H{"merchantId": gateways.PhonePe.MerchantID()},
			"paypal":   gin.H{"clientId": gateways.PayPal.ClientKey()},
		})
	}
}

func applyAndRespond(c *gin.Context, db *mongo.Database, order *models.Order, outcome gateway.Outcome, method string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	now := time.Now()
	set, changed := reconcileOutcome(order, outcome, method, now)
	if changed {
		if _, err := db.Collection("orders").UpdateOne(ctx, bson.M{"_id": order.ID}, bson.M{"$set": set}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
	}

	switch outcome.State {
	case gateway.OutcomePaid:
		order.PaymentStatus = models.PaymentPaid
		order.PaymentMethod = method
		order.PaidAt = &now
		if outcome.PaymentID != "" {
			order.PaymentID = outcome.PaymentID
		}
		if outcome.PaymentType != "" {
			order.PaymentType = outcome.PaymentType
		}
		log.Printf("[PAYMENT] [INFO] %s paid via %s", order.OrderNumber, method)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "payment verified", "order": order})
	case gateway.OutcomeFailed:
		log.Printf("[PAYMENT] [INFO] %s payment failed: %s", order.OrderNumber, outcome.FailureReason)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "payment failed",
			"reason":  outcome.FailureReason,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "payment not completed"})
	}
}

// loadOwnedOrder fetches an order and enforces row-level ownership for the
// requester. Writes its own error responses; the bool reports success.
func loadOwnedOrder(c *gin.Context, db *mongo.Database, rawID string) (*models.Order, bool) {
	orderID, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return nil, false
	}

	userID := userIDFromContext(c)
	if userID.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var order models.Order
	err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID, "userId": userID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return nil, false
	}

	return &order, true
}
