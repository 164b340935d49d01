package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
	"storefront/internal/notify"
)

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus is the administrative transition. Admins may skip ahead
// in the ordering, but terminal orders are frozen. Every change appends a
// synthesized tracking event and triggers a best-effort status email.
func UpdateOrderStatus(db *mongo.Database, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil || !isFulfillmentStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		if order.IsTerminal() {
			c.JSON(http.StatusConflict, gin.H{"error": "order is in a terminal state", "status": order.Status})
			return
		}
		if order.Status == req.Status {
			c.JSON(http.StatusOK, order)
			return
		}

		now := time.Now()
		label, description := adminEventLabel(req.Status)
		event := models.TrackingEvent{
			ID:          primitive.NewObjectID(),
			Status:      label,
			Description: description,
			CreatedAt:   now,
		}

		set := bson.M{"status": req.Status, "updatedAt": now}
		// Cash on delivery settles at the door: delivering a COD order is
		// also its payment confirmation.
		if req.Status == models.StatusDelivered && order.PaymentStatus == models.PaymentCODPending {
			set["paymentStatus"] = models.PaymentPaid
			set["paidAt"] = now
		}

		// The read status rides in the filter so two transitions racing from
		// the same snapshot cannot both apply.
		res, err := db.Collection("orders").UpdateOne(ctx, bson.M{"_id": orderID, "status": order.Status}, bson.M{
			"$set":  set,
			"$push": bson.M{"trackingEvents": event},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "order was updated concurrently, retry"})
			return
		}

		log.Printf("[ORDER] [INFO] %s status %s -> %s", order.OrderNumber, order.Status, req.Status)

		go dispatchStatusUpdate(db, notifier, &order, req.Status)

		order.Status = req.Status
		order.TrackingEvents = append(order.TrackingEvents, event)
		c.JSON(http.StatusOK, order)
	}
}

type addTrackingEventRequest struct {
	Status      string `json:"status" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// AddTrackingEvent records a carrier event. The label is mapped to a
// candidate fulfillment status and applied only when strictly later than the
// current one; the event itself is always appended.
func AddTrackingEvent(db *mongo.Database, notifier *notify.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/tracking"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req addTrackingEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		now := time.Now()
		event := models.TrackingEvent{
			ID:          primitive.NewObjectID(),
			Status:      req.Status,
			Description: req.Description,
			Location:    req.Location,
			CreatedAt:   now,
		}

		newStatus := order.Status
		if candidate, ok := carrierStatusFor(req.Status); ok && !order.IsTerminal() {
			newStatus = nextStatus(order.Status, candidate)
		}

		update := bson.M{
			"$push": bson.M{"trackingEvents": event},
			"$set":  bson.M{"updatedAt": now},
		}
		// When the event moves the status, the read status rides in the
		// filter: a concurrent transition from the same snapshot loses the
		// race instead of regressing fulfillment.
		filter := bson.M{"_id": orderID}
		if newStatus != order.Status {
			update["$set"] = bson.M{"updatedAt": now, "status": newStatus}
			filter["status"] = order.Status
		}

		res, err := db.Collection("orders").UpdateOne(ctx, filter, update)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.MatchedCount == 0 {
			if newStatus != order.Status {
				c.JSON(http.StatusConflict, gin.H{"error": "order was updated concurrently, retry"})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		if newStatus != order.Status {
			log.Printf("[ORDER] [INFO] %s carrier event %q moved status %s -> %s", order.OrderNumber, req.Status, order.Status, newStatus)
			go dispatchStatusUpdate(db, notifier, &order, newStatus)
		}

		c.JSON(http.StatusCreated, gin.H{"event": event, "status": newStatus})
	}
}

// DeleteTrackingEvent removes one log entry. The event log is an audit trail
// for display; removal never re-evaluates the order status.
func DeleteTrackingEvent(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id/tracking/:eventId"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		eventID, err := primitive.ObjectIDFromHex(c.Param("eventId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("orders").UpdateOne(
			ctx,
			bson.M{"_id": orderID},
			bson.M{"$pull": bson.M{"trackingEvents": bson.M{"_id": eventID}}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if res.ModifiedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "tracking event not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "tracking event deleted"})
	}
}

func dispatchStatusUpdate(db *mongo.Database, notifier *notify.Notifier, order *models.Order, newStatus string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipient := lookupRecipient(ctx, db, order.UserID)
	if recipient == "" {
		return
	}
	notify.LogFailure("status update", notifier.SendStatusUpdate(order, recipient, newStatus))
}
