package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// MyOrders lists the requester's own orders, newest first.
func MyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := userIDFromContext(c)
		if userID.IsZero() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("orders").Find(
			ctx,
			bson.M{"userId": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		orders := []models.Order{}
		if err := cursor.All(ctx, &orders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

// GetOrder returns one order. Row-level ownership: the requester must own the
// order or carry the admin role.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
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

		if order.UserID != userIDFromContext(c) && !isAdminRequest(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

// ListOrders is the admin listing with pagination and an optional status
// filter.
func ListOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pagination"})
			return
		}

		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			if !isFulfillmentStatus(status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		cursor, err := db.Collection("orders").Find(
			ctx,
			filter,
			options.Find().
				SetSort(bson.D{{Key: "createdAt", Value: -1}}).
				SetSkip((page-1)*limit).
				SetLimit(limit),
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		orders := []models.Order{}
		if err := cursor.All(ctx, &orders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		totalPages := total / limit
		if total%limit != 0 {
			totalPages++
		}

		c.JSON(http.StatusOK, gin.H{
			"data": orders,
			"meta": gin.H{
				"total":      total,
				"page":       page,
				"limit":      limit,
				"totalPages": totalPages,
			},
		})
	}
}

// trackedOrderResponse is the redacted public snapshot: no user id, no
// payment references, no full customer record.
type trackedOrderResponse struct {
	OrderNumber           string                 `json:"orderNumber"`
	Status                string                 `json:"status"`
	PaymentStatus         string                 `json:"paymentStatus"`
	Items                 []models.OrderItem     `json:"items"`
	Subtotal              float64                `json:"subtotal"`
	Discount              float64                `json:"discount"`
	TotalAmount           float64                `json:"totalAmount"`
	EstimatedDeliveryDays int                    `json:"estimatedDeliveryDays"`
	ShippingCity          string                 `json:"shippingCity"`
	ShippingState         string                 `json:"shippingState"`
	CreatedAt             time.Time              `json:"createdAt"`
	TrackingEvents        []models.TrackingEvent `json:"trackingEvents"`
}

// TrackOrder is the unauthenticated lookup by tracking token, with a legacy
// fallback by order number.
func TrackOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, bson.M{"trackingToken": token}).Decode(&order)
		if err == mongo.ErrNoDocuments {
			err = db.Collection("orders").FindOne(ctx, bson.M{"orderNumber": token}).Decode(&order)
		}
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		events := make([]models.TrackingEvent, len(order.TrackingEvents))
		copy(events, order.TrackingEvents)
		// Newest first for display.
		sort.Slice(events, func(i, j int) bool {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		})

		c.JSON(http.StatusOK, trackedOrderResponse{
			OrderNumber:           order.OrderNumber,
			Status:                order.Status,
			PaymentStatus:         order.PaymentStatus,
			Items:                 order.Items,
			Subtotal:              order.Subtotal,
			Discount:              order.Discount,
			TotalAmount:           order.TotalAmount,
			EstimatedDeliveryDays: order.EstimatedDeliveryDays,
			ShippingCity:          order.Shipping.City,
			ShippingState:         order.Shipping.State,
			CreatedAt:             order.CreatedAt,
			TrackingEvents:        events,
		})
	}
}
