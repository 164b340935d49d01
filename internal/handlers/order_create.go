package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
	"storefront/internal/notify"
)

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type createOrderShippingRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	Zip     string `json:"zip" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
}

type createOrderRequest struct {
	Items         []createOrderItemRequest   `json:"items" binding:"required"`
	Shipping      createOrderShippingRequest `json:"shipping" binding:"required"`
	CouponCode    string                     `json:"couponCode"`
	PaymentMethod string                     `json:"paymentMethod" binding:"required"`
}

/* =========================
   DOMAIN ERRORS
========================= */

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

type couponRejectedError struct {
	Code   string
	Reason string
}

func (e couponRejectedError) Error() string {
	return "coupon rejected: " + e.Reason
}

/* =========================
   CREATE ORDER
========================= */

// CreateOrder validates the cart, prices it, and commits the order, the stock
// decrements, the coupon usage and the initial tracking event as one
// transaction. Notification and invoice rendering run after commit and can
// never undo it.
func CreateOrder(db *mongo.Database, notifier *notify.Notifier, documents *notify.DocumentClient, estimatedDeliveryDays int) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		userID := userIDFromContext(c)
		if userID.IsZero() {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		order, itemIDs, err := buildOrderFromRequest(req, userID, estimatedDeliveryDays)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items := make([]models.OrderItem, 0, len(req.Items))
			subtotal := 0.0

			for i, requested := range req.Items {
				productID := itemIDs[i]

				var product models.Product
				err := db.Collection("products").FindOne(
					sessCtx,
					bson.M{
						"_id":       productID,
						"isDeleted": bson.M{"$ne": true},
					},
				).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: productID}
				}
				if err != nil {
					return nil, err
				}

				if product.Stock < requested.Quantity {
					return nil, outOfStockError{
						ProductID: productID,
						Available: product.Stock,
						Requested: requested.Quantity,
					}
				}

				unitPrice := effectiveProductPrice(product.Price, product.SaleEnabled, product.SalePrice)
				items = append(items, models.OrderItem{
					ProductID: productID,
					Name:      product.Name,
					Price:     unitPrice,
					Quantity:  requested.Quantity,
				})
				subtotal += unitPrice * float64(requested.Quantity)

				// Guarded decrement: a concurrent order that drained stock
				// since the read above makes this match nothing, and the
				// whole transaction rolls back.
				filter := bson.M{
					"_id":       productID,
					"isDeleted": bson.M{"$ne": true},
					"stock":     bson.M{"$gte": requested.Quantity},
				}
				update := bson.M{"$inc": bson.M{"stock": -requested.Quantity}}

				res, err := db.Collection("products").UpdateOne(sessCtx, filter, update)
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, outOfStockError{
						ProductID: productID,
						Available: product.Stock,
						Requested: requested.Quantity,
					}
				}
			}

			order.Items = items
			order.Subtotal = subtotal
			order.TotalAmount = subtotal

			if req.CouponCode != "" {
				code := strings.ToUpper(strings.TrimSpace(req.CouponCode))

				var coupon models.Coupon
				err := db.Collection("coupons").FindOne(sessCtx, bson.M{"code": code}).Decode(&coupon)
				if err == mongo.ErrNoDocuments {
					return nil, couponRejectedError{Code: code, Reason: "Invalid coupon code"}
				}
				if err != nil {
					return nil, err
				}

				if issue := couponIssue(&coupon, subtotal, time.Now()); issue != "" {
					return nil, couponRejectedError{Code: code, Reason: issue}
				}

				// Usage-limited coupons re-check the limit in the filter so
				// two concurrent orders cannot both take the last use.
				filter := bson.M{"_id": coupon.ID}
				if coupon.MaxUses != nil {
					filter["usedCount"] = bson.M{"$lt": *coupon.MaxUses}
				}
				res, err := db.Collection("coupons").UpdateOne(sessCtx, filter, bson.M{"$inc": bson.M{"usedCount": 1}})
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, couponRejectedError{Code: code, Reason: "This coupon has reached its usage limit"}
				}

				order.CouponCode = coupon.Code
				order.Discount = couponDiscount(&coupon, subtotal)
				order.TotalAmount = subtotal - order.Discount
			}

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}
			return nil, nil
		})
		if err != nil {
			var stockErr outOfStockError
			if errors.As(err, &stockErr) {
				c.JSON(http.StatusConflict, gin.H{
					"error":     "Insufficient stock",
					"productId": stockErr.ProductID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
				return
			}
			var notFoundErr productNotFoundError
			if errors.As(err, &notFoundErr) {
				c.JSON(http.StatusConflict, gin.H{
					"error":     "Product not found",
					"productId": notFoundErr.ProductID.Hex(),
				})
				return
			}
			var couponErr couponRejectedError
			if errors.As(err, &couponErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  couponErr.Reason,
					"coupon": couponErr.Code,
				})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[ORDER] [INFO] order created:", order.OrderNumber)

		go dispatchOrderConfirmation(db, notifier, documents, order)

		c.JSON(http.StatusCreated, order)
	}
}

func buildOrderFromRequest(req createOrderRequest, userID primitive.ObjectID, estimatedDeliveryDays int) (*models.Order, []primitive.ObjectID, error) {
	if len(req.Items) == 0 {
		return nil, nil, errors.New("cart is empty")
	}

	switch req.PaymentMethod {
	case models.MethodCOD, models.MethodRazorpay, models.MethodPhonePe, models.MethodPayPal:
	default:
		return nil, nil, errors.New("invalid payment method")
	}

	itemIDs := make([]primitive.ObjectID, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, nil, errors.New("invalid productId")
		}
		if item.Quantity <= 0 {
			return nil, nil, errors.New("quantity must be greater than zero")
		}
		itemIDs = append(itemIDs, productID)
	}

	now := time.Now()
	suffix := strings.ToUpper(uuid.NewString()[:4])
	orderNumber := fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)

	paymentStatus := models.PaymentPending
	if req.PaymentMethod == models.MethodCOD {
		paymentStatus = models.PaymentCODPending
	}

	order := &models.Order{
		OrderNumber:   orderNumber,
		InvoiceNumber: strings.Replace(orderNumber, "ORD-", "INV-", 1),
		TrackingToken: uuid.NewString(),
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		Status:        models.StatusPending,
		Shipping: models.ShippingInfo{
			Name:    strings.TrimSpace(req.Shipping.Name),
			Address: strings.TrimSpace(req.Shipping.Address),
			City:    strings.TrimSpace(req.Shipping.City),
			State:   strings.TrimSpace(req.Shipping.State),
			Zip:     strings.TrimSpace(req.Shipping.Zip),
			Phone:   strings.TrimSpace(req.Shipping.Phone),
		},
		EstimatedDeliveryDays: estimatedDeliveryDays,
		TrackingEvents: []models.TrackingEvent{
			{
				ID:          primitive.NewObjectID(),
				Status:      "Order Received",
				Description: "We have received your order",
				CreatedAt:   now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	return order, itemIDs, nil
}

// dispatchOrderConfirmation runs detached from the order transaction. Any
// failure is logged and dropped.
func dispatchOrderConfirmation(db *mongo.Database, notifier *notify.Notifier, documents *notify.DocumentClient, order *models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipient := lookupRecipient(ctx, db, order.UserID)
	if recipient == "" {
		return
	}

	invoice, err := documents.RenderInvoice(ctx, order, recipient)
	notify.LogFailure("invoice render", err)

	notify.LogFailure("order confirmation", notifier.SendOrderConfirmation(order, recipient, invoice))
}

func lookupRecipient(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) string {
	var user models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		log.Println("[NOTIFY] [ERROR] recipient lookup failed:", err)
		return ""
	}
	return user.Email
}
