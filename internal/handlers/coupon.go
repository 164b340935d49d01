package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type validateCouponRequest struct {
	Code     string  `json:"code" binding:"required"`
	Subtotal float64 `json:"subtotal"`
}

// ValidateCoupon is the pre-checkout dry run. It reports the same rejection
// reasons that order creation enforces, plus a discount preview, without
// consuming a use.
func ValidateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupons/validate"
		defer handlePanic(c, route)

		var req validateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		if req.Subtotal < 0 {
			respondWithError(c, http.StatusBadRequest, route, "subtotal cannot be negative")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var coupon models.Coupon
		code := strings.ToUpper(strings.TrimSpace(req.Code))
		err := db.Collection("coupons").FindOne(ctx, bson.M{"code": code}).Decode(&coupon)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "Invalid coupon code"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		if reason := couponIssue(&coupon, req.Subtotal, time.Now()); reason != "" {
			c.JSON(http.StatusOK, gin.H{"valid": false, "reason": reason})
			return
		}

		discount := couponDiscount(&coupon, req.Subtotal)
		c.JSON(http.StatusOK, gin.H{
			"valid":        true,
			"code":         coupon.Code,
			"discountType": coupon.DiscountType,
			"discount":     discount,
			"total":        req.Subtotal - discount,
		})
	}
}

type couponPayload struct {
	Code          string     `json:"code" binding:"required"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discountType" binding:"required"`
	DiscountValue float64    `json:"discountValue" binding:"required"`
	MinOrderValue *float64   `json:"minOrderValue"`
	MaxUses       *int       `json:"maxUses"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	Active        *bool      `json:"active"`
}

func (p couponPayload) issue() string {
	if p.DiscountType != models.DiscountPercentage && p.DiscountType != models.DiscountFixed {
		return "discountType must be percentage or fixed"
	}
	if p.DiscountValue <= 0 {
		return "discountValue must be positive"
	}
	if p.DiscountType == models.DiscountPercentage && p.DiscountValue > 100 {
		return "percentage discount cannot exceed 100"
	}
	if p.MinOrderValue != nil && *p.MinOrderValue < 0 {
		return "minOrderValue cannot be negative"
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return "maxUses must be positive"
	}
	return ""
}

// ListCoupons returns every coupon for the admin screen, newest first.
func ListCoupons(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("coupons").Find(
			ctx,
			bson.M{},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		coupons := []models.Coupon{}
		if err := cursor.All(ctx, &coupons); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, coupons)
	}
}

// CreateCoupon inserts a new coupon. Codes are stored upper-cased and the
// unique index turns duplicates into a clean client error.
func CreateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/coupons"
		defer handlePanic(c, route)

		var req couponPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		if issue := req.issue(); issue != "" {
			respondWithError(c, http.StatusBadRequest, route, issue)
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		coupon := models.Coupon{
			ID:            primitive.NewObjectID(),
			Code:          strings.ToUpper(strings.TrimSpace(req.Code)),
			Description:   req.Description,
			DiscountType:  req.DiscountType,
			DiscountValue: req.DiscountValue,
			MinOrderValue: req.MinOrderValue,
			MaxUses:       req.MaxUses,
			ExpiresAt:     req.ExpiresAt,
			Active:        active,
			CreatedAt:     time.Now(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("coupons").InsertOne(ctx, coupon); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusBadRequest, route, "coupon code already exists")
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusCreated, coupon)
	}
}

// UpdateCoupon replaces the editable fields of a coupon. The usage counter is
// deliberately not editable; it only moves through order creation.
func UpdateCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/coupons/:id"
		defer handlePanic(c, route)

		couponID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req couponPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}
		if issue := req.issue(); issue != "" {
			respondWithError(c, http.StatusBadRequest, route, issue)
			return
		}

		set := bson.M{
			"code":          strings.ToUpper(strings.TrimSpace(req.Code)),
			"description":   req.Description,
			"discountType":  req.DiscountType,
			"discountValue": req.DiscountValue,
			"minOrderValue": req.MinOrderValue,
			"maxUses":       req.MaxUses,
			"expiresAt":     req.ExpiresAt,
		}
		if req.Active != nil {
			set["active"] = *req.Active
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res := db.Collection("coupons").FindOneAndUpdate(
			ctx,
			bson.M{"_id": couponID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		)

		var coupon models.Coupon
		if err := res.Decode(&coupon); err != nil {
			if err == mongo.ErrNoDocuments {
				c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
				return
			}
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusBadRequest, route, "coupon code already exists")
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, coupon)
	}
}

// DeleteCoupon removes a coupon. Orders that already used it keep their
// frozen discount.
func DeleteCoupon(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		couponID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("coupons").DeleteOne(ctx, bson.M{"_id": couponID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "coupon deleted"})
	}
}
