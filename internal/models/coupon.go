package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coupon discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Coupon defines a promotion code. Code is stored upper-cased and unique.
// UsedCount only ever increases, exactly once per order that applies it.
type Coupon struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code          string             `bson:"code" json:"code"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType  string             `bson:"discountType" json:"discountType"`
	DiscountValue float64            `bson:"discountValue" json:"discountValue"`
	MinOrderValue *float64           `bson:"minOrderValue,omitempty" json:"minOrderValue,omitempty"`
	MaxUses       *int               `bson:"maxUses,omitempty" json:"maxUses,omitempty"`
	UsedCount     int                `bson:"usedCount" json:"usedCount"`
	ExpiresAt     *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	Active        bool               `bson:"active" json:"active"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}
