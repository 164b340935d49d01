package handlers

import (
	"fmt"
	"time"

	"storefront/internal/models"
)

func isProductOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

// effectiveProductPrice is the unit price frozen into an order line: the sale
// price when a valid sale is running, the list price otherwise.
func effectiveProductPrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if isProductOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}

// couponIssue explains why a coupon cannot be applied to the given subtotal,
// or returns "" when it can. The same checks back both the validate-only
// endpoint and order creation, so the two paths cannot disagree.
func couponIssue(coupon *models.Coupon, subtotal float64, now time.Time) string {
	if !coupon.Active {
		return "This coupon is no longer active"
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now) {
		return "This coupon has expired"
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return "This coupon has reached its usage limit"
	}
	if coupon.MinOrderValue != nil && subtotal < *coupon.MinOrderValue {
		return fmt.Sprintf("Minimum order value is %.2f", *coupon.MinOrderValue)
	}
	return ""
}

// couponDiscount computes the discount amount. A fixed discount is capped at
// the subtotal so the order total can never go negative.
func couponDiscount(coupon *models.Coupon, subtotal float64) float64 {
	if coupon.DiscountType == models.DiscountPercentage {
		return subtotal * coupon.DiscountValue / 100
	}
	if coupon.DiscountValue > subtotal {
		return subtotal
	}
	return coupon.DiscountValue
}
