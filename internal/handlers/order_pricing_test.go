package handlers

import (
	"math"
	"testing"
	"time"

	"storefront/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEffectiveProductPrice(t *testing.T) {
	if got := effectiveProductPrice(100, true, 80); !almostEqual(got, 80) {
		t.Errorf("expected sale price 80, got %v", got)
	}
	if got := effectiveProductPrice(100, false, 80); !almostEqual(got, 100) {
		t.Errorf("sale disabled should keep list price, got %v", got)
	}
	if got := effectiveProductPrice(100, true, 0); !almostEqual(got, 100) {
		t.Errorf("zero sale price should keep list price, got %v", got)
	}
	if got := effectiveProductPrice(100, true, 120); !almostEqual(got, 100) {
		t.Errorf("sale above list price should keep list price, got %v", got)
	}
}

func TestCouponDiscountPercentage(t *testing.T) {
	coupon := &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 10,
		Active:        true,
	}

	if got := couponDiscount(coupon, 1000); !almostEqual(got, 100) {
		t.Errorf("10%% of 1000 should be 100, got %v", got)
	}
}

func TestCouponDiscountFixedCapped(t *testing.T) {
	coupon := &models.Coupon{
		Code:          "FLAT500",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 500,
		Active:        true,
	}

	if got := couponDiscount(coupon, 300); !almostEqual(got, 300) {
		t.Errorf("fixed discount must cap at subtotal, got %v", got)
	}
	if got := couponDiscount(coupon, 800); !almostEqual(got, 500) {
		t.Errorf("fixed discount below subtotal should apply fully, got %v", got)
	}
}

func TestSalePriceAndPercentageCouponTogether(t *testing.T) {
	// Two units at a sale price of 80 with a 25% coupon on top.
	unit := effectiveProductPrice(100, true, 80)
	subtotal := unit * 2
	if !almostEqual(subtotal, 160) {
		t.Fatalf("expected subtotal 160, got %v", subtotal)
	}

	coupon := &models.Coupon{
		Code:          "FLASH25",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: 25,
		Active:        true,
	}
	discount := couponDiscount(coupon, subtotal)
	if !almostEqual(discount, 40) {
		t.Errorf("expected discount 40, got %v", discount)
	}
	if total := subtotal - discount; !almostEqual(total, 120) {
		t.Errorf("expected total 120, got %v", total)
	}
}

func TestCouponIssue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	minValue := 500.0
	maxUses := 3

	valid := &models.Coupon{Active: true, ExpiresAt: &future}
	if issue := couponIssue(valid, 100, now); issue != "" {
		t.Errorf("valid coupon should apply, got %q", issue)
	}

	inactive := &models.Coupon{Active: false}
	if issue := couponIssue(inactive, 100, now); issue == "" {
		t.Error("inactive coupon should be rejected")
	}

	expired := &models.Coupon{Active: true, ExpiresAt: &past}
	if issue := couponIssue(expired, 100, now); issue == "" {
		t.Error("expired coupon should be rejected")
	}

	exhausted := &models.Coupon{Active: true, MaxUses: &maxUses, UsedCount: 3}
	if issue := couponIssue(exhausted, 100, now); issue == "" {
		t.Error("exhausted coupon should be rejected")
	}

	belowMinimum := &models.Coupon{Active: true, MinOrderValue: &minValue}
	if issue := couponIssue(belowMinimum, 499.99, now); issue == "" {
		t.Error("subtotal below minimum should be rejected")
	}
	if issue := couponIssue(belowMinimum, 500, now); issue != "" {
		t.Errorf("subtotal at minimum should apply, got %q", issue)
	}

	remaining := &models.Coupon{Active: true, MaxUses: &maxUses, UsedCount: 2}
	if issue := couponIssue(remaining, 100, now); issue != "" {
		t.Errorf("coupon with remaining uses should apply, got %q", issue)
	}
}
