package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fulfillment statuses in canonical forward order. CANCELLED sits outside
// the ordering and is reachable from any non-terminal state.
const (
	StatusPending       = "PENDING"
	StatusConfirmed     = "CONFIRMED"
	StatusShipped       = "SHIPPED"
	StatusOutOfDelivery = "OUT_OF_DELIVERY"
	StatusDelivered     = "DELIVERED"
	StatusCancelled     = "CANCELLED"
)

// Payment statuses.
const (
	PaymentPending    = "PENDING"
	PaymentCODPending = "COD_PENDING"
	PaymentPaid       = "PAID"
	PaymentFailed     = "FAILED"
)

// Payment methods: one tag per gateway plus cash on delivery.
const (
	MethodCOD      = "COD"
	MethodRazorpay = "RAZORPAY"
	MethodPhonePe  = "PHONEPE"
	MethodPayPal   = "PAYPAL"
)

// OrderItem is a single order line. Price is the unit price frozen at order
// time; it never re-reads the product.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// TrackingEvent is one append-only entry in the order's tracking log.
type TrackingEvent struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Status      string             `bson:"status" json:"status"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// ShippingInfo is the address snapshot copied onto the order at creation.
// Later address-book edits must not leak into existing orders.
type ShippingInfo struct {
	Name    string `bson:"name" json:"name"`
	Address string `bson:"address" json:"address"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	Zip     string `bson:"zip" json:"zip"`
	Phone   string `bson:"phone" json:"phone"`
}

// Order is the persisted order aggregate.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber   string             `bson:"orderNumber" json:"orderNumber"`
	InvoiceNumber string             `bson:"invoiceNumber" json:"invoiceNumber"`
	TrackingToken string             `bson:"trackingToken" json:"trackingToken"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`

	Items       []OrderItem `bson:"items" json:"items"`
	Subtotal    float64     `bson:"subtotal" json:"subtotal"`
	Discount    float64     `bson:"discount" json:"discount"`
	CouponCode  string      `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	TotalAmount float64     `bson:"totalAmount" json:"totalAmount"`

	PaymentMethod string `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus string `bson:"paymentStatus" json:"paymentStatus"`
	PaymentID     string `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	// PayPal separates the created order id from the final capture id, so the
	// intent reference keeps its own field instead of being overwritten.
	PaypalOrderID string     `bson:"paypalOrderId,omitempty" json:"paypalOrderId,omitempty"`
	PaymentType   string     `bson:"paymentType,omitempty" json:"paymentType,omitempty"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	PaidAt        *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`

	Status                string          `bson:"status" json:"status"`
	EstimatedDeliveryDays int             `bson:"estimatedDeliveryDays" json:"estimatedDeliveryDays"`
	TrackingEvents        []TrackingEvent `bson:"trackingEvents" json:"trackingEvents"`

	Shipping  ShippingInfo `bson:"shipping" json:"shipping"`
	CreatedAt time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// IsTerminal reports whether no further fulfillment transition is allowed.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

// IsPayable reports whether a payment attempt may still be started or
// confirmed for this order.
func (o *Order) IsPayable() bool {
	return o.PaymentStatus != PaymentPaid && o.Status != StatusCancelled
}
