// Package notify holds the Notification and Document collaborators. Both are
// best-effort: a failure here is logged and never propagated into an order
// operation.
package notify

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"storefront/internal/models"
)

// Notifier sends order emails through SendGrid. A Notifier with no API key is
// disabled and silently drops sends, so local setups work without credentials.
type Notifier struct {
	client *sendgrid.Client
	from   string
}

func NewNotifier(apiKey, fromEmail string) *Notifier {
	n := &Notifier{from: fromEmail}
	if apiKey != "" {
		n.client = sendgrid.NewSendClient(apiKey)
	}
	return n
}

var statusUpdateLines = map[string]string{
	models.StatusConfirmed:     "Your order has been confirmed and is being prepared.",
	models.StatusShipped:       "Your order has shipped.",
	models.StatusOutOfDelivery: "Your order is out for delivery and will arrive today.",
	models.StatusDelivered:     "Your order has been delivered. Thank you for shopping with us!",
	models.StatusCancelled:     "Your order has been cancelled.",
}

// SendOrderConfirmation mails the order summary, attaching the rendered
// invoice when one is available.
func (n *Notifier) SendOrderConfirmation(order *models.Order, recipient string, invoice []byte) error {
	if n.client == nil || recipient == "" {
		return nil
	}

	subject := fmt.Sprintf("Order Confirmation - %s", order.OrderNumber)

	var lines strings.Builder
	fmt.Fprintf(&lines, "<p>Thank you for your order <strong>%s</strong>.</p><ul>", order.OrderNumber)
	for _, item := range order.Items {
		fmt.Fprintf(&lines, "<li>%s x%d - %.2f</li>", item.Name, item.Quantity, item.Price)
	}
	fmt.Fprintf(&lines, "</ul><p>Total: <strong>%.2f</strong></p>", order.TotalAmount)
	if order.Discount > 0 {
		fmt.Fprintf(&lines, "<p>Discount applied: %.2f (%s)</p>", order.Discount, order.CouponCode)
	}
	fmt.Fprintf(&lines, "<p>Payment method: %s</p>", order.PaymentMethod)

	message := mail.NewSingleEmail(
		mail.NewEmail("", n.from),
		subject,
		mail.NewEmail(order.Shipping.Name, recipient),
		fmt.Sprintf("Thank you for your order %s. Total: %.2f", order.OrderNumber, order.TotalAmount),
		lines.String(),
	)

	if len(invoice) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(invoice))
		attachment.SetType("application/pdf")
		attachment.SetFilename(order.InvoiceNumber + ".pdf")
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := n.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d", response.StatusCode)
	}
	return nil
}

// SendStatusUpdate mails a fulfillment status change.
func (n *Notifier) SendStatusUpdate(order *models.Order, recipient, newStatus string) error {
	if n.client == nil || recipient == "" {
		return nil
	}

	line, ok := statusUpdateLines[newStatus]
	if !ok {
		line = fmt.Sprintf("Your order status is now %s.", newStatus)
	}

	subject := fmt.Sprintf("Order %s - %s", order.OrderNumber, newStatus)
	html := fmt.Sprintf("<p>%s</p><p>Order number: <strong>%s</strong></p>", line, order.OrderNumber)

	message := mail.NewSingleEmail(
		mail.NewEmail("", n.from),
		subject,
		mail.NewEmail(order.Shipping.Name, recipient),
		line,
		html,
	)

	response, err := n.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d", response.StatusCode)
	}
	return nil
}

// LogFailure is the shared sink for best-effort send errors.
func LogFailure(kind string, err error) {
	if err != nil {
		log.Printf("[NOTIFY] [ERROR] %s failed: %v", kind, err)
	}
}
