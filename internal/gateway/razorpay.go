package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const razorpayDefaultBaseURL = "https://api.razorpay.com"

// Razorpay is the signature-verified gateway: order create is synchronous,
// the client completes payment in-browser and returns an
// {orderID, paymentID, signature} triple which the server re-signs itself.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpay(keyID, keySecret string, timeout time.Duration) *Razorpay {
	return &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   razorpayDefaultBaseURL,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *Razorpay) Name() string { return "razorpay" }

// ClientKey is the publishable key id the checkout widget needs.
func (g *Razorpay) ClientKey() string { return g.keyID }

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (g *Razorpay) CreateIntent(ctx context.Context, orderRef string, amount float64) (IntentRef, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   minorUnits(amount),
		"currency": "INR",
		"receipt":  orderRef,
	})
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IntentRef{}, unavailable(g.Name(), fmt.Errorf("order create returned %d", resp.StatusCode))
	}

	var created razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}

	return IntentRef{
		ID:          created.ID,
		ClientKey:   g.keyID,
		AmountMinor: created.Amount,
		Currency:    created.Currency,
	}, nil
}

// Verify recomputes the HMAC-SHA256 of "orderID|paymentID" with the key
// secret and compares it against the signature the client brought back. No
// gateway round-trip is needed; the secret never left the server.
func (g *Razorpay) Verify(_ context.Context, intentRef string, proof Proof) (Outcome, error) {
	if proof.IntentID == "" || proof.TransactionID == "" || proof.Signature == "" {
		return Outcome{}, fmt.Errorf("%w: missing verification parameters", ErrBadProof)
	}
	if intentRef != "" && proof.IntentID != intentRef {
		return Outcome{
			State:         OutcomeFailed,
			FailureReason: "payment signature does not match this order",
		}, nil
	}

	expected := g.sign(proof.IntentID + "|" + proof.TransactionID)
	if !hmac.Equal([]byte(expected), []byte(proof.Signature)) {
		return Outcome{
			State:         OutcomeFailed,
			FailureReason: "invalid payment signature",
		}, nil
	}

	paymentType := proof.PaymentType
	if paymentType == "" {
		paymentType = "Online Payment"
	}
	return Outcome{
		State:       OutcomePaid,
		PaymentID:   proof.TransactionID,
		PaymentType: paymentType,
	}, nil
}

func (g *Razorpay) QueryStatus(ctx context.Context, intentRef string) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/orders/"+intentRef, nil)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, unavailable(g.Name(), fmt.Errorf("status query returned %d", resp.StatusCode))
	}

	var order razorpayOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}

	if order.Status == "paid" {
		return Outcome{State: OutcomePaid, PaymentID: order.ID}, nil
	}
	return Outcome{State: OutcomePending}, nil
}

func (g *Razorpay) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
