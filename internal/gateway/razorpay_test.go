package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testRazorpay(baseURL string) *Razorpay {
	g := NewRazorpay("rzp_test_key", "rzp_test_secret", 5*time.Second)
	if baseURL != "" {
		g.baseURL = baseURL
	}
	return g
}

func razorpaySignature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayCreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			t.Fatal("expected basic auth with key id and secret")
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		if body["amount"].(float64) != 16000 {
			t.Fatalf("expected amount in paise 16000, got %v", body["amount"])
		}
		if body["receipt"] != "ORD-1" {
			t.Fatalf("expected receipt ORD-1, got %v", body["receipt"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "order_abc", "amount": 16000, "currency": "INR", "status": "created",
		})
	}))
	defer server.Close()

	intent, err := testRazorpay(server.URL).CreateIntent(context.Background(), "ORD-1", 160)
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if intent.ID != "order_abc" {
		t.Fatalf("expected intent id order_abc, got %s", intent.ID)
	}
	if intent.ClientKey != "rzp_test_key" {
		t.Fatalf("expected client key in intent, got %s", intent.ClientKey)
	}
}

func TestRazorpayCreateIntentGatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testRazorpay(server.URL).CreateIntent(context.Background(), "ORD-1", 160)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRazorpayVerifyValidSignature(t *testing.T) {
	g := testRazorpay("")
	proof := Proof{
		IntentID:      "order_abc",
		TransactionID: "pay_xyz",
		Signature:     razorpaySignature("rzp_test_secret", "order_abc", "pay_xyz"),
		PaymentType:   "UPI",
	}

	outcome, err := g.Verify(context.Background(), "order_abc", proof)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.State != OutcomePaid {
		t.Fatalf("expected PAID, got %s", outcome.State)
	}
	if outcome.PaymentID != "pay_xyz" {
		t.Fatalf("expected payment id pay_xyz, got %s", outcome.PaymentID)
	}
	if outcome.PaymentType != "UPI" {
		t.Fatalf("expected payment type UPI, got %s", outcome.PaymentType)
	}
}

func TestRazorpayVerifyTamperedSignature(t *testing.T) {
	g := testRazorpay("")
	proof := Proof{
		IntentID:      "order_abc",
		TransactionID: "pay_xyz",
		Signature:     razorpaySignature("wrong_secret", "order_abc", "pay_xyz"),
	}

	outcome, err := g.Verify(context.Background(), "order_abc", proof)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.State != OutcomeFailed {
		t.Fatalf("expected FAILED for tampered signature, got %s", outcome.State)
	}
	if outcome.FailureReason == "" {
		t.Fatal("expected a failure reason")
	}
}

func TestRazorpayVerifyMissingProof(t *testing.T) {
	g := testRazorpay("")

	_, err := g.Verify(context.Background(), "order_abc", Proof{IntentID: "order_abc"})
	if !errors.Is(err, ErrBadProof) {
		t.Fatalf("expected ErrBadProof, got %v", err)
	}
}

func TestRazorpayVerifyForeignIntent(t *testing.T) {
	g := testRazorpay("")
	proof := Proof{
		IntentID:      "order_other",
		TransactionID: "pay_xyz",
		Signature:     razorpaySignature("rzp_test_secret", "order_other", "pay_xyz"),
	}

	outcome, err := g.Verify(context.Background(), "order_abc", proof)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if outcome.State != OutcomeFailed {
		t.Fatalf("expected FAILED when proof targets another intent, got %s", outcome.State)
	}
}
