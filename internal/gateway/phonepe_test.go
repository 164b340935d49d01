package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func phonePeTestServer(t *testing.T, tokenCalls *int, statusState string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/oauth/token":
			*tokenCalls++
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parsing token form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "client_credentials" {
				t.Fatalf("unexpected grant type %q", r.PostForm.Get("grant_type"))
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok_123",
				"expires_at":   time.Now().Add(time.Hour).UnixMilli(),
			})
		case r.URL.Path == "/checkout/v2/pay":
			if r.Header.Get("Authorization") != "O-Bearer tok_123" {
				t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderId": "OMO123", "state": "PENDING", "redirectUrl": "https://pay.example/redirect",
			})
		case strings.HasSuffix(r.URL.Path, "/status"):
			if r.Header.Get("Authorization") != "O-Bearer tok_123" {
				t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"orderId":   "OMO123",
				"state":     statusState,
				"errorCode": "TXN_DECLINED",
				"paymentDetails": []map[string]string{
					{"paymentMode": "UPI_QR"},
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func testPhonePe(baseURL string) *PhonePe {
	return NewPhonePe("client", "secret", "M123", baseURL, "http://localhost:3000", 5*time.Second)
}

func TestPhonePeCreateIntent(t *testing.T) {
	tokenCalls := 0
	server := phonePeTestServer(t, &tokenCalls, "COMPLETED")
	defer server.Close()

	g := testPhonePe(server.URL)
	intent, err := g.CreateIntent(context.Background(), "ORD-7", 120)
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if !strings.HasPrefix(intent.ID, "IC_ORD-7_") {
		t.Fatalf("expected merchant order id with IC_ORD-7_ prefix, got %s", intent.ID)
	}
	if intent.RedirectURL == "" {
		t.Fatal("expected redirect url for client continuation")
	}
}

func TestPhonePeTokenCachedAcrossCalls(t *testing.T) {
	tokenCalls := 0
	server := phonePeTestServer(t, &tokenCalls, "COMPLETED")
	defer server.Close()

	g := testPhonePe(server.URL)
	if _, err := g.CreateIntent(context.Background(), "ORD-7", 120); err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if _, err := g.QueryStatus(context.Background(), "IC_ORD-7_1"); err != nil {
		t.Fatalf("QueryStatus returned error: %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("expected a single token fetch, got %d", tokenCalls)
	}
}

func TestPhonePeQueryStatusCompleted(t *testing.T) {
	tokenCalls := 0
	server := phonePeTestServer(t, &tokenCalls, "COMPLETED")
	defer server.Close()

	outcome, err := testPhonePe(server.URL).QueryStatus(context.Background(), "IC_ORD-7_1")
	if err != nil {
		t.Fatalf("QueryStatus returned error: %v", err)
	}
	if outcome.State != OutcomePaid {
		t.Fatalf("expected PAID, got %s", outcome.State)
	}
	if outcome.PaymentType != "UPI_QR" {
		t.Fatalf("expected payment type from gateway, got %s", outcome.PaymentType)
	}
}

func TestPhonePeQueryStatusFailed(t *testing.T) {
	tokenCalls := 0
	server := phonePeTestServer(t, &tokenCalls, "FAILED")
	defer server.Close()

	outcome, err := testPhonePe(server.URL).QueryStatus(context.Background(), "IC_ORD-7_1")
	if err != nil {
		t.Fatalf("QueryStatus returned error: %v", err)
	}
	if outcome.State != OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", outcome.State)
	}
	if outcome.FailureReason != "TXN_DECLINED" {
		t.Fatalf("expected gateway error code as reason, got %s", outcome.FailureReason)
	}
}

func TestPhonePeQueryStatusPendingLeavesOrderAlone(t *testing.T) {
	tokenCalls := 0
	server := phonePeTestServer(t, &tokenCalls, "PENDING")
	defer server.Close()

	outcome, err := testPhonePe(server.URL).QueryStatus(context.Background(), "IC_ORD-7_1")
	if err != nil {
		t.Fatalf("QueryStatus returned error: %v", err)
	}
	if outcome.State != OutcomePending {
		t.Fatalf("expected PENDING, got %s", outcome.State)
	}
}

func TestDecodeWebhook(t *testing.T) {
	inner, _ := json.Marshal(map[string]interface{}{
		"code": "PAYMENT_SUCCESS",
		"data": map[string]string{"merchantOrderId": "IC_ORD-7_1"},
	})
	raw, _ := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(inner),
	})

	event, err := DecodeWebhook(raw)
	if err != nil {
		t.Fatalf("DecodeWebhook returned error: %v", err)
	}
	if !event.WebhookSuccess() {
		t.Fatalf("expected success event, got %+v", event)
	}
	if event.MerchantOrderID != "IC_ORD-7_1" {
		t.Fatalf("expected merchant order id IC_ORD-7_1, got %s", event.MerchantOrderID)
	}
}

func TestDecodeWebhookLegacyTransactionID(t *testing.T) {
	inner, _ := json.Marshal(map[string]interface{}{
		"code": "PAYMENT_SUCCESS",
		"data": map[string]string{"merchantTransactionId": "IC_ORD-9_4"},
	})
	raw, _ := json.Marshal(map[string]string{
		"response": base64.StdEncoding.EncodeToString(inner),
	})

	event, err := DecodeWebhook(raw)
	if err != nil {
		t.Fatalf("DecodeWebhook returned error: %v", err)
	}
	if event.MerchantOrderID != "IC_ORD-9_4" {
		t.Fatalf("expected fallback to merchantTransactionId, got %s", event.MerchantOrderID)
	}
}

func TestDecodeWebhookRejectsGarbage(t *testing.T) {
	if _, err := DecodeWebhook([]byte(`{"response":"not base64!!"}`)); err == nil {
		t.Fatal("expected error for undecodable webhook body")
	}
	if _, err := DecodeWebhook([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing response field")
	}
}
