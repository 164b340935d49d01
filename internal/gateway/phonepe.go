package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cached OAuth tokens are refreshed this long before their reported expiry.
const tokenRefreshBuffer = 60 * time.Second

// PhonePe is the token-gated, poll-or-webhook gateway. Order create and
// status query both ride an OAuth client-credentials token; settlement news
// can also arrive out-of-band as a base64-encoded webhook.
type PhonePe struct {
	clientID     string
	clientSecret string
	merchantID   string
	baseURL      string
	frontendURL  string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewPhonePe(clientID, clientSecret, merchantID, baseURL, frontendURL string, timeout time.Duration) *PhonePe {
	return &PhonePe{
		clientID:     clientID,
		clientSecret: clientSecret,
		merchantID:   merchantID,
		baseURL:      baseURL,
		frontendURL:  frontendURL,
		client:       &http.Client{Timeout: timeout},
	}
}

func (g *PhonePe) Name() string { return "phonepe" }

func (g *PhonePe) MerchantID() string { return g.merchantID }

type phonePeTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (g *PhonePe) getAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.expiresAt.Add(-tokenRefreshBuffer)) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("client_version", "1")
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", unavailable(g.Name(), fmt.Errorf("oauth token returned %d", resp.StatusCode))
	}

	var token phonePeTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", unavailable(g.Name(), err)
	}
	if token.AccessToken == "" {
		return "", unavailable(g.Name(), fmt.Errorf("oauth response missing access token"))
	}

	g.accessToken = token.AccessToken
	if token.ExpiresAt > 0 {
		g.expiresAt = time.UnixMilli(token.ExpiresAt)
	} else {
		g.expiresAt = time.Now().Add(time.Hour)
	}
	return g.accessToken, nil
}

type phonePePayResponse struct {
	OrderID     string `json:"orderId"`
	State       string `json:"state"`
	RedirectURL string `json:"redirectUrl"`
	Message     string `json:"message"`
}

func (g *PhonePe) CreateIntent(ctx context.Context, orderRef string, amount float64) (IntentRef, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return IntentRef{}, err
	}

	merchantOrderID := fmt.Sprintf("IC_%s_%d", orderRef, time.Now().UnixMilli())

	payload := map[string]interface{}{
		"merchantOrderId": merchantOrderID,
		"amount":          minorUnits(amount),
		"expireAfter":     1200,
		"metaInfo": map[string]string{
			"udf1": orderRef,
			"udf2": uuid.NewString(),
		},
		"paymentFlow": map[string]interface{}{
			"type":    "PG_CHECKOUT",
			"message": fmt.Sprintf("Payment for order %s", orderRef),
			"merchantUrls": map[string]string{
				"redirectUrl": fmt.Sprintf("%s/payment/phonepe/callback?merchantOrderId=%s", g.frontendURL, merchantOrderID),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout/v2/pay", bytes.NewReader(body))
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return IntentRef{}, unavailable(g.Name(), fmt.Errorf("pay returned %d", resp.StatusCode))
	}

	var pay phonePePayResponse
	if err := json.NewDecoder(resp.Body).Decode(&pay); err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	if pay.RedirectURL == "" {
		return IntentRef{}, unavailable(g.Name(), fmt.Errorf("pay response missing redirect url"))
	}

	return IntentRef{ID: merchantOrderID, RedirectURL: pay.RedirectURL}, nil
}

type phonePeStatusResponse struct {
	OrderID        string `json:"orderId"`
	State          string `json:"state"`
	ErrorCode      string `json:"errorCode"`
	PaymentDetails []struct {
		PaymentMode string `json:"paymentMode"`
	} `json:"paymentDetails"`
}

// Verify never trusts the caller: it polls gateway-side state for the intent.
func (g *PhonePe) Verify(ctx context.Context, intentRef string, proof Proof) (Outcome, error) {
	ref := intentRef
	if ref == "" {
		ref = proof.IntentID
	}
	if ref == "" {
		return Outcome{}, fmt.Errorf("%w: merchant order id required", ErrBadProof)
	}
	return g.QueryStatus(ctx, ref)
}

func (g *PhonePe) QueryStatus(ctx context.Context, intentRef string) (Outcome, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/checkout/v2/order/%s/status", g.baseURL, intentRef), nil)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, unavailable(g.Name(), fmt.Errorf("status query returned %d", resp.StatusCode))
	}

	var status phonePeStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}

	switch status.State {
	case "COMPLETED":
		paymentType := "UPI"
		if len(status.PaymentDetails) > 0 && status.PaymentDetails[0].PaymentMode != "" {
			paymentType = status.PaymentDetails[0].PaymentMode
		}
		paymentID := status.OrderID
		if paymentID == "" {
			paymentID = intentRef
		}
		return Outcome{State: OutcomePaid, PaymentID: paymentID, PaymentType: paymentType}, nil
	case "FAILED":
		reason := status.ErrorCode
		if reason == "" {
			reason = "payment failed"
		}
		return Outcome{State: OutcomeFailed, FailureReason: reason}, nil
	default:
		return Outcome{State: OutcomePending}, nil
	}
}

// WebhookEvent is a decoded out-of-band PhonePe notification.
type WebhookEvent struct {
	Code            string
	MerchantOrderID string
}

type phonePeWebhookPayload struct {
	Response string `json:"response"`
}

type phonePeWebhookBody struct {
	Code string `json:"code"`
	Data struct {
		MerchantOrderID       string `json:"merchantOrderId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
	} `json:"data"`
}

// DecodeWebhook unwraps the base64-encoded JSON PhonePe pushes. Pure; no
// network involved.
func DecodeWebhook(raw []byte) (WebhookEvent, error) {
	var payload phonePeWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook payload: %w", err)
	}
	if payload.Response == "" {
		return WebhookEvent{}, fmt.Errorf("webhook payload missing response")
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Response)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook response decode: %w", err)
	}

	var body phonePeWebhookBody
	if err := json.Unmarshal(decoded, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook response parse: %w", err)
	}

	ref := body.Data.MerchantOrderID
	if ref == "" {
		ref = body.Data.MerchantTransactionID
	}
	return WebhookEvent{Code: body.Code, MerchantOrderID: ref}, nil
}

// WebhookSuccess reports whether the event announces a settled payment.
func (e WebhookEvent) WebhookSuccess() bool {
	return e.Code == "PAYMENT_SUCCESS" && e.MerchantOrderID != ""
}
