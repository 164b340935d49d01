package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// PayPal is the two-phase create/capture gateway. The create step only opens
// an order on the gateway; the capture round-trip is the authoritative
// success signal regardless of what the client claims.
type PayPal struct {
	clientID     string
	clientSecret string
	baseURL      string
	frontendURL  string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewPayPal(clientID, clientSecret, baseURL, frontendURL string, timeout time.Duration) *PayPal {
	return &PayPal{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		frontendURL:  frontendURL,
		client:       &http.Client{Timeout: timeout},
	}
}

func (g *PayPal) Name() string { return "paypal" }

func (g *PayPal) ClientKey() string { return g.clientID }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (g *PayPal) getAccessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.expiresAt.Add(-tokenRefreshBuffer)) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.clientID, g.clientSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", unavailable(g.Name(), fmt.Errorf("oauth token returned %d", resp.StatusCode))
	}

	var token paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", unavailable(g.Name(), err)
	}
	if token.AccessToken == "" {
		return "", unavailable(g.Name(), fmt.Errorf("oauth response missing access token"))
	}

	g.accessToken = token.AccessToken
	g.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return g.accessToken, nil
}

type paypalOrderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Links         []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PaymentSource *struct {
		Card *struct {
			Brand string `json:"brand"`
		} `json:"card"`
		PayPal *struct{} `json:"paypal"`
	} `json:"payment_source"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (g *PayPal) CreateIntent(ctx context.Context, orderRef string, amount float64) (IntentRef, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return IntentRef{}, err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": orderRef,
				"description":  fmt.Sprintf("Order %s", orderRef),
				"amount": map[string]string{
					"currency_code": "USD",
					"value":         fmt.Sprintf("%.2f", amount),
				},
			},
		},
		"application_context": map[string]string{
			"landing_page": "BILLING",
			"user_action":  "PAY_NOW",
			"return_url":   g.frontendURL + "/payment/success",
			"cancel_url":   g.frontendURL + "/payment/cancel",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", "return=representation")

	resp, err := g.client.Do(req)
	if err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return IntentRef{}, unavailable(g.Name(), fmt.Errorf("order create returned %d", resp.StatusCode))
	}

	var created paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return IntentRef{}, unavailable(g.Name(), err)
	}

	ref := IntentRef{ID: created.ID, Currency: "USD"}
	for _, link := range created.Links {
		if link.Rel == "approve" {
			ref.RedirectURL = link.Href
			break
		}
	}
	return ref, nil
}

// Verify captures the order. Whatever the create step said, only a COMPLETED
// capture counts as paid.
func (g *PayPal) Verify(ctx context.Context, intentRef string, proof Proof) (Outcome, error) {
	ref := intentRef
	if ref == "" {
		ref = proof.IntentID
	}
	if ref == "" {
		return Outcome{}, fmt.Errorf("%w: paypal order id required", ErrBadProof)
	}

	token, err := g.getAccessToken(ctx)
	if err != nil {
		return Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/checkout/orders/"+ref+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Outcome{}, unavailable(g.Name(), fmt.Errorf("capture returned %d", resp.StatusCode))
	}

	var captured paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&captured); err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}

	if captured.Status != "COMPLETED" {
		return Outcome{
			State:         OutcomeFailed,
			FailureReason: fmt.Sprintf("payment status: %s", captured.Status),
		}, nil
	}

	paymentID := captured.ID
	if len(captured.PurchaseUnits) > 0 && len(captured.PurchaseUnits[0].Payments.Captures) > 0 {
		paymentID = captured.PurchaseUnits[0].Payments.Captures[0].ID
	}

	return Outcome{
		State:       OutcomePaid,
		PaymentID:   paymentID,
		PaymentType: paypalPaymentType(captured),
	}, nil
}

func (g *PayPal) QueryStatus(ctx context.Context, intentRef string) (Outcome, error) {
	token, err := g.getAccessToken(ctx)
	if err != nil {
		return Outcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v2/checkout/orders/"+intentRef, nil)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, unavailable(g.Name(), fmt.Errorf("status query returned %d", resp.StatusCode))
	}

	var order paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return Outcome{}, unavailable(g.Name(), err)
	}

	if order.Status == "COMPLETED" {
		return Outcome{State: OutcomePaid, PaymentID: order.ID, PaymentType: paypalPaymentType(order)}, nil
	}
	return Outcome{State: OutcomePending}, nil
}

// paypalPaymentType derives the human-readable instrument from the capture
// response shape.
func paypalPaymentType(resp paypalOrderResponse) string {
	if resp.PaymentSource == nil {
		return "PayPal"
	}
	if resp.PaymentSource.Card != nil {
		if resp.PaymentSource.Card.Brand != "" {
			return resp.PaymentSource.Card.Brand + " Card"
		}
		return "Card"
	}
	if resp.PaymentSource.PayPal != nil {
		return "PayPal Wallet"
	}
	return "PayPal"
}
