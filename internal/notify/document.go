package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/models"
)

// DocumentClient talks to the external invoice rendering service. With no
// base URL configured it is disabled and RenderInvoice returns nothing.
type DocumentClient struct {
	baseURL string
	client  *http.Client
}

func NewDocumentClient(baseURL string) *DocumentClient {
	return &DocumentClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

// RenderInvoice posts the order snapshot and returns the rendered PDF bytes.
func (d *DocumentClient) RenderInvoice(ctx context.Context, order *models.Order, recipient string) ([]byte, error) {
	if d.baseURL == "" {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"order":     order,
		"recipient": recipient,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/invoices", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoice service returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
