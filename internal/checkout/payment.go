package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/domain"
)

// SessionClient requests hosted-payment sessions from the order
// backend. The browser is then handed the returned URL for a full
// navigation; this client's involvement ends there.
type SessionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSessionClient(baseURL string) *SessionClient {
	return &SessionClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionRequest struct {
	Items         []domain.DraftItem `json:"items"`
	CustomerEmail string             `json:"customerEmail"`
	FormData      Form               `json:"formData"`
}

// Create posts the draft and returns the hosted session URL.
func (c *SessionClient) Create(ctx context.Context, draft domain.OrderDraft, form Form) (string, error) {
	body, err := json.Marshal(sessionRequest{
		Items:         draft.Items,
		CustomerEmail: draft.Email,
		FormData:      form,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders/checkout-session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("checkout session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("checkout session: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("checkout session: decode response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("checkout session: response missing url")
	}
	return out.URL, nil
}
