// internal/service/payment/paylink_client.go
package paymentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"modelmart-service/internal/domain/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PayLinkClient talks to the external payment provider's pay-link API. The
// provider's ledger is opaque to us; we only create links and receive
// webhooks.
type PayLinkClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPayLinkClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *PayLinkClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayLinkClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type createPayLinkRequest struct {
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Metadata       string  `json:"metadata"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type createPayLinkResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreatePayLink asks the provider for a hosted checkout link carrying our
// structured metadata key, which comes back verbatim on the webhook.
func (c *PayLinkClient) CreatePayLink(ctx context.Context, amount float64, currency, metadata string) (*payment.PayLink, error) {
	body, err := json.Marshal(createPayLinkRequest{
		Amount:         amount,
		Currency:       currency,
		Metadata:       metadata,
		IdempotencyKey: uuid.New().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pay link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/paylink/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build pay link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pay link request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("pay link provider rejected request",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return nil, fmt.Errorf("pay link provider returned status %d", resp.StatusCode)
	}

	var out createPayLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode pay link response: %w", err)
	}

	return &payment.PayLink{
		ID:       out.ID,
		URL:      out.URL,
		Amount:   amount,
		Currency: currency,
	}, nil
}
