// internal/service/inference/http_provider.go
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	xerrors "modelmart-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// HTTPProvider is the default Invoker: a JSON-over-HTTP gateway in front of
// the actual model hosts.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHTTPProvider(baseURL, apiKey string, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		// No client-level timeout; the TimeoutInvoker bounds each call via ctx.
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type invokeRequest struct {
	Model  string                 `json:"model"`
	Input  interface{}            `json:"input"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type invokeResponse struct {
	Output interface{} `json:"output"`
	Error  string      `json:"error,omitempty"`
}

func (p *HTTPProvider) Invoke(ctx context.Context, providerRef string, input interface{}, params map[string]interface{}) (*Result, error) {
	body, err := json.Marshal(invokeRequest{Model: providerRef, Input: input, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invocation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Preserve context errors so ClassifyError can tell a timeout apart
		// from a provider fault.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", xerrors.ErrProviderError, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", xerrors.ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.Warn("provider returned error status",
			zap.String("provider_ref", providerRef),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload),
		)
		return nil, fmt.Errorf("%w: status %d", xerrors.ErrProviderError, resp.StatusCode)
	}

	var out invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %w", xerrors.ErrProviderError, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrProviderError, out.Error)
	}

	return &Result{Output: out.Output}, nil
}
