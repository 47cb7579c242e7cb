// internal/service/inference/invoker.go
package inference

import (
	"context"
	"errors"
	"time"
)

// Result is what the core needs back from a provider: an output it can size
// for metering. Which provider produced it is irrelevant here.
type Result struct {
	Output interface{} `json:"output"`
}

// Invoker is the single capability interface over external inference
// providers. Provider selection is resolved by configuration outside the
// core; nothing in the billing path branches on provider identity.
type Invoker interface {
	Invoke(ctx context.Context, providerRef string, input interface{}, params map[string]interface{}) (*Result, error)
}

// TimeoutInvoker bounds every invocation. A timeout is a failure for metering
// purposes: the event is still recorded with input-only quantity.
type TimeoutInvoker struct {
	next    Invoker
	timeout time.Duration
}

func NewTimeoutInvoker(next Invoker, timeout time.Duration) *TimeoutInvoker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TimeoutInvoker{next: next, timeout: timeout}
}

func (t *TimeoutInvoker) Invoke(ctx context.Context, providerRef string, input interface{}, params map[string]interface{}) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Invoke(ctx, providerRef, input, params)
}

// ClassifyError maps an invocation error to the error_kind recorded on the
// usage event.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "provider_error"
	}
}
