// internal/service/inference/invocation_service.go
package inference

import (
	"context"
	"fmt"
	"time"

	"modelmart-service/internal/domain/entitlement"
	"modelmart-service/internal/domain/model"
	"modelmart-service/internal/domain/usage"
	xerrors "modelmart-service/internal/pkg/errors"
	"modelmart-service/internal/service/access"
	"modelmart-service/internal/service/metering"

	"go.uber.org/zap"
)

// ModelStore resolves the model being invoked.
type ModelStore interface {
	FindByID(ctx context.Context, id int64) (*model.Model, error)
}

// InvokeInput is one guarded invocation request.
type InvokeInput struct {
	CallerID int64
	ModelID  int64
	Input    interface{}
	Params   map[string]interface{}
}

// InvokeOutcome carries the provider output together with the metering
// record. On quota denial only Quota is set.
type InvokeOutcome struct {
	Output interface{}                `json:"output,omitempty"`
	Event  *usage.UsageEvent          `json:"usage,omitempty"`
	Quota  *entitlement.QuotaSnapshot `json:"quota,omitempty"`
}

// InvocationService runs the guarded flow: entitlement check, quota check,
// bounded provider call, then metering — success or failure, every attempt is
// recorded. The admission check is best-effort: it is not atomic with the
// invocation, so concurrent bursts may slightly over-admit.
type InvocationService struct {
	accessService   *access.Service
	meteringService *metering.Service
	modelRepo       ModelStore
	invoker         Invoker
	logger          *zap.Logger
}

func NewInvocationService(
	accessService *access.Service,
	meteringService *metering.Service,
	modelRepo ModelStore,
	invoker Invoker,
	logger *zap.Logger,
) *InvocationService {
	return &InvocationService{
		accessService:   accessService,
		meteringService: meteringService,
		modelRepo:       modelRepo,
		invoker:         invoker,
		logger:          logger,
	}
}

// Invoke executes one metered model invocation for the caller.
func (s *InvocationService) Invoke(ctx context.Context, in InvokeInput) (*InvokeOutcome, error) {
	m, err := s.modelRepo.FindByID(ctx, in.ModelID)
	if err != nil {
		return nil, fmt.Errorf("model not found: %w", err)
	}
	if m.Status != model.StatusActive {
		return nil, fmt.Errorf("%w: model is disabled", xerrors.ErrNotFound)
	}

	decision, err := s.accessService.CheckAccess(ctx, in.CallerID, in.ModelID)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, xerrors.ErrNotEntitled
	}

	quota, err := s.accessService.CheckQuota(ctx, in.CallerID, in.ModelID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !quota.WithinLimits {
		return &InvokeOutcome{Quota: quota}, xerrors.ErrQuotaExceeded
	}

	inputTokens := metering.EstimateTokens(in.Input)

	started := time.Now()
	result, invokeErr := s.invoker.Invoke(ctx, m.ProviderRef, in.Input, in.Params)
	latencyMs := time.Since(started).Milliseconds()

	if invokeErr != nil {
		// Meter the failed attempt with the input-only estimate. The request
		// context may already be dead (timeout), so record on a detached one.
		event, recordErr := s.meteringService.RecordUsage(context.WithoutCancel(ctx), usage.RecordUsageInput{
			CallerID:  in.CallerID,
			ModelID:   in.ModelID,
			Quantity:  inputTokens,
			LatencyMs: latencyMs,
			Success:   false,
			ErrorKind: ClassifyError(invokeErr),
		})
		if recordErr != nil {
			s.logger.Error("failed to meter failed invocation",
				zap.Int64("caller_id", in.CallerID),
				zap.Int64("model_id", in.ModelID),
				zap.Error(recordErr),
			)
		}

		if !xerrors.Is(invokeErr, xerrors.ErrProviderError) {
			invokeErr = fmt.Errorf("%w: %w", xerrors.ErrProviderError, invokeErr)
		}
		return &InvokeOutcome{Event: event}, invokeErr
	}

	quantity := inputTokens + metering.EstimateTokens(result.Output)
	event, err := s.meteringService.RecordUsage(ctx, usage.RecordUsageInput{
		CallerID:  in.CallerID,
		ModelID:   in.ModelID,
		Quantity:  quantity,
		LatencyMs: latencyMs,
		Success:   true,
	})
	if err != nil {
		// The caller got their output; surface the ledger failure to logs and
		// operators rather than failing the invocation after the fact.
		s.logger.Error("invocation succeeded but metering failed",
			zap.Int64("caller_id", in.CallerID),
			zap.Int64("model_id", in.ModelID),
			zap.Error(err),
		)
	}

	return &InvokeOutcome{Output: result.Output, Event: event}, nil
}
