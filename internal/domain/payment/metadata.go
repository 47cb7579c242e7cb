// internal/domain/payment/metadata.go
package payment

import (
	"fmt"
	"regexp"
	"strconv"

	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"
)

// The composite metadata key embedded at pay-link creation time. This is the
// versioned structured contract between pay-link creation and webhook
// reconciliation; both sides live here so they cannot drift apart. The unit
// is the one the caller was quoted and paid for; settlement must grant
// exactly that period, not whatever the plan row says by default.
var metadataKeyPattern = regexp.MustCompile(`^model:(\d+)_plan:(\d+)_caller:(\d+)_unit:(hour|day|week|month)$`)

// BuildMetadataKey encodes billing intent for a pay link.
func BuildMetadataKey(modelID, planID, callerID int64, unit plan.BillingUnit) string {
	return fmt.Sprintf("model:%d_plan:%d_caller:%d_unit:%s", modelID, planID, callerID, unit)
}

// ParseMetadataKey decodes billing intent from a webhook payload. Parsing is
// strict: anything that does not match fails with ErrMalformedMetadata.
// There is deliberately no placeholder fallback; silently misattributing a
// payment is worse than failing it for operator review.
func ParseMetadataKey(raw string) (*BillingIntent, error) {
	m := metadataKeyPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", xerrors.ErrMalformedMetadata, raw)
	}

	modelID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: model id %q", xerrors.ErrMalformedMetadata, m[1])
	}
	planID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: plan id %q", xerrors.ErrMalformedMetadata, m[2])
	}
	callerID, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: caller id %q", xerrors.ErrMalformedMetadata, m[3])
	}

	return &BillingIntent{
		ModelID:  modelID,
		PlanID:   planID,
		CallerID: callerID,
		Unit:     plan.BillingUnit(m[4]),
	}, nil
}
