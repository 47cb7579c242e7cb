package payment

import (
	"testing"

	"modelmart-service/internal/domain/plan"
	xerrors "modelmart-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMetadataKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "model:7_plan:12_caller:90210_unit:hour", BuildMetadataKey(7, 12, 90210, plan.UnitHour))
}

func TestParseMetadataKey(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		intent, err := ParseMetadataKey(BuildMetadataKey(42, 7, 1001, plan.UnitWeek))
		require.NoError(t, err)
		assert.Equal(t, int64(42), intent.ModelID)
		assert.Equal(t, int64(7), intent.PlanID)
		assert.Equal(t, int64(1001), intent.CallerID)
		assert.Equal(t, plan.UnitWeek, intent.Unit)
	})

	t.Run("malformed inputs", func(t *testing.T) {
		t.Parallel()

		cases := []string{
			"",
			"model:1_plan:2",
			"model:1_caller:3_unit:hour",
			"plan:2_model:1_caller:3_unit:hour",
			"model:abc_plan:2_caller:3_unit:hour",
			"model:1_plan:2_caller:3",
			"model:1_plan:2_caller:3_unit:fortnight",
			"model:1_plan:2_caller:3_unit:",
			"model:1_plan:2_caller:3_unit:hour_extra:4",
			"model:1_plan:2_caller:_unit:day",
			"model:-1_plan:2_caller:3_unit:day",
			" model:1_plan:2_caller:3_unit:day",
			"MODEL:1_PLAN:2_CALLER:3_UNIT:DAY",
		}

		for _, raw := range cases {
			intent, err := ParseMetadataKey(raw)
			assert.Nil(t, intent, "input %q", raw)
			assert.ErrorIs(t, err, xerrors.ErrMalformedMetadata, "input %q", raw)
		}
	})
}
