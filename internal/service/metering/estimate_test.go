package metering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	t.Run("empty inputs estimate zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(0), EstimateTokens(nil))
		assert.Equal(t, int64(0), EstimateTokens(""))
		assert.Equal(t, int64(0), EstimateTokens("   "))
		assert.Equal(t, int64(0), EstimateTokens([]interface{}{}))
		assert.Equal(t, int64(0), EstimateTokens(map[string]interface{}{}))
	})

	t.Run("text scales with word count", func(t *testing.T) {
		t.Parallel()

		// 1 word * 1.3 rounds up to 2
		assert.Equal(t, int64(2), EstimateTokens("hello"))
		// 10 words * 1.3 = 13
		assert.Equal(t, int64(13), EstimateTokens("one two three four five six seven eight nine ten"))
	})

	t.Run("composite inputs sum their parts", func(t *testing.T) {
		t.Parallel()

		input := map[string]interface{}{
			"prompt":      "hello",                  // 2
			"temperature": 0.7,                      // 1
			"stop":        []interface{}{".", "\n"}, // 2 + 0
		}
		assert.Equal(t, int64(5), EstimateTokens(input))
	})

	t.Run("non-empty input never estimates zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(1), EstimateTokens(true))
		assert.Equal(t, int64(1), EstimateTokens(0))
		assert.GreaterOrEqual(t, EstimateTokens("x"), int64(1))
	})
}
