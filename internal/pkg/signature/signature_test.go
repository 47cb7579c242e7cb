package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	t.Parallel()

	secret := "whsec_test"
	payload := []byte(`{"event":"CREATED","transaction":"TX-1"}`)
	now := time.Now()

	t.Run("valid signature verifies", func(t *testing.T) {
		t.Parallel()

		ts := now.Unix()
		sig := Sign(secret, payload, ts)
		require.NoError(t, Verify(secret, payload, sig, ts, now))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		t.Parallel()

		ts := now.Unix()
		sig := Sign(secret, payload, ts)
		err := Verify(secret, []byte(`{"event":"CREATED","transaction":"TX-2"}`), sig, ts, now)
		assert.Error(t, err)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		t.Parallel()

		ts := now.Unix()
		sig := Sign("whsec_other", payload, ts)
		assert.Error(t, Verify(secret, payload, sig, ts, now))
	})

	t.Run("timestamp outside the window fails", func(t *testing.T) {
		t.Parallel()

		stale := now.Add(-MaxAge - time.Minute).Unix()
		sig := Sign(secret, payload, stale)
		assert.Error(t, Verify(secret, payload, sig, stale, now))

		future := now.Add(5 * time.Minute).Unix()
		sig = Sign(secret, payload, future)
		assert.Error(t, Verify(secret, payload, sig, future, now))
	})

	t.Run("timestamp is bound into the digest", func(t *testing.T) {
		t.Parallel()

		ts := now.Unix()
		sig := Sign(secret, payload, ts)
		// replaying the same signature under a newer timestamp must fail
		assert.Error(t, Verify(secret, payload, sig, ts+30, now))
	})

	t.Run("missing inputs fail", func(t *testing.T) {
		t.Parallel()

		ts := now.Unix()
		assert.Error(t, Verify("", payload, Sign(secret, payload, ts), ts, now))
		assert.Error(t, Verify(secret, payload, "", ts, now))
	})
}
