package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"modelmart-service/internal/domain/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, 4), identityID: 9}
	hub.register <- client

	hub.PublishAudit(payment.AuditEvent{SettlementRef: "TX-1", Outcome: payment.OutcomeSettled})

	select {
	case raw := <-client.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		assert.Equal(t, "payment_audit", env.Type)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHubRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &Client{hub: hub, send: make(chan []byte, 4), identityID: 9}
	hub.register <- client

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on context cancel")
	}

	// the client's channel is closed so its write pump can drain and exit
	_, open := <-client.send
	assert.False(t, open)
}
