package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyberprint/internal/model"
)

func TestSweeper_ExpiresUnconfirmedPrint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc, g := h.verified(t)
	s, err := h.print.Open(ctx, h.operator, g.Token)
	require.NoError(t, err)
	readAll(t, s)

	h.clock.Advance(testPrint.ConfirmTimeout - time.Second)
	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(2 * time.Second)
	n, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.StatusExpired, h.status(t, doc.ID))
	assert.False(t, h.content.has(doc.StorageKey))

	_, err = h.print.MarkPrinted(ctx, h.operator, doc.ID)
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestSweeper_ExpiresAbandonedUploads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	h.sweeper.metrics = m

	pending := h.submitAnonymous(t)
	issued := h.submitAnonymous(t)
	_ = h.issue(t, issued.ID)

	h.clock.Advance(testPrint.DocumentTTL + time.Second)
	fresh := h.submitAnonymous(t)

	n, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, model.StatusExpired, h.status(t, pending.ID))
	assert.Equal(t, model.StatusExpired, h.status(t, issued.ID))
	assert.Equal(t, model.StatusPending, h.status(t, fresh.ID))

	code, err := h.store.Codes().FindLatest(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConsumeRevoked, code.ConsumeReason)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.expired.WithLabelValues("pending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.expired.WithLabelValues("otp_issued")))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.sweeper.interval = time.Millisecond
	h.sweeper.log = zap.NewNop()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.sweeper.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.verifyResult("success") })
}
