package radiolink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/funnel"
)

type recordingTransmitter struct {
	mu   sync.Mutex
	sent []domain.Command
	errs map[domain.Command]error
	got  chan domain.Command
}

func newRecordingTransmitter() *recordingTransmitter {
	return &recordingTransmitter{errs: map[domain.Command]error{}, got: make(chan domain.Command, 64)}
}

func (r *recordingTransmitter) Transmit(_ context.Context, cmd domain.Command) error {
	r.mu.Lock()
	r.sent = append(r.sent, cmd)
	err := r.errs[cmd]
	r.mu.Unlock()
	r.got <- cmd
	return err
}

func (r *recordingTransmitter) Sent() []domain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Command(nil), r.sent...)
}

func waitFor(t *testing.T, ch <-chan domain.Command, n int) {
	t.Helper()
	for range n {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for transmission")
		}
	}
}

func startLink(t *testing.T, l *Link) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	t.Cleanup(cancelFn)
	return cancelFn, errCh
}

func TestLink_TransmitsInFIFOOrder(t *testing.T) {
	f := funnel.New(8)
	tx := newRecordingTransmitter()
	startLink(t, New(f, tx))

	want := []domain.Command{domain.CommandArm, domain.CommandPing, domain.CommandLaunch, "CUSTOM 42"}
	for _, cmd := range want {
		require.NoError(t, f.Send(context.Background(), cmd))
	}
	waitFor(t, tx.got, len(want))

	assert.Equal(t, want, tx.Sent())
}

func TestLink_ClosesFunnelOnExit(t *testing.T) {
	f := funnel.New(4)
	cancel, done := startLink(t, New(f, newRecordingTransmitter()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}

	assert.True(t, f.Closed())
	assert.ErrorIs(t, f.Send(context.Background(), domain.CommandAbort), domain.ErrFunnelClosed)
}

func TestLink_StopsWhenFunnelClosed(t *testing.T) {
	f := funnel.New(4)
	tx := newRecordingTransmitter()
	_, done := startLink(t, New(f, tx))

	require.NoError(t, f.Send(context.Background(), domain.CommandPing))
	waitFor(t, tx.got, 1)
	f.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}
}

func TestLink_FailureIsNotFatal(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCommandMetrics(reg)

	f := funnel.New(4)
	tx := newRecordingTransmitter()
	tx.errs[domain.CommandArm] = errors.New("modem unplugged")
	tx.errs[domain.CommandLaunch] = fmt.Errorf("radio link circuit breaker open: %w", circuitbreaker.ErrOpen)
	startLink(t, New(f, tx, WithMetrics(m)))

	for _, cmd := range []domain.Command{domain.CommandArm, domain.CommandLaunch, domain.CommandPing} {
		require.NoError(t, f.Send(context.Background(), cmd))
	}
	waitFor(t, tx.got, 3)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Transmitted.WithLabelValues("sent")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Transmitted.WithLabelValues("failed")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Transmitted.WithLabelValues("rejected")), 0)
}

func TestLogTransmitter(t *testing.T) {
	var buf bytes.Buffer
	tx := NewLogTransmitter(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, tx.Transmit(context.Background(), domain.CommandArm))
	assert.Contains(t, buf.String(), "RADIO LINK: Sending command to rocket")
	assert.Contains(t, buf.String(), "command=ARM")
	assert.Contains(t, buf.String(), "known=true")

	buf.Reset()
	require.NoError(t, tx.Transmit(context.Background(), "SELF DESTRUCT"))
	assert.Contains(t, buf.String(), "known=false")
}

func TestNewLogTransmitter_DefaultLogger(t *testing.T) {
	tx := NewLogTransmitter(nil)
	assert.Same(t, slog.Default(), tx.logger)
}
