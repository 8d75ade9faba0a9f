package funnel

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveWithin(t *testing.T, f *Funnel) domain.Command {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cmd, err := f.Receive(ctx)
	require.NoError(t, err)
	return cmd
}

func TestFunnel_FIFO(t *testing.T) {
	f := New(DefaultCapacity)
	ctx := context.Background()

	for _, cmd := range []domain.Command{domain.CommandArm, domain.CommandPing, domain.CommandLaunch} {
		require.NoError(t, f.Send(ctx, cmd))
	}

	assert.Equal(t, domain.CommandArm, receiveWithin(t, f))
	assert.Equal(t, domain.CommandPing, receiveWithin(t, f))
	assert.Equal(t, domain.CommandLaunch, receiveWithin(t, f))
	assert.Zero(t, f.Len())
}

func TestFunnel_ConcurrentProducersKeepTheirOwnOrder(t *testing.T) {
	f := New(4)
	const (
		producers = 6
		perSender = 40
	)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perSender {
				assert.NoError(t, f.Send(context.Background(), domain.Command(fmt.Sprintf("%d:%d", p, i))))
			}
		}()
	}

	last := make(map[int]int)
	for p := range producers {
		last[p] = -1
	}
	for range producers * perSender {
		var p, i int
		_, err := fmt.Sscanf(string(receiveWithin(t, f)), "%d:%d", &p, &i)
		require.NoError(t, err)
		assert.Equal(t, last[p]+1, i, "producer %d reordered", p)
		last[p] = i
	}
	wg.Wait()
}

func TestFunnel_SendBlocksAtCapacity(t *testing.T) {
	f := New(DefaultCapacity)
	ctx := context.Background()

	for i := range DefaultCapacity {
		require.NoError(t, f.Send(ctx, domain.Command(fmt.Sprint(i))))
	}
	require.Equal(t, DefaultCapacity, f.Len())

	sent := make(chan error, 1)
	go func() { sent <- f.Send(ctx, "overflow") }()

	select {
	case <-sent:
		t.Fatal("send should block while the queue is full")
	case <-time.After(30 * time.Millisecond):
	}

	assert.Equal(t, domain.Command("0"), receiveWithin(t, f))

	select {
	case err := <-sent:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send did not unblock after a receive")
	}
	assert.Equal(t, DefaultCapacity, f.Len())
}

func TestFunnel_SendHonoursContextWhenFull(t *testing.T) {
	f := New(1)
	require.NoError(t, f.Send(context.Background(), "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := f.Send(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.Len())
}

func TestFunnel_SendAfterCloseFailsFast(t *testing.T) {
	f := New(DefaultCapacity)
	f.Close()
	f.Close()

	err := f.Send(context.Background(), domain.CommandAbort)
	assert.ErrorIs(t, err, domain.ErrFunnelClosed)
	assert.True(t, f.Closed())
	assert.Zero(t, f.Len())
}

func TestFunnel_CloseWakesBlockedSenders(t *testing.T) {
	f := New(1)
	require.NoError(t, f.Send(context.Background(), "queued"))

	errs := make(chan error, 3)
	for range 3 {
		go func() { errs <- f.Send(context.Background(), "blocked") }()
	}

	time.Sleep(10 * time.Millisecond)
	f.Close()

	for range 3 {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, domain.ErrFunnelClosed)
		case <-time.After(time.Second):
			t.Fatal("blocked sender was not released by close")
		}
	}
}

func TestFunnel_ReceiveDrainsThenReportsClosed(t *testing.T) {
	f := New(DefaultCapacity)
	require.NoError(t, f.Send(context.Background(), domain.CommandPing))
	f.Close()

	assert.Equal(t, domain.CommandPing, receiveWithin(t, f))

	_, err := f.Receive(context.Background())
	assert.ErrorIs(t, err, domain.ErrFunnelClosed)
}

func TestFunnel_ReceiveHonoursContext(t *testing.T) {
	f := New(DefaultCapacity)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunnel_StalledConsumerEventuallyGetsEveryViewerCommand(t *testing.T) {
	f := New(DefaultCapacity)

	var wg sync.WaitGroup
	for _, viewer := range []domain.Command{domain.CommandArm, domain.CommandPing} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.Send(context.Background(), viewer))
			assert.NoError(t, f.Send(context.Background(), viewer+"-2"))
		}()
	}
	wg.Wait()

	// consumer resumes
	pos := make(map[domain.Command]int)
	for i := range 4 {
		pos[receiveWithin(t, f)] = i
	}
	require.Len(t, pos, 4)
	assert.Less(t, pos[domain.CommandArm], pos[domain.CommandArm+"-2"])
	assert.Less(t, pos[domain.CommandPing], pos[domain.CommandPing+"-2"])
}

func TestFunnel_NonPositiveCapacityUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Cap())
	assert.Equal(t, 5, New(5).Cap())
}

func TestFunnel_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCommandMetrics(reg)
	f := New(DefaultCapacity, WithMetrics(m))

	require.NoError(t, f.Send(context.Background(), domain.CommandArm))
	require.NoError(t, f.Send(context.Background(), domain.CommandPing))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Enqueued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))

	receiveWithin(t, f)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueueDepth))

	f.Close()
	_ = f.Send(context.Background(), domain.CommandAbort)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))
}
