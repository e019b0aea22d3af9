package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (b *blockingService) Start() error {
	b.started.Store(true)
	for !b.stopped.Load() {
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

func (b *blockingService) Stop() {
	b.stopped.Store(true)
}

func awaitTrue(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestLifecycle_Run_StopsServicesOnCancel(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	ws := &blockingService{}
	bridge := &blockingService{}
	lc.Add("websocket", ws)
	lc.Add("bridge", bridge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lc.Run(ctx)
	}()

	awaitTrue(t, func() bool { return ws.started.Load() && bridge.started.Load() }, "services did not start in time")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	assert.True(t, ws.stopped.Load())
	assert.True(t, bridge.stopped.Load())
}

func TestLifecycle_Run_StartFailureStopsRemaining(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	healthy := &blockingService{}
	lc.Add("healthy", healthy)
	lc.Add("broken", &FuncService{
		StartFn: func() error { return errors.New("bind: address already in use") },
	})

	done := make(chan error, 1)
	go func() {
		done <- lc.Run(context.Background())
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not unwind after start failure")
	}

	assert.True(t, healthy.stopped.Load())
}

func TestFuncService_NilStop(t *testing.T) {
	started := false
	svc := &FuncService{StartFn: func() error { started = true; return nil }}

	require.NoError(t, svc.Start())
	assert.True(t, started)

	// Stop with no StopFn is a no-op, not a panic.
	svc.Stop()
}
