package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/model"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func status(name string, typ model.StatusType) TaskStatusChanged {
	return TaskStatusChanged{Status: model.TaskStatus{TaskName: name, Type: typ}}
}

func TestDeliveryOrderAndSerialization(t *testing.T) {
	// --- Arrange ---
	d := New(testContext(), "job-1")
	var (
		mu       sync.Mutex
		got      []string
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	record := func(_ context.Context, e TaskStatusChanged) error {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		defer inFlight.Add(-1)
		time.Sleep(time.Millisecond)
		mu.Lock()
		got = append(got, e.Status.TaskName)
		mu.Unlock()
		return nil
	}
	d.Subscribe("first", Handlers{TaskStatusChanged: record})
	d.Subscribe("second", Handlers{TaskStatusChanged: record})

	// --- Act ---
	var want []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("t%02d", i)
		want = append(want, name, name)
		require.NoError(t, d.Post(status(name, model.StatusRunning)))
	}
	d.Close()

	// --- Assert ---
	assert.Equal(t, want, got, "each event reaches every subscriber in post order")
	assert.False(t, overlap.Load(), "handlers must never run concurrently")
}

func TestConcurrentPostersAreAllDelivered(t *testing.T) {
	d := New(testContext(), "job")
	var count atomic.Int32
	d.Subscribe("counter", Handlers{StepResult: func(context.Context, StepResult) error {
		count.Add(1)
		return nil
	}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = d.Post(StepResult{JobID: "job"})
			}
		}()
	}
	wg.Wait()
	d.Flush()

	assert.Equal(t, int32(400), count.Load())
	d.Close()
}

func TestRoutingByKind(t *testing.T) {
	d := New(testContext(), "job")
	var kinds []Kind
	record := func(k Kind) {
		kinds = append(kinds, k)
	}
	d.Subscribe("all", Handlers{
		TaskStatusChanged: func(context.Context, TaskStatusChanged) error { record(KindTaskStatusChanged); return nil },
		StepResult:        func(context.Context, StepResult) error { record(KindStepResult); return nil },
		FlowCompleted:     func(context.Context, FlowCompleted) error { record(KindFlowCompleted); return nil },
		JobCompleted:      func(context.Context, JobCompleted) error { record(KindJobCompleted); return nil },
	})
	d.Subscribe("nothing", Handlers{})

	require.NoError(t, d.Post(JobCompleted{}))
	require.NoError(t, d.Post(FlowCompleted{}))
	require.NoError(t, d.Post(StepResult{}))
	require.NoError(t, d.Post(status("a", model.StatusFinished)))
	d.Close()

	assert.Equal(t, []Kind{KindJobCompleted, KindFlowCompleted, KindStepResult, KindTaskStatusChanged}, kinds)
	assert.Equal(t, "JobCompleted", KindJobCompleted.String())
}

func TestFailingSubscribersAreIsolated(t *testing.T) {
	d := New(testContext(), "job")
	var delivered atomic.Int32
	d.Subscribe("panics", Handlers{TaskStatusChanged: func(context.Context, TaskStatusChanged) error {
		panic("boom")
	}})
	d.Subscribe("errors", Handlers{TaskStatusChanged: func(context.Context, TaskStatusChanged) error {
		return errors.New("store unavailable")
	}})
	d.Subscribe("healthy", Handlers{TaskStatusChanged: func(context.Context, TaskStatusChanged) error {
		delivered.Add(1)
		return nil
	}})

	require.NoError(t, d.Post(status("a", model.StatusRunning)))
	require.NoError(t, d.Post(status("a", model.StatusFinished)))
	d.Close()

	assert.Equal(t, int32(2), delivered.Load())
}

func TestUnsubscribeAndClose(t *testing.T) {
	d := New(testContext(), "job")
	var count atomic.Int32
	unsubscribe := d.Subscribe("c", Handlers{TaskStatusChanged: func(context.Context, TaskStatusChanged) error {
		count.Add(1)
		return nil
	}})

	require.NoError(t, d.Post(status("a", model.StatusRunning)))
	d.Flush()
	unsubscribe()
	require.NoError(t, d.Post(status("a", model.StatusFinished)))
	d.Close()
	d.Close()

	assert.Equal(t, int32(1), count.Load())
	assert.ErrorIs(t, d.Post(status("a", model.StatusFailed)), ErrClosed)
	assert.Equal(t, "job", d.Scope())
}
