package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelworks/entryagent/constants"
	"github.com/parcelworks/entryagent/internal/extract"
)

func TestDispatcherRunsEnqueuedJobs(t *testing.T) {
	fx := newWorkerFixture(t, &fakeExtractor{result: goodResult("")})
	d := NewDispatcher(fx.worker, nil, WithWorkers(2), WithQueueSize(4))

	job := fx.submit(t)
	require.NoError(t, d.Enqueue(context.Background(), job.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Shutdown(ctx)

	got, err := fx.store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusDone, got.Status)
}

func TestDispatcherRejectsEnqueueAfterShutdown(t *testing.T) {
	fx := newWorkerFixture(t, &fakeExtractor{result: goodResult("")})
	d := NewDispatcher(fx.worker, nil, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Shutdown(ctx)

	err := d.Enqueue(context.Background(), "late-job")
	assert.ErrorContains(t, err, "shutting down")
}

// gateExtractor parks every call until released, simulating minutes-long
// inference that keeps the pool busy.
type gateExtractor struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gateExtractor) Extract(ctx context.Context, _ extract.Request) (*extract.Result, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return nil, errors.New("gate closed")
}

func TestDispatcherShutdownNotBlockedByFullQueue(t *testing.T) {
	ex := &gateExtractor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	fx := newWorkerFixture(t, ex)

	d := NewDispatcher(fx.worker, nil, WithWorkers(1), WithQueueSize(1))
	// Drain the pool before the fixture's TempDir cleanup removes the
	// artifact dir, or the unparked worker races RemoveAll.
	t.Cleanup(func() { close(ex.release); d.wg.Wait() })

	jobA, _ := fx.store.Submit("key-a", testParams(), "/tmp/a.pdf", "a.pdf", "sha-a")
	jobB, _ := fx.store.Submit("key-b", testParams(), "/tmp/b.pdf", "b.pdf", "sha-b")
	jobC, _ := fx.store.Submit("key-c", testParams(), "/tmp/c.pdf", "c.pdf", "sha-c")

	require.NoError(t, d.Enqueue(context.Background(), jobA.ID))
	<-ex.entered // the lone worker is now parked inside the extractor
	require.NoError(t, d.Enqueue(context.Background(), jobB.ID))

	// third submission finds the queue full and blocks for a slot
	blocked := make(chan error, 1)
	go func() { blocked <- d.Enqueue(context.Background(), jobC.ID) }()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Shutdown(ctx)
	assert.Less(t, time.Since(start), time.Second,
		"shutdown must honor its deadline while a submitter waits on a full queue")

	select {
	case err := <-blocked:
		assert.ErrorContains(t, err, "shutting down")
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue was not released by shutdown")
	}
}

func TestDispatcherEnqueueHonorsContext(t *testing.T) {
	ex := &gateExtractor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	fx := newWorkerFixture(t, ex)

	d := NewDispatcher(fx.worker, nil, WithWorkers(1), WithQueueSize(1))
	// Drain the pool before the fixture's TempDir cleanup removes the
	// artifact dir, or the unparked worker races RemoveAll.
	t.Cleanup(func() { close(ex.release); d.wg.Wait() })
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		d.Shutdown(ctx)
	}()

	jobA, _ := fx.store.Submit("key-a", testParams(), "/tmp/a.pdf", "a.pdf", "sha-a")
	jobB, _ := fx.store.Submit("key-b", testParams(), "/tmp/b.pdf", "b.pdf", "sha-b")
	jobC, _ := fx.store.Submit("key-c", testParams(), "/tmp/c.pdf", "c.pdf", "sha-c")

	require.NoError(t, d.Enqueue(context.Background(), jobA.ID))
	<-ex.entered
	require.NoError(t, d.Enqueue(context.Background(), jobB.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Enqueue(ctx, jobC.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherShutdownIsIdempotent(t *testing.T) {
	fx := newWorkerFixture(t, &fakeExtractor{result: goodResult("")})
	d := NewDispatcher(fx.worker, nil, WithWorkers(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Shutdown(ctx)
	assert.NotPanics(t, func() { d.Shutdown(ctx) })
}
