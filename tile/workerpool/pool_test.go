package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestPool_DispatchRunsJobOnIdleWorker verifies §4.A's dispatch():
// GIVEN a pool with idle workers
// WHEN Dispatch publishes a job
// THEN it runs without the job ever touching the overflow queue.
func TestPool_DispatchRunsJobOnIdleWorker(t *testing.T) {
	p := New(2)
	defer p.Shutdown()

	var ran int32
	done := make(chan struct{})
	p.Dispatch(func(args any) {
		atomic.AddInt32(&ran, 1)
		close(done)
	}, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

// TestPool_Dispatch_NeverBlocksProducer verifies §4.A's failure model
// ("Dispatch never blocks the producer; the queue is unbounded") by
// dispatching more jobs than workers to a pool whose jobs block until
// released, then confirming Dispatch returns immediately for all of them.
// waitForAll uses errgroup.Group to join the per-job completion signals
// under one deadline — a bounded-fan-out-then-join shape errgroup fits well
// for a test helper, even though the pool's own hot dispatch path does not
// use it (see DESIGN.md).
func TestPool_Dispatch_NeverBlocksProducer(t *testing.T) {
	p := New(2)
	defer p.Shutdown()

	const n = 10
	release := make(chan struct{})
	signals := make([]chan struct{}, n)
	for i := range signals {
		signals[i] = make(chan struct{})
	}

	dispatchDone := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			idx := i
			p.Dispatch(func(args any) {
				<-release
				close(signals[idx])
			}, nil)
		}
		close(dispatchDone)
	}()

	select {
	case <-dispatchDone:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked the producer")
	}

	close(release)
	require.NoError(t, waitForAll(signals, 2*time.Second))
}

// waitForAll blocks until every channel in signals is closed or deadline
// elapses, fanning the waits out across an errgroup.Group.
func waitForAll(signals []chan struct{}, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range signals {
		ch := ch
		g.Go(func() error {
			select {
			case <-ch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// TestPool_Join_BlocksUntilIdle verifies §4.A's join(): it returns only
// after every worker is back to IDLE with no pending job.
func TestPool_Join_BlocksUntilIdle(t *testing.T) {
	p := New(1)
	defer p.Shutdown()

	var ran int32
	gate := make(chan struct{})
	p.Dispatch(func(args any) {
		<-gate
		atomic.AddInt32(&ran, 1)
	}, nil)

	joinDone := make(chan struct{})
	go func() {
		p.Join()
		close(joinDone)
	}()

	select {
	case <-joinDone:
		t.Fatal("Join returned before the dispatched job finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-joinDone:
	case <-time.After(time.Second):
		t.Fatal("Join never returned after the job finished")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

// TestPool_Dispatch_OverflowsToQueueWhenAllBusy verifies §4.A's queue
// behavior:
// GIVEN a single-worker pool with its one worker busy
// WHEN a second job is dispatched
// THEN it lands on the overflow queue and runs only once the worker frees
// up and self-dispatches it.
func TestPool_Dispatch_OverflowsToQueueWhenAllBusy(t *testing.T) {
	p := New(1)
	defer p.Shutdown()

	gate := make(chan struct{})
	firstStarted := make(chan struct{})
	p.Dispatch(func(args any) {
		close(firstStarted)
		<-gate
	}, nil)
	<-firstStarted

	secondDone := make(chan struct{})
	p.Dispatch(func(args any) {
		close(secondDone)
	}, nil)

	select {
	case <-secondDone:
		t.Fatal("second job ran before the first released the only worker")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("queued job never ran after the worker freed up")
	}
}

// TestPool_Shutdown_StopsAllWorkerGoroutines verifies §4.A's shutdown():
// after a dispatched job has finished, Shutdown sets every worker's exit
// flag and returns once all worker goroutines have terminated.
func TestPool_Shutdown_StopsAllWorkerGoroutines(t *testing.T) {
	p := New(3)

	var wg sync.WaitGroup
	wg.Add(1)
	ran := make(chan struct{})
	p.Dispatch(func(args any) {
		defer wg.Done()
		close(ran)
	}, nil)
	<-ran
	wg.Wait()

	shutdownDone := make(chan struct{})
	go func() {
		p.Shutdown()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(time.Second):
		t.Fatal("Shutdown never returned")
	}
}
