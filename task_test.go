package taskscheduler

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(
		WithWorkerThreads(2),
		WithRHIThreads(1),
		WithSyncBlockPoolCapacity(256),
	)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func TestTaskRunAndWait(t *testing.T) {
	s := newTestScheduler(t)

	var ran atomic.Bool
	task := CreateTaskWithResult(s, "flag-setter", func() int {
		ran.Store(true)
		return 7
	}, Worker)

	task.Run()
	task.Wait()

	require.True(t, ran.Load())
	require.True(t, task.IsFinished())
	require.Equal(t, 7, task.GetResult())
}

func TestTaskChainPropagatesResult(t *testing.T) {
	s := newTestScheduler(t)

	a := CreateTaskWithResult(s, "producer", func() int { return 42 }, Worker)
	b := Then[Void, int, int](a, "identity", Worker, func(v int) int { return v })

	a.Run()
	b.Wait()

	require.True(t, a.IsFinished())
	require.True(t, b.IsFinished())
	require.Equal(t, 42, b.GetResult())
}

func TestTaskThenAfterAlreadyFinishedRunsImmediately(t *testing.T) {
	s := newTestScheduler(t)

	a := CreateTaskWithResult(s, "producer", func() int { return 10 }, Worker)
	a.Run()
	a.Wait()

	b := Then[Void, int, int](a, "post-hoc", Worker, func(v int) int { return v * 2 })
	b.Wait()

	require.Equal(t, 20, b.GetResult())
}

func TestTaskJoinOrdersExecution(t *testing.T) {
	s := newTestScheduler(t)

	order := 0
	first := CreateTaskWithResult(s, "first", func() int {
		order = 1
		return order
	}, Worker)

	second := CreateTaskWithResult(s, "second", func() int {
		if order == 1 {
			order = 2
		}
		return order
	}, Worker)
	second.Join(first)

	first.Run()
	second.Run()

	s.WaitIdle(Worker)

	require.Equal(t, 2, order)
}

func TestTaskJoinNilIsNoop(t *testing.T) {
	s := newTestScheduler(t)

	task := CreateTaskWithResult(s, "solo", func() int { return 1 }, Worker)
	require.NotPanics(t, func() { task.Join(nil) })

	task.Run()
	task.Wait()
	require.Equal(t, 1, task.GetResult())
}

func TestSnapshotResult(t *testing.T) {
	s := newTestScheduler(t)

	a := CreateTaskWithResult(s, "producer", func() int { return 5 }, Worker)
	snap := SnapshotResult(a)

	a.Run()
	snap.Wait()

	require.Equal(t, 5, snap.GetResult())
}

func TestTaskDoubleSubmitPanics(t *testing.T) {
	s := newTestScheduler(t)

	task := CreateTaskWithResult(s, "once", func() int { return 0 }, Worker)
	task.Run()
	task.Wait()

	require.Panics(t, func() { task.Run() })
}
