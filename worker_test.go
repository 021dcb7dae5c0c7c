package taskscheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newBareScheduler builds a Scheduler with no spawned goroutines, suitable
// for exercising workerThread's queueing logic in isolation.
func newBareScheduler(pool blockPool) *Scheduler {
	s := &Scheduler{
		pool:          pool,
		threadClasses: make(map[int64]Affinity),
	}
	for i := range s.classes {
		s.classes[i] = newClassQueue()
	}
	return s
}

func TestWorkerForcePushFetchesFromPrivateQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newBareScheduler(newMockBlockPool(ctrl))
	w := newWorkerThread(s, "w0", Worker, s.classes[Worker], false)

	base := &taskBase{name: "forced", affinity: Worker, sched: s}
	w.forcePush(base)

	got := w.waitForTask()
	require.Same(t, base, got)
}

func TestWorkerFallsBackToSharedQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newBareScheduler(newMockBlockPool(ctrl))
	class := s.classes[Worker]
	w := newWorkerThread(s, "w0", Worker, class, false)

	base := &taskBase{name: "shared", affinity: Worker, sched: s}
	class.mu.Lock()
	class.tasks = append(class.tasks, base)
	class.mu.Unlock()
	w.execFlag.Add(1)

	got := w.waitForTask()
	require.Same(t, base, got)
	require.Empty(t, class.tasks)
}

func TestWorkerWaitForTaskReturnsNilWhenTerminating(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newBareScheduler(newMockBlockPool(ctrl))
	w := newWorkerThread(s, "w0", Worker, s.classes[Worker], false)

	s.terminating.Store(true)

	require.Nil(t, w.waitForTask())
}

func TestWorkerPrivateQueueIsLIFO(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newBareScheduler(newMockBlockPool(ctrl))
	w := newWorkerThread(s, "w0", Worker, s.classes[Worker], false)

	first := &taskBase{name: "first", affinity: Worker, sched: s}
	second := &taskBase{name: "second", affinity: Worker, sched: s}
	w.forcePush(first)
	w.forcePush(second)

	got1 := w.waitForTask()
	require.Same(t, second, got1)

	got2 := w.waitForTask()
	require.Same(t, first, got2)
}

func TestWorkerWaitIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newBareScheduler(newMockBlockPool(ctrl))
	w := newWorkerThread(s, "w0", Worker, s.classes[Worker], false)

	w.busy.Store(false)
	require.False(t, w.isBusy())
	w.waitIdle() // must return immediately, not hang

	w.busy.Store(true)
	done := make(chan struct{})
	go func() {
		w.waitIdle()
		close(done)
	}()
	w.busy.Store(false)
	<-done
}
