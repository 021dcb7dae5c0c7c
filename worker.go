package taskscheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// classQueue is the per-affinity-class shared state: one FIFO of ready-or-not
// tasks, one mutex, one condition variable. Workers of the same class block
// on cond; producers append under mu and wake a waiter.
//
// The source keeps the shared queue's mutex separate from each worker's own
// "please look at your queues" exec mutex. Collapsing both onto a single
// per-class mutex is this port's one deliberate simplification: the exec
// flag, the wait predicate, and the shared queue are all small enough state
// that splitting them across two locks only avoided contention the source
// didn't need to avoid here, and a single lock keeps the wait loop's
// recheck-under-lock argument for correctness easier to state.
type classQueue struct {
	mu    sync.Mutex
	cond  sync.Cond
	tasks []*taskBase
}

func newClassQueue() *classQueue {
	q := &classQueue{}
	q.cond.L = &q.mu
	return q
}

// workerThread owns one goroutine (optionally OS-thread-locked) dedicated to
// a single affinity class. It drains its own private LIFO queue before
// falling back to the class's shared queue.
type workerThread struct {
	name     string
	affinity Affinity
	sched    *Scheduler
	class    *classQueue

	lockOSThread bool

	id atomic.Int64 // goroutine id, set once Process starts; -1 until then

	execFlag atomic.Int32
	busy     atomic.Bool

	queueMu sync.Mutex
	private []*taskBase
}

func newWorkerThread(s *Scheduler, name string, affinity Affinity, class *classQueue, lockOSThread bool) *workerThread {
	w := &workerThread{
		name:         name,
		affinity:     affinity,
		sched:        s,
		class:        class,
		lockOSThread: lockOSThread,
	}
	w.id.Store(-1)
	return w
}

func (w *workerThread) threadID() int64 { return w.id.Load() }

func (w *workerThread) isBusy() bool { return w.busy.Load() }

// forcePush appends task to this worker's private queue and wakes it,
// regardless of which class's shared queue it would otherwise have gone to.
// Used by explicit thread-targeted submission.
func (w *workerThread) forcePush(t *taskBase) {
	w.queueMu.Lock()
	w.private = append(w.private, t)
	w.queueMu.Unlock()

	w.execFlag.Add(1)

	// Several workers of the same class can share one condition variable,
	// so there is no way to wake only this one; broadcast, matching the
	// source's ForcelyPushTask notify_all.
	w.class.mu.Lock()
	w.class.cond.Broadcast()
	w.class.mu.Unlock()
}

// tryFetchPrivate pops the most recently forced task (LIFO), if any. Caller
// must hold w.class.mu is NOT required: the private queue has its own lock.
func (w *workerThread) tryFetchPrivate() (*taskBase, bool) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()

	n := len(w.private)
	if n == 0 {
		return nil, false
	}
	t := w.private[n-1]
	w.private[n-1] = nil
	w.private = w.private[:n-1]
	return t, true
}

// waitIdle busy-waits (bounded yield) until the worker's currently-executing
// flag clears. Must not be called while holding the worker's own locks.
func (w *workerThread) waitIdle() {
	for w.isBusy() {
		runtime.Gosched()
	}
}

// process is the worker's main loop: acquire the class lock, wait until
// either a task can be fetched or the scheduler is terminating, execute
// outside the lock, repeat. ready is signaled once this worker has captured
// its goroutine id and registered it with the scheduler, so New can block
// until every worker's thread id is known before returning.
func (w *workerThread) process(ready *sync.WaitGroup) {
	if w.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	w.id.Store(goroutineID())
	w.sched.registerThread(w.id.Load(), w.affinity)
	ready.Done()

	for {
		task := w.waitForTask()
		if task == nil {
			return
		}

		w.busy.Store(true)
		task.execute()
		w.busy.Store(false)
	}
}

// waitForTask blocks until a task is ready for this worker or the scheduler
// is terminating (in which case it returns nil).
func (w *workerThread) waitForTask() *taskBase {
	w.class.mu.Lock()
	defer w.class.mu.Unlock()

	for {
		if w.sched.terminating.Load() {
			return nil
		}

		// busy is set while the class lock is still held, so a WaitIdle that
		// no longer finds the task in a queue always sees this worker busy.
		if w.execFlag.Load() > 0 {
			if t, ok := w.tryFetchPrivate(); ok {
				w.execFlag.Add(-1)
				w.busy.Store(true)
				return t
			}
			if t, ok := w.sched.tryFetchNextLocked(w.class, w.affinity); ok {
				w.execFlag.Add(-1)
				w.busy.Store(true)
				return t
			}
		}

		w.class.cond.Wait()
	}
}
