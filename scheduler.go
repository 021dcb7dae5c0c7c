package taskscheduler

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns the worker goroutines, one shared queue per affinity class,
// the sync-block pool, and the submit/run/wait API. Construct it with New
// from the goroutine that is to be treated as Main -- initialization must
// happen there, the same contract the source places on its own Initialize.
type Scheduler struct {
	cfg    Config
	logger log.Logger

	pool blockPool

	classes [NumAffinityClasses]*classQueue

	workers        []*workerThread
	workersByClass [NumAffinityClasses][]*workerThread

	idMu          sync.Mutex
	threadClasses map[int64]Affinity

	mainGoroutine  int64
	renderThreadID int64

	terminating atomic.Bool
	group       *errgroup.Group
}

// New constructs and starts the scheduler: one Render goroutine, cfg.RHIThreads
// RHI goroutines, cfg.WorkerThreads (or the default formula) Worker
// goroutines, and cfg.FileSystemThreads FileSystem goroutines, all
// OS-thread-locked for Render/RHI to mirror the source's dedication of a
// real OS thread to those two classes. Must be called from the goroutine
// that will be treated as Main; there is no runtime check of this, by
// contract (see DESIGN.md Open Question decisions).
func New(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}

	s := &Scheduler{
		cfg:           cfg,
		logger:        logger,
		pool:          newSyncBlockPool(cfg.SyncBlockPoolCapacity, logger),
		threadClasses: make(map[int64]Affinity),
	}
	for i := range s.classes {
		s.classes[i] = newClassQueue()
	}

	s.mainGoroutine = goroutineID()
	s.threadClasses[s.mainGoroutine] = Main

	coresCount := runtime.NumCPU()
	numRHI := cfg.RHIThreads
	numWorkers := cfg.WorkerThreads
	if numWorkers <= 0 {
		numWorkers = coresCount - 2 - numRHI
		if numWorkers < 1 {
			numWorkers = 1
		}
	}

	group, _ := errgroup.WithContext(context.Background())
	s.group = group

	var startWG sync.WaitGroup

	spawn := func(name string, affinity Affinity, lockOSThread bool) *workerThread {
		w := newWorkerThread(s, name, affinity, s.classes[affinity], lockOSThread)
		s.workers = append(s.workers, w)
		s.workersByClass[affinity] = append(s.workersByClass[affinity], w)
		startWG.Add(1)
		group.Go(func() error {
			w.process(&startWG)
			return nil
		})
		return w
	}

	renderWorker := spawn("render", Render, true)

	for i := 0; i < numWorkers; i++ {
		spawn(fmt.Sprintf("worker-%d", i), Worker, false)
	}
	for i := 0; i < numRHI; i++ {
		spawn(fmt.Sprintf("rhi-%d", i), RHI, true)
	}
	for i := 0; i < cfg.FileSystemThreads; i++ {
		spawn(fmt.Sprintf("filesystem-%d", i), FileSystem, false)
	}

	startWG.Wait()
	s.renderThreadID = renderWorker.threadID()

	logger.Debug("task scheduler initialized",
		"cores", coresCount,
		"workerThreads", numWorkers,
		"rhiThreads", numRHI,
		"fileSystemThreads", cfg.FileSystemThreads,
		"syncBlockPoolCapacity", cfg.SyncBlockPoolCapacity,
	)

	return s
}

func (s *Scheduler) acquireSyncBlock() uint16  { return s.pool.acquire() }
func (s *Scheduler) releaseSyncBlock(h uint16) { s.pool.release(h) }

// Run enqueues task into its affinity class's shared queue, first expanding
// and submitting its full chain (see expandChain), and notifies one waiter
// of each affected class.
func (s *Scheduler) Run(task AnyTask) {
	s.runInternal(task.baseTask(), true)
}

// RunOnThread force-submits task to the worker whose goroutine id is
// threadID, bypassing the shared queue. If threadID does not belong to any
// worker, it must be the main goroutine's id; the task is appended to the
// Main shared queue instead.
func (s *Scheduler) RunOnThread(task AnyTask, threadID int64) {
	base := task.baseTask()
	s.assertSubmittable("RunOnThread", base)

	s.expandChain(base)
	base.onEnqueue()

	if w := s.workerByThreadID(threadID); w != nil {
		w.forcePush(base)
		return
	}

	if threadID != s.mainGoroutine {
		misuse("RunOnThread", "target thread id %d is neither a worker nor the main thread", threadID)
	}

	class := s.classes[Main]
	class.mu.Lock()
	class.tasks = append(class.tasks, base)
	class.mu.Unlock()
}

func (s *Scheduler) assertSubmittable(op string, base *taskBase) {
	if base.IsInQueue() || base.IsStarted() || base.IsFinished() {
		misuse(op, "task %q submitted more than once", base.name)
	}
	if s.terminating.Load() {
		misuse(op, "task %q submitted after shutdown", base.name)
	}
}

// runInternal is shared by Run and expandChain (which calls it with
// autoChain=false on each chain neighbor it discovers).
func (s *Scheduler) runInternal(base *taskBase, autoChain bool) {
	s.assertSubmittable("Run", base)

	if autoChain {
		s.expandChain(base)
	}

	base.onEnqueue()

	class := s.classes[base.affinity]
	class.mu.Lock()
	class.tasks = append(class.tasks, base)
	class.mu.Unlock()

	s.notify(base.affinity, false)
}

// expandChain walks chained_next (forward) and chained_prev (backward) from
// base breadth-first, submitting every neighbor that is not already InQueue
// or Started, and excluding base itself. This makes submitting any one node
// of a chain equivalent to submitting the whole chain.
func (s *Scheduler) expandChain(base *taskBase) {
	visited := map[*taskBase]bool{base: true}
	var queue []*taskBase

	discover := func(n *taskBase) {
		for _, wnext := range n.chainedNext {
			next := wnext.Value()
			if next == nil || visited[next] {
				continue
			}
			visited[next] = true
			if !next.IsInQueue() && !next.IsStarted() {
				queue = append(queue, next)
			}
		}
		if prev := n.chainedPrev; prev != nil && !visited[prev] {
			visited[prev] = true
			if !prev.IsInQueue() && !prev.IsStarted() {
				queue = append(queue, prev)
			}
		}
	}

	discover(base)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		s.runInternal(n, false)
		discover(n)
	}
}

// tryFetchNextLocked scans class.tasks for the first ready task and removes
// it in place. The caller must already hold class.mu.
func (s *Scheduler) tryFetchNextLocked(class *classQueue, affinity Affinity) (*taskBase, bool) {
	for i, t := range class.tasks {
		if t.IsReadyToStart() {
			class.tasks = append(class.tasks[:i], class.tasks[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

func (s *Scheduler) tryFetchNext(affinity Affinity) (*taskBase, bool) {
	class := s.classes[affinity]
	class.mu.Lock()
	defer class.mu.Unlock()
	return s.tryFetchNextLocked(class, affinity)
}

// notify bumps every worker of affinity's "please look at your queues"
// counter, then wakes one (or, if broadcastAll, every) waiter blocked on
// that class's condition variable.
func (s *Scheduler) notify(affinity Affinity, broadcastAll bool) {
	class := s.classes[affinity]

	for _, w := range s.workersByClass[affinity] {
		w.execFlag.Add(1)
	}

	class.mu.Lock()
	if broadcastAll {
		class.cond.Broadcast()
	} else {
		class.cond.Signal()
	}
	class.mu.Unlock()
}

// ProcessMainThreadTasks executes every ready task currently in the Main
// queue, on the calling goroutine, until the queue yields no ready task.
func (s *Scheduler) ProcessMainThreadTasks() {
	for {
		task, ok := s.tryFetchNext(Main)
		if !ok {
			return
		}
		task.execute()
	}
}

// WaitIdle blocks the calling goroutine until class's shared queue is empty,
// every task found in the private queue of a worker of that class has
// finished, and no worker of that class is executing, per the snapshot-wait-resnapshot
// loop described in the source: new tasks enqueued mid-wait are picked up
// by the next snapshot, so this is not a strict barrier against producers.
func (s *Scheduler) WaitIdle(class Affinity) {
	s.waitIdleClass(class)
}

// WaitIdleClasses waits idle on each of classes in turn. Main is handled
// specially when called from the main goroutine: rather than blocking, it
// drains the Main queue cooperatively via ProcessMainThreadTasks.
func (s *Scheduler) WaitIdleClasses(classes ...Affinity) {
	for _, c := range classes {
		if c == Main && s.IsMainThread() {
			s.ProcessMainThreadTasks()
			continue
		}
		s.waitIdleClass(c)
	}
}

func (s *Scheduler) waitIdleClass(affinity Affinity) {
	class := s.classes[affinity]

	for {
		class.mu.Lock()
		waitFor := append([]*taskBase(nil), class.tasks...)
		for _, w := range s.workersByClass[affinity] {
			w.queueMu.Lock()
			waitFor = append(waitFor, w.private...)
			w.queueMu.Unlock()
		}
		class.mu.Unlock()

		for _, t := range waitFor {
			t.wait()
		}

		class.mu.Lock()
		remaining := len(class.tasks)
		class.mu.Unlock()
		if remaining == 0 {
			break
		}
	}

	for _, w := range s.workersByClass[affinity] {
		w.waitIdle()
	}
}

// NumWorkerThreads returns the total number of scheduler-owned goroutines
// across every affinity class.
func (s *Scheduler) NumWorkerThreads() int { return len(s.workers) }

// NumRHIThreads returns the configured RHI-affinity goroutine count.
func (s *Scheduler) NumRHIThreads() int { return s.cfg.RHIThreads }

// NumTasks returns the current length of class's shared queue. It does not
// count tasks sitting in any worker's private queue.
func (s *Scheduler) NumTasks(class Affinity) int {
	q := s.classes[class]
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// CurrentThreadClass returns the affinity class registered for the calling
// goroutine, or Main if the goroutine was never registered (an arbitrary
// producer goroutine, for instance).
func (s *Scheduler) CurrentThreadClass() Affinity {
	id := goroutineID()
	s.idMu.Lock()
	defer s.idMu.Unlock()
	if c, ok := s.threadClasses[id]; ok {
		return c
	}
	return Main
}

// IsMainThread reports whether the calling goroutine is the one that
// constructed the scheduler.
func (s *Scheduler) IsMainThread() bool { return goroutineID() == s.mainGoroutine }

// IsRenderThread reports whether the calling goroutine is the Render worker.
func (s *Scheduler) IsRenderThread() bool { return goroutineID() == s.renderThreadID }

// MainThreadID returns the goroutine id captured at New.
func (s *Scheduler) MainThreadID() int64 { return s.mainGoroutine }

// RenderThreadID returns the Render worker's goroutine id.
func (s *Scheduler) RenderThreadID() int64 { return s.renderThreadID }

func (s *Scheduler) registerThread(id int64, affinity Affinity) {
	s.idMu.Lock()
	s.threadClasses[id] = affinity
	s.idMu.Unlock()
}

func (s *Scheduler) workerByThreadID(id int64) *workerThread {
	for _, w := range s.workers {
		if w.threadID() == id {
			return w
		}
	}
	return nil
}

// WorkerThreadID returns the goroutine id of the index-th Worker-affinity
// goroutine, for tests and callers that need to target an explicit worker
// via RunOnThread. Panics if index is out of range.
func (s *Scheduler) WorkerThreadID(index int) int64 {
	workers := s.workersByClass[Worker]
	if index < 0 || index >= len(workers) {
		misuse("WorkerThreadID", "index %d out of range for %d worker threads", index, len(workers))
	}
	return workers[index].threadID()
}

// Shutdown terminates every scheduler-owned goroutine: it marks the
// scheduler terminating, wakes every class's waiters, joins every worker,
// and finally drains the Main queue cooperatively. Tasks still referenced
// by user code remain waitable; their sync blocks are released when they
// are garbage collected.
func (s *Scheduler) Shutdown() error {
	s.terminating.Store(true)

	for i := range s.classes {
		class := s.classes[i]
		class.mu.Lock()
		class.cond.Broadcast()
		class.mu.Unlock()
	}

	err := s.group.Wait()

	s.ProcessMainThreadTasks()

	return err
}
