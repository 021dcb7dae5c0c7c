package taskscheduler

import (
	"runtime"
	"sync/atomic"
	"weak"
)

// Void stands in for a typed slot that carries no data: an argument-less
// task's argument slot, or a result-less task's result slot. The zero-size
// struct occupies no storage, matching the "void slots occupy no storage"
// contract.
type Void = struct{}

// state is the three-bit monotonic task state. No bit is ever cleared.
type state uint32

const (
	stateInQueue state = 1 << iota
	stateStarted
	stateFinished
)

// taskBase is the non-generic machinery shared by every Task[R, A]
// instantiation: state, blockers, dependency/chain back-references, and the
// type-erased hooks a Task installs over its typed payload. Keeping this
// split (mirroring the source's ITask/Task<TResult,TArgs> split) is what
// lets dependents and chain links hold weak references across different
// generic instantiations, which Go's type system cannot otherwise express.
type taskBase struct {
	name     string
	affinity Affinity
	sched    *Scheduler

	syncHandle uint16

	state    atomic.Uint32
	blockers atomic.Int32

	// Mutated only while holding this task's sync-block mutex.
	dependents  []weak.Pointer[taskBase]
	chainedNext []weak.Pointer[taskBase]
	chainedPrev *taskBase // strong: keeps the chain alive until the head runs

	runFn     func()        // executes the stored callable with its argument
	setArg    func(any) bool // installs a predecessor's result into this task's argument slot
	getResult func() any    // reads this task's result slot, for publishing to chained successors
}

func (t *taskBase) setStateBit(bit state) {
	for {
		old := t.state.Load()
		nv := old | uint32(bit)
		if old == nv {
			return
		}
		if t.state.CompareAndSwap(old, nv) {
			return
		}
	}
}

func (t *taskBase) hasStateBit(bit state) bool {
	return state(t.state.Load())&bit != 0
}

func (t *taskBase) IsFinished() bool { return t.hasStateBit(stateFinished) }
func (t *taskBase) IsStarted() bool  { return t.hasStateBit(stateStarted) }
func (t *taskBase) IsInQueue() bool  { return t.hasStateBit(stateInQueue) }

// IsReadyToStart reports whether the task may be popped and executed: not
// started, not finished, and no outstanding blockers.
func (t *taskBase) IsReadyToStart() bool {
	s := state(t.state.Load())
	return s&stateStarted == 0 && s&stateFinished == 0 && t.blockers.Load() == 0
}

func (t *taskBase) onEnqueue() { t.setStateBit(stateInQueue) }

// join registers t as a dependent of other: t will not become ready until
// other finishes. A no-op if other is nil or has already finished (matching
// the expired/rejected weak-reference edge case: the blocker count is simply
// never incremented).
func (t *taskBase) join(other *taskBase) {
	if other == nil {
		return
	}
	if other.addDependent(t) {
		t.blockers.Add(1)
	}
}

// addDependent records dependent as a back-reference under this task's
// sync-block mutex, unless this task has already finished. Returns whether
// the dependent was accepted; this is the only place the dependent set is
// mutated outside of completion, and finished-ness is checked under the
// same lock that Complete sets it under so the two can never race.
func (o *taskBase) addDependent(dependent *taskBase) bool {
	blk := o.sched.pool.block(o.syncHandle)
	blk.mu.Lock()
	defer blk.mu.Unlock()
	if blk.finished {
		return false
	}
	o.dependents = append(o.dependents, weak.Make(dependent))
	return true
}

// addChainedNext appends next to this task's chain-next list under the
// sync-block mutex, mirroring ChainTasks in the source.
func (t *taskBase) addChainedNext(next *taskBase) {
	blk := t.sched.pool.block(t.syncHandle)
	blk.mu.Lock()
	t.chainedNext = append(t.chainedNext, weak.Make(next))
	blk.mu.Unlock()
}

// execute runs the stored callable, publishes its result into every chained
// successor's argument slot, and completes the task. Called exclusively by
// the worker (or the main-thread drain loop) that popped it.
func (t *taskBase) execute() {
	t.setStateBit(stateStarted)

	if t.sched.cfg.Verbose {
		t.sched.logger.Debug("executing task", "name", t.name, "affinity", t.affinity)
	}

	if t.runFn != nil {
		t.runFn()
	}

	for _, wnext := range t.chainedNext {
		next := wnext.Value()
		if next == nil || next.setArg == nil {
			continue
		}
		next.setArg(t.resultValue())
	}

	t.complete()
}

func (t *taskBase) resultValue() any {
	if t.getResult == nil {
		return nil
	}
	return t.getResult()
}

// complete runs under the task's sync-block mutex: promotes each dependent,
// decrements its blocker count, buckets newly-ready dependents by affinity
// class, clears the dependent set, sets Finished, and wakes any waiters --
// in that order, matching the invariant that Finished is set and the
// condvar notified without releasing the mutex in between.
func (t *taskBase) complete() {
	blk := t.sched.pool.block(t.syncHandle)
	blk.mu.Lock()

	var toNotify [NumAffinityClasses]int
	for _, wdep := range t.dependents {
		dep := wdep.Value()
		if dep == nil {
			continue
		}
		if dep.blockers.Add(-1) == 0 {
			toNotify[dep.affinity]++
		}
	}
	t.dependents = nil

	t.setStateBit(stateFinished)
	blk.finished = true
	blk.cond.Broadcast()
	blk.mu.Unlock()

	for class := 0; class < NumAffinityClasses; class++ {
		if toNotify[class] > 0 {
			t.sched.notify(Affinity(class), toNotify[class] > 1)
		}
	}
}

// wait blocks the calling goroutine until Finished is set. Returns
// immediately, without touching the condvar, if already finished.
func (t *taskBase) wait() {
	if t.IsFinished() {
		return
	}
	blk := t.sched.pool.block(t.syncHandle)
	blk.mu.Lock()
	for !blk.finished {
		blk.cond.Wait()
	}
	blk.mu.Unlock()
}

// AnyTask is implemented by every Task[R, A] instantiation. It lets Join and
// the scheduler's submission API accept tasks of differing result/argument
// types, the same way the source's dependency/chain lists hold ITask
// pointers regardless of each task's TResult/TArgs.
type AnyTask interface {
	baseTask() *taskBase
}

// Task is a unit of work with a typed argument slot A (written by a chained
// predecessor) and a typed result slot R (read by chained successors).
// Construct one with CreateTask or CreateTaskWithResult.
type Task[R, A any] struct {
	base   *taskBase
	arg    A
	result R
	fn     func(A) R
}

func (t *Task[R, A]) baseTask() *taskBase { return t.base }

// newTypedTask wires a fresh taskBase's type-erased hooks over a Task's
// typed fields and acquires its sync block from the scheduler's pool.
func newTypedTask[R, A any](s *Scheduler, name string, affinity Affinity, fn func(A) R) *Task[R, A] {
	t := &Task[R, A]{fn: fn}
	base := &taskBase{
		name:     name,
		affinity: affinity,
		sched:    s,
	}
	base.syncHandle = s.acquireSyncBlock()
	base.runFn = func() { t.result = t.fn(t.arg) }
	base.setArg = func(v any) bool {
		a, ok := v.(A)
		if !ok {
			return false
		}
		t.arg = a
		return true
	}
	base.getResult = func() any { return t.result }
	t.base = base

	// Releases the sync block back to the pool at destruction, mirroring
	// Task::~Task's call to ReleaseTaskSyncBlock in the source; the pool
	// slot is otherwise only ever referenced by this task. A cleanup, unlike a
	// finalizer, still runs although base is reachable from itself through
	// its hooks and t.
	runtime.AddCleanup(base, s.releaseSyncBlock, base.syncHandle)

	return t
}

// CreateTask constructs a task with an explicit argument type A and result
// type R, targeting affinity. The callable runs with whatever argument a
// chained predecessor publishes, or A's zero value if there is none.
func CreateTask[R, A any](s *Scheduler, name string, fn func(A) R, affinity Affinity) *Task[R, A] {
	return newTypedTask[R, A](s, name, affinity, fn)
}

// CreateTaskWithResult constructs a zero-argument task producing a typed
// result, targeting affinity.
func CreateTaskWithResult[R any](s *Scheduler, name string, fn func() R, affinity Affinity) *Task[R, Void] {
	return newTypedTask[R, Void](s, name, affinity, func(Void) R { return fn() })
}

// CreateTaskWithArgs constructs a task that consumes a typed argument and
// produces no result, targeting affinity.
func CreateTaskWithArgs[A any](s *Scheduler, name string, fn func(A), affinity Affinity) *Task[Void, A] {
	return newTypedTask[Void, A](s, name, affinity, func(a A) Void { fn(a); return Void{} })
}

// Join makes t a dependent of other: t will not become ready to start until
// other reaches Finished. A no-op if other is nil or already finished.
func (t *Task[R, A]) Join(other AnyTask) *Task[R, A] {
	if other != nil {
		t.base.join(other.baseTask())
	}
	return t
}

// Run enqueues t (and, unless it has already been submitted as part of
// expanding an earlier chain member, its full chain) into its affinity
// class's shared queue, and returns t for chaining.
func (t *Task[R, A]) Run() *Task[R, A] {
	t.base.sched.Run(t)
	return t
}

// Wait blocks the calling goroutine until t.IsFinished(), then returns t.
func (t *Task[R, A]) Wait() *Task[R, A] {
	t.base.wait()
	return t
}

// GetResult returns t's result. Valid only after Wait returns or
// IsFinished() is true.
func (t *Task[R, A]) GetResult() R { return t.result }

func (t *Task[R, A]) IsFinished() bool { return t.base.IsFinished() }
func (t *Task[R, A]) IsStarted() bool  { return t.base.IsStarted() }
func (t *Task[R, A]) IsInQueue() bool  { return t.base.IsInQueue() }
func (t *Task[R, A]) Name() string     { return t.base.name }
func (t *Task[R, A]) Affinity() Affinity { return t.base.affinity }

// Then constructs a continuation consuming t's result and producing R2,
// targeting affinity. It cannot be a method of Task because Go forbids a
// method from introducing a new type parameter, so it is a package-level
// generic function -- the idiomatic rendition of the source's templated
// Task<TResult,TArgs>::Then<TContinuationResult>.
//
// If t has already produced a result, next's argument slot is set
// synchronously and next is submitted immediately (it still registers chain
// links, for uniformity, but its blocker count stays zero). Otherwise next
// is joined onto t and submitted only once t is itself submitted or
// completes.
func Then[A, R, R2 any](t *Task[R, A], name string, affinity Affinity, fn func(R) R2) *Task[R2, R] {
	next := newTypedTask[R2, R](t.base.sched, name, affinity, fn)
	next.base.chainedPrev = t.base

	t.base.addChainedNext(next.base)

	next.base.join(t.base)

	if t.base.IsFinished() {
		next.arg = t.result
	}

	if t.base.IsInQueue() || t.base.IsStarted() || t.base.IsFinished() {
		t.base.sched.runInternal(next.base, true)
	}

	return next
}

// SnapshotResult wraps t's current result as a task chained after t, the Go
// rendition of the source's Task::ToTaskWithResult: useful when a caller
// needs a Task handle over a value that is otherwise only reachable via
// GetResult.
func SnapshotResult[R any](t *Task[R, Void]) *Task[R, Void] {
	return Then[Void, R, R](t, t.base.name+" (result)", t.base.affinity, func(r R) R { return r })
}
