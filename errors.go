package taskscheduler

import "fmt"

// MisuseError reports a precondition violation: double submit, submission
// after shutdown, a RunOnThread target that is neither a worker nor the main
// goroutine, or an out-of-range WorkerThreadID index. A join onto a finished
// task is not one of them: it is silently ignored. Waiting idle on Main from
// another goroutine is not checked either. These are programming errors, not runtime
// conditions, so they panic rather than returning an error value.
type MisuseError struct {
	Op  string
	Msg string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("taskscheduler: misuse in %s: %s", e.Op, e.Msg)
}

func misuse(op, format string, args ...any) {
	panic(&MisuseError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// PoolExhaustedError reports that the sync-block pool has no free handles
// left to hand out. This is a fatal configuration error: size the pool
// (WithSyncBlockPoolCapacity) for the peak number of concurrently live
// tasks, it is never a condition callers should retry through.
type PoolExhaustedError struct {
	Capacity int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("taskscheduler: sync block pool exhausted (capacity %d)", e.Capacity)
}
