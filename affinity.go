// Package taskscheduler implements a multi-threaded, typed, dependency-aware
// task execution engine driving worker, rendering, RHI, and main-thread
// workloads: continuation chains, join-style dependencies, typed result
// propagation, thread-class affinity, and sync-block pooling.
package taskscheduler

import "fmt"

// Affinity identifies which thread class is allowed to execute a task.
// It is a tagged value, not an interface hierarchy: one fixed-size array per
// concern (queues, mutexes, condition variables) is keyed by its integer tag.
type Affinity uint8

const (
	// Main is the thread that called New. It is never backed by a
	// scheduler-owned goroutine; its queue is drained cooperatively by
	// ProcessMainThreadTasks.
	Main Affinity = iota
	// Worker is the pool of general-purpose threads. Work stealing between
	// them is out of scope: they all pull from one shared queue.
	Worker
	// Render is backed by exactly one OS-locked goroutine.
	Render
	// RHI is backed by a fixed count of OS-locked goroutines (default 2).
	RHI
	// FileSystem is a valid affinity tag, but the default worker-count
	// formula never allocates a worker for it. A FileSystem task only runs
	// if the scheduler was constructed with WithFileSystemThreads(n > 0).
	FileSystem

	// NumAffinityClasses is the fixed cardinality of Affinity.
	NumAffinityClasses = int(FileSystem) + 1
)

func (a Affinity) String() string {
	switch a {
	case Main:
		return "Main"
	case Worker:
		return "Worker"
	case Render:
		return "Render"
	case RHI:
		return "RHI"
	case FileSystem:
		return "FileSystem"
	default:
		return fmt.Sprintf("Affinity(%d)", uint8(a))
	}
}
