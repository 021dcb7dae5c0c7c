package taskscheduler

import (
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/erigontech/erigon-lib/log/v3"
)

// syncBlockApproxSize estimates the per-handle footprint of a sync block for
// diagnostic logging only; it has no bearing on the pool's behavior.
const syncBlockApproxSize = 56

// blockPool is the sync-block pool's contract as seen by tasks and workers:
// issue a handle, release it, and look up the block behind it. Declaring it
// separately from *syncBlockPool lets worker- and task-level tests swap in a
// deterministic double instead of constructing a full Scheduler.
type blockPool interface {
	acquire() uint16
	release(handle uint16)
	block(handle uint16) *syncBlock
}

// syncBlock is the {mutex, condvar, completion_flag} triple a task references
// by its 16-bit handle, kept out of the task struct itself to save the space
// a per-task mutex/condvar pair would otherwise cost.
type syncBlock struct {
	mu       sync.Mutex
	cond     sync.Cond
	finished bool
}

// syncBlockPool is a fixed-capacity slab of syncBlocks issued by handle. The
// free list is a buffered channel: push is a non-blocking send, pop is a
// non-blocking receive, which is exactly the push/try-pop contract the
// lock-free free list needs without hand-rolling a CAS-based queue.
type syncBlockPool struct {
	blocks []syncBlock
	free   chan uint16
}

func newSyncBlockPool(capacity int, logger log.Logger) *syncBlockPool {
	p := &syncBlockPool{
		blocks: make([]syncBlock, capacity),
		free:   make(chan uint16, capacity),
	}
	for i := range p.blocks {
		p.blocks[i].cond.L = &p.blocks[i].mu
		p.free <- uint16(i)
	}
	if logger != nil {
		logger.Debug("task sync block pool initialized",
			"capacity", capacity,
			"approxSize", datasize.ByteSize(uint64(capacity)*syncBlockApproxSize))
	}
	return p
}

// acquire pops a handle from the free list and reinitializes its block.
// Exhaustion is a fatal configuration error, never a condition to retry.
func (p *syncBlockPool) acquire() uint16 {
	select {
	case h := <-p.free:
		b := &p.blocks[h]
		b.mu.Lock()
		b.finished = false
		b.mu.Unlock()
		return h
	default:
		panic(&PoolExhaustedError{Capacity: len(p.blocks)})
	}
}

// release returns handle to the free list. No block reset is required here:
// acquire reinitializes the block the next time this handle is issued, and
// no other task can reference it once released.
func (p *syncBlockPool) release(handle uint16) {
	p.free <- handle
}

func (p *syncBlockPool) block(handle uint16) *syncBlock {
	return &p.blocks[handle]
}

func (p *syncBlockPool) capacity() int {
	return len(p.blocks)
}

// freeCount reports the number of currently unheld handles. Exposed for
// tests exercising the "N acquire-release pairs leave the pool at capacity"
// property.
func (p *syncBlockPool) freeCount() int {
	return len(p.free)
}
