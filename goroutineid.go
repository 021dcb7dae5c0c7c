package taskscheduler

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns an identifier for the calling goroutine, parsed out of
// runtime.Stack's leading "goroutine N [running]:" line.
//
// This is the Go rendition of the source's GetCurrentThreadId(): the
// scheduler needs a stable per-goroutine identity to self-identify which
// affinity class is currently running (CurrentThreadClass, IsMainThread,
// RunOnThread's target lookup). Go deliberately exposes no public
// goroutine-id API; this is a stdlib-only component because no grounded
// third-party alternative exists for it (see DESIGN.md).
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]

	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
