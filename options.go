package taskscheduler

import "github.com/erigontech/erigon-lib/log/v3"

const (
	defaultRHIThreads            = 2
	defaultSyncBlockPoolCapacity = 16384
)

// Config holds the scheduler's construction parameters. Build one with
// defaultConfig and a chain of Options rather than constructing it directly.
type Config struct {
	RHIThreads            int
	WorkerThreads         int // 0 selects max(1, NumCPU-2-RHIThreads)
	FileSystemThreads     int // 0 by default: FileSystem is a valid affinity with no default worker
	SyncBlockPoolCapacity int
	Logger                log.Logger
	Verbose               bool
}

func defaultConfig() Config {
	return Config{
		RHIThreads:            defaultRHIThreads,
		SyncBlockPoolCapacity: defaultSyncBlockPoolCapacity,
	}
}

// Option mutates a Config during New.
type Option func(*Config)

// WithRHIThreads overrides the number of RHI-affinity worker goroutines
// (default 2).
func WithRHIThreads(n int) Option {
	return func(c *Config) { c.RHIThreads = n }
}

// WithWorkerThreads overrides the number of Worker-affinity goroutines.
// Passing 0 restores the default formula max(1, NumCPU-2-RHIThreads).
func WithWorkerThreads(n int) Option {
	return func(c *Config) { c.WorkerThreads = n }
}

// WithFileSystemThreads dedicates n goroutines to the FileSystem affinity
// class. The default is 0: FileSystem tasks remain legal to create and
// submit, but nothing ever executes them unless this is set.
func WithFileSystemThreads(n int) Option {
	return func(c *Config) { c.FileSystemThreads = n }
}

// WithSyncBlockPoolCapacity overrides the fixed sync-block pool capacity
// (default 16384). Exhausting it is a fatal, non-recoverable condition, so
// size it for the peak number of concurrently live tasks.
func WithSyncBlockPoolCapacity(n int) Option {
	return func(c *Config) { c.SyncBlockPoolCapacity = n }
}

// WithLogger sets the structured logger used for scheduler lifecycle events.
// Defaults to log.Root() when unset.
func WithLogger(l log.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithVerbose enables Debug-level logging of individual task execution,
// which is otherwise suppressed as too hot a path to log by default.
func WithVerbose(v bool) Option {
	return func(c *Config) { c.Verbose = v }
}
