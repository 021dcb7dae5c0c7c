// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Command taskschedbench exercises the Worker, Render and RHI affinity
// classes of the task scheduler end to end: a Worker task chained into a
// Render task chained into an RHI task, plus a batch of concurrently
// submitted Worker tasks, then reports how long each stage took. Main and
// FileSystem tasks are not exercised.
package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/erigontech/taskscheduler"
)

var (
	rhiThreadsFlag = &cli.IntFlag{
		Name:  "rhi-threads",
		Usage: "number of RHI-affinity worker goroutines",
		Value: 2,
	}
	workerThreadsFlag = &cli.IntFlag{
		Name:  "worker-threads",
		Usage: "number of Worker-affinity worker goroutines (0 = max(1, NumCPU-2-rhi-threads))",
		Value: 0,
	}
	syncPoolCapacityFlag = &cli.IntFlag{
		Name:  "sync-pool-capacity",
		Usage: "fixed capacity of the task sync-block pool",
		Value: 16384,
	}
	producersFlag = &cli.IntFlag{
		Name:  "producers",
		Usage: "number of concurrent producer goroutines in the submission benchmark",
		Value: 4,
	}
	tasksPerProducerFlag = &cli.IntFlag{
		Name:  "tasks-per-producer",
		Usage: "number of tasks each producer goroutine submits",
		Value: 50,
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log individual task execution",
	}
)

func main() {
	app := &cli.App{
		Name:  "taskschedbench",
		Usage: "exercise the task scheduler's affinity classes and report timings",
		Flags: []cli.Flag{
			rhiThreadsFlag,
			workerThreadsFlag,
			syncPoolCapacityFlag,
			producersFlag,
			tasksPerProducerFlag,
			verboseFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := log.Root()

	sched := taskscheduler.New(
		taskscheduler.WithRHIThreads(c.Int(rhiThreadsFlag.Name)),
		taskscheduler.WithWorkerThreads(c.Int(workerThreadsFlag.Name)),
		taskscheduler.WithSyncBlockPoolCapacity(c.Int(syncPoolCapacityFlag.Name)),
		taskscheduler.WithLogger(logger),
		taskscheduler.WithVerbose(c.Bool(verboseFlag.Name)),
	)
	defer sched.Shutdown()

	logger.Info("scheduler started",
		"workerThreads", sched.NumWorkerThreads(),
		"rhiThreads", sched.NumRHIThreads())

	runChainDemo(sched, logger)
	runSubmissionBenchmark(sched, logger, c.Int(producersFlag.Name), c.Int(tasksPerProducerFlag.Name))

	return nil
}

func runChainDemo(sched *taskscheduler.Scheduler, logger log.Logger) {
	start := time.Now()

	worker := taskscheduler.CreateTaskWithResult(sched, "worker-stage", func() int {
		return 21
	}, taskscheduler.Worker)

	render := taskscheduler.Then[taskscheduler.Void, int, int](worker, "render-stage", taskscheduler.Render, func(v int) int {
		return v * 2
	})

	rhi := taskscheduler.Then[int, int, string](render, "rhi-stage", taskscheduler.RHI, func(v int) string {
		return fmt.Sprintf("rhi saw %d", v)
	})

	worker.Run()
	sched.WaitIdleClasses(taskscheduler.Worker, taskscheduler.Render, taskscheduler.RHI)

	logger.Info("chain demo complete",
		"result", rhi.GetResult(),
		"elapsed", time.Since(start))
}

func runSubmissionBenchmark(sched *taskscheduler.Scheduler, logger log.Logger, producers, tasksPerProducer int) {
	start := time.Now()

	var counter atomic.Int64
	done := make(chan struct{}, producers)

	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < tasksPerProducer; i++ {
				taskscheduler.CreateTaskWithResult(sched, "increment", func() taskscheduler.Void {
					counter.Add(1)
					return taskscheduler.Void{}
				}, taskscheduler.Worker).Run()
			}
			done <- struct{}{}
		}()
	}
	for p := 0; p < producers; p++ {
		<-done
	}

	sched.WaitIdleClasses(taskscheduler.Worker)

	logger.Info("submission benchmark complete",
		"producers", producers,
		"tasksPerProducer", tasksPerProducer,
		"counter", counter.Load(),
		"elapsed", time.Since(start))
}
