// Command minirts-demo drives a Runtime from the command line: spawn
// a batch of synthetic tasks, wait for them with WhenAll, and print a
// summary. It exists to exercise the library end-to-end and to give
// the config and observability packages a caller.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	minirts "github.com/lattice-run/minirts"
	"github.com/lattice-run/minirts/config"
	"github.com/lattice-run/minirts/future"
	"github.com/lattice-run/minirts/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		workers      int
		tasks        int
		pinAffinity  bool
		eventLogSize int
		dumpPath     string
		showEvents   bool
	)

	cmd := &cobra.Command{
		Use:   "minirts-demo",
		Short: "Run a batch of synthetic tasks through a minirts.Runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(runOptions{
				workers:      workers,
				tasks:        tasks,
				pinAffinity:  pinAffinity,
				eventLogSize: eventLogSize,
				dumpPath:     dumpPath,
				showEvents:   showEvents,
			})
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (0 = number of CPUs)")
	cmd.Flags().IntVar(&tasks, "tasks", 1000, "number of synthetic tasks to spawn")
	cmd.Flags().BoolVar(&pinAffinity, "pin-affinity", false, "pin each worker to a CPU core")
	cmd.Flags().IntVar(&eventLogSize, "event-log-size", 256, "diagnostic event log capacity (0 disables it)")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "write a msgpack stats snapshot to this path after the run")
	cmd.Flags().BoolVar(&showEvents, "events", false, "print the diagnostic event log after the run")

	return cmd
}

type runOptions struct {
	workers      int
	tasks        int
	pinAffinity  bool
	eventLogSize int
	dumpPath     string
	showEvents   bool
}

type statsSnapshot struct {
	Workers      int           `msgpack:"workers"`
	Tasks        int           `msgpack:"tasks"`
	Elapsed      time.Duration `msgpack:"elapsed_ns"`
	Sum          int64         `msgpack:"sum"`
	FailureCount int           `msgpack:"failure_count"`
}

func run(opts runOptions) error {
	cfg := config.Build(
		config.WithWorkers(opts.workers),
		config.WithAffinity(opts.pinAffinity),
		config.WithEventLog(opts.eventLogSize),
	)

	ctx := context.Background()
	rt := minirts.NewRuntime(ctx, cfg)
	defer rt.FinalizeSoft(10 * time.Second)

	color.Cyan("spawning %d tasks across %d workers", opts.tasks, rt.Pool().Workers())

	start := time.Now()
	inputs := make([]future.Future[int64], opts.tasks)
	for i := range inputs {
		i := i
		inputs[i] = minirts.Spawn(ctx, rt, func() int64 {
			// A little synthetic, uneven work so stealing has something
			// to do: most tasks are cheap, a few run long.
			n := rand.Intn(1000)
			if n%97 == 0 {
				time.Sleep(2 * time.Millisecond)
			}
			return int64(n)
		})
	}

	all := minirts.WhenAll(ctx, rt, inputs)
	results, err := all.Get(ctx)
	elapsed := time.Since(start)

	failures := 0
	var sum int64
	for _, v := range results {
		sum += v
	}
	if err != nil {
		failures = 1
		color.Red("run failed: %v", err)
	} else {
		color.Green("completed %d tasks in %s (sum=%d)", len(results), elapsed, sum)
	}

	stats := rt.Pool().Stats()
	printStats(stats)

	if opts.showEvents {
		printEvents(rt.Pool())
	}

	if opts.dumpPath != "" {
		snap := statsSnapshot{
			Workers:      stats.Workers,
			Tasks:        opts.tasks,
			Elapsed:      elapsed,
			Sum:          sum,
			FailureCount: failures,
		}
		if err := dumpSnapshot(opts.dumpPath, snap); err != nil {
			return fmt.Errorf("dumping snapshot: %w", err)
		}
		color.Yellow("wrote stats snapshot to %s", opts.dumpPath)
	}

	return err
}

func printStats(s worker.Stats) {
	fmt.Printf("pool stats: workers=%d state=%s queued_local=%d queued_submit=%d active=%d\n",
		s.Workers, s.State, s.QueuedLocal, s.QueuedSubmit, s.Active)
}

func printEvents(pool *worker.ThreadPool) {
	log := pool.EventLog()
	if log == nil {
		fmt.Println("event log disabled (--event-log-size=0)")
		return
	}
	events := log.Snapshot()
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshaling events: %v\n", err)
		return
	}
	fmt.Println(string(b))
}

func dumpSnapshot(path string, snap statsSnapshot) error {
	b, err := msgpack.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
