package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/hibiken/asynq"
)

const usage = `usage: taxctl <command> [flags]

commands:
  snapshot <order-id>   queue a tax snapshot for one sales order
  sweep [-limit N]      queue a sweep over orders without a current snapshot
  queue [-json]         print default queue depth
  scheduled [-size N]   list scheduled tasks
  cache invalidate [-product IDS] [-customer IDS]
                        drop cached tax profiles after catalog edits
`

// Run executes one taxctl command and returns the process exit code.
func (c *JobsCLI) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "snapshot":
		return c.snapshotCommand(ctx, args[1:], stdout, stderr)
	case "sweep":
		return c.sweepCommand(ctx, args[1:], stdout, stderr)
	case "queue":
		return c.queueCommand(ctx, args[1:], stdout, stderr)
	case "scheduled":
		return c.scheduledCommand(ctx, args[1:], stdout, stderr)
	case "cache":
		return c.cacheCommand(ctx, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "taxctl: unknown command %q\n%s", args[0], usage)
		return 2
	}
}

func (c *JobsCLI) snapshotCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "snapshot: exactly one order id is required")
		return 2
	}
	orderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || orderID <= 0 {
		_, _ = fmt.Fprintf(stderr, "snapshot: invalid order id %q\n", args[0])
		return 2
	}
	info, err := c.SnapshotOrder(ctx, orderID)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		_, _ = fmt.Fprintf(stdout, "order %d: snapshot already queued\n", orderID)
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "order %d: queued task %s\n", orderID, info.ID)
	return 0
}

func (c *JobsCLI) sweepCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 0, "maximum orders to queue (0 uses the job default)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	info, err := c.Sweep(ctx, *limit)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "sweep: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "queued sweep task %s\n", info.ID)
	return 0
}

func (c *JobsCLI) queueCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jsonOutput := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "queue: %v\n", err)
		return 1
	}
	if *jsonOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "queue: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

func (c *JobsCLI) scheduledCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scheduled", flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.Int("size", 10, "page size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	tasks, err := c.ListScheduled(ctx, *size)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "scheduled: %v\n", err)
		return 1
	}
	for _, task := range tasks {
		_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\n", task.ID, task.Type, task.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return 0
}
