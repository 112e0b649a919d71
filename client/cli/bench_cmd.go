package cli

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cerrors "github.com/rayos/conductor/common/errors"
	"github.com/rayos/conductor/conductor"
	"github.com/rayos/conductor/config"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/orchestrator"
)

const benchBatch = 64

type benchCmd struct {
	workers  int
	tasks    int
	duration time.Duration
	maxQueue uint64
	timeout  time.Duration
}

func (c *benchCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "bench",
		Short: "Run compute tasks through an in-process conductor and report throughput",
	}
	r.Flags().IntVar(&c.workers, "workers", 0, "Worker count (0 means one per CPU)")
	r.Flags().IntVar(&c.tasks, "tasks", 1000, "Number of compute tasks")
	r.Flags().DurationVar(&c.duration, "duration", time.Millisecond, "Estimated duration of each task")
	r.Flags().Uint64Var(&c.maxQueue, "max_queue", 10000, "Maximum pending tasks")
	r.Flags().DurationVar(&c.timeout, "timeout", time.Minute, "Give up after this long")
	return r
}

func (c *benchCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	if c.tasks < 1 || c.workers < 0 || c.maxQueue == 0 {
		return cerrors.NewError(errors.New("bench needs --tasks >= 1, --workers >= 0 and --max_queue >= 1"), cerrors.UsageExitCode)
	}
	cfg := config.Defaults()
	cfg.Workers = c.workers
	cfg.MaxQueueSize = c.maxQueue
	cond, err := conductor.New(&cfg)
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigFailureExitCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cond.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	start := time.Now()
	deadline := start.Add(c.timeout)
	if err := c.submitAll(cond, deadline); err != nil {
		return err
	}
	total := uint64(c.tasks)
	for {
		st := cond.Stats()
		if st.CompletedTasks+st.FailedTasks >= total {
			elapsed := time.Since(start)
			cl.printf("%s tasks on %d workers in %s: %s tasks/s, %s stolen, %s failed\n",
				humanize.Comma(int64(st.TotalTasks)), st.WorkerCount, elapsed.Round(time.Millisecond),
				humanize.CommafWithDigits(float64(total)/elapsed.Seconds(), 1),
				humanize.Comma(int64(st.StolenTasks)), humanize.Comma(int64(st.FailedTasks)))
			return nil
		}
		if time.Now().After(deadline) {
			return cerrors.NewError(errors.Errorf("bench timed out with %d of %d tasks finished",
				st.CompletedTasks+st.FailedTasks, total), cerrors.BenchTimeoutExitCode)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// submitAll submits in batches, backing off while the queue is full.
func (c *benchCmd) submitAll(cond *conductor.Conductor, deadline time.Time) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond

	for submitted := 0; submitted < c.tasks; {
		// Retry resets b, so the budget is recomputed per batch. Zero would mean no limit.
		if b.MaxElapsedTime = time.Until(deadline); b.MaxElapsedTime <= 0 {
			return cerrors.NewError(errors.New("bench timed out while submitting"), cerrors.BenchTimeoutExitCode)
		}
		n := c.tasks - submitted
		if n > benchBatch {
			n = benchBatch
		}
		batch := make([]*domain.Task, n)
		for i := range batch {
			batch[i] = domain.NewTask(domain.Normal, domain.Compute{Name: "bench", EstimatedDuration: c.duration})
		}
		err := backoff.Retry(func() error {
			ids, err := cond.SubmitBatch(batch)
			submitted += len(ids)
			batch = batch[len(ids):]
			if err != nil && !orchestrator.IsCapacityError(err) {
				log.Errorf("Bench submission failed: %v", err)
				return nil
			}
			return err
		}, b)
		if err != nil {
			return cerrors.NewError(errors.Wrap(err, "bench queue stayed full"), cerrors.BenchTimeoutExitCode)
		}
		if len(batch) > 0 {
			return cerrors.NewError(errors.New("bench submission failed"), cerrors.GenericFailureExitCode)
		}
	}
	return nil
}
