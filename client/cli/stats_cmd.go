package cli

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type statsCmd struct{}

func (c *statsCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print orchestrator counters and the self-optimization summary",
	}
}

func (c *statsCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := cl.Client.Stats(ctx)
	if err != nil {
		return clientError(err, "stats")
	}
	if err := cl.printJSON(st); err != nil {
		return err
	}
	opt, err := cl.Client.OptimizerStats(ctx)
	if err != nil {
		return clientError(err, "optimizer stats")
	}
	cl.printf("self-optimization: mutations %s  successful %s  active patches %d  avg improvement %.2fx\n",
		humanize.Comma(int64(opt.TotalMutations)), humanize.Comma(int64(opt.SuccessfulMutations)),
		opt.ActivePatches, opt.AvgImprovement)
	return nil
}

type loadCmd struct {
	violations int
}

func (c *loadCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "load",
		Short: "Print a system load snapshot and recent latency violations",
	}
	r.Flags().IntVar(&c.violations, "violations", 5, "Number of recent latency violations to show")
	return r
}

func (c *loadCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	load, err := cl.Client.Load(ctx)
	if err != nil {
		return clientError(err, "load")
	}
	m := load.Metrics
	cl.printf("cpu %.1f%%  memory %s (%.1f%%)  active %d  pending %d  idle %s\n",
		m.CPUUsage, humanize.IBytes(uint64(m.MemoryMB*1024*1024)), m.MemoryPercent,
		m.ActiveTasks, m.PendingTasks, m.IdleDuration)
	if load.Bottleneck != nil {
		cl.printf("bottleneck: %s\n", *load.Bottleneck)
	}
	for _, w := range load.Workers {
		cl.printf("%s %s completed=%s load=%.2f\n", w.ID, w.Type,
			humanize.Comma(int64(w.TasksCompleted)), w.LoadFactor)
	}
	if c.violations <= 0 {
		return nil
	}
	violations, err := cl.Client.Violations(ctx, c.violations)
	if err != nil {
		return clientError(err, "violations")
	}
	for _, v := range violations {
		cl.printf("violation %s: %s took %s (threshold %s)\n",
			humanize.Time(v.Timestamp), v.Label, v.Duration, v.Threshold)
	}
	return nil
}

type activityCmd struct{}

func (c *activityCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Report user activity, keeping the conductor out of dream mode",
	}
}

func (c *activityCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	return clientError(cl.Client.Activity(context.Background()), "activity")
}
