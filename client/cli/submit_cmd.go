package cli

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cerrors "github.com/rayos/conductor/common/errors"
	"github.com/rayos/conductor/domain"
)

type submitCmd struct {
	payloadType string
	priority    string
	count       int

	name        string
	duration    time.Duration
	path        string
	query       string
	limit       int
	target      string
	maintenance string
}

func (c *submitCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "submit",
		Short: "Submit tasks and print their ids",
	}
	r.Flags().StringVar(&c.payloadType, "type", string(domain.ComputeKind),
		"compute|index_file|search|optimize|maintenance")
	r.Flags().StringVar(&c.priority, "priority", "normal", "critical|high|normal|low|dream")
	r.Flags().IntVar(&c.count, "count", 1, "Number of identical tasks to submit as one batch")
	r.Flags().StringVar(&c.name, "name", "cli", "compute: task name; optimize: function name")
	r.Flags().DurationVar(&c.duration, "duration", 10*time.Millisecond, "compute: estimated duration")
	r.Flags().StringVar(&c.path, "path", "", "index_file: file to index; optimize: module path, or the function's machine code")
	r.Flags().StringVar(&c.query, "query", "", "search: query")
	r.Flags().IntVar(&c.limit, "limit", 5, "search: maximum matches")
	r.Flags().StringVar(&c.target, "target", string(domain.SystemTarget), "optimize: system|module|function")
	r.Flags().StringVar(&c.maintenance, "maintenance", string(domain.GarbageCollection),
		"maintenance: garbage_collection|index_rebuild|cache_flush|metrics_export")
	return r
}

func (c *submitCmd) payload() (domain.Payload, error) {
	switch domain.PayloadKind(c.payloadType) {
	case domain.ComputeKind:
		if c.name == "" || c.duration < 0 {
			return nil, errors.New("compute needs --name and a non-negative --duration")
		}
		return domain.Compute{Name: c.name, EstimatedDuration: c.duration}, nil
	case domain.IndexFileKind:
		if c.path == "" {
			return nil, errors.New("index_file needs --path")
		}
		return domain.IndexFile{Path: c.path}, nil
	case domain.SearchKind:
		return domain.Search{Query: c.query, Limit: c.limit}, nil
	case domain.OptimizeKind:
		switch domain.TargetKind(c.target) {
		case domain.SystemTarget:
			return domain.Optimize{Target: domain.SystemOptimization()}, nil
		case domain.ModuleTarget:
			if c.path == "" {
				return nil, errors.New("optimize --target module needs --path")
			}
			return domain.Optimize{Target: domain.ModuleOptimization(c.path)}, nil
		case domain.FunctionTarget:
			if c.name == "" || c.path == "" {
				return nil, errors.New("optimize --target function needs --name and --path")
			}
			code, err := os.ReadFile(c.path)
			if err != nil {
				return nil, errors.Wrapf(err, "reading function code from %s", c.path)
			}
			return domain.Optimize{Target: domain.FunctionOptimization(c.name, code)}, nil
		}
		return nil, errors.Errorf("unsupported optimize target %q", c.target)
	case domain.MaintenanceKind:
		t := domain.MaintenanceType(c.maintenance)
		if !t.Valid() {
			return nil, errors.Errorf("unknown maintenance type %q", c.maintenance)
		}
		return domain.Maintenance{Type: t}, nil
	}
	return nil, errors.Errorf("unknown task type %q", c.payloadType)
}

func (c *submitCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	priority, err := domain.ParsePriority(c.priority)
	if err != nil {
		return cerrors.NewError(err, cerrors.UsageExitCode)
	}
	payload, err := c.payload()
	if err != nil {
		return cerrors.NewError(err, cerrors.UsageExitCode)
	}
	if c.count < 1 {
		return cerrors.NewError(errors.Errorf("--count must be >= 1, got %d", c.count), cerrors.UsageExitCode)
	}

	reqs := make([]domain.TaskRequest, c.count)
	for i := range reqs {
		reqs[i] = domain.TaskRequest{Priority: priority, Payload: payload}
	}
	ids, err := cl.Client.Submit(context.Background(), reqs...)
	for _, id := range ids {
		cl.printf("%s\n", id)
	}
	if err != nil {
		log.Errorf("Submitted %d of %d tasks", len(ids), len(reqs))
		return clientError(err, "submit")
	}
	return nil
}
