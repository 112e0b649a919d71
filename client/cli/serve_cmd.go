package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rayos/conductor/api"
	"github.com/rayos/conductor/common/endpoints"
	cerrors "github.com/rayos/conductor/common/errors"
	"github.com/rayos/conductor/conductor"
	"github.com/rayos/conductor/config"
	"github.com/rayos/conductor/orchestrator"
)

type serveCmd struct {
	configSelector string
	httpAddr       string
	workers        int
}

func (c *serveCmd) RegisterFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "serve",
		Short: "Run the conductor and its HTTP API until interrupted",
	}
	r.Flags().StringVar(&c.configSelector, "config", config.DefaultConfigName,
		"Config name, file path or inline YAML/JSON")
	r.Flags().StringVar(&c.httpAddr, "http_addr", "", "Override http.addr from the config")
	r.Flags().IntVar(&c.workers, "workers", -1, "Override workers from the config (0 means one per CPU)")
	return r
}

func (c *serveCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configSelector)
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigFailureExitCode)
	}
	if c.httpAddr != "" {
		cfg.HTTP.Addr = c.httpAddr
	}
	if c.workers >= 0 {
		cfg.Workers = c.workers
	}
	log.Infof("Serving with config %s", cfg)

	stat := endpoints.MakeStatsReceiver("conductor")
	cond, err := conductor.New(cfg, conductor.WithStatsReceiver(stat))
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigFailureExitCode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(cond.Collector(), collectors.NewGoCollector())
	server := endpoints.NewTwitterServer(cfg.HTTP.Addr, stat, reg)
	limiter := rate.NewLimiter(rate.Limit(cfg.HTTP.SubmitRate), cfg.HTTP.SubmitBurst)
	api.NewServer(cond, limiter, stat.Scope("api")).Register(server.Router())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cond.Run(gctx) })
	g.Go(func() error {
		if err := server.Serve(gctx); err != nil {
			return cerrors.NewError(errors.Wrap(err, "serving http"), cerrors.ServeFailureExitCode)
		}
		return nil
	})
	err = g.Wait()
	if _, ok := errors.Cause(err).(*orchestrator.WorkerPanicError); ok {
		return cerrors.NewError(err, cerrors.WorkerPanicExitCode)
	}
	return err
}
