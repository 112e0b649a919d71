// Package endpoints serves the admin HTTP surface shared by every conductor
// server: health, go-metrics JSON and Prometheus exposition. Callers mount
// their own routes on Router() before calling Serve.
package endpoints

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/common/stats"
)

const shutdownGrace = 5 * time.Second

type StatScope string

// MakeStatsReceiver returns a finagle-style receiver scoped to scope with
// latencies rendered in milliseconds.
func MakeStatsReceiver(scope StatScope) stats.StatsReceiver {
	return stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry).
		Scope(string(scope)).
		Precision(time.Millisecond)
}

func NewTwitterServer(addr string, stat stats.StatsReceiver, gatherer prometheus.Gatherer) *TwitterServer {
	s := &TwitterServer{
		Addr:   addr,
		Stats:  stat,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/admin/metrics.json", s.statsHandler).Methods(http.MethodGet)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.NotFoundHandler = http.HandlerFunc(helpHandler)
	return s
}

type TwitterServer struct {
	Addr   string
	Stats  stats.StatsReceiver
	router *mux.Router
}

// Router exposes the route table so callers can mount their own handlers.
func (s *TwitterServer) Router() *mux.Router {
	return s.router
}

// Handler returns the root handler, for tests and embedding.
func (s *TwitterServer) Handler() http.Handler {
	return s.router
}

// Serve listens on Addr until ctx is done, then shuts the server down.
func (s *TwitterServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.Addr)
	}
	return s.ServeListener(ctx, ln)
}

func (s *TwitterServer) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": ln.Addr().String()}).Info("Serving http & stats")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http server shutdown")
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server stopped")
	}
	return nil
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Common paths: '/health', '/admin/metrics.json', '/metrics', '/v1/tasks', '/v1/stats', '/v1/load'", http.StatusNotFound)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *TwitterServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	const contentTypeHdr = "Content-Type"
	const contentTypeVal = "application/json; charset=utf-8"
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
