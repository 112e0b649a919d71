// Package api serves task submission and inspection over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rayos/conductor/common/stats"
	"github.com/rayos/conductor/domain"
	"github.com/rayos/conductor/handlers"
	"github.com/rayos/conductor/monitor"
	"github.com/rayos/conductor/orchestrator"
)

const (
	TasksPath      = "/v1/tasks"
	StatsPath      = "/v1/stats"
	LoadPath       = "/v1/load"
	ActivityPath   = "/v1/activity"
	ViolationsPath = "/v1/violations"
	OptimizerPath  = "/v1/optimizer"

	maxRequestBytes   = 4 << 20
	defaultViolations = 10
)

// Service is what the API needs from the runtime.
type Service interface {
	Submit(task *domain.Task) (domain.TaskID, error)
	SubmitBatch(tasks []*domain.Task) ([]domain.TaskID, error)
	Status(id domain.TaskID) (domain.Status, bool)
	Stats() domain.OrchestratorStatistics
	SystemLoad() domain.SystemLoad
	UserActivity()
	Violations(n int) []monitor.LatencyViolation
	OptimizerStats() handlers.OptimizerStats
}

// SubmitResponse lists the accepted task ids. On a partial or failed
// submission Error says why the rest were refused.
type SubmitResponse struct {
	IDs   []domain.TaskID `json:"ids"`
	Error string          `json:"error,omitempty"`
}

type TaskStatusResponse struct {
	ID     domain.TaskID `json:"id"`
	Status domain.Status `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	svc     Service
	limiter *rate.Limiter
	stat    stats.StatsReceiver
}

// NewServer builds the API. A nil limiter accepts every submission.
func NewServer(svc Service, limiter *rate.Limiter, stat stats.StatsReceiver) *Server {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Server{svc: svc, limiter: limiter, stat: stat}
}

// Register mounts the API routes on r.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc(TasksPath, s.submit).Methods(http.MethodPost)
	r.HandleFunc(TasksPath+"/{id}", s.status).Methods(http.MethodGet)
	r.HandleFunc(StatsPath, s.stats).Methods(http.MethodGet)
	r.HandleFunc(LoadPath, s.load).Methods(http.MethodGet)
	r.HandleFunc(ActivityPath, s.activity).Methods(http.MethodPost)
	r.HandleFunc(ViolationsPath, s.violations).Methods(http.MethodGet)
	r.HandleFunc(OptimizerPath, s.optimizer).Methods(http.MethodGet)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	defer s.stat.Latency(stats.APISubmitLatency_ms).Time().Stop()
	s.stat.Counter(stats.APISubmitRequestCounter).Inc(1)

	if s.limiter != nil && !s.limiter.Allow() {
		s.stat.Counter(stats.APIRateLimitedCounter).Inc(1)
		writeError(w, http.StatusTooManyRequests, "submission rate exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reqs, err := decodeRequests(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tasks := make([]*domain.Task, len(reqs))
	for i, req := range reqs {
		tasks[i] = req.Task()
	}

	ids, err := s.svc.SubmitBatch(tasks)
	if ids == nil {
		ids = []domain.TaskID{}
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, SubmitResponse{IDs: ids})
	case orchestrator.IsCapacityError(err):
		log.WithFields(log.Fields{"accepted": len(ids), "requested": len(tasks)}).Info("Submission refused at capacity")
		writeJSON(w, http.StatusServiceUnavailable, SubmitResponse{IDs: ids, Error: err.Error()})
	default:
		log.Errorf("Failed to submit tasks: %v", err)
		writeJSON(w, http.StatusInternalServerError, SubmitResponse{IDs: ids, Error: err.Error()})
	}
}

// decodeRequests accepts a single request object or an array of them.
func decodeRequests(body []byte) ([]domain.TaskRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []domain.TaskRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	}
	var req domain.TaskRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, err
	}
	return []domain.TaskRequest{req}, nil
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseTaskID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, ok := s.svc.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown task "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, TaskStatusResponse{ID: id, Status: st})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.SystemLoad())
}

func (s *Server) activity(w http.ResponseWriter, r *http.Request) {
	s.svc.UserActivity()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) violations(w http.ResponseWriter, r *http.Request) {
	n := defaultViolations
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.svc.Violations(n))
}

func (s *Server) optimizer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.OptimizerStats())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
