package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linksort/internal/config"
	"linksort/internal/logging"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Metrics.Bind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		token:  cfg.Metrics.Token,
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
				logging.String(logging.FieldErrorHint, "check metrics.bind"))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_server_listening"),
		logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type jobPayload struct {
	JobID        string     `json:"job_id"`
	Phase        string     `json:"phase"`
	Mode         string     `json:"mode"`
	Cursor       int        `json:"cursor"`
	Total        int        `json:"total"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	TaxonomySize int        `json:"taxonomy_size"`
	StartedAt    time.Time  `json:"started_at"`
	NextWake     *time.Time `json:"next_wake,omitempty"`
}

type statusPayload struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	LockFilePath string      `json:"lock_file"`
	Job          *jobPayload `json:"job,omitempty"`
	JobError     string      `json:"job_error,omitempty"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := statusPayload{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		JobError:     status.JobError,
	}
	if st := status.Job.State; st != nil {
		payload.Job = &jobPayload{
			JobID:        st.JobID,
			Phase:        string(st.Phase),
			Mode:         string(st.Mode),
			Cursor:       st.Cursor,
			Total:        st.Total(),
			Attempts:     st.Attempts,
			LastError:    st.LastError,
			TaxonomySize: len(st.Taxonomy),
			StartedAt:    st.StartedAt,
		}
		if status.Job.Armed {
			next := status.Job.NextWake
			payload.Job.NextWake = &next
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.daemon.running.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "stopped"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response",
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_encode_failed"),
			logging.String(logging.FieldErrorHint, "client may have disconnected"))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
