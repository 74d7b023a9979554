package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"paramcheck/internal/report"
)

// StatusProvider exposes the live state of a verification run.
type StatusProvider interface {
	RunID() string
	Status() []report.DeviceRow
	Findings() []report.FindingRow
}

type Server struct {
	status StatusProvider
	tpl    *template.Template
	logger *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

func NewServer(status StatusProvider, logger *slog.Logger) *Server {
	funcs := template.FuncMap{
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return humanize.Time(t)
		},
	}
	tpl := template.Must(template.New("index.html").Funcs(funcs).ParseFS(content, "templates/index.html"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{status: status, tpl: tpl, logger: logger.With(slog.String("component", "admin"))}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /findings", s.handleFindings)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("admin server listening", slog.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		RunID    string
		Devices  []report.DeviceRow
		Findings []report.FindingRow
	}{
		RunID:    s.status.RunID(),
		Devices:  s.status.Status(),
		Findings: s.status.Findings(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.logger.Warn("render index failed", slog.Any("error", err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"run_id":  s.status.RunID(),
		"devices": s.status.Status(),
	})
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	findings := s.status.Findings()
	if findings == nil {
		findings = []report.FindingRow{}
	}
	writeJSON(w, findings)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
