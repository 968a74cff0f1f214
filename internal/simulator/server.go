package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"cadence/internal/logging"
	"cadence/internal/wire"
)

const keepaliveInterval = 15 * time.Second

// Server exposes the simulated backend over HTTP.
type Server struct {
	engine *Engine
	logger *slog.Logger
	router chi.Router
}

// NewServer builds the HTTP surface over an engine.
func NewServer(engine *Engine, logger *slog.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewComponentLogger(logger, "simulator"),
	}

	r := chi.NewRouter()
	r.Get("/api/healthz", s.handleHealth)
	r.Get("/api/analyses/{analysisID}/feedback", s.handleFetch)
	r.Post("/api/analyses/{analysisID}/feedback", s.handleAdd)
	r.Get("/api/analyses/{analysisID}/feedback/events", s.handleEvents)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves the simulator on addr and steps the engine on stepInterval
// until ctx is cancelled.
func Run(ctx context.Context, engine *Engine, addr string, stepInterval time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewServer(engine, logger),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		engine.Run(groupCtx, stepInterval)
		return nil
	})
	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("simulator server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisID")
	records := s.engine.Records(analysisID)

	payload := make([]wire.Record, 0, len(records))
	for _, rec := range records {
		payload = append(payload, wire.FromRecord(rec))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisID")

	var req wire.Record
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	rec := req.ToDomain()
	rec.AnalysisID = analysisID
	added := s.engine.Add(rec)
	writeJSON(w, http.StatusCreated, wire.FromRecord(added))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := s.engine.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: %s\ndata: {}\n\n", wire.EventReady)
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if ev.AnalysisID != analysisID {
				continue
			}
			data, err := json.Marshal(wire.FromEvent(ev))
			if err != nil {
				s.logger.Warn("marshal event failed", logging.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", wire.EventFeedback, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
