package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ignatij/agendaflow/internal/log"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// NewMux wires every route. Runs started through POST /runs live under ctx,
// not under the request that started them.
func NewMux(ctx context.Context, engine *service.Engine, hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/participants", ParticipantsHandler(engine))
	mux.HandleFunc("/runs", RunsHandler(ctx, engine))
	mux.HandleFunc("/runs/", RunByIDHandler(engine))
	mux.HandleFunc("/log", LogHandler(engine))
	mux.HandleFunc("/events", hub.ServeWS)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// StartServer serves the API on addr until ctx is done, then shuts down
// gracefully.
func StartServer(ctx context.Context, addr string, engine *service.Engine) error {
	logger := log.GetLogger()
	hub := NewHub(logger)
	events, unsubscribe := engine.Subscribe(256)
	defer unsubscribe()
	go hub.Run(ctx)
	go hub.Pump(ctx, events)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(ctx, engine, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting agendaflow server on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Infof("Server stopped")
	return nil
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "agendaflow server is running")
}

func ParticipantsHandler(engine *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listParticipantsHTTP(w, engine)
		case http.MethodPut:
			updateParticipantStatusHTTP(w, r, engine)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listParticipantsHTTP(w http.ResponseWriter, engine *service.Engine) {
	participants, err := engine.Participants().List()
	if err != nil {
		log.GetLogger().Errorf("Failed to list participants: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list participants: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, participants)
}

type statusUpdate struct {
	ID                 int64                     `json:"id"`
	RequestStatus      models.RequestStatus      `json:"request_status"`
	ConfirmationStatus models.ConfirmationStatus `json:"confirmation_status"`
}

func updateParticipantStatusHTTP(w http.ResponseWriter, r *http.Request, engine *service.Engine) {
	var req statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	updated, err := engine.SetParticipantStatus(req.ID, req.RequestStatus, req.ConfirmationStatus)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, updated)
	case errors.Is(err, service.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Participant not found", http.StatusNotFound)
	default:
		log.GetLogger().Errorf("Failed to update participant %d: %v", req.ID, err)
		http.Error(w, fmt.Sprintf("Failed to update participant: %v", err), http.StatusInternalServerError)
	}
}

func RunsHandler(ctx context.Context, engine *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listRunsHTTP(w, engine)
		case http.MethodPost:
			startRunHTTP(ctx, w, engine)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listRunsHTTP(w http.ResponseWriter, engine *service.Engine) {
	runs, err := engine.ListRuns()
	if err != nil {
		log.GetLogger().Errorf("Failed to list runs: %v", err)
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func startRunHTTP(ctx context.Context, w http.ResponseWriter, engine *service.Engine) {
	id, err := engine.Start(ctx)
	if errors.Is(err, service.ErrRunInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		log.GetLogger().Errorf("Failed to start run: %v", err)
		http.Error(w, fmt.Sprintf("Failed to start run: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// RunByIDHandler serves /runs/current (the engine snapshot) and /runs/{id}.
func RunByIDHandler(engine *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
		if id == "" {
			http.Error(w, "Missing run ID", http.StatusBadRequest)
			return
		}
		if id == "current" {
			snap, err := engine.Snapshot()
			if err != nil {
				log.GetLogger().Errorf("Failed to build snapshot: %v", err)
				http.Error(w, fmt.Sprintf("Failed to build snapshot: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, snap)
			return
		}
		run, err := engine.GetRun(id)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.GetLogger().Errorf("Failed to get run %s: %v", id, err)
			http.Error(w, fmt.Sprintf("Failed to get run: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func LogHandler(engine *service.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap, err := engine.Snapshot()
		if err != nil {
			log.GetLogger().Errorf("Failed to read log: %v", err)
			http.Error(w, fmt.Sprintf("Failed to read log: %v", err), http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			for _, line := range snap.Log {
				fmt.Fprintln(w, line)
			}
			return
		}
		writeJSON(w, http.StatusOK, snap.Log)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
