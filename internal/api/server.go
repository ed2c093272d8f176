// Package api exposes the HTTP intake, read, and moderation surfaces over
// the ingestion pipeline and the submission store.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/config"
	"github.com/dmarais/umsindo/internal/ingest"
	"github.com/dmarais/umsindo/internal/metrics"
	"github.com/dmarais/umsindo/internal/model"
	"github.com/dmarais/umsindo/internal/store"
)

// Server hosts the HTTP handlers. It stitches together configuration, the
// ingestion pipeline, and the submission store.
type Server struct {
	cfg      *config.Config
	pipeline *ingest.Pipeline
	subs     *store.Store
	logger   *zap.Logger
}

// New constructs a Server.
func New(cfg *config.Config, pipeline *ingest.Pipeline, subs *store.Store, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, pipeline: pipeline, subs: subs, logger: logger}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.routes(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", zap.String("addr", s.cfg.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/upload", s.handleUpload)
	r.Get("/api/submissions", s.handleList)
	r.Route("/api/submissions/{id}", func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Post("/approve", s.handleModeration(s.subs.Approve, "approve"))
		r.Post("/reject", s.handleModeration(s.subs.Reject, "reject"))
	})

	// Blobs and thumbnails are served straight out of the upload directory.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.cfg.UploadDir))))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, http.StatusBadRequest, "unknown status filter")
		return
	}
	items, err := s.subs.List(status)
	if err != nil {
		s.logger.Error("list submissions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read submissions")
		return
	}
	if items == nil {
		items = []model.Submission{}
	}
	respondJSON(w, http.StatusOK, items)
}

// handleModeration builds the approve/reject handlers; both share the
// id-parsing and error mapping.
func (s *Server) handleModeration(action func(int64) (model.Submission, error), name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid submission id")
			return
		}
		updated, err := action(id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			respondError(w, http.StatusNotFound, "no such submission")
			return
		case errors.Is(err, store.ErrAlreadyModerated):
			respondError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			s.logger.Error("moderation failed", zap.String("action", name), zap.Int64("id", id), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "moderation failed")
			return
		}
		metrics.Moderations.WithLabelValues(name).Inc()
		s.logger.Info("submission moderated",
			zap.String("action", name),
			zap.Int64("id", id),
		)
		respondJSON(w, http.StatusOK, updated)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
