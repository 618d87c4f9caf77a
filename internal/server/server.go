// Package server exposes the question pipeline over HTTP.
//
//	POST /api/nlp-search  {"question": "...", "type": "combined"}
//	GET  /api/status
//	GET  /api/schema
//	GET  /healthz
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/errs"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

// Pipeline is the engine surface the API serves. *engine.Service
// implements it.
type Pipeline interface {
	Search(ctx context.Context, req engine.Request) (*engine.QueryResult, error)
	Status(ctx context.Context) engine.Status
	Schema() string
}

// App holds the handler dependencies.
type App struct {
	pipeline Pipeline
	log      *slog.Logger
}

// New creates an App. A nil logger uses slog.Default.
func New(p Pipeline, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{pipeline: p, log: log}
}

// Handler returns the router with middleware and routes mounted.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/nlp-search", a.handleSearch)
		r.Get("/status", a.handleStatus)
		r.Get("/schema", a.handleSchema)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return r
}

func (a *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	res, err := a.pipeline.Search(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errs.IsValidation(err):
		writeError(w, http.StatusBadRequest, errs.Message(err))
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		a.log.Debug("search cancelled", "request_id", middleware.GetReqID(r.Context()))
	default:
		a.log.Error("search failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, errs.Message(err))
	}
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.pipeline.Status(r.Context()))
}

func (a *App) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"schema": a.pipeline.Schema()})
}

// logRequests logs one line per request after it completes.
func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// corsMiddleware allows browser clients on any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "status": "error"})
}

// Serve runs an http.Server for h on addr until ctx is cancelled, then
// drains in-flight requests for up to drain.
func Serve(ctx context.Context, addr string, h http.Handler, readTimeout, writeTimeout, drain time.Duration, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "drain", drain)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
