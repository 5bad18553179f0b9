package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/sheet"
)

// maxBodySize limits PUT request bodies.
const maxBodySize = 1 << 20

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.config.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/cells", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handlePut)
			r.Delete("/", s.handleDelete)
		})
	})
	r.Get("/ws", s.handleWebSocket)
	return r
}

// requestLogger logs one line per request with slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.CallTimeout)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"clients": s.hub.Len(),
	}
	if !s.running() {
		status = http.StatusServiceUnavailable
		body["status"] = "stopped"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r)
	defer cancel()

	var cells []CellJSON
	err := s.read(ctx, func() error {
		names := s.sheet.Names()
		cells = make([]CellJSON, 0, len(names))
		for _, name := range names {
			c, err := s.cell(name)
			if err != nil {
				return err
			}
			cells = append(cells, c)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cells)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r)
	defer cancel()

	name := chi.URLParam(r, "name")
	var c CellJSON
	err := s.read(ctx, func() (err error) {
		c, err = s.cell(name)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r)
	defer cancel()

	name := chi.URLParam(r, "name")
	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	setErr := s.mutate(ctx, func() error {
		return s.sheet.Set(name, req.Raw)
	})
	if rejected(setErr) || errors.Is(setErr, ErrNotStarted) {
		s.writeError(w, setErr)
		return
	}

	var c CellJSON
	err := s.read(ctx, func() (err error) {
		c, err = s.cell(name)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if setErr != nil {
		c.Error = setErr.Error()
		c.Code = reactive.CodeOf(setErr)
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.callContext(r)
	defer cancel()

	name := chi.URLParam(r, "name")
	err := s.mutate(ctx, func() error {
		return s.sheet.Remove(name)
	})
	if rejected(err) || errors.Is(err, ErrNotStarted) {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// read runs fn on the runtime goroutine.
func (s *Server) read(ctx context.Context, fn func() error) error {
	if !s.running() {
		return ErrNotStarted
	}
	return s.rt.Call(ctx, fn)
}

// cell must run on the runtime goroutine.
func (s *Server) cell(name string) (CellJSON, error) {
	raw, err := s.sheet.Raw(name)
	if err != nil {
		return CellJSON{}, err
	}
	v, err := s.sheet.Get(name)
	if err != nil {
		return CellJSON{}, err
	}
	return CellJSON{Name: name, Raw: raw, Value: encodeValue(v)}, nil
}

// writeError maps err to an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sheet.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sheet.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotStarted), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
