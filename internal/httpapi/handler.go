package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vcmap/internal/config"
	"vcmap/internal/dataset"
	"vcmap/internal/filter"
	"vcmap/internal/metrics"
)

// DatasetSource yields the dataset being served. *store.Store satisfies it.
type DatasetSource interface {
	Current() (*dataset.Dataset, error)
}

type Options struct {
	Metrics  *metrics.Metrics
	Manifest config.Manifest
}

type Handler struct {
	log      zerolog.Logger
	data     DatasetSource
	metrics  *metrics.Metrics
	manifest config.Manifest

	engineMu sync.Mutex
	engineDS *dataset.Dataset
	engine   *filter.Engine
}

func NewHandler(log zerolog.Logger, data DatasetSource, opts Options) *Handler {
	manifest := opts.Manifest
	if manifest.Dataset.Label == "" && manifest.Map.Zoom == 0 {
		manifest = config.DefaultManifest()
	}
	return &Handler{log: log, data: data, metrics: opts.Metrics, manifest: manifest}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Dashboard
	r.Get("/", h.handleDashboard)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Get("/dataset", h.handleGetDataset)
			r.Route("/firms", func(r chi.Router) {
				r.Get("/", h.handleListFirms)
				r.Get("/export", h.handleExportFirms)
				r.Get("/{id}", h.handleGetFirm)
			})
			r.Get("/map", h.handleGetMap)
		})
	})

	return r
}

// echoRequestID returns the request id, generated or taken from the
// X-Request-ID request header, on the response.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, status, time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

// currentDataset returns the served dataset. Any load failure is fatal for
// the request; the error code tells the two failure kinds apart.
func (h *Handler) currentDataset() (*dataset.Dataset, string, error) {
	if h.data == nil {
		return nil, "data_unavailable", errors.New("dataset not configured")
	}
	ds, err := h.data.Current()
	if err != nil {
		if errors.Is(err, dataset.ErrSchema) {
			return nil, "schema_error", err
		}
		return nil, "data_unavailable", err
	}
	if ds == nil {
		return nil, "data_unavailable", errors.New("dataset not loaded")
	}
	return ds, "", nil
}

func (h *Handler) ensureDataset(w http.ResponseWriter) (*dataset.Dataset, bool) {
	ds, code, err := h.currentDataset()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, code, "dataset unavailable", map[string]any{"error": err.Error()})
		return nil, false
	}
	return ds, true
}

// engineFor reuses the filter engine while the dataset pointer is unchanged.
func (h *Handler) engineFor(ds *dataset.Dataset) *filter.Engine {
	h.engineMu.Lock()
	defer h.engineMu.Unlock()
	if h.engineDS != ds || h.engine == nil {
		h.engineDS = ds
		h.engine = filter.New(ds.Firms, filter.Options{})
	}
	return h.engine
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ds, code, err := h.currentDataset()
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, code, "dataset not ready", map[string]any{"error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true, "firms": len(ds.Firms)})
}
