package server

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFiles embed.FS

// Options tunes the handler.
type Options struct {
	Version       string
	MaxBodyBytes  int64
	MaxViews      int
	Percentiles   []float64
	HistogramBins int
}

type handler struct {
	logger   *zap.Logger
	ds       *dataset.Dataset
	views    *view.Registry
	validate *validator.Validate
	metrics  *metrics
	opts     Options
}

// NewHandler constructs the HTTP handler that serves the web UI and the
// dashboard API over ds. The dataset is shared read-only by every request.
func NewHandler(logger *zap.Logger, ds *dataset.Dataset, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if opts.HistogramBins <= 0 {
		opts.HistogramBins = constants.DefaultHistogramBins
	}
	opts.Version = strings.TrimSpace(opts.Version)
	if opts.Version == "" {
		opts.Version = "dev"
	}

	h := &handler{
		logger:   logger,
		ds:       ds,
		views:    view.NewRegistry(opts.MaxViews),
		validate: newValidator(),
		opts:     opts,
	}
	registry := prometheus.NewRegistry()
	h.metrics = newMetrics(registry, h.views)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Get("/features", h.handleFeatures)
		r.Get("/options", h.handleOptions)
		r.Post("/query", h.handleQuery)

		r.Route("/views", func(r chi.Router) {
			r.Post("/", h.handleCreateView)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetView)
				r.Patch("/", h.handlePatchView)
				r.Delete("/", h.handleDeleteView)
				r.Put("/date-range", h.handleStageDateRange)
				r.Post("/date-range/apply", h.handleApplyDateRange)
				r.Delete("/date-range", h.handleClearDateRange)
				r.Get("/chart/line.png", h.handleViewLineChart)
				r.Get("/state.yaml", h.handleExportView)
			})
		})

		r.Get("/charts/histogram.png", h.handleHistogram)
		r.Get("/charts/boxplot.png", h.handleBoxPlot)
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic("failed to prepare embedded static files: " + err.Error())
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

// Serve runs an http.Server for handler until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, logger *zap.Logger, cfg *Config, handler http.Handler) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("op", "server.Serve"),
			zap.String("address", cfg.Address),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down http server", zap.String("op", "server.Serve"))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"version": h.opts.Version,
	})
}

func (h *handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"features":    h.ds.Features(),
		"operators":   rule.Operators(),
		"percentiles": h.percentiles(nil),
	})
}

func (h *handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	spec, err := specFromQuery(r)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), "server.handleOptions")
		return
	}
	h.writeJSON(w, r, http.StatusOK, filter.Options(h.ds, spec))
}

func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleQuery"

	var req queryRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	spec, err := req.Filter.spec()
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	ruleValue, err := req.Rule.toRule()
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	start := time.Now()
	res, err := view.Evaluate(h.ds, spec, req.Feature, ruleValue, h.percentiles(req.Percentiles))
	h.metrics.observeQuery(start)
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}

	h.logger.Debug("query evaluated",
		zap.String("op", op),
		zap.String("feature", req.Feature),
		zap.Int("rows", res.RowCount),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, r, http.StatusOK, res)
}

// decode reads a JSON body bounded by MaxBodyBytes and validates it.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, r, http.StatusRequestEntityTooLarge,
				"request body exceeds limit of "+strconv.FormatInt(h.opts.MaxBodyBytes, 10)+" bytes", op)
			return false
		}
		h.respondErrorWithOp(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error(), op)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, validationMessage(err), op)
		return false
	}
	return true
}

func (h *handler) percentiles(requested []float64) []float64 {
	if len(requested) > 0 {
		return requested
	}
	if len(h.opts.Percentiles) > 0 {
		return h.opts.Percentiles
	}
	return constants.DefaultPercentileRanks
}

// respondQueryError maps core errors onto status codes.
func (h *handler) respondQueryError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, view.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, view.ErrRegistryFull):
		status = http.StatusTooManyRequests
	case errors.Is(err, view.ErrUnknownFeature),
		errors.Is(err, rule.ErrUnknownOperator),
		errors.Is(err, rule.ErrInvalidThreshold):
		status = http.StatusBadRequest
	case errors.Is(err, period.ErrFormat):
		status = http.StatusUnprocessableEntity
	}
	h.respondErrorWithOp(w, r, status, err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
		zap.String("requestId", middleware.GetReqID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	h.writeJSON(w, r, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}
