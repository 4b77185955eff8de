package server

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/render"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"go.uber.org/zap"
)

func (h *handler) handleViewLineChart(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleViewLineChart"
	_, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}
	res, err := v.Query(h.ds)
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}

	var buf bytes.Buffer
	if err := render.LineChart(&buf, res.DisplayName, res, render.Size{}); err != nil {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writePNG(w, &buf, op)
}

func (h *handler) handleHistogram(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleHistogram"
	feature, rows, ok := h.chartSelection(w, r, op)
	if !ok {
		return
	}

	bins := h.opts.HistogramBins
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			h.respondErrorWithOp(w, r, http.StatusBadRequest, "bins must be between 1 and 200", op)
			return
		}
		bins = n
	}

	var buf bytes.Buffer
	title := h.ds.DisplayName(feature) + " distribution"
	if err := render.StackedHistogram(&buf, title, h.ds, rows, feature, bins, render.Size{}); err != nil {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writePNG(w, &buf, op)
}

func (h *handler) handleBoxPlot(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBoxPlot"
	feature, rows, ok := h.chartSelection(w, r, op)
	if !ok {
		return
	}

	var buf bytes.Buffer
	title := h.ds.DisplayName(feature) + " by company"
	if err := render.BoxPlot(&buf, title, h.ds, rows, feature, render.Size{}); err != nil {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writePNG(w, &buf, op)
}

// chartSelection reads ?feature= and the filter predicates from the query.
func (h *handler) chartSelection(w http.ResponseWriter, r *http.Request, op string) (string, []int, bool) {
	feature := r.URL.Query().Get("feature")
	if !h.ds.HasFeature(feature) {
		h.respondQueryError(w, r, errors.Wrapf(view.ErrUnknownFeature, "%q", feature), op)
		return "", nil, false
	}
	spec, err := specFromQuery(r)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return "", nil, false
	}
	return feature, filter.Select(h.ds, spec), true
}

func (h *handler) writePNG(w http.ResponseWriter, buf *bytes.Buffer, op string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write chart",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}
