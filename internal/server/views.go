package server

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type viewResponse struct {
	ID     string       `json:"id"`
	State  view.State   `json:"state"`
	Result *view.Result `json:"result,omitempty"`
}

func (h *handler) handleCreateView(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateView"

	var req createViewRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	if !h.ds.HasFeature(req.Feature) {
		h.respondQueryError(w, r, errors.Wrapf(view.ErrUnknownFeature, "%q", req.Feature), op)
		return
	}

	v := view.New(req.Feature)
	v.SetPercentiles(h.percentiles(req.Percentiles))
	id, err := h.views.Create(v)
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}

	h.logger.Info("view created",
		zap.String("op", op),
		zap.String("viewId", id),
		zap.String("feature", req.Feature),
	)
	h.respondView(w, r, http.StatusCreated, id, v, op)
}

func (h *handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetView"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}
	h.respondView(w, r, http.StatusOK, id, v, op)
}

func (h *handler) handlePatchView(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePatchView"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}

	var req patchViewRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	if req.Feature != nil && !h.ds.HasFeature(*req.Feature) {
		h.respondQueryError(w, r, errors.Wrapf(view.ErrUnknownFeature, "%q", *req.Feature), op)
		return
	}
	ruleValue, err := req.Rule.toRule()
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}

	if req.Companies != nil {
		v.SetCompanies(*req.Companies)
	}
	if req.Tiers != nil {
		v.SetTiers(*req.Tiers)
	}
	if req.Years != nil {
		v.SetYears(*req.Years)
	}
	if req.Quarters != nil {
		v.SetQuarters(*req.Quarters)
	}
	if req.Feature != nil {
		v.SetFeature(*req.Feature)
	}
	if req.Percentiles != nil {
		v.SetPercentiles(h.percentiles(*req.Percentiles))
	}
	switch {
	case req.ClearRule:
		v.ClearRule()
	case ruleValue != nil:
		if err := v.SetRule(*ruleValue); err != nil {
			h.respondQueryError(w, r, err, op)
			return
		}
	}

	h.respondView(w, r, http.StatusOK, id, v, op)
}

func (h *handler) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDeleteView"
	id := chi.URLParam(r, "id")
	if err := h.views.Delete(id); err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}
	h.logger.Info("view deleted", zap.String("op", op), zap.String("viewId", id))
	w.WriteHeader(http.StatusNoContent)
}

// handleStageDateRange records the date widget values without changing the
// view's results.
func (h *handler) handleStageDateRange(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleStageDateRange"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}

	var req dateRangeRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	dr, err := parseDateRange(req.Start, req.End)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	v.StageDateRange(dr.Start, dr.End)

	h.writeJSON(w, r, http.StatusOK, viewResponse{ID: id, State: v.State()})
}

func (h *handler) handleApplyDateRange(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleApplyDateRange"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}
	if !v.ApplyDateRange() {
		h.respondErrorWithOp(w, r, http.StatusConflict, "no date range staged", op)
		return
	}
	h.respondView(w, r, http.StatusOK, id, v, op)
}

func (h *handler) handleClearDateRange(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleClearDateRange"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}
	v.ClearDateRange()
	h.respondView(w, r, http.StatusOK, id, v, op)
}

// handleExportView serializes the view's selections as YAML for download.
func (h *handler) handleExportView(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExportView"
	id, v, ok := h.lookupView(w, r, op)
	if !ok {
		return
	}

	data, err := yaml.Marshal(v.State())
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, "failed to serialize view: "+err.Error(), op)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="view-`+id+`.yaml"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write view export", zap.String("op", op), zap.Error(err))
	}
}

func (h *handler) lookupView(w http.ResponseWriter, r *http.Request, op string) (string, *view.View, bool) {
	id := chi.URLParam(r, "id")
	v, err := h.views.Get(id)
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return "", nil, false
	}
	return id, v, true
}

// respondView evaluates v and writes its state and result.
func (h *handler) respondView(w http.ResponseWriter, r *http.Request, status int, id string, v *view.View, op string) {
	start := time.Now()
	res, err := v.Query(h.ds)
	h.metrics.observeQuery(start)
	if err != nil {
		h.respondQueryError(w, r, err, op)
		return
	}
	h.writeJSON(w, r, status, viewResponse{ID: id, State: v.State(), Result: &res})
}
