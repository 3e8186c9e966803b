package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/capture"
	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/fill"
	"github.com/formpilot/formpilot/internal/index"
	"github.com/formpilot/formpilot/internal/match"
	"github.com/formpilot/formpilot/internal/schema"
	"github.com/formpilot/formpilot/pkg/httputil"
)

// FillHandler applies answers to a submitted document. Answers either come
// inline with the request or, when a provider is configured, from a capture
// operation triggered against the document.
type FillHandler struct {
	orchestrator *capture.Orchestrator
	logger       *zap.Logger
}

// NewFillHandler creates a fill handler. The orchestrator may be nil when
// no answer provider is configured; inline answers still work.
func NewFillHandler(orchestrator *capture.Orchestrator, logger *zap.Logger) *FillHandler {
	return &FillHandler{orchestrator: orchestrator, logger: logger}
}

// FillRequest is the wire shape of POST /api/v1/fill.
type FillRequest struct {
	HTML       string          `json:"html"`
	Answers    json.RawMessage `json:"answers,omitempty"`
	Selection  string          `json:"selection,omitempty"`
	Focus      string          `json:"focus,omitempty"`
	AutoSubmit bool            `json:"autoSubmit,omitempty"`
}

// FillResponse reports what was applied and the rewritten document.
type FillResponse struct {
	Filled    int             `json:"filled"`
	Submitted bool            `json:"submitted"`
	Strategy  string          `json:"strategy,omitempty"`
	Mutations []fill.Mutation `json:"mutations"`
	Events    []EventSummary  `json:"events,omitempty"`
	HTML      string          `json:"html"`
	Schema    *schema.Schema  `json:"schema"`
}

// EventSummary is the wire shape of one dispatched notification.
type EventSummary struct {
	Type string `json:"type"`
	Ref  string `json:"ref,omitempty"`
}

// Apply handles POST /api/v1/fill.
func (h *FillHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if req.HTML == "" {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_request", "html is required", nil)
		return
	}

	d, err := dom.ParseString(req.HTML)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_document", err.Error(), nil)
		return
	}
	if req.Selection != "" {
		if !d.SetSelectionText(req.Selection) {
			h.logger.Debug("selection text not found in document")
		}
	}
	if req.Focus != "" {
		if n := d.Query(req.Focus); n != nil {
			d.SetFocus(n)
		}
	}

	if len(req.Answers) > 0 {
		h.applyInline(w, d, &req)
		return
	}

	if h.orchestrator == nil {
		httputil.JSONError(w, http.StatusServiceUnavailable, "provider_unavailable",
			"no answer provider configured; supply answers inline", nil)
		return
	}

	res, strategy, err := h.orchestrator.Run(r.Context(), d)
	if err != nil {
		if errors.Is(err, capture.ErrBusy) {
			httputil.JSONError(w, http.StatusConflict, "busy", err.Error(), nil)
			return
		}
		h.logger.Error("capture operation failed", zap.Error(err))
		httputil.JSONError(w, http.StatusBadGateway, "capture_failed", err.Error(), nil)
		return
	}

	h.respond(w, d, FillResponse{
		Filled:    res.Filled,
		Submitted: res.Submitted,
		Strategy:  string(strategy),
		Mutations: h.orchestrator.Plan(),
	})
}

// applyInline resolves the request's own answers against the document
// without involving a provider.
func (h *FillHandler) applyInline(w http.ResponseWriter, d *dom.Document, req *FillRequest) {
	payload, err := match.Parse(req.Answers)
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "invalid_answers", err.Error(), nil)
		return
	}

	schema.Collect(d)
	ix := index.Build(d)
	f := fill.New(ix, fill.Config{AutoSubmit: req.AutoSubmit}, h.logger)
	res := f.Apply(payload)

	h.respond(w, d, FillResponse{
		Filled:    res.Filled,
		Submitted: res.Submitted,
		Mutations: f.Mutator().Plan(),
	})
}

func (h *FillHandler) respond(w http.ResponseWriter, d *dom.Document, resp FillResponse) {
	html, err := d.Render()
	if err != nil {
		h.logger.Error("rendering document", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "render_failed", err.Error(), nil)
		return
	}
	resp.HTML = html
	for _, e := range d.Events() {
		resp.Events = append(resp.Events, EventSummary{
			Type: string(e.Type),
			Ref:  dom.Attr(e.Target, schema.RefAttr),
		})
	}
	resp.Schema = schema.Collect(d)
	if resp.Mutations == nil {
		resp.Mutations = []fill.Mutation{}
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Exchanges handles GET /api/v1/exchanges: recent provider traffic for
// diagnostics.
func (h *FillHandler) Exchanges(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator == nil {
		httputil.JSON(w, http.StatusOK, []capture.Exchange{})
		return
	}
	httputil.JSON(w, http.StatusOK, h.orchestrator.Exchanges())
}
