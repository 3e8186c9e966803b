package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/schema"
	"github.com/formpilot/formpilot/pkg/httputil"
)

// SchemaHandler runs discovery only: it tags a document's controls and
// reports what was found without touching any values.
type SchemaHandler struct {
	logger *zap.Logger
}

// NewSchemaHandler creates a schema handler
func NewSchemaHandler(logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{logger: logger}
}

// SchemaRequest is the wire shape of POST /api/v1/schema.
type SchemaRequest struct {
	HTML string `json:"html"`
}

// SchemaResponse carries the discovered structure and the tagged document.
type SchemaResponse struct {
	Schema *schema.Schema `json:"schema"`
	HTML   string         `json:"html"`
}

// Discover handles POST /api/v1/schema.
func (h *SchemaHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req SchemaRequest
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

	s := schema.Collect(d)
	html, err := d.Render()
	if err != nil {
		h.logger.Error("rendering document", zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "render_failed", err.Error(), nil)
		return
	}

	h.logger.Debug("schema discovered",
		zap.Int("text_fields", len(s.TextFields)),
		zap.Int("choice_groups", len(s.ChoiceGroups)))

	httputil.JSON(w, http.StatusOK, SchemaResponse{Schema: s, HTML: html})
}
