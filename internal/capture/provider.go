// Package capture orchestrates one discovery-and-fill operation per
// external trigger: a fixed priority list of strategies (selection-scoped,
// viewport-scoped, focus-scoped, full-page) tried in order, short-circuiting
// on first success, with the answer provider treated as an external
// collaborator behind a narrow interface.
package capture

import (
	"context"
	"encoding/json"

	"github.com/formpilot/formpilot/internal/schema"
)

// InputDescriptor describes one control or group sent to the answer
// provider. Fields and groups share one wire shape; Options is empty for
// text fields.
type InputDescriptor struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Name        string   `json:"name,omitempty"`
	HTMLID      string   `json:"htmlId,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// AnswerRequest is the full-page request contract.
type AnswerRequest struct {
	PageText          string            `json:"pageText"`
	Inputs            []InputDescriptor `json:"inputs"`
	IncludeScreenshot bool              `json:"includeScreenshot,omitempty"`
}

// AnswerResponse is the provider's reply; Answers is a raw payload in any
// of the accepted shapes.
type AnswerResponse struct {
	OK      bool            `json:"ok"`
	Answers json.RawMessage `json:"answers,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ChoiceRequest is the choice-only contract used by the selection and
// viewport strategies.
type ChoiceRequest struct {
	SelectionText string            `json:"selectionText"`
	Groups        []InputDescriptor `json:"groups"`
}

// ChoiceResponse maps group ids to a single value (radio) or value list
// (checkbox).
type ChoiceResponse struct {
	Choices map[string]json.RawMessage `json:"choices"`
}

// Provider acquires answers from an external text-generation backend. All
// three contracts are fallible; the orchestrator treats any error as that
// strategy being inapplicable and falls through.
type Provider interface {
	// RequestAnswers resolves a full set of discovered inputs.
	RequestAnswers(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)
	// RequestChoices resolves choice groups only.
	RequestChoices(ctx context.Context, req ChoiceRequest) (*ChoiceResponse, error)
	// RequestFieldAnswer resolves a single focused text field to a plain
	// answer string.
	RequestFieldAnswer(ctx context.Context, field schema.Field) (string, error)
}

// FieldDescriptor converts a schema field to its wire shape.
func FieldDescriptor(f schema.Field) InputDescriptor {
	return InputDescriptor{
		ID:          f.ID,
		Label:       f.Label,
		Type:        f.Type,
		Name:        f.Name,
		HTMLID:      f.HTMLID,
		Placeholder: f.Placeholder,
	}
}

// GroupDescriptor converts a choice group to its wire shape.
func GroupDescriptor(g schema.Group) InputDescriptor {
	opts := make([]string, 0, len(g.Options))
	for _, o := range g.Options {
		opts = append(opts, o.Label)
	}
	return InputDescriptor{
		ID:      g.GroupID,
		Label:   g.Question,
		Type:    string(g.Kind),
		Options: opts,
	}
}
