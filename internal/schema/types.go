// Package schema discovers fillable controls on an unstructured document
// tree without any prior knowledge of its shape: it enumerates text-like
// controls and grouped choice controls, derives a best-effort label for
// each, and tags every control with a session-scoped identifier so later
// passes can re-resolve it.
package schema

import "fmt"

// Attribute names written onto discovered nodes. They are the only state
// the engine leaves on the tree between the discovery and index passes.
const (
	RefAttr      = "data-fp-ref"
	GroupAttr    = "data-fp-group"
	QuestionAttr = "data-fp-q"
	GroupKeyAttr = "data-fp-gkey"
)

// GroupKind distinguishes exclusive from multi-select choice groups.
type GroupKind string

const (
	KindRadio    GroupKind = "radio"
	KindCheckbox GroupKind = "checkbox"
)

// IsValid reports whether the kind is one of the two supported group kinds.
func (k GroupKind) IsValid() bool {
	return k == KindRadio || k == KindCheckbox
}

// Field is a snapshot of one text-like control at discovery time. It is
// immutable; the answer provider and the matcher both consume it.
type Field struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Name        string `json:"name,omitempty"`
	HTMLID      string `json:"htmlId,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Type        string `json:"type"`
}

// Option is one member of a choice group.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Group is a set of mutually related choice controls sharing one question.
// Every option shares the group's kind; radio groups are exclusive-select.
type Group struct {
	GroupID  string    `json:"groupId"`
	Kind     GroupKind `json:"groupType"`
	Key      string    `json:"-"`
	Question string    `json:"question"`
	Options  []Option  `json:"options"`
}

// Schema is the result of one discovery pass.
type Schema struct {
	TextFields   []Field `json:"textFields"`
	ChoiceGroups []Group `json:"choiceGroups"`
}

// GroupID synthesizes the identifier for the n-th distinct group of a kind
// encountered during one discovery pass.
func GroupID(kind GroupKind, n int) string {
	return fmt.Sprintf("group:%s:%d", kind, n)
}
