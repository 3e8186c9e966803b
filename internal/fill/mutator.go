// Package fill applies resolved answer values to the document tree:
// setting text content and checked state, dispatching the notification
// events downstream frameworks depend on, honoring group exclusivity, and
// tracking which form containers were touched so a submit can be attempted
// afterwards. Every mutation is also recorded as a replayable step for the
// live-browser driver.
package fill

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/schema"
)

// MutationKind identifies one replayable mutation step.
type MutationKind string

const (
	MutationSetValue   MutationKind = "set_value"
	MutationSetChecked MutationKind = "set_checked"
	MutationClick      MutationKind = "click"
	MutationSubmit     MutationKind = "submit"
)

// Mutation is one step of the replayable plan. Selector is derived from the
// node's own attributes so a live page without our tag attributes can still
// resolve it.
type Mutation struct {
	Kind     MutationKind `json:"kind"`
	Ref      string       `json:"ref,omitempty"`
	Selector string       `json:"selector"`
	Value    string       `json:"value,omitempty"`
	Checked  bool         `json:"checked,omitempty"`
	Role     bool         `json:"role,omitempty"` // ARIA pseudo-control rather than native input
}

// Options controls event emission for one application.
type Options struct {
	// Silent suppresses the change notification, used during batch
	// focused-field fills to avoid premature form submission.
	Silent bool
}

// Mutator applies values to controls on one document.
type Mutator struct {
	doc     *dom.Document
	touched []*html.Node
	plan    []Mutation
}

// NewMutator creates a mutator for one fill operation.
func NewMutator(d *dom.Document) *Mutator {
	return &Mutator{doc: d}
}

// Plan returns the replayable mutation steps recorded so far.
func (m *Mutator) Plan() []Mutation { return m.plan }

// Touched returns every form-like ancestor affected by a mutation, in first-
// touch order.
func (m *Mutator) Touched() []*html.Node { return m.touched }

// ApplyValue sets the content of a text-like or editable control and emits
// an input notification, plus a change notification unless suppressed.
func (m *Mutator) ApplyValue(n *html.Node, value string, opts Options) {
	switch dom.Tag(n) {
	case "input":
		dom.SetAttr(n, "value", value)
	case "textarea":
		setTextContent(n, value)
	default:
		// contenteditable region
		setTextContent(n, value)
	}

	m.doc.DispatchEvent(n, dom.EventInput)
	if !opts.Silent {
		m.doc.DispatchEvent(n, dom.EventChange)
	}
	m.record(Mutation{Kind: MutationSetValue, Ref: dom.Attr(n, schema.RefAttr), Selector: dom.SelectorFor(n), Value: value})
	m.touch(n)
}

// ApplyChecked sets the selected state of a choice control. For exclusive
// (radio-kind) selection every sibling in the exclusivity set is cleared
// before the target is marked, so the group never holds two selections at
// once. Role-based pseudo-controls get a click notification because
// framework bindings typically hang off it.
func (m *Mutator) ApplyChecked(n *html.Node, exclusive bool, opts Options) {
	if exclusive {
		for _, sib := range m.exclusivitySet(n) {
			if sib == n {
				continue
			}
			clearChecked(sib)
		}
	}

	if schema.IsRoleControl(n) {
		dom.SetAttr(n, "aria-checked", "true")
		m.doc.DispatchEvent(n, dom.EventClick)
		m.doc.DispatchEvent(n, dom.EventChange)
	} else {
		dom.SetAttr(n, "checked", "checked")
		m.doc.DispatchEvent(n, dom.EventInput)
		if !opts.Silent {
			m.doc.DispatchEvent(n, dom.EventChange)
		}
	}
	m.record(Mutation{
		Kind:     MutationSetChecked,
		Ref:      dom.Attr(n, schema.RefAttr),
		Selector: dom.SelectorFor(n),
		Checked:  true,
		Role:     schema.IsRoleControl(n),
	})
	m.touch(n)
}

// exclusivitySet returns every control sharing the target's name or its
// enclosing exclusive-group container.
func (m *Mutator) exclusivitySet(n *html.Node) []*html.Node {
	seen := map[*html.Node]bool{}
	var set []*html.Node
	add := func(c *html.Node) {
		if !seen[c] {
			seen[c] = true
			set = append(set, c)
		}
	}

	if name := dom.Attr(n, "name"); name != "" {
		for _, c := range m.doc.FindAll(m.doc.Root(), func(c *html.Node) bool {
			return schema.ChoiceKind(c) != "" && dom.Attr(c, "name") == name
		}) {
			add(c)
		}
	}
	container := dom.Closest(n, func(c *html.Node) bool {
		return strings.ToLower(dom.Attr(c, "role")) == "radiogroup"
	})
	if container != nil {
		for _, c := range m.doc.FindAll(container, func(c *html.Node) bool {
			return schema.ChoiceKind(c) != ""
		}) {
			add(c)
		}
	}
	return set
}

func clearChecked(n *html.Node) {
	dom.RemoveAttr(n, "checked")
	if dom.HasAttr(n, "aria-checked") {
		dom.SetAttr(n, "aria-checked", "false")
	}
}

// Submit clicks the submit control of a form-like container. Best effort:
// a form without a recognizable submit control reports false.
func (m *Mutator) Submit(form *html.Node) bool {
	btn := m.doc.Find(form, func(c *html.Node) bool {
		switch dom.Tag(c) {
		case "button":
			t := strings.ToLower(dom.Attr(c, "type"))
			return t == "submit" || t == ""
		case "input":
			return dom.InputType(c) == "submit"
		}
		return false
	})
	if btn == nil {
		return false
	}
	m.doc.DispatchEvent(btn, dom.EventClick)
	m.doc.DispatchEvent(form, dom.EventSubmit)
	m.record(Mutation{Kind: MutationSubmit, Selector: dom.SelectorFor(btn)})
	return true
}

func (m *Mutator) touch(n *html.Node) {
	form := dom.Closest(n, func(c *html.Node) bool {
		return dom.Tag(c) == "form" || strings.ToLower(dom.Attr(c, "role")) == "form"
	})
	if form == nil {
		return
	}
	for _, f := range m.touched {
		if f == form {
			return
		}
	}
	m.touched = append(m.touched, form)
}

func (m *Mutator) record(mu Mutation) {
	m.plan = append(m.plan, mu)
}

func setTextContent(n *html.Node, value string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
}
