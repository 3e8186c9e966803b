// Package dom wraps a parsed HTML tree with the operations the fill engine
// needs: attribute access, text extraction, document-order bookkeeping, a
// synthetic event log, and focus/selection state. Nodes are plain
// *html.Node values; the Document never outlives one parse.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// EventType identifies a synthetic notification dispatched against a node.
type EventType string

const (
	EventInput  EventType = "input"
	EventChange EventType = "change"
	EventClick  EventType = "click"
	EventSubmit EventType = "submit"
)

// Event records one dispatched notification. The engine runs against a
// detached tree, so events are observable state rather than live callbacks;
// the browser driver replays them against a real page.
type Event struct {
	Type   EventType
	Target *html.Node
}

// Document wraps a parsed HTML tree for one fill operation.
type Document struct {
	root     *html.Node
	ordinals map[*html.Node]int
	count    int

	events    []Event
	focused   *html.Node
	selection *html.Node

	center    int
	centerSet bool
}

// Parse reads and parses an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	d := &Document{
		root:     root,
		ordinals: make(map[*html.Node]int),
	}
	d.Each(func(n *html.Node) {
		d.ordinals[n] = d.count
		d.count++
	})
	return d, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document root node.
func (d *Document) Root() *html.Node { return d.root }

// Render serializes the (possibly mutated) tree back to HTML.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("rendering html: %w", err)
	}
	return sb.String(), nil
}

// Each visits every element node in document order.
func (d *Document) Each(fn func(n *html.Node)) {
	d.EachWithin(d.root, fn)
}

// EachWithin visits every element node under root in document order.
func (d *Document) EachWithin(root *html.Node, fn func(n *html.Node)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			fn(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

// Ordinal returns the document-order index assigned to n at parse time.
// Nodes created after parsing report 0.
func (d *Document) Ordinal(n *html.Node) int { return d.ordinals[n] }

// Attr returns the value of an attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the attribute is present, regardless of value.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute on n.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute from n if present.
func RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Tag returns the lowercased tag name of an element node.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// InputType returns the effective control type: the lowercased type
// attribute for inputs (defaulting to "text"), otherwise the tag name.
func InputType(n *html.Node) string {
	if Tag(n) == "input" {
		t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
		if t == "" {
			return "text"
		}
		return t
	}
	return Tag(n)
}

// IsEditable reports whether n accepts free text outside of input/textarea
// semantics (contenteditable regions).
func IsEditable(n *html.Node) bool {
	if !HasAttr(n, "contenteditable") {
		return false
	}
	v := strings.ToLower(Attr(n, "contenteditable"))
	return v == "" || v == "true" || v == "plaintext-only"
}

// Text returns the whitespace-collapsed text content of n and its subtree.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Parent returns the nearest element parent of n, or nil.
func Parent(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// Ancestor returns the nearest ancestor whose tag is in tags, or nil.
func Ancestor(n *html.Node, tags ...string) *html.Node {
	for p := Parent(n); p != nil; p = Parent(p) {
		for _, t := range tags {
			if Tag(p) == t {
				return p
			}
		}
	}
	return nil
}

// Closest returns the nearest ancestor, starting from n itself, that
// satisfies pred, or nil.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for cur := n; cur != nil; cur = Parent(cur) {
		if cur.Type == html.ElementNode && pred(cur) {
			return cur
		}
	}
	return nil
}

// PrevElement returns the immediately preceding sibling element of n.
func PrevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Find returns the first element in document order under root satisfying
// pred, or nil.
func (d *Document) Find(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	d.EachWithin(root, func(n *html.Node) {
		if found == nil && pred(n) {
			found = n
		}
	})
	return found
}

// FindAll returns every element under root satisfying pred, in document
// order.
func (d *Document) FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	d.EachWithin(root, func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
	})
	return out
}

// ByAttr returns the first element carrying attribute key with exactly
// value val.
func (d *Document) ByAttr(key, val string) *html.Node {
	return d.Find(d.root, func(n *html.Node) bool { return Attr(n, key) == val })
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return d.ByAttr("id", id)
}

// DispatchEvent appends a synthetic event to the document's event log.
func (d *Document) DispatchEvent(n *html.Node, t EventType) {
	d.events = append(d.events, Event{Type: t, Target: n})
}

// Events returns all events dispatched since parse or the last reset.
func (d *Document) Events() []Event { return d.events }

// EventsFor returns the events dispatched against a specific node.
func (d *Document) EventsFor(n *html.Node) []Event {
	var out []Event
	for _, e := range d.events {
		if e.Target == n {
			out = append(out, e)
		}
	}
	return out
}

// ResetEvents clears the event log.
func (d *Document) ResetEvents() { d.events = nil }

// SetFocus marks n as the control currently holding input focus.
func (d *Document) SetFocus(n *html.Node) { d.focused = n }

// Focused returns the focused control, or nil.
func (d *Document) Focused() *html.Node { return d.focused }

// SetSelectionText records a text selection by locating the deepest element
// whose text content contains s. Returns false when no element matches.
func (d *Document) SetSelectionText(s string) bool {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		d.selection = nil
		return false
	}
	var best *html.Node
	d.Each(func(n *html.Node) {
		if strings.Contains(Text(n), s) {
			best = n // later (deeper or following) matches overwrite shallower ones
		}
	})
	d.selection = best
	return best != nil
}

// SetSelection marks n as the selection anchor directly.
func (d *Document) SetSelection(n *html.Node) { d.selection = n }

// Selection returns the current selection anchor, or nil.
func (d *Document) Selection() *html.Node { return d.selection }

// blockTags are the structural containers a selection expands to.
var blockTags = map[string]bool{
	"div": true, "section": true, "form": true, "fieldset": true,
	"td": true, "li": true, "p": true, "article": true, "body": true,
}

// SelectionBlock expands the selection anchor to its nearest structural
// block ancestor. Returns nil when there is no selection.
func (d *Document) SelectionBlock() *html.Node {
	if d.selection == nil {
		return nil
	}
	if b := Closest(d.selection, func(n *html.Node) bool { return blockTags[Tag(n)] }); b != nil {
		return b
	}
	return d.selection
}

// SetViewportCenter overrides the ordinal treated as the vertical center of
// the viewport. Without a renderer the document-order ordinal stands in for
// vertical position; the playwright driver owns real geometry.
func (d *Document) SetViewportCenter(ordinal int) {
	d.center = ordinal
	d.centerSet = true
}

// ViewportCenter returns the configured viewport center ordinal, defaulting
// to the midpoint of the document.
func (d *Document) ViewportCenter() int {
	if d.centerSet {
		return d.center
	}
	return d.count / 2
}
