package schema

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
)

// textInputTypes is the allow-list of input types treated as free-text
// controls.
var textInputTypes = map[string]bool{
	"text": true, "search": true, "email": true, "url": true,
	"password": true, "tel": true, "number": true,
}

// IsTextControl reports whether n is a fillable text-like control:
// an allow-listed input, a textarea, or an editable-content region.
func IsTextControl(n *html.Node) bool {
	switch dom.Tag(n) {
	case "input":
		return textInputTypes[dom.InputType(n)]
	case "textarea":
		return true
	}
	return dom.IsEditable(n)
}

// ChoiceKind returns the group kind for a choice-like control, or "" when n
// is not one. Both native inputs and ARIA role pseudo-controls qualify.
func ChoiceKind(n *html.Node) GroupKind {
	if dom.Tag(n) == "input" {
		switch dom.InputType(n) {
		case "radio":
			return KindRadio
		case "checkbox":
			return KindCheckbox
		}
		return ""
	}
	switch strings.ToLower(dom.Attr(n, "role")) {
	case "radio":
		return KindRadio
	case "checkbox":
		return KindCheckbox
	}
	return ""
}

// IsRoleControl reports whether n is an ARIA role pseudo-control rather
// than a native input.
func IsRoleControl(n *html.Node) bool {
	return dom.Tag(n) != "input" && ChoiceKind(n) != ""
}

// BuildRef generates the session-scoped identifier for a control: a
// pipe-joined string of the segments that exist on the node plus its
// discovery-order index. The same tree always yields the same token.
func BuildRef(n *html.Node, idx int) string {
	var segs []string
	if v := dom.Attr(n, "id"); v != "" {
		segs = append(segs, "id:"+v)
	}
	if v := dom.Attr(n, "name"); v != "" {
		segs = append(segs, "name:"+v)
	}
	if v := dom.Attr(n, "aria-label"); v != "" {
		segs = append(segs, "aria:"+v)
	}
	if v := dom.Attr(n, "placeholder"); v != "" {
		segs = append(segs, "ph:"+v)
	}
	segs = append(segs, "type:"+dom.InputType(n))
	segs = append(segs, fmt.Sprintf("idx:%d", idx))
	return strings.Join(segs, "|")
}

// groupBaseStrategies resolve the base part of a group key, in priority
// order, first non-empty wins.
var groupBaseStrategies = []func(d *dom.Document, n *html.Node) string{
	groupBaseFromName,
	groupBaseFromRadiogroup,
	groupBaseFromLegend,
	groupBaseFromHeading,
	groupBaseFromOwnLabel,
}

func groupBaseFromName(d *dom.Document, n *html.Node) string {
	return dom.Attr(n, "name")
}

// groupBaseFromRadiogroup uses the accessible name of an enclosing
// role=radiogroup container.
func groupBaseFromRadiogroup(d *dom.Document, n *html.Node) string {
	rg := dom.Closest(n, func(c *html.Node) bool {
		return strings.ToLower(dom.Attr(c, "role")) == "radiogroup"
	})
	if rg == nil {
		return ""
	}
	if v := dom.Attr(rg, "aria-label"); v != "" {
		return v
	}
	for _, id := range strings.Fields(dom.Attr(rg, "aria-labelledby")) {
		if t := dom.Text(d.ByID(id)); t != "" {
			return t
		}
	}
	return ""
}

func groupBaseFromLegend(d *dom.Document, n *html.Node) string {
	fs := dom.Ancestor(n, "fieldset")
	if fs == nil {
		return ""
	}
	legend := d.Find(fs, func(c *html.Node) bool { return dom.Tag(c) == "legend" })
	return dom.Text(legend)
}

func groupBaseFromHeading(d *dom.Document, n *html.Node) string {
	block := dom.Ancestor(n, "section", "div", "form", "table")
	if block == nil {
		return ""
	}
	h := d.Find(block, func(c *html.Node) bool {
		return headingTags[dom.Tag(c)] && dom.Text(c) != ""
	})
	return dom.Text(h)
}

func groupBaseFromOwnLabel(d *dom.Document, n *html.Node) string {
	return ResolveLabel(d, n)
}

// groupBase resolves the base half of a group key for one choice control.
func groupBase(d *dom.Document, n *html.Node) string {
	for _, s := range groupBaseStrategies {
		if v := strings.TrimSpace(s(d, n)); v != "" {
			return v
		}
	}
	return "ungrouped"
}

// resolveQuestion derives the human question a group asks, independently of
// its key: legend, then nearby heading, then the first option's label.
func resolveQuestion(d *dom.Document, n *html.Node, firstLabel string) string {
	if v := strings.TrimSpace(groupBaseFromLegend(d, n)); v != "" {
		return v
	}
	if v := strings.TrimSpace(groupBaseFromHeading(d, n)); v != "" {
		return v
	}
	return firstLabel
}

// Collect runs one discovery pass over the whole document.
func Collect(d *dom.Document) *Schema {
	return CollectWithin(d, d.Root())
}

// CollectWithin runs one discovery pass scoped to the subtree under root.
// Discovered controls are tagged with their identifier (and group
// membership for choice controls) so the index can re-resolve them.
func CollectWithin(d *dom.Document, root *html.Node) *Schema {
	s := &Schema{}
	groupIdx := make(map[string]int) // key -> position in s.ChoiceGroups
	idx := 0

	d.EachWithin(root, func(n *html.Node) {
		switch {
		case IsTextControl(n):
			if !dom.IsVisible(n) {
				return
			}
			ref := BuildRef(n, idx)
			idx++
			dom.SetAttr(n, RefAttr, ref)
			s.TextFields = append(s.TextFields, Field{
				ID:          ref,
				Label:       ResolveLabel(d, n),
				Name:        dom.Attr(n, "name"),
				HTMLID:      dom.Attr(n, "id"),
				Placeholder: dom.Attr(n, "placeholder"),
				Type:        dom.InputType(n),
			})

		case ChoiceKind(n) != "":
			if !dom.IsChoiceVisible(n) {
				return
			}
			kind := ChoiceKind(n)
			key := string(kind) + ":" + groupBase(d, n)

			gi, seen := groupIdx[key]
			if !seen {
				gi = len(s.ChoiceGroups)
				groupIdx[key] = gi
				s.ChoiceGroups = append(s.ChoiceGroups, Group{
					GroupID: GroupID(kind, gi),
					Kind:    kind,
					Key:     key,
				})
			}
			g := &s.ChoiceGroups[gi]

			ref := BuildRef(n, idx)
			idx++
			label := ResolveLabel(d, n)
			if g.Question == "" {
				g.Question = resolveQuestion(d, n, label)
			}
			g.Options = append(g.Options, Option{ID: ref, Label: label})

			dom.SetAttr(n, RefAttr, ref)
			dom.SetAttr(n, GroupAttr, g.GroupID)
			dom.SetAttr(n, GroupKeyAttr, key)
			dom.SetAttr(n, QuestionAttr, g.Question)
		}
	})

	return s
}
