package schema

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
)

// labelStrategy is one heuristic in the label waterfall. Strategies are
// tried in order and the first non-empty result wins; there is no scoring
// because a label is expected to be unambiguous once a tier matches.
type labelStrategy func(d *dom.Document, n *html.Node) string

var labelStrategies = []labelStrategy{
	labelByFor,
	labelFromWrapper,
	labelFromAriaLabel,
	labelFromAriaLabelledBy,
	labelFromPlaceholder,
	labelFromPrevSibling,
	labelFromWrapperChild,
	labelFromNearbyHeading,
	labelFallback,
}

// ResolveLabel derives a human-meaningful label for a control.
func ResolveLabel(d *dom.Document, n *html.Node) string {
	for _, s := range labelStrategies {
		if v := strings.TrimSpace(s(d, n)); v != "" {
			return v
		}
	}
	return ""
}

// labelByFor finds an explicit <label for=...> association.
func labelByFor(d *dom.Document, n *html.Node) string {
	id := dom.Attr(n, "id")
	if id == "" {
		return ""
	}
	lbl := d.Find(d.Root(), func(c *html.Node) bool {
		return dom.Tag(c) == "label" && dom.Attr(c, "for") == id
	})
	return dom.Text(lbl)
}

// labelFromWrapper uses the text of an ancestor label the control is nested
// inside.
func labelFromWrapper(d *dom.Document, n *html.Node) string {
	return dom.Text(dom.Ancestor(n, "label"))
}

func labelFromAriaLabel(d *dom.Document, n *html.Node) string {
	return dom.Attr(n, "aria-label")
}

// labelFromAriaLabelledBy concatenates the text of every node referenced by
// aria-labelledby.
func labelFromAriaLabelledBy(d *dom.Document, n *html.Node) string {
	refs := strings.Fields(dom.Attr(n, "aria-labelledby"))
	if len(refs) == 0 {
		return ""
	}
	var parts []string
	for _, id := range refs {
		if t := dom.Text(d.ByID(id)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func labelFromPlaceholder(d *dom.Document, n *html.Node) string {
	return dom.Attr(n, "placeholder")
}

func labelFromPrevSibling(d *dom.Document, n *html.Node) string {
	return dom.Text(dom.PrevElement(n))
}

// inlineTextTags are the styled children component libraries put visible
// captions in while the label element itself carries no direct text.
var inlineTextTags = map[string]bool{
	"span": true, "b": true, "strong": true, "i": true, "em": true, "p": true,
}

// labelFromWrapperChild covers label > styled-span patterns.
func labelFromWrapperChild(d *dom.Document, n *html.Node) string {
	wrapper := dom.Ancestor(n, "label")
	if wrapper == nil {
		return ""
	}
	child := d.Find(wrapper, func(c *html.Node) bool {
		return inlineTextTags[dom.Tag(c)] && dom.Text(c) != ""
	})
	return dom.Text(child)
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"strong": true, "b": true, "legend": true,
}

// labelFromNearbyHeading looks for heading or emphasis text inside the
// enclosing block-level ancestor.
func labelFromNearbyHeading(d *dom.Document, n *html.Node) string {
	block := dom.Ancestor(n, "div", "section", "td", "li", "p", "form")
	if block == nil {
		return ""
	}
	h := d.Find(block, func(c *html.Node) bool {
		return headingTags[dom.Tag(c)] && dom.Text(c) != ""
	})
	return dom.Text(h)
}

// labelFallback is the terminal tier: name attribute, then id, then tag.
func labelFallback(d *dom.Document, n *html.Node) string {
	if v := dom.Attr(n, "name"); v != "" {
		return v
	}
	if v := dom.Attr(n, "id"); v != "" {
		return v
	}
	return dom.Tag(n)
}
