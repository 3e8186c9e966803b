package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// parseStyle splits an inline style attribute into property/value pairs.
func parseStyle(style string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		i := strings.Index(decl, ":")
		if i < 0 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(decl[:i]))
		v := strings.ToLower(strings.TrimSpace(decl[i+1:]))
		if k != "" {
			out[k] = v
		}
	}
	return out
}

func isZeroLength(v string) bool {
	v = strings.TrimSpace(v)
	switch v {
	case "0", "0px", "0%", "0em", "0rem":
		return true
	}
	return false
}

// hiddenBySelf reports whether n's own attributes hide it, independent of
// its ancestors.
func hiddenBySelf(n *html.Node) bool {
	if HasAttr(n, "hidden") {
		return true
	}
	if Tag(n) == "input" && InputType(n) == "hidden" {
		return true
	}
	style := parseStyle(Attr(n, "style"))
	if style["display"] == "none" || style["visibility"] == "hidden" {
		return true
	}
	if op, ok := style["opacity"]; ok && (op == "0" || op == "0.0") {
		return true
	}
	// Without a renderer a node's box is taken as positive unless its inline
	// style collapses it.
	if isZeroLength(style["width"]) || isZeroLength(style["height"]) {
		return true
	}
	return false
}

// IsVisible reports whether n is meaningfully visible: neither n nor any
// ancestor is hidden, and its box has not been collapsed. Pure predicate,
// no side effects.
func IsVisible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for cur := n; cur != nil; cur = Parent(cur) {
		if hiddenBySelf(cur) {
			return false
		}
	}
	return true
}

// IsChoiceVisible extends IsVisible for radio/checkbox-like controls, which
// are frequently replaced by styled siblings while staying functional: the
// control counts as visible if it, its wrapping label, or its immediate
// container is visible.
func IsChoiceVisible(n *html.Node) bool {
	if IsVisible(n) {
		return true
	}
	if label := Ancestor(n, "label"); label != nil && IsVisible(label) {
		return true
	}
	if p := Parent(n); p != nil && IsVisible(p) {
		return true
	}
	return false
}
