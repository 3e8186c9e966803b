package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Query resolves a simple CSS-style selector against the document. Supported
// forms are the ones answer payloads actually carry: "#id", "tag",
// "[attr=value]", "[attr]", and "tag#id" / "tag[attr=value]" combinations.
// Anything more elaborate returns nil rather than guessing.
func (d *Document) Query(selector string) *html.Node {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}

	tag, id, attrKey, attrVal, ok := parseSimpleSelector(selector)
	if !ok {
		return nil
	}

	return d.Find(d.root, func(n *html.Node) bool {
		if tag != "" && Tag(n) != tag {
			return false
		}
		if id != "" && Attr(n, "id") != id {
			return false
		}
		if attrKey != "" {
			if attrVal == "" && !HasAttr(n, attrKey) {
				return false
			}
			if attrVal != "" && Attr(n, attrKey) != attrVal {
				return false
			}
		}
		return tag != "" || id != "" || attrKey != ""
	})
}

func parseSimpleSelector(s string) (tag, id, attrKey, attrVal string, ok bool) {
	// Reject combinators and class selectors outright.
	if strings.ContainsAny(s, " >+~.,:") {
		return "", "", "", "", false
	}
	if i := strings.Index(s, "["); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return "", "", "", "", false
		}
		inner := s[i+1 : len(s)-1]
		s = s[:i]
		if j := strings.Index(inner, "="); j >= 0 {
			attrKey = inner[:j]
			attrVal = strings.Trim(inner[j+1:], `"'`)
		} else {
			attrKey = inner
		}
	}
	if i := strings.Index(s, "#"); i >= 0 {
		id = s[i+1:]
		s = s[:i]
	}
	tag = strings.ToLower(s)
	return tag, id, attrKey, attrVal, true
}

// SelectorFor derives a CSS selector for n that a live browser page can
// resolve, preferring stable attributes over structure.
func SelectorFor(n *html.Node) string {
	tag := Tag(n)
	if id := Attr(n, "id"); id != "" {
		return fmt.Sprintf("#%s", id)
	}
	if name := Attr(n, "name"); name != "" {
		sel := fmt.Sprintf(`%s[name="%s"]`, tag, name)
		if t := Attr(n, "type"); t != "" {
			sel += fmt.Sprintf(`[type="%s"]`, t)
		}
		if v := Attr(n, "value"); v != "" && (InputType(n) == "radio" || InputType(n) == "checkbox") {
			sel += fmt.Sprintf(`[value="%s"]`, v)
		}
		return sel
	}
	if aria := Attr(n, "aria-label"); aria != "" {
		return fmt.Sprintf(`%s[aria-label="%s"]`, tag, aria)
	}
	if ph := Attr(n, "placeholder"); ph != "" {
		return fmt.Sprintf(`%s[placeholder="%s"]`, tag, ph)
	}
	return structuralSelector(n)
}

// structuralSelector builds an nth-of-type path from the nearest ancestor
// with an id (or the body) down to n.
func structuralSelector(n *html.Node) string {
	var parts []string
	cur := n
	for cur != nil && Tag(cur) != "body" && Tag(cur) != "html" {
		if id := Attr(cur, "id"); id != "" && cur != n {
			parts = append([]string{fmt.Sprintf("#%s", id)}, parts...)
			return strings.Join(parts, " > ")
		}
		idx := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && Tag(s) == Tag(cur) {
				idx++
			}
		}
		parts = append([]string{fmt.Sprintf("%s:nth-of-type(%d)", Tag(cur), idx)}, parts...)
		cur = Parent(cur)
	}
	return strings.Join(parts, " > ")
}
