// Package index builds the per-operation reverse lookup over a tagged
// document tree. The index is always rebuilt from whatever identifier
// attributes exist on the tree at that moment and is never cached across
// operations: the tree may have changed or been replaced since the last
// discovery pass.
package index

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/schema"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey lowercases s, collapses every non-alphanumeric run to a
// single space, and trims. This is the key form used for label/name/htmlId/
// placeholder/question lookups.
func NormalizeKey(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

// OptionEntry is one indexed choice control.
type OptionEntry struct {
	Ref   string
	Label string
	Node  *html.Node
}

// GroupEntry is the lazily materialized view of one choice group.
type GroupEntry struct {
	ID       string
	Kind     schema.GroupKind
	Key      string
	Question string
	Options  []OptionEntry
}

// Index holds every reverse lookup for one fill operation.
type Index struct {
	doc *dom.Document

	byRef         map[string]*html.Node
	byLabel       map[string]*html.Node
	byName        map[string]*html.Node
	byHTMLID      map[string]*html.Node
	byPlaceholder map[string]*html.Node

	groups     map[string]*GroupEntry
	groupOrder []string
	byGroupKey map[string]string // full "{kind}:{base}" key -> group id
	byBase     map[string]string // bare base -> group id
	byQuestion map[string]string // normalized question -> group id
}

// Build scans every node tagged by the most recent discovery pass and
// constructs the lookup tables. For each secondary key (label, name,
// htmlId, placeholder) the first node seen wins; later duplicates are not
// indexed under that key, so a squatting control cannot silently override
// an earlier, presumably primary, one.
func Build(d *dom.Document) *Index {
	ix := &Index{
		doc:           d,
		byRef:         make(map[string]*html.Node),
		byLabel:       make(map[string]*html.Node),
		byName:        make(map[string]*html.Node),
		byHTMLID:      make(map[string]*html.Node),
		byPlaceholder: make(map[string]*html.Node),
		groups:        make(map[string]*GroupEntry),
		byGroupKey:    make(map[string]string),
		byBase:        make(map[string]string),
		byQuestion:    make(map[string]string),
	}

	d.Each(func(n *html.Node) {
		ref := dom.Attr(n, schema.RefAttr)
		if ref == "" {
			return
		}
		ix.byRef[ref] = n

		label := schema.ResolveLabel(d, n)
		claim(ix.byLabel, NormalizeKey(label), n)
		claim(ix.byName, NormalizeKey(dom.Attr(n, "name")), n)
		claim(ix.byHTMLID, NormalizeKey(dom.Attr(n, "id")), n)
		claim(ix.byPlaceholder, NormalizeKey(dom.Attr(n, "placeholder")), n)

		gid := dom.Attr(n, schema.GroupAttr)
		if gid == "" {
			return
		}
		g, ok := ix.groups[gid]
		if !ok {
			key := dom.Attr(n, schema.GroupKeyAttr)
			g = &GroupEntry{
				ID:       gid,
				Kind:     kindFromID(gid),
				Key:      key,
				Question: dom.Attr(n, schema.QuestionAttr),
			}
			ix.groups[gid] = g
			ix.groupOrder = append(ix.groupOrder, gid)
			claimStr(ix.byGroupKey, key, gid)
			if i := strings.Index(key, ":"); i >= 0 {
				claimStr(ix.byBase, NormalizeKey(key[i+1:]), gid)
			}
			claimStr(ix.byQuestion, NormalizeKey(g.Question), gid)
		}
		g.Options = append(g.Options, OptionEntry{Ref: ref, Label: label, Node: n})
	})

	return ix
}

func claim(m map[string]*html.Node, key string, n *html.Node) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = n
	}
}

func claimStr(m map[string]string, key, val string) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = val
	}
}

// kindFromID recovers the group kind from a "group:{kind}:{n}" identifier.
func kindFromID(gid string) schema.GroupKind {
	parts := strings.Split(gid, ":")
	if len(parts) == 3 {
		if k := schema.GroupKind(parts[1]); k.IsValid() {
			return k
		}
	}
	return schema.KindCheckbox
}

// Doc returns the document this index was built from.
func (ix *Index) Doc() *dom.Document { return ix.doc }

// ByRef resolves a generated identifier to its node.
func (ix *Index) ByRef(ref string) *html.Node { return ix.byRef[ref] }

// ByLabel resolves a normalized label key.
func (ix *Index) ByLabel(key string) *html.Node { return ix.byLabel[NormalizeKey(key)] }

// ByName resolves a normalized name key.
func (ix *Index) ByName(key string) *html.Node { return ix.byName[NormalizeKey(key)] }

// ByHTMLID resolves a normalized DOM-id key.
func (ix *Index) ByHTMLID(key string) *html.Node { return ix.byHTMLID[NormalizeKey(key)] }

// ByPlaceholder resolves a normalized placeholder key.
func (ix *Index) ByPlaceholder(key string) *html.Node {
	return ix.byPlaceholder[NormalizeKey(key)]
}

// Group returns the group with the given synthesized id, or nil.
func (ix *Index) Group(id string) *GroupEntry { return ix.groups[id] }

// Groups returns every indexed group in encounter order.
func (ix *Index) Groups() []*GroupEntry {
	out := make([]*GroupEntry, 0, len(ix.groupOrder))
	for _, id := range ix.groupOrder {
		out = append(out, ix.groups[id])
	}
	return out
}

// ResolveGroup resolves a choice-answer key to a group: exact group id,
// then the full "{kind}:{base}" key, then the bare base, then the
// normalized question. Returns nil when nothing matches.
func (ix *Index) ResolveGroup(key string) *GroupEntry {
	if g, ok := ix.groups[key]; ok {
		return g
	}
	if id, ok := ix.byGroupKey[key]; ok {
		return ix.groups[id]
	}
	if id, ok := ix.byBase[NormalizeKey(key)]; ok {
		return ix.groups[id]
	}
	if id, ok := ix.byQuestion[NormalizeKey(key)]; ok {
		return ix.groups[id]
	}
	return nil
}
