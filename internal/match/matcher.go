package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/index"
)

// Candidate is one choice option as the scorer sees it: pure data, no tree
// access, so the score table stays unit-testable in isolation.
type Candidate struct {
	Ref     string
	Label   string
	Context string // text of the option's immediately surrounding container
}

// normLoose lowercases and collapses whitespace but preserves punctuation.
func normLoose(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var alnumOnly = regexp.MustCompile(`[^a-z0-9]+`)

// normFull is the last-resort normalization: lowercase, alphanumeric only.
func normFull(s string) string {
	return alnumOnly.ReplaceAllString(strings.ToLower(s), "")
}

// containsEither reports mutual substring containment of two non-empty
// strings. Empty strings never match; a vacuous containment would select
// unrelated options.
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// scored carries every normalized form of one candidate against one value.
type scored struct {
	value      string
	valueLoose string
	valueFull  string
	label      string
	labelLoose string
	labelFull  string
	ctx        string
	ctxLoose   string
	ctxFull    string
}

// scoreRule maps a predicate to a fixed score. Rules are data, not control
// flow: every candidate is evaluated against the whole table and the
// highest score wins.
type scoreRule struct {
	score int
	match func(s scored) bool
}

// scoreTable is the fuzzy fallback, strongest signal first. Exact identity
// is handled before scoring ever runs; substring containment covers answers
// phrased as sentences around a shorter canonical label; the context tiers
// cover options whose visible caption lives outside the label element; full
// alphanumeric normalization absorbs punctuation and case noise.
var scoreTable = []scoreRule{
	{90, func(s scored) bool { return s.labelLoose != "" && s.labelLoose == s.valueLoose }},
	{80, func(s scored) bool { return containsEither(s.labelLoose, s.valueLoose) }},
	{78, func(s scored) bool { return s.ctx != "" && s.ctx == s.value }},
	{75, func(s scored) bool { return s.ctxLoose != "" && s.ctxLoose == s.valueLoose }},
	{60, func(s scored) bool { return s.labelFull != "" && s.labelFull == s.valueFull }},
	{50, func(s scored) bool { return containsEither(s.labelFull, s.valueFull) }},
	{40, func(s scored) bool { return containsEither(s.ctxFull, s.valueFull) }},
}

// Score returns the fuzzy score of one candidate for one value, 0 when
// there is no match signal at all.
func Score(value string, c Candidate) int {
	s := scored{
		value:      value,
		valueLoose: normLoose(value),
		valueFull:  normFull(value),
		label:      c.Label,
		labelLoose: normLoose(c.Label),
		labelFull:  normFull(c.Label),
		ctx:        c.Context,
		ctxLoose:   normLoose(c.Context),
		ctxFull:    normFull(c.Context),
	}
	for _, r := range scoreTable {
		if r.match(s) {
			return r.score
		}
	}
	return 0
}

// SelectCandidate resolves one answer value against one group's options.
// Identity short-circuits come first, then a case-sensitive tie-break among
// loosely equal labels, then the score table. Ties at the same score keep
// the first option in stored order. Returns -1 when nothing matches.
func SelectCandidate(value string, opts []Candidate) int {
	// 1. Generated identifier equals the raw value.
	for i, c := range opts {
		if c.Ref == value {
			return i
		}
	}
	// 2. Exact label text, case and punctuation preserved.
	for i, c := range opts {
		if c.Label == value {
			return i
		}
	}
	// 3. Case-sensitive tie-break among loosely equal labels.
	if i := caseTieBreak(value, opts); i >= 0 {
		return i
	}
	// 4. Fuzzy score table; strict > keeps the first option on ties.
	best, bestScore := -1, 0
	for i, c := range opts {
		if s := Score(value, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// caseTieBreak applies when two or more options collapse to the same
// lowercased, whitespace-collapsed string as the value: prefer the exact
// raw-case label, otherwise the one starting with an uppercase letter.
func caseTieBreak(value string, opts []Candidate) int {
	loose := normLoose(value)
	if loose == "" {
		return -1
	}
	var tied []int
	for i, c := range opts {
		if normLoose(c.Label) == loose {
			tied = append(tied, i)
		}
	}
	if len(tied) < 2 {
		return -1
	}
	for _, i := range tied {
		if opts[i].Label == value {
			return i
		}
	}
	for _, i := range tied {
		r := []rune(opts[i].Label)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			return i
		}
	}
	return -1
}

// CandidatesFor converts indexed options into scorer candidates, supplying
// each option's surrounding-container text (the wrapping label when there
// is one, otherwise the parent element).
func CandidatesFor(g *index.GroupEntry) []Candidate {
	out := make([]Candidate, 0, len(g.Options))
	for _, o := range g.Options {
		out = append(out, Candidate{Ref: o.Ref, Label: o.Label, Context: surroundingText(o.Node)})
	}
	return out
}

func surroundingText(n *html.Node) string {
	if wrapper := dom.Ancestor(n, "label"); wrapper != nil {
		return dom.Text(wrapper)
	}
	return dom.Text(dom.Parent(n))
}

// ResolveField resolves a scalar field answer key to a node: generated
// identifier, explicit selector, then normalized label, name, DOM id, and
// placeholder, first hit wins. A miss returns nil; the answer is dropped,
// never an error.
func ResolveField(ix *index.Index, it Item) *html.Node {
	if it.ID != "" {
		if n := ix.ByRef(it.ID); n != nil {
			return n
		}
	}
	if it.FieldID != "" {
		if n := ix.ByRef(it.FieldID); n != nil {
			return n
		}
	}
	if it.Selector != "" {
		if n := ix.Doc().Query(it.Selector); n != nil {
			return n
		}
	}
	for _, k := range []string{it.ID, it.FieldID, it.Label, it.Name, it.HTMLID} {
		if k == "" {
			continue
		}
		if n := resolveFieldKey(ix, k); n != nil {
			return n
		}
	}
	return nil
}

// ResolveFieldKey resolves a bare key (from a flat map or a fields object)
// in the same order as keyed items: identifier, label, name, DOM id,
// placeholder.
func ResolveFieldKey(ix *index.Index, key string) *html.Node {
	if n := ix.ByRef(key); n != nil {
		return n
	}
	return resolveFieldKey(ix, key)
}

func resolveFieldKey(ix *index.Index, key string) *html.Node {
	if n := ix.ByLabel(key); n != nil {
		return n
	}
	if n := ix.ByName(key); n != nil {
		return n
	}
	if n := ix.ByHTMLID(key); n != nil {
		return n
	}
	return ix.ByPlaceholder(key)
}
