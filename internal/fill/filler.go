package fill

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/index"
	"github.com/formpilot/formpilot/internal/match"
	"github.com/formpilot/formpilot/internal/schema"
)

// Result is the aggregate outcome of one fill operation. No per-field
// results are reported; an answer that resolves to nothing is simply absent
// from the count.
type Result struct {
	Filled    int  `json:"filled"`
	Submitted bool `json:"submitted"`
}

// Config controls one filler instance.
type Config struct {
	// AutoSubmit clicks the submit control of every touched form after a
	// successful fill.
	AutoSubmit bool
	// Silent suppresses change notifications on text fills.
	Silent bool
}

// Filler resolves a parsed answer payload against an index and mutates the
// tree accordingly.
type Filler struct {
	ix     *index.Index
	mut    *Mutator
	cfg    Config
	logger *zap.Logger
}

// New creates a filler for one operation.
func New(ix *index.Index, cfg Config, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		ix:     ix,
		mut:    NewMutator(ix.Doc()),
		cfg:    cfg,
		logger: logger,
	}
}

// Mutator exposes the underlying mutator, mainly for its replay plan.
func (f *Filler) Mutator() *Mutator { return f.mut }

// Apply maps every answer in the payload onto the tree. Resolution misses
// are dropped silently; a failing checked-state application skips that one
// item and the rest of the batch continues. Mutations already applied when
// something fails are never rolled back: a partial fill is a normal
// terminal state.
func (f *Filler) Apply(p *match.Payload) Result {
	var res Result

	switch p.Kind {
	case match.KindList:
		for _, it := range p.Items {
			key := it.Key()
			if g := f.ix.ResolveGroup(key); g != nil {
				res.Filled += f.applyChoice(g, match.Choice{Value: it.Answer, Values: it.Values, Multi: it.Values != nil})
				continue
			}
			res.Filled += f.applyScalarItem(it)
		}
	case match.KindStructured:
		for key, val := range p.Fields {
			res.Filled += f.applyScalarKey(key, val)
		}
		for key, ch := range p.Choices {
			g := f.ix.ResolveGroup(key)
			if g == nil {
				f.logger.Debug("choice key matched no group", zap.String("key", key))
				continue
			}
			res.Filled += f.applyChoice(g, ch)
		}
	case match.KindFlat:
		for key, ch := range p.Flat {
			if g := f.ix.ResolveGroup(key); g != nil {
				res.Filled += f.applyChoice(g, ch)
				continue
			}
			res.Filled += f.applyScalarKey(key, ch.Value)
		}
	}

	if res.Filled == 0 {
		f.logger.Warn("fill operation matched nothing")
		return res
	}

	if f.cfg.AutoSubmit {
		res.Submitted = f.submitTouched()
	}
	return res
}

// ApplyField fills a single resolved control directly, used by the
// focus-scoped strategy where no matching is needed.
func (f *Filler) ApplyField(n *html.Node, value string) Result {
	f.mut.ApplyValue(n, value, Options{Silent: f.cfg.Silent})
	res := Result{Filled: 1}
	if f.cfg.AutoSubmit {
		res.Submitted = f.submitTouched()
	}
	return res
}

func (f *Filler) applyScalarItem(it match.Item) int {
	n := match.ResolveField(f.ix, it)
	if n == nil {
		f.logger.Debug("answer key matched no control", zap.String("key", it.Key()))
		return 0
	}
	if it.Answer == "" {
		return 0
	}
	f.mut.ApplyValue(n, it.Answer, Options{Silent: f.cfg.Silent})
	return 1
}

func (f *Filler) applyScalarKey(key, value string) int {
	n := match.ResolveFieldKey(f.ix, key)
	if n == nil || value == "" {
		return 0
	}
	f.mut.ApplyValue(n, value, Options{Silent: f.cfg.Silent})
	return 1
}

// applyChoice marks the resolved options of one group. Radio groups take a
// single value applied exclusively; checkbox groups take each value
// independently. Unmatched values are dropped without error.
func (f *Filler) applyChoice(g *index.GroupEntry, ch match.Choice) int {
	cands := match.CandidatesFor(g)

	values := ch.Values
	if !ch.Multi || g.Kind == schema.KindRadio {
		values = []string{ch.Value}
	}

	filled := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		i := match.SelectCandidate(v, cands)
		if i < 0 {
			f.logger.Debug("choice value matched no option",
				zap.String("group", g.ID), zap.String("value", v))
			continue
		}
		if f.applyCheckedSafe(g.Options[i].Node, g.Kind == schema.KindRadio) {
			filled++
		}
		if g.Kind == schema.KindRadio {
			break
		}
	}
	return filled
}

// applyCheckedSafe isolates one checked-state application: an unexpected
// panic skips that item, the rest of the batch continues.
func (f *Filler) applyCheckedSafe(n *html.Node, exclusive bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("checked-state application failed", zap.Any("panic", r))
			ok = false
		}
	}()
	f.mut.ApplyChecked(n, exclusive, Options{Silent: f.cfg.Silent})
	return true
}

// submitTouched clicks the submit control of every touched form, once each.
// Failures are swallowed: submitted stays false unless at least one form
// actually submitted.
func (f *Filler) submitTouched() bool {
	submitted := false
	for _, form := range f.mut.Touched() {
		if f.submitSafe(form) {
			submitted = true
		}
	}
	return submitted
}

func (f *Filler) submitSafe(form *html.Node) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("form submission failed", zap.Any("panic", r))
			ok = false
		}
	}()
	return f.mut.Submit(form)
}

// Touched exposes the touched-form set for callers that manage submission
// themselves.
func (f *Filler) Touched() []*html.Node { return f.mut.Touched() }
