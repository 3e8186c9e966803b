package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/fill"
	"github.com/formpilot/formpilot/internal/index"
	"github.com/formpilot/formpilot/internal/match"
	"github.com/formpilot/formpilot/internal/observability"
	"github.com/formpilot/formpilot/internal/schema"
)

// Strategy names one of the orchestrator's discovery-and-fill policies.
type Strategy string

const (
	StrategySelection Strategy = "selection"
	StrategyViewport  Strategy = "viewport"
	StrategyFocus     Strategy = "focus"
	StrategyFullPage  Strategy = "full_page"
)

// ErrBusy is returned when a trigger arrives while another operation is
// still in flight on this orchestrator. Triggers are rejected rather than
// queued: interleaved document writes from concurrent operations are worse
// than a dropped trigger.
var ErrBusy = errors.New("capture operation already in flight")

// Config controls one orchestrator.
type Config struct {
	AutoSubmit    bool
	PageTextLimit int
	LogSize       int
	LogMaxAge     time.Duration
}

// Orchestrator runs one operation per trigger: strategies are tried in
// fixed priority order and the first one that applies anything wins. Each
// strategy is stateless; a strategy failing internally (including the
// provider rejecting its request) is treated as not applicable.
type Orchestrator struct {
	provider Provider
	cfg      Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	log      *ExchangeLog
	inflight atomic.Bool
	plan     []fill.Mutation
}

// New creates an orchestrator around an answer provider.
func New(provider Provider, cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		log:      NewExchangeLog(cfg.LogSize, cfg.LogMaxAge),
	}
}

// Exchanges returns the recent provider exchanges for diagnostics.
func (o *Orchestrator) Exchanges() []Exchange { return o.log.Recent() }

// Plan returns the mutation steps recorded by the most recent Run. It is
// only meaningful after Run has returned; the in-flight guard means no
// concurrent Run can be rewriting it.
func (o *Orchestrator) Plan() []fill.Mutation { return o.plan }

type strategyFunc func(ctx context.Context, d *dom.Document) (fill.Result, bool, error)

// Run executes one trigger against the document. It returns the result of
// the first strategy that applied, along with which one it was. A second
// trigger while one is running returns ErrBusy.
func (o *Orchestrator) Run(ctx context.Context, d *dom.Document) (fill.Result, Strategy, error) {
	if !o.inflight.CompareAndSwap(false, true) {
		return fill.Result{}, "", ErrBusy
	}
	defer o.inflight.Store(false)
	o.plan = nil

	opID := uuid.New().String()
	log := o.logger.With(zap.String("operation_id", opID))

	strategies := []struct {
		name Strategy
		run  strategyFunc
	}{
		{StrategySelection, o.runSelection},
		{StrategyViewport, o.runViewport},
		{StrategyFocus, o.runFocus},
		{StrategyFullPage, o.runFullPage},
	}

	var lastErr error
	for _, s := range strategies {
		res, applied, err := o.runSafe(ctx, s.run, d)
		if err != nil {
			lastErr = err
			log.Warn("strategy failed, falling through",
				zap.String("strategy", string(s.name)), zap.Error(err))
			o.record(s.name, "", false, err, 0)
			if o.metrics != nil {
				o.metrics.RecordCapture(string(s.name), "error")
			}
			continue
		}
		if !applied {
			continue
		}
		if res.Filled == 0 {
			log.Warn("strategy applied but filled nothing", zap.String("strategy", string(s.name)))
		}
		log.Info("capture complete",
			zap.String("strategy", string(s.name)),
			zap.Int("filled", res.Filled),
			zap.Bool("submitted", res.Submitted))
		if o.metrics != nil {
			o.metrics.RecordCapture(string(s.name), "applied")
			o.metrics.RecordFill(res.Filled)
		}
		return res, s.name, nil
	}

	if lastErr != nil {
		return fill.Result{}, "", fmt.Errorf("all strategies failed: %w", lastErr)
	}
	return fill.Result{}, "", nil
}

// runSafe converts a panicking strategy into "not applicable".
func (o *Orchestrator) runSafe(ctx context.Context, s strategyFunc, d *dom.Document) (res fill.Result, applied bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, applied, err = fill.Result{}, false, fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return s(ctx, d)
}

// runSelection handles an active text selection: expand to the nearest
// structural block, detect choice groups inside it, resolve them via the
// provider, apply.
func (o *Orchestrator) runSelection(ctx context.Context, d *dom.Document) (fill.Result, bool, error) {
	block := d.SelectionBlock()
	if block == nil {
		return fill.Result{}, false, nil
	}
	s := schema.CollectWithin(d, block)
	if len(s.ChoiceGroups) == 0 {
		return fill.Result{}, false, nil
	}
	res, err := o.resolveChoices(ctx, StrategySelection, d, dom.Text(block), s.ChoiceGroups)
	if err != nil {
		return fill.Result{}, false, err
	}
	return res, res.Filled > 0, nil
}

// runViewport picks the visible choice group nearest the vertical viewport
// center and resolves just that one.
func (o *Orchestrator) runViewport(ctx context.Context, d *dom.Document) (fill.Result, bool, error) {
	s := schema.Collect(d)
	if len(s.ChoiceGroups) == 0 {
		return fill.Result{}, false, nil
	}

	ix := index.Build(d)
	center := d.ViewportCenter()
	groups := ix.Groups()
	sort.SliceStable(groups, func(i, j int) bool {
		return groupDistance(d, groups[i], center) < groupDistance(d, groups[j], center)
	})
	nearest := groups[0]

	var target *schema.Group
	for i := range s.ChoiceGroups {
		if s.ChoiceGroups[i].GroupID == nearest.ID {
			target = &s.ChoiceGroups[i]
			break
		}
	}
	if target == nil {
		return fill.Result{}, false, nil
	}
	res, err := o.resolveChoices(ctx, StrategyViewport, d, "", []schema.Group{*target})
	if err != nil {
		return fill.Result{}, false, err
	}
	return res, res.Filled > 0, nil
}

func groupDistance(d *dom.Document, g *index.GroupEntry, center int) int {
	if len(g.Options) == 0 {
		return int(^uint(0) >> 1)
	}
	dist := d.Ordinal(g.Options[0].Node) - center
	if dist < 0 {
		dist = -dist
	}
	return dist
}

// runFocus handles a focused text-like control: one free-text answer for it
// only, applied silently so no change notification triggers a premature
// submission.
func (o *Orchestrator) runFocus(ctx context.Context, d *dom.Document) (fill.Result, bool, error) {
	focused := d.Focused()
	if focused == nil || !schema.IsTextControl(focused) {
		return fill.Result{}, false, nil
	}
	s := schema.CollectWithin(d, focused)
	if len(s.TextFields) == 0 {
		return fill.Result{}, false, nil
	}
	field := s.TextFields[0]

	answer, err := o.provider.RequestFieldAnswer(ctx, field)
	o.record(StrategyFocus, "field", err == nil, err, boolToInt(err == nil && answer != ""))
	if err != nil {
		return fill.Result{}, false, err
	}
	if answer == "" {
		return fill.Result{}, false, nil
	}

	ix := index.Build(d)
	f := fill.New(ix, fill.Config{Silent: true}, o.logger)
	res := f.ApplyField(ix.ByRef(field.ID), answer)
	o.plan = append(o.plan, f.Mutator().Plan()...)
	return res, true, nil
}

// runFullPage is the fallback: full discovery, everything sent to the
// provider, answers applied in whatever shape they come back.
func (o *Orchestrator) runFullPage(ctx context.Context, d *dom.Document) (fill.Result, bool, error) {
	s := schema.Collect(d)
	inputs := make([]InputDescriptor, 0, len(s.TextFields)+len(s.ChoiceGroups))
	for _, f := range s.TextFields {
		inputs = append(inputs, FieldDescriptor(f))
	}
	for _, g := range s.ChoiceGroups {
		inputs = append(inputs, GroupDescriptor(g))
	}
	if len(inputs) == 0 {
		return fill.Result{}, true, nil
	}

	resp, err := o.provider.RequestAnswers(ctx, AnswerRequest{
		PageText: PageText(d, o.cfg.PageTextLimit),
		Inputs:   inputs,
	})
	if err != nil {
		o.record(StrategyFullPage, "answers", false, err, 0)
		return fill.Result{}, false, err
	}
	if !resp.OK {
		err := fmt.Errorf("provider rejected request: %s", resp.Error)
		o.record(StrategyFullPage, "answers", false, err, 0)
		return fill.Result{}, false, err
	}

	payload, err := match.Parse(resp.Answers)
	if err != nil {
		o.record(StrategyFullPage, "answers", false, err, 0)
		return fill.Result{}, false, fmt.Errorf("provider answers: %w", err)
	}

	ix := index.Build(d)
	f := fill.New(ix, fill.Config{AutoSubmit: o.cfg.AutoSubmit}, o.logger)
	res := f.Apply(payload)
	o.plan = append(o.plan, f.Mutator().Plan()...)
	o.record(StrategyFullPage, "answers", true, nil, res.Filled)
	return res, true, nil
}

// resolveChoices runs the choice-only provider contract for a set of
// groups and applies the reply.
func (o *Orchestrator) resolveChoices(ctx context.Context, strat Strategy, d *dom.Document, selectionText string, groups []schema.Group) (fill.Result, error) {
	descs := make([]InputDescriptor, 0, len(groups))
	for _, g := range groups {
		descs = append(descs, GroupDescriptor(g))
	}

	resp, err := o.provider.RequestChoices(ctx, ChoiceRequest{
		SelectionText: selectionText,
		Groups:        descs,
	})
	if err != nil {
		o.record(strat, "choices", false, err, 0)
		return fill.Result{}, err
	}
	if len(resp.Choices) == 0 {
		o.record(strat, "choices", true, nil, 0)
		return fill.Result{}, nil
	}

	// Re-shape into a structured payload so matching follows the one
	// resolution path.
	raw, err := json.Marshal(map[string]any{"choices": resp.Choices})
	if err != nil {
		return fill.Result{}, fmt.Errorf("encoding choices: %w", err)
	}
	payload, err := match.Parse(raw)
	if err != nil {
		return fill.Result{}, fmt.Errorf("provider choices: %w", err)
	}

	ix := index.Build(d)
	f := fill.New(ix, fill.Config{AutoSubmit: o.cfg.AutoSubmit}, o.logger)
	res := f.Apply(payload)
	o.plan = append(o.plan, f.Mutator().Plan()...)
	o.record(strat, "choices", true, nil, res.Filled)
	return res, nil
}

func (o *Orchestrator) record(strat Strategy, kind string, ok bool, err error, filled int) {
	e := Exchange{Strategy: strat, Kind: kind, OK: ok, Filled: filled}
	if err != nil {
		e.Error = err.Error()
	}
	o.log.Append(e)
	if o.metrics != nil && kind != "" {
		status := "ok"
		if !ok {
			status = "error"
		}
		o.metrics.RecordProviderRequest(kind, status)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
