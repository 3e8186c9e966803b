package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/schema"
)

// stubProvider scripts each contract independently.
type stubProvider struct {
	answers     json.RawMessage
	answersErr  error
	choices     map[string]json.RawMessage
	choicesErr  error
	fieldAnswer string
	fieldErr    error

	answerCalls []AnswerRequest
	choiceCalls []ChoiceRequest
	fieldCalls  []schema.Field

	block   chan struct{} // when set, RequestAnswers parks until closed
	started chan struct{} // closed once RequestAnswers has been entered
}

func (s *stubProvider) RequestAnswers(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	s.answerCalls = append(s.answerCalls, req)
	if s.started != nil {
		close(s.started)
		s.started = nil
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.answersErr != nil {
		return nil, s.answersErr
	}
	return &AnswerResponse{OK: true, Answers: s.answers}, nil
}

func (s *stubProvider) RequestChoices(ctx context.Context, req ChoiceRequest) (*ChoiceResponse, error) {
	s.choiceCalls = append(s.choiceCalls, req)
	if s.choicesErr != nil {
		return nil, s.choicesErr
	}
	return &ChoiceResponse{Choices: s.choices}, nil
}

func (s *stubProvider) RequestFieldAnswer(ctx context.Context, field schema.Field) (string, error) {
	s.fieldCalls = append(s.fieldCalls, field)
	return s.fieldAnswer, s.fieldErr
}

const pageHTML = `
<body>
<form>
	<label for="em">Email</label>
	<input id="em" name="email" type="email">
	<div id="colors">
		<fieldset>
			<legend>Favorite color</legend>
			<label><input type="radio" name="color" value="red"> Red</label>
			<label><input type="radio" name="color" value="green"> Green</label>
		</fieldset>
	</div>
</form>
</body>`

func parseDoc(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(src)
	require.NoError(t, err)
	return d
}

func radioChecked(d *dom.Document, value string) bool {
	n := d.Find(d.Root(), func(c *html.Node) bool {
		return dom.InputType(c) == "radio" && dom.Attr(c, "value") == value
	})
	return n != nil && dom.HasAttr(n, "checked")
}

func TestRunFullPage(t *testing.T) {
	p := &stubProvider{answers: json.RawMessage(`{"fields": {"Email": "a@b.c"}, "choices": {"color": "Green"}}`)}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)

	res, strategy, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyFullPage, strategy)
	assert.Equal(t, 2, res.Filled)

	require.Len(t, p.answerCalls, 1)
	assert.NotEmpty(t, p.answerCalls[0].PageText)
	assert.Len(t, p.answerCalls[0].Inputs, 2, "one text field plus one group")

	assert.Equal(t, "a@b.c", dom.Attr(d.ByID("em"), "value"))
	assert.True(t, radioChecked(d, "green"))
	assert.NotEmpty(t, o.Plan())
}

func TestRunSelection(t *testing.T) {
	p := &stubProvider{}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)
	require.True(t, d.SetSelectionText("Favorite color"))

	// The stub needs the group id discovered inside the selection block; run
	// discovery the same way the strategy will to learn it, then reset.
	probe := parseDoc(t, pageHTML)
	probe.SetSelectionText("Favorite color")
	s := schema.CollectWithin(probe, probe.SelectionBlock())
	require.Len(t, s.ChoiceGroups, 1)
	p.choices = map[string]json.RawMessage{
		s.ChoiceGroups[0].GroupID: json.RawMessage(`"Green"`),
	}

	res, strategy, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategySelection, strategy)
	assert.Equal(t, 1, res.Filled)
	assert.True(t, radioChecked(d, "green"))

	require.Len(t, p.choiceCalls, 1)
	assert.Contains(t, p.choiceCalls[0].SelectionText, "Favorite color")
	assert.Empty(t, p.answerCalls, "selection strategy never reaches full page")
}

func TestRunFocus(t *testing.T) {
	p := &stubProvider{fieldAnswer: "focused@fill.io"}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)
	d.SetFocus(d.ByID("em"))

	res, strategy, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyFocus, strategy)
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, "focused@fill.io", dom.Attr(d.ByID("em"), "value"))

	require.Len(t, p.fieldCalls, 1)
	assert.Equal(t, "Email", p.fieldCalls[0].Label)

	// Focus fills are silent: input only, no change notification.
	evs := d.EventsFor(d.ByID("em"))
	require.Len(t, evs, 1)
	assert.Equal(t, dom.EventInput, evs[0].Type)
}

func TestRunFallsThroughOnStrategyError(t *testing.T) {
	p := &stubProvider{
		choicesErr: fmt.Errorf("choice backend down"),
		answers:    json.RawMessage(`{"fields": {"Email": "x@y.z"}}`),
	}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)
	require.True(t, d.SetSelectionText("Favorite color"))

	res, strategy, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyFullPage, strategy, "a failing strategy falls through, not out")
	assert.Equal(t, 1, res.Filled)

	exchanges := o.Exchanges()
	var failed bool
	for _, e := range exchanges {
		if !e.OK && e.Error != "" {
			failed = true
		}
	}
	assert.True(t, failed, "the failed strategy is recorded")
}

func TestRunAllStrategiesFail(t *testing.T) {
	p := &stubProvider{
		choicesErr: errors.New("down"),
		answersErr: errors.New("down"),
	}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)

	_, _, err := o.Run(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all strategies failed")
}

func TestRunNothingToDo(t *testing.T) {
	p := &stubProvider{}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, `<body><p>no controls here</p></body>`)

	// A page with no controls terminates at the full-page strategy without
	// ever calling the provider.
	res, strategy, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, StrategyFullPage, strategy)
	assert.Equal(t, 0, res.Filled)
	assert.Empty(t, p.answerCalls)
}

func TestRunRejectsConcurrentTrigger(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	p := &stubProvider{
		block:   block,
		started: started,
		answers: json.RawMessage(`{"fields": {"Email": "a@b.c"}}`),
	}
	o := New(p, Config{}, nil, nil)
	d := parseDoc(t, pageHTML)

	done := make(chan error, 1)
	go func() {
		_, _, err := o.Run(context.Background(), d)
		done <- err
	}()

	// Wait for the first run to park inside the provider.
	<-started

	_, _, err := o.Run(context.Background(), parseDoc(t, pageHTML))
	assert.ErrorIs(t, err, ErrBusy)

	close(block)
	require.NoError(t, <-done)
}

func TestRunAutoSubmit(t *testing.T) {
	p := &stubProvider{answers: json.RawMessage(`{"fields": {"Email": "a@b.c"}}`)}
	o := New(p, Config{AutoSubmit: true}, nil, nil)
	d := parseDoc(t, `
		<form>
			<label for="em">Email</label><input id="em" type="email">
			<button type="submit">Go</button>
		</form>`)

	res, _, err := o.Run(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
}
