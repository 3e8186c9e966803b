package fill

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
	"github.com/formpilot/formpilot/internal/index"
	"github.com/formpilot/formpilot/internal/match"
	"github.com/formpilot/formpilot/internal/schema"
)

const surveyHTML = `
<form>
	<label for="em">Email</label>
	<input id="em" name="email" type="email">
	<label for="bio">Bio</label>
	<textarea id="bio" name="bio"></textarea>

	<fieldset>
		<legend>Favorite color</legend>
		<label><input type="radio" name="color" value="red" checked> Red</label>
		<label><input type="radio" name="color" value="green"> Green</label>
		<label><input type="radio" name="color" value="blue"> Blue</label>
	</fieldset>

	<fieldset>
		<legend>Toppings</legend>
		<label><input type="checkbox" name="toppings" value="olives"> Olives</label>
		<label><input type="checkbox" name="toppings" value="onions"> Onions</label>
		<label><input type="checkbox" name="toppings" value="peppers"> Peppers</label>
	</fieldset>

	<button type="submit">Send</button>
</form>`

func setup(t *testing.T, src string) (*dom.Document, *index.Index) {
	t.Helper()
	d, err := dom.ParseString(src)
	require.NoError(t, err)
	schema.Collect(d)
	return d, index.Build(d)
}

func parsePayload(t *testing.T, raw string) *match.Payload {
	t.Helper()
	p, err := match.Parse(json.RawMessage(raw))
	require.NoError(t, err)
	return p
}

func radioByValue(t *testing.T, d *dom.Document, value string) *html.Node {
	t.Helper()
	n := d.Find(d.Root(), func(c *html.Node) bool {
		return dom.InputType(c) == "radio" && dom.Attr(c, "value") == value
	})
	require.NotNil(t, n)
	return n
}

func TestApplyFields(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{}, nil)

	res := f.Apply(parsePayload(t, `{"fields": {"Email": "a@b.c", "Bio": "hello there"}}`))
	assert.Equal(t, 2, res.Filled)
	assert.False(t, res.Submitted)

	em := d.ByID("em")
	assert.Equal(t, "a@b.c", dom.Attr(em, "value"))

	bio := d.ByID("bio")
	assert.Equal(t, "hello there", dom.Text(bio))

	// A text fill notifies exactly once each way.
	evs := d.EventsFor(em)
	require.Len(t, evs, 2)
	assert.Equal(t, dom.EventInput, evs[0].Type)
	assert.Equal(t, dom.EventChange, evs[1].Type)
}

func TestApplyRadioExclusivity(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{}, nil)

	res := f.Apply(parsePayload(t, `{"choices": {"color": "Green"}}`))
	assert.Equal(t, 1, res.Filled)

	assert.True(t, dom.HasAttr(radioByValue(t, d, "green"), "checked"))
	assert.False(t, dom.HasAttr(radioByValue(t, d, "red"), "checked"),
		"previously checked sibling must be cleared")
	assert.False(t, dom.HasAttr(radioByValue(t, d, "blue"), "checked"))
}

func TestApplyCheckboxMultiple(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{}, nil)

	res := f.Apply(parsePayload(t, `{"choices": {"toppings": ["Olives", "Peppers"]}}`))
	assert.Equal(t, 2, res.Filled)

	checked := d.FindAll(d.Root(), func(c *html.Node) bool {
		return dom.InputType(c) == "checkbox" && dom.HasAttr(c, "checked")
	})
	require.Len(t, checked, 2)
	assert.Equal(t, "olives", dom.Attr(checked[0], "value"))
	assert.Equal(t, "peppers", dom.Attr(checked[1], "value"))
}

func TestApplyFlatPayload(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{}, nil)

	// Flat keys route to a group when one matches, otherwise to a field.
	res := f.Apply(parsePayload(t, `{"email": "x@y.z", "color": "Blue"}`))
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, "x@y.z", dom.Attr(d.ByID("em"), "value"))
	assert.True(t, dom.HasAttr(radioByValue(t, d, "blue"), "checked"))
}

func TestApplyListPayload(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{}, nil)

	res := f.Apply(parsePayload(t, `[
		{"label": "Email", "answer": "list@fill.io"},
		{"name": "color", "answer": "Green"}
	]`))
	assert.Equal(t, 2, res.Filled)
	assert.Equal(t, "list@fill.io", dom.Attr(d.ByID("em"), "value"))
	assert.True(t, dom.HasAttr(radioByValue(t, d, "green"), "checked"))
}

func TestApplyUnknownKeysFillNothing(t *testing.T) {
	_, ix := setup(t, surveyHTML)
	f := New(ix, Config{AutoSubmit: true}, nil)

	res := f.Apply(parsePayload(t, `{"fields": {"No Such Field": "x"}, "choices": {"no group": "y"}}`))
	assert.Equal(t, 0, res.Filled)
	assert.False(t, res.Submitted, "nothing filled means nothing submitted")
}

func TestApplySilentSuppressesChange(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{Silent: true}, nil)

	f.Apply(parsePayload(t, `{"fields": {"Email": "a@b.c"}}`))

	evs := d.EventsFor(d.ByID("em"))
	require.Len(t, evs, 1)
	assert.Equal(t, dom.EventInput, evs[0].Type)
}

func TestAutoSubmit(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{AutoSubmit: true}, nil)

	res := f.Apply(parsePayload(t, `{"fields": {"Email": "a@b.c", "Bio": "hi"}}`))
	assert.Equal(t, 2, res.Filled)
	assert.True(t, res.Submitted)

	form := d.Find(d.Root(), func(c *html.Node) bool { return dom.Tag(c) == "form" })
	submits := 0
	for _, e := range d.EventsFor(form) {
		if e.Type == dom.EventSubmit {
			submits++
		}
	}
	assert.Equal(t, 1, submits, "a touched form submits exactly once")
}

func TestAutoSubmitWithoutSubmitControl(t *testing.T) {
	_, ix := setup(t, `<form><label for="a">Alpha</label><input id="a" type="text"></form>`)
	f := New(ix, Config{AutoSubmit: true}, nil)

	res := f.Apply(parsePayload(t, `{"fields": {"Alpha": "v"}}`))
	assert.Equal(t, 1, res.Filled)
	assert.False(t, res.Submitted)
}

func TestApplyFieldDirect(t *testing.T) {
	d, ix := setup(t, surveyHTML)
	f := New(ix, Config{Silent: true}, nil)

	res := f.ApplyField(d.ByID("em"), "focused@fill.io")
	assert.Equal(t, 1, res.Filled)
	assert.Equal(t, "focused@fill.io", dom.Attr(d.ByID("em"), "value"))
}

func TestApplyRecordsPlan(t *testing.T) {
	_, ix := setup(t, surveyHTML)
	f := New(ix, Config{AutoSubmit: true}, nil)

	f.Apply(parsePayload(t, `{"fields": {"Email": "a@b.c"}, "choices": {"color": "Blue"}}`))

	plan := f.Mutator().Plan()
	require.Len(t, plan, 3)

	kinds := map[MutationKind]int{}
	for _, m := range plan {
		kinds[m.Kind]++
		assert.NotEmpty(t, m.Selector)
	}
	assert.Equal(t, 1, kinds[MutationSetValue])
	assert.Equal(t, 1, kinds[MutationSetChecked])
	assert.Equal(t, 1, kinds[MutationSubmit])
}
