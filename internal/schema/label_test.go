package schema

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/formpilot/formpilot/internal/dom"
)

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return d
}

// findControl locates the single input/textarea a label fixture is built
// around.
func findControl(t *testing.T, d *dom.Document) *html.Node {
	t.Helper()
	n := d.Find(d.Root(), func(c *html.Node) bool {
		return dom.Tag(c) == "input" || dom.Tag(c) == "textarea"
	})
	if n == nil {
		t.Fatal("fixture has no control")
	}
	return n
}

func TestResolveLabel(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "explicit for association",
			src:  `<label for="n">Full Name</label><input id="n" placeholder="ignored">`,
			want: "Full Name",
		},
		{
			name: "wrapping label",
			src:  `<label>Email Address <input id="n"></label>`,
			want: "Email Address",
		},
		{
			name: "aria-label",
			src:  `<input id="n" aria-label="Phone Number">`,
			want: "Phone Number",
		},
		{
			name: "aria-labelledby single",
			src:  `<span id="cap">Date of Birth</span><input id="n" aria-labelledby="cap">`,
			want: "Date of Birth",
		},
		{
			name: "aria-labelledby multiple",
			src:  `<span id="a">Billing</span><span id="b">Address</span><input id="n" aria-labelledby="a b">`,
			want: "Billing Address",
		},
		{
			name: "placeholder",
			src:  `<input id="n" placeholder="Search here">`,
			want: "Search here",
		},
		{
			name: "preceding sibling",
			src:  `<div><span>Country</span><input id="n"></div>`,
			want: "Country",
		},
		{
			name: "styled child of wrapping label",
			src:  `<label><input id="n" type="checkbox"><span>Accept terms</span></label>`,
			want: "Accept terms",
		},
		{
			name: "nearby heading",
			src:  `<div><h3>Shipping Address</h3><span><input id="n"></span></div>`,
			want: "Shipping Address",
		},
		{
			name: "name fallback",
			src:  `<input name="zipcode">`,
			want: "zipcode",
		},
		{
			name: "id fallback",
			src:  `<input id="city">`,
			want: "city",
		},
		{
			name: "tag fallback",
			src:  `<textarea></textarea>`,
			want: "textarea",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustParse(t, tt.src)
			n := findControl(t, d)
			if got := ResolveLabel(d, n); got != tt.want {
				t.Errorf("ResolveLabel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveLabelPrefersExplicitAssociation(t *testing.T) {
	// A for= label beats every later tier even when they would all match.
	d := mustParse(t, `
		<label for="n">Primary</label>
		<div>
			<span>Sibling</span>
			<input id="n" aria-label="Aria" placeholder="Placeholder">
		</div>`)
	n := findControl(t, d)
	if got := ResolveLabel(d, n); got != "Primary" {
		t.Errorf("ResolveLabel = %q, want %q", got, "Primary")
	}
}
