package capture

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/formpilot/formpilot/internal/dom"
)

// MaxPageText caps the page text sent with a full-page provider request.
const MaxPageText = 20000

var textPolicy = bluemonday.StrictPolicy()

// PageText renders the document, strips every tag, collapses whitespace,
// and truncates to the provider contract's limit.
func PageText(d *dom.Document, limit int) string {
	if limit <= 0 || limit > MaxPageText {
		limit = MaxPageText
	}
	rendered, err := d.Render()
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(textPolicy.Sanitize(rendered)), " ")
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}
