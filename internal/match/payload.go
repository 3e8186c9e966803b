// Package match resolves externally supplied answer values to specific
// controls: an explicit tagged union over the accepted payload shapes, an
// identity-first resolution order for scalar field answers, and a tiered
// fuzzy-scoring fallback for choice options.
package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PayloadKind discriminates the three accepted answer payload shapes.
type PayloadKind string

const (
	// KindList is an ordered list of keyed items:
	// [{id|fieldId|selector|label|name|htmlId, answer|value|text}, ...]
	KindList PayloadKind = "list"
	// KindStructured is a {fields, choices} object.
	KindStructured PayloadKind = "structured"
	// KindFlat is the legacy flat key->value map.
	KindFlat PayloadKind = "flat"
)

// Item is one entry of a list-shaped payload. Exactly the keys present in
// the raw object are populated; Resolve tries them in identity order.
type Item struct {
	ID       string
	FieldID  string
	Selector string
	Label    string
	Name     string
	HTMLID   string
	Answer   string
	Values   []string // populated when the answer was a list
}

// Key returns the first identity key present on the item.
func (it Item) Key() string {
	for _, k := range []string{it.ID, it.FieldID, it.Selector, it.Label, it.Name, it.HTMLID} {
		if k != "" {
			return k
		}
	}
	return ""
}

// Payload is the parsed tagged union of an answer payload.
type Payload struct {
	Kind    PayloadKind
	Items   []Item            // KindList
	Fields  map[string]string // KindStructured
	Choices map[string]Choice // KindStructured
	Flat    map[string]Choice // KindFlat
}

// Choice is a choice-group answer: a single value for radio groups or a
// value list for checkbox groups.
type Choice struct {
	Value  string
	Values []string
	Multi  bool
}

// ErrEmptyPayload is returned when the raw payload decodes to nothing
// actionable.
var ErrEmptyPayload = errors.New("empty answer payload")

// Parse decodes a raw answer payload into its tagged form. The shape is
// decided by an explicit discriminant check, not by probing: a JSON array
// is a list, an object carrying "fields" or "choices" is structured, and
// any other object is the legacy flat map.
func Parse(raw json.RawMessage) (*Payload, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrEmptyPayload
	}

	if strings.HasPrefix(trimmed, "[") {
		return parseList(raw)
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("answer payload must be a JSON array or object, got %q", firstByte(trimmed))
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decoding answer payload: %w", err)
	}
	_, hasFields := probe["fields"]
	_, hasChoices := probe["choices"]
	if hasFields || hasChoices {
		return parseStructured(probe)
	}
	return parseFlat(probe)
}

func firstByte(s string) string {
	if s == "" {
		return ""
	}
	return s[:1]
}

func parseList(raw json.RawMessage) (*Payload, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding answer list: %w", err)
	}
	p := &Payload{Kind: KindList}
	for _, e := range entries {
		it := Item{
			ID:       rawString(e["id"]),
			FieldID:  rawString(e["fieldId"]),
			Selector: rawString(e["selector"]),
			Label:    rawString(e["label"]),
			Name:     rawString(e["name"]),
			HTMLID:   rawString(e["htmlId"]),
		}
		for _, k := range []string{"answer", "value", "text"} {
			if v, ok := e[k]; ok {
				it.Answer, it.Values = rawValue(v)
				break
			}
		}
		if it.Key() == "" {
			continue // unaddressable item, nothing to resolve against
		}
		p.Items = append(p.Items, it)
	}
	if len(p.Items) == 0 {
		return nil, ErrEmptyPayload
	}
	return p, nil
}

func parseStructured(probe map[string]json.RawMessage) (*Payload, error) {
	p := &Payload{
		Kind:    KindStructured,
		Fields:  make(map[string]string),
		Choices: make(map[string]Choice),
	}
	if raw, ok := probe["fields"]; ok {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("decoding fields: %w", err)
		}
		for k, v := range fields {
			s, _ := rawValue(v)
			p.Fields[k] = s
		}
	}
	if raw, ok := probe["choices"]; ok {
		var choices map[string]json.RawMessage
		if err := json.Unmarshal(raw, &choices); err != nil {
			return nil, fmt.Errorf("decoding choices: %w", err)
		}
		for k, v := range choices {
			p.Choices[k] = rawChoice(v)
		}
	}
	if len(p.Fields) == 0 && len(p.Choices) == 0 {
		return nil, ErrEmptyPayload
	}
	return p, nil
}

func parseFlat(probe map[string]json.RawMessage) (*Payload, error) {
	p := &Payload{Kind: KindFlat, Flat: make(map[string]Choice)}
	for k, v := range probe {
		p.Flat[k] = rawChoice(v)
	}
	if len(p.Flat) == 0 {
		return nil, ErrEmptyPayload
	}
	return p, nil
}

// rawString decodes a JSON scalar into a string, accepting strings,
// numbers, and booleans. Anything else yields "".
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// rawValue decodes a scalar or a list of scalars.
func rawValue(raw json.RawMessage) (string, []string) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		var vals []string
		for _, e := range list {
			if s := rawString(e); s != "" {
				vals = append(vals, s)
			}
		}
		if len(vals) > 0 {
			return vals[0], vals
		}
		return "", nil
	}
	return rawString(raw), nil
}

func rawChoice(raw json.RawMessage) Choice {
	s, vals := rawValue(raw)
	if vals != nil && strings.TrimSpace(string(raw))[0] == '[' {
		return Choice{Value: s, Values: vals, Multi: true}
	}
	return Choice{Value: s, Values: nil, Multi: false}
}
