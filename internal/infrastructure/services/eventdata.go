package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/antchfx/xmlquery"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// ExtractField pulls one value out of an event payload. Paths starting with
// "$" are JSONPath over JSON payloads; anything else is XPath over XML
// payloads. The second result is false when the payload has no such value.
func ExtractField(ev group.Event, path string) (string, bool) {
	text := ev.DataText()
	if text == "" || path == "" {
		return "", false
	}
	if strings.HasPrefix(path, "$") {
		return extractJSONPath(text, path)
	}
	return extractXPath(text, path)
}

// ExtractFromGroup returns the value of path from the newest event that has one.
func ExtractFromGroup(g group.Group, path string) (string, bool) {
	for i := len(g.Events) - 1; i >= 0; i-- {
		if v, ok := ExtractField(g.Events[i], path); ok {
			return v, true
		}
	}
	return "", false
}

func extractJSONPath(body, expr string) (string, bool) {
	var data any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return "", false
	}

	result, err := jsonpath.Get(expr, data)
	if err != nil {
		return "", false
	}

	switch v := result.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), true
		}
		return string(b), true
	}
}

func extractXPath(body, expr string) (string, bool) {
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	node, err := xmlquery.Query(doc, expr)
	if err != nil || node == nil {
		return "", false
	}
	return node.InnerText(), true
}
