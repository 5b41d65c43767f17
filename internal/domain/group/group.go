package group

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedUpdate indicates a pushed payload could not be decoded into a Group.
var ErrMalformedUpdate = errors.New("malformed update")

// Status is the outcome of one API invocation.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusUnknown Status = "UNKNOWN"
)

// ParseStatus maps a wire value to a Status. Absent or unrecognized values are UNKNOWN.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusSuccess:
		return StatusSuccess
	case StatusFailure:
		return StatusFailure
	default:
		return StatusUnknown
	}
}

// EventType classifies an Event. Unknown values are kept verbatim.
type EventType string

const (
	EventAPIRequest  EventType = "API_REQUEST"
	EventAPIResponse EventType = "API_RESPONSE"
	EventAPIError    EventType = "API_ERROR"
)

// Presentation returns the type used for display. Anything unrecognized shows as API_REQUEST.
func (t EventType) Presentation() EventType {
	switch t {
	case EventAPIResponse, EventAPIError:
		return t
	default:
		return EventAPIRequest
	}
}

// Event is one occurrence within a group's lifecycle.
type Event struct {
	EventType   EventType       `json:"eventType,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	Description string          `json:"description,omitempty"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

type wireEvent struct {
	EventType   json.RawMessage `json:"eventType"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	Description json.RawMessage `json:"description"`
	EventData   json.RawMessage `json:"eventData"`
}

// UnmarshalJSON never fails: a field of the wrong type, or an element that is
// not an object at all, degrades to the absent value.
func (e *Event) UnmarshalJSON(data []byte) error {
	*e = Event{}
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	e.EventType = EventType(decodeString(w.EventType))
	e.Description = decodeString(w.Description)
	e.CreatedAt = decodeTimestamp(w.CreatedAt)
	if !isNull(w.EventData) {
		e.EventData = w.EventData
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeString returns raw as text when it is a JSON string, else "".
func decodeString(raw json.RawMessage) string {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// decodeDuration accepts a number or numeric string of milliseconds, rounded
// to a whole millisecond. ok is false for anything else.
func decodeDuration(raw json.RawMessage) (ms int64, ok bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		text := decodeString(raw)
		if f, err = strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
		return 0, false
	}
	f = math.Round(f)
	if f < 0 {
		return 0, true
	}
	return int64(f), true
}

// decodeEvents returns the array elements as events; anything but an array is empty.
func decodeEvents(raw json.RawMessage) []Event {
	var items []json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &items) != nil {
		return []Event{}
	}
	events := make([]Event, len(items))
	for i, item := range items {
		_ = events[i].UnmarshalJSON(item)
	}
	return events
}

// decodeTimestamp accepts RFC 3339 strings and epoch seconds (with optional fraction).
func decodeTimestamp(raw json.RawMessage) *time.Time {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil
		}
		return &t
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return nil
	}
	whole, frac := math.Modf(secs)
	t := time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second)))).UTC()
	return &t
}

// When formats CreatedAt for display, or "N/A" when absent.
func (e Event) When() string {
	if e.CreatedAt == nil {
		return "N/A"
	}
	return e.CreatedAt.Local().Format(time.DateTime)
}

// DescriptionOrNA returns the description, or "N/A" when absent.
func (e Event) DescriptionOrNA() string {
	if e.Description == "" {
		return "N/A"
	}
	return e.Description
}

// DataText returns the payload as text: a JSON string is unwrapped, anything
// else is returned as the raw JSON it was received as.
func (e Event) DataText() string {
	raw := bytes.TrimSpace(e.EventData)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// PrettyData indents the payload when it is (or wraps) JSON, falling back to its plain text.
func (e Event) PrettyData() string {
	text := e.DataText()
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}

// Group is one logical API invocation's lifecycle.
type Group struct {
	Serial     string  `json:"serial"`
	MethodName string  `json:"methodName,omitempty"`
	Status     Status  `json:"status"`
	DurationMs int64   `json:"duration"`
	Events     []Event `json:"events"`

	// IsNew marks a group for one second after it was first inserted by a merge.
	IsNew bool `json:"-"`
}

// MethodNameOr returns the method name or the given fallback.
func (g Group) MethodNameOr(fallback string) string {
	if g.MethodName == "" {
		return fallback
	}
	return g.MethodName
}

// Clone returns a copy that shares no slices with g.
func (g Group) Clone() Group {
	out := g
	if g.Events != nil {
		out.Events = make([]Event, len(g.Events))
		copy(out.Events, g.Events)
	}
	return out
}

type wireGroup struct {
	Serial     json.RawMessage `json:"serial"`
	MethodName json.RawMessage `json:"methodName"`
	Status     json.RawMessage `json:"status"`
	Duration   json.RawMessage `json:"duration"`
	DurationMs json.RawMessage `json:"durationMs"`
	Events     json.RawMessage `json:"events"`
}

// UnmarshalJSON applies the documented defaults for absent, unrecognized or
// wrongly typed fields. Only a payload that is not an object, or whose serial
// is unusable, is an error.
func (g *Group) UnmarshalJSON(data []byte) error {
	var w wireGroup
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	serial, err := decodeSerial(w.Serial)
	if err != nil {
		return err
	}

	*g = Group{
		Serial:     serial,
		MethodName: decodeString(w.MethodName),
		Status:     ParseStatus(decodeString(w.Status)),
		Events:     decodeEvents(w.Events),
	}
	if ms, ok := decodeDuration(w.Duration); ok {
		g.DurationMs = ms
	} else if ms, ok := decodeDuration(w.DurationMs); ok {
		g.DurationMs = ms
	}
	return nil
}

// decodeSerial accepts a JSON string or number; serials are opaque.
func decodeSerial(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("serial must be a string or number")
	}
	return n.String(), nil
}

// Decode parses one pushed update payload.
func Decode(payload []byte) (Group, error) {
	var g Group
	if err := json.Unmarshal(payload, &g); err != nil {
		return Group{}, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	if g.Serial == "" {
		return Group{}, fmt.Errorf("%w: missing serial", ErrMalformedUpdate)
	}
	return g, nil
}
