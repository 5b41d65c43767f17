package services

import (
	"sort"
	"strings"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

const unknownMethod = "unknown"

// BuildGroup assembles the group for one serial from its records.
// Records are ordered chronologically; the input slice is not modified.
func BuildGroup(serial string, records []group.Record) (group.Group, bool) {
	if len(records) == 0 {
		return group.Group{}, false
	}

	sorted := make([]group.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	status := group.StatusSuccess
	events := make([]group.Event, 0, len(sorted))
	for _, rec := range sorted {
		if rec.EventType == group.EventAPIError {
			status = group.StatusFailure
		}
		events = append(events, rec.Event())
	}

	return group.Group{
		Serial:     serial,
		MethodName: ExtractMethodName(sorted[0].Description),
		DurationMs: groupDuration(sorted),
		Status:     status,
		Events:     events,
	}, true
}

// BuildRecentGroups groups records by serial and returns at most limit groups,
// the one whose first event is newest first.
func BuildRecentGroups(records []group.Record, limit int) []group.Group {
	bySerial := make(map[string][]group.Record)
	var order []string
	for _, rec := range records {
		if _, ok := bySerial[rec.Serial]; !ok {
			order = append(order, rec.Serial)
		}
		bySerial[rec.Serial] = append(bySerial[rec.Serial], rec)
	}

	groups := make([]group.Group, 0, len(order))
	for _, serial := range order {
		if g, ok := BuildGroup(serial, bySerial[serial]); ok {
			groups = append(groups, g)
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return firstEventTime(groups[i]).After(firstEventTime(groups[j]))
	})
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// ExtractMethodName returns the text after the last "." of description,
// e.g. "[id] API call to events.listGroups" gives "listGroups".
func ExtractMethodName(description string) string {
	trimmed := strings.TrimRight(description, ".")
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return unknownMethod
	}
	return trimmed[idx+1:]
}

func groupDuration(sorted []group.Record) int64 {
	if len(sorted) < 2 {
		return 0
	}
	first := sorted[0].CreatedAt
	last := sorted[len(sorted)-1].CreatedAt
	ms := last.Sub(first).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func firstEventTime(g group.Group) time.Time {
	if len(g.Events) == 0 || g.Events[0].CreatedAt == nil {
		return time.Time{}
	}
	return *g.Events[0].CreatedAt
}
