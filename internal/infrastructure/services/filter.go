package services

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// GroupFilter selects groups with a boolean Expr expression such as
// `status == "FAILURE" && duration > 100`.
type GroupFilter struct {
	source  string
	program *vm.Program
}

// filterEnv defines the environment available to filter expressions.
type filterEnv struct {
	Serial     string   `expr:"serial"`
	Method     string   `expr:"method"`
	Status     string   `expr:"status"`
	Duration   int64    `expr:"duration"`
	EventCount int      `expr:"eventCount"`
	EventTypes []string `expr:"eventTypes"`
	IsNew      bool     `expr:"isNew"`

	Data func(string) string `expr:"data"`
}

// CompileFilter compiles source. An empty source matches every group.
func CompileFilter(source string) (*GroupFilter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return &GroupFilter{}, nil
	}
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", source, err)
	}
	return &GroupFilter{source: source, program: program}, nil
}

// String returns the expression the filter was compiled from.
func (f *GroupFilter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match reports whether g passes the filter. Evaluation errors count as no match.
func (f *GroupFilter) Match(g group.Group) bool {
	if f == nil || f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, buildFilterEnv(g))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Apply returns the groups that pass the filter, keeping their order.
func (f *GroupFilter) Apply(groups []group.Group) []group.Group {
	if f == nil || f.program == nil {
		return groups
	}
	out := make([]group.Group, 0, len(groups))
	for _, g := range groups {
		if f.Match(g) {
			out = append(out, g)
		}
	}
	return out
}

func buildFilterEnv(g group.Group) filterEnv {
	types := make([]string, 0, len(g.Events))
	for _, ev := range g.Events {
		types = append(types, string(ev.EventType))
	}
	return filterEnv{
		Serial:     g.Serial,
		Method:     g.MethodName,
		Status:     string(g.Status),
		Duration:   g.DurationMs,
		EventCount: len(g.Events),
		EventTypes: types,
		IsNew:      g.IsNew,
		Data: func(path string) string {
			v, _ := ExtractFromGroup(g, path)
			return v
		},
	}
}
