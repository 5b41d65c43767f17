package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/flosch/pongo2/v6"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
)

// DefaultTemplate lays out one frame: optional banner, a status line, then one
// row per group with its events indented below when Verbose is set.
const DefaultTemplate = `{% autoescape off %}{% if banner %}{{ banner }}
{% endif %}[{{ state }}] {{ shown }}/{{ total }} groups{% if filter %} matching {{ filter }}{% endif %}
{% for g in groups %}{{ g.marker }} {{ g.status }} {{ g.method }} {{ g.serial }} {{ g.duration }}ms{% for f in g.fields %} {{ f.path }}={{ f.value }}{% endfor %}
{% if verbose %}{% for e in g.events %}      {{ e.type }} {{ e.when }} {{ e.description }}
{% if e.data %}{{ e.data }}
{% endif %}{% endfor %}{% endif %}{% endfor %}{% endautoescape %}`

const dataIndent = "        "

// Options configures a Console.
type Options struct {
	Filter   *services.GroupFilter
	Fields   []string
	Template string
	Color    bool
	Verbose  bool
}

// Console renders the collection to a writer every time it changes.
type Console struct {
	w      io.Writer
	tpl    *pongo2.Template
	opts   Options
	styles styles

	mu     sync.Mutex
	banner string
	state  services.ConnState
}

// NewConsole compiles the layout template. An empty Options.Template uses DefaultTemplate.
func NewConsole(w io.Writer, opts Options) (*Console, error) {
	source := opts.Template
	if source == "" {
		source = DefaultTemplate
	}
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile console template: %w", err)
	}
	return &Console{
		w:      w,
		tpl:    tpl,
		opts:   opts,
		styles: newStyles(lipgloss.NewRenderer(w), opts.Color),
	}, nil
}

// SetBanner sets the text shown above every frame.
func (c *Console) SetBanner(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner = text
}

// SetState records the channel state shown in the status line.
func (c *Console) SetState(s services.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// Render writes one frame for groups. It has the feed.Handler signature.
func (c *Console) Render(groups []group.Group) {
	out, err := c.Frame(groups)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		fmt.Fprintf(c.w, "render error: %v\n", err)
		return
	}
	_, _ = io.WriteString(c.w, out)
}

// Frame returns the text Render would write.
func (c *Console) Frame(groups []group.Group) (string, error) {
	shown := c.opts.Filter.Apply(groups)

	rows := make([]pongo2.Context, 0, len(shown))
	for _, g := range shown {
		rows = append(rows, c.row(g))
	}

	c.mu.Lock()
	banner := c.banner
	state := c.state
	c.mu.Unlock()

	if banner != "" {
		banner = c.styles.banner.Render(banner)
	}
	ctx := pongo2.Context{
		"banner":  banner,
		"state":   c.styles.connState(state),
		"filter":  c.opts.Filter.String(),
		"total":   len(groups),
		"shown":   len(shown),
		"groups":  rows,
		"verbose": c.opts.Verbose,
	}

	out, err := c.tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("console template render failed: %w", err)
	}
	return out, nil
}

// eventData indents the pretty-printed payload under its event line.
func (c *Console) eventData(ev group.Event) string {
	data := ev.PrettyData()
	if data == "" {
		return ""
	}
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		lines[i] = dataIndent + c.styles.muted.Render(line)
	}
	return strings.Join(lines, "\n")
}

func (c *Console) row(g group.Group) pongo2.Context {
	fields := make([]pongo2.Context, 0, len(c.opts.Fields))
	for _, path := range c.opts.Fields {
		value, ok := services.ExtractFromGroup(g, path)
		if !ok {
			value = "-"
		}
		fields = append(fields, pongo2.Context{"path": path, "value": value})
	}

	events := make([]pongo2.Context, 0, len(g.Events))
	for _, ev := range g.Events {
		events = append(events, pongo2.Context{
			"type":        string(ev.EventType.Presentation()),
			"when":        ev.When(),
			"description": ev.DescriptionOrNA(),
			"data":        c.eventData(ev),
		})
	}

	return pongo2.Context{
		"serial":   g.Serial,
		"method":   c.styles.method.Render(g.MethodNameOr("N/A")),
		"status":   c.styles.status(g.Status),
		"duration": g.DurationMs,
		"marker":   c.styles.newMarker(g.IsNew),
		"isNew":    g.IsNew,
		"fields":   fields,
		"events":   events,
	}
}
