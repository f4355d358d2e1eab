package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"mcpdiscover/internal/orchestrator"
	"mcpdiscover/internal/probe"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a format flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// Options configures the renderer behavior.
type Options struct {
	Format OutputFormat
	// Quiet suppresses the summary line above the table.
	Quiet bool
	// Color enables ANSI styling in table output.
	Color bool
}

// Renderer writes discovery results to a terminal or pipe.
type Renderer struct {
	out     io.Writer
	options Options
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(out io.Writer, options Options) *Renderer {
	if options.Format == "" {
		options.Format = FormatTable
	}
	return &Renderer{out: out, options: options}
}

// RenderResult writes one discovery result in the configured format.
func (r *Renderer) RenderResult(result *probe.DiscoveryResult) error {
	switch r.options.Format {
	case FormatJSON:
		return r.renderJSON(result)
	case FormatYAML:
		return r.renderYAML(result)
	default:
		return r.renderTable(result)
	}
}

// RenderBatch writes a batch of named results. Failed items appear with an
// empty tool count rather than being silently dropped.
func (r *Renderer) RenderBatch(results []orchestrator.BatchResult) error {
	switch r.options.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, string(data))
		return nil
	case FormatYAML:
		return yaml.NewEncoder(r.out).Encode(results)
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"NAME", "STATUS", "TOOLS", "METHOD"})
	for _, item := range results {
		if item.Result == nil {
			t.AppendRow(table.Row{item.Name, r.colored(text.FgRed, "failed"), "-", "-"})
			continue
		}
		t.AppendRow(table.Row{item.Name, r.colored(text.FgGreen, "ok"), len(item.Result.Tools), string(item.Result.Method)})
	}
	t.Render()
	return nil
}

func (r *Renderer) renderJSON(result *probe.DiscoveryResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

func (r *Renderer) renderYAML(result *probe.DiscoveryResult) error {
	encoder := yaml.NewEncoder(r.out)
	defer encoder.Close()
	return encoder.Encode(result)
}

func (r *Renderer) renderTable(result *probe.DiscoveryResult) error {
	if !r.options.Quiet {
		server := "unknown server"
		if result.ServerInfo != nil {
			server = result.ServerInfo.Name
			if result.ServerInfo.Version != "" {
				server += " " + result.ServerInfo.Version
			}
		}
		fmt.Fprintf(r.out, "Discovered %d tools from %s via %s\n\n", len(result.Tools), server, result.Method)
	}

	if len(result.Tools) == 0 {
		fmt.Fprintln(r.out, "No tools found")
		return nil
	}

	t := r.newTable()
	t.AppendHeader(table.Row{"NAME", "DESCRIPTION", "INPUTS"})
	for _, tool := range result.Tools {
		t.AppendRow(table.Row{
			r.colored(text.FgHiCyan, tool.Name),
			truncate(tool.Description, 60),
			inputsSummary(tool.InputSchema),
		})
	}
	t.Render()
	return nil
}

func (r *Renderer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func (r *Renderer) colored(color text.Color, s interface{}) interface{} {
	if !r.options.Color {
		return s
	}
	return color.Sprint(s)
}

// inputsSummary flattens a JSON-schema inputSchema into "name*, other"
// where * marks required arguments.
func inputsSummary(schema map[string]interface{}) string {
	properties, ok := schema["properties"].(map[string]interface{})
	if !ok || len(properties) == 0 {
		return "-"
	}

	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, entry := range list {
			if name, ok := entry.(string); ok {
				required[name] = true
			}
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		if required[name] {
			name += "*"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

// truncate shortens s to max runes. Byte slicing would cut multi-byte runes
// in half.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
