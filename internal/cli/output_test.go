package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"mcpdiscover/internal/orchestrator"
	"mcpdiscover/internal/probe"
	"mcpdiscover/internal/protocol"
)

func sampleResult() *probe.DiscoveryResult {
	return &probe.DiscoveryResult{
		Tools: []protocol.Tool{
			{
				Name:        "echo",
				Description: "Echo a message",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"message": map[string]interface{}{"type": "string"},
						"upper":   map[string]interface{}{"type": "boolean"},
					},
					"required": []interface{}{"message"},
				},
			},
			{Name: "noop"},
		},
		Method:     probe.MethodStdioDirect,
		ServerInfo: &protocol.ServerInfo{Name: "fake-server", Version: "0.1.0"},
		Timestamp:  time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseOutputFormat(t *testing.T) {
	for input, want := range map[string]OutputFormat{
		"":      FormatTable,
		"table": FormatTable,
		"JSON":  FormatJSON,
		"yaml":  FormatYAML,
	} {
		got, err := ParseOutputFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatTable})

	require.NoError(t, renderer.RenderResult(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "Discovered 2 tools from fake-server 0.1.0 via stdio-direct")
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "Echo a message")
	// Required arguments are starred, optionals are not, sorted by name.
	assert.Contains(t, out, "message*, upper")
	assert.Contains(t, out, "noop")
}

func TestRenderTableQuiet(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatTable, Quiet: true})

	require.NoError(t, renderer.RenderResult(sampleResult()))
	assert.NotContains(t, buf.String(), "Discovered")
	assert.Contains(t, buf.String(), "echo")
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatTable, Quiet: true})

	require.NoError(t, renderer.RenderResult(&probe.DiscoveryResult{Method: probe.MethodStdioDirect}))
	assert.Contains(t, buf.String(), "No tools found")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatJSON})

	require.NoError(t, renderer.RenderResult(sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "stdio-direct", decoded["discoveryMethod"])
	tools, ok := decoded["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tools, 2)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatYAML})

	require.NoError(t, renderer.RenderResult(sampleResult()))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.NotEmpty(t, decoded)
}

func TestRenderBatch(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatTable})

	err := renderer.RenderBatch([]orchestrator.BatchResult{
		{Name: "good", Result: sampleResult()},
		{Name: "bad", Result: nil},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "good")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "bad")
	assert.Contains(t, out, "failed")
}

func TestRenderBatchJSON(t *testing.T) {
	var buf bytes.Buffer
	renderer := NewRenderer(&buf, Options{Format: FormatJSON})

	err := renderer.RenderBatch([]orchestrator.BatchResult{
		{Name: "good", Result: sampleResult()},
		{Name: "bad", Result: nil},
	})
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "good", decoded[0]["name"])
	assert.Nil(t, decoded[1]["result"])
}

func TestInputsSummary(t *testing.T) {
	assert.Equal(t, "-", inputsSummary(nil))
	assert.Equal(t, "-", inputsSummary(map[string]interface{}{"type": "object"}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 60))
	long := strings.Repeat("x", 80)
	assert.Len(t, truncate(long, 60), 60)
	assert.True(t, strings.HasSuffix(truncate(long, 60), "..."))

	// Truncation must not split a multi-byte rune.
	wide := strings.Repeat("é", 80)
	got := truncate(wide, 60)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 60, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}
