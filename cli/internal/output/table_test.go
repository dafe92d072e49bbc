package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/ccwrapped/internal/aggregator"
	"github.com/zhaobenny/ccwrapped/internal/loader"
	"github.com/zhaobenny/ccwrapped/internal/model"
	"github.com/zhaobenny/ccwrapped/internal/source"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:          "0",
		7:          "7",
		999:        "999",
		1000:       "1,000",
		1234567:    "1,234,567",
		-9876543:   "-9,876,543",
		1000000000: "1,000,000,000",
	}
	for n, want := range tests {
		assert.Equal(t, want, FormatNumber(n))
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$3.00", FormatCost(decimal.NewFromInt(3)))
	assert.Equal(t, "$0.01", FormatCost(decimal.RequireFromString("0.005")))
	assert.Equal(t, "$0.00", FormatCost(decimal.Decimal{}))
}

func TestShortModelName(t *testing.T) {
	assert.Equal(t, "sonnet-4-5", ShortModelName("claude-sonnet-4-5-20250929"))
	assert.Equal(t, "opus-4", ShortModelName("claude-opus-4-20250514"))
	assert.Equal(t, "opus-4-5", ShortModelName("claude-opus-4-5"))
	assert.Equal(t, "opus-4.5", ShortModelName("anthropic/claude-opus-4.5"))
	assert.Equal(t, "gpt-4o", ShortModelName("gpt-4o"))
}

func sampleSnapshot() *aggregator.Snapshot {
	ts := time.Date(2025, 3, 4, 22, 0, 0, 0, time.UTC)
	msgs := []model.Message{
		{Timestamp: ts, Role: model.RoleUser, SessionID: "s1", Project: "cctop"},
		{
			Timestamp: ts.Add(time.Minute),
			Role:      model.RoleAssistant,
			SessionID: "s1",
			Project:   "cctop",
			Model:     "claude-sonnet-4-5-20250929",
			Usage:     model.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1234},
			Tools:     []string{"Bash", "mcp__github__create_issue"},
		},
	}
	return aggregator.Aggregate(msgs, aggregator.Options{Year: 2025, Now: ts.AddDate(0, 1, 0)})
}

func TestPrintSummary(t *testing.T) {
	t.Setenv("COLUMNS", "160")

	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, sampleSnapshot(), TableOptions{}))

	out := buf.String()
	assert.Contains(t, out, "Claude Code Wrapped: 2025")
	assert.Contains(t, out, "1,001,234")
	assert.Contains(t, out, "sonnet-4-5")
	assert.Contains(t, out, "cctop")
	assert.Contains(t, out, "github")
	assert.Contains(t, out, "$3.02")
	assert.Contains(t, out, "First message")
}

func TestTerminalWidth_Columns(t *testing.T) {
	t.Setenv("COLUMNS", "80")
	assert.Equal(t, 80, TerminalWidth())
	assert.True(t, shouldUseCompact(TableOptions{}))
}

func TestPrintSummary_Compact(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, sampleSnapshot(), TableOptions{ForceCompact: true}))
	assert.Contains(t, buf.String(), "Compact mode")
	assert.NotContains(t, buf.String(), "First message")
}

func TestPrintSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintSummary(&buf, aggregator.Aggregate(nil, aggregator.Options{}), TableOptions{}))
	assert.Contains(t, buf.String(), "No usage data found")
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	reports := []loader.SourceReport{
		{Root: "/home/me/.claude", Layout: source.LayoutStandard, Streams: 4, Messages: 1200},
		{Root: "/mnt/backup", Err: errors.New("gone")},
	}
	require.NoError(t, PrintSources(&buf, reports))

	out := buf.String()
	assert.Contains(t, out, "/home/me/.claude")
	assert.Contains(t, out, "standard")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "unreadable")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	reports := []loader.SourceReport{
		{Root: "/r", Layout: source.LayoutFlat, Messages: 2},
		{Root: "/gone", Error: "source root unreadable: /gone", Err: errors.New("source root unreadable: /gone")},
	}
	require.NoError(t, PrintJSON(&buf, sampleSnapshot(), reports))

	var decoded struct {
		Stats struct {
			TotalMessages int    `json:"total_messages"`
			EstimatedCost string `json:"estimated_cost"`
			PrimaryModel  string `json:"primary_model"`
		} `json:"stats"`
		Sources []struct {
			Root   string `json:"root"`
			Layout string `json:"layout"`
			Error  string `json:"error"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Stats.TotalMessages)
	assert.Equal(t, "claude-sonnet-4-5-20250929", decoded.Stats.PrimaryModel)
	assert.True(t, decimal.RequireFromString("3.01851").Equal(decimal.RequireFromString(decoded.Stats.EstimatedCost)))
	require.Len(t, decoded.Sources, 2)
	assert.Equal(t, "flat", decoded.Sources[0].Layout)
	assert.Empty(t, decoded.Sources[0].Error)
	assert.Equal(t, "source root unreadable: /gone", decoded.Sources[1].Error)
}
