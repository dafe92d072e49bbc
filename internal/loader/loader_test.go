package loader

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/ccwrapped/internal/aggregator"
	"github.com/zhaobenny/ccwrapped/internal/source"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func assistantLine(id, cwd string, input int) string {
	return fmt.Sprintf(`{"type":"assistant","sessionId":"s-%s","timestamp":"2025-01-01T10:00:00Z","cwd":%q,"message":{"id":%q,"role":"assistant","model":"claude-sonnet-4-5","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":%d,"output_tokens":1}}}`+"\n", id, cwd, id, input)
}

func TestLoad_ThreeLayoutRoundTrip(t *testing.T) {
	base := t.TempDir()

	standard := filepath.Join(base, "claude")
	writeFile(t, filepath.Join(standard, "projects", "-home-me-code-alpha", "a.jsonl"),
		assistantLine("msg_a", "/home/me/code/alpha/src", 1))

	folder := filepath.Join(base, "backup")
	writeFile(t, filepath.Join(folder, "beta", "b.jsonl"),
		assistantLine("msg_b", "/elsewhere/ignored", 1))

	flat := filepath.Join(base, "gamma")
	writeFile(t, filepath.Join(flat, "c.jsonl"),
		assistantLine("msg_c", "/elsewhere/ignored", 1))

	result, err := Load([]string{standard, folder, flat}, Options{Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)

	got := map[string][2]string{}
	for _, m := range result.Messages {
		got[m.ID] = [2]string{m.Project, m.Source}
	}
	assert.Equal(t, map[string][2]string{
		"msg_a": {"alpha", standard},
		"msg_b": {"beta", folder},
		"msg_c": {"gamma", flat},
	}, got)

	require.Len(t, result.Sources, 3)
	assert.Equal(t, source.LayoutStandard, result.Sources[0].Layout)
	assert.Equal(t, source.LayoutProjectsFolder, result.Sources[1].Layout)
	assert.Equal(t, source.LayoutFlat, result.Sources[2].Layout)
	for _, r := range result.Sources {
		assert.Equal(t, 1, r.Messages, r.Root)
		assert.NoError(t, r.Err)
	}
}

func TestLoad_LaterRootWins(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "a")
	b := filepath.Join(base, "b")
	writeFile(t, filepath.Join(a, "s.jsonl"), assistantLine("msg_1", "/p", 10))
	writeFile(t, filepath.Join(b, "s.jsonl"), assistantLine("msg_1", "/p", 50))

	result, err := Load([]string{a, b}, Options{})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, int64(50), result.Messages[0].Usage.InputTokens)
	assert.Equal(t, b, result.Messages[0].Source)
}

func TestLoad_RepeatedRootKeepsLastPosition(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "a")
	b := filepath.Join(base, "b")
	writeFile(t, filepath.Join(a, "s.jsonl"), assistantLine("msg_1", "/p", 10))
	writeFile(t, filepath.Join(b, "s.jsonl"), assistantLine("msg_1", "/p", 50))

	result, err := Load([]string{a, b, a}, Options{})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, int64(10), result.Messages[0].Usage.InputTokens)
	assert.Equal(t, a, result.Messages[0].Source)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, b, result.Sources[0].Root)
}

func TestRoots(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Roots([]string{"a", "", "b", "a", "c"}))
	assert.Empty(t, Roots(nil))
}

func TestLoad_SymlinkedProjectFolder(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "real", "s.jsonl"), assistantLine("msg_1", "/p", 1))
	root := filepath.Join(base, "backup")
	require.NoError(t, os.MkdirAll(root, 0o755))
	if err := os.Symlink(filepath.Join(base, "real"), filepath.Join(root, "proj")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	result, err := Load([]string{root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, source.LayoutProjectsFolder, result.Sources[0].Layout)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "proj", result.Messages[0].Project)
}

func TestLoad_MessagelessRecordsAreDropped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "s.jsonl"),
		`{"type":"user","sessionId":"s1","timestamp":"2025-01-01T10:00:00Z"}`+"\n")

	result, err := Load([]string{root}, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
	assert.Equal(t, 0, result.Sources[0].Records)
	assert.Equal(t, 1, result.Sources[0].Dropped)
}

func TestLoad_StreamedGrowthWithinFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "s.jsonl"),
		assistantLine("msg_1", "/p", 1)+assistantLine("msg_1", "/p", 7)+assistantLine("msg_1", "/p", 30))

	result, err := Load([]string{root}, Options{})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, int64(30), result.Messages[0].Usage.InputTokens)
	assert.Equal(t, 3, result.Sources[0].Records)
}

func TestLoad_UnreadableRootsAreSkipped(t *testing.T) {
	base := t.TempDir()
	good := filepath.Join(base, "good")
	writeFile(t, filepath.Join(good, "s.jsonl"), assistantLine("msg_1", "/p", 1)+"not json\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	result, err := Load([]string{filepath.Join(base, "missing"), good}, Options{Logger: logger})
	require.NoError(t, err)
	require.Len(t, result.Sources, 2)
	assert.ErrorIs(t, result.Sources[0].Err, source.ErrUnreadable)
	assert.Equal(t, result.Sources[0].Err.Error(), result.Sources[0].Error)
	assert.Empty(t, result.Sources[1].Error)
	assert.Equal(t, 1, result.Sources[1].Malformed)
	assert.Len(t, result.Messages, 1)
	assert.Contains(t, logs.String(), "skipping source")
}

func TestLoad_NoReadableRoots(t *testing.T) {
	base := t.TempDir()

	_, err := Load([]string{filepath.Join(base, "x"), filepath.Join(base, "y")}, Options{})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Load(nil, Options{})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestLoad_EmptyRootIsNotAnError(t *testing.T) {
	result, err := Load([]string{t.TempDir()}, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
	assert.Equal(t, source.LayoutNone, result.Sources[0].Layout)
}

func TestLoad_ConvertsToLocation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "s.jsonl"), assistantLine("msg_1", "/p", 1))

	tokyo := time.FixedZone("JST", 9*3600)
	result, err := Load([]string{root}, Options{Location: tokyo})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, 19, result.Messages[0].Timestamp.Hour())
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "s.jsonl"),
		assistantLine("msg_1", "/p", 1_000_000)+assistantLine("msg_2", "/p", 1))

	snap, result, err := Run([]string{root}, Options{Location: time.UTC},
		aggregator.Options{Year: 2025, Now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Len(t, result.Messages, 2)
	assert.Equal(t, 2, snap.TotalMessages)
	assert.Equal(t, 1, snap.ActiveDays)
	// (1_000_000*3 + 1*15) + (1*3 + 1*15), per million
	assert.True(t, decimal.RequireFromString("3.000033").Equal(snap.EstimatedCost), snap.EstimatedCost.String())

	_, _, err = Run([]string{filepath.Join(root, "missing")}, Options{}, aggregator.Options{})
	assert.ErrorIs(t, err, ErrNoData)
}
