package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), fileName)
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - /data/claude
  - /backups/laptop
timezone: America/New_York
include_history: true
top: 5
pricing:
  - model: claude-sonnet-4-5
    input: 2.5
    output: 12
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/claude", "/backups/laptop"}, cfg.Sources)
	assert.True(t, cfg.IncludeHistory)
	assert.Equal(t, 5, cfg.Top)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	tiers := cfg.Prices()
	require.Contains(t, tiers, "claude-sonnet-4-5")
	assert.Equal(t, "2.5", tiers["claude-sonnet-4-5"].Input.String())
	assert.Equal(t, "3.125", tiers["claude-sonnet-4-5"].CacheWrite.String())
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultTop, cfg.Top)
	assert.Empty(t, cfg.Sources)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "sources: [",
		"negative top":   "top: -1",
		"bad timezone":   "timezone: Mars/Olympus",
		"unnamed price":  "pricing: [{input: 1, output: 2}]",
		"negative price": "pricing: [{model: x, input: -1, output: 2}]",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), fileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), fileName)
	cfg := &Config{Sources: []string{"/a"}, Timezone: "UTC", Top: 3}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestRoots(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := &Config{Sources: []string{"/a", "~/b", "/a", " "}}
	env := strings.Join([]string{"/c", "", "/d"}, string(os.PathListSeparator))

	assert.Equal(t, []string{filepath.Join(home, "b"), "/a", "/c", "/d"}, cfg.Roots(env), "a repeated root keeps its last position")
	assert.Equal(t, []string{filepath.Join(home, ".claude")}, (&Config{}).Roots(""))
}
