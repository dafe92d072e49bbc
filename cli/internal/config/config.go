package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/zhaobenny/ccwrapped/internal/loader"
	"github.com/zhaobenny/ccwrapped/internal/pricing"
)

// EnvBackupDirs lists extra source roots, separated like PATH
const EnvBackupDirs = "CCWRAPPED_BACKUP_DIRS"

const (
	fileName   = ".ccwrapped.yaml"
	defaultTop = 10
)

// PriceOverride sets per-million-token rates for one model id
type PriceOverride struct {
	Model  string  `yaml:"model"`
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Config holds the CLI configuration
type Config struct {
	Sources        []string        `yaml:"sources,omitempty"`
	Timezone       string          `yaml:"timezone,omitempty"`
	IncludeHistory bool            `yaml:"include_history,omitempty"`
	Top            int             `yaml:"top,omitempty"`
	Pricing        []PriceOverride `yaml:"pricing,omitempty"`
}

// DefaultPath returns the path to the config file in the home directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// Load loads the configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Top: defaultTop}, nil
		}
		return nil, err
	}

	cfg := Config{Top: defaultTop}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the configuration to path
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks values that cannot be fixed up silently
func (c *Config) Validate() error {
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, p := range c.Pricing {
		if p.Model == "" {
			return fmt.Errorf("pricing entry without model")
		}
		if p.Input < 0 || p.Output < 0 {
			return fmt.Errorf("pricing for %s: rates must not be negative", p.Model)
		}
	}
	return nil
}

// Location resolves the configured time zone. Empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Roots returns the ordered source roots: the configured sources (or
// ~/.claude when none are configured) followed by the entries of env, a
// list separated like PATH. Later roots take precedence when merging.
func (c *Config) Roots(env string) []string {
	roots := c.Sources
	if len(roots) == 0 {
		roots = []string{"~/.claude"}
	}
	return ExpandRoots(append(append([]string(nil), roots...), filepath.SplitList(env)...))
}

// ExpandRoots trims and expands ~ in each root, then drops blanks and repeats
func ExpandRoots(roots []string) []string {
	roots = lo.Map(roots, func(r string, _ int) string { return expandHome(strings.TrimSpace(r)) })
	return loader.Roots(roots)
}

// Prices converts the overrides into pricing tiers
func (c *Config) Prices() map[string]pricing.Tier {
	tiers := make(map[string]pricing.Tier, len(c.Pricing))
	for _, p := range c.Pricing {
		tiers[p.Model] = pricing.NewTier(decimal.NewFromFloat(p.Input), decimal.NewFromFloat(p.Output))
	}
	return tiers
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
