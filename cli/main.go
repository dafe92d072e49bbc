package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/ccwrapped/cli/internal/config"
	"github.com/zhaobenny/ccwrapped/cli/internal/output"
	"github.com/zhaobenny/ccwrapped/internal/aggregator"
	"github.com/zhaobenny/ccwrapped/internal/loader"
	"github.com/zhaobenny/ccwrapped/internal/pricing"
)

const version = "0.3.0"

// Flags
var (
	configPath     string
	sources        []string
	timezone       string
	top            int
	includeHistory bool
	jsonOut        bool
	compact        bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "ccwrapped [year|all]",
	Short: "Claude Code Wrapped - your year in Claude Code",
	Long: `Summarize Claude Code activity logs into a year-in-review.

Logs are read from ~/.claude by default. Extra roots (backups, other
machines) can be listed in the config file, in ` + config.EnvBackupDirs + `,
or with --source. When the same message appears in several roots, the
root listed last wins.

Examples:
  ccwrapped                         This year so far
  ccwrapped 2024                    A past year
  ccwrapped all --json              All time, as JSON
  ccwrapped --source ~/.claude --source /mnt/old-laptop/.claude`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWrapped,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the config file",
	Long: `Show or update ~/.ccwrapped.yaml.

Examples:
  ccwrapped config --show
  ccwrapped config --add-source /mnt/backup/.claude --timezone Europe/Berlin`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var (
	configShow      bool
	configAddSource []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.ccwrapped.yaml)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "", "Timezone for dates (e.g., America/New_York)")
	rootCmd.PersistentFlags().IntVar(&top, "top", 0, "Rows in each breakdown table")

	rootCmd.Flags().StringArrayVar(&sources, "source", nil, "Source root, repeatable; replaces configured roots")
	rootCmd.Flags().BoolVar(&includeHistory, "include-history", false, "Count prompts from history.jsonl")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	rootCmd.Flags().BoolVarP(&compact, "compact", "c", false, "Force compact table output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress and per-source details")

	configCmd.Flags().BoolVar(&configShow, "show", false, "Show current configuration")
	configCmd.Flags().StringArrayVar(&configAddSource, "add-source", nil, "Append a source root")
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWrapped(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Debug("config loaded", "path", path)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	now := time.Now().In(loc)

	year := now.Year()
	if len(args) == 1 {
		if year, err = parseYear(args[0], now); err != nil {
			return err
		}
	}

	roots := sourceRoots(cfg)
	logger.Debug("reading sources", "roots", roots)

	snap, result, err := loader.Run(roots,
		loader.Options{Location: loc, IncludeHistory: cfg.IncludeHistory, Logger: logger},
		aggregator.Options{Year: year, Now: now, Pricing: pricing.Default().With(cfg.Prices()), TopN: cfg.Top},
	)
	if errors.Is(err, loader.ErrNoData) {
		return fmt.Errorf("%w in %s", err, strings.Join(roots, ", "))
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return output.PrintJSON(os.Stdout, snap, result.Sources)
	}
	if verbose {
		if err := output.PrintSources(os.Stderr, result.Sources); err != nil {
			return err
		}
	}
	return output.PrintSummary(os.Stdout, snap, output.TableOptions{ForceCompact: compact})
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	if configShow {
		fmt.Printf("Config file: %s\n", path)
		fmt.Printf("Sources: %s\n", strings.Join(cfg.Roots(os.Getenv(config.EnvBackupDirs)), ", "))
		if cfg.Timezone != "" {
			fmt.Printf("Timezone: %s\n", cfg.Timezone)
		}
		fmt.Printf("Top: %d\n", cfg.Top)
		for _, p := range cfg.Pricing {
			fmt.Printf("Pricing: %s input=%g output=%g\n", p.Model, p.Input, p.Output)
		}
		return nil
	}

	if len(configAddSource) == 0 && !cmd.Flags().Changed("timezone") && !cmd.Flags().Changed("top") {
		return cmd.Usage()
	}

	cfg.Sources = append(cfg.Sources, configAddSource...)
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println("Configuration saved.")
	return nil
}

func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// sourceRoots returns --source roots when given, else configured ones
func sourceRoots(cfg *config.Config) []string {
	if roots := config.ExpandRoots(sources); len(roots) > 0 {
		return roots
	}
	return cfg.Roots(os.Getenv(config.EnvBackupDirs))
}

// applyFlags overrides config values with flags the user set explicitly
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timezone") {
		cfg.Timezone = timezone
	}
	if flags.Changed("top") {
		cfg.Top = top
	}
	if flags.Lookup("include-history") != nil && flags.Changed("include-history") {
		cfg.IncludeHistory = includeHistory
	}
}

// parseYear accepts a four-digit year or "all" (returned as 0)
func parseYear(arg string, now time.Time) (int, error) {
	if strings.EqualFold(arg, "all") {
		return 0, nil
	}
	year, err := strconv.Atoi(arg)
	if err != nil || year < 2000 || year > now.Year() {
		return 0, fmt.Errorf("invalid year %q: use a year up to %d, or \"all\"", arg, now.Year())
	}
	return year, nil
}
