package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/zhaobenny/ccwrapped/internal/aggregator"
	"github.com/zhaobenny/ccwrapped/internal/loader"
)

const (
	compactThreshold = 100 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
}

// TerminalWidth returns the width of stdout, honoring COLUMNS
func TerminalWidth() int {
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if width, err := strconv.Atoi(cols); err == nil && width > 0 {
			return width
		}
	}
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return defaultWidth
}

func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	return TerminalWidth() < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	str := strconv.FormatInt(n, 10)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if negative {
		return "-" + result
	}
	return result
}

// FormatCost formats a cost value as currency
func FormatCost(cost decimal.Decimal) string {
	return "$" + cost.StringFixed(2)
}

var modelNamePatterns = []*regexp.Regexp{
	// claude-sonnet-4-5-20250929
	regexp.MustCompile(`^claude-(\w+)-([\d-]+)-(\d{8})$`),
	// claude-opus-4-5
	regexp.MustCompile(`^claude-(\w+)-([\d-]+)$`),
	// anthropic/claude-opus-4.5
	regexp.MustCompile(`^anthropic/claude-(\w+)-([\d.]+)$`),
}

// ShortModelName converts full model names to short form for display
// claude-sonnet-4-5-20250929 -> sonnet-4-5
// claude-opus-4-20250514 -> opus-4
func ShortModelName(name string) string {
	for _, re := range modelNamePatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			return m[1] + "-" + m[2]
		}
	}
	return name
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(w)
	table.Header(headers)

	align := make([]tw.Align, len(headers))
	for i := range align {
		align[i] = tw.AlignRight
	}
	align[0] = tw.AlignLeft
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.PerColumn = align
	})
	return table
}

// PrintSummary renders the snapshot as a set of tables
func PrintSummary(w io.Writer, snap *aggregator.Snapshot, opts TableOptions) error {
	if snap.TotalMessages == 0 {
		_, err := fmt.Fprintln(w, "No usage data found for the selected period.")
		return err
	}
	compact := shouldUseCompact(opts)

	period := "All time"
	if snap.Year != 0 {
		period = strconv.Itoa(snap.Year)
	}
	fmt.Fprintf(w, "\nClaude Code Wrapped: %s\n\n", period)

	overview := newTable(w, "Stat", "Value")
	rows := [][]string{
		{"Messages", FormatNumber(int64(snap.TotalMessages))},
		{"Sessions", FormatNumber(int64(snap.TotalSessions))},
		{"Projects", FormatNumber(int64(snap.TotalProjects))},
		{"Active days", FormatNumber(int64(snap.ActiveDays))},
		{"Tokens", FormatNumber(snap.TotalTokens)},
		{"Estimated cost", FormatCost(snap.EstimatedCost)},
		{"Longest streak", fmt.Sprintf("%d days", snap.LongestStreak.Length)},
		{"Current streak", fmt.Sprintf("%d days", snap.CurrentStreak)},
		{"Most active hour", fmt.Sprintf("%02d:00", snap.MostActiveHour)},
	}
	if !compact {
		rows = append(rows,
			[]string{"First message", snap.FirstMessage.Format(time.DateOnly)},
			[]string{"Busiest day", fmt.Sprintf("%s (%d)", snap.MostActiveDay.Date.Format(time.DateOnly), snap.MostActiveDay.Messages)},
			[]string{"Late-night days", FormatNumber(int64(snap.LateNightDays))},
			[]string{"Messages / day", fmt.Sprintf("%.1f", snap.AvgMessagesPerDay)},
			[]string{"Cost / day", FormatCost(snap.AvgCostPerDay)},
			[]string{"Code changes / day", fmt.Sprintf("%.1f", snap.AvgCodeChangesPerDay)},
		)
	}
	for _, r := range rows {
		if err := overview.Append(r); err != nil {
			return err
		}
	}
	if err := overview.Render(); err != nil {
		return err
	}

	if err := printModels(w, snap, compact); err != nil {
		return err
	}
	for _, section := range []struct {
		title string
		rows  []aggregator.Ranked
	}{
		{"Tool", snap.Tools},
		{"Project", snap.Projects},
		{"MCP server", snap.MCPServers},
	} {
		if err := printRanked(w, section.title, section.rows); err != nil {
			return err
		}
	}

	if len(snap.UnpricedModels) > 0 {
		fmt.Fprintf(w, "\nNo pricing for: %v (counted at $0.00)\n", snap.UnpricedModels)
	}
	if compact {
		fmt.Fprintln(w, "\n(Compact mode - expand terminal for full view)")
	}
	return nil
}

func printModels(w io.Writer, snap *aggregator.Snapshot, compact bool) error {
	if len(snap.Models) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	var table *tablewriter.Table
	if compact {
		table = newTable(w, "Model", "Messages", "Cost")
	} else {
		table = newTable(w, "Model", "Messages", "Input", "Output", "Cache Create", "Cache Read", "Cost")
	}

	for _, r := range snap.Models {
		stats := snap.ModelUsage[r.Name]
		row := []string{ShortModelName(r.Name), FormatNumber(int64(r.Count))}
		if !compact {
			row = append(row,
				FormatNumber(stats.Usage.InputTokens),
				FormatNumber(stats.Usage.OutputTokens),
				FormatNumber(stats.Usage.CacheCreationInputTokens),
				FormatNumber(stats.Usage.CacheReadInputTokens))
		}
		row = append(row, FormatCost(stats.Cost))
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func printRanked(w io.Writer, title string, rows []aggregator.Ranked) error {
	if len(rows) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	table := newTable(w, title, "Count")
	for _, r := range rows {
		if err := table.Append([]string{r.Name, FormatNumber(int64(r.Count))}); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintSources renders one row per source root
func PrintSources(w io.Writer, reports []loader.SourceReport) error {
	table := newTable(w, "Source", "Layout", "Streams", "Messages", "Malformed", "Status")
	for _, r := range reports {
		status := "ok"
		if r.Err != nil {
			status = "unreadable"
		} else if len(r.Warnings) > 0 {
			status = fmt.Sprintf("%d warnings", len(r.Warnings))
		}
		row := []string{
			r.Root,
			r.Layout.String(),
			FormatNumber(int64(r.Streams)),
			FormatNumber(int64(r.Messages)),
			FormatNumber(int64(r.Malformed)),
			status,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// JSONOutput represents the JSON output structure
type JSONOutput struct {
	Stats   *aggregator.Snapshot  `json:"stats"`
	Sources []loader.SourceReport `json:"sources,omitempty"`
}

// PrintJSON outputs the snapshot as JSON
func PrintJSON(w io.Writer, snap *aggregator.Snapshot, sources []loader.SourceReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(JSONOutput{Stats: snap, Sources: sources})
}
