// Package pricing estimates API cost from token usage.
//
// Rates are dollars per million tokens. A model is resolved by exact id,
// then by family key (the id without vendor prefix or date/version suffix),
// then by an ordered list of substring rules. A model nothing matches costs
// zero.
package pricing

import (
	"regexp"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/zhaobenny/ccwrapped/internal/model"
)

var (
	cacheWriteRatio = decimal.RequireFromString("1.25")
	cacheReadRatio  = decimal.RequireFromString("0.1")
)

// Tier holds per-million-token rates for one model
type Tier struct {
	Input      decimal.Decimal `json:"input"`
	Output     decimal.Decimal `json:"output"`
	CacheWrite decimal.Decimal `json:"cache_write"`
	CacheRead  decimal.Decimal `json:"cache_read"`
}

// NewTier builds a tier from input and output rates. Cache rates are always
// derived from the input rate.
func NewTier(input, output decimal.Decimal) Tier {
	return Tier{
		Input:      input,
		Output:     output,
		CacheWrite: input.Mul(cacheWriteRatio),
		CacheRead:  input.Mul(cacheReadRatio),
	}
}

func tier(input, output string) Tier {
	return NewTier(decimal.RequireFromString(input), decimal.RequireFromString(output))
}

// Cost returns the dollar cost of usage at this tier
func (t Tier) Cost(u model.TokenUsage) decimal.Decimal {
	cost := decimal.NewFromInt(u.InputTokens).Mul(t.Input).
		Add(decimal.NewFromInt(u.OutputTokens).Mul(t.Output)).
		Add(decimal.NewFromInt(u.CacheCreationInputTokens).Mul(t.CacheWrite)).
		Add(decimal.NewFromInt(u.CacheReadInputTokens).Mul(t.CacheRead))
	return cost.Shift(-6)
}

// Rule matches model ids by predicate. Rules are tried in order.
type Rule struct {
	Name  string
	Match func(id string) bool
	Tier  Tier
}

// Table resolves model ids to tiers
type Table struct {
	exact    map[string]Tier
	families map[string]Tier
	rules    []Rule
}

var (
	opus45   = tier("5", "25")
	opus     = tier("15", "75")
	sonnet   = tier("3", "15")
	haiku45  = tier("1", "5")
	haiku35  = tier("0.8", "4")
	haiku3   = tier("0.25", "1.25")
	defaults = map[string]Tier{
		// Opus
		"claude-opus-4-5-20251101": opus45,
		"claude-opus-4-1-20250805": opus,
		"claude-opus-4-20250514":   opus,
		"claude-4-opus-20250514":   opus,
		"claude-3-opus-20240229":   opus,
		// Sonnet
		"claude-sonnet-4-5-20250929": sonnet,
		"claude-sonnet-4-20250514":   sonnet,
		"claude-4-sonnet-20250514":   sonnet,
		"claude-3-7-sonnet-20250219": sonnet,
		"claude-3-5-sonnet-20241022": sonnet,
		"claude-3-5-sonnet-20240620": sonnet,
		// Haiku
		"claude-haiku-4-5-20251001": haiku45,
		"claude-3-5-haiku-20241022": haiku35,
		"claude-3-haiku-20240307":   haiku3,
	}
)

func contains(subs ...string) func(string) bool {
	return func(id string) bool {
		m := strings.ToLower(id)
		return lo.SomeBy(subs, func(s string) bool { return strings.Contains(m, s) })
	}
}

// defaultRules is ordered most specific first
var defaultRules = []Rule{
	{Name: "opus-4.5", Match: contains("opus-4-5", "opus-4.5"), Tier: opus45},
	{Name: "opus", Match: contains("opus"), Tier: opus},
	{Name: "sonnet", Match: contains("sonnet"), Tier: sonnet},
	{Name: "haiku-4.5", Match: contains("haiku-4-5", "haiku-4.5"), Tier: haiku45},
	{Name: "haiku-3.5", Match: contains("3-5-haiku", "haiku-3-5", "3.5-haiku"), Tier: haiku35},
	{Name: "haiku", Match: contains("haiku"), Tier: haiku3},
}

// NewTable builds a table from exact ids and ordered rules. Family keys are
// derived from the exact ids.
func NewTable(exact map[string]Tier, rules []Rule) *Table {
	t := &Table{
		exact:    make(map[string]Tier, len(exact)),
		families: make(map[string]Tier, len(exact)),
		rules:    append([]Rule(nil), rules...),
	}
	ids := lo.Keys(exact)
	slices.Sort(ids)
	for _, id := range ids {
		t.exact[id] = exact[id]
		// Later ids of a family win, so the newest dated release sets the tier
		t.families[familyKey(id)] = exact[id]
	}
	return t
}

var defaultTable = NewTable(defaults, defaultRules)

// Default returns the built-in table
func Default() *Table {
	return defaultTable
}

// With returns a copy of t where overrides take precedence over both exact
// and family entries. t is not modified.
func (t *Table) With(overrides map[string]Tier) *Table {
	if len(overrides) == 0 {
		return t
	}
	out := &Table{
		exact:    lo.Assign(t.exact, overrides),
		families: lo.Assign(t.families),
		rules:    t.rules,
	}
	for id, tier := range overrides {
		out.families[familyKey(id)] = tier
	}
	return out
}

// Lookup resolves a model id to a tier. The second result is false when nothing
// matched and the zero tier was returned.
func (t *Table) Lookup(id string) (Tier, bool) {
	if id == "" {
		return Tier{}, false
	}
	if tier, ok := t.exact[id]; ok {
		return tier, true
	}
	if tier, ok := t.families[familyKey(id)]; ok {
		return tier, true
	}
	for _, r := range t.rules {
		if r.Match(id) {
			return r.Tier, true
		}
	}
	return Tier{}, false
}

// Price returns the cost of usage for the model id. Unknown models cost zero.
func (t *Table) Price(id string, usage model.TokenUsage) decimal.Decimal {
	tier, _ := t.Lookup(id)
	return tier.Cost(usage)
}

// Price prices usage against the built-in table
func Price(id string, usage model.TokenUsage) decimal.Decimal {
	return defaultTable.Price(id, usage)
}

var (
	vendorPrefix = regexp.MustCompile(`^(?:[a-z]{2}\.)?(?:anthropic[./])`)
	dateSuffix   = regexp.MustCompile(`-\d{8}$`)
	bedrockVer   = regexp.MustCompile(`-v\d+(?::\d+)?$`)
)

// familyKey strips vendor prefixes and version/date suffixes:
//
//	anthropic/claude-3-5-sonnet-20241022           -> claude-3-5-sonnet
//	claude-3-5-sonnet@20241022                     -> claude-3-5-sonnet
//	us.anthropic.claude-3-5-sonnet-20241022-v2:0   -> claude-3-5-sonnet
func familyKey(id string) string {
	key := strings.ToLower(strings.TrimSpace(id))
	key = vendorPrefix.ReplaceAllString(key, "")
	if i := strings.IndexByte(key, '@'); i >= 0 {
		key = key[:i]
	}
	key = bedrockVer.ReplaceAllString(key, "")
	key = dateSuffix.ReplaceAllString(key, "")
	return key
}
