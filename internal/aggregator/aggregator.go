// Package aggregator reduces a merged message stream into a Snapshot of
// totals, histograms, breakdowns, streaks and cost.
package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/zhaobenny/ccwrapped/internal/model"
	"github.com/zhaobenny/ccwrapped/internal/pricing"
)

const (
	monthKeyLayout = "2006-01"
	daysPerWeek    = 7
	daysPerMonth   = 30
	lateNightEnd   = 5 // messages before 05:00 count as late night
)

// Options for aggregation
type Options struct {
	// Year restricts the snapshot to one calendar year. Zero means all time.
	Year int
	// Now is "today" for the year window and the current streak. It must be
	// in the same zone as the message timestamps. Zero means time.Now().
	Now     time.Time
	Pricing *pricing.Table
	// TopN truncates ranked breakdowns. Zero keeps everything.
	TopN int
}

// Ranked is one row of a breakdown table
type Ranked struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DayActivity is one active calendar day
type DayActivity struct {
	Date     time.Time `json:"date"`
	Messages int       `json:"messages"`
	Tokens   int64     `json:"tokens"`
	// Level is the 1-4 intensity bucket from the snapshot's quartiles
	Level int `json:"level"`
}

// StreakRun is a maximal run of consecutive active days
type StreakRun struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Length int       `json:"length"`
}

// SessionSummary describes one session
type SessionSummary struct {
	ID       string    `json:"id"`
	Project  string    `json:"project"`
	Messages int       `json:"messages"`
	Tokens   int64     `json:"tokens"`
	Date     time.Time `json:"date"`
}

// ModelStats is per-model usage keyed by the full model id
type ModelStats struct {
	Messages int              `json:"messages"`
	Usage    model.TokenUsage `json:"usage"`
	Cost     decimal.Decimal  `json:"cost"`
}

// Snapshot is the immutable result of an aggregation
type Snapshot struct {
	Year int `json:"year"`

	TotalMessages     int              `json:"total_messages"`
	UserMessages      int              `json:"user_messages"`
	AssistantMessages int              `json:"assistant_messages"`
	TotalSessions     int              `json:"total_sessions"`
	TotalProjects     int              `json:"total_projects"`
	Tokens            model.TokenUsage `json:"tokens"`
	TotalTokens       int64            `json:"total_tokens"`

	EstimatedCost  decimal.Decimal            `json:"estimated_cost"`
	CostByModel    map[string]decimal.Decimal `json:"cost_by_model"`
	MonthlyCosts   map[string]decimal.Decimal `json:"monthly_costs"`
	MonthlyTokens  map[string]int64           `json:"monthly_tokens"`
	UnpricedModels []string                   `json:"unpriced_models"`

	Hourly  [24]int `json:"hourly"`
	Weekday [7]int  `json:"weekday"` // Monday first

	Days       []DayActivity `json:"days"`
	Quartiles  [3]float64    `json:"quartiles"`
	ActiveDays int           `json:"active_days"`

	Streaks       []StreakRun `json:"streaks"`
	LongestStreak StreakRun   `json:"longest_streak"`
	CurrentStreak int         `json:"current_streak"`

	LongestSession  SessionSummary `json:"longest_session"`
	HeaviestSession SessionSummary `json:"heaviest_session"`

	Models     []Ranked              `json:"models"`
	Tools      []Ranked              `json:"tools"`
	Projects   []Ranked              `json:"projects"`
	MCPServers []Ranked              `json:"mcp_servers"`
	ModelUsage map[string]ModelStats `json:"model_usage"`

	AvgMessagesPerDay     float64         `json:"avg_messages_per_day"`
	AvgMessagesPerWeek    float64         `json:"avg_messages_per_week"`
	AvgMessagesPerMonth   float64         `json:"avg_messages_per_month"`
	AvgCostPerDay         decimal.Decimal `json:"avg_cost_per_day"`
	AvgCostPerWeek        decimal.Decimal `json:"avg_cost_per_week"`
	AvgCostPerMonth       decimal.Decimal `json:"avg_cost_per_month"`
	AvgCodeChangesPerDay  float64         `json:"avg_code_changes_per_day"`
	AvgCodeChangesPerWeek float64         `json:"avg_code_changes_per_week"`

	FirstMessage   time.Time   `json:"first_message"`
	LastMessage    time.Time   `json:"last_message"`
	MostActiveHour int         `json:"most_active_hour"`
	MostActiveDay  DayActivity `json:"most_active_day"`
	LateNightDays  int         `json:"late_night_days"`
	PrimaryModel   string      `json:"primary_model"`
	TotalEdits     int         `json:"total_edits"`
	TotalWrites    int         `json:"total_writes"`
}

type sessionAcc struct {
	project  string
	messages int
	tokens   int64
	first    time.Time
	order    int
}

type dayAcc struct {
	messages  int
	tokens    int64
	lateNight bool
}

// Aggregate computes a snapshot in one pass over msgs. msgs should already
// be deduplicated. An empty input yields a zero snapshot.
func Aggregate(msgs []model.Message, opts Options) *Snapshot {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	table := opts.Pricing
	if table == nil {
		table = pricing.Default()
	}
	from, to, bounded := window(opts.Year, now)

	snap := &Snapshot{
		Year:          opts.Year,
		CostByModel:   map[string]decimal.Decimal{},
		MonthlyCosts:  map[string]decimal.Decimal{},
		MonthlyTokens: map[string]int64{},
		ModelUsage:    map[string]ModelStats{},
	}

	days := map[time.Time]*dayAcc{}
	sessions := map[string]*sessionAcc{}
	projects := map[string]int{}
	models := map[string]int{}
	tools := map[string]int{}
	servers := map[string]int{}
	unpriced := map[string]bool{}

	for _, m := range msgs {
		day := model.Day(m.Timestamp)
		if bounded && (day.Before(from) || day.After(to)) {
			continue
		}

		snap.TotalMessages++
		switch m.Role {
		case model.RoleUser:
			snap.UserMessages++
		case model.RoleAssistant:
			snap.AssistantMessages++
		}

		if snap.FirstMessage.IsZero() || m.Timestamp.Before(snap.FirstMessage) {
			snap.FirstMessage = m.Timestamp
		}
		if m.Timestamp.After(snap.LastMessage) {
			snap.LastMessage = m.Timestamp
		}

		tokens := m.Usage.Total()
		snap.Tokens = snap.Tokens.Add(m.Usage)
		month := m.Timestamp.Format(monthKeyLayout)
		snap.MonthlyTokens[month] += tokens

		d, ok := days[day]
		if !ok {
			d = &dayAcc{}
			days[day] = d
		}
		d.messages++
		d.tokens += tokens
		if m.Timestamp.Hour() < lateNightEnd {
			d.lateNight = true
		}

		snap.Hourly[m.Timestamp.Hour()]++
		snap.Weekday[(int(m.Timestamp.Weekday())+6)%7]++

		projects[m.Project]++

		if m.SessionID != "" {
			s, ok := sessions[m.SessionID]
			if !ok {
				s = &sessionAcc{project: m.Project, first: m.Timestamp, order: len(sessions)}
				sessions[m.SessionID] = s
			}
			s.messages++
			s.tokens += tokens
			if m.Timestamp.Before(s.first) {
				s.first = m.Timestamp
			}
		}

		for _, tool := range m.Tools {
			tools[tool]++
			if server, ok := model.MCPServer(tool); ok {
				servers[server]++
			}
			switch tool {
			case "Edit", "MultiEdit":
				snap.TotalEdits++
			case "Write":
				snap.TotalWrites++
			}
		}

		if m.Model == "" {
			continue
		}
		models[m.Model]++

		_, priced := table.Lookup(m.Model)
		if !priced && !m.Usage.IsZero() {
			unpriced[m.Model] = true
		}
		cost := table.Price(m.Model, m.Usage)
		snap.EstimatedCost = snap.EstimatedCost.Add(cost)
		snap.CostByModel[m.Model] = snap.CostByModel[m.Model].Add(cost)
		snap.MonthlyCosts[month] = snap.MonthlyCosts[month].Add(cost)

		ms := snap.ModelUsage[m.Model]
		ms.Messages++
		ms.Usage = ms.Usage.Add(m.Usage)
		ms.Cost = ms.Cost.Add(cost)
		snap.ModelUsage[m.Model] = ms
	}

	snap.TotalTokens = snap.Tokens.Total()
	snap.TotalProjects = len(projects)
	snap.TotalSessions = len(sessions)
	snap.UnpricedModels = lo.Keys(unpriced)
	sort.Strings(snap.UnpricedModels)

	snap.Days = activeDays(days)
	snap.ActiveDays = len(snap.Days)
	snap.LateNightDays = lo.CountBy(lo.Values(days), func(d *dayAcc) bool { return d.lateNight })
	snap.Quartiles = quartiles(snap.Days)
	for i := range snap.Days {
		snap.Days[i].Level = level(snap.Days[i].Messages, snap.Quartiles)
	}

	snap.Streaks = streakRuns(snap.Days)
	snap.LongestStreak = longestRun(snap.Streaks)
	snap.CurrentStreak = currentStreak(snap.Streaks, streakReference(opts.Year, now))

	snap.LongestSession, snap.HeaviestSession = topSessions(sessions)

	ranked := rank(models)
	if len(ranked) > 0 {
		snap.PrimaryModel = ranked[0].Name
	}
	snap.Models = truncate(ranked, opts.TopN)
	snap.Tools = truncate(rank(tools), opts.TopN)
	snap.Projects = truncate(rank(projects), opts.TopN)
	snap.MCPServers = truncate(rank(servers), opts.TopN)

	snap.MostActiveHour = argmax(snap.Hourly[:])
	for _, d := range snap.Days {
		if d.Messages > snap.MostActiveDay.Messages {
			snap.MostActiveDay = d
		}
	}

	if snap.ActiveDays > 0 {
		active := float64(snap.ActiveDays)
		snap.AvgMessagesPerDay = float64(snap.TotalMessages) / active
		snap.AvgMessagesPerWeek = snap.AvgMessagesPerDay * daysPerWeek
		snap.AvgMessagesPerMonth = snap.AvgMessagesPerDay * daysPerMonth

		snap.AvgCostPerDay = snap.EstimatedCost.Div(decimal.NewFromInt(int64(snap.ActiveDays)))
		snap.AvgCostPerWeek = snap.AvgCostPerDay.Mul(decimal.NewFromInt(daysPerWeek))
		snap.AvgCostPerMonth = snap.AvgCostPerDay.Mul(decimal.NewFromInt(daysPerMonth))

		snap.AvgCodeChangesPerDay = float64(snap.TotalEdits+snap.TotalWrites) / active
		snap.AvgCodeChangesPerWeek = snap.AvgCodeChangesPerDay * daysPerWeek
	}

	return snap
}

// window returns the inclusive date range for year. bounded is false in
// all-time mode.
func window(year int, now time.Time) (from, to time.Time, bounded bool) {
	if year == 0 {
		return time.Time{}, time.Time{}, false
	}
	from = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	if year == now.Year() {
		to = model.Day(now)
	}
	return from, to, true
}

func topSessions(sessions map[string]*sessionAcc) (longest, heaviest SessionSummary) {
	ids := lo.Keys(sessions)
	// First-seen order breaks ties
	sort.Slice(ids, func(i, j int) bool { return sessions[ids[i]].order < sessions[ids[j]].order })

	var bestMsgs, bestTokens *sessionAcc
	for _, id := range ids {
		s := sessions[id]
		if bestMsgs == nil || s.messages > bestMsgs.messages {
			bestMsgs = s
			longest = summarize(id, s)
		}
		if bestTokens == nil || s.tokens > bestTokens.tokens {
			bestTokens = s
			heaviest = summarize(id, s)
		}
	}
	return longest, heaviest
}

func summarize(id string, s *sessionAcc) SessionSummary {
	return SessionSummary{
		ID:       id,
		Project:  s.project,
		Messages: s.messages,
		Tokens:   s.tokens,
		Date:     model.Day(s.first),
	}
}

// rank orders counts descending, ties by name
func rank(counts map[string]int) []Ranked {
	out := lo.MapToSlice(counts, func(name string, n int) Ranked {
		return Ranked{Name: name, Count: n}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func truncate(r []Ranked, n int) []Ranked {
	if n > 0 && len(r) > n {
		return r[:n]
	}
	return r
}

func argmax(xs []int) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}
