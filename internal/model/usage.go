package model

import "time"

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TokenUsage contains token counts from a Claude API response
type TokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Total returns the sum of all four token counters
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// IsZero reports whether no tokens were recorded
func (u TokenUsage) IsZero() bool {
	return u == TokenUsage{}
}

// Add returns the element-wise sum of u and o
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:              u.InputTokens + o.InputTokens,
		OutputTokens:             u.OutputTokens + o.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens + o.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens + o.CacheReadInputTokens,
	}
}

// Message is the canonical unit of aggregation. One Message exists per
// logical message once sources have been merged.
type Message struct {
	// Timestamp is the wall-clock time in the user's zone. It is converted
	// from UTC once, when the record is normalized, and never again.
	Timestamp time.Time
	Role      Role
	SessionID string
	Project   string
	Model     string // empty for user turns
	Usage     TokenUsage
	Tools     []string // tool invocations, in content order
	ID        string
	// FallbackKey identifies the message when ID is empty.
	FallbackKey string
	Source      string // root the message was read from
	GitBranch   string
}

// Key returns the identity used for deduplication
func (m Message) Key() string {
	if m.ID != "" {
		return "id:" + m.ID
	}
	return "fb:" + m.FallbackKey
}

// Day returns the calendar date of a wall-clock time as midnight UTC.
// Dates built this way can be stepped with AddDate without DST surprises.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
