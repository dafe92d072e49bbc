package parser

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/zhaobenny/ccwrapped/internal/model"
)

const (
	fallbackPrefixRunes = 100
	unknownProject      = "unknown"
)

// Normalizer converts raw records into canonical messages
type Normalizer struct {
	// Location is the zone timestamps are converted into. Nil means time.Local.
	Location *time.Location
	// Project overrides cwd-based resolution when the source layout
	// assigns a project name to the whole stream.
	Project string
	// Source is recorded on every message
	Source string
}

// Normalize returns the canonical message for rec, or false when the record
// does not carry enough information to be counted.
func (n Normalizer) Normalize(rec RawRecord) (model.Message, bool) {
	if rec.Timestamp.IsZero() || rec.Message == nil {
		return model.Message{}, false
	}

	role := model.Role(rec.Type)
	if role != model.RoleUser && role != model.RoleAssistant {
		return model.Message{}, false
	}

	loc := n.Location
	if loc == nil {
		loc = time.Local
	}

	msg := model.Message{
		Timestamp: rec.Timestamp.In(loc),
		Role:      role,
		SessionID: rec.SessionID,
		Project:   n.project(rec.CWD),
		ID:        rec.Message.ID,
		Tools:     toolNames(rec.Message.Content),
		Source:    n.Source,
		GitBranch: rec.GitBranch,
	}
	if role == model.RoleAssistant {
		msg.Model = rec.Message.Model
	}
	if u := rec.Message.Usage; u != nil {
		msg.Usage = model.TokenUsage{
			InputTokens:              u.InputTokens,
			OutputTokens:             u.OutputTokens,
			CacheCreationInputTokens: u.CacheCreationInputTokens,
			CacheReadInputTokens:     u.CacheReadInputTokens,
		}
	}
	if msg.ID == "" {
		msg.FallbackKey = fallbackKey(rec.Timestamp.Time, contentPrefix(rec.Message.Content, msg.Tools))
	}

	return msg, true
}

func (n Normalizer) project(cwd string) string {
	if n.Project != "" {
		return n.Project
	}
	if name := model.ProjectName(cwd); name != "" {
		return name
	}
	return unknownProject
}

// toolNames returns the tool_use block names in order. Text is never
// inspected for tool names.
func toolNames(c Content) []string {
	var tools []string
	for _, b := range c.Blocks {
		if b.Type == "tool_use" && b.Name != "" {
			tools = append(tools, b.Name)
		}
	}
	return tools
}

func contentPrefix(c Content, tools []string) string {
	text := c.Text
	if text == "" {
		var parts []string
		for _, b := range c.Blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		text = strings.Join(parts, "\n")
	}
	if text == "" {
		text = strings.Join(tools, ",")
	}

	runes := []rune(text)
	if len(runes) > fallbackPrefixRunes {
		runes = runes[:fallbackPrefixRunes]
	}
	return string(runes)
}

// fallbackKey digests (timestamp, content prefix) into a fixed-size key
func fallbackKey(ts time.Time, prefix string) string {
	h, _ := blake2b.New(16, nil)

	var ms [8]byte
	binary.BigEndian.PutUint64(ms[:], uint64(ts.UnixMilli()))
	h.Write(ms[:])
	h.Write([]byte(prefix))

	return hex.EncodeToString(h.Sum(nil))
}
