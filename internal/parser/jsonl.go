package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strconv"
	"time"
)

// Record kinds forwarded by Parse
const (
	KindUser      = "user"
	KindAssistant = "assistant"
)

// RawRecord represents the raw JSON structure of one line of a Claude Code
// JSONL stream
type RawRecord struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Timestamp Timestamp   `json:"timestamp"`
	CWD       string      `json:"cwd"`
	GitBranch string      `json:"gitBranch"`
	Message   *RawMessage `json:"message"`

	// Prompt-history lines (history.jsonl) carry these instead
	Display string `json:"display"`
	Project string `json:"project"`
}

// RawMessage is the nested message body of a record
type RawMessage struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	Model   string    `json:"model"`
	Content Content   `json:"content"`
	Usage   *RawUsage `json:"usage"`
}

// RawUsage mirrors the usage object of an Anthropic API response
type RawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Block is one typed content block
type Block struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Content is either plain text or an ordered list of blocks
type Content struct {
	Text   string
	Blocks []Block
}

// UnmarshalJSON accepts a string, an array of blocks, or null
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	return json.Unmarshal(data, &c.Blocks)
}

// Timestamp is a UTC instant encoded either as epoch milliseconds or as an
// RFC 3339 string
type Timestamp struct {
	time.Time
}

// UnmarshalJSON decodes both encodings. Unparseable values leave the
// timestamp zero rather than failing the whole record.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return nil
		}
		raw = s
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		t.Time = time.UnixMilli(int64(f)).UTC()
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = ts.UTC()
	}
	return nil
}

// Counts tallies what Parse did with each line
type Counts struct {
	Lines     int
	Records   int // forwarded
	Malformed int // failed to decode
	Dropped   int // decoded but unusable
	Err       error
}

// Parse lazily decodes a JSONL stream. Each line is decoded on its own; a
// malformed line is skipped and never stops the stream. Only user and
// assistant records with a timestamp and a message body are yielded.
// counts may be nil.
func Parse(r io.Reader, counts *Counts) iter.Seq[RawRecord] {
	if counts == nil {
		counts = &Counts{}
	}

	return func(yield func(RawRecord) bool) {
		reader := bufio.NewReaderSize(r, 64*1024)

		for {
			// ReadBytes has no line length limit, unlike bufio.Scanner
			line, err := reader.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				counts.Lines++
				if rec, ok := decodeLine(line, counts); ok {
					counts.Records++
					if !yield(rec) {
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					counts.Err = err
				}
				return
			}
		}
	}
}

func decodeLine(line []byte, counts *Counts) (RawRecord, bool) {
	var rec RawRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		// Skip malformed lines
		counts.Malformed++
		return RawRecord{}, false
	}

	if rec.Type == "" && rec.Display != "" {
		rec = historyRecord(rec)
	}

	if (rec.Type != KindUser && rec.Type != KindAssistant) || rec.Timestamp.IsZero() || rec.Message == nil {
		counts.Dropped++
		return RawRecord{}, false
	}

	return rec, true
}

// historyRecord turns a prompt-history line into a user record
func historyRecord(rec RawRecord) RawRecord {
	rec.Type = KindUser
	rec.CWD = rec.Project
	rec.Message = &RawMessage{
		Role:    KindUser,
		Content: Content{Text: rec.Display},
	}
	return rec
}
