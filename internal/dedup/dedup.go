// Package dedup merges message streams so each logical message appears once.
//
// Messages are keyed by id (or by fallback key when the id is missing). The
// last write for a key wins, which matters for streamed responses: the same
// message id is logged several times with growing usage counts, and only the
// final, largest record should be counted.
package dedup

import (
	"sort"

	"github.com/zhaobenny/ccwrapped/internal/model"
)

// Merger is an insertion-ordered last-write-wins map of messages
type Merger struct {
	index map[string]int
	msgs  []model.Message
}

// New returns an empty merger
func New() *Merger {
	return &Merger{index: make(map[string]int)}
}

// Add merges msgs in order. A message whose key is already present replaces
// the earlier one in place.
func (m *Merger) Add(msgs ...model.Message) {
	for _, msg := range msgs {
		key := msg.Key()
		if i, ok := m.index[key]; ok {
			m.msgs[i] = msg
			continue
		}
		m.index[key] = len(m.msgs)
		m.msgs = append(m.msgs, msg)
	}
}

// Len returns the number of unique messages
func (m *Merger) Len() int {
	return len(m.msgs)
}

// Messages returns the unique messages ordered by timestamp. Messages with
// equal timestamps keep their first-insertion order.
func (m *Merger) Messages() []model.Message {
	out := make([]model.Message, len(m.msgs))
	copy(out, m.msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Merge folds sources in precedence order, lowest first
func Merge(sources ...[]model.Message) []model.Message {
	m := New()
	for _, src := range sources {
		m.Add(src...)
	}
	return m.Messages()
}
