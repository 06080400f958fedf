package bot

import (
	"sync"

	"github.com/onnwee/cooperbot/config"
)

// TurnRecord is one remembered exchange line: who spoke and what they said.
type TurnRecord struct {
	Sender string
	Text   string
}

// History keeps a bounded window of recent turns for prompt context. Depth 0
// disables it entirely. Scope decides whether the window is shared across the
// channel or isolated per sender.
type History struct {
	mu      sync.Mutex
	depth   int
	scope   config.HistoryScope
	entries map[string][]TurnRecord
}

// NewHistory builds a history window with the configured depth and scope.
func NewHistory(depth int, scope config.HistoryScope) *History {
	return &History{
		depth:   depth,
		scope:   scope,
		entries: make(map[string][]TurnRecord),
	}
}

func (h *History) key(channel, sender string) string {
	if h.scope == config.HistoryScopeSender {
		return channel + "/" + sender
	}
	return channel
}

// Enabled reports whether any history is being kept.
func (h *History) Enabled() bool { return h != nil && h.depth > 0 }

// Recent returns a copy of the remembered turns for the scope key, oldest
// first. The copy keeps the snapshot stable while the prompt is assembled.
func (h *History) Recent(channel, sender string) []TurnRecord {
	if !h.Enabled() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	stored := h.entries[h.key(channel, sender)]
	if len(stored) == 0 {
		return nil
	}
	out := make([]TurnRecord, len(stored))
	copy(out, stored)
	return out
}

// Append remembers one line, evicting the oldest when the window is full.
func (h *History) Append(channel, sender, speaker, text string) {
	if !h.Enabled() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	k := h.key(channel, sender)
	entries := append(h.entries[k], TurnRecord{Sender: speaker, Text: text})
	if len(entries) > h.depth {
		entries = entries[len(entries)-h.depth:]
	}
	h.entries[k] = entries
}
