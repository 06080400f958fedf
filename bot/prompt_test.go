package bot

import (
	"strings"
	"testing"

	"github.com/onnwee/cooperbot/config"
)

func TestPromptBuildDeterministic(t *testing.T) {
	b := &PromptBuilder{SystemPrompt: "You are a pirate.", History: NewHistory(0, config.HistoryScopeChannel)}
	first := b.Build("chan", "alice", "what's the weather")
	for i := 0; i < 5; i++ {
		if got := b.Build("chan", "alice", "what's the weather"); got != first {
			t.Fatalf("prompt not deterministic: %q vs %q", got, first)
		}
	}
}

func TestPromptContainsDirectiveAndPayload(t *testing.T) {
	b := &PromptBuilder{SystemPrompt: "You are a pirate.", History: NewHistory(0, config.HistoryScopeChannel)}
	prompt := b.Build("chan", "alice", "what's the weather")
	if !strings.HasPrefix(prompt, "You are a pirate.") {
		t.Errorf("prompt must start with the system directive: %q", prompt)
	}
	if !strings.Contains(prompt, "The user alice said: what's the weather") {
		t.Errorf("prompt missing payload framing: %q", prompt)
	}
	if strings.Contains(prompt, "Recent conversation:") {
		t.Errorf("disabled history must not add a history section: %q", prompt)
	}
}

func TestPromptIncludesHistoryInOrder(t *testing.T) {
	h := NewHistory(4, config.HistoryScopeChannel)
	h.Append("chan", "alice", "alice", "hi there")
	h.Append("chan", "alice", "bot", "hello!")
	b := &PromptBuilder{SystemPrompt: "Directive.", History: h}

	prompt := b.Build("chan", "alice", "and now?")
	iAlice := strings.Index(prompt, "alice: hi there")
	iBot := strings.Index(prompt, "bot: hello!")
	if iAlice < 0 || iBot < 0 {
		t.Fatalf("prompt missing history lines: %q", prompt)
	}
	if iAlice > iBot {
		t.Errorf("history lines out of order: %q", prompt)
	}
}

func TestHistoryDepthBound(t *testing.T) {
	h := NewHistory(2, config.HistoryScopeChannel)
	h.Append("chan", "a", "a", "one")
	h.Append("chan", "a", "a", "two")
	h.Append("chan", "a", "a", "three")
	recent := h.Recent("chan", "a")
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(recent))
	}
	if recent[0].Text != "two" || recent[1].Text != "three" {
		t.Errorf("expected oldest entry evicted, got %+v", recent)
	}
}

func TestHistoryScopeSenderIsolation(t *testing.T) {
	h := NewHistory(4, config.HistoryScopeSender)
	h.Append("chan", "alice", "alice", "alice says")
	h.Append("chan", "bob", "bob", "bob says")
	if got := h.Recent("chan", "alice"); len(got) != 1 || got[0].Text != "alice says" {
		t.Errorf("alice history = %+v", got)
	}
	if got := h.Recent("chan", "bob"); len(got) != 1 || got[0].Text != "bob says" {
		t.Errorf("bob history = %+v", got)
	}
}

func TestHistoryScopeChannelShared(t *testing.T) {
	h := NewHistory(4, config.HistoryScopeChannel)
	h.Append("chan", "alice", "alice", "alice says")
	h.Append("chan", "bob", "bob", "bob says")
	if got := h.Recent("chan", "carol"); len(got) != 2 {
		t.Errorf("channel-scoped history should be shared, got %+v", got)
	}
}

func TestHistoryDisabled(t *testing.T) {
	h := NewHistory(0, config.HistoryScopeChannel)
	h.Append("chan", "a", "a", "line")
	if got := h.Recent("chan", "a"); got != nil {
		t.Errorf("disabled history should return nil, got %+v", got)
	}
}
