package bot

import "strings"

// PromptBuilder assembles the text sent to the completion backend: the
// configured personality directive, an optional window of recent turns, and
// the triggering message. Identical inputs always produce byte-identical
// prompts, which is what makes turns reproducible in tests.
type PromptBuilder struct {
	SystemPrompt string
	History      *History
}

// Build returns the full prompt for one turn.
func (b *PromptBuilder) Build(channel, sender, payload string) string {
	var sb strings.Builder
	sb.WriteString(b.SystemPrompt)
	sb.WriteString("\n")

	if recent := b.History.Recent(channel, sender); len(recent) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, rec := range recent {
			sb.WriteString(rec.Sender)
			sb.WriteString(": ")
			sb.WriteString(rec.Text)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nThe user ")
	sb.WriteString(sender)
	sb.WriteString(" said: ")
	sb.WriteString(payload)
	sb.WriteString("\nRespond naturally as if you're chatting in Twitch.")
	return sb.String()
}
