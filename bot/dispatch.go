package bot

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Sender is the outbound half of the chat client. go-twitch-irc's Say never
// returns an error (IRC sends are fire-and-forget); the interface keeps one so
// stub transports in tests and future platforms can report failures.
type Sender interface {
	Say(channel, text string) error
}

// Dispatcher sends generated text back to the channel. Text over the length
// limit is split at whitespace boundaries and sent as ordered chunks. The
// underlying connection is a single shared resource, so sends are serialized:
// chunks of one turn never interleave with another turn's.
type Dispatcher struct {
	mu     sync.Mutex
	sender Sender
	maxLen int
}

// NewDispatcher wraps sender with the platform length limit.
func NewDispatcher(sender Sender, maxLen int) *Dispatcher {
	if maxLen < 1 {
		maxLen = 500
	}
	return &Dispatcher{sender: sender, maxLen: maxLen}
}

// Dispatch sanitizes text and sends it as one or more in-order chunks.
func (d *Dispatcher) Dispatch(channel, text string) error {
	text = Sanitize(text)
	if text == "" {
		return fmt.Errorf("nothing to dispatch after sanitizing")
	}
	chunks := SplitMessage(text, d.maxLen)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i, chunk := range chunks {
		if err := d.sender.Say(channel, chunk); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// Sanitize collapses newlines and control runes to spaces and strips leading
// "/" and "." so the text can never be interpreted as an IRC or Twitch
// command.
func Sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimLeft(text, "/.")
}

// SplitMessage splits text into chunks of at most limit bytes, breaking only
// at whitespace. A single word longer than the limit is hard-split as a last
// resort. Joining the chunks with single spaces reconstructs the
// whitespace-normalized input.
func SplitMessage(text string, limit int) []string {
	if limit < 1 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		for len(word) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			// Back the cut up to a rune boundary so a multibyte rune is never
			// split across chunks.
			cut := limit
			for cut > 0 && !utf8.RuneStart(word[cut]) {
				cut--
			}
			if cut == 0 {
				// A limit smaller than a single rune cannot be honored.
				cut = limit
			}
			chunks = append(chunks, word[:cut])
			word = word[cut:]
		}
		if word == "" {
			continue
		}
		switch {
		case cur.Len() == 0:
			cur.WriteString(word)
		case cur.Len()+1+len(word) <= limit:
			cur.WriteString(" ")
			cur.WriteString(word)
		default:
			chunks = append(chunks, cur.String())
			cur.Reset()
			cur.WriteString(word)
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
