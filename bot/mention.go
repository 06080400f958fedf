package bot

import (
	"fmt"
	"regexp"
	"strings"
)

// MentionDetector decides whether a message addresses the bot and extracts the
// payload to respond to. Matching is case-insensitive and anchored at word
// boundaries so the trigger never fires on substrings of unrelated words
// (e.g. trigger "bot" inside "robotics").
type MentionDetector struct {
	trigger string
	re      *regexp.Regexp
}

// NewMentionDetector compiles the detector for the configured trigger string.
func NewMentionDetector(trigger string) (*MentionDetector, error) {
	trigger = strings.TrimSpace(trigger)
	if trigger == "" {
		return nil, fmt.Errorf("empty mention trigger")
	}
	// \b does not work when the trigger starts with "@", so the boundary is
	// expressed as start-of-string or a non-word rune on either side.
	pattern := `(?i)(?:^|[^0-9A-Za-z_])` + regexp.QuoteMeta(trigger) + `(?:[^0-9A-Za-z_]|$)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile mention pattern: %w", err)
	}
	return &MentionDetector{trigger: trigger, re: re}, nil
}

// Detect returns the payload to respond to and whether the message mentions
// the bot. The payload is the text after the trigger when present, otherwise
// the text before it; absence of a mention is a normal outcome, not an error.
func (d *MentionDetector) Detect(text string) (string, bool) {
	loc := d.re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	// The match may include one boundary rune on each side; narrow to the
	// trigger itself before slicing the payload out.
	matched := text[loc[0]:loc[1]]
	idx := strings.Index(strings.ToLower(matched), strings.ToLower(d.trigger))
	start := loc[0] + idx
	end := start + len(d.trigger)

	after := strings.TrimLeft(text[end:], " \t,.:;!?")
	if after = strings.TrimSpace(after); after != "" {
		return after, true
	}
	before := strings.TrimRight(text[:start], " \t,.:;!?")
	return strings.TrimSpace(before), true
}

// Trigger returns the configured trigger string.
func (d *MentionDetector) Trigger() string { return d.trigger }
