package bot

import "strings"

// UserFilter answers whether a sender's messages should be ignored. The set is
// fixed at construction; lookups are O(1) because the filter runs on every
// chat message, including high-frequency noise.
type UserFilter struct {
	ignored map[string]struct{}
}

// NewUserFilter builds a filter from the configured ignore list. Entries are
// matched case-insensitively.
func NewUserFilter(users []string) *UserFilter {
	f := &UserFilter{ignored: make(map[string]struct{}, len(users))}
	for _, u := range users {
		u = strings.ToLower(strings.TrimSpace(u))
		if u != "" {
			f.ignored[u] = struct{}{}
		}
	}
	return f
}

// IsIgnored reports whether sender is on the ignore list.
func (f *UserFilter) IsIgnored(sender string) bool {
	_, ok := f.ignored[strings.ToLower(sender)]
	return ok
}

// Len returns the number of configured ignore entries.
func (f *UserFilter) Len() int { return len(f.ignored) }
