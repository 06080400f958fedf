// Package twitchapi contains minimal helpers to interact with Twitch: an app
// access token source for Helix calls, user id resolution, and the refresh
// grant that keeps the bot's chat token alive.
package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource fetches and caches a Twitch app access (client credentials) token.
// NOTE: this token CANNOT be used for IRC chat; chat requires a user (bot)
// OAuth token with chat:read/chat:edit scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // overridable for tests; defaults to the Twitch id endpoint
	HTTPClient   *http.Client

	ts oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token. Caching and refresh
// are handled by the oauth2 client-credentials token source.
func (s *TokenSource) Get(ctx context.Context) (string, error) {
	if s.ts == nil {
		url := s.TokenURL
		if url == "" {
			url = tokenURL
		}
		cfg := &clientcredentials.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			TokenURL:     url,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		if s.HTTPClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
		}
		s.ts = cfg.TokenSource(ctx)
	}
	tok, err := s.ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
