// Package bot contains the conversational turn pipeline for a single Twitch
// channel.
//
// Each incoming chat message becomes a turn: the sender is checked against the
// ignore list, the message is tested for a mention of the bot's trigger, a
// prompt is assembled from the configured personality plus optional recent
// history, the Ollama backend is invoked under a per-turn timeout, and the
// reply is chunked and sent back to the channel. Every turn that reaches the
// filtering stage appends exactly one row to the interactions table, whatever
// the outcome.
//
// Filtering, detection and prompt assembly run synchronously on the delivery
// goroutine; only eligible mentions are queued. The queue is bounded and the
// number of in-flight backend calls is capped, so chat floods shed load
// ("overloaded") instead of growing memory or hammering the backend. Replies
// from different turns may be sent out of arrival order; chunks within one
// turn are always in order.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. If TWITCH_OAUTH_TOKEN is not provided, main
// tries to reuse a stored token from the oauth_tokens table for provider
// "twitch".
package bot
