package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/cooperbot/config"
)

// Client owns the Twitch IRC connection. It is both the inbound event source
// (private messages fed into the pipeline) and, via Sender, the single shared
// outbound resource the dispatcher serializes writes to.
type Client struct {
	cfg    *config.Config
	client *twitch.Client
}

// NewClient builds the IRC client from config. The OAuth token is prefixed
// with "oauth:" when the stored form omits it.
func NewClient(cfg *config.Config) *Client {
	token := cfg.TwitchOAuthToken
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return &Client{
		cfg:    cfg,
		client: twitch.NewClient(cfg.TwitchBotUsername, token),
	}
}

// Say implements Sender on the shared connection.
func (c *Client) Say(channel, text string) error {
	c.client.Say(channel, text)
	return nil
}

// Run joins the configured channel and feeds every private message into the
// pipeline. It blocks until ctx is canceled or the connection fails. Delivery
// arrives serially from the IRC client; Handle turns each message into its
// own unit of concurrent work.
func (c *Client) Run(ctx context.Context, pipeline *Pipeline) error {
	if err := c.cfg.ValidateChatReady(); err != nil {
		return err
	}

	c.client.OnConnect(func() {
		slog.Info("connected to twitch chat",
			slog.String("bot", c.cfg.TwitchBotUsername),
			slog.String("channel", c.cfg.TwitchChannel),
			slog.String("model", c.cfg.OllamaModel))
	})

	c.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		// The bot's own messages echo back through the same connection.
		if strings.EqualFold(msg.User.Name, c.cfg.TwitchBotUsername) {
			return
		}
		pipeline.Handle(ctx, IncomingMessage{
			Sender:  msg.User.Name,
			Text:    msg.Message,
			Channel: msg.Channel,
			At:      time.Now().UTC(),
		})
	})

	// Handle context cancellation by closing the client.
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := c.client.Disconnect(); err != nil {
			slog.Warn("twitch disconnect error", slog.Any("err", err))
		}
		close(done)
	}()

	c.client.Join(c.cfg.TwitchChannel)
	if err := c.client.Connect(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	<-done
	return nil
}
