// Command cooperbot is the main entrypoint for the Twitch chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Connects to Twitch chat and runs the turn pipeline: mention detection,
//     prompt building, Ollama generation, and reply dispatch.
//   - Starts the OAuth token refresher for the stored chat credential.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status,
//     /interactions, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM: in-flight turns drain before exit.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/cooperbot/bot"
	"github.com/onnwee/cooperbot/config"
	"github.com/onnwee/cooperbot/db"
	"github.com/onnwee/cooperbot/oauth"
	"github.com/onnwee/cooperbot/ollama"
	"github.com/onnwee/cooperbot/server"
	"github.com/onnwee/cooperbot/telemetry"
	"github.com/onnwee/cooperbot/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("cooperbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	migrationCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrationCtx, database); err != nil {
		cancelMigrate()
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}
	cancelMigrate()

	// Chat token fallback: when the env leaves TWITCH_OAUTH_TOKEN empty, use the
	// stored credential so a refreshed token survives restarts.
	if cfg.TwitchOAuthToken == "" {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		access, _, _, _, err := db.GetOAuthToken(tctx, database, "twitch")
		cancel()
		if err != nil {
			slog.Warn("stored twitch token lookup failed", slog.Any("err", err))
		} else if access != "" {
			cfg.TwitchOAuthToken = access
			slog.Info("using stored twitch chat token")
		}
	}

	// Best-effort: verify the configured channel exists via Helix when client
	// id/secret are provided. A typo'd channel otherwise fails silently at join.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" && cfg.TwitchChannel != "" {
		hctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		hc := &twitchapi.HelixClient{
			AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			ClientID:       cfg.TwitchClientID,
		}
		if id, err := hc.GetUserID(hctx, cfg.TwitchChannel); err != nil {
			slog.Warn("channel lookup failed", slog.String("channel", cfg.TwitchChannel), slog.Any("err", err))
		} else {
			slog.Info("channel verified", slog.String("channel", cfg.TwitchChannel), slog.String("user_id", id))
		}
		cancel()
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OAuth token refresher for the stored chat credential
	oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		res, err := twitchapi.RefreshToken(rctx, "", cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
	})

	// Wire the turn pipeline
	detector, err := bot.NewMentionDetector(cfg.BotTrigger)
	if err != nil {
		slog.Error("invalid bot trigger", slog.String("trigger", cfg.BotTrigger), slog.Any("err", err))
		os.Exit(1)
	}
	client := bot.NewClient(cfg)
	history := bot.NewHistory(cfg.HistoryDepth, cfg.HistoryScope)
	pipeline := bot.NewPipeline(
		bot.PipelineConfig{
			Workers:         cfg.MaxConcurrentTurns,
			QueueDepth:      cfg.TurnQueueDepth,
			GenerateTimeout: cfg.GenerateTimeout,
			RetryTransient:  cfg.RetryTransient,
			NotifyOnFailure: true,
		},
		bot.NewUserFilter(cfg.IgnoredUsers),
		detector,
		&bot.PromptBuilder{SystemPrompt: cfg.SystemPrompt, History: history},
		history,
		bot.NewDispatcher(client, cfg.MaxMessageLen),
		&ollama.Client{BaseURL: cfg.OllamaURL, Model: cfg.OllamaModel},
		&db.InteractionStore{DB: database},
	)
	pipeline.Start(ctx)

	go func() {
		if err := client.Run(ctx, pipeline); err != nil {
			slog.Error("twitch chat client exited", slog.Any("err", err))
			stop()
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics/interactions)
	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, server.WithQueueLen(pipeline.QueueLen)); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal, then drain in-flight turns.
	<-ctx.Done()
	slog.Info("shutting down, draining in-flight turns")
	pipeline.Wait()
}
