package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/cooperbot/db"
	"github.com/onnwee/cooperbot/ollama"
	"github.com/onnwee/cooperbot/telemetry"
)

// IncomingMessage is one chat event as delivered by the client adapter.
// Immutable once constructed.
type IncomingMessage struct {
	Sender  string
	Text    string
	Channel string
	At      time.Time
}

// Outcome names the terminal state of a turn. Every turn logs exactly one
// outcome; the early exits (ignored-user, not-a-mention, overloaded) are
// normal short-circuits, not errors.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeIgnoredUser        Outcome = "ignored-user"
	OutcomeNoMention          Outcome = "not-a-mention"
	OutcomeOverloaded         Outcome = "overloaded"
	OutcomeBackendUnavailable Outcome = "backend-unavailable"
	OutcomeBackendTimeout     Outcome = "backend-timeout"
	OutcomeBackendRejected    Outcome = "backend-rejected"
	OutcomeDispatchFailed     Outcome = "dispatch-failed"
)

// FailureReply is sent to the user when the backend fails outright,
// mirroring the bot's chat personality rather than surfacing an error string.
const FailureReply = "Sorry, I couldn't generate a response!"

// Backend turns a prompt into completion text. Calls are slow, may be
// unavailable, and are non-idempotent in cost; the pipeline owns the timeout.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TurnLogger appends one durable record per processed turn.
type TurnLogger interface {
	Insert(ctx context.Context, in db.Interaction) error
}

// PipelineConfig carries the tunables for a Pipeline.
type PipelineConfig struct {
	Workers         int           // max in-flight backend invocations
	QueueDepth      int           // eligible turns waiting for a worker
	GenerateTimeout time.Duration // per-turn backend deadline
	RetryTransient  bool          // one retry for connection-class failures
	NotifyOnFailure bool          // send FailureReply when generation fails
}

// Pipeline runs the per-message state machine: filter, detect, build prompt,
// invoke backend, dispatch, log. Filtering and detection run synchronously on
// the caller's goroutine; eligible mentions are handed to a bounded worker
// pool so slow generations never block chat delivery.
type Pipeline struct {
	cfg        PipelineConfig
	filter     *UserFilter
	detector   *MentionDetector
	prompts    *PromptBuilder
	history    *History
	dispatcher *Dispatcher
	backend    Backend
	log        TurnLogger

	queue chan queuedTurn
	wg    sync.WaitGroup
}

type queuedTurn struct {
	msg     IncomingMessage
	payload string
	turnID  string
}

// NewPipeline wires the stages together. Call Start before Handle.
func NewPipeline(cfg PipelineConfig, filter *UserFilter, detector *MentionDetector, prompts *PromptBuilder, history *History, dispatcher *Dispatcher, backend Backend, log TurnLogger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueDepth < 0 {
		cfg.QueueDepth = 0
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 30 * time.Second
	}
	telemetry.Init()
	return &Pipeline{
		cfg:        cfg,
		filter:     filter,
		detector:   detector,
		prompts:    prompts,
		history:    history,
		dispatcher: dispatcher,
		backend:    backend,
		log:        log,
		queue:      make(chan queuedTurn, cfg.QueueDepth),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled, after
// finishing the turn they are processing.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case turn := <-p.queue:
					telemetry.SetQueueDepth(len(p.queue))
					p.process(ctx, turn)
				}
			}
		}()
	}
	slog.Info("turn pipeline started", slog.Int("workers", p.cfg.Workers), slog.Int("queue_depth", p.cfg.QueueDepth))
}

// Wait blocks until all workers have drained their in-flight turns.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Handle runs the synchronous stages for one message and queues it for
// generation when eligible. It never blocks on the backend: a full queue
// sheds the message as overloaded.
func (p *Pipeline) Handle(ctx context.Context, msg IncomingMessage) {
	telemetry.TurnsReceived.Inc()
	turnID := uuid.New().String()

	if p.filter.IsIgnored(msg.Sender) {
		telemetry.TurnsFiltered.Inc()
		if _, mentioned := p.detector.Detect(msg.Text); mentioned {
			slog.Info("ignored user tried to trigger bot", slog.String("user", msg.Sender), slog.String("message", msg.Text))
		}
		p.append(ctx, db.Interaction{TurnID: turnID, Channel: msg.Channel, Username: msg.Sender, Message: msg.Text, Outcome: string(OutcomeIgnoredUser)})
		return
	}

	payload, mentioned := p.detector.Detect(msg.Text)
	if !mentioned {
		telemetry.TurnsNoMention.Inc()
		p.append(ctx, db.Interaction{TurnID: turnID, Channel: msg.Channel, Username: msg.Sender, Message: msg.Text, Outcome: string(OutcomeNoMention)})
		return
	}

	select {
	case p.queue <- queuedTurn{msg: msg, payload: payload, turnID: turnID}:
		telemetry.SetQueueDepth(len(p.queue))
	default:
		telemetry.TurnsDropped.Inc()
		slog.Warn("turn queue full, dropping message", slog.String("user", msg.Sender))
		p.append(ctx, db.Interaction{TurnID: turnID, Channel: msg.Channel, Username: msg.Sender, Message: msg.Text, Outcome: string(OutcomeOverloaded), Failure: "turn queue full"})
	}
}

// process runs the latency-bound stages for one eligible mention. Exactly one
// log row is appended on every path out of this function.
func (p *Pipeline) process(ctx context.Context, turn queuedTurn) {
	telemetry.InFlightTurnsGauge.Inc()
	defer telemetry.InFlightTurnsGauge.Dec()

	turnStart := time.Now()
	ctx = telemetry.WithCorrelation(ctx, turn.turnID)
	ctx, span := telemetry.StartSpan(ctx, "turn-pipeline", "process_turn",
		attribute.String("chat.sender", turn.msg.Sender),
		attribute.String("chat.channel", turn.msg.Channel),
	)
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx)

	record := db.Interaction{
		TurnID:   turn.turnID,
		Channel:  turn.msg.Channel,
		Username: turn.msg.Sender,
		Message:  turn.msg.Text,
	}

	prompt := p.prompts.Build(turn.msg.Channel, turn.msg.Sender, turn.payload)
	logger.Debug("generating response", slog.String("user", turn.msg.Sender), slog.Int("prompt_len", len(prompt)))

	text, genLatency, err := p.generate(ctx, prompt)
	record.GenLatency = genLatency
	if err != nil {
		telemetry.RecordError(span, err)
		record.Failure = err.Error()
		switch ollama.KindOf(err) {
		case ollama.KindTimeout:
			telemetry.BackendTimeouts.Inc()
			record.Outcome = string(OutcomeBackendTimeout)
			// No dispatch after a timeout: the reply would arrive long after
			// the conversation moved on.
		case ollama.KindRejected:
			telemetry.BackendFailures.Inc()
			record.Outcome = string(OutcomeBackendRejected)
			p.notifyFailure(turn, logger)
		default:
			telemetry.BackendFailures.Inc()
			record.Outcome = string(OutcomeBackendUnavailable)
			p.notifyFailure(turn, logger)
		}
		logger.Warn("turn failed", slog.String("outcome", record.Outcome), slog.Any("err", err))
		p.append(ctx, record)
		return
	}

	record.Response = text
	reply := "@" + turn.msg.Sender + " " + text
	if err := p.dispatcher.Dispatch(turn.msg.Channel, reply); err != nil {
		telemetry.DispatchFailures.Inc()
		telemetry.RecordError(span, err)
		record.Outcome = string(OutcomeDispatchFailed)
		record.Failure = err.Error()
		logger.Warn("dispatch failed", slog.Any("err", err))
		p.append(ctx, record)
		return
	}

	p.history.Append(turn.msg.Channel, turn.msg.Sender, turn.msg.Sender, turn.payload)
	p.history.Append(turn.msg.Channel, turn.msg.Sender, "bot", text)

	telemetry.TurnsSucceeded.Inc()
	telemetry.SetSpanSuccess(span)
	record.Outcome = string(OutcomeOK)
	if telemetry.TurnDuration != nil {
		telemetry.TurnDuration.Observe(time.Since(turnStart).Seconds())
	}
	logger.Info("response sent", slog.String("user", turn.msg.Sender), slog.Duration("gen_latency", genLatency))
	p.append(ctx, record)
}

// generate invokes the backend under the per-turn deadline, retrying at most
// once and only for connection-class failures when the policy allows it.
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, time.Duration, error) {
	invoke := func() (string, time.Duration, error) {
		telemetry.BackendInvocations.Inc()
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
		defer cancel()
		start := time.Now()
		text, err := p.backend.Generate(callCtx, prompt)
		latency := time.Since(start)
		if telemetry.GenerateDuration != nil {
			telemetry.GenerateDuration.Observe(latency.Seconds())
		}
		return text, latency, err
	}

	text, latency, err := invoke()
	if err != nil && p.cfg.RetryTransient && ollama.IsRetryable(err) && ctx.Err() == nil {
		slog.Debug("retrying transient backend failure", slog.Any("err", err))
		text, latency, err = invoke()
	}
	return text, latency, err
}

// notifyFailure tells the user the turn failed, when configured to.
func (p *Pipeline) notifyFailure(turn queuedTurn, logger *slog.Logger) {
	if !p.cfg.NotifyOnFailure {
		return
	}
	if err := p.dispatcher.Dispatch(turn.msg.Channel, "@"+turn.msg.Sender+" "+FailureReply); err != nil {
		logger.Warn("failed to send failure notice", slog.Any("err", err))
	}
}

// append writes the turn's single log row. The insert uses a detached context
// so a canceled turn still gets recorded; losing the row would break the
// one-record-per-turn invariant.
func (p *Pipeline) append(ctx context.Context, in db.Interaction) {
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.log.Insert(insertCtx, in); err != nil {
		slog.Error("failed to append interaction log", slog.String("turn_id", in.TurnID), slog.Any("err", err))
	}
}

// QueueLen reports the number of turns waiting for a worker.
func (p *Pipeline) QueueLen() int { return len(p.queue) }
