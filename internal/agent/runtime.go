// Package agent wires the reasoning processors, tool registry and history
// store into a runtime with a single Process entry point.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"corax/internal/agent/domain"
	"corax/internal/agent/ports"
	"corax/internal/observability"
	"corax/internal/parser"
	"corax/internal/toolregistry"
)

// Strategy selects a reasoning processor.
type Strategy string

const (
	StrategyReact Strategy = "react"
	StrategyCoAct Strategy = "coact"
)

// Config tunes runtime behavior. Zero values fall back to processor defaults.
type Config struct {
	Strategy       Strategy
	MaxIterations  int
	TaskIterations int
	MaxReplans     int
}

// Deps carries the runtime's collaborators. LLM and Tools are required;
// everything else is optional.
type Deps struct {
	LLM        ports.ModelStream
	Tools      ports.ToolService
	History    ports.HistoryStore
	Logger     ports.Logger
	Clock      ports.Clock
	Registerer prometheus.Registerer
}

type processor interface {
	Run(ctx context.Context, task string, history []ports.Message, emit domain.Emitter) error
}

// Runtime is the facade callers interact with. It is safe for sequential use;
// concurrent Process calls on one Runtime are not supported.
type Runtime struct {
	session string
	cfg     Config
	llm     ports.ModelStream
	tools   *toolregistry.Adapter
	history ports.HistoryStore
	logger  ports.Logger
	clock   ports.Clock
	metrics *observability.Metrics
	ids     *parser.IDGenerator

	mu   sync.Mutex
	proc processor
}

// New builds a runtime around the given dependencies.
func New(cfg Config, deps Deps) (*Runtime, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("model stream is required")
	}
	if deps.Tools == nil {
		return nil, fmt.Errorf("tool service is required")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyReact
	}
	if cfg.Strategy != StrategyReact && cfg.Strategy != StrategyCoAct {
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}

	logger := ports.OrNoop(deps.Logger)
	metrics := observability.NewMetrics(deps.Registerer)
	session := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return &Runtime{
		session: session,
		cfg:     cfg,
		llm:     deps.LLM,
		tools:   toolregistry.New(deps.Tools, logger, metrics),
		history: deps.History,
		logger:  logger,
		clock:   ports.OrSystem(deps.Clock),
		metrics: metrics,
		ids:     parser.NewIDGeneratorWithSession(session),
	}, nil
}

// Session returns the runtime's session id.
func (r *Runtime) Session() string { return r.session }

// Process runs one user turn and returns a channel of normalized events. The
// channel is unbuffered: the processor advances only as fast as the consumer
// reads, and abandoning the channel requires cancelling ctx. The channel is
// always closed when the turn ends.
func (r *Runtime) Process(ctx context.Context, userText string) (<-chan ports.Event, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, fmt.Errorf("empty input")
	}

	r.metrics.Turns.Inc()
	started := r.clock.Now()

	var history []ports.Message
	if r.history != nil {
		loaded, err := r.history.Load(ctx)
		if err != nil {
			r.logger.Warn("history load failed, starting fresh: %v", err)
		} else {
			history = loaded
		}
	}

	proc := r.ensureProcessor()
	out := make(chan ports.Event)

	go func() {
		defer close(out)

		var answer strings.Builder
		emit := func(part domain.StreamPart) error {
			ev, ok := normalizeStreamPart(part)
			if !ok {
				return nil
			}
			if ev.Type == ports.EventTextDelta {
				answer.WriteString(ev.TextDelta)
			}
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := proc.Run(ctx, text, history, emit); err != nil {
			r.logger.Error("turn aborted: %v", err)
			// Best effort: the consumer may already be gone.
			for _, ev := range []ports.Event{
				{Type: ports.EventError, Err: err.Error()},
				{Type: ports.EventDone, Message: "aborted"},
			} {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			return
		}

		r.logger.Info("turn finished in %s", r.clock.Now().Sub(started))
		r.persist(ctx, text, answer.String())
	}()

	return out, nil
}

// persist saves the exchange and, when the input looks durable, a fact. It
// runs after the turn so a cancelled consumer context does not lose history.
func (r *Runtime) persist(ctx context.Context, userText, answer string) {
	if r.history == nil || answer == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := r.history.SaveExchange(ctx, userText, answer); err != nil {
		r.logger.Warn("exchange not saved: %v", err)
	}
	if toolregistry.ShouldPersist(userText) {
		if err := r.history.SaveFact(ctx, userText); err != nil {
			r.logger.Warn("fact not saved: %v", err)
		}
	}
}

func (r *Runtime) ensureProcessor() processor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc != nil {
		return r.proc
	}
	switch r.cfg.Strategy {
	case StrategyCoAct:
		r.proc = domain.NewCoActProcessor(domain.CoActConfig{
			LLM:            r.llm,
			Tools:          r.tools,
			IDs:            r.ids,
			Logger:         r.logger,
			Clock:          r.clock,
			Metrics:        r.metrics,
			TaskIterations: r.cfg.TaskIterations,
			MaxReplans:     r.cfg.MaxReplans,
		})
	default:
		r.proc = domain.NewReactProcessor(domain.ReactConfig{
			LLM:           r.llm,
			Tools:         r.tools,
			IDs:           r.ids,
			Logger:        r.logger,
			Clock:         r.clock,
			Metrics:       r.metrics,
			MaxIterations: r.cfg.MaxIterations,
		})
	}
	return r.proc
}

// Reset drops cached state: the tool capability cache and the lazily built
// processor. The next Process call rebuilds both.
func (r *Runtime) Reset() {
	r.mu.Lock()
	r.proc = nil
	r.mu.Unlock()
	r.tools.ClearCache()
	r.logger.Debug("runtime state reset")
}
