// Package domain holds the reasoning processors: the flat Thought→Action→
// Observation loop and its hierarchical Plan→Execute→Replan variant. Both
// consume the model stream through the incremental tag scanner and emit the
// internal stream-part vocabulary.
package domain

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"corax/internal/agent/ports"
	"corax/internal/observability"
	"corax/internal/parser"
	"corax/internal/token"
	"corax/internal/toolregistry"
)

// DefaultMaxIterations bounds the outer ReAct loop.
const DefaultMaxIterations = 8

// ReactConfig captures the dependencies of a ReactProcessor.
type ReactConfig struct {
	LLM           ports.ModelStream
	Tools         *toolregistry.Adapter
	IDs           *parser.IDGenerator
	Logger        ports.Logger
	Clock         ports.Clock
	Metrics       *observability.Metrics
	MaxIterations int
}

// ReactProcessor runs the single-level reasoning loop.
type ReactProcessor struct {
	llm           ports.ModelStream
	tools         *toolregistry.Adapter
	ids           *parser.IDGenerator
	logger        ports.Logger
	clock         ports.Clock
	metrics       *observability.Metrics
	tracer        trace.Tracer
	maxIterations int
}

// NewReactProcessor builds a processor, applying defaults for optional
// dependencies.
func NewReactProcessor(cfg ReactConfig) *ReactProcessor {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.IDs == nil {
		cfg.IDs = parser.NewIDGenerator()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &ReactProcessor{
		llm:           cfg.LLM,
		tools:         cfg.Tools,
		ids:           cfg.IDs,
		logger:        ports.OrNoop(cfg.Logger),
		clock:         ports.OrSystem(cfg.Clock),
		metrics:       cfg.Metrics,
		tracer:        otel.Tracer("corax/react"),
		maxIterations: cfg.MaxIterations,
	}
}

// Run drives one user turn to completion. Failures inside the turn surface as
// error/finish parts; the returned error is non-nil only when the consumer is
// gone or the context was cancelled, in which case the caller must unwind.
func (p *ReactProcessor) Run(ctx context.Context, task string, history []ports.Message, emit Emitter) error {
	messages := make([]ports.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ports.Message{Role: "user", Content: task})

	toolBlock, err := p.tools.PromptBlock(ctx)
	if err != nil {
		p.logger.Error("tool registry unavailable: %v", err)
		if err := emit(errorPart(fmt.Sprintf("tool registry unavailable: %v", err))); err != nil {
			return err
		}
		return emit(finishPart("registry_unavailable"))
	}
	systemPrompt := reactSystemPrompt(toolBlock)

	for iteration := 1; iteration <= p.maxIterations; iteration++ {
		p.metrics.Iterations.Inc()
		p.logger.Info("react iteration %d/%d", iteration, p.maxIterations)
		p.logger.Debug("context size: %d message(s), ~%d tokens",
			len(messages), token.CountMessages(messages))

		turn, err := p.streamTurn(ctx, systemPrompt, messages, emit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("model stream failed: %v", err)
			if emitErr := emit(errorPart(fmt.Sprintf("model stream failed: %v", err))); emitErr != nil {
				return emitErr
			}
			return emit(finishPart("stream_failed"))
		}

		messages = append(messages, ports.Message{Role: "assistant", Content: turn.raw})

		call, found, parseErr := parser.ParseToolCall(turn.raw, p.ids)
		if found && parseErr != nil {
			// Recoverable: the model sees its own mistake as an
			// observation and gets another iteration.
			p.logger.Warn("malformed tool call: %v", parseErr)
			obs := ports.NewErrorObservation(
				ports.ToolCall{ID: p.ids.Next(), Name: "unknown"},
				fmt.Errorf("malformed tool call: %w", parseErr),
			)
			if err := emit(observationPart(obs)); err != nil {
				return err
			}
			messages = append(messages, obs.AsMessage())
			continue
		}
		if found {
			if err := emit(toolCallPart(call)); err != nil {
				return err
			}
			obs := p.tools.Execute(ctx, call)
			if err := emit(observationPart(obs)); err != nil {
				return err
			}
			messages = append(messages, obs.AsMessage())
			continue
		}

		if turn.sawResponse {
			// Response content already streamed as text deltas.
			return emit(finishPart("completed"))
		}

		// The model answered without tags at all: tolerate it.
		if fallback := parser.StripTags(turn.raw); fallback != "" {
			if err := emit(textDeltaPart(fallback)); err != nil {
				return err
			}
			return emit(finishPart("completed"))
		}

		p.logger.Debug("iteration %d produced neither action nor answer", iteration)
	}

	p.logger.Warn("iteration budget (%d) exhausted without a response", p.maxIterations)
	if err := emit(errorPart(fmt.Sprintf("no answer after %d iterations", p.maxIterations))); err != nil {
		return err
	}
	return emit(finishPart("max_iterations"))
}

type turnResult struct {
	raw         string
	sawResponse bool
}

// streamTurn performs one model call, routing thought content to reasoning
// parts and response content to text deltas as they arrive. Tool-call bodies
// are never streamed; they are parsed from the raw buffer once the turn is
// complete.
func (p *ReactProcessor) streamTurn(
	ctx context.Context,
	systemPrompt string,
	messages []ports.Message,
	emit Emitter,
) (*turnResult, error) {
	ctx, span := p.tracer.Start(ctx, "model.stream",
		trace.WithAttributes(attribute.Int("messages", len(messages))))
	defer span.End()

	stream, err := p.llm.Stream(ctx, systemPrompt, messages)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scanner := parser.NewStreamScanner(parser.TagThought, parser.TagResponse)
	emitAll := func(emissions []parser.TagEmission) error {
		for _, em := range emissions {
			switch em.Tag {
			case parser.TagThought:
				if err := emit(reasoningPart(em.Text)); err != nil {
					return err
				}
			case parser.TagResponse:
				if err := emit(textDeltaPart(em.Text)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				if err := emitAll(scanner.Flush()); err != nil {
					return nil, err
				}
				return &turnResult{
					raw:         scanner.Raw(),
					sawResponse: scanner.Opened(parser.TagResponse),
				}, nil
			}
			if chunk.Err != nil {
				span.RecordError(chunk.Err)
				return nil, chunk.Err
			}
			if err := emitAll(scanner.Feed(chunk.Delta)); err != nil {
				return nil, err
			}
		}
	}
}
