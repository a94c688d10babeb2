// Package toolregistry adapts the remote capability registry to the shape the
// reasoning processors consume: a cached name→schema map, a prompt signature
// block, and an exception-free execution path that always yields an
// observation.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"corax/internal/agent/ports"
	"corax/internal/observability"
)

// Adapter fronts a ports.ToolService. Both caches are idempotent
// memoizations: re-fetching the same registry yields the same map, so the
// only synchronization needed is around the cache fields themselves.
type Adapter struct {
	service ports.ToolService
	logger  ports.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	group singleflight.Group

	mu     sync.Mutex
	tools  map[string]ports.ToolSchema
	prompt string
	cached bool
}

// New creates an adapter over service. Logger and metrics may be nil.
func New(service ports.ToolService, logger ports.Logger, metrics *observability.Metrics) *Adapter {
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Adapter{
		service: service,
		logger:  ports.OrNoop(logger),
		metrics: metrics,
		tracer:  otel.Tracer("corax/toolregistry"),
	}
}

// Tools returns the capability map, fetching it from the collaborator on
// first call and caching it for the adapter's lifetime.
func (a *Adapter) Tools(ctx context.Context) (map[string]ports.ToolSchema, error) {
	a.mu.Lock()
	cached := a.tools
	a.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := a.group.Do("tools", func() (any, error) {
		listed, err := a.service.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		if listed == nil {
			listed = map[string]ports.ToolSchema{}
		}
		a.mu.Lock()
		a.tools = listed
		a.mu.Unlock()
		a.logger.Debug("cached %d tool(s) from registry", len(listed))
		return listed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]ports.ToolSchema), nil
}

// PromptBlock renders every capability as a fixed-template signature block
// for system prompt injection, caching the concatenation.
func (a *Adapter) PromptBlock(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.cached {
		prompt := a.prompt
		a.mu.Unlock()
		return prompt, nil
	}
	a.mu.Unlock()

	tools, err := a.Tools(ctx)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		schema := tools[name]
		params, err := json.Marshal(schema.Parameters)
		if err != nil {
			params = []byte(`{}`)
		}
		fmt.Fprintf(&b, "- %s: %s\n  parameters: %s\n", name, schema.Description, params)
	}
	block := strings.TrimRight(b.String(), "\n")
	if block == "" {
		block = "(no tools available)"
	}

	a.mu.Lock()
	a.prompt = block
	a.cached = true
	a.mu.Unlock()
	return block, nil
}

// ClearCache invalidates both the raw registry cache and the formatted
// signature cache. Called on session reset, e.g. after the registry's backing
// service restarts.
func (a *Adapter) ClearCache() {
	a.mu.Lock()
	a.tools = nil
	a.prompt = ""
	a.cached = false
	a.mu.Unlock()
	a.logger.Debug("tool registry caches cleared")
}

// Execute delegates to the registry's invocation path. It never returns an
// error: any failure becomes an observation with the error side set, so the
// reasoning loop needs no exception handling.
func (a *Adapter) Execute(ctx context.Context, call ports.ToolCall) ports.Observation {
	ctx, span := a.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		))
	defer span.End()

	a.metrics.ToolInvocations.WithLabelValues(call.Name).Inc()
	a.logger.Debug("executing tool %s (id=%s)", call.Name, call.ID)

	result, err := a.service.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		a.metrics.ToolFailures.WithLabelValues(call.Name).Inc()
		a.logger.Warn("tool %s failed: %v", call.Name, err)
		span.RecordError(err)
		return ports.NewErrorObservation(call, err)
	}
	return ports.NewObservation(call, result)
}
