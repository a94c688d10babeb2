package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"corax/internal/agent/ports"
	"corax/internal/observability"
	"corax/internal/parser"
	"corax/internal/toolregistry"
)

const (
	// DefaultTaskIterations bounds each task's local execution loop.
	DefaultTaskIterations = 5
	// DefaultMaxReplans bounds how often a failed plan may be rebuilt.
	DefaultMaxReplans = 2
	// replanFailureFraction is the failed-task share beyond which a plan is
	// considered broken regardless of priorities.
	replanFailureFraction = 0.3
)

// TaskStatus is a task's lifecycle state. Terminal tasks are never mutated
// back; a retry happens only through a replan that creates new tasks.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskExecuting TaskStatus = "executing"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one step of an execution plan.
type Task struct {
	ID           string     `json:"id"`
	Description  string     `json:"description"`
	Priority     int        `json:"priority"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Status       TaskStatus `json:"status"`
	Result       string     `json:"result,omitempty"`
	Err          string     `json:"error,omitempty"`
}

// Plan is owned by exactly one CoAct run. A replan replaces the task list
// wholesale so stale dependency references cannot survive.
type Plan struct {
	Strategy string  `json:"strategy"`
	Context  string  `json:"context"`
	Tasks    []*Task `json:"tasks"`
}

func (p *Plan) completedResults() []string {
	var out []string
	for _, task := range p.Tasks {
		if task.Status == TaskCompleted && strings.TrimSpace(task.Result) != "" {
			out = append(out, task.Result)
		}
	}
	return out
}

func (p *Plan) failedTasks() []*Task {
	var out []*Task
	for _, task := range p.Tasks {
		if task.Status == TaskFailed {
			out = append(out, task)
		}
	}
	return out
}

func (p *Plan) dependenciesCompleted(task *Task) bool {
	for _, dep := range task.Dependencies {
		met := false
		for _, other := range p.Tasks {
			if other.ID == dep && other.Status == TaskCompleted {
				met = true
				break
			}
		}
		if !met {
			return false
		}
	}
	return true
}

// CoActConfig captures the dependencies of a CoActProcessor.
type CoActConfig struct {
	LLM            ports.ModelStream
	Tools          *toolregistry.Adapter
	IDs            *parser.IDGenerator
	Logger         ports.Logger
	Clock          ports.Clock
	Metrics        *observability.Metrics
	TaskIterations int
	MaxReplans     int
}

// CoActProcessor runs the hierarchical variant: one global planning pass,
// then a local ReAct-shaped loop per task, with bounded replanning.
type CoActProcessor struct {
	llm            ports.ModelStream
	tools          *toolregistry.Adapter
	ids            *parser.IDGenerator
	logger         ports.Logger
	clock          ports.Clock
	metrics        *observability.Metrics
	tracer         trace.Tracer
	taskIterations int
	maxReplans     int
}

// NewCoActProcessor builds a processor, applying defaults for optional
// dependencies.
func NewCoActProcessor(cfg CoActConfig) *CoActProcessor {
	if cfg.TaskIterations <= 0 {
		cfg.TaskIterations = DefaultTaskIterations
	}
	if cfg.MaxReplans <= 0 {
		cfg.MaxReplans = DefaultMaxReplans
	}
	if cfg.IDs == nil {
		cfg.IDs = parser.NewIDGenerator()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics(nil)
	}
	return &CoActProcessor{
		llm:            cfg.LLM,
		tools:          cfg.Tools,
		ids:            cfg.IDs,
		logger:         ports.OrNoop(cfg.Logger),
		clock:          ports.OrSystem(cfg.Clock),
		metrics:        cfg.Metrics,
		tracer:         otel.Tracer("corax/coact"),
		taskIterations: cfg.TaskIterations,
		maxReplans:     cfg.MaxReplans,
	}
}

// Run drives one user turn through planning, execution and bounded
// replanning. As with the flat processor, a non-nil return means the consumer
// is gone or the context was cancelled.
func (p *CoActProcessor) Run(ctx context.Context, task string, history []ports.Message, emit Emitter) error {
	toolBlock, err := p.tools.PromptBlock(ctx)
	if err != nil {
		p.logger.Error("tool registry unavailable: %v", err)
		if err := emit(errorPart(fmt.Sprintf("tool registry unavailable: %v", err))); err != nil {
			return err
		}
		return emit(finishPart("registry_unavailable"))
	}

	query := task
	var plan *Plan
	budgetExhausted := false

	for attempt := 0; ; attempt++ {
		plan, err = p.plan(ctx, toolBlock, query, emit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Planning model failures fall back like parse failures do:
			// the turn degrades to a single direct task.
			p.logger.Warn("planning call failed, using fallback plan: %v", err)
			plan = fallbackPlan(query)
			if err := emit(planningPart("plan: 1 task (direct)")); err != nil {
				return err
			}
		}

		if err := p.execute(ctx, toolBlock, plan, history, emit); err != nil {
			return err
		}

		failed := plan.failedTasks()
		if len(failed) == 0 {
			break
		}
		if !p.shouldReplan(plan) {
			break
		}
		if attempt >= p.maxReplans {
			budgetExhausted = true
			break
		}

		p.metrics.Replans.Inc()
		reason := fmt.Sprintf("%d of %d task(s) failed, replanning", len(failed), len(plan.Tasks))
		p.logger.Info("%s (attempt %d/%d)", reason, attempt+1, p.maxReplans)
		if err := emit(replanningPart(reason)); err != nil {
			return err
		}
		query = replanQuery(task, plan)
	}

	return p.finalize(plan, budgetExhausted, emit)
}

// plan performs the global planning pass: one model call whose thought is
// forwarded as reasoning and whose <plan> body becomes the task list. Parse
// failures never hard-fail the turn; they degrade to a single-task plan
// wrapping the query verbatim.
func (p *CoActProcessor) plan(ctx context.Context, toolBlock, query string, emit Emitter) (*Plan, error) {
	ctx, span := p.tracer.Start(ctx, "coact.plan")
	defer span.End()

	stream, err := p.llm.Stream(ctx, planningSystemPrompt(toolBlock), []ports.Message{
		{Role: "user", Content: query},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	scanner := parser.NewStreamScanner(parser.TagThought)
	drain := func(emissions []parser.TagEmission) error {
		for _, em := range emissions {
			if em.Tag == parser.TagThought {
				if err := emit(reasoningPart(em.Text)); err != nil {
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
				if err := drain(scanner.Flush()); err != nil {
					return nil, err
				}
				plan := p.parsePlan(scanner.Raw(), query)
				if err := emit(planningPart(describePlan(plan))); err != nil {
					return nil, err
				}
				return plan, nil
			}
			if chunk.Err != nil {
				span.RecordError(chunk.Err)
				return nil, chunk.Err
			}
			if err := drain(scanner.Feed(chunk.Delta)); err != nil {
				return nil, err
			}
		}
	}
}

// parsePlan decodes the <plan> body, repairing sloppy JSON when possible and
// normalizing task state. Any failure yields the fallback plan.
func (p *CoActProcessor) parsePlan(raw, query string) *Plan {
	body, ok := parser.ExtractTagContent(raw, parser.TagPlan)
	if !ok {
		p.logger.Warn("no plan tag in planning response, using fallback plan")
		return fallbackPlan(query)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(body)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &plan) != nil {
			p.logger.Warn("unparseable plan body, using fallback plan: %v", err)
			return fallbackPlan(query)
		}
	}

	tasks := make([]*Task, 0, len(plan.Tasks))
	for i, task := range plan.Tasks {
		if task == nil || strings.TrimSpace(task.Description) == "" {
			continue
		}
		if strings.TrimSpace(task.ID) == "" {
			task.ID = fmt.Sprintf("task_%d", i+1)
		}
		if task.Priority <= 0 {
			task.Priority = 3
		}
		task.Status = TaskPending
		task.Result = ""
		task.Err = ""
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		p.logger.Warn("plan contained no usable tasks, using fallback plan")
		return fallbackPlan(query)
	}
	plan.Tasks = tasks
	return &plan
}

func fallbackPlan(query string) *Plan {
	return &Plan{
		Strategy: "direct",
		Tasks: []*Task{{
			ID:          "task_1",
			Description: query,
			Priority:    1,
			Status:      TaskPending,
		}},
	}
}

func describePlan(plan *Plan) string {
	strategy := strings.TrimSpace(plan.Strategy)
	if strategy == "" {
		strategy = "unnamed strategy"
	}
	return fmt.Sprintf("plan: %d task(s), strategy: %s", len(plan.Tasks), strategy)
}

// execute runs the local execution phase: tasks in order, skipping those
// whose dependencies have not completed.
func (p *CoActProcessor) execute(ctx context.Context, toolBlock string, plan *Plan, history []ports.Message, emit Emitter) error {
	for _, task := range plan.Tasks {
		if task.Status != TaskPending {
			continue
		}
		if !plan.dependenciesCompleted(task) {
			p.logger.Debug("skipping task %s: dependencies not completed", task.ID)
			continue
		}

		task.Status = TaskExecuting
		if err := emit(taskStartPart(*task)); err != nil {
			return err
		}

		result, taskErr, err := p.runTask(ctx, toolBlock, plan, task, history, emit)
		if err != nil {
			return err
		}
		if taskErr != nil {
			p.logger.Warn("task %s failed: %v", task.ID, taskErr)
			task.Status = TaskFailed
			task.Err = taskErr.Error()
			continue
		}
		task.Status = TaskCompleted
		task.Result = result
	}
	return nil
}

// runTask is the inner ReAct-shaped loop for one task. The response content
// becomes the task result rather than user-visible text; the final answer is
// assembled at finalization.
func (p *CoActProcessor) runTask(
	ctx context.Context,
	toolBlock string,
	plan *Plan,
	task *Task,
	history []ports.Message,
	emit Emitter,
) (string, error, error) {
	systemPrompt := reactSystemPrompt(toolBlock)
	messages := make([]ports.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, ports.Message{Role: "user", Content: taskUserMessage(plan, task)})

	for iteration := 1; iteration <= p.taskIterations; iteration++ {
		p.metrics.Iterations.Inc()

		raw, err := p.streamTaskTurn(ctx, systemPrompt, messages, emit)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			return "", fmt.Errorf("model stream failed: %w", err), nil
		}
		messages = append(messages, ports.Message{Role: "assistant", Content: raw})

		call, found, parseErr := parser.ParseToolCall(raw, p.ids)
		if found && parseErr != nil {
			obs := ports.NewErrorObservation(
				ports.ToolCall{ID: p.ids.Next(), Name: "unknown"},
				fmt.Errorf("malformed tool call: %w", parseErr),
			)
			if err := emit(observationPart(obs)); err != nil {
				return "", nil, err
			}
			messages = append(messages, obs.AsMessage())
			continue
		}
		if found {
			if err := emit(toolCallPart(call)); err != nil {
				return "", nil, err
			}
			obs := p.tools.Execute(ctx, call)
			if err := emit(observationPart(obs)); err != nil {
				return "", nil, err
			}
			messages = append(messages, obs.AsMessage())
			continue
		}

		if response, ok := parser.ExtractTagContent(raw, parser.TagResponse); ok {
			return response, nil, nil
		}
		if fallback := parser.StripTags(raw); fallback != "" {
			return fallback, nil, nil
		}
	}

	return "", fmt.Errorf("task %s: no result after %d iterations", task.ID, p.taskIterations), nil
}

// streamTaskTurn streams one model call for a task, forwarding thought
// content as reasoning. Response content is buffered, not streamed: it is the
// task's result, not the turn's answer.
func (p *CoActProcessor) streamTaskTurn(
	ctx context.Context,
	systemPrompt string,
	messages []ports.Message,
	emit Emitter,
) (string, error) {
	stream, err := p.llm.Stream(ctx, systemPrompt, messages)
	if err != nil {
		return "", err
	}

	scanner := parser.NewStreamScanner(parser.TagThought)
	drain := func(emissions []parser.TagEmission) error {
		for _, em := range emissions {
			if em.Tag == parser.TagThought {
				if err := emit(reasoningPart(em.Text)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				if err := drain(scanner.Flush()); err != nil {
					return "", err
				}
				return scanner.Raw(), nil
			}
			if chunk.Err != nil {
				return "", chunk.Err
			}
			if err := drain(scanner.Feed(chunk.Delta)); err != nil {
				return "", err
			}
		}
	}
}

// shouldReplan holds when a failed task is high priority or the failed
// fraction of the plan crosses the threshold.
func (p *CoActProcessor) shouldReplan(plan *Plan) bool {
	if len(plan.Tasks) == 0 {
		return false
	}
	failed := 0
	highPriority := false
	for _, task := range plan.Tasks {
		if task.Status != TaskFailed {
			continue
		}
		failed++
		if task.Priority <= 2 {
			highPriority = true
		}
	}
	if failed == 0 {
		return false
	}
	if highPriority {
		return true
	}
	return float64(failed)/float64(len(plan.Tasks)) > replanFailureFraction
}

// finalize concatenates completed results as the turn's answer and reports
// failures: a summary line normally, an error part when the replanning budget
// ran out with tasks still failing.
func (p *CoActProcessor) finalize(plan *Plan, budgetExhausted bool, emit Emitter) error {
	results := plan.completedResults()
	if len(results) > 0 {
		if err := emit(textDeltaPart(strings.Join(results, "\n\n"))); err != nil {
			return err
		}
	}

	failed := plan.failedTasks()
	if len(failed) > 0 {
		descriptions := make([]string, 0, len(failed))
		for _, task := range failed {
			descriptions = append(descriptions, task.Description)
		}
		summary := fmt.Sprintf("%d task(s) could not be completed: %s",
			len(failed), strings.Join(descriptions, "; "))
		if budgetExhausted {
			if err := emit(errorPart("replanning budget exhausted: " + summary)); err != nil {
				return err
			}
		} else {
			if err := emit(textDeltaPart("\n\n" + summary)); err != nil {
				return err
			}
		}
		return emit(finishPart("partial_failure"))
	}

	return emit(finishPart("completed"))
}
