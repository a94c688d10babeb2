package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const reactPromptTemplate = `You are a capable assistant that solves tasks step by step.

Protocol, follow it exactly:
- Reason inside <thought>...</thought>. Keep thoughts short.
- To use a capability, emit exactly one <tool_call>{"name": "...", "arguments": {...}, "id": "..."}</tool_call> and stop your turn.
- Results arrive back as <observation>{...}</observation> messages.
- When you can answer, put the complete final answer inside <response>...</response>.
- Never nest tags and never invent capabilities.

Available capabilities:
%s`

const planningPromptTemplate = `You are a planner. Decompose the user's request into a dependency-ordered task list.

Reason inside <thought>...</thought>, then output ONLY a <plan> tag whose body is valid JSON:
<plan>{"strategy": "...", "context": "...", "tasks": [{"id": "task_1", "description": "...", "priority": 1, "dependencies": []}]}</plan>
Constraints:
- 1 to 6 tasks, each independently executable.
- priority 1 is most important; dependencies list task ids that must complete first.
- No markdown, no commentary outside the tags.

Available capabilities:
%s`

func reactSystemPrompt(toolBlock string) string {
	return fmt.Sprintf(reactPromptTemplate, toolBlock)
}

func planningSystemPrompt(toolBlock string) string {
	return fmt.Sprintf(planningPromptTemplate, toolBlock)
}

// taskUserMessage frames one plan task as the user message of its local
// execution loop, carrying the plan context and predecessor results forward.
func taskUserMessage(plan *Plan, task *Task) string {
	var b strings.Builder
	if strings.TrimSpace(plan.Strategy) != "" {
		fmt.Fprintf(&b, "Overall strategy: %s\n", plan.Strategy)
	}
	if strings.TrimSpace(plan.Context) != "" {
		fmt.Fprintf(&b, "Context: %s\n", plan.Context)
	}
	completed := plan.completedResults()
	if len(completed) > 0 {
		b.WriteString("Results of completed tasks:\n")
		for _, r := range completed {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	fmt.Fprintf(&b, "\nYour task: %s", task.Description)
	return b.String()
}

// replanQuery augments the original query with a description of what failed
// so the next planning pass can route around it.
func replanQuery(original string, plan *Plan) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nA previous plan partially failed. Failures:\n")
	for _, task := range plan.Tasks {
		if task.Status != TaskFailed {
			continue
		}
		fmt.Fprintf(&b, "- %q failed: %s\n", task.Description, task.Err)
	}
	b.WriteString("Produce a new plan that works around these failures.")
	return b.String()
}

func stringifyResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
