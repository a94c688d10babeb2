package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"corax/internal/agent/ports"
	"corax/internal/memory"
)

// builtinTools is the local tool service: a handful of capabilities that work
// without any external server, including recall over the fact store.
type builtinTools struct {
	store *memory.Store
	clock ports.Clock
}

func newBuiltinTools(store *memory.Store) *builtinTools {
	return &builtinTools{store: store, clock: ports.SystemClock{}}
}

func (b *builtinTools) List(context.Context) (map[string]ports.ToolSchema, error) {
	return map[string]ports.ToolSchema{
		"current_time": {
			Name:        "current_time",
			Description: "Returns the current date and time",
			Parameters:  ports.ParameterSchema{Type: "object"},
		},
		"calculate": {
			Name:        "calculate",
			Description: "Adds a list of numbers",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"numbers": {Type: "array", Description: "Numbers to sum"},
				},
				Required: []string{"numbers"},
			},
		},
		"recall_facts": {
			Name:        "recall_facts",
			Description: "Searches facts the user shared in earlier turns",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"query": {Type: "string", Description: "What to look for"},
				},
				Required: []string{"query"},
			},
		},
	}, nil
}

func (b *builtinTools) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "current_time":
		return b.clock.Now().Format(time.RFC1123), nil
	case "calculate":
		return sumNumbers(args["numbers"])
	case "recall_facts":
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("recall_facts requires a query")
		}
		facts, err := b.store.RecallFacts(ctx, query, 3)
		if err != nil {
			return nil, err
		}
		if len(facts) == 0 {
			return "no stored facts match", nil
		}
		return strings.Join(facts, "\n"), nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

func sumNumbers(raw any) (any, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("numbers must be an array")
	}
	var sum float64
	for _, item := range items {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("numbers must all be numeric, got %T", item)
		}
		sum += n
	}
	return sum, nil
}
