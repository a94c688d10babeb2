package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolCallWellFormed(t *testing.T) {
	ids := NewIDGeneratorWithSession("abc123")
	call, found, err := ParseToolCall(
		`<thought>x</thought><tool_call>{"name":"search","arguments":{"q":"go"},"id":"c1"}</tool_call>`,
		ids,
	)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c1", call.ID)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, map[string]any{"q": "go"}, call.Arguments)
}

func TestParseToolCallSynthesizesMissingID(t *testing.T) {
	ids := NewIDGeneratorWithSession("sess")

	first, found, err := ParseToolCall(`<tool_call>{"name":"a","arguments":{}}</tool_call>`, ids)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "call_sess_1", first.ID)

	// A non-string id is treated the same as a missing one, and the
	// sequence strictly increases within the session.
	second, found, err := ParseToolCall(`<tool_call>{"name":"b","arguments":{},"id":42}</tool_call>`, ids)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "call_sess_2", second.ID)
}

func TestParseToolCallRepairsSloppyJSON(t *testing.T) {
	ids := NewIDGeneratorWithSession("sess")
	call, found, err := ParseToolCall(
		`<tool_call>{name: "lookup", arguments: {"key": "v",},}</tool_call>`,
		ids,
	)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "lookup", call.Name)
	assert.Equal(t, "v", call.Arguments["key"])
}

func TestParseToolCallInvalidName(t *testing.T) {
	ids := NewIDGeneratorWithSession("sess")
	_, found, err := ParseToolCall(`<tool_call>{"arguments":{}}</tool_call>`, ids)
	assert.True(t, found)
	assert.Error(t, err)
}

func TestParseToolCallAbsent(t *testing.T) {
	ids := NewIDGeneratorWithSession("sess")
	_, found, err := ParseToolCall(`<response>done</response>`, ids)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestIDGeneratorMonotonic(t *testing.T) {
	ids := NewIDGenerator()
	require.NotEmpty(t, ids.Session())
	for i := 1; i <= 5; i++ {
		assert.Equal(t, fmt.Sprintf("call_%s_%d", ids.Session(), i), ids.Next())
	}
}
