package toolcall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkerBlock(t *testing.T) {
	text := `Let me look that up.
[TOOL_REQUEST]{"name": "search", "arguments": {"query": "weather in kyoto"}}[END_TOOL_REQUEST]`

	call, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, "weather in kyoto", call.Arguments["query"])
}

func TestParseFencedJSON(t *testing.T) {
	text := "```json\n{\"name\": \"get_time\", \"arguments\": {\"zone\": \"UTC\"}}\n```"

	call, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "get_time", call.Name)
	assert.Equal(t, "UTC", call.Arguments["zone"])
}

func TestParseStringEncodedArguments(t *testing.T) {
	// Some models double-encode the argument object as a JSON string.
	text := `[TOOL_REQUEST]{"name": "lookup", "arguments": "{\"id\": \"42\"}"}[END_TOOL_REQUEST]`

	call, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "lookup", call.Name)
	assert.Equal(t, "42", call.Arguments["id"])
}

func TestParseNoCall(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain prose", "The weather in Kyoto is mild today."},
		{"empty string", ""},
		{"malformed json in marker", "[TOOL_REQUEST]{not json}[END_TOOL_REQUEST]"},
		{"marker without name", `[TOOL_REQUEST]{"arguments": {}}[END_TOOL_REQUEST]`},
		{"brackets in prose", "Use [TOOL_REQUEST] syntax to call tools."},
		{"fenced code without call shape", "```json\n{\"result\": 5}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := Parse(tt.text)
			assert.False(t, ok)
			assert.Nil(t, call)
		})
	}
}

func TestParseMissingArguments(t *testing.T) {
	call, ok := Parse(`[TOOL_REQUEST]{"name": "ping"}[END_TOOL_REQUEST]`)
	require.True(t, ok)
	assert.Equal(t, "ping", call.Name)
	assert.Empty(t, call.Arguments)
}

func TestParseFirstCallWins(t *testing.T) {
	text := `[TOOL_REQUEST]{"name": "first", "arguments": {}}[END_TOOL_REQUEST]
[TOOL_REQUEST]{"name": "second", "arguments": {}}[END_TOOL_REQUEST]`

	call, ok := Parse(text)
	require.True(t, ok)
	assert.Equal(t, "first", call.Name)
}

func TestStrip(t *testing.T) {
	text := `Checking now. [TOOL_REQUEST]{"name": "search", "arguments": {}}[END_TOOL_REQUEST]`
	assert.Equal(t, "Checking now.", Strip(text))

	assert.Equal(t, "no markers here", Strip("no markers here"))
}
