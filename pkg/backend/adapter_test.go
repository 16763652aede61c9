package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFamily(t *testing.T) {
	for _, family := range []Family{FamilyChat, FamilyCompletion, FamilyGenerate} {
		adapter, err := ForFamily(family)
		require.NoError(t, err)
		assert.Equal(t, family, adapter.Family())
	}

	_, err := ForFamily("websocket")
	assert.Error(t, err)
}

func TestChatPayloadKeepsMessagesStructured(t *testing.T) {
	d := validDescriptor()
	d.Family = FamilyChat
	d.MaxNewTokensPropertyName = "max_tokens"
	d.ModelName = "llama3"

	req := Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are terse."},
			{Role: RoleUser, Content: "Hello"},
		},
		Params: Params{MaxNewTokens: 256},
	}

	payload, err := chatAdapter{}.BuildPayload(req, &d)
	require.NoError(t, err)

	messages, ok := payload["messages"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0]["role"])
	assert.Equal(t, "Hello", messages[1]["content"])
	assert.Equal(t, "llama3", payload["model"])
	assert.Equal(t, 256, payload["max_tokens"])
}

func TestCompletionPayloadFlattensMessages(t *testing.T) {
	d := validDescriptor()
	d.Family = FamilyCompletion
	d.MaxNewTokensPropertyName = "max_tokens"
	d.PromptFormat = PromptFormat{
		SystemPrefix:    "<|system|>",
		SystemSuffix:    "<|end|>",
		UserPrefix:      "<|user|>",
		UserSuffix:      "<|end|>",
		AssistantPrefix: "<|assistant|>",
		AssistantSuffix: "<|end|>",
		GenerationCue:   "<|assistant|>",
	}

	req := Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "Be brief."},
			{Role: RoleUser, Content: "Hi"},
			{Role: RoleAssistant, Content: "Hello"},
			{Role: RoleUser, Content: "How are you?"},
		},
		Params: Params{MaxNewTokens: 128},
	}

	payload, err := completionAdapter{}.BuildPayload(req, &d)
	require.NoError(t, err)

	want := "<|system|>Be brief.<|end|>" +
		"<|user|>Hi<|end|>" +
		"<|assistant|>Hello<|end|>" +
		"<|user|>How are you?<|end|>" +
		"<|assistant|>"
	assert.Equal(t, want, payload["prompt"])
	_, hasMessages := payload["messages"]
	assert.False(t, hasMessages)
}

func TestCompletionPayloadVerbatimPrompt(t *testing.T) {
	d := validDescriptor()
	d.Family = FamilyCompletion

	req := Request{
		Prompt: "already flattened",
		Params: Params{MaxNewTokens: 64},
	}

	payload, err := completionAdapter{}.BuildPayload(req, &d)
	require.NoError(t, err)
	assert.Equal(t, "already flattened", payload["prompt"])
}

func TestFlattenWithoutDelimitersUsesNewlines(t *testing.T) {
	got := flatten([]Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
	}, PromptFormat{})

	assert.Equal(t, "one\ntwo\n", got)
}

// Two descriptors for the same server software, differing only in the
// parameter object name, must produce payloads that differ only in where
// the generation parameters sit.
func TestParameterNestingDepth(t *testing.T) {
	req := Request{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
		Params: Params{
			MaxNewTokens: 200,
			ContextSize:  4096,
			Sampler:      map[string]any{"temperature": 0.7},
		},
	}

	flat := validDescriptor()
	flat.ContextSizePropertyName = "max_context_length"

	nested := flat
	nested.ParameterObjectName = "options"
	nested.MaxNewTokensPropertyName = "num_predict"
	nested.ContextSizePropertyName = "num_ctx"

	flatPayload, err := generateAdapter{}.BuildPayload(req, &flat)
	require.NoError(t, err)
	nestedPayload, err := generateAdapter{}.BuildPayload(req, &nested)
	require.NoError(t, err)

	// Flat descriptor: parameters at the root.
	assert.Equal(t, 200, flatPayload["max_length"])
	assert.Equal(t, 4096, flatPayload["max_context_length"])
	assert.Equal(t, 0.7, flatPayload["temperature"])

	// Nested descriptor: parameters exactly one level down.
	opts, ok := nestedPayload["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200, opts["num_predict"])
	assert.Equal(t, 4096, opts["num_ctx"])
	assert.Equal(t, 0.7, opts["temperature"])
	_, atRoot := nestedPayload["num_predict"]
	assert.False(t, atRoot)

	// The prompt stays at the root either way.
	assert.Equal(t, flatPayload["prompt"], nestedPayload["prompt"])
}

func TestUnsetOptionalPropertiesAreOmitted(t *testing.T) {
	d := validDescriptor()
	d.ContextSizePropertyName = ""
	d.StreamPropertyName = ""

	req := Request{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
		Params:   Params{MaxNewTokens: 100, ContextSize: 8192, Stream: true},
	}

	payload, err := generateAdapter{}.BuildPayload(req, &d)
	require.NoError(t, err)

	assert.Equal(t, 100, payload["max_length"])
	assert.NotContains(t, payload, "stream")
	// No invented property name carries the context size.
	for key := range payload {
		assert.NotEqual(t, 8192, payload[key], "context size leaked under %q", key)
	}
}

func TestStreamPropertySentWhenNamed(t *testing.T) {
	d := validDescriptor()
	d.StreamPropertyName = "stream"

	req := Request{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
		Params:   Params{MaxNewTokens: 100, Stream: false},
	}

	payload, err := generateAdapter{}.BuildPayload(req, &d)
	require.NoError(t, err)

	// false is still sent explicitly when the property is named.
	assert.Equal(t, false, payload["stream"])
}

func TestParseChatResponse(t *testing.T) {
	d := validDescriptor()
	d.Family = FamilyChat

	body := []byte(`{
		"model": "llama3",
		"choices": [{"message": {"content": "hello there"}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3}
	}`)

	resp, err := chatAdapter{}.ParseResponse(body, &d)
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, "llama3", resp.Model)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
	assert.Nil(t, resp.ToolCall)
}

func TestParseChatResponseNoChoices(t *testing.T) {
	d := validDescriptor()
	_, err := chatAdapter{}.ParseResponse([]byte(`{"choices": []}`), &d)
	assert.Error(t, err)
}

func TestParseCompletionResponse(t *testing.T) {
	d := validDescriptor()
	resp, err := completionAdapter{}.ParseResponse([]byte(`{"choices": [{"text": ""}]}`), &d)
	require.NoError(t, err)
	// Empty text is a valid result, not an error.
	assert.Equal(t, "", resp.Text)
}

func TestParseGenerateResponseShapes(t *testing.T) {
	d := validDescriptor()

	resp, err := generateAdapter{}.ParseResponse([]byte(`{"results": [{"text": "from kobold"}]}`), &d)
	require.NoError(t, err)
	assert.Equal(t, "from kobold", resp.Text)

	resp, err = generateAdapter{}.ParseResponse([]byte(`{"response": "from ollama", "eval_count": 7}`), &d)
	require.NoError(t, err)
	assert.Equal(t, "from ollama", resp.Text)
	assert.Equal(t, 7, resp.CompletionTokens)
}

func TestParseResponseAttachesToolCall(t *testing.T) {
	d := validDescriptor()
	body := []byte(`{"results": [{"text": "[TOOL_REQUEST]{\"name\": \"search\", \"arguments\": {\"q\": \"go\"}}[END_TOOL_REQUEST]"}]}`)

	resp, err := generateAdapter{}.ParseResponse(body, &d)
	require.NoError(t, err)
	require.NotNil(t, resp.ToolCall)
	assert.Equal(t, "search", resp.ToolCall.Name)
	assert.Equal(t, "go", resp.ToolCall.Arguments["q"])
}
