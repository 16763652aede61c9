package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/pkg/errors"
)

func TestParseValidDefinition(t *testing.T) {
	data := []byte(`
name: assistant
nodes:
  - title: Think
    endpointName: local
    systemPrompt: "You are helpful."
    prompt: "{chat_user_prompt_last_5}"
  - title: Respond
    endpointName: local
    prompt: "Refine this draft: {agent1Output}"
`)

	def, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "assistant", def.Name)
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, KindLLM, def.Nodes[0].EffectiveKind())
	assert.Equal(t, "Think", def.Nodes[0].Title)
}

func TestParseRejectsUnknownKind(t *testing.T) {
	data := []byte(`
nodes:
  - type: quantumSolver
    prompt: "hello"
`)

	_, err := Parse(data)
	require.Error(t, err)

	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "quantumSolver")
}

func TestParseRejectsForwardOutputReference(t *testing.T) {
	data := []byte(`
nodes:
  - endpointName: local
    prompt: "summarize {agent2Output}"
  - endpointName: local
    prompt: "hello"
`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent2Output")
}

func TestParseRejectsSelfOutputReference(t *testing.T) {
	data := []byte(`
nodes:
  - endpointName: local
    prompt: "summarize {agent1Output}"
`)

	_, err := Parse(data)
	assert.Error(t, err)
}

func TestSelfInputReferenceIsAllowed(t *testing.T) {
	// A node may see its own pre-substitution input, but not a later one.
	data := []byte(`
nodes:
  - endpointName: local
    prompt: "echo {agent1Input}"
`)
	_, err := Parse(data)
	assert.NoError(t, err)

	data = []byte(`
nodes:
  - endpointName: local
    prompt: "echo {agent2Input}"
`)
	_, err = Parse(data)
	assert.Error(t, err)
}

func TestForwardReferenceCheckedInAllTemplatedFields(t *testing.T) {
	// Fields used only for routing logic still count.
	data := []byte(`
nodes:
  - endpointName: local
    prompt: "classify"
  - type: tagExtractor
    tagToExtractFrom: "{agent3Output}"
    fieldToExtract: "answer"
  - endpointName: local
    prompt: "done"
`)

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent3Output")
}

func TestValidateKindSpecificFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"llm without endpoint", `
nodes:
  - prompt: "hello"
`},
		{"llm without prompt or history", `
nodes:
  - endpointName: local
`},
		{"tag extractor without tag name", `
nodes:
  - type: tagExtractor
    tagToExtractFrom: "some text"
`},
		{"keyword search without keywords", `
nodes:
  - type: keywordSearch
`},
		{"rag search without target", `
nodes:
  - type: ragSearch
`},
		{"tool call without input", `
nodes:
  - type: toolCall
`},
		{"fan-out without merge policy", `
nodes:
  - endpoints: [a, b]
    prompt: "hello"
`},
		{"fan-out with unknown merge policy", `
nodes:
  - endpoints: [a, b]
    mergePolicy: fastest
    prompt: "hello"
`},
		{"empty workflow", `
nodes: []
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestHistoryModeNeedsNoPrompt(t *testing.T) {
	data := []byte(`
nodes:
  - endpointName: local
    lastMessagesToSendInsteadOfPrompt: 4
`)
	_, err := Parse(data)
	assert.NoError(t, err)
}

func TestMemoryKindsNeedNoEndpoint(t *testing.T) {
	data := []byte(`
nodes:
  - type: memorySummary
  - type: memoryUpdate
`)
	_, err := Parse(data)
	assert.NoError(t, err)
}
