package mathagent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(t *testing.T, p *mocks.MockProvider) *Agent {
	t.Helper()
	a, err := New(agent.Deps{
		Config:   agent.Config{ID: "a1", Name: "calc", Type: agent.TypeMath, Model: "llama-3.3-70b-versatile"},
		Provider: p,
	})
	require.NoError(t, err)
	return a.(*Agent)
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestShouldUseTool(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"What is 8 + 9?", true},
		{"twenty times four", true},
		{"What's the square root of 16", true},
		{"Calculate 3 to the power of 4", true},
		{"Hello there!", false},
		{"Tell me a joke", false},
		{"What's the capital of France?", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldUseTool(tc.input), tc.input)
	}
}

func TestChat_ToolPath(t *testing.T) {
	p := mocks.NewMockProvider().WithoutFallback().
		ThenToolCalls(call("c1", "add_numbers", `{"a":8,"b":9}`)).
		Then("8 + 9 = 17")
	a := newAgent(t, p)

	reply, err := a.Chat(context.Background(), "What is 8 + 9?")
	require.NoError(t, err)
	assert.Equal(t, "8 + 9 = 17", reply.Content)
	assert.Equal(t, []string{"add_numbers"}, reply.ToolsUsed)

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "auto", calls[0].ToolChoice)
	assert.Len(t, calls[0].Tools, 6)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Equal(t, "llama-3.3-70b-versatile", calls[0].Model)

	last := calls[1].Messages[len(calls[1].Messages)-1]
	assert.Equal(t, followUpPrompt, last.Content)
	assert.Empty(t, calls[1].Tools)

	history := a.History()
	require.Len(t, history, 3)
	assert.Equal(t, "Tool results: add_numbers: 17", history[1].Content)
	assert.Equal(t, "8 + 9 = 17", history[2].Content)
}

func TestChat_FollowUpFailureFallsBack(t *testing.T) {
	p := mocks.NewMockProvider().WithoutFallback().
		ThenToolCalls(
			call("c1", "divide_numbers", `{"a":1,"b":0}`),
			call("c2", "modulo", `{"a":1,"b":2}`),
			call("c3", "multiply_numbers", `{"a":6,"b":7}`),
		).
		ThenError(errors.New("upstream down"))
	a := newAgent(t, p)

	reply, err := a.Chat(context.Background(), "divide 1 by 0, then multiply 6 by 7")
	require.NoError(t, err)
	assert.Equal(t,
		"Calculation complete: Error executing divide_numbers: cannot divide by zero; Unknown tool: modulo; multiply_numbers: 42",
		reply.Content)
	assert.Equal(t, []string{"multiply_numbers"}, reply.ToolsUsed)
}

func TestChat_NoToolCalls(t *testing.T) {
	p := mocks.NewMockProvider().WithoutFallback().Then("It is 17.")
	a := newAgent(t, p)

	reply, err := a.Chat(context.Background(), "add eight and nine")
	require.NoError(t, err)
	assert.Equal(t, "It is 17.", reply.Content)
	assert.Empty(t, reply.ToolsUsed)
	assert.Equal(t, 1, p.CallCount())
}

func TestChat_ToolRequestErrorFallsBackToPlainChat(t *testing.T) {
	p := mocks.NewMockProvider().WithoutFallback().
		ThenError(errors.New("tools unsupported")).
		Then("plain answer")
	a := newAgent(t, p)

	reply, err := a.Chat(context.Background(), "compute something")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", reply.Content)
	require.Equal(t, 2, p.CallCount())
	assert.Empty(t, p.LastCall().Tools)
}

func TestChat_LLMOnly(t *testing.T) {
	p := mocks.NewMockProvider().WithoutFallback().Then("Hi!").ThenError(errors.New("boom"))
	a := newAgent(t, p)

	reply, err := a.Chat(context.Background(), "Hello there!")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", reply.Content)
	assert.Empty(t, p.LastCall().Tools)
	assert.Empty(t, p.LastCall().ToolChoice)

	reply, err = a.Chat(context.Background(), "Tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, "Error: boom", reply.Content)

	history := a.History()
	require.Len(t, history, 4)
	assert.Equal(t, "Error: boom", history[3].Content)

	a.ClearHistory()
	assert.Empty(t, a.History())
}

func TestToolsAndShowTools(t *testing.T) {
	a := newAgent(t, mocks.NewMockProvider())
	infos := a.Tools()
	require.Len(t, infos, 6)
	assert.Equal(t, "add_numbers", infos[0].Name)
	assert.True(t, a.WouldUseTools("5 minus 3"))
	assert.Equal(t, agent.TypeMath, a.Type())

	text := a.ShowTools()
	assert.Contains(t, text, "Available tools:\n• add_numbers: Add two numbers together")
	assert.Contains(t, text, "• calculate_square_root: Calculate square root of a number")
}
