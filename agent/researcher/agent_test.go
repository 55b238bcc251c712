package researcher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	topics []string
	result Result
}

func (f *fakeRunner) Research(_ context.Context, topic string) Result {
	f.topics = append(f.topics, topic)
	res := f.result
	res.Topic = topic
	return res
}

func testDeps() agent.Deps {
	return agent.Deps{Config: agent.Config{ID: "r-1", Name: "scholar", Type: agent.TypeResearcher}}
}

func newTestAgent(t *testing.T, r runner) (*Agent, *fakeSearcher) {
	s := &fakeSearcher{papers: testPapers(2)}
	a, err := build(testDeps(), r, (&tools.Builtins{Papers: s}).RegisterResearchTools)
	require.NoError(t, err)
	return a, s
}

func TestNew(t *testing.T) {
	_, err := New(testDeps())
	assert.ErrorIs(t, err, ErrNoBuiltins)

	deps := testDeps()
	deps.Builtins = &tools.Builtins{}
	a, err := New(deps)
	require.NoError(t, err)
	assert.Equal(t, []string{toolResearchTopic}, a.(*Agent).ToolNames())

	_, err = a.(*Agent).Research(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTools(t *testing.T) {
	a, _ := newTestAgent(t, &fakeRunner{})
	var names []string
	for _, ti := range a.Tools() {
		names = append(names, ti.Name)
	}
	assert.Equal(t, []string{toolResearchTopic, toolSearchPapers}, names)
}

func TestChat_CannedReplies(t *testing.T) {
	a, _ := newTestAgent(t, &fakeRunner{})
	cases := map[string]string{
		"Hello there":            greetingReply,
		"what can you do?":       capabilitiesReply,
		"explain your workflow":  workflowReply,
		"the app is not working": troubleshootingReply,
		"tell me a joke":         defaultReply,
	}
	for msg, want := range cases {
		reply, err := a.Chat(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, want, reply.Content, msg)
		assert.Empty(t, reply.ToolsUsed)
	}
	assert.Len(t, a.History(), 2*len(cases))
}

func TestChat_FullResearch(t *testing.T) {
	r := &fakeRunner{result: Result{
		PapersFound:       2,
		PapersAnalyzed:    2,
		FinalPDFPath:      "/out/paper.pdf",
		WorkflowCompleted: true,
		IdentifiedGaps:    "few benchmarks",
		StepsCompleted:    5,
		APICallsMade:      7,
	}}
	a, _ := newTestAgent(t, r)

	reply, err := a.Chat(context.Background(), "Conduct research on machine learning")
	require.NoError(t, err)
	assert.Equal(t, []string{toolResearchTopic}, reply.ToolsUsed)
	assert.Equal(t, []string{"machine learning"}, r.topics)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.Content), &out))
	assert.Equal(t, "machine learning", out["topic"])
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, "/out/paper.pdf", out["pdf_path"])
	assert.EqualValues(t, 7, out["api_calls_made"])
	assert.Nil(t, out["error"])
}

func TestChat_PartialResearch(t *testing.T) {
	r := &fakeRunner{result: Result{StepsCompleted: 2, Error: "context canceled"}}
	a, _ := newTestAgent(t, r)

	reply, err := a.Chat(context.Background(), "Write a research proposal on climate change")
	require.NoError(t, err)
	assert.Equal(t, []string{"climate change"}, r.topics)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.Content), &out))
	assert.Equal(t, "partial", out["status"])
	assert.Equal(t, "context canceled", out["error"])
}

func TestChat_PaperSearch(t *testing.T) {
	a, s := newTestAgent(t, &fakeRunner{})

	reply, err := a.Chat(context.Background(), "Find papers on neural networks")
	require.NoError(t, err)
	assert.Equal(t, []string{toolSearchPapers}, reply.ToolsUsed)
	assert.Equal(t, 1, s.calls)

	var out tools.PaperSearchResult
	require.NoError(t, json.Unmarshal([]byte(reply.Content), &out))
	assert.Equal(t, "neural networks", out.Topic)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, 2, out.PapersFound)
}

func TestChat_MissingTopic(t *testing.T) {
	a, _ := newTestAgent(t, &fakeRunner{})
	cases := map[string]string{
		"conduct research": needResearchTopicReply,
		"search papers":    needSearchTopicReply,
		"research":         needAnyTopicReply,
	}
	for msg, want := range cases {
		reply, err := a.Chat(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, want, reply.Content, msg)
	}
}

func TestChat_PipelineUnavailable(t *testing.T) {
	a, _ := newTestAgent(t, nil)

	reply, err := a.Chat(context.Background(), "research quantum computing")
	require.NoError(t, err)

	var out failedReport
	require.NoError(t, json.Unmarshal([]byte(reply.Content), &out))
	assert.Equal(t, "failed", out.Status)
	assert.Equal(t, unavailableError, out.Error)
	assert.Equal(t, "quantum computing", out.Topic)
}

func TestChat_ToolMissing(t *testing.T) {
	a, err := build(testDeps(), &fakeRunner{}, (&tools.Builtins{}).RegisterResearchTools)
	require.NoError(t, err)

	reply, err := a.Chat(context.Background(), "find papers on graphs")
	require.NoError(t, err)
	assert.Equal(t, chatErrorReply("tool not found: search_papers"), reply.Content)
	assert.Empty(t, reply.ToolsUsed)
}

func TestWouldUseTools(t *testing.T) {
	a, _ := newTestAgent(t, &fakeRunner{})
	assert.True(t, a.WouldUseTools("any recent arxiv work on diffusion?"))
	assert.False(t, a.WouldUseTools("hello"))
}
