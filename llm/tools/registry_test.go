package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

func TestDefaultRegistry_RegisterAndGet(t *testing.T) {
	reg := NewDefaultRegistry(nil)

	require.NoError(t, reg.Register("echo", echoTool, ToolMetadata{}))
	assert.True(t, reg.Has("echo"))

	fn, meta, err := reg.Get("echo")
	require.NoError(t, err)
	require.NotNil(t, fn)
	assert.Equal(t, "echo", meta.Schema.Name)
	assert.Equal(t, defaultToolTimeout, meta.Timeout)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(meta.Schema.Parameters))
}

func TestDefaultRegistry_RejectsDuplicatesAndBadNames(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	require.NoError(t, reg.Register("echo", echoTool, ToolMetadata{}))

	err := reg.Register("echo", echoTool, ToolMetadata{})
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	for _, name := range []string{"", "1abc", "has space", "dash-name"} {
		err := reg.Register(name, echoTool, ToolMetadata{})
		assert.Error(t, err, name)
		assert.Equal(t, types.ErrToolValidation, types.GetErrorCode(err))
	}

	err = reg.Register("other", echoTool, ToolMetadata{Schema: llm.ToolSchema{Name: "different"}})
	assert.Error(t, err)
	assert.Error(t, reg.Register("nilfn", nil, ToolMetadata{}))
}

func TestDefaultRegistry_UnregisterAndNotFound(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	require.NoError(t, reg.Register("echo", echoTool, ToolMetadata{}))
	require.NoError(t, reg.Unregister("echo"))
	assert.False(t, reg.Has("echo"))

	err := reg.Unregister("echo")
	assert.Equal(t, types.ErrToolNotFound, types.GetErrorCode(err))
	_, _, err = reg.Get("echo")
	assert.Equal(t, types.ErrToolNotFound, types.GetErrorCode(err))
}

func TestDefaultRegistry_ListSorted(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(n, echoTool, ToolMetadata{}))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.List())

	schemas := reg.Schemas()
	require.Len(t, schemas, 3)
	assert.Equal(t, "alpha", schemas[0].Name)
	assert.Equal(t, "zeta", schemas[2].Name)
}

func TestDefaultRegistry_RateLimit(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	require.NoError(t, reg.Register("limited", echoTool, ToolMetadata{
		RateLimit: &RateLimitConfig{MaxCalls: 2, Window: time.Hour},
	}))

	assert.NoError(t, reg.Allow("limited"))
	assert.NoError(t, reg.Allow("limited"))
	err := reg.Allow("limited")
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))

	assert.NoError(t, reg.Allow("unknown"))
}

func TestDefaultRegistry_Stats(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	require.NoError(t, reg.Register("echo", echoTool, ToolMetadata{Keywords: []string{"repeat"}}))

	stats := reg.Stats()
	assert.Equal(t, int64(0), stats["echo"].UsageCount)
	assert.Equal(t, 1.0, stats["echo"].SuccessRate)

	reg.RecordResult("echo", true, 10*time.Millisecond)
	reg.RecordResult("echo", true, 20*time.Millisecond)
	reg.RecordResult("echo", false, 30*time.Millisecond)
	reg.RecordResult("missing", true, time.Millisecond)

	stats = reg.Stats()
	s := stats["echo"]
	assert.Equal(t, int64(3), s.UsageCount)
	assert.Equal(t, int64(1), s.Failures)
	assert.InDelta(t, 2.0/3.0, s.SuccessRate, 1e-9)
	assert.Equal(t, 20*time.Millisecond, s.AvgDuration)
	assert.False(t, s.LastUsed.IsZero())
	assert.Equal(t, []string{"repeat"}, reg.Keywords("echo"))
}
