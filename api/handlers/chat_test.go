package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/webbridge/api"
	"github.com/BaSui01/webbridge/types"
)

// fakeBridge 是 Bridge 接口的测试替身
type fakeBridge struct {
	completeText string
	completeErr  error
	chunks       []types.StreamChunk
	streamErr    error
	states       map[types.Provider]string

	lastModel   string
	lastHistory types.History
}

func (f *fakeBridge) Complete(_ context.Context, modelID string, messages types.History) (string, error) {
	f.lastModel = modelID
	f.lastHistory = messages
	return f.completeText, f.completeErr
}

func (f *fakeBridge) Stream(_ context.Context, modelID string, messages types.History) (<-chan types.StreamChunk, error) {
	f.lastModel = modelID
	f.lastHistory = messages
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan types.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (f *fakeBridge) Models() []types.ModelInfo { return types.AllModels() }

func (f *fakeBridge) States() map[types.Provider]string {
	if f.states != nil {
		return f.states
	}
	return map[types.Provider]string{
		types.ProviderAnthropic: "ready",
		types.ProviderOpenAI:    "ready",
	}
}

// wordCounter 以空白分词估算 token
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newChatHandler(t *testing.T, bridge *fakeBridge) *ChatHandler {
	t.Helper()
	return NewChatHandler(bridge, wordCounter{}, zaptest.NewLogger(t))
}

func postCompletion(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleCompletion(rec, req)
	return rec
}

func TestChatHandler_Completion(t *testing.T) {
	bridge := &fakeBridge{completeText: "four words of reply"}
	h := newChatHandler(t, bridge)

	rec := postCompletion(t, h, `{
		"model": "aipi/anthropic/claude-3-opus",
		"messages": [
			{"role": "user", "content": "what is 2+2?"}
		]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ChatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, strings.HasPrefix(resp.ID, "web-bridge-"))
	assert.Equal(t, api.ObjectChatCompletion, resp.Object)
	assert.Equal(t, "aipi/anthropic/claude-3-opus", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "four words of reply", resp.Choices[0].Message.Content)
	assert.Equal(t, api.FinishReasonStop, resp.Choices[0].FinishReason)

	// usage 按空白分词统计
	assert.Equal(t, 4, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, 8, resp.Usage.TotalTokens)

	assert.Equal(t, "aipi/anthropic/claude-3-opus", bridge.lastModel)
	require.Len(t, bridge.lastHistory, 1)
	assert.Equal(t, types.RoleUser, bridge.lastHistory[0].Role)
}

func TestChatHandler_Stream(t *testing.T) {
	bridge := &fakeBridge{chunks: []types.StreamChunk{
		{Content: "Hel"},
		{Content: "lo"},
		{Done: true},
	}}
	h := newChatHandler(t, bridge)

	rec := postCompletion(t, h, `{
		"model": "aipi/openai/gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"stream": true
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := sseDataFrames(t, rec.Body.String())
	require.GreaterOrEqual(t, len(frames), 4)
	assert.Equal(t, "[DONE]", frames[len(frames)-1])

	var content string
	var sawStop bool
	for _, frame := range frames[:len(frames)-1] {
		var chunk api.ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(frame), &chunk))
		assert.Equal(t, api.ObjectChatCompletionChunk, chunk.Object)
		assert.Equal(t, "aipi/openai/gpt-4", chunk.Model)
		require.Len(t, chunk.Choices, 1)

		content += chunk.Choices[0].Delta.Content
		if fr := chunk.Choices[0].FinishReason; fr != nil {
			assert.Equal(t, api.FinishReasonStop, *fr)
			sawStop = true
		}
	}

	// 增量拼接还原完整回复，终止 chunk 携带 finish_reason
	assert.Equal(t, "Hello", content)
	assert.True(t, sawStop)
}

func TestChatHandler_StreamMidwayError(t *testing.T) {
	bridge := &fakeBridge{chunks: []types.StreamChunk{
		{Content: "partial"},
		{Err: types.NewError(types.ErrInternalError, "page went away")},
	}}
	h := newChatHandler(t, bridge)

	rec := postCompletion(t, h, `{
		"model": "aipi/openai/gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"stream": true
	}`)

	body := rec.Body.String()
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "page went away")
	assert.NotContains(t, body, "[DONE]")
}

func TestChatHandler_StreamSetupError(t *testing.T) {
	bridge := &fakeBridge{streamErr: types.NewError(types.ErrNoActiveSession, "session poisoned")}
	h := newChatHandler(t, bridge)

	rec := postCompletion(t, h, `{
		"model": "aipi/anthropic/claude-3-opus",
		"messages": [{"role": "user", "content": "hi"}],
		"stream": true
	}`)

	// 流还没开始，错误仍按 JSON 返回
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assertErrorResponse(t, rec, types.ErrNoActiveSession)
}

func TestChatHandler_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing model", `{"messages": [{"role": "user", "content": "hi"}]}`},
		{"empty messages", `{"model": "aipi/openai/gpt-4", "messages": []}`},
		{"invalid role", `{"model": "aipi/openai/gpt-4", "messages": [{"role": "tool", "content": "hi"}]}`},
		{"temperature out of range", `{"model": "aipi/openai/gpt-4", "temperature": 3.5, "messages": [{"role": "user", "content": "hi"}]}`},
		{"top_p out of range", `{"model": "aipi/openai/gpt-4", "top_p": 1.5, "messages": [{"role": "user", "content": "hi"}]}`},
		{"malformed json", `{"model": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newChatHandler(t, &fakeBridge{completeText: "ok"})
			rec := postCompletion(t, h, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assertErrorResponse(t, rec, types.ErrInvalidRequest)
		})
	}
}

func TestChatHandler_IgnoresUnknownFields(t *testing.T) {
	h := newChatHandler(t, &fakeBridge{completeText: "ok"})

	// OpenAI 客户端常带的额外采样字段不应导致请求被拒
	rec := postCompletion(t, h, `{
		"model": "aipi/openai/gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"presence_penalty": 0.5,
		"n": 1,
		"stop": ["\n"]
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatHandler_UnsupportedModel(t *testing.T) {
	bridge := &fakeBridge{completeErr: types.NewError(types.ErrUnsupportedModel, "unsupported model")}
	h := newChatHandler(t, bridge)

	rec := postCompletion(t, h, `{
		"model": "aipi/anthropic/claude-9000",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assertErrorResponse(t, rec, types.ErrUnsupportedModel)
}

func TestChatHandler_BadContentType(t *testing.T) {
	h := newChatHandler(t, &fakeBridge{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.HandleCompletion(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assertErrorResponse(t, rec, types.ErrInvalidRequest)
}

// sseDataFrames 提取 SSE 响应里的 data 负载
func sseDataFrames(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	for _, line := range strings.Split(body, "\n") {
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			frames = append(frames, strings.TrimSpace(payload))
		}
	}
	return frames
}

// assertErrorResponse 校验统一错误响应的错误码
func assertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, code types.ErrorCode) {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(code), resp.Error.Code)
}
