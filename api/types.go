// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/webbridge/types"
)

// Object type discriminators, as OpenAI clients expect them.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// FinishReasonStop is the only finish reason a browser-backed completion
// can produce: the page either finished or the request failed outright.
const FinishReasonStop = "stop"

// Message is one conversation turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request body of POST /v1/chat/completions.
//
// Sampling parameters (temperature, top_p, max_tokens) are accepted for
// client compatibility but have no effect: the web UIs expose no sampling
// controls. Out-of-range values are still rejected so that client bugs
// surface early.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	User        string    `json:"user,omitempty"`
}

// History converts the wire messages into the internal history form.
func (r *ChatCompletionRequest) History() types.History {
	out := make(types.History, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = types.Message{Role: types.Role(m.Role), Content: m.Content}
	}
	return out
}

// Usage reports token accounting for a completed exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChoice is a single completion alternative. The browser
// produces exactly one.
type ChatCompletionChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   Usage                  `json:"usage"`
}

// StreamDelta carries the incremental part of a streamed choice.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is one choice inside a streamed chunk. FinishReason is null
// until the terminal chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// ChatCompletionChunk is one SSE data frame of a streaming completion.
type ChatCompletionChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// NewCompletionID mints a response ID. The "web-bridge" prefix makes
// bridge-served completions recognizable in client logs.
func NewCompletionID() string {
	return fmt.Sprintf("web-bridge-%s", uuid.NewString())
}

// NewChatCompletionResponse assembles a non-streaming response around a
// single assistant reply.
func NewChatCompletionResponse(model, content string, usage Usage) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      NewCompletionID(),
		Object:  ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionChoice{{
			Index:        0,
			Message:      Message{Role: string(types.RoleAssistant), Content: content},
			FinishReason: FinishReasonStop,
		}},
		Usage: usage,
	}
}

// Model describes one selectable model in /v1/models.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the response body of GET /v1/models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
