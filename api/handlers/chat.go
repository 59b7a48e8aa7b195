package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/api"
	"github.com/BaSui01/webbridge/types"
)

// =============================================================================
// 💬 聊天接口 Handler
// =============================================================================

// Bridge 是 handler 驱动的补全接口，由 bridge.Manager 实现
type Bridge interface {
	Complete(ctx context.Context, modelID string, messages types.History) (string, error)
	Stream(ctx context.Context, modelID string, messages types.History) (<-chan types.StreamChunk, error)
	Models() []types.ModelInfo
	States() map[types.Provider]string
}

// TokenCounter 估算文本的 token 数，用于 usage 统计
type TokenCounter interface {
	Count(text string) int
}

// ChatHandler 聊天补全处理器
//
// 同一端点 POST /v1/chat/completions 根据请求的 stream 字段
// 在同步 JSON 响应与 SSE 流式响应之间切换。
type ChatHandler struct {
	bridge Bridge
	tokens TokenCounter
	logger *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(bridge Bridge, tokens TokenCounter, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		bridge: bridge,
		tokens: tokens,
		logger: logger,
	}
}

// HandleCompletion 处理聊天补全请求
// @Summary 聊天完成
// @Description OpenAI 兼容的聊天补全端点，stream=true 时返回 SSE 流
// @Tags 聊天
// @Accept json
// @Produce json
// @Param request body api.ChatCompletionRequest true "聊天请求"
// @Success 200 {object} api.ChatCompletionResponse "聊天响应"
// @Failure 400 {object} Response "无效请求"
// @Failure 503 {object} Response "会话不可用"
// @Security ApiKeyAuth
// @Router /v1/chat/completions [post]
func (h *ChatHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatCompletionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	if err := h.validateRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if req.Stream {
		h.handleStream(w, r, &req)
		return
	}
	h.handleSync(w, r, &req)
}

// handleSync 同步补全：等待完整回复后一次性返回
func (h *ChatHandler) handleSync(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	history := req.History()

	start := time.Now()
	text, err := h.bridge.Complete(r.Context(), req.Model, history)
	duration := time.Since(start)

	if err != nil {
		h.handleBridgeError(w, err)
		return
	}

	usage := h.computeUsage(history, text)

	h.logger.Info("chat completion",
		zap.String("model", req.Model),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
		zap.Duration("duration", duration),
	)

	WriteJSON(w, http.StatusOK, api.NewChatCompletionResponse(req.Model, text, usage))
}

// handleStream 流式补全：页面文本增量转为 SSE chunk
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	// 先拿到流，失败时还能返回 JSON 错误
	stream, err := h.bridge.Stream(r.Context(), req.Model, req.History())
	if err != nil {
		h.handleBridgeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewError(types.ErrInternalError, "streaming not supported"), h.logger)
		return
	}

	// 设置 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	id := api.NewCompletionID()
	created := time.Now().Unix()

	for chunk := range stream {
		if chunk.Err != nil {
			h.logger.Error("stream error", zap.Error(chunk.Err))
			// SSE 错误事件 — 使用 json.Marshal 转义错误消息，防止 JSON 注入
			errPayload, _ := json.Marshal(map[string]string{"error": chunk.Err.Error()})
			w.Write([]byte("event: error\n"))
			w.Write([]byte("data: "))
			w.Write(errPayload)
			w.Write([]byte("\n\n"))
			flusher.Flush()
			return
		}

		if chunk.Done {
			// 终止 chunk：空 delta + finish_reason
			stop := api.FinishReasonStop
			h.writeChunk(w, flusher, &api.ChatCompletionChunk{
				ID:      id,
				Object:  api.ObjectChatCompletionChunk,
				Created: created,
				Model:   req.Model,
				Choices: []api.StreamChoice{{Index: 0, FinishReason: &stop}},
			})
			if chunk.Unconfirmed {
				h.logger.Warn("stream finished without completion marker",
					zap.String("model", req.Model))
			}
			continue
		}

		h.writeChunk(w, flusher, &api.ChatCompletionChunk{
			ID:      id,
			Object:  api.ObjectChatCompletionChunk,
			Created: created,
			Model:   req.Model,
			Choices: []api.StreamChoice{{
				Index: 0,
				Delta: api.StreamDelta{Content: chunk.Content},
			}},
		})
	}

	// 发送结束标记
	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// validateRequest 验证聊天请求
func (h *ChatHandler) validateRequest(req *api.ChatCompletionRequest) *types.Error {
	if req.Model == "" {
		return types.NewError(types.ErrInvalidRequest, "model is required")
	}

	if len(req.Messages) == 0 {
		return types.NewError(types.ErrInvalidRequest, "messages cannot be empty")
	}

	for _, msg := range req.Messages {
		switch types.Role(msg.Role) {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant:
		default:
			return types.NewError(types.ErrInvalidRequest, "invalid message role: "+msg.Role)
		}
	}

	// 采样参数不生效，但越界值仍然拒绝，便于客户端尽早发现错误
	if req.Temperature < 0 || req.Temperature > 2 {
		return types.NewError(types.ErrInvalidRequest, "temperature must be between 0 and 2")
	}
	if req.TopP < 0 || req.TopP > 1 {
		return types.NewError(types.ErrInvalidRequest, "top_p must be between 0 and 1")
	}

	return nil
}

// computeUsage 统计本次交换的 token 用量
func (h *ChatHandler) computeUsage(history types.History, reply string) api.Usage {
	if h.tokens == nil {
		return api.Usage{}
	}

	var prompt int
	for _, msg := range history {
		prompt += h.tokens.Count(msg.Content)
	}
	completion := h.tokens.Count(reply)

	return api.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// writeChunk 写入单个 SSE 数据帧
func (h *ChatHandler) writeChunk(w http.ResponseWriter, flusher http.Flusher, chunk *api.ChatCompletionChunk) {
	w.Write([]byte("data: "))
	if err := json.NewEncoder(w).Encode(chunk); err != nil {
		h.logger.Error("failed to write chunk", zap.Error(err))
		return
	}
	w.Write([]byte("\n"))
	flusher.Flush()
}

// handleBridgeError 处理桥接层错误
func (h *ChatHandler) handleBridgeError(w http.ResponseWriter, err error) {
	if typedErr, ok := err.(*types.Error); ok {
		WriteError(w, typedErr, h.logger)
		return
	}

	// 未知错误，包装为内部错误
	internalErr := types.NewError(types.ErrInternalError, "bridge error").
		WithCause(err).
		WithRetryable(false)

	WriteError(w, internalErr, h.logger)
}
