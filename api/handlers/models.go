package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/webbridge/api"
)

// =============================================================================
// 📋 模型列表 Handler
// =============================================================================

// ModelsHandler 模型列表处理器
type ModelsHandler struct {
	bridge  Bridge
	created int64
	logger  *zap.Logger
}

// NewModelsHandler 创建模型列表处理器
func NewModelsHandler(bridge Bridge, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		bridge: bridge,
		// 模型注册表随二进制固定，created 取进程启动时间
		created: time.Now().Unix(),
		logger:  logger,
	}
}

// HandleList 处理模型列表请求
// @Summary 模型列表
// @Description OpenAI 兼容的模型列表端点
// @Tags 模型
// @Produce json
// @Success 200 {object} api.ModelList "模型列表"
// @Security ApiKeyAuth
// @Router /v1/models [get]
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	registry := h.bridge.Models()

	list := api.ModelList{
		Object: api.ObjectList,
		Data:   make([]api.Model, 0, len(registry)),
	}
	for _, m := range registry {
		list.Data = append(list.Data, api.Model{
			ID:      m.ID,
			Object:  api.ObjectModel,
			Created: h.created,
			OwnedBy: string(m.Provider),
		})
	}

	WriteJSON(w, http.StatusOK, list)
}
