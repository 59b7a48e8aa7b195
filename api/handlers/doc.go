// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 WebBridge HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 WebBridge 所有 HTTP 端点的请求处理逻辑，
包括 OpenAI 兼容的聊天补全、模型列表、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - ChatHandler      — 聊天补全处理器，同一端点支持同步与 SSE 流式响应
  - ModelsHandler    — OpenAI 兼容的 /v1/models 模型列表
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready）
  - Bridge           — 补全接口抽象，由 bridge.Manager 实现
  - Response         — 统一错误响应结构（success + error + timestamp）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - OpenAI 兼容输出：成功路径直接返回 chat.completion / chunk 对象
  - SSE 流式输出：data: {chunk} 帧 + 终止 chunk + data: [DONE]
  - 请求验证：DecodeJSONBody（1 MB 限制）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 健康检查聚合：浏览器会话状态 + 可插拔 HealthCheck 实现
*/
package handlers
