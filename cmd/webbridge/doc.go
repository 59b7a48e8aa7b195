// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package main 提供 WebBridge 服务端程序入口。

# 概述

cmd/webbridge 是 WebBridge 的可执行入口，把浏览器自动化聊天桥接
暴露为 OpenAI 兼容的 HTTP API 服务。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标采集以及 OpenTelemetry 追踪。

# 核心类型

  - Server     — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、RateLimiter（基于 IP）、
    APIKeyAuth（X-API-Key / Authorization: Bearer）
  - 会话缓存后端：sqlite / postgres / mysql（gorm）或 redis
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 关闭浏览器会话
    → 停止缓存清理 → 关闭遥测 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
