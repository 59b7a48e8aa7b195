// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package types 提供 webbridge 服务的全局共享类型定义。

# 概述

types 是服务最底层的公共包，不依赖任何内部包，为 bridge、cache、
browser、api 等上层模块提供统一的类型契约。所有跨包共享的结构体、
枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message / History  — 对话消息与有序消息序列（Prefix / Last）
  - Role               — 消息角色（system / user / assistant）
  - Provider           — 浏览器驱动的服务标识（Claude / ChatGPT）
  - ModelInfo          — 模型注册表条目（ID、显示名、模型选择器）
  - Error / ErrorCode  — 结构化错误体系，含 HTTP 状态码、Provider、Op 标记

# 主要能力

  - 模型解析：LookupModel / AllModels / ProviderOf
  - 错误工具链：WithCause / WithProvider / WithOp / GetErrorCode / IsRetryable
*/
package types
