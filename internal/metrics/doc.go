// 版权所有 2024 WebBridge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、补全、浏览器会话、会话缓存与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。
  - BridgeObserver：桥接层事件观察者，将缓存命中、轮次重放、
    流式增量与会话状态转换事件转为指标记录。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 补全指标：补全总数、补全耗时（浏览器驱动，桶上限 10 分钟）、
    Token 用量（prompt/completion），按 provider/model 分组。
  - 会话指标：状态 Gauge（同一 provider 互斥置位）、重放轮次、
    流式增量与静默兜底计数。
  - 缓存指标：会话缓存命中与未命中计数，按 provider 分组。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组。
*/
package metrics
