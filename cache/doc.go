// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package cache correlates stateless completion requests with the stateful
browser conversations that served them.

# 概述

每个浏览器会话以创建它的消息历史指纹为键。新请求到达时，对其
历史去掉最后一条消息后计算指纹：若命中，说明此前的轮次正是在
某个已存在的浏览器会话中产生的，直接复用该会话的 URL，免去
整段历史的重放。

# 指纹

指纹为 sha256("model:" + "role:content;"...)，布局属于持久化契约，
旧部署写入的指纹必须持续可匹配。

# 后端

  - SQLStore  — GORM 实现，支持 SQLite / PostgreSQL / MySQL，
    配合 Sweeper 周期性清除超龄会话
  - RedisStore — go-redis 实现，以键 TTL 取代周期清理

# 淘汰

Sweeper 按 cleanup_interval 周期运行，删除 last_used 早于
max_age 的会话及其消息。
*/
package cache
