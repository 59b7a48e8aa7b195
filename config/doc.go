// Package config 提供 WebBridge 的配置管理功能。
//
// 包含服务器、浏览器自动化、服务登录、会话缓存、日志与遥测配置。
// 支持从 YAML 文件和环境变量加载配置，优先级为
// 默认值 → YAML 文件 → 环境变量。
package config
