// Copyright (c) WebBridge Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 WebBridge 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual / AssertErrorCode /
    AssertContains 等
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON / CopyMessages
  - 流式辅助: CollectStreamChunks / CollectStreamContent /
    SendChunksToChannel，用于流式响应测试

# 子包

  - testutil/mocks: Mock 实现，包括 MockDriver（浏览器驱动），
    支持 Builder 模式、脚本化文本序列与错误注入
  - testutil/fixtures: 测试数据工厂，提供预置对话历史、
    存储状态、流式块序列等样例

# 使用示例

	ctx := testutil.TestContext(t)
	drv := mocks.NewMockDriver().WithText(".claude-response", "Hel", "Hello")
	text, err := drv.LastText(ctx, ".claude-response")
	require.NoError(t, err)
*/
package testutil
