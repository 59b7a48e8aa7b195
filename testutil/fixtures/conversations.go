// Package fixtures 提供测试数据工厂。
//
// 包含预置的对话历史、存储状态与流式块序列，供各包测试复用。
package fixtures

import (
	"time"

	"github.com/BaSui01/webbridge/auth"
	"github.com/BaSui01/webbridge/browser"
	"github.com/BaSui01/webbridge/types"
)

// SimpleHistory 返回一轮完整对话加一条新用户消息
func SimpleHistory() types.History {
	return types.History{
		types.NewUserMessage("What is the capital of France?"),
		types.NewAssistantMessage("The capital of France is Paris."),
		types.NewUserMessage("And of Germany?"),
	}
}

// SystemPromptHistory 返回带系统提示的对话历史
func SystemPromptHistory() types.History {
	return types.History{
		types.NewMessage(types.RoleSystem, "You are a concise assistant."),
		types.NewUserMessage("Explain goroutines in one sentence."),
	}
}

// LongHistory 返回指定轮数的交替对话，最后一条为用户消息
func LongHistory(turns int) types.History {
	h := make(types.History, 0, turns*2+1)
	for i := 0; i < turns; i++ {
		h = append(h,
			types.NewUserMessage("user turn"),
			types.NewAssistantMessage("assistant turn"),
		)
	}
	h = append(h, types.NewUserMessage("final user turn"))
	return h
}

// SessionCookie 返回一个典型的会话 Cookie
func SessionCookie() browser.Cookie {
	return browser.Cookie{
		Name:     "SID",
		Value:    "test-session-token",
		Domain:   ".google.com",
		Path:     "/",
		Expires:  float64(time.Now().Add(24 * time.Hour).Unix()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	}
}

// StorageState 返回带 Cookie 与 localStorage 的存储状态
func StorageState() *auth.StorageState {
	return &auth.StorageState{
		Cookies: []browser.Cookie{SessionCookie()},
		Origins: []auth.OriginState{
			{
				Origin: "https://claude.ai",
				LocalStorage: []auth.StateItem{
					{Name: "session", Value: "abc123"},
				},
			},
		},
	}
}

// StreamChunks 返回一段典型的流式块序列
func StreamChunks() []types.StreamChunk {
	return []types.StreamChunk{
		{Content: "Hel"},
		{Content: "lo"},
		{Content: " there"},
		{Done: true},
	}
}
