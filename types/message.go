// Package types provides core types used across the webbridge service.
// This package has ZERO dependencies on other webbridge packages to avoid circular imports.
// All other packages should import types from here.
package types

import "time"

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single turn in a conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// History is an ordered message sequence. Ordering is the only
// correctness-relevant relation between messages: two histories describe the
// same conversation iff their (role, content) sequences match exactly.
type History []Message

// Prefix returns the history without its newest turn. An empty or
// single-message history has no prefix.
func (h History) Prefix() History {
	if len(h) < 2 {
		return nil
	}
	return h[:len(h)-1]
}

// Clone returns an independent copy of the history.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	copied := make(History, len(h))
	copy(copied, h)
	return copied
}

// UserTurns returns only the user messages, preserving order.
func (h History) UserTurns() History {
	var users History
	for _, msg := range h {
		if msg.Role == RoleUser {
			users = append(users, msg)
		}
	}
	return users
}

// Last returns the newest turn, or a zero Message for an empty history.
func (h History) Last() Message {
	if len(h) == 0 {
		return Message{}
	}
	return h[len(h)-1]
}
