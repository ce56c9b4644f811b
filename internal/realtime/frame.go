// Package realtime bridges a client's live voice session to the upstream
// realtime speech service and intercepts the tool calls the model issues
// mid-conversation.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Frame types this core inspects. Every other type is opaque and relayed
// byte-for-byte.
const (
	TypeSessionUpdate = "session.update"
	TypeToolCall      = "tool_call"
	TypeToolResponse  = "tool_response"
)

// frameType extracts the discriminator from a raw JSON frame.
func frameType(data []byte) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("unclassifiable frame: %w", err)
	}
	return envelope.Type, nil
}

// ToolDescriptor is one entry of the tool catalog announced to the upstream
// model in the session configuration frame.
type ToolDescriptor struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// SessionUpdateFrame configures the upstream session once at start.
type SessionUpdateFrame struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

type SessionConfig struct {
	Instructions string           `json:"instructions"`
	Tools        []ToolDescriptor `json:"tools"`
	ToolChoice   string           `json:"tool_choice"`
}

func NewSessionUpdate(instructions string, tools []ToolDescriptor) SessionUpdateFrame {
	return SessionUpdateFrame{
		Type: TypeSessionUpdate,
		Session: SessionConfig{
			Instructions: instructions,
			Tools:        tools,
			ToolChoice:   "auto",
		},
	}
}

// ToolCallFrame is the upstream model invoking a named operation. It is
// consumed exactly once by the dispatcher and never relayed to the client.
type ToolCallFrame struct {
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
}

// ToolResponseFrame answers a tool call on the upstream connection, carrying
// the originating call id so the model can match it regardless of order.
type ToolResponseFrame struct {
	Type    string `json:"type"`
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content any    `json:"content"`
}
