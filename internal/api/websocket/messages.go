package websocket

import (
	"time"

	"github.com/KevinKickass/OpenStudioCore/internal/studio"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Studio events, mirrored from studio.EventType
	MessageTypeRobotUpdate    MessageType = MessageType(studio.EventRobotUpdate)
	MessageTypeRobotMessage   MessageType = MessageType(studio.EventRobotMessage)
	MessageTypeTargetSelected MessageType = MessageType(studio.EventTargetSelected)

	// Sent on connect and on request
	MessageTypeSnapshot MessageType = "snapshot"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"

	MessageTypeError MessageType = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewStudioEventMessage wraps a studio event, keeping the event time.
func NewStudioEventMessage(e studio.Event) Message {
	return Message{
		Type:      MessageType(e.Type),
		Timestamp: e.Time,
		Data:      e,
	}
}

func NewSnapshotMessage(snapshot studio.Snapshot) Message {
	return NewMessage(MessageTypeSnapshot, snapshot)
}

func NewErrorMessage(reason string) Message {
	return NewMessage(MessageTypeError, map[string]string{"reason": reason})
}
