// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
)

// Message represents an immutable chat event.
// The ID is for display only; ordering is the position in the room log.
type Message struct {
	ID        uuid.UUID
	Author    string
	Body      string
	Kind      MessageKind
	SenderID  string // originating connection id
	CreatedAt time.Time
}
