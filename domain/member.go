package domain

import "time"

// Member is one connection's presence record inside a room.
// A connection holds at most one Member across all rooms at any instant.
type Member struct {
	ConnID   string
	Username string
	IsOwner  bool
	JoinedAt time.Time
}
