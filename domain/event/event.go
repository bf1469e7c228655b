// Package event defines the outbound events pushed to connected clients.
// Each event carries its wire name and a JSON-shaped payload.
package event

import (
	"time"

	"github.com/samber/lo"

	"chat-hub/domain"
)

type Event interface {
	EventName() string
}

type MemberInfo struct {
	Username string    `json:"username"`
	IsOwner  bool      `json:"isOwner"`
	JoinedAt time.Time `json:"joinedAt"`
}

type MessageInfo struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"message"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToMemberInfos(members []*domain.Member) []MemberInfo {
	return lo.Map(members, func(m *domain.Member, _ int) MemberInfo {
		return MemberInfo{Username: m.Username, IsOwner: m.IsOwner, JoinedAt: m.JoinedAt}
	})
}

func ToMessageInfos(messages []domain.Message) []MessageInfo {
	return lo.Map(messages, func(m domain.Message, _ int) MessageInfo {
		return MessageInfo{
			ID:        m.ID.String(),
			Author:    m.Author,
			Body:      m.Body,
			Kind:      string(m.Kind),
			CreatedAt: m.CreatedAt,
		}
	})
}

// RoomsUpdate is the full room-list snapshot. It is derived state: delivering
// it twice, or out of order across sessions, cannot desynchronize clients.
type RoomsUpdate struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

func (RoomsUpdate) EventName() string { return "roomsUpdate" }

// RoomJoined is the direct acknowledgment to a joining connection.
type RoomJoined struct {
	Room    domain.RoomSummary `json:"room"`
	Members []MemberInfo       `json:"members"`
	IsOwner bool               `json:"isOwner"`
	History []MessageInfo      `json:"history"`
}

func (RoomJoined) EventName() string { return "roomJoined" }

type UserJoinedRoom struct {
	Room     string       `json:"roomId"`
	Username string       `json:"username"`
	Members  []MemberInfo `json:"members"`
}

func (UserJoinedRoom) EventName() string { return "userJoinedRoom" }

type UserLeftRoom struct {
	Room     string       `json:"roomId"`
	Username string       `json:"username"`
	NewOwner string       `json:"newOwner,omitempty"`
	Members  []MemberInfo `json:"members"`
}

func (UserLeftRoom) EventName() string { return "userLeftRoom" }

type NewMessage struct {
	Room    string      `json:"roomId"`
	Message MessageInfo `json:"message"`
}

func (NewMessage) EventName() string { return "newMessage" }

type UserTyping struct {
	Room     string `json:"roomId"`
	Username string `json:"username"`
}

func (UserTyping) EventName() string { return "userTyping" }

type UserStopTyping struct {
	Room string `json:"roomId"`
}

func (UserStopTyping) EventName() string { return "userStopTyping" }

type RoomCreated struct {
	Room domain.RoomSummary `json:"room"`
}

func (RoomCreated) EventName() string { return "roomCreated" }

type ChatCleared struct {
	Room      string `json:"roomId"`
	ClearedBy string `json:"clearedBy"`
}

func (ChatCleared) EventName() string { return "chatCleared" }

type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() string { return "error" }
