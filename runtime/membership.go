package runtime

import (
	"strings"
	"sync"
	"time"

	"chat-hub/domain"
	"chat-hub/errors"
)

// MembershipManager enforces the one-room-per-connection invariant and
// ownership succession. Exclusivity lives here, not in Room, because a join
// may have to undo a membership held in a different room.
type MembershipManager struct {
	mu       sync.RWMutex
	registry *RoomRegistry
	sessions map[string]*domain.SessionState
}

// JoinResult is what the joining client needs to render room and membership.
// Departure is non-nil when the join implicitly left another room.
type JoinResult struct {
	Room      *domain.Room
	Member    *domain.Member
	Departure *Departure
}

// Departure describes a completed leave for notification purposes.
type Departure struct {
	Room     *domain.Room
	Member   *domain.Member
	NewOwner *domain.Member
}

func NewMembershipManager(registry *RoomRegistry) *MembershipManager {
	return &MembershipManager{
		registry: registry,
		sessions: make(map[string]*domain.SessionState),
	}
}

// Join places the connection in the target room. A connection already present
// in any room is removed there first; the returned Departure carries what the
// old room must be told.
func (m *MembershipManager) Join(connID, username string, roomID domain.RoomID) (*JoinResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || roomID == "" {
		return nil, errors.ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	departure := m.leaveLocked(connID)

	room, ok := m.registry.Get(roomID)
	if !ok {
		// The implicit leave above already happened; callers must still
		// notify the old room even on RoomNotFound.
		if departure != nil {
			return &JoinResult{Departure: departure}, errors.ErrRoomNotFound
		}
		return nil, errors.ErrRoomNotFound
	}

	member := &domain.Member{
		ConnID:   connID,
		Username: username,
		JoinedAt: time.Now().UTC(),
	}
	room.AddMember(member)

	m.sessions[connID] = &domain.SessionState{Room: roomID, Username: username}

	return &JoinResult{Room: room, Member: member, Departure: departure}, nil
}

// Leave removes the connection from its current room, if any. It tolerates
// connections that are not in a room and stale room references.
func (m *MembershipManager) Leave(connID string) (*Departure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	departure := m.leaveLocked(connID)
	if departure == nil {
		return nil, errors.ErrNotAMember
	}
	return departure, nil
}

func (m *MembershipManager) leaveLocked(connID string) *Departure {
	session, ok := m.sessions[connID]
	if !ok || !session.InRoom() {
		delete(m.sessions, connID)
		return nil
	}
	delete(m.sessions, connID)

	room, ok := m.registry.Get(session.Room)
	if !ok {
		// Stale room key: the session referenced a room the registry no
		// longer knows. Nothing to notify.
		return nil
	}

	departed, successor, ok := room.RemoveMember(connID)
	if !ok {
		return nil
	}
	return &Departure{Room: room, Member: departed, NewOwner: successor}
}

// Session returns the connection's current state. The zero value means the
// connection is known to no room.
func (m *MembershipManager) Session(connID string) domain.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[connID]; ok {
		return *s
	}
	return domain.SessionState{}
}

func (m *MembershipManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
