package domain

import (
	"sync"
	"time"
)

type RoomID string

// Room is a named container for membership and message history.
// The owner is stored as a connection id, never as a pointer, and is
// re-resolved against current members on each ownership check.
//
// Mutations come from the coordinator goroutine only; the lock exists so the
// status endpoint can take summary snapshots without racing those writes.
type Room struct {
	ID        RoomID
	Name      string
	CreatedAt time.Time

	mu      sync.RWMutex
	members []*Member // insertion order = join order
	ownerID string
	log     *MessageLog
}

func NewRoom(id RoomID, name string, retention int) *Room {
	return &Room{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		log:       NewMessageLog(retention),
	}
}

func (r *Room) Log() *MessageLog {
	return r.log
}

// Members returns the current member sequence in join order.
func (r *Room) Members() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// OwnerID returns the owner's connection id, or "" when the room is ownerless.
func (r *Room) OwnerID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerID
}

// OwnerName resolves the owner id against current members.
// A stale owner id resolves to the empty string.
func (r *Room) OwnerName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if owner, ok := r.findMember(r.ownerID); ok {
		return owner.Username
	}
	return ""
}

func (r *Room) IsOwner(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return connID != "" && r.ownerID == connID
}

func (r *Room) FindMember(connID string) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findMember(connID)
}

func (r *Room) findMember(connID string) (*Member, bool) {
	for _, m := range r.members {
		if m.ConnID == connID {
			return m, true
		}
	}
	return nil, false
}

// AddMember appends a member to the sequence and applies the ownership rule:
// an ownerless room belongs to the joiner, and a member whose connection id
// matches the stored owner id gets its owner flag restored on rejoin.
func (r *Room) AddMember(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ownerID == "" {
		r.ownerID = m.ConnID
	}
	m.IsOwner = r.ownerID == m.ConnID
	r.members = append(r.members, m)
}

// RemoveMember removes the member matching connID, preserving the order of
// the remaining sequence. When the owner departs, the earliest-joined
// remaining member succeeds; an emptied room becomes ownerless but persists.
// The second return value is the successor, nil when ownership did not move.
func (r *Room) RemoveMember(connID string) (*Member, *Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, m := range r.members {
		if m.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, false
	}

	departed := r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)

	var successor *Member
	if departed.ConnID == r.ownerID {
		if len(r.members) > 0 {
			successor = r.members[0]
			successor.IsOwner = true
			r.ownerID = successor.ConnID
		} else {
			r.ownerID = ""
		}
	}
	return departed, successor, true
}
