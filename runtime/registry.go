// Package runtime coordinates rooms, membership, and event propagation.
// It orchestrates the system without containing wire or UI logic.
package runtime

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"chat-hub/domain"
	"chat-hub/errors"
)

const minRoomIDLength = 3

// RoomRegistry owns the set of rooms. It is an explicitly constructed
// instance handed to the coordinator, never a package-level singleton.
// Rooms are never deleted: an emptied room keeps its history.
//
// Mutations flow exclusively through the coordinator goroutine; the lock
// exists for concurrent read-only snapshots (status endpoint). It guards the
// room map only; each Room and MessageLog carries its own lock for the
// member and entry state the snapshots walk into.
type RoomRegistry struct {
	mu        sync.RWMutex
	rooms     map[domain.RoomID]*domain.Room
	retention int
}

func NewRoomRegistry(retention int) *RoomRegistry {
	return &RoomRegistry{
		rooms:     make(map[domain.RoomID]*domain.Room),
		retention: retention,
	}
}

func (r *RoomRegistry) Get(id domain.RoomID) (*domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Create registers a new room. The id must satisfy the minimum-length policy
// and must not collide with an existing id.
func (r *RoomRegistry) Create(id domain.RoomID, name string) (*domain.Room, error) {
	if len(id) < minRoomIDLength {
		return nil, errors.ErrInvalidRoomID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; ok {
		return nil, errors.ErrRoomExists
	}
	room := domain.NewRoom(id, name, r.retention)
	r.rooms[id] = room
	return room, nil
}

// List returns room summaries ordered by creation time, oldest first.
// Two calls with no intervening mutation yield identical results.
func (r *RoomRegistry) List() []domain.RoomSummary {
	r.mu.RLock()
	rooms := lo.Values(r.rooms)
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return lo.Map(rooms, func(room *domain.Room, _ int) domain.RoomSummary {
		return room.Summary()
	})
}

func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// TotalMessages sums retained messages across rooms, for the status endpoint.
func (r *RoomRegistry) TotalMessages() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, room := range r.rooms {
		total += room.Log().Len()
	}
	return total
}
