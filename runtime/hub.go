package runtime

import (
	"log/slog"
	"sync"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/observability"
)

type Set map[string]struct{}

// BroadcastHub resolves audiences and delivers events to connection sinks.
// It performs a two-step lookup: room membership tags identify connection ids,
// and the sessions map resolves those ids into actual sinks. Delivery is
// best-effort; a failed delivery is counted, never retried.
//
// BroadcastHub is safe for concurrent use by multiple goroutines.
type BroadcastHub struct {
	mu          sync.RWMutex
	log         *slog.Logger
	sinks       map[string]contract.EventSink
	roomMembers map[domain.RoomID]Set
	stats       *observability.Stats
}

func NewBroadcastHub(log *slog.Logger, stats *observability.Stats) *BroadcastHub {
	return &BroadcastHub{
		log:         log,
		sinks:       make(map[string]contract.EventSink),
		roomMembers: make(map[domain.RoomID]Set),
		stats:       stats,
	}
}

// Register attaches a connection's sink. It must happen before any command
// from that connection is dispatched.
func (h *BroadcastHub) Register(connID string, sink contract.EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[connID] = sink
}

// Unregister removes the connection's sink and any room tag left behind.
func (h *BroadcastHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, connID)
	for roomID, members := range h.roomMembers {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.roomMembers, roomID)
		}
	}
}

// Tag marks the connection as an audience member of the room.
func (h *BroadcastHub) Tag(connID string, roomID domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.roomMembers[roomID]; !ok {
		h.roomMembers[roomID] = make(Set)
	}
	h.roomMembers[roomID][connID] = struct{}{}
}

// Untag removes the room tag. Empty sets are removed to avoid leaking room
// entries over time.
func (h *BroadcastHub) Untag(connID string, roomID domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.roomMembers[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.roomMembers, roomID)
		}
	}
}

// ToAll delivers to every currently connected session.
func (h *BroadcastHub) ToAll(e event.Event) {
	h.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(h.sinks))
	for _, sink := range h.sinks {
		sinks = append(sinks, sink)
	}
	h.mu.RUnlock()

	h.deliver(sinks, e)
}

// ToRoom delivers to every member currently in the room.
func (h *BroadcastHub) ToRoom(roomID domain.RoomID, e event.Event) {
	h.deliver(h.roomSinks(roomID, ""), e)
}

// ToRoomExceptSender delivers to the room minus the actor, who already knows
// the outcome from its direct response.
func (h *BroadcastHub) ToRoomExceptSender(roomID domain.RoomID, senderID string, e event.Event) {
	h.deliver(h.roomSinks(roomID, senderID), e)
}

// ToSender is the direct reply/error channel.
func (h *BroadcastHub) ToSender(connID string, e event.Event) {
	h.mu.RLock()
	sink, ok := h.sinks[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver([]contract.EventSink{sink}, e)
}

func (h *BroadcastHub) roomSinks(roomID domain.RoomID, excluded string) []contract.EventSink {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.roomMembers[roomID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if connID == excluded {
			continue
		}
		if sink, exists := h.sinks[connID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (h *BroadcastHub) deliver(sinks []contract.EventSink, e event.Event) {
	for _, sink := range sinks {
		if err := sink.Consume(e); err != nil {
			h.stats.IncrDroppedEvent()
			h.log.Debug("Event dropped", "event", e.EventName(), "error", err)
			continue
		}
		h.stats.IncrDelivered()
	}
}
