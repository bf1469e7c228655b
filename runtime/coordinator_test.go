package runtime

import (
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/observability"
)

type coordinatorFixture struct {
	coordinator *Coordinator
	registry    *RoomRegistry
	membership  *MembershipManager
	hub         *BroadcastHub
	sinks       map[string]*captureSink
}

func newCoordinatorFixture(t *testing.T, retention int) *coordinatorFixture {
	t.Helper()
	log := slog.Default()
	stats := observability.NewStats()
	registry := NewRoomRegistry(retention)
	_, err := registry.Create("room1", "Room One")
	require.NoError(t, err)
	_, err = registry.Create("room2", "Room Two")
	require.NoError(t, err)

	hub := NewBroadcastHub(log, stats)
	membership := NewMembershipManager(registry)
	coordinator := NewCoordinator(log, registry, membership, hub, stats, 16, true)

	return &coordinatorFixture{
		coordinator: coordinator,
		registry:    registry,
		membership:  membership,
		hub:         hub,
		sinks:       make(map[string]*captureSink),
	}
}

func (f *coordinatorFixture) connect(connID string) *captureSink {
	sink := &captureSink{}
	f.sinks[connID] = sink
	f.hub.Register(connID, sink)
	f.coordinator.handle(Envelope{ConnID: connID, Cmd: domain.Connect{}})
	return sink
}

func (f *coordinatorFixture) handle(connID string, cmd domain.Command) {
	f.coordinator.handle(Envelope{ConnID: connID, Cmd: cmd})
}

func lastEvent[T event.Event](t *testing.T, s *captureSink) T {
	t.Helper()
	events := s.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if typed, ok := events[i].(T); ok {
			return typed
		}
	}
	var zero T
	require.Failf(t, "event not found", "no %T delivered", zero)
	return zero
}

func hasEvent[T event.Event](s *captureSink) bool {
	for _, e := range s.Events() {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}

func TestCoordinator_Connect_SendsRoomListSnapshot(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)

	sink := f.connect("conn-a")

	update := lastEvent[event.RoomsUpdate](t, sink)
	req.Len(update.Rooms, 2)
}

func TestCoordinator_Join_FirstJoinerGetsOwnership(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	sink := f.connect("conn-a")

	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})

	joined := lastEvent[event.RoomJoined](t, sink)
	req.True(joined.IsOwner)
	req.Equal("room1", joined.Room.ID)
	req.Len(joined.Members, 1)
	req.Empty(joined.History)
}

func TestCoordinator_Join_NotifiesRoomAndRefreshesSummaries(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})

	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	// The joiner is acknowledged directly, without ownership
	joined := lastEvent[event.RoomJoined](t, bob)
	req.False(joined.IsOwner)
	req.Len(joined.Members, 2)

	// The room hears about bob, the actor does not hear about himself
	userJoined := lastEvent[event.UserJoinedRoom](t, alice)
	req.Equal("bob", userJoined.Username)
	req.False(hasEvent[event.UserJoinedRoom](bob))

	// Everyone gets a summary refresh
	update := lastEvent[event.RoomsUpdate](t, alice)
	req.Equal(2, update.Rooms[0].MemberCount)
}

func TestCoordinator_Join_InvalidPayloadEmitsErrorToSenderOnly(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	before := len(alice.Events())

	f.handle("conn-b", domain.JoinRoom{Username: "", Room: "room1"})

	req.True(hasEvent[event.Error](bob))
	req.Len(alice.Events(), before)
}

func TestCoordinator_Join_UnknownRoomEmitsError(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	sink := f.connect("conn-a")

	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "nowhere"})

	req.True(hasEvent[event.Error](sink))
	req.False(f.membership.Session("conn-a").InRoom())
}

func TestCoordinator_Join_SwitchingRoomsAnnouncesDeparture(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	// When bob switches to room2
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room2"})

	// Then room1 hears the departure
	left := lastEvent[event.UserLeftRoom](t, alice)
	req.Equal("bob", left.Username)
	req.Equal("room1", left.Room)

	// And bob is only in room2
	room1, _ := f.registry.Get("room1")
	room2, _ := f.registry.Get("room2")
	req.Equal(1, room1.MemberCount())
	req.Equal(1, room2.MemberCount())
}

func TestCoordinator_SendMessage_BroadcastsToWholeRoom(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	f.handle("conn-b", domain.SendMessage{Body: "hi", Room: "room1"})

	// The sender hears its own message exactly once, via the room broadcast
	fromBob := lastEvent[event.NewMessage](t, bob)
	req.Equal("hi", fromBob.Message.Body)
	req.Equal("bob", fromBob.Message.Author)

	fromAlice := lastEvent[event.NewMessage](t, alice)
	req.Equal(fromBob.Message.ID, fromAlice.Message.ID)

	room1, _ := f.registry.Get("room1")
	req.Equal(1, room1.Log().Len())
}

func TestCoordinator_SendMessage_ToRoomSenderIsNotInIsSilentlyDropped(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room2"})
	aliceBefore := len(alice.Events())
	bobBefore := len(bob.Events())

	// When bob addresses a room he is not in (stale client state)
	f.handle("conn-b", domain.SendMessage{Body: "ghost", Room: "room1"})

	// Then nothing is stored, broadcast, or errored
	room1, _ := f.registry.Get("room1")
	req.Equal(0, room1.Log().Len())
	req.Len(alice.Events(), aliceBefore)
	req.Len(bob.Events(), bobBefore)
}

func TestCoordinator_SendMessage_RetentionBound(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 5)
	f.connect("conn-a")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})

	for i := 1; i <= 6; i++ {
		f.handle("conn-a", domain.SendMessage{Body: strconv.Itoa(i), Room: "room1"})
	}

	room1, _ := f.registry.Get("room1")
	req.Equal(5, room1.Log().Len())
	recent := room1.Log().Recent(5)
	req.Equal("2", recent[0].Body)
	req.Equal("6", recent[4].Body)
}

func TestCoordinator_SendMessage_ModerationCensorsBody(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	moderator, err := moderation.NewModerator([]string{"idiot"}, '*')
	req.NoError(err)
	f.coordinator.WithModerator(moderator)

	sink := f.connect("conn-a")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})

	f.handle("conn-a", domain.SendMessage{Body: "you 1d10t", Room: "room1"})

	msg := lastEvent[event.NewMessage](t, sink)
	req.Equal("you *****", msg.Message.Body)
}

func TestCoordinator_Leave_SuccessionAndNotification(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	// When the owner leaves
	f.handle("conn-a", domain.LeaveRoom{})

	// Then bob hears the departure with the new owner
	left := lastEvent[event.UserLeftRoom](t, bob)
	req.Equal("alice", left.Username)
	req.Equal("bob", left.NewOwner)

	room1, _ := f.registry.Get("room1")
	req.Equal("conn-b", room1.OwnerID())
	req.Equal(1, room1.MemberCount())
}

func TestCoordinator_Leave_WhenNotInARoomIsNoOp(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	stranger := f.connect("conn-b")
	aliceBefore := len(alice.Events())
	strangerBefore := len(stranger.Events())

	f.handle("conn-b", domain.LeaveRoom{})

	// No broadcast, no error, no state change
	req.Len(alice.Events(), aliceBefore)
	req.Len(stranger.Events(), strangerBefore)
	room1, _ := f.registry.Get("room1")
	req.Equal(1, room1.MemberCount())
}

func TestCoordinator_Typing_ReachesRoomExceptSender(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	f.handle("conn-b", domain.Typing{Username: "bob", Room: "room1"})
	f.handle("conn-b", domain.StopTyping{Room: "room1"})

	typing := lastEvent[event.UserTyping](t, alice)
	req.Equal("bob", typing.Username)
	req.True(hasEvent[event.UserStopTyping](alice))
	req.False(hasEvent[event.UserTyping](bob))
}

func TestCoordinator_Typing_OutsideCurrentRoomIsDropped(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room2"})
	before := len(alice.Events())

	// Same membership gate as sendMessage, applied consistently
	f.handle("conn-b", domain.Typing{Username: "bob", Room: "room1"})

	req.Len(alice.Events(), before)
}

func TestCoordinator_CreateRoom_AcksSenderAndRefreshesEveryone(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")

	f.handle("conn-a", domain.CreateRoom{Room: "room3", RoomName: "Room Three"})

	created := lastEvent[event.RoomCreated](t, alice)
	req.Equal("room3", created.Room.ID)
	req.False(hasEvent[event.RoomCreated](bob))

	update := lastEvent[event.RoomsUpdate](t, bob)
	req.Len(update.Rooms, 3)
}

func TestCoordinator_CreateRoom_RejectsShortAndDuplicateIDs(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	sink := f.connect("conn-a")

	f.handle("conn-a", domain.CreateRoom{Room: "ab", RoomName: "Too Short"})
	req.True(hasEvent[event.Error](sink))

	f.handle("conn-a", domain.CreateRoom{Room: "room1", RoomName: "Duplicate"})
	req.Equal(2, f.registry.Count())
}

func TestCoordinator_CreateRoom_DisabledCapability(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	f.coordinator.allowRoomCreation = false
	sink := f.connect("conn-a")

	f.handle("conn-a", domain.CreateRoom{Room: "room3", RoomName: "Room Three"})

	errEvent := lastEvent[event.Error](t, sink)
	req.Equal(errors.ErrRoomCreationDisabled.Error(), errEvent.Message)
	req.Equal(2, f.registry.Count())
}

func TestCoordinator_ClearChat_NonOwnerIsForbidden(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	f.connect("conn-a")
	carol := f.connect("conn-c")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-c", domain.JoinRoom{Username: "carol", Room: "room1"})
	f.handle("conn-a", domain.SendMessage{Body: "keep me", Room: "room1"})

	// When a non-owner attempts the owner-only reset
	f.handle("conn-c", domain.ClearChat{Room: "room1"})

	// Then she gets a Forbidden error and the log is unchanged
	errEvent := lastEvent[event.Error](t, carol)
	req.Contains(errEvent.Message, "owner")
	room1, _ := f.registry.Get("room1")
	req.Equal(1, room1.Log().Len())
}

func TestCoordinator_ClearChat_OwnerClearsAndRoomIsNotified(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})
	f.handle("conn-b", domain.SendMessage{Body: "bye", Room: "room1"})

	f.handle("conn-a", domain.ClearChat{Room: "room1"})

	req.True(hasEvent[event.ChatCleared](alice))
	cleared := lastEvent[event.ChatCleared](t, bob)
	req.Equal("alice", cleared.ClearedBy)
	room1, _ := f.registry.Get("room1")
	req.Equal(0, room1.Log().Len())
}

func TestCoordinator_Disconnect_RunsTheLeavePath(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	f.connect("conn-a")
	bob := f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	f.handle("conn-a", domain.Disconnect{})

	left := lastEvent[event.UserLeftRoom](t, bob)
	req.Equal("alice", left.Username)
	req.Equal("bob", left.NewOwner)
	req.False(f.membership.Session("conn-a").InRoom())
}

func TestCoordinator_Disconnect_WithoutRoomIsTolerated(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	alice := f.connect("conn-a")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.connect("conn-b")
	before := len(alice.Events())

	f.handle("conn-b", domain.Disconnect{})

	req.Len(alice.Events(), before)
}

func newDispatchCoordinator(t *testing.T, bufferSize int) (*Coordinator, *observability.Stats) {
	t.Helper()
	log := slog.Default()
	stats := observability.NewStats()
	registry := NewRoomRegistry(10)
	hub := NewBroadcastHub(log, stats)
	membership := NewMembershipManager(registry)
	return NewCoordinator(log, registry, membership, hub, stats, bufferSize, true), stats
}

func TestCoordinator_Dispatch_FullBufferDropsChatTraffic(t *testing.T) {
	req := require.New(t)
	c, stats := newDispatchCoordinator(t, 1)

	// Given a buffer already holding one command and no actor draining it
	c.Dispatch(Envelope{ConnID: "conn-a", Cmd: domain.SendMessage{Body: "first", Room: "room1"}})

	// When more chat traffic arrives
	c.Dispatch(Envelope{ConnID: "conn-a", Cmd: domain.SendMessage{Body: "second", Room: "room1"}})

	// Then the overflow is dropped and counted
	req.Equal(uint64(1), stats.Snapshot().CommandsDropped)
	req.Len(c.commands, 1)
}

func TestCoordinator_Dispatch_DisconnectSurvivesFullBuffer(t *testing.T) {
	req := require.New(t)
	c, stats := newDispatchCoordinator(t, 1)

	// Given a full buffer
	c.Dispatch(Envelope{ConnID: "conn-a", Cmd: domain.SendMessage{Body: "filler", Room: "room1"}})

	// When the connection disconnects
	delivered := make(chan struct{})
	go func() {
		c.Dispatch(Envelope{ConnID: "conn-a", Cmd: domain.Disconnect{}})
		close(delivered)
	}()

	// Then the disconnect waits for the actor instead of being dropped
	first := <-c.commands
	req.IsType(domain.SendMessage{}, first.Cmd)
	second := <-c.commands
	req.IsType(domain.Disconnect{}, second.Cmd)
	<-delivered
	req.Equal(uint64(0), stats.Snapshot().CommandsDropped)
}

func TestCoordinator_StatusSnapshotsConcurrentWithTraffic(t *testing.T) {
	f := newCoordinatorFixture(t, 50)
	f.connect("conn-a")
	f.connect("conn-b")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})

	// A status reader walks the summaries while the actor mutates members
	// and message logs; the race detector flags any unguarded access.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			f.registry.List()
			f.registry.TotalMessages()
		}
	}()

	for i := 0; i < 200; i++ {
		f.handle("conn-a", domain.SendMessage{Body: strconv.Itoa(i), Room: "room1"})
		f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})
		f.handle("conn-b", domain.LeaveRoom{})
	}
	<-done
}

func TestCoordinator_JoinHistoryReplay(t *testing.T) {
	req := require.New(t)
	f := newCoordinatorFixture(t, 100)
	f.connect("conn-a")
	f.handle("conn-a", domain.JoinRoom{Username: "alice", Room: "room1"})
	f.handle("conn-a", domain.SendMessage{Body: "first", Room: "room1"})
	f.handle("conn-a", domain.SendMessage{Body: "second", Room: "room1"})

	bob := f.connect("conn-b")
	f.handle("conn-b", domain.JoinRoom{Username: "bob", Room: "room1"})

	joined := lastEvent[event.RoomJoined](t, bob)
	req.Len(joined.History, 2)
	req.Equal("first", joined.History[0].Body)
	req.Equal("second", joined.History[1].Body)
}
