package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/errors"
)

func newTestMembership(t *testing.T) (*MembershipManager, *RoomRegistry) {
	t.Helper()
	registry := NewRoomRegistry(100)
	_, err := registry.Create("room1", "Room One")
	require.NoError(t, err)
	_, err = registry.Create("room2", "Room Two")
	require.NoError(t, err)
	return NewMembershipManager(registry), registry
}

func TestMembership_Join_FirstJoinerOwnsTheRoom(t *testing.T) {
	req := require.New(t)
	membership, _ := newTestMembership(t)

	// When alice joins an ownerless room
	result, err := membership.Join("conn-a", "alice", "room1")

	// Then she becomes owner
	req.NoError(err)
	req.True(result.Member.IsOwner)
	req.Equal("conn-a", result.Room.OwnerID())
	req.Nil(result.Departure)

	// And her session points at the room
	session := membership.Session("conn-a")
	req.Equal(domain.RoomID("room1"), session.Room)
	req.Equal("alice", session.Username)
}

func TestMembership_Join_SecondJoinerIsNotOwner(t *testing.T) {
	req := require.New(t)
	membership, _ := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")

	result, err := membership.Join("conn-b", "bob", "room1")

	req.NoError(err)
	req.False(result.Member.IsOwner)
	members := result.Room.Members()
	req.Len(members, 2)
	req.Equal("alice", members[0].Username)
	req.Equal("bob", members[1].Username)
}

func TestMembership_Join_EnforcesGlobalExclusivity(t *testing.T) {
	req := require.New(t)
	membership, registry := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")

	// When alice joins another room
	result, err := membership.Join("conn-a", "alice", "room2")

	// Then she left room1 implicitly
	req.NoError(err)
	req.NotNil(result.Departure)
	req.Equal(domain.RoomID("room1"), result.Departure.Room.ID)

	room1, _ := registry.Get("room1")
	room2, _ := registry.Get("room2")
	req.Equal(0, room1.MemberCount())
	req.Equal(1, room2.MemberCount())
	req.Equal(domain.RoomID("room2"), membership.Session("conn-a").Room)
}

func TestMembership_Join_ValidatesInput(t *testing.T) {
	req := require.New(t)
	membership, _ := newTestMembership(t)

	_, err := membership.Join("conn-a", "   ", "room1")
	req.ErrorIs(err, errors.ErrInvalidRequest)

	_, err = membership.Join("conn-a", "alice", "")
	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestMembership_Join_UnknownRoom(t *testing.T) {
	req := require.New(t)
	membership, _ := newTestMembership(t)

	_, err := membership.Join("conn-a", "alice", "nowhere")

	req.ErrorIs(err, errors.ErrRoomNotFound)
	req.False(membership.Session("conn-a").InRoom())
}

func TestMembership_Join_UnknownRoomStillDetachesPreviousRoom(t *testing.T) {
	req := require.New(t)
	membership, registry := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")

	// When a join to a missing room follows
	result, err := membership.Join("conn-a", "alice", "nowhere")

	// Then the implicit leave already happened and is reported for
	// notification purposes
	req.ErrorIs(err, errors.ErrRoomNotFound)
	req.NotNil(result)
	req.NotNil(result.Departure)

	room1, _ := registry.Get("room1")
	req.Equal(0, room1.MemberCount())
	req.False(membership.Session("conn-a").InRoom())
}

func TestMembership_Leave_OwnerSuccession(t *testing.T) {
	req := require.New(t)
	membership, registry := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")
	_, _ = membership.Join("conn-b", "bob", "room1")

	// When the owner leaves
	departure, err := membership.Leave("conn-a")

	// Then ownership passes to the earliest remaining member
	req.NoError(err)
	req.Equal("alice", departure.Member.Username)
	req.NotNil(departure.NewOwner)
	req.Equal("bob", departure.NewOwner.Username)

	room1, _ := registry.Get("room1")
	req.Equal("conn-b", room1.OwnerID())
	req.False(membership.Session("conn-a").InRoom())
}

func TestMembership_Leave_NotInARoom(t *testing.T) {
	req := require.New(t)
	membership, _ := newTestMembership(t)

	_, err := membership.Leave("conn-zzz")

	req.ErrorIs(err, errors.ErrNotAMember)
}

func TestMembership_RejoinAfterDeposalDoesNotRestoreOwnership(t *testing.T) {
	req := require.New(t)
	membership, registry := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")
	_, _ = membership.Join("conn-b", "bob", "room1")

	// Given alice was deposed by leaving
	_, _ = membership.Leave("conn-a")

	// When she rejoins
	result, err := membership.Join("conn-a", "alice", "room1")

	// Then bob keeps the room
	req.NoError(err)
	req.False(result.Member.IsOwner)
	room1, _ := registry.Get("room1")
	req.Equal("conn-b", room1.OwnerID())
}

func TestMembership_RejoiningSameRoomIsIdempotentForMembership(t *testing.T) {
	req := require.New(t)
	membership, registry := newTestMembership(t)
	_, _ = membership.Join("conn-a", "alice", "room1")
	_, _ = membership.Join("conn-b", "bob", "room1")

	// When bob joins the room he is already in
	result, err := membership.Join("conn-b", "bob", "room1")

	// Then the leave+join sequence leaves one bob, now at the tail
	req.NoError(err)
	req.NotNil(result.Departure)
	room1, _ := registry.Get("room1")
	req.Equal(2, room1.MemberCount())
	members := room1.Members()
	req.Equal("alice", members[0].Username)
	req.Equal("bob", members[1].Username)
}
