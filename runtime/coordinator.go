package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
	"chat-hub/observability"
)

// historyReplaySize is how many retained messages a joining client receives.
const historyReplaySize = 50

// Envelope pairs an inbound command with the connection that sent it.
type Envelope struct {
	ConnID string
	Cmd    domain.Command
}

// Coordinator is the single-writer actor. Every inbound event, from any
// connection, is funneled through one channel and handled to completion by
// one goroutine, so no two handlers ever mutate room state concurrently.
type Coordinator struct {
	log        *slog.Logger
	registry   *RoomRegistry
	membership *MembershipManager
	hub        *BroadcastHub
	moderator  *moderation.Moderator // nil when moderation is disabled
	stats      *observability.Stats
	validate   *validator.Validate

	commands          chan Envelope
	allowRoomCreation bool
}

func NewCoordinator(log *slog.Logger, registry *RoomRegistry, membership *MembershipManager,
	hub *BroadcastHub, stats *observability.Stats, bufferSize int, allowRoomCreation bool) *Coordinator {
	return &Coordinator{
		log:               log,
		registry:          registry,
		membership:        membership,
		hub:               hub,
		stats:             stats,
		validate:          validator.New(),
		commands:          make(chan Envelope, bufferSize),
		allowRoomCreation: allowRoomCreation,
	}
}

// WithModerator enables censored-word filtering on message bodies.
func (c *Coordinator) WithModerator(m moderation.Moderator) *Coordinator {
	c.moderator = &m
	return c
}

// Dispatch enqueues a command for the actor. Chat traffic never blocks the
// transport: a full buffer drops the command and counts it. Lifecycle
// commands are never dropped — a lost disconnect would leave a dead
// connection in the member sequence (possibly as owner) and its sink in the
// hub until restart, so those block until the actor drains the buffer.
func (c *Coordinator) Dispatch(env Envelope) {
	switch env.Cmd.(type) {
	case domain.Disconnect, domain.LeaveRoom:
		c.commands <- env
		return
	}

	select {
	case c.commands <- env:
	default:
		c.stats.IncrDroppedCommand()
		c.log.Warn(fmt.Sprintf("Command channel full, dropping %s", env.Cmd.CommandName()))
	}
}

func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Stopping coordinator")
			return ctx.Err()
		case env, ok := <-c.commands:
			if !ok {
				return nil
			}
			c.handle(env)
			c.stats.IncrCommands()
		}
	}
}

// handle runs one command to completion. The switch is exhaustive over the
// closed command set; an unknown variant is a programming error.
func (c *Coordinator) handle(env Envelope) {
	switch cmd := env.Cmd.(type) {
	case domain.Connect:
		c.handleConnect(env.ConnID)
	case domain.Disconnect:
		c.handleDisconnect(env.ConnID)
	case domain.JoinRoom:
		c.handleJoin(env.ConnID, cmd)
	case domain.SendMessage:
		c.handleSendMessage(env.ConnID, cmd)
	case domain.LeaveRoom:
		c.handleLeave(env.ConnID)
	case domain.Typing:
		c.handleTyping(env.ConnID, cmd)
	case domain.StopTyping:
		c.handleStopTyping(env.ConnID, cmd)
	case domain.GetRooms:
		c.hub.ToSender(env.ConnID, event.RoomsUpdate{Rooms: c.registry.List()})
	case domain.CreateRoom:
		c.handleCreateRoom(env.ConnID, cmd)
	case domain.ClearChat:
		c.handleClearChat(env.ConnID, cmd)
	default:
		c.log.Warn(fmt.Sprintf("Unhandled command %s", env.Cmd.CommandName()))
	}
}

func (c *Coordinator) handleConnect(connID string) {
	c.stats.ConnectionOpened()
	c.hub.ToSender(connID, event.RoomsUpdate{Rooms: c.registry.List()})
}

func (c *Coordinator) handleDisconnect(connID string) {
	c.stats.ConnectionClosed()

	departure, err := c.membership.Leave(connID)
	// Unregister before broadcasting so the departed sink is never targeted.
	c.hub.Unregister(connID)
	if err != nil {
		// The connection was not in a room; nothing to announce.
		return
	}
	c.announceDeparture(departure)
	c.hub.ToAll(event.RoomsUpdate{Rooms: c.registry.List()})
}

func (c *Coordinator) handleJoin(connID string, cmd domain.JoinRoom) {
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRequest.Error()})
		return
	}

	result, err := c.membership.Join(connID, cmd.Username, domain.RoomID(cmd.Room))
	if err != nil {
		// A failed join may still have detached the connection from its
		// previous room; that room must hear about it either way.
		if result != nil && result.Departure != nil {
			c.hub.Untag(connID, result.Departure.Room.ID)
			c.announceDeparture(result.Departure)
			c.hub.ToAll(event.RoomsUpdate{Rooms: c.registry.List()})
		}
		c.hub.ToSender(connID, event.Error{Message: err.Error()})
		return
	}

	if result.Departure != nil {
		c.hub.Untag(connID, result.Departure.Room.ID)
		c.announceDeparture(result.Departure)
	}

	room := result.Room
	c.hub.Tag(connID, room.ID)

	c.hub.ToSender(connID, event.RoomJoined{
		Room:    room.Summary(),
		Members: event.ToMemberInfos(room.Members()),
		IsOwner: result.Member.IsOwner,
		History: event.ToMessageInfos(room.Log().Recent(historyReplaySize)),
	})
	c.hub.ToRoomExceptSender(room.ID, connID, event.UserJoinedRoom{
		Room:     string(room.ID),
		Username: result.Member.Username,
		Members:  event.ToMemberInfos(room.Members()),
	})
	c.hub.ToAll(event.RoomsUpdate{Rooms: c.registry.List()})
}

func (c *Coordinator) handleLeave(connID string) {
	departure, err := c.membership.Leave(connID)
	if err != nil {
		// Leaving while in no room is a no-op, not an error.
		c.log.Debug("Leave ignored, connection not in a room", "conn_id", connID)
		return
	}
	c.hub.Untag(connID, departure.Room.ID)
	c.announceDeparture(departure)
	// The global refresh doubles as the ack: the leaver is back on the room
	// list and receives the updated summaries like everyone else.
	c.hub.ToAll(event.RoomsUpdate{Rooms: c.registry.List()})
}

func (c *Coordinator) announceDeparture(d *Departure) {
	newOwner := ""
	if d.NewOwner != nil {
		newOwner = d.NewOwner.Username
	}
	c.hub.ToRoomExceptSender(d.Room.ID, d.Member.ConnID, event.UserLeftRoom{
		Room:     string(d.Room.ID),
		Username: d.Member.Username,
		NewOwner: newOwner,
		Members:  event.ToMemberInfos(d.Room.Members()),
	})
}

func (c *Coordinator) handleSendMessage(connID string, cmd domain.SendMessage) {
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRequest.Error()})
		return
	}

	session := c.membership.Session(connID)
	if !session.InRoom() || session.Room != domain.RoomID(cmd.Room) {
		// A message racing a room switch addresses a room the sender is no
		// longer in. Dropped without an error, same policy as typing.
		c.log.Debug("Message for a room the sender is not in, dropping",
			"conn_id", connID, "room", cmd.Room)
		return
	}

	room, ok := c.registry.Get(session.Room)
	if !ok {
		return
	}

	body := cmd.Body
	if c.moderator != nil {
		censored, found := c.moderator.Censor(body)
		if len(found) > 0 {
			info := whatlanggo.Detect(body)
			c.log.Warn("Censored message",
				"author", session.Username,
				"room", cmd.Room,
				"lang", info.Lang.Iso6391(),
				"matches", len(found))
			body = censored
		}
	}

	msg := domain.Message{
		ID:        uuid.New(),
		Author:    session.Username,
		Body:      body,
		Kind:      domain.KindUser,
		SenderID:  connID,
		CreatedAt: time.Now().UTC(),
	}
	room.Log().Append(msg)

	// The sender hears its own message through the room broadcast, keeping a
	// single source of truth for ordering and sanitization.
	c.hub.ToRoom(room.ID, event.NewMessage{
		Room:    string(room.ID),
		Message: event.ToMessageInfos([]domain.Message{msg})[0],
	})
}

func (c *Coordinator) handleTyping(connID string, cmd domain.Typing) {
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRequest.Error()})
		return
	}
	session := c.membership.Session(connID)
	if !session.InRoom() || session.Room != domain.RoomID(cmd.Room) {
		return
	}
	c.hub.ToRoomExceptSender(session.Room, connID, event.UserTyping{
		Room:     cmd.Room,
		Username: session.Username,
	})
}

func (c *Coordinator) handleStopTyping(connID string, cmd domain.StopTyping) {
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRequest.Error()})
		return
	}
	session := c.membership.Session(connID)
	if !session.InRoom() || session.Room != domain.RoomID(cmd.Room) {
		return
	}
	c.hub.ToRoomExceptSender(session.Room, connID, event.UserStopTyping{Room: cmd.Room})
}

func (c *Coordinator) handleCreateRoom(connID string, cmd domain.CreateRoom) {
	if !c.allowRoomCreation {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrRoomCreationDisabled.Error()})
		return
	}
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRoomID.Error()})
		return
	}

	room, err := c.registry.Create(domain.RoomID(cmd.Room), cmd.RoomName)
	if err != nil {
		c.hub.ToSender(connID, event.Error{Message: err.Error()})
		return
	}

	c.log.Info("Room created", "room", cmd.Room, "by", connID)
	c.hub.ToSender(connID, event.RoomCreated{Room: room.Summary()})
	c.hub.ToAll(event.RoomsUpdate{Rooms: c.registry.List()})
}

func (c *Coordinator) handleClearChat(connID string, cmd domain.ClearChat) {
	if err := c.validate.Struct(cmd); err != nil {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrInvalidRequest.Error()})
		return
	}

	session := c.membership.Session(connID)
	if !session.InRoom() || session.Room != domain.RoomID(cmd.Room) {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrNotAMember.Error()})
		return
	}
	room, ok := c.registry.Get(session.Room)
	if !ok {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrRoomNotFound.Error()})
		return
	}
	if !room.IsOwner(connID) {
		c.hub.ToSender(connID, event.Error{Message: errors.ErrForbidden.Error()})
		return
	}

	room.Log().Clear()
	cleared := event.ChatCleared{Room: cmd.Room, ClearedBy: session.Username}
	c.hub.ToSender(connID, cleared)
	c.hub.ToRoomExceptSender(room.ID, connID, cleared)
}
