package services

import (
	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/runtime"
)

// IChatService is the surface the transport layer talks to. The transport
// never touches rooms or sessions directly; it registers a sink and funnels
// decoded commands through here.
type IChatService interface {
	Connect(connID string, sink contract.EventSink)
	Handle(connID string, cmd domain.Command)
	Disconnect(connID string)
}

type ChatService struct {
	coordinator *runtime.Coordinator
	hub         *runtime.BroadcastHub
}

func NewChatService(coordinator *runtime.Coordinator, hub *runtime.BroadcastHub) *ChatService {
	return &ChatService{coordinator: coordinator, hub: hub}
}

// Connect registers the sink before the Connect command is enqueued, so the
// initial room-list snapshot has somewhere to land.
func (s *ChatService) Connect(connID string, sink contract.EventSink) {
	s.hub.Register(connID, sink)
	s.coordinator.Dispatch(runtime.Envelope{ConnID: connID, Cmd: domain.Connect{}})
}

func (s *ChatService) Handle(connID string, cmd domain.Command) {
	s.coordinator.Dispatch(runtime.Envelope{ConnID: connID, Cmd: cmd})
}

// Disconnect goes through the same single-writer path as an explicit leave;
// the hub unregistration happens inside the handler to preserve ordering with
// any commands still in flight.
func (s *ChatService) Disconnect(connID string) {
	s.coordinator.Dispatch(runtime.Envelope{ConnID: connID, Cmd: domain.Disconnect{}})
}
