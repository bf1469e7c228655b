// Package ws is the websocket transport: it frames events as JSON envelopes
// and bridges connections to the coordination core through the chat service.
package ws

import (
	"encoding/json"
	"fmt"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
)

// Envelope is the wire frame in both directions:
// {"event": "<name>", "payload": {...}}.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeCommand parses an inbound frame into a typed command. Unknown event
// names and malformed payloads are rejected, never propagated.
func DecodeCommand(raw []byte) (domain.Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope", errors.ErrInvalidRequest)
	}

	switch env.Event {
	case domain.JoinRoom{}.CommandName():
		return decodeAs[domain.JoinRoom](env.Payload)
	case domain.SendMessage{}.CommandName():
		return decodeAs[domain.SendMessage](env.Payload)
	case domain.LeaveRoom{}.CommandName():
		return domain.LeaveRoom{}, nil
	case domain.Typing{}.CommandName():
		return decodeAs[domain.Typing](env.Payload)
	case domain.StopTyping{}.CommandName():
		return decodeAs[domain.StopTyping](env.Payload)
	case domain.GetRooms{}.CommandName():
		return domain.GetRooms{}, nil
	case domain.CreateRoom{}.CommandName():
		return decodeAs[domain.CreateRoom](env.Payload)
	case domain.ClearChat{}.CommandName():
		return decodeAs[domain.ClearChat](env.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", errors.ErrInvalidRequest, env.Event)
	}
}

func decodeAs[T domain.Command](raw json.RawMessage) (domain.Command, error) {
	var cmd T
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: missing payload", errors.ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", errors.ErrInvalidRequest)
	}
	return cmd, nil
}

// EncodeEvent frames an outbound event with its wire name.
func EncodeEvent(e event.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: e.EventName(), Payload: payload})
}
