package domain

// SessionState is the per-connection ephemeral record. It references a room
// by key only; the room may change or disappear independently, so the key
// must be re-resolved through the registry before use.
type SessionState struct {
	Room     RoomID
	Username string
}

func (s SessionState) InRoom() bool {
	return s.Room != ""
}
