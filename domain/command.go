package domain

// Command is the closed set of inbound client intents. Every variant is
// dispatched through the coordinator's single entry point; the type switch
// there is the one place a new variant must be handled.
type Command interface {
	CommandName() string
}

// Connect and Disconnect are emitted by the transport, not by client payloads.
type Connect struct{}

func (Connect) CommandName() string { return "connect" }

type Disconnect struct{}

func (Disconnect) CommandName() string { return "disconnect" }

type JoinRoom struct {
	Username string `json:"username" validate:"required"`
	Room     string `json:"roomId" validate:"required"`
}

func (JoinRoom) CommandName() string { return "joinRoom" }

type SendMessage struct {
	Username string `json:"username,omitempty"`
	Body     string `json:"message" validate:"required"`
	Room     string `json:"roomId" validate:"required"`
}

func (SendMessage) CommandName() string { return "sendMessage" }

type LeaveRoom struct{}

func (LeaveRoom) CommandName() string { return "leaveRoom" }

type Typing struct {
	Username string `json:"username"`
	Room     string `json:"roomId" validate:"required"`
}

func (Typing) CommandName() string { return "typing" }

type StopTyping struct {
	Room string `json:"roomId" validate:"required"`
}

func (StopTyping) CommandName() string { return "stopTyping" }

type GetRooms struct{}

func (GetRooms) CommandName() string { return "getRooms" }

type CreateRoom struct {
	Room     string `json:"roomId" validate:"required,min=3"`
	RoomName string `json:"roomName" validate:"required"`
}

func (CreateRoom) CommandName() string { return "createRoom" }

type ClearChat struct {
	Room string `json:"roomId" validate:"required"`
}

func (ClearChat) CommandName() string { return "clearChat" }
