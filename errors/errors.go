package errors

import "fmt"

var (
	ErrInvalidRequest       = fmt.Errorf("invalid request")
	ErrRoomNotFound         = fmt.Errorf("room not found")
	ErrRoomExists           = fmt.Errorf("room already exists")
	ErrInvalidRoomID        = fmt.Errorf("room id must be at least 3 characters")
	ErrNotAMember           = fmt.Errorf("not a member of the room")
	ErrRoomCreationDisabled = fmt.Errorf("room creation is disabled")
	ErrForbidden            = fmt.Errorf("operation reserved to the room owner")
	ErrSlowConsumer         = fmt.Errorf("consumer too slow, event dropped")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrEmptyWords           = fmt.Errorf("no words have been found")
)
