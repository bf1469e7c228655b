package domain

// RoomSummary is the aggregate view of a room used for room lists and the
// status endpoint. It is recomputed from registry state on demand, never
// patched incrementally.
type RoomSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MemberCount  int    `json:"memberCount"`
	MessageCount int    `json:"messageCount"`
	Owner        string `json:"owner,omitempty"`
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:           string(r.ID),
		Name:         r.Name,
		MemberCount:  r.MemberCount(),
		MessageCount: r.log.Len(),
		Owner:        r.OwnerName(),
	}
}
