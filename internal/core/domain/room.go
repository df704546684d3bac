package domain

import "time"

type (
	RoomID       string
	ConnectionID string
	UserID       string
)

// MemberDescriptor describes one connection's membership in a room.
type MemberDescriptor struct {
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	JoinedAt     time.Time    `json:"joinedAt"`
}

// Room is a named group of connections allowed to exchange signaling
// messages with each other. A connection is a member of at most one
// room at a time; an empty room is eligible for deletion.
type Room struct {
	ID        RoomID             `json:"roomId"`
	Members   []MemberDescriptor `json:"members"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Clone returns a deep copy so callers never share the member slice
// with the directory's own state.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	members := make([]MemberDescriptor, len(r.Members))
	copy(members, r.Members)
	return &Room{
		ID:        r.ID,
		Members:   members,
		CreatedAt: r.CreatedAt,
	}
}

// Member returns the descriptor for the given connection, if present.
func (r *Room) Member(connID ConnectionID) (MemberDescriptor, bool) {
	for _, m := range r.Members {
		if m.ConnectionID == connID {
			return m, true
		}
	}
	return MemberDescriptor{}, false
}

// Others returns the members excluding the given connection.
func (r *Room) Others(connID ConnectionID) []MemberDescriptor {
	others := make([]MemberDescriptor, 0, len(r.Members))
	for _, m := range r.Members {
		if m.ConnectionID != connID {
			others = append(others, m)
		}
	}
	return others
}

// Session is the relay's per-connection record. Created on connect,
// mutated on join/leave, destroyed on disconnect.
type Session struct {
	ConnectionID ConnectionID
	UserID       UserID
	CurrentRoom  RoomID
	JoinedAt     time.Time
}
