package ports

import (
	"context"
	"time"

	"pairlink/internal/core/domain"
)

// RoomRepository is the room directory store. Every mutation of a
// room's member list is atomic with respect to other callers; the
// returned rooms are snapshots, never shared state.
type RoomRepository interface {
	// AddMember registers the member in the room, creating the room
	// lazily on first join. A member with the same connection ID is
	// replaced in place. Returns the room after the mutation.
	AddMember(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error)

	// RemoveMember removes the connection from the room. Returns the
	// room after the mutation and whether the now-empty room was
	// deleted. Returns domain.ErrRoomNotFound / domain.ErrNotAMember
	// when nothing was removed.
	RemoveMember(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, bool, error)

	// Get returns a snapshot of the room.
	Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error)

	// List returns snapshots of every room.
	List(ctx context.Context) ([]*domain.Room, error)

	// DeleteStale removes rooms with zero members created before the
	// cutoff and returns the IDs it removed.
	DeleteStale(ctx context.Context, cutoff time.Time) ([]domain.RoomID, error)
}
