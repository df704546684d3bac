package ports

import (
	"context"

	"pairlink/internal/core/domain"
)

// RoomService owns the room directory's business rules: membership
// invariants, implicit leave on rejoin, empty-room deletion and the
// staleness sweep.
type RoomService interface {
	// Join registers the connection in the room. The caller is expected
	// to have left any previous room first (the relay drives the
	// implicit leave). Returns the room snapshot after the join.
	Join(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error)

	// Leave removes the connection from the room. Returns the remaining
	// room snapshot (nil when the room was deleted).
	Leave(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, error)

	// Members returns a snapshot of the room's member list.
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.MemberDescriptor, error)

	// RoomCount returns the number of active rooms.
	RoomCount(ctx context.Context) (int, error)

	// Sweep deletes rooms that have been empty since before the
	// staleness window and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
