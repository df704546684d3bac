package memory

import (
	"context"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
)

// MemoryRoomRepository keeps the room directory in process memory.
// Lifetime equals process uptime; nothing is persisted. All mutations
// run under the lock so no reader ever observes a torn member list.
type MemoryRoomRepository struct {
	rooms map[domain.RoomID]*domain.Room
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]*domain.Room),
	}
}

func (r *MemoryRoomRepository) AddMember(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		room = &domain.Room{
			ID:        roomID,
			CreatedAt: time.Now(),
		}
		r.rooms[roomID] = room
	}

	// Rejoin from the same connection replaces the descriptor so a
	// connection never appears in the member list twice.
	replaced := false
	for i, m := range room.Members {
		if m.ConnectionID == member.ConnectionID {
			room.Members[i] = member
			replaced = true
			break
		}
	}
	if !replaced {
		room.Members = append(room.Members, member)
	}

	return room.Clone(), nil
}

func (r *MemoryRoomRepository) RemoveMember(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, false, domain.ErrRoomNotFound
	}

	removed := false
	members := room.Members[:0]
	for _, m := range room.Members {
		if m.ConnectionID == connID {
			removed = true
			continue
		}
		members = append(members, m)
	}
	if !removed {
		return nil, false, domain.ErrNotAMember
	}
	room.Members = members

	if len(room.Members) == 0 {
		delete(r.rooms, roomID)
		return room.Clone(), true, nil
	}

	return room.Clone(), false, nil
}

func (r *MemoryRoomRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return room.Clone(), nil
}

func (r *MemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room.Clone())
	}

	return rooms, nil
}

func (r *MemoryRoomRepository) DeleteStale(ctx context.Context, cutoff time.Time) ([]domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []domain.RoomID
	for id, room := range r.rooms {
		if len(room.Members) == 0 && room.CreatedAt.Before(cutoff) {
			delete(r.rooms, id)
			removed = append(removed, id)
		}
	}

	return removed, nil
}
