package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRoomRepository stores the room directory in Redis so multiple
// relay instances can share it. Each room is a JSON blob under a
// prefixed key plus an index set of all room IDs. Read-modify-write
// cycles run under a local mutex; cross-instance races are tolerated
// because membership converges on the next join or leave.
type RedisRoomRepository struct {
	client *redis.Client
	prefix string
	mu     sync.Mutex
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: "pairlink:room:",
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

func (r *RedisRoomRepository) indexKey() string {
	return "pairlink:rooms"
}

func (r *RedisRoomRepository) load(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(roomID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) store(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := r.client.Set(ctx, r.roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.indexKey(), string(room.ID)).Err(); err != nil {
		return fmt.Errorf("failed to index room: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) delete(ctx context.Context, roomID domain.RoomID) error {
	if err := r.client.Del(ctx, r.roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}
	if err := r.client.SRem(ctx, r.indexKey(), string(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to unindex room: %w", err)
	}
	return nil
}

func (r *RedisRoomRepository) AddMember(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.load(ctx, roomID)
	if err == domain.ErrRoomNotFound {
		room = &domain.Room{ID: roomID, CreatedAt: time.Now()}
	} else if err != nil {
		return nil, err
	}

	replaced := false
	for i := range room.Members {
		if room.Members[i].ConnectionID == member.ConnectionID {
			room.Members[i] = member
			replaced = true
			break
		}
	}
	if !replaced {
		room.Members = append(room.Members, member)
	}

	if err := r.store(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (r *RedisRoomRepository) RemoveMember(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.load(ctx, roomID)
	if err != nil {
		return nil, false, err
	}

	idx := -1
	for i := range room.Members {
		if room.Members[i].ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false, domain.ErrNotAMember
	}

	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)

	if len(room.Members) == 0 {
		if err := r.delete(ctx, roomID); err != nil {
			return nil, false, err
		}
		return room, true, nil
	}

	if err := r.store(ctx, room); err != nil {
		return nil, false, err
	}
	return room, false, nil
}

func (r *RedisRoomRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	return r.load(ctx, roomID)
}

func (r *RedisRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms from Redis: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(ids))
	for _, id := range ids {
		room, err := r.load(ctx, domain.RoomID(id))
		if err != nil {
			// Index entries for rooms deleted by another instance.
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *RedisRoomRepository) DeleteStale(ctx context.Context, cutoff time.Time) ([]domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms from Redis: %w", err)
	}

	var removed []domain.RoomID
	for _, id := range ids {
		roomID := domain.RoomID(id)
		room, err := r.load(ctx, roomID)
		if err != nil {
			continue
		}
		if len(room.Members) == 0 && room.CreatedAt.Before(cutoff) {
			if err := r.delete(ctx, roomID); err != nil {
				return removed, err
			}
			removed = append(removed, roomID)
		}
	}
	return removed, nil
}
