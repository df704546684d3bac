package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pairlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(conn, user string) domain.MemberDescriptor {
	return domain.MemberDescriptor{
		ConnectionID: domain.ConnectionID(conn),
		UserID:       domain.UserID(user),
		JoinedAt:     time.Now(),
	}
}

func TestAddMember_CreatesRoomLazily(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	room, err := repo.AddMember(ctx, "r1", member("c1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), room.ID)
	require.Len(t, room.Members, 1)
	assert.False(t, room.CreatedAt.IsZero())
}

func TestAddMember_SameConnectionNeverDuplicated(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	_, err := repo.AddMember(ctx, "r1", member("c1", "alice"))
	require.NoError(t, err)
	room, err := repo.AddMember(ctx, "r1", member("c1", "alice-renamed"))
	require.NoError(t, err)

	require.Len(t, room.Members, 1)
	assert.Equal(t, domain.UserID("alice-renamed"), room.Members[0].UserID)
}

func TestAddMember_PreservesJoinOrder(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	for i, conn := range []string{"c1", "c2", "c3"} {
		_, err := repo.AddMember(ctx, "r1", member(conn, fmt.Sprintf("user%d", i)))
		require.NoError(t, err)
	}

	room, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, room.Members, 3)
	assert.Equal(t, domain.ConnectionID("c1"), room.Members[0].ConnectionID)
	assert.Equal(t, domain.ConnectionID("c2"), room.Members[1].ConnectionID)
	assert.Equal(t, domain.ConnectionID("c3"), room.Members[2].ConnectionID)
}

func TestRemoveMember_DeletesEmptyRoom(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	_, err := repo.AddMember(ctx, "r1", member("c1", "alice"))
	require.NoError(t, err)

	room, deleted, err := repo.RemoveMember(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, room.Members)

	_, err = repo.Get(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRemoveMember_Errors(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	_, _, err := repo.RemoveMember(ctx, "missing", "c1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	_, err = repo.AddMember(ctx, "r1", member("c1", "alice"))
	require.NoError(t, err)
	_, _, err = repo.RemoveMember(ctx, "r1", "c2")
	assert.ErrorIs(t, err, domain.ErrNotAMember)
}

func TestDeleteStale_OnlyEmptyAndOld(t *testing.T) {
	repo := NewMemoryRoomRepository().(*MemoryRoomRepository)
	ctx := context.Background()

	// Old empty room.
	repo.rooms["old-empty"] = &domain.Room{ID: "old-empty", CreatedAt: time.Now().Add(-time.Hour)}
	// Old room that still has a member.
	repo.rooms["old-occupied"] = &domain.Room{
		ID:        "old-occupied",
		CreatedAt: time.Now().Add(-time.Hour),
		Members:   []domain.MemberDescriptor{member("c1", "alice")},
	}
	// Fresh empty room.
	repo.rooms["fresh-empty"] = &domain.Room{ID: "fresh-empty", CreatedAt: time.Now()}

	removed, err := repo.DeleteStale(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, domain.RoomID("old-empty"), removed[0])

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	_, err := repo.AddMember(ctx, "r1", member("c1", "alice"))
	require.NoError(t, err)

	snap, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	snap.Members[0].UserID = "mallory"

	fresh, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), fresh.Members[0].UserID)
}

func TestConcurrentMutations(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			_, err := repo.AddMember(ctx, "r1", member(conn, conn))
			assert.NoError(t, err)
			_, _, err = repo.RemoveMember(ctx, "r1", domain.ConnectionID(conn))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, err := repo.Get(ctx, "r1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
