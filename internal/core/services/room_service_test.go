package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairlink/internal/core/domain"
	apperrors "pairlink/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRoomRepository struct {
	mock.Mock
}

func (m *mockRoomRepository) AddMember(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error) {
	args := m.Called(ctx, roomID, member)
	if room := args.Get(0); room != nil {
		return room.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomRepository) RemoveMember(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, bool, error) {
	args := m.Called(ctx, roomID, connID)
	if room := args.Get(0); room != nil {
		return room.(*domain.Room), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockRoomRepository) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if room := args.Get(0); room != nil {
		return room.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	args := m.Called(ctx)
	if rooms := args.Get(0); rooms != nil {
		return rooms.([]*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRoomRepository) DeleteStale(ctx context.Context, cutoff time.Time) ([]domain.RoomID, error) {
	args := m.Called(ctx, cutoff)
	if ids := args.Get(0); ids != nil {
		return ids.([]domain.RoomID), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(repo *mockRoomRepository) *RoomServiceImpl {
	return NewRoomService(repo, zap.NewNop(), 30*time.Minute)
}

func TestJoin_ValidatesIdentifiers(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	member := domain.MemberDescriptor{ConnectionID: "c1", UserID: "alice"}

	_, err := svc.Join(ctx, "bad room!", member)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Join(ctx, "r1", domain.MemberDescriptor{ConnectionID: "c1", UserID: ""})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Join(ctx, "r1", domain.MemberDescriptor{UserID: "alice"})
	assert.True(t, apperrors.IsValidation(err))

	repo.AssertNotCalled(t, "AddMember")
}

func TestJoin_StampsJoinTime(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("AddMember", ctx, domain.RoomID("r1"), mock.MatchedBy(func(m domain.MemberDescriptor) bool {
		return !m.JoinedAt.IsZero()
	})).Return(&domain.Room{ID: "r1", Members: []domain.MemberDescriptor{{ConnectionID: "c1", UserID: "alice"}}}, nil)

	room, err := svc.Join(ctx, "r1", domain.MemberDescriptor{ConnectionID: "c1", UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, room.Members, 1)
	repo.AssertExpectations(t)
}

func TestLeave_ReturnsNilWhenRoomDeleted(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("RemoveMember", ctx, domain.RoomID("r1"), domain.ConnectionID("c1")).
		Return(&domain.Room{ID: "r1"}, true, nil)

	room, err := svc.Leave(ctx, "r1", "c1")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestLeave_PropagatesDomainErrors(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("RemoveMember", ctx, domain.RoomID("r1"), domain.ConnectionID("c1")).
		Return(nil, false, domain.ErrRoomNotFound)

	_, err := svc.Leave(ctx, "r1", "c1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMembers(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, domain.RoomID("r1")).Return(&domain.Room{
		ID:      "r1",
		Members: []domain.MemberDescriptor{{ConnectionID: "c1", UserID: "alice"}},
	}, nil)

	members, err := svc.Members(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestSweep(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("DeleteStale", ctx, mock.AnythingOfType("time.Time")).
		Return([]domain.RoomID{"old1", "old2"}, nil)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSweep_WrapsRepositoryError(t *testing.T) {
	repo := new(mockRoomRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("DeleteStale", ctx, mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("backend down"))

	_, err := svc.Sweep(ctx)
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrCodeInternal, appErr.Code)
}
