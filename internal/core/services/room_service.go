package services

import (
	"context"
	"net/http"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/validation"

	"go.uber.org/zap"
)

// RoomServiceImpl implements ports.RoomService on top of a
// RoomRepository. It validates identifiers at the boundary and owns
// the staleness sweep policy.
type RoomServiceImpl struct {
	repo       ports.RoomRepository
	logger     *zap.Logger
	staleAfter time.Duration
}

func NewRoomService(repo ports.RoomRepository, logger *zap.Logger, staleAfter time.Duration) *RoomServiceImpl {
	return &RoomServiceImpl{
		repo:       repo,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

func (s *RoomServiceImpl) Join(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error) {
	if err := validation.ValidateRoomID(string(roomID)); err != nil {
		return nil, err
	}
	if err := validation.ValidateUserID(string(member.UserID)); err != nil {
		return nil, err
	}
	if member.ConnectionID == "" {
		return nil, apperrors.NewValidationError("connection ID is required")
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}

	room, err := s.repo.AddMember(ctx, roomID, member)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to join room", http.StatusInternalServerError)
	}

	s.logger.Info("member joined room",
		zap.String("room_id", string(roomID)),
		zap.String("user_id", string(member.UserID)),
		zap.String("connection_id", string(member.ConnectionID)),
		zap.Int("member_count", len(room.Members)))

	return room, nil
}

func (s *RoomServiceImpl) Leave(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, error) {
	room, deleted, err := s.repo.RemoveMember(ctx, roomID, connID)
	if err != nil {
		return nil, err
	}

	if deleted {
		s.logger.Info("room deleted, last member left",
			zap.String("room_id", string(roomID)),
			zap.String("connection_id", string(connID)))
		return nil, nil
	}

	s.logger.Info("member left room",
		zap.String("room_id", string(roomID)),
		zap.String("connection_id", string(connID)),
		zap.Int("member_count", len(room.Members)))

	return room, nil
}

func (s *RoomServiceImpl) Members(ctx context.Context, roomID domain.RoomID) ([]domain.MemberDescriptor, error) {
	room, err := s.repo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

func (s *RoomServiceImpl) RoomCount(ctx context.Context) (int, error) {
	rooms, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(rooms), nil
}

func (s *RoomServiceImpl) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleAfter)
	removed, err := s.repo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, apperrors.WrapError(err, apperrors.ErrCodeInternal, "stale room sweep failed", http.StatusInternalServerError)
	}

	if len(removed) > 0 {
		ids := make([]string, len(removed))
		for i, id := range removed {
			ids[i] = string(id)
		}
		s.logger.Info("swept stale rooms", zap.Strings("room_ids", ids))
	}

	return len(removed), nil
}
