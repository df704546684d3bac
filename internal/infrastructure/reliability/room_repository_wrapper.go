package reliability

import (
	"context"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	"pairlink/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// RoomRepositoryWrapper guards a room directory backend with a circuit
// breaker. When the backend (Redis) trips the breaker, directory
// operations fail fast instead of stacking blocked relay goroutines.
// Domain errors are not failures; only backend errors count.
type RoomRepositoryWrapper struct {
	repo    ports.RoomRepository
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewRoomRepositoryWrapper(repo ports.RoomRepository, cbConfig circuitbreaker.Config, logger *zap.Logger) *RoomRepositoryWrapper {
	wrapper := &RoomRepositoryWrapper{
		repo:    repo,
		breaker: circuitbreaker.New(cbConfig),
		logger:  logger,
	}

	wrapper.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Info("room directory circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})

	return wrapper
}

// isDomainError reports whether the error describes room state rather
// than backend health.
func isDomainError(err error) bool {
	return err == domain.ErrRoomNotFound || err == domain.ErrNotAMember
}

func (w *RoomRepositoryWrapper) execute(ctx context.Context, fn func() error) error {
	var domainErr error
	err := w.breaker.Execute(ctx, func() error {
		if err := fn(); err != nil {
			if isDomainError(err) {
				domainErr = err
				return nil
			}
			return err
		}
		return nil
	})
	if domainErr != nil {
		return domainErr
	}
	return err
}

func (w *RoomRepositoryWrapper) AddMember(ctx context.Context, roomID domain.RoomID, member domain.MemberDescriptor) (*domain.Room, error) {
	var room *domain.Room
	err := w.execute(ctx, func() error {
		var err error
		room, err = w.repo.AddMember(ctx, roomID, member)
		return err
	})
	return room, err
}

func (w *RoomRepositoryWrapper) RemoveMember(ctx context.Context, roomID domain.RoomID, connID domain.ConnectionID) (*domain.Room, bool, error) {
	var (
		room    *domain.Room
		deleted bool
	)
	err := w.execute(ctx, func() error {
		var err error
		room, deleted, err = w.repo.RemoveMember(ctx, roomID, connID)
		return err
	})
	return room, deleted, err
}

func (w *RoomRepositoryWrapper) Get(ctx context.Context, roomID domain.RoomID) (*domain.Room, error) {
	var room *domain.Room
	err := w.execute(ctx, func() error {
		var err error
		room, err = w.repo.Get(ctx, roomID)
		return err
	})
	return room, err
}

func (w *RoomRepositoryWrapper) List(ctx context.Context) ([]*domain.Room, error) {
	var rooms []*domain.Room
	err := w.execute(ctx, func() error {
		var err error
		rooms, err = w.repo.List(ctx)
		return err
	})
	return rooms, err
}

func (w *RoomRepositoryWrapper) DeleteStale(ctx context.Context, cutoff time.Time) ([]domain.RoomID, error) {
	var removed []domain.RoomID
	err := w.execute(ctx, func() error {
		var err error
		removed, err = w.repo.DeleteStale(ctx, cutoff)
		return err
	})
	return removed, err
}

// State exposes the breaker state for health reporting.
func (w *RoomRepositoryWrapper) State() circuitbreaker.State {
	return w.breaker.GetState()
}
