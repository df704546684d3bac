package client

import (
	"errors"
	"testing"

	"pairlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRouter_DispatchesByType(t *testing.T) {
	router := NewRouter(zap.NewNop())

	var got domain.EventType
	router.Handle(domain.EventPong, func(e domain.Event) error {
		got = e.Type
		return nil
	})

	event, err := domain.NewEvent(domain.EventPong, domain.PongPayload{Timestamp: 1})
	require.NoError(t, err)

	assert.True(t, router.Route(event))
	assert.Equal(t, domain.EventPong, got)
}

func TestRouter_DropsUnknownType(t *testing.T) {
	router := NewRouter(zap.NewNop())
	assert.False(t, router.Route(domain.Event{Type: "bogus"}))
}

func TestRouter_HandlerErrorDoesNotPropagate(t *testing.T) {
	router := NewRouter(zap.NewNop())
	router.Handle(domain.EventError, func(domain.Event) error {
		return errors.New("boom")
	})

	// Handled even though the handler failed; the loop keeps running.
	assert.True(t, router.Route(domain.Event{Type: domain.EventError}))
}

func TestRouter_ReplacesHandler(t *testing.T) {
	router := NewRouter(zap.NewNop())

	calls := make([]string, 0, 2)
	router.Handle(domain.EventPong, func(domain.Event) error {
		calls = append(calls, "first")
		return nil
	})
	router.Handle(domain.EventPong, func(domain.Event) error {
		calls = append(calls, "second")
		return nil
	})

	router.Route(domain.Event{Type: domain.EventPong})
	assert.Equal(t, []string{"second"}, calls)
}
