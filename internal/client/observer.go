package client

import (
	"pairlink/internal/core/domain"
)

// Observer receives connection lifecycle and room notifications from
// the orchestrator. Callbacks run on the orchestrator's event loop and
// must not block.
type Observer interface {
	// OnJoined fires when the relay confirms room membership.
	OnJoined(roomID domain.RoomID, connID domain.ConnectionID, members []domain.MemberDescriptor)

	// OnRoomUpdate fires when the room's member list changes.
	OnRoomUpdate(roomID domain.RoomID, members []domain.MemberDescriptor)

	// OnPeerStateChange fires when a peer connection transitions state.
	OnPeerStateChange(remote domain.ConnectionID, state PeerState)

	// OnPeerClosed fires after a peer link is torn down.
	OnPeerClosed(remote domain.ConnectionID)

	// OnChatMessage fires for every relayed chat message.
	OnChatMessage(msg domain.ChatMessagePayload)

	// OnCallEvent fires for incoming-call, call-accepted, call-rejected
	// and call-ended notifications.
	OnCallEvent(eventType domain.EventType, payload domain.CallControlPayload)

	// OnError fires for error events from the relay and local failures
	// the orchestrator could not recover from.
	OnError(err error)
}

// NopObserver ignores every notification. Embed it to implement only
// the callbacks you care about.
type NopObserver struct{}

func (NopObserver) OnJoined(domain.RoomID, domain.ConnectionID, []domain.MemberDescriptor) {}
func (NopObserver) OnRoomUpdate(domain.RoomID, []domain.MemberDescriptor)                  {}
func (NopObserver) OnPeerStateChange(domain.ConnectionID, PeerState)                       {}
func (NopObserver) OnPeerClosed(domain.ConnectionID)                                       {}
func (NopObserver) OnChatMessage(domain.ChatMessagePayload)                                {}
func (NopObserver) OnCallEvent(domain.EventType, domain.CallControlPayload)                {}
func (NopObserver) OnError(error)                                                          {}
