package client

import (
	"pairlink/internal/core/domain"
	"pairlink/pkg/config"
)

// PeerState mirrors the peer connection lifecycle.
type PeerState string

const (
	PeerStateNew          PeerState = "new"
	PeerStateConnecting   PeerState = "connecting"
	PeerStateConnected    PeerState = "connected"
	PeerStateDisconnected PeerState = "disconnected"
	PeerStateFailed       PeerState = "failed"
	PeerStateClosed       PeerState = "closed"
)

// PeerConnection abstracts the WebRTC engine so the orchestrator's
// negotiation logic is testable without network or media stacks.
type PeerConnection interface {
	// CreateOffer produces and applies the local offer description.
	CreateOffer() (domain.SessionDescription, error)

	// CreateAnswer produces and applies the local answer description.
	// Valid only after SetRemoteDescription.
	CreateAnswer() (domain.SessionDescription, error)

	// SetRemoteDescription applies the remote peer's description.
	SetRemoteDescription(desc domain.SessionDescription) error

	// AddICECandidate applies a remote candidate. Valid only after
	// SetRemoteDescription; the orchestrator buffers until then.
	AddICECandidate(candidate domain.ICECandidate) error

	// OnICECandidate registers the callback for locally gathered
	// candidates. Must be set before CreateOffer or CreateAnswer.
	OnICECandidate(fn func(domain.ICECandidate))

	// OnStateChange registers the lifecycle callback.
	OnStateChange(fn func(PeerState))

	Close() error
}

// PeerConnectionFactory builds peer connections from the ICE server
// list fetched from the relay.
type PeerConnectionFactory interface {
	NewPeerConnection(iceServers []config.ICEServer) (PeerConnection, error)
}
