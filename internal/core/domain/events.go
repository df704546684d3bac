package domain

import (
	"encoding/json"
	"fmt"

	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/validation"
)

// EventType tags every message exchanged over the signaling socket.
type EventType string

const (
	// Client → server
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
	EventPing  EventType = "ping"

	// Server → client
	EventJoined           EventType = "joined"
	EventRoomUpdate       EventType = "room:update"
	EventUserDisconnected EventType = "user-disconnected"
	EventError            EventType = "error"
	EventPong             EventType = "pong"

	// Relayed both ways
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"
	EventChatMessage  EventType = "chat-message"

	// Call control
	EventCallUser     EventType = "call-user"
	EventIncomingCall EventType = "incoming-call"
	EventCallAccepted EventType = "call-accepted"
	EventCallRejected EventType = "call-rejected"
	EventEndCall      EventType = "end-call"
	EventCallEnded    EventType = "call-ended"
)

// Event is the wire envelope: a type tag plus a typed payload record.
// Payloads are validated at the boundary; a shape that does not decode
// into its kind's record is a validation error, never a crash.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent wraps a payload record into an envelope.
func NewEvent(t EventType, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{Type: t, Payload: data}, nil
}

// Validator is implemented by every payload record.
type Validator interface {
	Validate() error
}

// DecodePayload decodes and validates an envelope's payload into the
// record type for its kind.
func DecodePayload[T Validator](e Event) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return payload, apperrors.NewValidationError(
			fmt.Sprintf("malformed %s payload", e.Type))
	}
	if err := payload.Validate(); err != nil {
		return payload, err
	}
	return payload, nil
}

// SessionDescription is a negotiated description of a peer connection's
// media and transport capabilities. The JSON shape matches the WebRTC
// session description init dictionary.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate is a possible network path endpoint proposed during
// connection establishment. The JSON shape matches the WebRTC ICE
// candidate init dictionary.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

type JoinPayload struct {
	RoomID RoomID `json:"roomId"`
	UserID UserID `json:"userId"`
}

func (p JoinPayload) Validate() error {
	if err := validation.ValidateRoomID(string(p.RoomID)); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if p.UserID != "" {
		if err := validation.ValidateUserID(string(p.UserID)); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	}
	return nil
}

type LeavePayload struct {
	RoomID RoomID `json:"roomId"`
}

func (p LeavePayload) Validate() error {
	if err := validation.ValidateRoomID(string(p.RoomID)); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

type JoinedPayload struct {
	RoomID       RoomID             `json:"roomId"`
	ConnectionID ConnectionID       `json:"connectionId"`
	Clients      []MemberDescriptor `json:"clients"`
}

func (p JoinedPayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("joined: roomId is required")
	}
	if p.ConnectionID == "" {
		return apperrors.NewValidationError("joined: connectionId is required")
	}
	return nil
}

type RoomUpdatePayload struct {
	RoomID  RoomID             `json:"roomId"`
	Clients []MemberDescriptor `json:"clients"`
}

func (p RoomUpdatePayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("room:update: roomId is required")
	}
	return nil
}

type UserDisconnectedPayload struct {
	UserID       UserID       `json:"userId"`
	ConnectionID ConnectionID `json:"connectionId"`
	RoomID       RoomID       `json:"roomId"`
}

func (p UserDisconnectedPayload) Validate() error {
	if p.ConnectionID == "" {
		return apperrors.NewValidationError("user-disconnected: connectionId is required")
	}
	return nil
}

// DescriptionPayload carries an offer or answer.
type DescriptionPayload struct {
	RoomID             RoomID             `json:"roomId"`
	SDP                SessionDescription `json:"sdp"`
	Sender             UserID             `json:"sender"`
	SenderConnectionID ConnectionID       `json:"senderConnectionId,omitempty"`
	Target             ConnectionID       `json:"target,omitempty"`
}

func (p DescriptionPayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("roomId is required")
	}
	if p.Sender == "" {
		return apperrors.NewValidationError("sender is required")
	}
	if err := validation.ValidateSDP(p.SDP.SDP); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

type CandidatePayload struct {
	RoomID             RoomID       `json:"roomId"`
	Candidate          ICECandidate `json:"candidate"`
	Sender             UserID       `json:"sender"`
	SenderConnectionID ConnectionID `json:"senderConnectionId,omitempty"`
	Target             ConnectionID `json:"target,omitempty"`
}

func (p CandidatePayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("roomId is required")
	}
	if p.Sender == "" {
		return apperrors.NewValidationError("sender is required")
	}
	if p.Candidate.Candidate == "" {
		return apperrors.NewValidationError("candidate is required")
	}
	return nil
}

// ChatMessagePayload is an immutable chat message. Timestamp is stamped
// with the server receive time when relayed.
type ChatMessagePayload struct {
	RoomID             RoomID       `json:"roomId"`
	Message            string       `json:"message"`
	Sender             UserID       `json:"sender"`
	SenderConnectionID ConnectionID `json:"senderConnectionId,omitempty"`
	Timestamp          int64        `json:"timestamp,omitempty"`
}

func (p ChatMessagePayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("roomId is required")
	}
	if p.Sender == "" {
		return apperrors.NewValidationError("sender is required")
	}
	if err := validation.ValidateChatMessage(p.Message); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	return nil
}

// CallControlPayload carries call-user / call-accepted / call-rejected /
// end-call requests and their relayed notifications.
type CallControlPayload struct {
	RoomID             RoomID       `json:"roomId"`
	Sender             UserID       `json:"sender"`
	SenderConnectionID ConnectionID `json:"senderConnectionId,omitempty"`
	Target             ConnectionID `json:"target,omitempty"`
}

func (p CallControlPayload) Validate() error {
	if p.RoomID == "" {
		return apperrors.NewValidationError("roomId is required")
	}
	if p.Sender == "" {
		return apperrors.NewValidationError("sender is required")
	}
	return nil
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func (p ErrorPayload) Validate() error { return nil }

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

func (p PongPayload) Validate() error { return nil }
