package domain

import (
	"encoding/json"
	"testing"

	apperrors "pairlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDP = "v=0\r\no=- 123 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"

func TestNewEvent_RoundTrip(t *testing.T) {
	ev, err := NewEvent(EventJoin, JoinPayload{RoomID: "r1", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, EventJoin, ev.Type)

	payload, err := DecodePayload[JoinPayload](ev)
	require.NoError(t, err)
	assert.Equal(t, RoomID("r1"), payload.RoomID)
	assert.Equal(t, UserID("alice"), payload.UserID)
}

func TestDecodePayload_MalformedJSON(t *testing.T) {
	ev := Event{Type: EventOffer, Payload: json.RawMessage(`{"sdp": [1,2`)}

	_, err := DecodePayload[DescriptionPayload](ev)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJoinPayload_Validate(t *testing.T) {
	assert.NoError(t, JoinPayload{RoomID: "r1", UserID: "alice"}.Validate())
	// Missing userId is tolerated; the relay assigns one.
	assert.NoError(t, JoinPayload{RoomID: "r1"}.Validate())

	err := JoinPayload{UserID: "alice"}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDescriptionPayload_Validate(t *testing.T) {
	valid := DescriptionPayload{
		RoomID: "r1",
		SDP:    SessionDescription{Type: "offer", SDP: testSDP},
		Sender: "alice",
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*DescriptionPayload)
	}{
		{"missing roomId", func(p *DescriptionPayload) { p.RoomID = "" }},
		{"missing sender", func(p *DescriptionPayload) { p.Sender = "" }},
		{"missing sdp", func(p *DescriptionPayload) { p.SDP.SDP = "" }},
		{"garbage sdp", func(p *DescriptionPayload) { p.SDP.SDP = "not an sdp" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestCandidatePayload_Validate(t *testing.T) {
	valid := CandidatePayload{
		RoomID:    "r1",
		Candidate: ICECandidate{Candidate: "candidate:1 1 udp 2130706431 1.2.3.4 54321 typ host"},
		Sender:    "alice",
	}
	assert.NoError(t, valid.Validate())

	empty := valid
	empty.Candidate = ICECandidate{}
	assert.Error(t, empty.Validate())
}

func TestChatMessagePayload_Validate(t *testing.T) {
	valid := ChatMessagePayload{RoomID: "r1", Message: "hi", Sender: "alice"}
	assert.NoError(t, valid.Validate())

	noBody := valid
	noBody.Message = ""
	assert.Error(t, noBody.Validate())
}

func TestEvent_WireFormat(t *testing.T) {
	ev, err := NewEvent(EventRoomUpdate, RoomUpdatePayload{
		RoomID: "r1",
		Clients: []MemberDescriptor{
			{ConnectionID: "c1", UserID: "alice"},
		},
	})
	require.NoError(t, err)

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	// Field names must match the wire protocol exactly.
	assert.Contains(t, string(data), `"type":"room:update"`)
	assert.Contains(t, string(data), `"roomId":"r1"`)
	assert.Contains(t, string(data), `"connectionId":"c1"`)
	assert.Contains(t, string(data), `"userId":"alice"`)
}

func TestRoom_CloneAndOthers(t *testing.T) {
	room := &Room{
		ID: "r1",
		Members: []MemberDescriptor{
			{ConnectionID: "c1", UserID: "alice"},
			{ConnectionID: "c2", UserID: "bob"},
		},
	}

	clone := room.Clone()
	clone.Members[0].UserID = "mallory"
	assert.Equal(t, UserID("alice"), room.Members[0].UserID, "clone must not share member storage")

	others := room.Others("c1")
	require.Len(t, others, 1)
	assert.Equal(t, ConnectionID("c2"), others[0].ConnectionID)

	_, ok := room.Member("c2")
	assert.True(t, ok)
	_, ok = room.Member("c3")
	assert.False(t, ok)
}
