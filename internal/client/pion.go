package client

import (
	"pairlink/internal/core/domain"
	"pairlink/pkg/config"
	apperrors "pairlink/pkg/errors"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// PionFactory builds real WebRTC peer connections with the media
// engine attached.
type PionFactory struct {
	media  *MediaEngine
	logger *zap.Logger
}

func NewPionFactory(media *MediaEngine, logger *zap.Logger) *PionFactory {
	return &PionFactory{media: media, logger: logger}
}

func (f *PionFactory) NewPeerConnection(iceServers []config.ICEServer) (PeerConnection, error) {
	cfg := webrtc.Configuration{}
	for _, srv := range iceServers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
			URLs:       srv.URLs,
			Username:   srv.Username,
			Credential: srv.Credential,
		})
	}

	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, apperrors.NewNegotiationFailure("failed to create peer connection: " + err.Error())
	}

	adapter := &pionPeerConnection{pc: pc, logger: f.logger}

	if f.media != nil {
		if err := f.media.Attach(pc); err != nil {
			pc.Close()
			return nil, err
		}
	}

	return adapter, nil
}

type pionPeerConnection struct {
	pc     *webrtc.PeerConnection
	logger *zap.Logger
}

func (p *pionPeerConnection) CreateOffer() (domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, apperrors.NewNegotiationFailure("create offer: " + err.Error())
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, apperrors.NewNegotiationFailure("set local offer: " + err.Error())
	}
	return domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (p *pionPeerConnection) CreateAnswer() (domain.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, apperrors.NewNegotiationFailure("create answer: " + err.Error())
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, apperrors.NewNegotiationFailure("set local answer: " + err.Error())
	}
	return domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (p *pionPeerConnection) SetRemoteDescription(desc domain.SessionDescription) error {
	remote := webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return apperrors.NewNegotiationFailure("set remote description: " + err.Error())
	}
	return nil
}

func (p *pionPeerConnection) AddICECandidate(candidate domain.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return apperrors.NewNegotiationFailure("add ice candidate: " + err.Error())
	}
	return nil
}

func (p *pionPeerConnection) OnICECandidate(fn func(domain.ICECandidate)) {
	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			// End of gathering; trickle has nothing further to send.
			return
		}
		init := cand.ToJSON()
		fn(domain.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (p *pionPeerConnection) OnStateChange(fn func(PeerState)) {
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		fn(mapPeerState(s))
	})
}

func (p *pionPeerConnection) Close() error {
	return p.pc.Close()
}

func mapPeerState(s webrtc.PeerConnectionState) PeerState {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return PeerStateNew
	case webrtc.PeerConnectionStateConnecting:
		return PeerStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return PeerStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return PeerStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return PeerStateFailed
	default:
		return PeerStateClosed
	}
}
