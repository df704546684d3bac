package client

import (
	"errors"
	"io"
	"sync"
	"time"

	apperrors "pairlink/pkg/errors"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const pliInterval = 3 * time.Second

// LocalStream is a handle for feeding RTP packets into a local track
// shared by every peer connection the engine is attached to.
type LocalStream struct {
	engine *MediaEngine
	kind   webrtc.RTPCodecType
	track  *webrtc.TrackLocalStaticRTP
}

// WriteRTP forwards a packet to the track. Packets are dropped without
// error while the track's kind is toggled off.
func (s *LocalStream) WriteRTP(packet *rtp.Packet) error {
	if !s.engine.kindEnabled(s.kind) {
		return nil
	}
	if err := s.track.WriteRTP(packet); err != nil {
		return apperrors.NewTransportError("failed to write RTP packet", err)
	}
	return nil
}

// MediaEngine owns the local tracks and the remote track plumbing
// shared across peer connections.
type MediaEngine struct {
	mu          sync.Mutex
	localTracks []*webrtc.TrackLocalStaticRTP
	onRemote    func(info RemoteTrackInfo, packet *rtp.Packet)
	audioOn     bool
	videoOn     bool
	hasVideo    bool
	facing      string
	logger      *zap.Logger
}

// RemoteTrackInfo identifies a remote track delivering media.
type RemoteTrackInfo struct {
	TrackID  string
	StreamID string
	MimeType string
}

func NewMediaEngine(logger *zap.Logger) *MediaEngine {
	return &MediaEngine{
		audioOn: true,
		videoOn: true,
		facing:  "front",
		logger:  logger,
	}
}

func (m *MediaEngine) kindEnabled(kind webrtc.RTPCodecType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == webrtc.RTPCodecTypeVideo {
		return m.videoOn
	}
	return m.audioOn
}

// ToggleLocalAudio sets the audio mute state and returns the resulting
// enabled flag. Repeating the same state is a no-op.
func (m *MediaEngine) ToggleLocalAudio(enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audioOn != enabled {
		m.audioOn = enabled
		m.logger.Info("local audio toggled", zap.Bool("enabled", enabled))
	}
	return m.audioOn
}

// ToggleLocalVideo sets the video mute state and returns the resulting
// enabled flag. No renegotiation takes place; packets are simply held.
func (m *MediaEngine) ToggleLocalVideo(enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoOn != enabled {
		m.videoOn = enabled
		m.logger.Info("local video toggled", zap.Bool("enabled", enabled))
	}
	return m.videoOn
}

// SwitchCamera flips the capture facing mode and returns the new one.
// Without a video track there is nothing to switch and the current
// facing is returned unchanged.
func (m *MediaEngine) SwitchCamera() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasVideo {
		return m.facing
	}
	if m.facing == "front" {
		m.facing = "back"
	} else {
		m.facing = "front"
	}
	m.logger.Info("camera switched", zap.String("facing", m.facing))
	return m.facing
}

// AddAudioTrack creates a local Opus track. Every peer connection
// attached afterwards carries it.
func (m *MediaEngine) AddAudioTrack(id, streamID string) (*LocalStream, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		id,
		streamID,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create audio track: " + err.Error())
	}

	m.mu.Lock()
	m.localTracks = append(m.localTracks, track)
	m.mu.Unlock()

	return &LocalStream{engine: m, kind: webrtc.RTPCodecTypeAudio, track: track}, nil
}

// AddVideoTrack creates a local VP8 track.
func (m *MediaEngine) AddVideoTrack(id, streamID string) (*LocalStream, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		id,
		streamID,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create video track: " + err.Error())
	}

	m.mu.Lock()
	m.localTracks = append(m.localTracks, track)
	m.hasVideo = true
	m.mu.Unlock()

	return &LocalStream{engine: m, kind: webrtc.RTPCodecTypeVideo, track: track}, nil
}

// OnRemoteTrack registers the sink for inbound media packets.
func (m *MediaEngine) OnRemoteTrack(fn func(info RemoteTrackInfo, packet *rtp.Packet)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemote = fn
}

// Attach adds the local tracks to a peer connection and wires remote
// track handling.
func (m *MediaEngine) Attach(pc *webrtc.PeerConnection) error {
	m.mu.Lock()
	tracks := make([]*webrtc.TrackLocalStaticRTP, len(m.localTracks))
	copy(tracks, m.localTracks)
	m.mu.Unlock()

	for _, track := range tracks {
		if _, err := pc.AddTrack(track); err != nil {
			return apperrors.NewInternalError("failed to add local track: " + err.Error())
		}
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		m.logger.Info("remote track received",
			zap.String("track_id", track.ID()),
			zap.String("stream_id", track.StreamID()),
			zap.String("codec", track.Codec().MimeType))

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go m.sendPLI(pc, track)
		}
		go m.readRemoteTrack(track)
	})

	return nil
}

// sendPLI periodically requests a keyframe so late joiners and lossy
// paths recover the picture.
func (m *MediaEngine) sendPLI(pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	for range ticker.C {
		err := pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
		})
		if err != nil {
			return
		}
	}
}

func (m *MediaEngine) readRemoteTrack(track *webrtc.TrackRemote) {
	info := RemoteTrackInfo{
		TrackID:  track.ID(),
		StreamID: track.StreamID(),
		MimeType: track.Codec().MimeType,
	}

	buf := make([]byte, 1500)
	packet := &rtp.Packet{}

	for {
		n, _, err := track.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Debug("remote track read ended",
					zap.String("track_id", track.ID()),
					zap.Error(err))
			}
			return
		}

		if err := packet.Unmarshal(buf[:n]); err != nil {
			m.logger.Warn("malformed RTP packet",
				zap.String("track_id", track.ID()),
				zap.Error(err))
			continue
		}

		m.mu.Lock()
		sink := m.onRemote
		m.mu.Unlock()
		if sink != nil {
			sink(info, packet)
		}
	}
}
