package client

import (
	"context"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/pkg/config"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/retry"

	"go.uber.org/zap"
)

// EventSender delivers events to the relay.
type EventSender interface {
	Send(event domain.Event) error
}

// peerLink is one negotiated connection to a remote room member.
type peerLink struct {
	remote         domain.ConnectionID
	remoteUser     domain.UserID
	pc             PeerConnection
	buffer         *CandidateBuffer
	initiator      bool
	awaitingAnswer bool
	generation     uint64
}

// Orchestrator drives the client side of signaling: it decides who
// calls whom, runs offer/answer exchanges, buffers early candidates
// and tears down or restarts peer links as members come and go.
//
// Inbound events are handled strictly one at a time on the Run loop;
// engine callbacks (candidates, state changes) arrive on their own
// goroutines and only touch state under the mutex.
// MediaController exposes the local media switches the orchestrator
// forwards without renegotiating.
type MediaController interface {
	ToggleLocalAudio(enabled bool) bool
	ToggleLocalVideo(enabled bool) bool
	SwitchCamera() string
}

type Orchestrator struct {
	sender   EventSender
	factory  PeerConnectionFactory
	observer Observer
	router   *Router
	media    MediaController
	logger   *zap.Logger

	iceServers []config.ICEServer
	reconnect  retry.Config

	mu         sync.Mutex
	userID     domain.UserID
	connID     domain.ConnectionID
	roomID     domain.RoomID
	links      map[domain.ConnectionID]*peerLink
	early      map[domain.ConnectionID][]domain.ICECandidate
	generation uint64
	closed     bool
}

func NewOrchestrator(sender EventSender, factory PeerConnectionFactory, observer Observer, iceServers []config.ICEServer, reconnect retry.Config, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		sender:     sender,
		factory:    factory,
		observer:   observer,
		router:     NewRouter(logger),
		logger:     logger,
		iceServers: iceServers,
		reconnect:  reconnect,
		links:      make(map[domain.ConnectionID]*peerLink),
		early:      make(map[domain.ConnectionID][]domain.ICECandidate),
	}

	o.router.Handle(domain.EventJoined, o.handleJoined)
	o.router.Handle(domain.EventRoomUpdate, o.handleRoomUpdate)
	o.router.Handle(domain.EventOffer, o.handleOffer)
	o.router.Handle(domain.EventAnswer, o.handleAnswer)
	o.router.Handle(domain.EventICECandidate, o.handleCandidate)
	o.router.Handle(domain.EventUserDisconnected, o.handleUserDisconnected)
	o.router.Handle(domain.EventChatMessage, o.handleChatMessage)
	o.router.Handle(domain.EventIncomingCall, o.handleCallEvent)
	o.router.Handle(domain.EventCallAccepted, o.handleCallEvent)
	o.router.Handle(domain.EventCallRejected, o.handleCallEvent)
	o.router.Handle(domain.EventCallEnded, o.handleCallEvent)
	o.router.Handle(domain.EventError, o.handleErrorEvent)
	o.router.Handle(domain.EventPong, func(domain.Event) error { return nil })

	return o
}

// Run consumes inbound events until the stream closes or the context
// is cancelled.
func (o *Orchestrator) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			o.Close()
			return
		case event, ok := <-events:
			if !ok {
				o.Close()
				return
			}
			o.HandleEvent(event)
		}
	}
}

// HandleEvent routes one inbound event.
func (o *Orchestrator) HandleEvent(event domain.Event) {
	o.router.Route(event)
}

// SetMedia attaches the local media switches. Without one the toggle
// operations are no-ops.
func (o *Orchestrator) SetMedia(media MediaController) {
	o.media = media
}

// ToggleLocalAudio flips the local audio mute flag. Existing peer
// links are untouched.
func (o *Orchestrator) ToggleLocalAudio(enabled bool) bool {
	if o.media == nil {
		return false
	}
	return o.media.ToggleLocalAudio(enabled)
}

// ToggleLocalVideo flips the local video mute flag.
func (o *Orchestrator) ToggleLocalVideo(enabled bool) bool {
	if o.media == nil {
		return false
	}
	return o.media.ToggleLocalVideo(enabled)
}

// SwitchCamera swaps the capture facing mode, if the media source
// supports it.
func (o *Orchestrator) SwitchCamera() string {
	if o.media == nil {
		return ""
	}
	return o.media.SwitchCamera()
}

// JoinRoom asks the relay for membership. Peer links are opened when
// the confirmation arrives.
func (o *Orchestrator) JoinRoom(roomID domain.RoomID, userID domain.UserID) error {
	o.mu.Lock()
	o.userID = userID
	o.mu.Unlock()

	event, err := domain.NewEvent(domain.EventJoin, domain.JoinPayload{
		RoomID: roomID,
		UserID: userID,
	})
	if err != nil {
		return err
	}
	return o.sender.Send(event)
}

// LeaveRoom exits the current room and tears down every peer link.
func (o *Orchestrator) LeaveRoom() error {
	o.mu.Lock()
	roomID := o.roomID
	o.roomID = ""
	o.mu.Unlock()

	if roomID == "" {
		return apperrors.NewStateError("not in a room")
	}

	o.teardownAll()

	event, err := domain.NewEvent(domain.EventLeave, domain.LeavePayload{RoomID: roomID})
	if err != nil {
		return err
	}
	return o.sender.Send(event)
}

// SendChatMessage relays a chat message to the room.
func (o *Orchestrator) SendChatMessage(text string) error {
	o.mu.Lock()
	roomID, userID := o.roomID, o.userID
	o.mu.Unlock()

	if roomID == "" {
		return apperrors.NewStateError("not in a room")
	}

	event, err := domain.NewEvent(domain.EventChatMessage, domain.ChatMessagePayload{
		RoomID:  roomID,
		Message: text,
		Sender:  userID,
	})
	if err != nil {
		return err
	}
	return o.sender.Send(event)
}

// CallUser rings a specific room member.
func (o *Orchestrator) CallUser(target domain.ConnectionID) error {
	return o.sendCallControl(domain.EventCallUser, target)
}

// AcceptCall answers an incoming call from the given member.
func (o *Orchestrator) AcceptCall(caller domain.ConnectionID) error {
	return o.sendCallControl(domain.EventCallAccepted, caller)
}

// RejectCall declines an incoming call.
func (o *Orchestrator) RejectCall(caller domain.ConnectionID) error {
	return o.sendCallControl(domain.EventCallRejected, caller)
}

// EndCall hangs up for the whole room.
func (o *Orchestrator) EndCall() error {
	return o.sendCallControl(domain.EventEndCall, "")
}

func (o *Orchestrator) sendCallControl(eventType domain.EventType, target domain.ConnectionID) error {
	o.mu.Lock()
	roomID, userID := o.roomID, o.userID
	o.mu.Unlock()

	if roomID == "" {
		return apperrors.NewStateError("not in a room")
	}

	event, err := domain.NewEvent(eventType, domain.CallControlPayload{
		RoomID: roomID,
		Sender: userID,
		Target: target,
	})
	if err != nil {
		return err
	}
	return o.sender.Send(event)
}

// Close tears down every peer link. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.teardownAll()
}

// Links reports the remote connections with an open peer link.
func (o *Orchestrator) Links() []domain.ConnectionID {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.ConnectionID, 0, len(o.links))
	for remote := range o.links {
		out = append(out, remote)
	}
	return out
}

func (o *Orchestrator) handleJoined(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.JoinedPayload](event)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.connID = payload.ConnectionID
	o.roomID = payload.RoomID
	o.mu.Unlock()

	o.observer.OnJoined(payload.RoomID, payload.ConnectionID, payload.Clients)

	o.connectToMembers(payload.Clients)
	return nil
}

func (o *Orchestrator) handleRoomUpdate(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.RoomUpdatePayload](event)
	if err != nil {
		return err
	}

	o.observer.OnRoomUpdate(payload.RoomID, payload.Clients)

	// Drop links to members no longer in the room.
	present := make(map[domain.ConnectionID]bool, len(payload.Clients))
	for _, m := range payload.Clients {
		present[m.ConnectionID] = true
	}
	o.mu.Lock()
	var gone []domain.ConnectionID
	for remote := range o.links {
		if !present[remote] {
			gone = append(gone, remote)
		}
	}
	o.mu.Unlock()
	for _, remote := range gone {
		o.closeLink(remote)
	}

	o.connectToMembers(payload.Clients)
	return nil
}

// connectToMembers opens a link to every member this client should
// initiate toward. The member with the smaller user ID places the
// call; the tie on equal user IDs falls to the connection ID. Both
// sides evaluate the same predicate, so exactly one initiates.
func (o *Orchestrator) connectToMembers(members []domain.MemberDescriptor) {
	o.mu.Lock()
	self := o.connID
	userID := o.userID
	o.mu.Unlock()

	for _, m := range members {
		if m.ConnectionID == self {
			continue
		}
		o.mu.Lock()
		_, exists := o.links[m.ConnectionID]
		o.mu.Unlock()
		if exists {
			continue
		}
		if !shouldInitiate(userID, self, m) {
			continue
		}
		if err := o.openLink(m.ConnectionID, m.UserID, true, nil); err != nil {
			o.logger.Warn("failed to open peer link",
				zap.String("remote", string(m.ConnectionID)),
				zap.Error(err))
			o.observer.OnError(err)
		}
	}
}

func shouldInitiate(localUser domain.UserID, localConn domain.ConnectionID, remote domain.MemberDescriptor) bool {
	if localUser != remote.UserID {
		return localUser < remote.UserID
	}
	return localConn < remote.ConnectionID
}

func (o *Orchestrator) handleOffer(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.DescriptionPayload](event)
	if err != nil {
		return err
	}
	remote := payload.SenderConnectionID
	if remote == "" {
		return apperrors.NewValidationError("offer missing sender connection")
	}

	// An incoming offer always wins: if both sides offered at once, the
	// local attempt is discarded and this client answers instead.
	o.mu.Lock()
	_, exists := o.links[remote]
	o.mu.Unlock()
	if exists {
		o.logger.Info("replacing peer link on incoming offer",
			zap.String("remote", string(remote)))
		o.closeLink(remote)
	}

	return o.openLink(remote, payload.Sender, false, &payload.SDP)
}

func (o *Orchestrator) handleAnswer(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.DescriptionPayload](event)
	if err != nil {
		return err
	}
	remote := payload.SenderConnectionID

	o.mu.Lock()
	link, exists := o.links[remote]
	if !exists || !link.awaitingAnswer {
		o.mu.Unlock()
		return apperrors.NewStateError("unexpected answer from " + string(remote))
	}
	link.awaitingAnswer = false
	o.mu.Unlock()

	if err := link.pc.SetRemoteDescription(payload.SDP); err != nil {
		o.failLink(remote, link.generation, err)
		return err
	}
	for _, drainErr := range link.buffer.Open() {
		o.logger.Warn("buffered candidate rejected",
			zap.String("remote", string(remote)),
			zap.Error(drainErr))
	}
	return nil
}

func (o *Orchestrator) handleCandidate(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.CandidatePayload](event)
	if err != nil {
		return err
	}
	remote := payload.SenderConnectionID

	o.mu.Lock()
	link, exists := o.links[remote]
	if !exists {
		// Candidate raced ahead of its offer. Hold it until the link
		// exists.
		o.early[remote] = append(o.early[remote], payload.Candidate)
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	return link.buffer.Add(payload.Candidate)
}

func (o *Orchestrator) handleUserDisconnected(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.UserDisconnectedPayload](event)
	if err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.early, payload.ConnectionID)
	o.mu.Unlock()

	o.closeLink(payload.ConnectionID)
	return nil
}

func (o *Orchestrator) handleChatMessage(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.ChatMessagePayload](event)
	if err != nil {
		return err
	}
	o.observer.OnChatMessage(payload)
	return nil
}

func (o *Orchestrator) handleCallEvent(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.CallControlPayload](event)
	if err != nil {
		return err
	}
	o.observer.OnCallEvent(event.Type, payload)
	return nil
}

func (o *Orchestrator) handleErrorEvent(event domain.Event) error {
	payload, err := domain.DecodePayload[domain.ErrorPayload](event)
	if err != nil {
		return err
	}
	o.observer.OnError(apperrors.NewStateError(payload.Message))
	return nil
}

// openLink builds a peer connection toward the remote member. With a
// remote offer the link answers; without one it creates and sends an
// offer.
func (o *Orchestrator) openLink(remote domain.ConnectionID, remoteUser domain.UserID, initiator bool, remoteOffer *domain.SessionDescription) error {
	pc, err := o.factory.NewPeerConnection(o.iceServers)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	link := &peerLink{
		remote:     remote,
		remoteUser: remoteUser,
		pc:         pc,
		buffer:     NewCandidateBuffer(pc.AddICECandidate),
		initiator:  initiator,
		generation: gen,
	}
	o.links[remote] = link
	roomID, userID := o.roomID, o.userID

	// Adopt candidates that arrived before the link existed.
	held := o.early[remote]
	delete(o.early, remote)
	o.mu.Unlock()

	for _, candidate := range held {
		link.buffer.Add(candidate)
	}

	pc.OnICECandidate(func(candidate domain.ICECandidate) {
		event, err := domain.NewEvent(domain.EventICECandidate, domain.CandidatePayload{
			RoomID:    roomID,
			Candidate: candidate,
			Sender:    userID,
			Target:    remote,
		})
		if err != nil {
			return
		}
		if err := o.sender.Send(event); err != nil {
			o.logger.Warn("failed to send candidate",
				zap.String("remote", string(remote)),
				zap.Error(err))
		}
	})

	pc.OnStateChange(func(state PeerState) {
		o.observer.OnPeerStateChange(remote, state)
		if state == PeerStateFailed {
			o.failLink(remote, gen, apperrors.NewNegotiationFailure("peer connection failed"))
		}
	})

	if initiator {
		offer, err := pc.CreateOffer()
		if err != nil {
			o.closeLink(remote)
			return err
		}
		event, err := domain.NewEvent(domain.EventOffer, domain.DescriptionPayload{
			RoomID: roomID,
			SDP:    offer,
			Sender: userID,
			Target: remote,
		})
		if err != nil {
			o.closeLink(remote)
			return err
		}
		o.mu.Lock()
		link.awaitingAnswer = true
		o.mu.Unlock()
		if err := o.sender.Send(event); err != nil {
			o.closeLink(remote)
			return err
		}
		return nil
	}

	if err := pc.SetRemoteDescription(*remoteOffer); err != nil {
		o.closeLink(remote)
		return err
	}
	for _, drainErr := range link.buffer.Open() {
		o.logger.Warn("buffered candidate rejected",
			zap.String("remote", string(remote)),
			zap.Error(drainErr))
	}

	answer, err := pc.CreateAnswer()
	if err != nil {
		o.closeLink(remote)
		return err
	}
	event, err := domain.NewEvent(domain.EventAnswer, domain.DescriptionPayload{
		RoomID: roomID,
		SDP:    answer,
		Sender: userID,
		Target: remote,
	})
	if err != nil {
		o.closeLink(remote)
		return err
	}
	if err := o.sender.Send(event); err != nil {
		o.closeLink(remote)
		return err
	}
	return nil
}

// closeLink tears down the link to a remote member. Idempotent; a
// second call for the same remote finds nothing to do.
func (o *Orchestrator) closeLink(remote domain.ConnectionID) {
	o.mu.Lock()
	link, exists := o.links[remote]
	if exists {
		delete(o.links, remote)
	}
	o.mu.Unlock()

	if !exists {
		return
	}

	link.buffer.Reset()
	if err := link.pc.Close(); err != nil {
		o.logger.Debug("peer connection close failed",
			zap.String("remote", string(remote)),
			zap.Error(err))
	}
	o.observer.OnPeerClosed(remote)
}

func (o *Orchestrator) teardownAll() {
	o.mu.Lock()
	remotes := make([]domain.ConnectionID, 0, len(o.links))
	for remote := range o.links {
		remotes = append(remotes, remote)
	}
	o.early = make(map[domain.ConnectionID][]domain.ICECandidate)
	o.mu.Unlock()

	for _, remote := range remotes {
		o.closeLink(remote)
	}
}

// failLink handles a dead peer connection. The initiating side retries
// the whole exchange with backoff; the answering side only tears down
// and waits for a fresh offer.
func (o *Orchestrator) failLink(remote domain.ConnectionID, generation uint64, cause error) {
	o.mu.Lock()
	link, exists := o.links[remote]
	if !exists || link.generation != generation {
		o.mu.Unlock()
		return
	}
	initiator := link.initiator
	remoteUser := link.remoteUser
	o.mu.Unlock()

	o.observer.OnError(cause)
	o.closeLink(remote)

	if !initiator || !o.reconnect.Enabled {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		err := retry.Retry(ctx, o.reconnect, func(attempt int) error {
			o.mu.Lock()
			closed := o.closed
			_, relinked := o.links[remote]
			o.mu.Unlock()
			if closed || relinked {
				return nil
			}
			o.logger.Info("reconnecting peer link",
				zap.String("remote", string(remote)),
				zap.Int("attempt", attempt))
			return o.openLink(remote, remoteUser, true, nil)
		})
		if err != nil {
			o.observer.OnError(apperrors.NewNegotiationFailure(
				"failed to reconnect to " + string(remoteUser)))
		}
	}()
}
