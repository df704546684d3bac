package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pairlink/internal/core/domain"
	"pairlink/internal/core/ports"
	apperrors "pairlink/pkg/errors"
	"pairlink/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Metrics receives relay instrumentation. A nil Metrics is allowed.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed(duration time.Duration)
	EventHandled(eventType string)
	ErrorReturned(code string)
	SetRoomsActive(count int)
}

// connection is the relay's live record of one WebSocket client. The
// write mutex serializes frames so broadcasts from multiple event
// handlers never interleave on the socket.
type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	connID domain.ConnectionID

	// stateMu guards userID and room, which other connections' event
	// loops read during targeted relay.
	stateMu sync.RWMutex
	userID  domain.UserID
	room    domain.RoomID
}

func (c *connection) state() (domain.UserID, domain.RoomID) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.userID, c.room
}

func (c *connection) setState(userID domain.UserID, room domain.RoomID) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.userID = userID
	c.room = room
}

func (c *connection) send(writeTimeout time.Duration, event domain.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(event)
}

// WebSocketServer is the signaling relay. It owns the session table,
// routes events between room members and never inspects SDP or
// candidate contents beyond validation.
type WebSocketServer struct {
	roomService ports.RoomService

	connections map[domain.ConnectionID]*connection
	mu          sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration

	messagesPerSecond float64
	messageBurst      int
	maxMessageSize    int64

	metrics Metrics
	logger  *zap.Logger
}

func NewWebSocketServer(roomService ports.RoomService, logger *zap.Logger) *WebSocketServer {
	return &WebSocketServer{
		roomService:  roomService,
		connections:  make(map[domain.ConnectionID]*connection),
		pingInterval: 30 * time.Second,
		pongTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

func (s *WebSocketServer) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
}

func (s *WebSocketServer) SetWriteTimeout(timeout time.Duration) {
	s.writeTimeout = timeout
}

func (s *WebSocketServer) SetMetrics(m Metrics) {
	s.metrics = m
}

// SetRateLimit caps inbound events per connection. Zero disables the
// limit.
func (s *WebSocketServer) SetRateLimit(messagesPerSecond float64, burst int) {
	s.messagesPerSecond = messagesPerSecond
	s.messageBurst = burst
}

// SetMaxMessageSize caps the size of a single inbound frame. Zero
// leaves the transport default.
func (s *WebSocketServer) SetMaxMessageSize(bytes int64) {
	s.maxMessageSize = bytes
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer wsConn.Close()

	c := &connection{
		conn:   wsConn,
		connID: domain.ConnectionID(utils.GenerateConnectionID()),
	}
	connectedAt := time.Now()

	s.mu.Lock()
	s.connections[c.connID] = c
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ConnectionOpened()
	}
	s.logger.Info("client connected",
		zap.String("connection_id", string(c.connID)),
		zap.String("remote_addr", r.RemoteAddr))

	if s.maxMessageSize > 0 {
		wsConn.SetReadLimit(s.maxMessageSize)
	}

	var limiter *rate.Limiter
	if s.messagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.messagesPerSecond), s.messageBurst)
	}

	wsConn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan domain.Event, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var event domain.Event
			if err := wsConn.ReadJSON(&event); err != nil {
				errorChan <- err
				return
			}
			wsConn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- event
		}
	}()

	for {
		select {
		case event := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.logger.Warn("event rate limit exceeded",
					zap.String("connection_id", string(c.connID)))
				s.sendError(c, apperrors.NewRateLimitError())
				continue
			}
			if err := s.dispatch(context.Background(), c, event); err != nil {
				s.logger.Info("event rejected",
					zap.String("connection_id", string(c.connID)),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
				s.sendError(c, err)
			}

		case <-pingTicker.C:
			c.writeMu.Lock()
			wsConn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := wsConn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				s.logger.Info("ping failed",
					zap.String("connection_id", string(c.connID)),
					zap.Error(err))
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Info("read failed",
					zap.String("connection_id", string(c.connID)),
					zap.Error(err))
			}
			goto cleanup
		}
	}

cleanup:
	s.mu.Lock()
	delete(s.connections, c.connID)
	s.mu.Unlock()

	if err := s.leaveCurrentRoom(context.Background(), c); err != nil {
		s.logger.Warn("cleanup leave failed",
			zap.String("connection_id", string(c.connID)),
			zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.ConnectionClosed(time.Since(connectedAt))
	}
	s.logger.Info("client disconnected",
		zap.String("connection_id", string(c.connID)),
		zap.Duration("connected_for", time.Since(connectedAt)))
}

// dispatch routes one inbound event. A panic in a handler is contained
// to that event; the connection stays up.
func (s *WebSocketServer) dispatch(ctx context.Context, c *connection, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handling event",
				zap.String("connection_id", string(c.connID)),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
			err = apperrors.NewInternalError("internal error handling event")
		}
	}()

	if s.metrics != nil {
		s.metrics.EventHandled(string(event.Type))
	}

	switch event.Type {
	case domain.EventJoin:
		return s.handleJoin(ctx, c, event)
	case domain.EventLeave:
		return s.handleLeave(ctx, c, event)
	case domain.EventOffer, domain.EventAnswer:
		return s.handleDescription(ctx, c, event)
	case domain.EventICECandidate:
		return s.handleCandidate(ctx, c, event)
	case domain.EventChatMessage:
		return s.handleChatMessage(ctx, c, event)
	case domain.EventCallUser:
		return s.handleCallControl(ctx, c, event, domain.EventIncomingCall, true)
	case domain.EventCallAccepted:
		return s.handleCallControl(ctx, c, event, domain.EventCallAccepted, true)
	case domain.EventCallRejected:
		return s.handleCallControl(ctx, c, event, domain.EventCallRejected, true)
	case domain.EventEndCall:
		return s.handleCallControl(ctx, c, event, domain.EventCallEnded, false)
	case domain.EventPing:
		return s.handlePing(c)
	default:
		return apperrors.NewValidationError("unknown event type: " + string(event.Type))
	}
}

func (s *WebSocketServer) handleJoin(ctx context.Context, c *connection, event domain.Event) error {
	payload, err := domain.DecodePayload[domain.JoinPayload](event)
	if err != nil {
		return err
	}

	userID := payload.UserID
	if userID == "" {
		userID = domain.UserID(utils.GenerateUserID())
	}

	// Joining while already in a room is an implicit leave first, so a
	// connection is a member of at most one room.
	if _, current := c.state(); current != "" && current != payload.RoomID {
		if err := s.leaveCurrentRoom(ctx, c); err != nil {
			s.logger.Warn("implicit leave failed",
				zap.String("connection_id", string(c.connID)),
				zap.String("room_id", string(current)),
				zap.Error(err))
		}
	}

	room, err := s.roomService.Join(ctx, payload.RoomID, domain.MemberDescriptor{
		ConnectionID: c.connID,
		UserID:       userID,
		JoinedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	c.setState(userID, payload.RoomID)

	joined, err := domain.NewEvent(domain.EventJoined, domain.JoinedPayload{
		RoomID:       room.ID,
		ConnectionID: c.connID,
		Clients:      room.Members,
	})
	if err != nil {
		return err
	}
	if err := c.send(s.writeTimeout, joined); err != nil {
		return apperrors.NewTransportError("failed to confirm join", err)
	}

	update, err := domain.NewEvent(domain.EventRoomUpdate, domain.RoomUpdatePayload{
		RoomID:  room.ID,
		Clients: room.Members,
	})
	if err != nil {
		return err
	}
	s.broadcast(room.Others(c.connID), update)

	return nil
}

func (s *WebSocketServer) handleLeave(ctx context.Context, c *connection, event domain.Event) error {
	payload, err := domain.DecodePayload[domain.LeavePayload](event)
	if err != nil {
		return err
	}
	if _, current := c.state(); current == "" || current != payload.RoomID {
		return apperrors.NewStateError("not a member of room " + string(payload.RoomID))
	}
	return s.leaveCurrentRoom(ctx, c)
}

// leaveCurrentRoom removes the connection from its room and notifies
// the remaining members. Safe to call when the connection is roomless.
func (s *WebSocketServer) leaveCurrentRoom(ctx context.Context, c *connection) error {
	userID, roomID := c.state()
	if roomID == "" {
		return nil
	}
	c.setState(userID, "")

	room, err := s.roomService.Leave(ctx, roomID, c.connID)
	if err != nil {
		return err
	}
	if room == nil {
		// Last member out, room deleted, nobody left to notify.
		return nil
	}

	disconnected, err := domain.NewEvent(domain.EventUserDisconnected, domain.UserDisconnectedPayload{
		UserID:       userID,
		ConnectionID: c.connID,
		RoomID:       roomID,
	})
	if err != nil {
		return err
	}
	s.broadcast(room.Members, disconnected)

	update, err := domain.NewEvent(domain.EventRoomUpdate, domain.RoomUpdatePayload{
		RoomID:  roomID,
		Clients: room.Members,
	})
	if err != nil {
		return err
	}
	s.broadcast(room.Members, update)

	return nil
}

func (s *WebSocketServer) handleDescription(ctx context.Context, c *connection, event domain.Event) error {
	payload, err := domain.DecodePayload[domain.DescriptionPayload](event)
	if err != nil {
		return err
	}
	if err := s.requireMembership(c, payload.RoomID); err != nil {
		return err
	}

	payload.SenderConnectionID = c.connID
	stamped, err := domain.NewEvent(event.Type, payload)
	if err != nil {
		return err
	}

	s.logger.Debug("relaying session description",
		zap.String("event_type", string(event.Type)),
		zap.String("room_id", string(payload.RoomID)),
		zap.String("sender_connection_id", string(c.connID)),
		zap.String("target", string(payload.Target)),
		zap.Int("sdp_length", len(payload.SDP.SDP)))

	return s.relay(ctx, c, payload.RoomID, payload.Target, stamped)
}

func (s *WebSocketServer) handleCandidate(ctx context.Context, c *connection, event domain.Event) error {
	payload, err := domain.DecodePayload[domain.CandidatePayload](event)
	if err != nil {
		return err
	}
	if err := s.requireMembership(c, payload.RoomID); err != nil {
		return err
	}

	payload.SenderConnectionID = c.connID
	stamped, err := domain.NewEvent(domain.EventICECandidate, payload)
	if err != nil {
		return err
	}

	return s.relay(ctx, c, payload.RoomID, payload.Target, stamped)
}

func (s *WebSocketServer) handleChatMessage(ctx context.Context, c *connection, event domain.Event) error {
	payload, err := domain.DecodePayload[domain.ChatMessagePayload](event)
	if err != nil {
		return err
	}
	if err := s.requireMembership(c, payload.RoomID); err != nil {
		return err
	}

	payload.SenderConnectionID = c.connID
	payload.Timestamp = time.Now().UnixMilli()
	stamped, err := domain.NewEvent(domain.EventChatMessage, payload)
	if err != nil {
		return err
	}

	return s.relay(ctx, c, payload.RoomID, "", stamped)
}

// handleCallControl relays a call control request to its target, or to
// the whole room when targetRequired is false.
func (s *WebSocketServer) handleCallControl(ctx context.Context, c *connection, event domain.Event, outType domain.EventType, targetRequired bool) error {
	payload, err := domain.DecodePayload[domain.CallControlPayload](event)
	if err != nil {
		return err
	}
	if err := s.requireMembership(c, payload.RoomID); err != nil {
		return err
	}
	if targetRequired && payload.Target == "" {
		return apperrors.NewValidationError(string(event.Type) + ": target is required")
	}

	payload.SenderConnectionID = c.connID
	out, err := domain.NewEvent(outType, payload)
	if err != nil {
		return err
	}

	return s.relay(ctx, c, payload.RoomID, payload.Target, out)
}

func (s *WebSocketServer) handlePing(c *connection) error {
	pong, err := domain.NewEvent(domain.EventPong, domain.PongPayload{
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return c.send(s.writeTimeout, pong)
}

func (s *WebSocketServer) requireMembership(c *connection, roomID domain.RoomID) error {
	if _, current := c.state(); current == "" || current != roomID {
		return apperrors.NewStateError("not a member of room " + string(roomID))
	}
	return nil
}

// relay delivers an event to one target connection, or to every other
// room member when no target is given. An unknown target is a state
// error back to the sender.
func (s *WebSocketServer) relay(ctx context.Context, from *connection, roomID domain.RoomID, target domain.ConnectionID, event domain.Event) error {
	if target != "" {
		s.mu.RLock()
		dest, exists := s.connections[target]
		s.mu.RUnlock()
		destRoom := domain.RoomID("")
		if exists {
			_, destRoom = dest.state()
		}
		if !exists || destRoom != roomID {
			return apperrors.NewStateError("target " + string(target) + " is not in room " + string(roomID))
		}
		if err := dest.send(s.writeTimeout, event); err != nil {
			return apperrors.NewTransportError("failed to deliver to "+string(target), err)
		}
		return nil
	}

	members, err := s.roomService.Members(ctx, roomID)
	if err != nil {
		return err
	}
	recipients := make([]domain.MemberDescriptor, 0, len(members))
	for _, m := range members {
		if m.ConnectionID != from.connID {
			recipients = append(recipients, m)
		}
	}
	s.broadcast(recipients, event)
	return nil
}

// broadcast delivers an event to every listed member with a live
// connection. Per-recipient failures are logged, never propagated; one
// slow or dead client must not fail the others.
func (s *WebSocketServer) broadcast(members []domain.MemberDescriptor, event domain.Event) {
	for _, m := range members {
		s.mu.RLock()
		dest, exists := s.connections[m.ConnectionID]
		s.mu.RUnlock()
		if !exists {
			continue
		}
		if err := dest.send(s.writeTimeout, event); err != nil {
			s.logger.Warn("broadcast delivery failed",
				zap.String("connection_id", string(m.ConnectionID)),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func (s *WebSocketServer) sendError(c *connection, cause error) {
	message := cause.Error()
	code := apperrors.ErrCodeInternal
	if appErr := apperrors.GetAppError(cause); appErr != nil {
		message = appErr.Message
		code = appErr.Code
	}
	if s.metrics != nil {
		s.metrics.ErrorReturned(string(code))
	}
	event, err := domain.NewEvent(domain.EventError, domain.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	if err := c.send(s.writeTimeout, event); err != nil {
		s.logger.Warn("failed to send error event",
			zap.String("connection_id", string(c.connID)),
			zap.Error(err))
	}
}

// ConnectionCount returns the number of live WebSocket connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// RunSweeper periodically deletes stale empty rooms until the context
// is cancelled.
func (s *WebSocketServer) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.roomService.Sweep(ctx)
			if err != nil {
				s.logger.Warn("room sweep failed", zap.Error(err))
				continue
			}
			if s.metrics != nil {
				if count, err := s.roomService.RoomCount(ctx); err == nil {
					s.metrics.SetRoomsActive(count)
				}
			}
			if removed > 0 {
				s.logger.Info("room sweep completed", zap.Int("removed", removed))
			}
		}
	}
}
