package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"pairlink/internal/client"
	"pairlink/internal/core/domain"
	"pairlink/pkg/config"
	"pairlink/pkg/logger"
	"pairlink/pkg/retry"
	"pairlink/pkg/utils"

	"go.uber.org/zap"
)

type consoleObserver struct {
	client.NopObserver
	logger *zap.Logger
}

func (o *consoleObserver) OnJoined(roomID domain.RoomID, connID domain.ConnectionID, members []domain.MemberDescriptor) {
	o.logger.Info("joined room",
		zap.String("room_id", string(roomID)),
		zap.String("connection_id", string(connID)),
		zap.Int("members", len(members)))
}

func (o *consoleObserver) OnRoomUpdate(roomID domain.RoomID, members []domain.MemberDescriptor) {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = string(m.UserID)
	}
	o.logger.Info("room members", zap.Strings("users", names))
}

func (o *consoleObserver) OnPeerStateChange(remote domain.ConnectionID, state client.PeerState) {
	o.logger.Info("peer state",
		zap.String("remote", string(remote)),
		zap.String("state", string(state)))
}

func (o *consoleObserver) OnChatMessage(msg domain.ChatMessagePayload) {
	fmt.Printf("[%s] %s\n", msg.Sender, msg.Message)
}

func (o *consoleObserver) OnCallEvent(eventType domain.EventType, payload domain.CallControlPayload) {
	o.logger.Info("call event",
		zap.String("event", string(eventType)),
		zap.String("from", string(payload.Sender)))
}

func (o *consoleObserver) OnError(err error) {
	o.logger.Warn("signaling error", zap.Error(err))
}

// fetchICEServers asks the relay for the STUN and TURN list so every
// participant negotiates against the same servers.
func fetchICEServers(serverURL string) ([]config.ICEServer, error) {
	resp, err := http.Get(serverURL + "/api/ice-servers")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		ICEServers []config.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.ICEServers, nil
}

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "signaling server base URL")
		roomID    = flag.String("room", "lobby", "room to join")
		userID    = flag.String("user", "", "user ID (generated when empty)")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	zapLogger := logger.NewConsole(*logLevel)
	defer zapLogger.Sync()

	if *userID == "" {
		*userID = utils.GenerateUserID()
	}

	cfg := config.DefaultConfig()

	iceServers, err := fetchICEServers(*serverURL)
	if err != nil {
		zapLogger.Warn("could not fetch ICE servers, using defaults", zap.Error(err))
		iceServers = cfg.WebRTC.ICEServers
	}

	wsURL := "ws" + strings.TrimPrefix(*serverURL, "http") + "/ws"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signaling, err := client.DialSignaling(ctx, wsURL, cfg.Client.HandshakeTimeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect", zap.Error(err))
	}
	defer signaling.Close()

	media := client.NewMediaEngine(zapLogger)
	if _, err := media.AddAudioTrack("audio", "pairlink-audio"); err != nil {
		zapLogger.Fatal("failed to create audio track", zap.Error(err))
	}

	factory := client.NewPionFactory(media, zapLogger)
	observer := &consoleObserver{logger: zapLogger}

	reconnect := retry.Config{
		Enabled:      cfg.Client.Reconnect.Enabled,
		MaxAttempts:  cfg.Client.Reconnect.MaxAttempts,
		InitialDelay: cfg.Client.Reconnect.InitialDelay,
		MaxDelay:     cfg.Client.Reconnect.MaxDelay,
		Multiplier:   cfg.Client.Reconnect.Multiplier,
	}

	orchestrator := client.NewOrchestrator(signaling, factory, observer, iceServers, reconnect, zapLogger)
	orchestrator.SetMedia(media)
	go orchestrator.Run(ctx, signaling.Events())

	if err := orchestrator.JoinRoom(domain.RoomID(*roomID), domain.UserID(*userID)); err != nil {
		zapLogger.Fatal("failed to join room", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Lines from stdin become chat messages until interrupted. A few
	// slash commands drive the local media switches.
	videoOn := true
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			switch text {
			case "":
				continue
			case "/mute":
				fmt.Println("audio:", orchestrator.ToggleLocalAudio(false))
			case "/unmute":
				fmt.Println("audio:", orchestrator.ToggleLocalAudio(true))
			case "/video":
				videoOn = orchestrator.ToggleLocalVideo(!videoOn)
				fmt.Println("video:", videoOn)
			case "/camera":
				fmt.Println("camera:", orchestrator.SwitchCamera())
			default:
				if err := orchestrator.SendChatMessage(text); err != nil {
					zapLogger.Warn("chat send failed", zap.Error(err))
				}
			}
		}
	}()

	<-quit
	zapLogger.Info("leaving room")
	if err := orchestrator.LeaveRoom(); err != nil {
		zapLogger.Debug("leave failed", zap.Error(err))
	}
	orchestrator.Close()
}
