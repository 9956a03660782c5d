package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peerdrill/interview-app/internal/auth"
	"github.com/peerdrill/interview-app/internal/config"
	"github.com/peerdrill/interview-app/internal/matching"
	"github.com/peerdrill/interview-app/internal/messaging"
	"github.com/peerdrill/interview-app/internal/presence"
	"github.com/peerdrill/interview-app/internal/protocol"
	"github.com/peerdrill/interview-app/internal/ratelimit"
	"github.com/peerdrill/interview-app/internal/ws"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	serverConfig := ws.DefaultServerConfig()
	serverConfig.ListenAddr = cfg.ListenAddr

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "peerdrill-" + cfg.GatewayName
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	presenceStore, err := presence.NewStore(cfg.RedisAddr, cfg.GatewayName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}

	limiter := ratelimit.NewLimiter(presenceStore.Client())
	verifier := auth.NewVerifier(cfg.AuthSecret)

	log.Printf("PeerDrill WebSocket gateway starting")
	log.Printf("  listen_addr:  %s", serverConfig.ListenAddr)
	log.Printf("  gateway_name: %s", cfg.GatewayName)
	log.Printf("  nats_url:     %s", natsConfig.URL)
	log.Printf("  redis_addr:   %s", cfg.RedisAddr)

	// Declare server early so closures can capture it.
	var server *ws.Server

	// relayMatchEvent translates one matcher event from the user's NATS
	// subject into the corresponding protocol message on the socket.
	relayMatchEvent := func(userID string, data []byte) {
		var env matching.EventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[relay] bad event for user=%s: %v", userID, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var resp []byte
		switch env.Type {
		case matching.EventQueueJoined:
			var ev matching.QueueJoinedEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			presenceStore.UpdateStatus(ctx, userID, presence.StatusQueued)
			resp, _ = protocol.NewServerMessage(protocol.TypeQueueJoined, protocol.QueueJoinedMsg{
				Position:             ev.Position,
				EstimatedWaitMinutes: ev.EstimatedWaitMinutes,
				TotalWaiting:         ev.TotalWaiting,
			})

		case matching.EventMatchProposed:
			var ev matching.MatchProposedEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			presenceStore.UpdateStatus(ctx, userID, presence.StatusMatched)
			resp, _ = protocol.NewServerMessage(protocol.TypeMatchProposed, protocol.MatchProposedMsg{
				MatchID: ev.MatchID,
				RoomID:  ev.RoomID,
				Partner: protocol.PartnerSummary{
					UserID:          ev.Partner.UserID,
					Role:            string(ev.Partner.Role),
					ExperienceYears: ev.Partner.ExperienceYears,
					Skills:          ev.Partner.Skills,
				},
				CompatibilityScore:    ev.CompatibilityScore,
				Breakdown:             ev.Breakdown,
				Reasons:               ev.Reasons,
				AcceptDeadlineSeconds: ev.AcceptDeadlineSeconds,
			})

		case matching.EventMatchAccepted:
			var ev matching.MatchAcceptedEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			resp, _ = protocol.NewServerMessage(protocol.TypeMatchAccepted, protocol.MatchAcceptedMsg{
				MatchID: ev.MatchID,
			})

		case matching.EventMatchCancelled:
			var ev matching.MatchCancelledEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			presenceStore.UpdateStatus(ctx, userID, presence.StatusQueued)
			resp, _ = protocol.NewServerMessage(protocol.TypeMatchCancelled, protocol.MatchCancelledMsg{
				MatchID: ev.MatchID,
				Reason:  ev.Reason,
			})

		case matching.EventSessionReady:
			var ev matching.SessionReadyEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			presenceStore.SetRoom(ctx, userID, ev.RoomID)
			resp, _ = protocol.NewServerMessage(protocol.TypeSessionReady, protocol.SessionReadyMsg{
				MatchID:   ev.MatchID,
				SessionID: ev.SessionID,
				RoomID:    ev.RoomID,
				RoomToken: ev.RoomToken,
			})

		case matching.EventQueueLeft:
			presenceStore.UpdateStatus(ctx, userID, presence.StatusIdle)
			resp, _ = protocol.NewServerMessage(protocol.TypeQueueLeft, protocol.QueueLeftMsg{})

		case matching.EventQueueExpired:
			presenceStore.UpdateStatus(ctx, userID, presence.StatusIdle)
			resp, _ = protocol.NewServerMessage(protocol.TypeQueueExpired, protocol.QueueExpiredMsg{})

		case matching.EventError:
			var ev matching.ErrorEvent
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return
			}
			resp, _ = protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Code:      ev.Code,
				Message:   ev.Message,
				Retryable: ev.Retryable,
			})

		default:
			log.Printf("[relay] unknown event type=%q user=%s", env.Type, userID)
			return
		}

		if resp == nil {
			return
		}
		if err := server.SendMessage(userID, resp); err != nil {
			log.Printf("[relay] send %s to user=%s failed: %v", env.Type, userID, err)
		}
	}

	dispatcher := ws.NewMessageDispatcher(nil)

	// -----------------------------------------------------------------------
	// join_queue — enter the matchmaking queue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinQueue, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinQueueMsg)
		if !ok {
			return
		}
		uid := conn.ID
		ctx := context.Background()

		if allowed, _ := limiter.Allow(ctx, uid, ratelimit.RuleJoin); !allowed {
			resp, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: int(ratelimit.RuleJoin.Window.Seconds()),
			})
			conn.WriteMessage(resp)
			return
		}

		var prefs matching.Preferences
		if len(joinMsg.Preferences) > 0 {
			if err := json.Unmarshal(joinMsg.Preferences, &prefs); err != nil {
				resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
					Code: "invalid_preferences", Message: "malformed preferences block",
				})
				conn.WriteMessage(resp)
				return
			}
		}
		var profile matching.Profile
		if len(joinMsg.Profile) > 0 {
			if err := json.Unmarshal(joinMsg.Profile, &profile); err != nil {
				resp, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
					Code: "invalid_profile", Message: "malformed profile block",
				})
				conn.WriteMessage(resp)
				return
			}
		}

		req := matching.JoinRequest{
			UserID:      uid,
			Gateway:     cfg.GatewayName,
			Preferences: prefs,
			Profile:     profile,
		}
		data, _ := json.Marshal(req)
		natsClient.PublishMatchJoin(data)

		log.Printf("join_queue from user=%s role=%s", uid, prefs.Role)
	})

	// -----------------------------------------------------------------------
	// leave_queue — leave the matchmaking queue
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveQueue, func(conn *ws.Connection, msg interface{}) {
		uid := conn.ID

		data, _ := json.Marshal(matching.LeaveRequest{UserID: uid})
		natsClient.PublishMatchLeave(data)

		log.Printf("leave_queue from user=%s", uid)
	})

	// -----------------------------------------------------------------------
	// heartbeat — queue liveness ping
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeHeartbeat, func(conn *ws.Connection, msg interface{}) {
		uid := conn.ID
		ctx := context.Background()

		if allowed, _ := limiter.Allow(ctx, uid, ratelimit.RuleEvent); !allowed {
			return
		}

		data, _ := json.Marshal(matching.HeartbeatRequest{UserID: uid})
		natsClient.PublishMatchHeartbeat(data)
		presenceStore.Touch(ctx, uid)
	})

	// -----------------------------------------------------------------------
	// accept_match — accept a proposed match
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeAcceptMatch, func(conn *ws.Connection, msg interface{}) {
		acceptMsg, ok := msg.(protocol.AcceptMatchMsg)
		if !ok {
			return
		}
		uid := conn.ID

		if allowed, _ := limiter.Allow(context.Background(), uid, ratelimit.RuleEvent); !allowed {
			return
		}

		data, _ := json.Marshal(matching.AcceptRequest{UserID: uid, MatchID: acceptMsg.MatchID})
		natsClient.PublishMatchAccept(data)

		log.Printf("accept_match from user=%s match=%s", uid, acceptMsg.MatchID)
	})

	// -----------------------------------------------------------------------
	// reject_match — reject a proposed match
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeRejectMatch, func(conn *ws.Connection, msg interface{}) {
		rejectMsg, ok := msg.(protocol.RejectMatchMsg)
		if !ok {
			return
		}
		uid := conn.ID

		if allowed, _ := limiter.Allow(context.Background(), uid, ratelimit.RuleEvent); !allowed {
			return
		}

		data, _ := json.Marshal(matching.RejectRequest{UserID: uid, MatchID: rejectMsg.MatchID})
		natsClient.PublishMatchReject(data)

		log.Printf("reject_match from user=%s match=%s", uid, rejectMsg.MatchID)
	})

	// authenticate resolves the identity token carried in the Authorization
	// header or the token query parameter, then applies the per-user
	// connection rate limit.
	authenticate := func(r *http.Request) (string, error) {
		token := r.URL.Query().Get("token")
		if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
			token = strings.TrimPrefix(authz, "Bearer ")
		}
		uid, err := verifier.UserID(token)
		if err != nil {
			return "", err
		}
		if allowed, _ := limiter.Allow(r.Context(), uid, ratelimit.RuleConnect); !allowed {
			return "", errors.New("connection rate limit exceeded")
		}
		return uid, nil
	}

	server = ws.NewServer(serverConfig, authenticate, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	server.SetOnConnect(func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := presenceStore.Connect(ctx, userID); err != nil {
			log.Printf("[connect] presence for user=%s: %v", userID, err)
		}

		// Per-user event subject: the matcher publishes here regardless of
		// which gateway owns the socket.
		if err := natsClient.SubscribeMatchEvent(userID, func(data []byte) {
			relayMatchEvent(userID, data)
		}); err != nil {
			log.Printf("[connect] subscribe events for user=%s: %v", userID, err)
		}
	})

	server.SetOnDisconnect(func(userID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		// Tell the matcher the socket is gone so any queue entry or pending
		// match gets resolved.
		data, _ := json.Marshal(matching.DisconnectRequest{UserID: userID})
		natsClient.PublishMatchDisconnect(data)

		_ = natsClient.UnsubscribeMatchEvent(userID)
		if err := presenceStore.Disconnect(ctx, userID); err != nil {
			log.Printf("[disconnect] presence for user=%s: %v", userID, err)
		}

		log.Printf("disconnect cleanup for user=%s", userID)
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		natsClient.Close()
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := presenceStore.Close(); err != nil {
			log.Printf("presence store close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
