// Package relay is the realtime chat relay. Clients open a websocket, send
// an init frame naming the conversation, then send message frames; each
// message is persisted through the API and broadcast to every connection
// in the conversation. There are no delivery or ordering guarantees.
package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"go.uber.org/zap"
)

const persistTimeout = 10 * time.Second

// Server accepts relay websocket connections
type Server struct {
	registry  *Registry
	store     MessageStore
	jwtSecret []byte
}

// NewServer creates a relay server. Init tokens are verified with jwtSecret.
func NewServer(store MessageStore, jwtSecret []byte) *Server {
	return &Server{registry: NewRegistry(), store: store, jwtSecret: jwtSecret}
}

// Registry exposes the connection registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // mobile clients send no Origin
	})
	if err != nil {
		logger.Log.Warn("Relay upgrade failed", zap.Error(err), logger.WithIP(r.RemoteAddr))
		return
	}

	c := newClient(conn, r.RemoteAddr)
	m := metrics.Get()
	m.RelayConnections.Inc()
	defer m.RelayConnections.Dec()

	s.serve(r.Context(), c)
}

func (s *Server) serve(ctx context.Context, c *Client) {
	defer func() {
		if c.joined {
			s.registry.Leave(c, c.key)
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				logger.Log.Debug("Relay read ended", zap.Error(err), logger.WithUserID(c.sender))
			}
			return
		}

		frame, err := parseFrame(data)
		if err != nil {
			s.reject(ctx, c, "unknown", "malformed JSON")
			continue
		}

		switch frame.Type {
		case FrameInit:
			s.handleInit(ctx, c, frame)
		case FrameMessage:
			s.handleMessage(ctx, c, frame)
		default:
			s.reject(ctx, c, "unknown", "unknown frame type")
		}
	}
}

func (s *Server) reject(ctx context.Context, c *Client, frameType, reason string) {
	metrics.Get().RelayMessagesTotal.WithLabelValues(frameType, "rejected").Inc()
	if err := c.write(ctx, newError(reason)); err != nil {
		logger.Log.Debug("Relay error write failed", zap.Error(err))
	}
}

func (s *Server) handleInit(ctx context.Context, c *Client, f *inbound) {
	if c.joined {
		s.reject(ctx, c, FrameInit, "connection already initialized")
		return
	}
	sender, receiver := f.sender(), f.receiver()
	if sender == "" || receiver == "" || f.Token == "" {
		s.reject(ctx, c, FrameInit, "init requires sender, receiver and token")
		return
	}
	if sender == receiver {
		s.reject(ctx, c, FrameInit, "cannot open a conversation with yourself")
		return
	}

	userID, err := auth.ParseToken(f.Token, s.jwtSecret)
	if err != nil {
		s.reject(ctx, c, FrameInit, "invalid token")
		return
	}
	if userID != sender {
		s.reject(ctx, c, FrameInit, "token does not belong to sender")
		return
	}

	key, err := s.registry.Join(c, sender, receiver)
	if err != nil {
		s.reject(ctx, c, FrameInit, err.Error())
		return
	}

	c.joined = true
	c.key = key
	c.sender = sender
	c.receiver = receiver
	c.token = f.Token

	metrics.Get().RelayMessagesTotal.WithLabelValues(FrameInit, "ok").Inc()
	logger.Log.Debug("Relay conversation joined",
		logger.WithUserID(sender),
		zap.String("receiver", receiver),
		zap.String("initiator", key.initiator),
	)
	if err := c.write(ctx, initFrame{Type: FrameInit, Status: "ok"}); err != nil {
		logger.Log.Debug("Relay init reply failed", zap.Error(err))
	}
}

func (s *Server) handleMessage(ctx context.Context, c *Client, f *inbound) {
	if !c.joined {
		s.reject(ctx, c, FrameMessage, "send init first")
		return
	}
	if f.Body == "" {
		s.reject(ctx, c, FrameMessage, "message body is required")
		return
	}

	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	msg, err := s.store.CreateMessage(persistCtx, c.token, c.sender, c.receiver, f.Body)
	cancel()
	if err != nil {
		logger.Log.Warn("Relay failed to persist message", zap.Error(err), logger.WithUserID(c.sender))
		metrics.Get().RelayMessagesTotal.WithLabelValues(FrameMessage, "failed").Inc()
		if werr := c.write(ctx, newError("message could not be sent")); werr != nil {
			logger.Log.Debug("Relay error write failed", zap.Error(werr))
		}
		return
	}

	metrics.Get().RelayMessagesTotal.WithLabelValues(FrameMessage, "ok").Inc()
	out := messageFrame{Type: FrameMessage, Message: msg}
	for _, peer := range s.registry.Members(c.key) {
		if err := peer.write(ctx, out); err != nil {
			logger.Log.Debug("Relay broadcast write failed", zap.Error(err), logger.WithIP(peer.RemoteAddr))
		}
	}
}
