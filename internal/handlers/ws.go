// Package handlers carries the WebSocket surface: one session per
// connection, a write pump serializing outbound frames, and the
// field-presence router that feeds the lobby engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quizit/quizit-service/internal/auth"
	"github.com/quizit/quizit-service/internal/cache"
	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/lobby"
	"github.com/quizit/quizit-service/internal/models"
)

const outboundQueueSize = 64

// Server accepts WebSocket connections and owns the process-wide session
// set. Lobby state lives in the registry; per-connection state lives in a
// session.
type Server struct {
	logger   *logrus.Logger
	store    database.Store
	users    *cache.UserCache
	verifier *auth.Verifier
	registry *lobby.Registry

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewServer wires the WS surface. users and verifier may be nil (cache
// and token verification disabled).
func NewServer(logger *logrus.Logger, store database.Store, users *cache.UserCache, verifier *auth.Verifier, registry *lobby.Registry) *Server {
	return &Server{
		logger:   logger,
		store:    store,
		users:    users,
		verifier: verifier,
		registry: registry,
		sessions: make(map[*session]struct{}),
	}
}

// Handler returns the HTTP handler that upgrades every request to a
// WebSocket session.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// closeRequest asks the write pump to flush queued frames and then close
// the socket with the given status.
type closeRequest struct {
	code   websocket.StatusCode
	reason string
}

// session is the per-connection state: authentication, the bound user, and
// the lobby binding. The read pump is the only writer of authed/user; the
// lobby pointer is also cleared by lobby-side detach callbacks, so it sits
// behind the mutex.
type session struct {
	conn     *websocket.Conn
	remote   string
	out      chan map[string]interface{}
	closeReq chan closeRequest
	cancel   context.CancelFunc

	authed bool
	user   *models.User

	mu    sync.Mutex
	lobby *lobby.Lobby
	lconn *lobby.Conn

	closeOnce    sync.Once
	closedCode   websocket.StatusCode
	closedReason string
}

// send enqueues a frame for the write pump, dropping if the queue is full.
func (sess *session) send(msg map[string]interface{}) {
	select {
	case sess.out <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.Warnf("session %s queue full, dropped frame type %q", sess.remote, msgType)
	}
}

// sendError enqueues an error frame.
func (sess *session) sendError(msg string) {
	sess.send(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// requestClose hands the close to the write pump, which drains the
// outbound queue first so frames enqueued before the request (a kicked
// notice, say) reach the wire ahead of the close.
func (sess *session) requestClose(code websocket.StatusCode, reason string) {
	select {
	case sess.closeReq <- closeRequest{code: code, reason: reason}:
	default:
	}
}

// close shuts the socket down exactly once and stops both pumps.
func (sess *session) close(code websocket.StatusCode, reason string) {
	sess.closeOnce.Do(func() {
		sess.closedCode = code
		sess.closedReason = reason
		if sess.conn != nil {
			_ = sess.conn.Close(code, reason)
		}
		if sess.cancel != nil {
			sess.cancel()
		}
	})
}

func (sess *session) getLobby() (*lobby.Lobby, *lobby.Conn) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lobby, sess.lconn
}

func (sess *session) setLobby(l *lobby.Lobby, c *lobby.Conn) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lobby = l
	sess.lconn = c
}

func (sess *session) clearLobby() {
	sess.setLobby(nil, nil)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &session{
		conn:     c,
		remote:   r.RemoteAddr,
		out:      make(chan map[string]interface{}, outboundQueueSize),
		closeReq: make(chan closeRequest, 1),
		cancel:   cancel,
	}
	s.register(sess)

	s.logger.WithFields(logrus.Fields{
		"remote": sess.remote,
		"path":   r.URL.Path,
	}).Info("WebSocket connected")

	sess.send(map[string]interface{}{
		"type":    "welcome",
		"message": "Welcome! Authenticate to continue.",
	})

	go s.writePump(ctx, sess)
	s.readPump(ctx, sess)

	// ---- cleanup after readPump exits ----
	if l, lconn := sess.getLobby(); l != nil {
		l.HandleDisconnect(lconn)
	}
	s.unregister(sess)
	s.logger.WithField("remote", sess.remote).Info("WebSocket disconnected")
}

// readPump decodes inbound frames and hands them to the router until the
// connection drops.
func (s *Server) readPump(ctx context.Context, sess *session) {
	for {
		typ, msg, err := sess.conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return
			}
			if strings.Contains(err.Error(), "context canceled") {
				return
			}
			s.logger.Warnf("read error for %s: %v (close status %d)", sess.remote, err, closeStatus)
			return
		}
		if typ != websocket.MessageText {
			s.logger.Warnf("non-text message from %s, ignoring", sess.remote)
			continue
		}

		var f inboundFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			s.logger.Warnf("invalid json from %s: %v", sess.remote, err)
			sess.sendError("Invalid JSON format")
			continue
		}

		s.dispatch(ctx, sess, &f)
	}
}

// writePump serializes outbound frames onto the socket and keeps the
// connection alive with periodic pings.
func (s *Server) writePump(ctx context.Context, sess *session) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-sess.closeReq:
			s.drainQueue(ctx, sess)
			sess.close(req.code, req.reason)
			return
		case msg, ok := <-sess.out:
			if !ok {
				return
			}
			if err := s.writeFrame(ctx, sess, msg); err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := sess.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.logger.Warnf("ping to %s failed, assuming disconnect: %v", sess.remote, err)
				return
			}
		}
	}
}

// writeFrame marshals and writes one frame to the socket.
func (s *Server) writeFrame(ctx context.Context, sess *session, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warnf("failed to marshal outgoing frame for %s: %v", sess.remote, err)
		return nil
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = sess.conn.Write(writeCtx, websocket.MessageText, data)
	cancel()
	if err != nil {
		s.logger.Warnf("failed to write to %s: %v", sess.remote, err)
		return err
	}
	return nil
}

// drainQueue writes everything still queued before a requested close.
func (s *Server) drainQueue(ctx context.Context, sess *session) {
	for {
		select {
		case msg := <-sess.out:
			if err := s.writeFrame(ctx, sess, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// CloseAll disconnects every live session; used on shutdown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close(websocket.StatusGoingAway, reasonShutdown)
	}
}
