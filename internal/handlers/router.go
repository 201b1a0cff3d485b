package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/lobby"
)

const storeCallTimeout = 10 * time.Second

// inboundFrame is the union of every client message. There is no "type"
// tag on the inbound side; routing goes by which fields are present, and a
// frame carrying several trigger fields fires each matching rule in order.
type inboundFrame struct {
	UserID *string `json:"user_id"`
	Token  *string `json:"token"`

	Quiz     *string   `json:"quiz"`
	Group    *string   `json:"group"`
	GameType *gameType `json:"game_type"`

	Code *string `json:"code"`

	Start       json.RawMessage `json:"start"`
	Next        json.RawMessage `json:"next"`
	ShowResults json.RawMessage `json:"show_results"`

	Answer json.RawMessage `json:"answer"`

	Report *string `json:"report"`
}

// gameType is the host's anti-cheat selection on a create frame.
type gameType struct {
	Mode        string `json:"mode"`
	DisableCopy bool   `json:"disable_copy"`
}

// dispatch walks the routing rules in order. Authentication is rule one,
// so a single frame holding user_id plus a create or join payload
// authenticates first and then proceeds.
func (s *Server) dispatch(ctx context.Context, sess *session, f *inboundFrame) {
	if f.UserID != nil && !sess.authed {
		if !s.handleAuth(ctx, sess, f) {
			return
		}
	}

	if f.Quiz != nil {
		s.handleCreateGame(ctx, sess, f)
	}
	if f.Code != nil {
		s.handleJoinGame(sess, *f.Code)
	}
	if f.Start != nil {
		if l, _ := s.requireHost(sess); l != nil {
			l.StartGame()
		}
	}
	if f.Next != nil {
		if l, _ := s.requireHost(sess); l != nil {
			l.StartNextRound()
		}
	}
	if f.ShowResults != nil {
		if l, _ := s.requireHost(sess); l != nil {
			l.FinishGame()
		}
	}
	if f.Answer != nil {
		l, lconn := sess.getLobby()
		if l == nil {
			sess.sendError("You are not in a game!")
		} else {
			l.SaveAnswer(lconn, f.Answer)
		}
	}
	if f.Report != nil && *f.Report == "switched_tabs" {
		if l, lconn := sess.getLobby(); l != nil {
			l.OnTabEvent(lconn)
		}
	}
}

// handleAuth resolves the claimed user_id to a profile, enforcing the
// identity token when a verifier is configured. Returns false when the
// session was rejected (socket closed) or the lookup failed transiently.
func (s *Server) handleAuth(ctx context.Context, sess *session, f *inboundFrame) bool {
	sess.send(map[string]interface{}{"type": "auth_attempt"})

	uid := strings.TrimSpace(*f.UserID)
	if uid == "" {
		sess.close(websocket.StatusPolicyViolation, reasonInvalidCredentials)
		return false
	}

	if s.verifier.Enabled() {
		if f.Token == nil {
			s.logger.Warnf("auth from %s without token while verification is on", sess.remote)
			sess.close(websocket.StatusPolicyViolation, reasonInvalidCredentials)
			return false
		}
		sub, err := s.verifier.Verify(*f.Token)
		if err != nil || sub != uid {
			s.logger.Warnf("token rejected for claimed user %s: %v", uid, err)
			sess.close(websocket.StatusPolicyViolation, reasonInvalidCredentials)
			return false
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, storeCallTimeout)
	defer cancel()

	user, err := s.users.GetUser(lookupCtx, uid)
	if err != nil {
		s.logger.Warnf("user cache read for %s: %v", uid, err)
	}
	if user == nil {
		user, err = s.store.FetchUser(lookupCtx, uid)
		if errors.Is(err, database.ErrNotFound) {
			s.logger.Warnf("auth for unknown user %s from %s", uid, sess.remote)
			sess.close(websocket.StatusPolicyViolation, reasonInvalidCredentials)
			return false
		}
		if err != nil {
			s.logger.Warnf("fetch user %s: %v", uid, err)
			sess.sendError("Could not verify your identity, try again.")
			return false
		}
		if cacheErr := s.users.PutUser(lookupCtx, user); cacheErr != nil {
			s.logger.Warnf("user cache write for %s: %v", uid, cacheErr)
		}
	}

	sess.authed = true
	sess.user = user
	s.logger.WithFields(logrus.Fields{
		"user_id":  user.UserID,
		"username": user.Username,
		"teacher":  user.Teacher,
	}).Info("session authenticated")

	sess.send(map[string]interface{}{
		"type":     "auth_success",
		"username": user.Username,
		"teacher":  user.Teacher,
	})
	return true
}

// handleCreateGame builds a new lobby for a teacher: quiz fetch, room code
// allocation, game document creation, registry insert.
func (s *Server) handleCreateGame(ctx context.Context, sess *session, f *inboundFrame) {
	if !sess.authed {
		sess.sendError("You must authenticate first!")
		return
	}
	if !sess.user.Teacher {
		sess.sendError("Only teachers can create games!")
		return
	}
	if l, _ := sess.getLobby(); l != nil {
		sess.sendError("You are already in a game!")
		return
	}

	mode := lobby.ModeNormal
	disableCopy := false
	if f.GameType != nil {
		if f.GameType.Mode != "" {
			if !lobby.ValidMode(f.GameType.Mode) {
				sess.sendError("Invalid game mode!")
				return
			}
			mode = lobby.Mode(f.GameType.Mode)
		}
		disableCopy = f.GameType.DisableCopy
	}
	group := ""
	if f.Group != nil {
		group = *f.Group
	}

	sess.send(map[string]interface{}{"type": "creating_game"})

	storeCtx, cancel := context.WithTimeout(ctx, storeCallTimeout)
	defer cancel()

	quiz, err := s.store.FetchQuiz(storeCtx, *f.Quiz)
	if errors.Is(err, database.ErrNotFound) {
		sess.sendError("Quiz not found!")
		return
	}
	if err != nil {
		s.logger.Warnf("fetch quiz %s: %v", *f.Quiz, err)
		sess.sendError("Could not load the quiz, try again.")
		return
	}

	code, err := lobby.NewCode(storeCtx, lobby.DefaultCodeLength, s.registry, s.store)
	if err != nil {
		s.logger.Warnf("allocate room code: %v", err)
		sess.sendError("Could not create the game, try again.")
		return
	}

	gameID, err := s.store.CreateGame(storeCtx, database.CreateGameParams{
		HostID:  sess.user.UserID,
		GroupID: group,
		Code:    code,
		Mode:    string(mode),
		QuizID:  *f.Quiz,
	})
	if err != nil {
		s.logger.Warnf("create game document: %v", err)
		sess.sendError("Could not create the game, try again.")
		return
	}

	hostConn := s.lobbyConn(sess, true)
	l := lobby.New(code, gameID, hostConn, quiz, mode, disableCopy, s.store, s.logger)
	l.OnClose = func(closed *lobby.Lobby) {
		s.registry.Delete(closed.Code)
	}

	if err := s.registry.Add(l); err != nil {
		s.logger.Warnf("register lobby %s: %v", code, err)
		if delErr := s.store.DeleteGame(storeCtx, gameID); delErr != nil {
			s.logger.Warnf("delete orphaned game %s: %v", gameID, delErr)
		}
		sess.sendError("Could not create the game, try again.")
		return
	}
	sess.setLobby(l, hostConn)

	s.logger.WithFields(logrus.Fields{
		"code":    code,
		"game_id": gameID,
		"host":    sess.user.UserID,
		"mode":    mode,
	}).Info("game created")

	sess.send(map[string]interface{}{
		"type":    "game_created",
		"code":    code,
		"game_id": gameID,
	})
	// The host gets the full quiz with answer keys; players only ever see
	// sanitized question frames.
	sess.send(map[string]interface{}{
		"type":      "quiz_info",
		"title":     quiz.Title,
		"questions": quiz.Questions,
	})
}

// handleJoinGame attaches an authenticated student to a live lobby by room
// code.
func (s *Server) handleJoinGame(sess *session, code string) {
	if !sess.authed {
		sess.sendError("You must authenticate first!")
		return
	}
	if l, _ := sess.getLobby(); l != nil {
		sess.sendError("You are already in a game!")
		return
	}

	sess.send(map[string]interface{}{"type": "joining"})

	code = strings.ToUpper(strings.TrimSpace(code))
	l, ok := s.registry.Find(code)
	if !ok {
		sess.sendError("Game not found!")
		return
	}

	conn := s.lobbyConn(sess, false)
	if err := l.Join(conn); err != nil {
		switch {
		case lobby.ErrJoinClosed(err):
			sess.sendError("Game is no longer accepting players!")
		case lobby.ErrAlreadyJoined(err):
			sess.sendError("You already joined this game!")
		default:
			sess.sendError("Could not join the game, try again.")
		}
		return
	}
	sess.setLobby(l, conn)

	sess.send(map[string]interface{}{
		"type":         "joined",
		"code":         l.Code,
		"title":        l.Quiz.Title,
		"mode":         l.Mode,
		"disable_copy": l.DisableCopy,
	})
}

// lobbyConn builds the lobby-side handle for this session. Out is the
// session's own queue, so lobby frames and direct session frames share one
// ordered stream per socket.
func (s *Server) lobbyConn(sess *session, isHost bool) *lobby.Conn {
	return &lobby.Conn{
		User:   sess.user,
		IsHost: isHost,
		Out:    sess.out,
		Kick:   sess.requestClose,
		Detach: sess.clearLobby,
	}
}

// requireHost resolves the session's lobby and checks the caller is its
// host, emitting the error frame otherwise.
func (s *Server) requireHost(sess *session) (*lobby.Lobby, *lobby.Conn) {
	l, lconn := sess.getLobby()
	if l == nil {
		sess.sendError("You are not in a game!")
		return nil, nil
	}
	if !l.IsHost(lconn) {
		sess.sendError("Only the host can do that!")
		return nil, nil
	}
	return l, lconn
}
