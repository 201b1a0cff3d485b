// Package lobby owns the live game state: the per-question state machine,
// answer collection and scoring, the scoreboard, anti-cheat counters, and
// the persistence calls at game boundaries. All mutation of a Lobby is
// serialized by its mutex; suspension happens only at I/O, which is always
// an enqueue onto a session's outbound queue or a store call.
package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/models"
)

// Mode is the anti-cheat policy picked by the host at creation.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeLockdown    Mode = "lockdown"
	ModeTabTracking Mode = "tab_tracking"
)

// ValidMode reports whether s names a known mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeNormal, ModeLockdown, ModeTabTracking:
		return true
	}
	return false
}

const storeCallTimeout = 10 * time.Second

// submission is one buffered answer for the in-flight question.
type submission struct {
	conn   *Conn
	value  models.AnswerValue
	result bool
	earned int
}

// Lobby is one active game, identified by its room code.
type Lobby struct {
	Code        string
	GameID      string
	Quiz        *models.Quiz
	Mode        Mode
	DisableCopy bool

	host    *Conn
	players []*Conn // join order

	scoreboard  map[string]*models.ScoreEntry
	userAnswers map[string][]models.AnswerRecord
	tabSwitches map[string]int

	currentQuestion int
	roundActive     bool
	started         bool
	finished        bool
	closed          bool

	answers []submission

	store database.Store
	log   *logrus.Entry

	// timeUnit scales question time limits; tests shrink it so round
	// expiry can be exercised in milliseconds.
	timeUnit time.Duration

	// OnClose is called once when the lobby is dropped, typically
	// assigned by the registry owner: l.OnClose = func(l *Lobby) {
	// registry.Delete(l.Code) }.
	OnClose func(l *Lobby)

	mu sync.Mutex
}

// New creates a lobby for a freshly created game document.
func New(code, gameID string, host *Conn, quiz *models.Quiz, mode Mode, disableCopy bool, store database.Store, logger *logrus.Logger) *Lobby {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Lobby{
		Code:            code,
		GameID:          gameID,
		Quiz:            quiz,
		Mode:            mode,
		DisableCopy:     disableCopy,
		host:            host,
		scoreboard:      make(map[string]*models.ScoreEntry),
		userAnswers:     make(map[string][]models.AnswerRecord),
		tabSwitches:     make(map[string]int),
		currentQuestion: -1,
		store:           store,
		log:             logger.WithField("lobby", code),
		timeUnit:        time.Second,
	}
}

// Host returns the creating teacher's connection.
func (l *Lobby) Host() *Conn {
	return l.host
}

// IsHost reports whether c is the lobby's host connection.
func (l *Lobby) IsHost(c *Conn) bool {
	return c == l.host
}

// Join adds a player. Late joins are allowed; a late joiner starts at
// score 0 and has no records for prior questions.
func (l *Lobby) Join(c *Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.finished {
		return errJoinClosed
	}
	uid := c.User.UserID
	if _, exists := l.scoreboard[uid]; exists {
		return errAlreadyJoined
	}

	l.players = append(l.players, c)
	l.scoreboard[uid] = &models.ScoreEntry{Username: c.User.Username}
	l.userAnswers[uid] = []models.AnswerRecord{}
	l.tabSwitches[uid] = 0

	l.log.Infof("user %s (%s) joined", uid, c.User.Username)

	gameID := l.GameID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
		defer cancel()
		if err := l.store.AppendPlayer(ctx, gameID, uid); err != nil {
			l.log.Warnf("append player %s: %v", uid, err)
		}
	}()

	l.sendHostLocked(l.playersUpdatedLocked())
	return nil
}

// HandleDisconnect runs the registry's cleanup for a dropped session. A
// dropped socket is a departure; there is no session resume.
func (l *Lobby) HandleDisconnect(c *Conn) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if c == l.host {
		l.teardownLocked()
		return // teardownLocked unlocks
	}
	l.removePlayerLocked(c, "player_disconnected")

	if len(l.players) == 0 && !l.finished {
		l.log.Infof("lobby empty, dropping")
		l.dropLocked()
		return // dropLocked unlocks
	}
	l.mu.Unlock()
}

// teardownLocked handles a host disconnect: notify everyone, detach the
// remaining players, and delete the external record unless the game was
// finished. Unlocks l.mu before the store call.
func (l *Lobby) teardownLocked() {
	l.log.Infof("host disconnected, tearing down (finished=%v)", l.finished)

	l.broadcastLocked(map[string]interface{}{"type": "host_disconnected"})
	for _, p := range l.players {
		p.detach()
	}
	l.closed = true
	l.roundActive = false

	finished := l.finished
	gameID := l.GameID
	onClose := l.OnClose
	l.mu.Unlock()

	if !finished {
		ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
		defer cancel()
		if err := l.store.DeleteGame(ctx, gameID); err != nil {
			l.log.Warnf("delete abandoned game %s: %v", gameID, err)
		}
	}
	if onClose != nil {
		onClose(l)
	}
}

// dropLocked removes an empty, unfinished lobby from the process. The
// host stays connected but loses the lobby binding, so they can create a
// new game. Unlocks l.mu.
func (l *Lobby) dropLocked() {
	l.closed = true
	l.roundActive = false
	l.host.detach()
	onClose := l.OnClose
	l.mu.Unlock()

	if onClose != nil {
		onClose(l)
	}
}

// removePlayerLocked deletes a player from every lobby map and notifies
// the room. notifyType is player_disconnected or player_removed.
func (l *Lobby) removePlayerLocked(c *Conn, notifyType string) {
	uid := c.User.UserID
	if _, present := l.scoreboard[uid]; !present {
		return
	}
	for i, p := range l.players {
		if p == c {
			l.players = append(l.players[:i], l.players[i+1:]...)
			break
		}
	}
	delete(l.scoreboard, uid)
	delete(l.userAnswers, uid)
	delete(l.tabSwitches, uid)
	for i, sub := range l.answers {
		if sub.conn == c {
			l.answers = append(l.answers[:i], l.answers[i+1:]...)
			break
		}
	}

	l.broadcastLocked(map[string]interface{}{
		"type":     notifyType,
		"user_id":  uid,
		"username": c.User.Username,
	})
	l.sendHostLocked(l.playersUpdatedLocked())

	// The departure may have made the remaining players unanimous; close
	// the round now instead of waiting out the timer.
	if l.roundActive && len(l.players) > 0 && len(l.answers) == len(l.players) {
		l.finishRoundLocked()
	}
}

// broadcastLocked enqueues msg for every player. Assumes lock is held.
func (l *Lobby) broadcastLocked(msg map[string]interface{}) {
	for _, p := range l.players {
		p.Write(msg)
	}
}

// sendHostLocked enqueues msg for the host. Assumes lock is held.
func (l *Lobby) sendHostLocked(msg map[string]interface{}) {
	l.host.Write(msg)
}

// playersUpdatedLocked builds the host's roster frame.
func (l *Lobby) playersUpdatedLocked() map[string]interface{} {
	players := make([]map[string]interface{}, 0, len(l.players))
	for _, p := range l.players {
		players = append(players, map[string]interface{}{
			"user_id":  p.User.UserID,
			"username": p.User.Username,
		})
	}
	return map[string]interface{}{
		"type":    "players_updated",
		"players": players,
	}
}

// scoreboardLocked snapshots the live scoreboard in its wire shape:
// user_id -> [username, score].
func (l *Lobby) scoreboardLocked() map[string]models.ScoreEntry {
	board := make(map[string]models.ScoreEntry, len(l.scoreboard))
	for uid, entry := range l.scoreboard {
		board[uid] = *entry
	}
	return board
}

// findSubmissionLocked returns the buffered answer for uid, if any.
func (l *Lobby) findSubmissionLocked(uid string) *submission {
	for i := range l.answers {
		if l.answers[i].conn.User.UserID == uid {
			return &l.answers[i]
		}
	}
	return nil
}
