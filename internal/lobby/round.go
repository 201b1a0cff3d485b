package lobby

import (
	"time"

	"github.com/quizit/quizit-service/internal/models"
)

// defaultTimeLimit applies when a question document carries no timeLimit.
const defaultTimeLimit = 30

// StartGame moves the lobby from LOBBY_OPEN to the first question. Host
// only; the router enforces the caller.
func (l *Lobby) StartGame() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.started {
		l.host.WriteError("Game already started!")
		return
	}
	if len(l.Quiz.Questions) == 0 {
		l.host.WriteError("Quiz has no questions!")
		return
	}

	l.started = true
	l.startQuestionLocked(0)
}

// StartNextRound advances to the next question after a round has closed.
// On the last question it tells the host instead of advancing.
func (l *Lobby) StartNextRound() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if !l.started {
		l.host.WriteError("Game has not started yet!")
		return
	}
	if l.finished {
		l.host.WriteError("Game is already finished!")
		return
	}
	if l.roundActive {
		l.host.WriteError("Round is still active!")
		return
	}

	next := l.currentQuestion + 1
	if next >= len(l.Quiz.Questions) {
		l.sendHostLocked(map[string]interface{}{"type": "last_question_completed"})
		return
	}
	l.startQuestionLocked(next)
}

// startQuestionLocked transitions to QUESTION_ACTIVE(q): sends a sanitized
// copy of the question to everyone, clears the answer buffer, and arms the
// round timer tagged with its dispatch round. Assumes lock is held.
func (l *Lobby) startQuestionLocked(q int) {
	l.currentQuestion = q
	l.roundActive = true
	l.answers = nil

	question := &l.Quiz.Questions[q]
	limit := question.TimeLimit
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	frame := sanitizedQuestionFrame(q, question, limit)
	l.sendHostLocked(frame)
	l.broadcastLocked(frame)

	l.log.Infof("question %d dispatched, %ds on the clock", q, limit)

	dispatchRound := q
	time.AfterFunc(time.Duration(limit)*l.timeUnit, func() {
		l.onTimerExpired(dispatchRound)
	})
}

// sanitizedQuestionFrame builds the player-facing copy of a question with
// the answer key and explanation stripped. limit is the effective round
// length, matching the armed timer. The stored quiz is never mutated;
// scoring keeps reading the original.
func sanitizedQuestionFrame(index int, q *models.Question, limit int) map[string]interface{} {
	frame := map[string]interface{}{
		"type":          "question",
		"index":         index,
		"question":      q.Prompt,
		"question_type": q.Type,
		"points":        q.Points(),
		"time_limit":    limit,
	}
	if len(q.Options) > 0 {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		frame["options"] = options
	}
	return frame
}

// onTimerExpired is the armed timer's callback. The dispatch-round guard
// makes a late timer for an already-closed round a no-op: a round that
// ended early (all answered, host advanced) either flipped roundActive or
// moved currentQuestion past the tag.
func (l *Lobby) onTimerExpired(dispatchRound int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || !l.roundActive || l.currentQuestion != dispatchRound {
		return
	}
	l.finishRoundLocked()

	if dispatchRound == len(l.Quiz.Questions)-1 {
		l.sendHostLocked(map[string]interface{}{"type": "last_question_completed"})
	}
}

// finishRoundLocked closes the in-flight question: host stats, per-player
// round_ended frames, missed records for silent players, buffer cleared.
// Idempotent for a given question via the roundActive guard in callers.
// Assumes lock is held.
func (l *Lobby) finishRoundLocked() {
	if !l.roundActive {
		return
	}
	l.roundActive = false

	q := &l.Quiz.Questions[l.currentQuestion]
	points := q.Points()

	right, wrong, earnedTotal := 0, 0, 0
	var byAnswer map[int]int
	if q.Type != models.QuestionText {
		byAnswer = make(map[int]int, len(q.Options))
		for i := range q.Options {
			byAnswer[i] = 0
		}
	}
	for _, sub := range l.answers {
		if sub.result {
			right++
		} else {
			wrong++
		}
		earnedTotal += sub.earned
		for _, idx := range sub.value.SelectedIndices() {
			if idx >= 0 && idx < len(q.Options) {
				byAnswer[idx]++
			}
		}
	}

	stats := map[string]interface{}{
		"type":                  "round_results",
		"right":                 right,
		"wrong":                 wrong,
		"question_points":       points,
		"total_possible_points": points * len(l.players),
		"total_earned_points":   earnedTotal,
	}
	if byAnswer != nil {
		stats["by_answer"] = byAnswer
	}
	l.sendHostLocked(stats)

	board := l.scoreboardLocked()
	for _, sub := range l.answers {
		sub.conn.Write(map[string]interface{}{
			"type":            "round_ended",
			"correct":         sub.result,
			"points_earned":   sub.earned,
			"question_points": points,
			"scoreboard":      board,
		})
	}

	for _, p := range l.players {
		if l.findSubmissionLocked(p.User.UserID) != nil {
			continue
		}
		uid := p.User.UserID
		l.userAnswers[uid] = append(l.userAnswers[uid], models.AnswerRecord{
			QuestionIndex:  l.currentQuestion,
			Prompt:         q.Prompt,
			Type:           q.Type,
			Options:        q.Options,
			UserAnswer:     nil,
			CorrectAnswer:  q.CorrectValue(),
			IsCorrect:      false,
			PointsEarned:   0,
			PossiblePoints: points,
			Missed:         true,
			Explanation:    q.Explanation,
		})
		p.Write(map[string]interface{}{
			"type":            "round_ended",
			"correct":         false,
			"missed":          true,
			"message":         "Time is up! You did not answer this question.",
			"question_points": points,
			"scoreboard":      board,
		})
	}

	l.answers = nil
	l.log.Infof("round %d closed (%d right, %d wrong)", l.currentQuestion, right, wrong)
}
