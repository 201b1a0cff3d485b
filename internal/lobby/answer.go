package lobby

import (
	"encoding/json"

	"github.com/quizit/quizit-service/internal/models"
)

// SaveAnswer records a player's submission for the in-flight question,
// grades it, updates the scoreboard, and closes the round early once every
// connected player has answered.
func (l *Lobby) SaveAnswer(c *Conn, raw json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if !l.roundActive {
		c.WriteError("Round is not active!")
		return
	}
	uid := c.User.UserID
	entry, isPlayer := l.scoreboard[uid]
	if !isPlayer {
		c.WriteError("You are not a player in this game!")
		return
	}
	if l.findSubmissionLocked(uid) != nil {
		c.WriteError("You already answered this question!")
		return
	}

	q := &l.Quiz.Questions[l.currentQuestion]
	value, err := models.ParseAnswerValue(raw, q.Type)
	if err != nil {
		l.log.Warnf("bad answer from %s: %v", uid, err)
		c.WriteError("Invalid answer format!")
		return
	}

	points := q.Points()
	correct := value.Grade(q)
	earned := 0
	if correct {
		earned = points
		entry.Score += earned
	}

	l.answers = append(l.answers, submission{conn: c, value: value, result: correct, earned: earned})
	l.userAnswers[uid] = append(l.userAnswers[uid], models.AnswerRecord{
		QuestionIndex:  l.currentQuestion,
		Prompt:         q.Prompt,
		Type:           q.Type,
		Options:        q.Options,
		UserAnswer:     value.Value(),
		CorrectAnswer:  q.CorrectValue(),
		IsCorrect:      correct,
		PointsEarned:   earned,
		PossiblePoints: points,
		Missed:         false,
		Explanation:    q.Explanation,
	})

	// The player's ack goes out before the scoreboard broadcast so each
	// answerer observes their own result first.
	c.Write(map[string]interface{}{
		"type":          "answer_saved",
		"correct":       correct,
		"points_earned": earned,
	})
	l.sendHostLocked(map[string]interface{}{
		"type":    "answer_count",
		"answers": len(l.answers),
	})
	l.broadcastLocked(map[string]interface{}{
		"type": "scoreboard",
		"data": l.scoreboardLocked(),
	})

	if len(l.answers) == len(l.players) {
		l.finishRoundLocked()
	}
}
