package lobby

import (
	"context"
	"sort"

	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/models"
)

// FinishGame moves the lobby to FINISHED: builds the placement table,
// notifies everyone, and persists the outcome. Idempotent; a second
// show_results never double-writes results.
func (l *Lobby) FinishGame() {
	l.mu.Lock()

	if l.closed || l.finished {
		l.mu.Unlock()
		return
	}
	l.roundActive = false
	l.finished = true

	// Stable sort over join order breaks score ties by who joined first.
	ranked := make([]*Conn, len(l.players))
	copy(ranked, l.players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return l.scoreboard[ranked[i].User.UserID].Score > l.scoreboard[ranked[j].User.UserID].Score
	})

	leaderboard := make([]models.LeaderboardEntry, 0, len(ranked))
	results := make(map[string]models.PlayerResult, len(ranked))
	for i, p := range ranked {
		uid := p.User.UserID
		entry := models.LeaderboardEntry{
			Place:       i + 1,
			Username:    p.User.Username,
			Score:       l.scoreboard[uid].Score,
			UserID:      uid,
			TabSwitches: l.tabSwitches[uid],
		}
		leaderboard = append(leaderboard, entry)

		records := make([]models.AnswerRecord, len(l.userAnswers[uid]))
		copy(records, l.userAnswers[uid])
		results[uid] = models.PlayerResult{
			UserID:      uid,
			Username:    entry.Username,
			Score:       entry.Score,
			Place:       entry.Place,
			TabSwitches: entry.TabSwitches,
			Answers:     records,
		}

		p.Write(map[string]interface{}{
			"type":          "game_finished",
			"place":         entry.Place,
			"score":         entry.Score,
			"total_players": len(ranked),
		})
	}

	l.sendHostLocked(map[string]interface{}{
		"type":        "game_finished",
		"leaderboard": leaderboard,
		"game_mode":   l.Mode,
	})

	gameID := l.GameID
	mode := string(l.Mode)
	l.log.Infof("game finished, %d players on the leaderboard", len(leaderboard))
	l.mu.Unlock()

	go l.persistResults(gameID, mode, leaderboard, results)
}

// persistResults writes the final leaderboard and the per-student result
// subdocuments. Store failures are logged and never unwind the in-memory
// finish.
func (l *Lobby) persistResults(gameID, mode string, leaderboard []models.LeaderboardEntry, results map[string]models.PlayerResult) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()

	final := database.FinalGame{Leaderboard: leaderboard, Mode: mode}
	if err := l.store.FinalizeGame(ctx, gameID, final); err != nil {
		l.log.Warnf("finalize game %s: %v", gameID, err)
	}
	for uid, result := range results {
		if err := l.store.WriteResult(ctx, gameID, uid, result); err != nil {
			l.log.Warnf("write result for %s: %v", uid, err)
		}
	}
}

// Finished reports whether the game has been finalized.
func (l *Lobby) Finished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finished
}
