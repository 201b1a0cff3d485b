package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quizit/quizit-service/internal/models"
)

// gameDoc is the games/{game_id} document shape.
type gameDoc struct {
	Host         string                    `json:"host"`
	Players      []string                  `json:"players"`
	GroupID      string                    `json:"group_id"`
	Active       bool                      `json:"active"`
	GameFinished bool                      `json:"game_finished"`
	Code         string                    `json:"code"`
	Type         string                    `json:"type"`
	QuizID       string                    `json:"quiz_id"`
	FinishedAt   string                    `json:"finished_at,omitempty"`
	FinalResults []models.LeaderboardEntry `json:"final_results,omitempty"`
	GameMode     string                    `json:"game_mode,omitempty"`
	EndedReason  string                    `json:"ended_reason,omitempty"`
}

// GameCodeExists reports whether an active game document already carries
// the given room code. The in-memory registry is checked separately by the
// code generator; this guards against codes held by games from a previous
// process lifetime.
func (s *PGStore) GameCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM games WHERE doc ->> 'code' = $1 AND (doc ->> 'active')::bool)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check game code %s: %w", code, err)
	}
	return exists, nil
}

// CreateGame writes a fresh game document and returns its id.
func (s *PGStore) CreateGame(ctx context.Context, p CreateGameParams) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate game id: %w", err)
	}

	doc := gameDoc{
		Host:    p.HostID,
		Players: []string{},
		GroupID: p.GroupID,
		Active:  true,
		Code:    p.Code,
		Type:    p.Mode,
		QuizID:  p.QuizID,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal game doc: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `INSERT INTO games (id, doc) VALUES ($1, $2)`, id, raw)
		return e
	})
	if err != nil {
		return "", fmt.Errorf("insert game: %w", err)
	}
	return id.String(), nil
}

// AppendPlayer adds a user id to the game document's players array.
// Duplicate appends are harmless; the array records join order.
func (s *PGStore) AppendPlayer(ctx context.Context, gameID, userID string) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx,
			`UPDATE games
			 SET doc = jsonb_set(doc, '{players}', (doc -> 'players') || to_jsonb($2::text))
			 WHERE id = $1`,
			gameID, userID,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("append player %s to game %s: %w", userID, gameID, err)
	}
	return nil
}

// FinalizeGame merges the final leaderboard into the game document and
// marks it finished.
func (s *PGStore) FinalizeGame(ctx context.Context, gameID string, final FinalGame) error {
	patch := map[string]interface{}{
		"active":        false,
		"game_finished": true,
		"finished_at":   time.Now().UTC().Format(time.RFC3339),
		"final_results": final.Leaderboard,
		"game_mode":     final.Mode,
		"ended_reason":  "finished",
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal final game patch: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `UPDATE games SET doc = doc || $2 WHERE id = $1`, gameID, raw)
		return e
	})
	if err != nil {
		return fmt.Errorf("finalize game %s: %w", gameID, err)
	}
	return nil
}

// WriteResult upserts one student's result subdocument under the game.
func (s *PGStore) WriteResult(ctx context.Context, gameID, userID string, result models.PlayerResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %s: %w", userID, err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx,
			`INSERT INTO game_results (game_id, user_id, doc)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (game_id, user_id) DO UPDATE SET doc = EXCLUDED.doc`,
			gameID, userID, raw,
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("write result for %s in game %s: %w", userID, gameID, err)
	}
	return nil
}

// DeleteGame removes an abandoned game document; the results subcollection
// goes with it via the FK cascade.
func (s *PGStore) DeleteGame(ctx context.Context, gameID string) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
		return e
	})
	if err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}
	return nil
}
