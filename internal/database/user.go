package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quizit/quizit-service/internal/models"
)

// FetchUser loads users/{user_id} and derives the session identity from it.
func (s *PGStore) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM users WHERE id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}

	var doc models.UserDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return models.NewUser(userID, doc), nil
}
