package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizit/quizit-service/internal/models"
)

// ErrNotFound is returned when a referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// CreateGameParams carries the fields of a new games/{game_id} document.
type CreateGameParams struct {
	HostID  string
	GroupID string
	Code    string
	Mode    string
	QuizID  string
}

// FinalGame carries the fields merged into a game document when the host
// finishes the game.
type FinalGame struct {
	Leaderboard []models.LeaderboardEntry
	Mode        string
}

// Store is the narrow persistence contract the rest of the service depends
// on. Everything past game creation is fire-and-forget from the lobby's
// point of view: callers log failures and keep the in-memory game running.
type Store interface {
	// FetchUser loads a user profile, or ErrNotFound.
	FetchUser(ctx context.Context, userID string) (*models.User, error)
	// FetchQuiz loads a quiz with its questions resolved by id reference,
	// or ErrNotFound.
	FetchQuiz(ctx context.Context, quizID string) (*models.Quiz, error)
	// GameCodeExists reports whether an active game document already holds
	// the given room code.
	GameCodeExists(ctx context.Context, code string) (bool, error)
	// CreateGame writes a new game document and returns its id.
	CreateGame(ctx context.Context, p CreateGameParams) (string, error)
	// AppendPlayer adds a user id to the game document's players array.
	AppendPlayer(ctx context.Context, gameID, userID string) error
	// FinalizeGame merges the final leaderboard into the game document and
	// flips it inactive.
	FinalizeGame(ctx context.Context, gameID string, final FinalGame) error
	// WriteResult upserts one student's result subdocument.
	WriteResult(ctx context.Context, gameID, userID string, result models.PlayerResult) error
	// DeleteGame removes a game document and its results subcollection.
	DeleteGame(ctx context.Context, gameID string) error
}

// PGStore implements Store on Postgres, one JSONB document per row.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}
