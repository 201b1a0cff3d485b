package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/quizit/quizit-service/internal/auth"
	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/lobby"
	"github.com/quizit/quizit-service/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	quizzes map[string]*models.Quiz
	userErr error
	created []database.CreateGameParams
	deleted []string
}

var _ database.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[string]*models.User{
			"t1": {UserID: "t1", Username: "Ms. Teacher", Teacher: true},
			"s1": {UserID: "s1", Username: "Alice Student"},
			"s2": {UserID: "s2", Username: "Bob Student"},
		},
		quizzes: map[string]*models.Quiz{
			"q1": {
				Title: "Geography",
				Questions: []models.Question{
					{
						Prompt:  "Capital of France?",
						Type:    models.QuestionSingle,
						Options: []string{"Paris", "London"},
						Correct: models.IndexSet{0},
					},
				},
			},
		},
	}
}

func (s *fakeStore) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userErr != nil {
		return nil, s.userErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) FetchQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[quizID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return q, nil
}

func (s *fakeStore) GameCodeExists(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func (s *fakeStore) CreateGame(ctx context.Context, p database.CreateGameParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, p)
	return fmt.Sprintf("game-%d", len(s.created)), nil
}

func (s *fakeStore) AppendPlayer(ctx context.Context, gameID, userID string) error {
	return nil
}

func (s *fakeStore) FinalizeGame(ctx context.Context, gameID string, final database.FinalGame) error {
	return nil
}

func (s *fakeStore) WriteResult(ctx context.Context, gameID, userID string, result models.PlayerResult) error {
	return nil
}

func (s *fakeStore) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, gameID)
	return nil
}

func (s *fakeStore) createdGames() []database.CreateGameParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.CreateGameParams, len(s.created))
	copy(out, s.created)
	return out
}

func newTestServer(store database.Store, verifier *auth.Verifier) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewServer(logger, store, nil, verifier, lobby.NewRegistry())
}

func newTestSession() *session {
	return &session{
		remote:   "test-peer",
		out:      make(chan map[string]interface{}, 256),
		closeReq: make(chan closeRequest, 1),
	}
}

func frame(t *testing.T, raw string) *inboundFrame {
	t.Helper()
	var f inboundFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	return &f
}

func drainFrames(sess *session) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case msg := <-sess.out:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func framesOfType(frames []map[string]interface{}, frameType string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, f := range frames {
		if f["type"] == frameType {
			out = append(out, f)
		}
	}
	return out
}

func waitFrame(t *testing.T, sess *session, frameType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sess.out:
			if msg["type"] == frameType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
			return nil
		}
	}
}

// authAs runs an auth frame through the router and asserts it succeeded.
func authAs(t *testing.T, s *Server, sess *session, userID string) {
	t.Helper()
	s.dispatch(context.Background(), sess, frame(t, fmt.Sprintf(`{"user_id":%q}`, userID)))
	waitFrame(t, sess, "auth_success")
	require.True(t, sess.authed)
}
