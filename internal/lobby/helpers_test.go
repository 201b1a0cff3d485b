package lobby

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/models"
)

// fakeStore records every persistence call so tests can assert on what a
// lobby wrote without a database.
type fakeStore struct {
	mu           sync.Mutex
	codes        map[string]bool
	codeErr      error
	appended     []string
	finalized    map[string]database.FinalGame
	results      map[string]models.PlayerResult
	resultWrites int
	deleted      []string
}

var _ database.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		codes:     make(map[string]bool),
		finalized: make(map[string]database.FinalGame),
		results:   make(map[string]models.PlayerResult),
	}
}

func (s *fakeStore) FetchUser(ctx context.Context, userID string) (*models.User, error) {
	return nil, database.ErrNotFound
}

func (s *fakeStore) FetchQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	return nil, database.ErrNotFound
}

func (s *fakeStore) GameCodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeErr != nil {
		return false, s.codeErr
	}
	return s.codes[code], nil
}

func (s *fakeStore) CreateGame(ctx context.Context, p database.CreateGameParams) (string, error) {
	return "game-1", nil
}

func (s *fakeStore) AppendPlayer(ctx context.Context, gameID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, userID)
	return nil
}

func (s *fakeStore) FinalizeGame(ctx context.Context, gameID string, final database.FinalGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[gameID] = final
	return nil
}

func (s *fakeStore) WriteResult(ctx context.Context, gameID, userID string, result models.PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[userID] = result
	s.resultWrites++
	return nil
}

func (s *fakeStore) DeleteGame(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, gameID)
	return nil
}

func (s *fakeStore) appendedPlayers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.appended))
	copy(out, s.appended)
	return out
}

func (s *fakeStore) deletedGames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.deleted))
	copy(out, s.deleted)
	return out
}

func (s *fakeStore) finalizedGame(gameID string) (database.FinalGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	final, ok := s.finalized[gameID]
	return final, ok
}

func (s *fakeStore) result(userID string) (models.PlayerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[userID]
	return r, ok
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultWrites
}

func testConn(id, name string) *Conn {
	return &Conn{
		User: &models.User{UserID: id, Username: name},
		Out:  make(chan map[string]interface{}, 256),
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func sampleQuiz() *models.Quiz {
	return &models.Quiz{
		Title: "Geography",
		Questions: []models.Question{
			{
				Prompt:    "Capital of France?",
				Type:      models.QuestionSingle,
				Options:   []string{"Paris", "London", "Rome"},
				Correct:   models.IndexSet{0},
				Point:     2,
				TimeLimit: 20,
			},
			{
				Prompt:    "Which are EU founding members?",
				Type:      models.QuestionMultiple,
				Options:   []string{"France", "Spain", "Italy", "Belgium"},
				Correct:   models.IndexSet{0, 2, 3},
				TimeLimit: 20,
			},
			{
				Prompt:     "Type the capital of France",
				Type:       models.QuestionText,
				TextAnswer: "Paris",
				TimeLimit:  20,
			},
		},
	}
}

// newTestLobby builds a lobby whose round timers tick in milliseconds.
func newTestLobby(mode Mode) (*Lobby, *Conn, *fakeStore) {
	store := newFakeStore()
	host := testConn("host", "Ms. Teacher")
	host.IsHost = true
	l := New("ABC123", "game-1", host, sampleQuiz(), mode, false, store, testLogger())
	l.timeUnit = time.Millisecond
	return l, host, store
}

// drainFrames pulls everything currently queued for a connection.
func drainFrames(c *Conn) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case msg := <-c.Out:
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

// waitFrame blocks until a frame of the given type arrives, discarding
// everything before it.
func waitFrame(t *testing.T, c *Conn, frameType string) map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.Out:
			if msg["type"] == frameType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q frame", frameType)
			return nil
		}
	}
}
