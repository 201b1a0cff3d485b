package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/quizit/quizit-service/internal/database"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength is the room code length hosts read out to a class.
const DefaultCodeLength = 6

const maxCodeAttempts = 32

// ErrCodeExhausted is returned when no unique code could be drawn within
// the attempt cap. Unreachable in practice at the default length.
var ErrCodeExhausted = errors.New("could not allocate a unique room code")

// codeStore is the slice of the persistence contract the generator needs.
type codeStore interface {
	GameCodeExists(ctx context.Context, code string) (bool, error)
}

// NewCode draws a random room code that collides neither with an active
// in-memory lobby nor with an active game document in the store.
func NewCode(ctx context.Context, length int, reg *Registry, store codeStore) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode(length)
		if reg.HasCode(code) {
			continue
		}
		exists, err := store.GameCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("code uniqueness check: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

func randomCode(length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

// keep the Store interface honest: *database.PGStore must satisfy codeStore.
var _ codeStore = (database.Store)(nil)
