package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quizit/quizit-service/internal/models"
)

// FetchQuiz loads quizes/{quiz_id} and resolves its question id references
// against the questions collection, preserving the quiz's question order.
func (s *PGStore) FetchQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM quizes WHERE id = $1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch quiz %s: %w", quizID, err)
	}

	var doc models.QuizDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode quiz %s: %w", quizID, err)
	}

	byID := make(map[string]models.Question, len(doc.Questions))
	rows, err := s.pool.Query(ctx, `SELECT id, doc FROM questions WHERE id = ANY($1)`, doc.Questions)
	if err != nil {
		return nil, fmt.Errorf("fetch questions for quiz %s: %w", quizID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var qraw []byte
		if err := rows.Scan(&id, &qraw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q models.Question
		if err := json.Unmarshal(qraw, &q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", id, err)
		}
		byID[id] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch questions for quiz %s: %w", quizID, err)
	}

	quiz := &models.Quiz{Title: doc.Title}
	for _, qid := range doc.Questions {
		q, ok := byID[qid]
		if !ok {
			return nil, fmt.Errorf("quiz %s references question %s: %w", quizID, qid, ErrNotFound)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz, nil
}
