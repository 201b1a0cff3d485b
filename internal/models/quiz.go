package models

import (
	"encoding/json"
	"fmt"
)

// QuestionType distinguishes how a question is answered and graded.
type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
	QuestionText     QuestionType = "text"
)

// IndexSet holds the correct option indices for a question. The stored
// documents carry a bare integer for single-choice questions and an array
// for multiple-choice, so unmarshaling accepts both.
type IndexSet []int

func (s *IndexSet) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*s = IndexSet{single}
		return nil
	}
	var many []int
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("correct must be an index or an index list: %w", err)
	}
	*s = IndexSet(many)
	return nil
}

// Contains reports whether idx is a member of the set.
func (s IndexSet) Contains(idx int) bool {
	for _, v := range s {
		if v == idx {
			return true
		}
	}
	return false
}

// Equals reports set equality, ignoring order and duplicates.
func (s IndexSet) Equals(other []int) bool {
	seen := make(map[int]bool, len(s))
	for _, v := range s {
		seen[v] = true
	}
	matched := make(map[int]bool, len(other))
	for _, v := range other {
		if !seen[v] {
			return false
		}
		matched[v] = true
	}
	return len(matched) == len(seen)
}

// Question is one entry of a quiz, as stored in the questions collection.
// Exactly one of Correct/TextAnswer is meaningful, determined by Type.
type Question struct {
	Prompt      string       `json:"question"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Correct     IndexSet     `json:"correct,omitempty"`
	TextAnswer  string       `json:"textAnswer,omitempty"`
	Point       int          `json:"point,omitempty"`
	TimeLimit   int          `json:"timeLimit,omitempty"`
	Explanation string       `json:"explanation,omitempty"`
}

// Points returns the question's point value, defaulting to 1.
func (q *Question) Points() int {
	if q.Point <= 0 {
		return 1
	}
	return q.Point
}

// CorrectValue returns the reveal form of the answer key for records and
// round stats: an index for single, an index list for multiple, the
// expected string for text.
func (q *Question) CorrectValue() interface{} {
	switch q.Type {
	case QuestionSingle:
		if len(q.Correct) > 0 {
			return q.Correct[0]
		}
		return nil
	case QuestionMultiple:
		return []int(q.Correct)
	case QuestionText:
		return q.TextAnswer
	}
	return nil
}

// Quiz is immutable once loaded from the store.
type Quiz struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// QuizDoc is the raw shape of a quizes/{quiz_id} document; questions are
// stored as id references into the questions collection.
type QuizDoc struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}
