package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue is the tagged variant for a submitted answer. The wire value
// is an option index, an index list, or free text depending on the
// question type it answers.
type AnswerValue struct {
	Kind    QuestionType
	Index   int
	Indices []int
	Text    string
}

// ParseAnswerValue decodes a raw submission against the question type.
func ParseAnswerValue(raw json.RawMessage, kind QuestionType) (AnswerValue, error) {
	v := AnswerValue{Kind: kind}
	switch kind {
	case QuestionSingle:
		if err := json.Unmarshal(raw, &v.Index); err != nil {
			return v, fmt.Errorf("single-choice answer must be an option index: %w", err)
		}
	case QuestionMultiple:
		// Accept a bare index as a one-element selection.
		var single int
		if err := json.Unmarshal(raw, &single); err == nil {
			v.Indices = []int{single}
			return v, nil
		}
		if err := json.Unmarshal(raw, &v.Indices); err != nil {
			return v, fmt.Errorf("multiple-choice answer must be an index list: %w", err)
		}
	case QuestionText:
		if err := json.Unmarshal(raw, &v.Text); err != nil {
			return v, fmt.Errorf("text answer must be a string: %w", err)
		}
	default:
		return v, fmt.Errorf("unknown question type %q", kind)
	}
	return v, nil
}

// Value returns the submission in its wire form, for records.
func (v AnswerValue) Value() interface{} {
	switch v.Kind {
	case QuestionSingle:
		return v.Index
	case QuestionMultiple:
		return v.Indices
	case QuestionText:
		return v.Text
	}
	return nil
}

// SelectedIndices returns the option indices a submission touches, used
// for the host's by_answer histogram. Text answers select nothing.
func (v AnswerValue) SelectedIndices() []int {
	switch v.Kind {
	case QuestionSingle:
		return []int{v.Index}
	case QuestionMultiple:
		return v.Indices
	}
	return nil
}

// Grade evaluates a submission against the question's answer key.
// Multiple-choice compares as sets; text compares case-insensitively with
// surrounding whitespace trimmed.
func (v AnswerValue) Grade(q *Question) bool {
	switch v.Kind {
	case QuestionSingle:
		return len(q.Correct) > 0 && v.Index == q.Correct[0]
	case QuestionMultiple:
		return q.Correct.Equals(v.Indices)
	case QuestionText:
		return strings.EqualFold(strings.TrimSpace(v.Text), strings.TrimSpace(q.TextAnswer))
	}
	return false
}

// AnswerRecord is the immutable per-user, per-question outcome row. It is
// appended once per question for every player present during the round and
// persisted inside the game's results subdocuments.
type AnswerRecord struct {
	QuestionIndex  int          `json:"question_index"`
	Prompt         string       `json:"question"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options,omitempty"`
	UserAnswer     interface{}  `json:"user_answer"`
	CorrectAnswer  interface{}  `json:"correct_answer"`
	IsCorrect      bool         `json:"is_correct"`
	PointsEarned   int          `json:"points_earned"`
	PossiblePoints int          `json:"possible_points"`
	Missed         bool         `json:"missed"`
	Explanation    string       `json:"explanation,omitempty"`
}

// ScoreEntry is one scoreboard row. It marshals to the wire tuple
// [username, score].
type ScoreEntry struct {
	Username string
	Score    int
}

func (e ScoreEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Username, e.Score})
}

func (e *ScoreEntry) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("score entry must be a [username, score] pair")
	}
	if err := json.Unmarshal(tuple[0], &e.Username); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &e.Score)
}

// LeaderboardEntry is one row of the final placement table.
type LeaderboardEntry struct {
	Place       int    `json:"place"`
	Username    string `json:"username"`
	Score       int    `json:"score"`
	UserID      string `json:"user_id"`
	TabSwitches int    `json:"tab_switches"`
}

// PlayerResult is the per-student document written under the game's
// results subcollection when the host finishes the game.
type PlayerResult struct {
	UserID      string         `json:"user_id"`
	Username    string         `json:"username"`
	Score       int            `json:"score"`
	Place       int            `json:"place"`
	TabSwitches int            `json:"tab_switches"`
	Answers     []AnswerRecord `json:"answers"`
}
