package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswerValue(t *testing.T) {
	t.Run("single accepts index", func(t *testing.T) {
		v, err := ParseAnswerValue(json.RawMessage(`2`), QuestionSingle)
		require.NoError(t, err)
		assert.Equal(t, 2, v.Index)
	})

	t.Run("single rejects string", func(t *testing.T) {
		_, err := ParseAnswerValue(json.RawMessage(`"two"`), QuestionSingle)
		assert.Error(t, err)
	})

	t.Run("multiple accepts list", func(t *testing.T) {
		v, err := ParseAnswerValue(json.RawMessage(`[0,2]`), QuestionMultiple)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2}, v.Indices)
	})

	t.Run("multiple accepts bare index", func(t *testing.T) {
		v, err := ParseAnswerValue(json.RawMessage(`1`), QuestionMultiple)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, v.Indices)
	})

	t.Run("text accepts string", func(t *testing.T) {
		v, err := ParseAnswerValue(json.RawMessage(`"Paris"`), QuestionText)
		require.NoError(t, err)
		assert.Equal(t, "Paris", v.Text)
	})

	t.Run("text rejects number", func(t *testing.T) {
		_, err := ParseAnswerValue(json.RawMessage(`7`), QuestionText)
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseAnswerValue(json.RawMessage(`1`), QuestionType("essay"))
		assert.Error(t, err)
	})
}

func TestGradeSingle(t *testing.T) {
	q := &Question{Type: QuestionSingle, Options: []string{"a", "b", "c"}, Correct: IndexSet{1}}

	right := AnswerValue{Kind: QuestionSingle, Index: 1}
	wrong := AnswerValue{Kind: QuestionSingle, Index: 0}
	assert.True(t, right.Grade(q))
	assert.False(t, wrong.Grade(q))
}

func TestGradeMultipleIsSetEquality(t *testing.T) {
	q := &Question{Type: QuestionMultiple, Options: []string{"a", "b", "c", "d"}, Correct: IndexSet{0, 2}}

	cases := []struct {
		name    string
		indices []int
		want    bool
	}{
		{"exact", []int{0, 2}, true},
		{"order ignored", []int{2, 0}, true},
		{"duplicates ignored", []int{0, 2, 2}, true},
		{"subset is wrong", []int{0}, false},
		{"superset is wrong", []int{0, 1, 2}, false},
		{"empty is wrong", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := AnswerValue{Kind: QuestionMultiple, Indices: tc.indices}
			assert.Equal(t, tc.want, v.Grade(q))
		})
	}
}

func TestGradeTextTrimsAndFoldsCase(t *testing.T) {
	q := &Question{Type: QuestionText, TextAnswer: "Paris"}

	for _, submitted := range []string{"Paris", "paris", "  PARIS  ", "\tpArIs\n"} {
		v := AnswerValue{Kind: QuestionText, Text: submitted}
		assert.True(t, v.Grade(q), "submitted %q", submitted)
	}
	miss := AnswerValue{Kind: QuestionText, Text: "London"}
	assert.False(t, miss.Grade(q))
}

func TestIndexSetUnmarshal(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{"type":"single","correct":1}`), &q))
	assert.Equal(t, IndexSet{1}, q.Correct)

	var q2 Question
	require.NoError(t, json.Unmarshal([]byte(`{"type":"multiple","correct":[0,3]}`), &q2))
	assert.Equal(t, IndexSet{0, 3}, q2.Correct)

	var q3 Question
	assert.Error(t, json.Unmarshal([]byte(`{"correct":"one"}`), &q3))
}

func TestQuestionPointsDefault(t *testing.T) {
	q := Question{}
	assert.Equal(t, 1, q.Points())

	q.Point = 5
	assert.Equal(t, 5, q.Points())
}

func TestScoreEntryWireTuple(t *testing.T) {
	raw, err := json.Marshal(ScoreEntry{Username: "Ada Lovelace", Score: 12})
	require.NoError(t, err)
	assert.JSONEq(t, `["Ada Lovelace",12]`, string(raw))

	var e ScoreEntry
	require.NoError(t, json.Unmarshal([]byte(`["Alan Turing",7]`), &e))
	assert.Equal(t, ScoreEntry{Username: "Alan Turing", Score: 7}, e)

	assert.Error(t, json.Unmarshal([]byte(`["only-one"]`), &e))
}

func TestNewUserDerivesUsername(t *testing.T) {
	u := NewUser("u1", UserDoc{Name: "Grace", LastName: "Hopper", IsTeacher: true})
	assert.Equal(t, "Grace Hopper", u.Username)
	assert.True(t, u.Teacher)
}
