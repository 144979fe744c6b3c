package questionbank

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticFile = `[
  {"questionId":"q1","external_id":"e1","difficulty":"E","primary_class_cd":"H","skill_cd":"H.A.1",
   "type":"mcq","stem":"1+1?","answerOptions":[{"key":"A","content":"2"},{"key":"B","content":"3"}],"correct_answer":["A"]},
  {"questionId":"q2","ibn":"i2","difficulty":"H","primary_class_cd":"P","skill_cd":"P.B.2",
   "type":"spr","stem":"x?","correct_answer":["4"]},
  {"questionId":"q1","difficulty":"E","primary_class_cd":"H","skill_cd":"H.A.1","type":"mcq","stem":"dup","correct_answer":["B"]}
]`

func TestStaticFilterAndFetch(t *testing.T) {
	ctx := context.Background()
	src, err := LoadStatic(strings.NewReader(staticFile))
	require.NoError(t, err)

	refs, err := src.Filter(ctx, FilterRequest{Domains: []string{"H"}})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "q1", refs[0].QuestionID)

	all, err := src.Filter(ctx, FilterRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	q, err := src.Fetch(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, "1+1?", q.Stem)
	assert.True(t, q.IsCorrect("A"))

	// Fetch hands out copies.
	q.CorrectAnswer[0] = "B"
	again, err := src.Fetch(ctx, refs[0])
	require.NoError(t, err)
	assert.True(t, again.IsCorrect("A"))

	_, err = src.Fetch(ctx, Reference{QuestionID: "missing"})
	assert.Error(t, err)
}

func TestStaticFeedsLoader(t *testing.T) {
	src, err := LoadStatic(strings.NewReader(staticFile))
	require.NoError(t, err)

	l := NewLoader(src, Selection{
		FilterRequest: FilterRequest{Assessment: "SAT", Subject: "math", Domains: []string{"H", "P"}},
		Skills:        []string{"H.A.1", "P.B.2"},
		Difficulties:  []string{"E", "H"},
	})
	b, err := l.LoadNextBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, QuestionIDs(b.Questions))
}

func TestLoadStaticRejectsGarbage(t *testing.T) {
	_, err := LoadStatic(strings.NewReader(`{"not":"an array"}`))
	assert.Error(t, err)
}
