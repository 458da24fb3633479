package answer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

func floatPtr(f float64) *float64 { return &f }

func mcSingle() *quiz.Question {
	return &quiz.Question{
		Type:       types.QuestionMCSingle,
		Text:       "Which planet is closest to the sun?",
		BasePoints: 10,
		Options: []quiz.Option{
			{ID: "opt-a", Text: "Mercury", IsCorrect: true},
			{ID: "opt-b", Text: "Venus"},
			{ID: "opt-c", Text: "Mars"},
		},
	}
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// TestValidateExactMatch tests the happy path for single choice questions
func TestValidateExactMatch(t *testing.T) {
	q := mcSingle()

	res, err := Validate(q, quiz.ScoringContext{}, raw(t, "opt-a"), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, res.ScorePercentage)
	assert.Equal(t, 10, res.Score)
	require.NotNil(t, res.IsCorrect)
	assert.True(t, *res.IsCorrect)
	assert.Equal(t, 1, res.NextStreak)

	// Wrong pick scores zero and resets the streak
	res, err = Validate(q, quiz.ScoringContext{}, raw(t, "opt-b"), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ScorePercentage)
	assert.Equal(t, 0, res.Score)
	assert.False(t, *res.IsCorrect)
	assert.Equal(t, 0, res.NextStreak)
}

// TestValidateStreakBonus tests the streak reward on full scores
func TestValidateStreakBonus(t *testing.T) {
	q := mcSingle()
	ctx := quiz.ScoringContext{StreakBonus: true, StreakPoints: 2}

	// Third consecutive perfect answer: 10 base + 2*2 built-up streak
	res, err := Validate(q, ctx, raw(t, "opt-a"), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, res.NextStreak)
	assert.Equal(t, 14, res.Score)

	// Partial scores never earn the bonus
	order := &quiz.Question{
		Type:       types.QuestionOrder,
		BasePoints: 10,
		Options: []quiz.Option{
			{ID: "o1", Order: 0},
			{ID: "o2", Order: 1},
		},
	}
	res, err = Validate(order, ctx, raw(t, []string{"o2", "o1"}), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ScorePercentage)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.NextStreak)
}

// TestValidateBooleanCoercion tests the loose truthy and falsy spellings
func TestValidateBooleanCoercion(t *testing.T) {
	correct := true
	q := &quiz.Question{
		Type:        types.QuestionTrueFalse,
		BasePoints:  10,
		CorrectBool: &correct,
	}

	truthy := []interface{}{true, "true", "yes", "ja", "JA", 1}
	for _, sub := range truthy {
		res, err := Validate(q, quiz.ScoringContext{}, raw(t, sub), 0)
		require.NoError(t, err, "submission %v", sub)
		assert.Equal(t, 100, res.ScorePercentage, "submission %v", sub)
		assert.Equal(t, true, res.Coerced, "submission %v", sub)
	}

	falsy := []interface{}{false, "false", "no", "nee", 0}
	for _, sub := range falsy {
		res, err := Validate(q, quiz.ScoringContext{}, raw(t, sub), 0)
		require.NoError(t, err, "submission %v", sub)
		assert.Equal(t, 0, res.ScorePercentage, "submission %v", sub)
	}

	_, err := Validate(q, quiz.ScoringContext{}, raw(t, "maybe"), 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestValidatePartialMulti tests the +100/N -50/N formula with clamping
func TestValidatePartialMulti(t *testing.T) {
	q := &quiz.Question{
		Type:       types.QuestionMCMultiple,
		BasePoints: 10,
		Options: []quiz.Option{
			{ID: "a", IsCorrect: true},
			{ID: "b", IsCorrect: true},
			{ID: "c"},
			{ID: "d"},
		},
	}

	tests := []struct {
		name  string
		picks []string
		pct   int
	}{
		{"both correct", []string{"a", "b"}, 100},
		{"one correct", []string{"a"}, 50},
		{"one correct one wrong", []string{"a", "c"}, 25},
		{"correct pair plus wrong", []string{"a", "b", "c"}, 75},
		{"only wrong picks floor at zero", []string{"c", "d"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Validate(q, quiz.ScoringContext{}, raw(t, tt.picks), 0)
			require.NoError(t, err)
			assert.Equal(t, tt.pct, res.ScorePercentage)
		})
	}

	_, err := Validate(q, quiz.ScoringContext{}, raw(t, []string{}), 0)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Validate(q, quiz.ScoringContext{}, raw(t, []string{"a", "a"}), 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestValidatePartialOrder tests per-position credit
func TestValidatePartialOrder(t *testing.T) {
	q := &quiz.Question{
		Type:       types.QuestionOrder,
		BasePoints: 10,
		Options: []quiz.Option{
			{ID: "first", Order: 0},
			{ID: "second", Order: 1},
			{ID: "third", Order: 2},
			{ID: "fourth", Order: 3},
		},
	}

	// Two of four in place: half credit, half points, not correct
	res, err := Validate(q, quiz.ScoringContext{}, raw(t, []string{"first", "second", "fourth", "third"}), 0)
	require.NoError(t, err)
	assert.Equal(t, 50, res.ScorePercentage)
	assert.Equal(t, 5, res.Score)
	require.NotNil(t, res.IsCorrect)
	assert.False(t, *res.IsCorrect)

	// Full permutation in canonical order
	res, err = Validate(q, quiz.ScoringContext{}, raw(t, []string{"first", "second", "third", "fourth"}), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, res.ScorePercentage)
	assert.True(t, *res.IsCorrect)

	// Not a permutation
	_, err = Validate(q, quiz.ScoringContext{}, raw(t, []string{"first", "second", "third"}), 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestValidateFuzzyText tests the similarity tier ladder
func TestValidateFuzzyText(t *testing.T) {
	q := &quiz.Question{
		Type:              types.QuestionOpenText,
		BasePoints:        10,
		AcceptableAnswers: []string{"Amsterdam"},
	}

	// One typo in nine runes: similarity 0.888 lands in the 70% tier
	res, err := Validate(q, quiz.ScoringContext{}, raw(t, "Amsterdem"), 0)
	require.NoError(t, err)
	assert.Equal(t, 70, res.ScorePercentage)
	assert.Equal(t, 7, res.Score)
	require.NotNil(t, res.IsCorrect)
	assert.True(t, *res.IsCorrect, "a tier hit counts as correct for fuzzy text")
	assert.Equal(t, 0, res.NextStreak, "partial fuzzy hits do not extend streaks")

	// Exact after normalization
	res, err = Validate(q, quiz.ScoringContext{}, raw(t, "  AMSTERDAM  "), 3)
	require.NoError(t, err)
	assert.Equal(t, 100, res.ScorePercentage)
	assert.Equal(t, 4, res.NextStreak)

	// Nowhere close
	res, err = Validate(q, quiz.ScoringContext{}, raw(t, "Rotterdam fully different yes"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ScorePercentage)
	assert.False(t, *res.IsCorrect)
}

// TestValidateFuzzyBestAcceptable tests that the best acceptable answer wins
func TestValidateFuzzyBestAcceptable(t *testing.T) {
	q := &quiz.Question{
		Type:              types.QuestionMusicArtist,
		BasePoints:        20,
		AcceptableAnswers: []string{"The Rolling Stones", "Rolling Stones"},
	}

	res, err := Validate(q, quiz.ScoringContext{}, raw(t, "rolling stones"), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, res.ScorePercentage)
	assert.Equal(t, 20, res.Score)
}

// TestValidateEstimation tests percent distance tiers and the margin
func TestValidateEstimation(t *testing.T) {
	q := &quiz.Question{
		Type:          types.QuestionEstimation,
		BasePoints:    10,
		CorrectValue:  floatPtr(1000),
		MarginPercent: floatPtr(2),
	}

	tests := []struct {
		sub interface{}
		pct int
	}{
		{1000, 100},
		{1015, 100}, // inside the 2% margin
		{1040, 90},  // 4% off
		{1100, 80},  // 10% off
		{1150, 60},
		{1250, 40},
		{1500, 20},
		{2000, 0},
		{"950", 90}, // numeric strings are accepted
	}
	for _, tt := range tests {
		res, err := Validate(q, quiz.ScoringContext{}, raw(t, tt.sub), 0)
		require.NoError(t, err, "submission %v", tt.sub)
		assert.Equal(t, tt.pct, res.ScorePercentage, "submission %v", tt.sub)
	}

	_, err := Validate(q, quiz.ScoringContext{}, raw(t, "not a number"), 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestValidateYearDistance tests the whole-year ladder
func TestValidateYearDistance(t *testing.T) {
	q := &quiz.Question{
		Type:         types.QuestionMusicYear,
		BasePoints:   10,
		CorrectValue: floatPtr(1969),
	}

	tests := []struct {
		year float64
		pct  int
	}{
		{1969, 100},
		{1970, 90},
		{1967, 70},
		{1966, 50},
		{1964, 30},
		{1959, 10},
		{1950, 0},
	}
	for _, tt := range tests {
		res, err := Validate(q, quiz.ScoringContext{}, raw(t, tt.year), 0)
		require.NoError(t, err)
		assert.Equal(t, tt.pct, res.ScorePercentage, "year %v", tt.year)
	}
}

// TestValidatePoll tests that polls record picks without scoring
func TestValidatePoll(t *testing.T) {
	q := &quiz.Question{
		Type:       types.QuestionPoll,
		BasePoints: 10,
		Options: []quiz.Option{
			{ID: "cats"},
			{ID: "dogs"},
		},
	}

	res, err := Validate(q, quiz.ScoringContext{StreakBonus: true, StreakPoints: 2}, raw(t, "cats"), 5)
	require.NoError(t, err)
	assert.Equal(t, 100, res.ScorePercentage)
	assert.Equal(t, 0, res.Score, "polls never award points")
	assert.Nil(t, res.IsCorrect, "polls carry no correctness")
	assert.Equal(t, 5, res.NextStreak, "polls leave the streak alone")
}

// TestValidateUnknownOption tests rejection of ids outside the question
func TestValidateUnknownOption(t *testing.T) {
	q := mcSingle()

	_, err := Validate(q, quiz.ScoringContext{}, raw(t, "opt-z"), 0)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Validate(q, quiz.ScoringContext{}, json.RawMessage(`{broken`), 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestValidateIsPure tests that repeated calls agree in every field
func TestValidateIsPure(t *testing.T) {
	q := &quiz.Question{
		Type:              types.QuestionOpenText,
		BasePoints:        10,
		AcceptableAnswers: []string{"Willem van Oranje"},
	}
	ctx := quiz.ScoringContext{StreakBonus: true, StreakPoints: 2}
	sub := raw(t, "willem van oranje")

	first, err := Validate(q, ctx, sub, 1)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Validate(q, ctx, sub, 1)
		require.NoError(t, err)
		assert.Equal(t, first.ScorePercentage, again.ScorePercentage)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.NextStreak, again.NextStreak)
		assert.Equal(t, *first.IsCorrect, *again.IsCorrect)
	}
}

// TestSimilaritySymmetry tests Similarity(a,b) == Similarity(b,a)
func TestSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"amsterdam", "amsterdem"},
		{"rembrandt", "rembrant"},
		{"", "koningsdag"},
		{"stroopwafel", "stroopwafel"},
		{"a", "b"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), "pair %q/%q", p[0], p[1])
	}
	assert.Equal(t, 1.0, Similarity("", ""))
}

// TestNormalize tests NFC, case folding and whitespace collapsing
func TestNormalize(t *testing.T) {
	assert.Equal(t, "van gogh", Normalize("  Van   GOGH "))
	assert.Equal(t, "café", Normalize("Café"), "combining accents fold into NFC")
	assert.Equal(t, "", Normalize(" \t\n"))
}
