package answer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// ErrMalformed marks submissions that cannot be coerced to the
// question's answer format. The machine still records these with a zero
// score so the answer counts stay consistent.
var ErrMalformed = fmt.Errorf("malformed submission")

// Result is the validator's verdict on one submission. IsCorrect is nil
// for polls, which are never scored.
type Result struct {
	Coerced         interface{}
	IsCorrect       *bool
	ScorePercentage int
	Score           int
	NextStreak      int
}

var (
	truthyWords = map[string]bool{"true": true, "yes": true, "ja": true, "1": true}
	falsyWords  = map[string]bool{"false": true, "no": true, "nee": true, "0": true}
)

// Validate judges a raw submission against a question. It is pure: no
// clock, no I/O, no mutation; the same inputs always yield the same
// Result. Speed podium bonuses are applied later at lock time and are
// deliberately not part of this computation.
func Validate(q *quiz.Question, ctx quiz.ScoringContext, raw json.RawMessage, currentStreak int) (Result, error) {
	coerced, err := coerce(q, raw)
	if err != nil {
		return Result{}, err
	}

	mode := q.Type.ScoringMode()
	if mode == types.ScoringNoScore {
		// Polls record the pick but never touch score or streak.
		return Result{
			Coerced:         coerced,
			ScorePercentage: 100,
			Score:           0,
			NextStreak:      currentStreak,
		}, nil
	}

	pct := scorePercentage(q, mode, coerced)

	nextStreak := 0
	if pct == 100 {
		nextStreak = currentStreak + 1
	}

	// The bonus rewards the streak built up before this answer, so the
	// first perfect answer scores exactly the base points.
	score := roundHalf(float64(q.BasePoints) * float64(pct) / 100.0)
	if pct == 100 && ctx.StreakBonus {
		score += ctx.StreakPoints * currentStreak
	}

	return Result{
		Coerced:         coerced,
		IsCorrect:       boolPtr(isCorrect(mode, pct)),
		ScorePercentage: pct,
		Score:           score,
		NextStreak:      nextStreak,
	}, nil
}

// coerce parses the raw JSON into the question's answer format
func coerce(q *quiz.Question, raw json.RawMessage) (interface{}, error) {
	switch q.Type.AnswerFormat() {
	case types.FormatOptionID:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("%w: expected an option id", ErrMalformed)
		}
		if _, ok := q.OptionByID(id); !ok {
			return nil, fmt.Errorf("%w: unknown option %q", ErrMalformed, id)
		}
		return id, nil

	case types.FormatOptionIDs:
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("%w: expected a list of option ids", ErrMalformed)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: empty selection", ErrMalformed)
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if _, ok := q.OptionByID(id); !ok {
				return nil, fmt.Errorf("%w: unknown option %q", ErrMalformed, id)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: duplicate option %q", ErrMalformed, id)
			}
			seen[id] = true
		}
		return ids, nil

	case types.FormatBoolean:
		return coerceBool(raw)

	case types.FormatText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: expected text", ErrMalformed)
		}
		text = Normalize(text)
		if text == "" {
			return nil, fmt.Errorf("%w: empty text", ErrMalformed)
		}
		return text, nil

	case types.FormatNumber:
		return coerceNumber(raw)

	case types.FormatOrderArray:
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("%w: expected an ordered list of option ids", ErrMalformed)
		}
		if len(ids) != len(q.Options) {
			return nil, fmt.Errorf("%w: expected %d options, got %d", ErrMalformed, len(q.Options), len(ids))
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if _, ok := q.OptionByID(id); !ok {
				return nil, fmt.Errorf("%w: unknown option %q", ErrMalformed, id)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: duplicate option %q", ErrMalformed, id)
			}
			seen[id] = true
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: question takes no answer", ErrMalformed)
}

// coerceBool accepts booleans plus the loose truthy and falsy spellings
// clients actually send (true, "true", "yes", "ja", 1 and their negatives)
func coerceBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == 1 {
			return true, nil
		}
		if n == 0 {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v is not a boolean", ErrMalformed, n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		word := strings.ToLower(strings.TrimSpace(s))
		if truthyWords[word] {
			return true, nil
		}
		if falsyWords[word] {
			return false, nil
		}
		return false, fmt.Errorf("%w: %q is not a boolean", ErrMalformed, s)
	}
	return false, fmt.Errorf("%w: expected a boolean", ErrMalformed)
}

// coerceNumber accepts JSON numbers and numeric strings
func coerceNumber(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: not a finite number", ErrMalformed)
		}
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %q is not a number", ErrMalformed, s)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: expected a number", ErrMalformed)
}

// scorePercentage applies the question's scoring rule to a coerced answer
func scorePercentage(q *quiz.Question, mode types.ScoringMode, coerced interface{}) int {
	switch mode {
	case types.ScoringExactMatch:
		return scoreExact(q, coerced)
	case types.ScoringPartialMulti:
		return scorePartialMulti(q, coerced.([]string))
	case types.ScoringPartialOrder:
		return scorePartialOrder(q, coerced.([]string))
	case types.ScoringFuzzyText:
		return scoreFuzzy(q, coerced.(string))
	case types.ScoringNumericDistance:
		return scoreNumeric(q, coerced.(float64))
	}
	return 0
}

func scoreExact(q *quiz.Question, coerced interface{}) int {
	switch v := coerced.(type) {
	case bool:
		if q.CorrectBool != nil && v == *q.CorrectBool {
			return 100
		}
	case string:
		if correct, ok := q.CorrectOptionID(); ok && v == correct {
			return 100
		}
	}
	return 0
}

// scorePartialMulti rewards each correct pick with 100/N and punishes
// each wrong pick with 50/N, clamped to [0,100]. N is the number of
// correct options.
func scorePartialMulti(q *quiz.Question, picks []string) int {
	correct := make(map[string]bool)
	for _, id := range q.CorrectOptionIDs() {
		correct[id] = true
	}
	n := len(correct)
	if n == 0 {
		return 0
	}

	var hits, misses int
	for _, id := range picks {
		if correct[id] {
			hits++
		} else {
			misses++
		}
	}

	pct := roundHalf((100.0*float64(hits) - 50.0*float64(misses)) / float64(n))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// scorePartialOrder grants 100/N per option in its canonical position
func scorePartialOrder(q *quiz.Question, submitted []string) int {
	canonical := q.CanonicalOrder()
	if len(canonical) == 0 {
		return 0
	}
	hits := 0
	for i, id := range submitted {
		if i < len(canonical) && canonical[i] == id {
			hits++
		}
	}
	return roundHalf(100.0 * float64(hits) / float64(len(canonical)))
}

// scoreFuzzy takes the best similarity across all acceptable answers and
// maps it onto the tier ladder
func scoreFuzzy(q *quiz.Question, text string) int {
	best := 0.0
	for _, acceptable := range q.AcceptableAnswers {
		if s := Similarity(text, Normalize(acceptable)); s > best {
			best = s
		}
	}
	switch {
	case best == 1.0:
		return 100
	case best >= 0.95:
		return 90
	case best >= 0.90:
		return 80
	case best >= 0.85:
		return 70
	case best >= 0.80:
		return 50
	default:
		return 0
	}
}

func scoreNumeric(q *quiz.Question, sub float64) int {
	if q.CorrectValue == nil {
		return 0
	}
	if q.Type == types.QuestionMusicYear {
		return scoreYear(*q.CorrectValue, sub)
	}

	correct := *q.CorrectValue
	denom := math.Abs(correct)
	if denom < 1e-9 {
		denom = 1e-9
	}
	dist := math.Abs(sub-correct) / denom * 100.0

	margin := 0.0
	if q.MarginPercent != nil {
		margin = *q.MarginPercent
	}

	switch {
	case dist <= margin:
		return 100
	case dist <= 5:
		return 90
	case dist <= 10:
		return 80
	case dist <= 15:
		return 60
	case dist <= 25:
		return 40
	case dist <= 50:
		return 20
	default:
		return 0
	}
}

// scoreYear ladders on whole years off rather than relative distance
func scoreYear(correct, sub float64) int {
	delta := int(math.Abs(math.Round(sub) - math.Round(correct)))
	switch {
	case delta == 0:
		return 100
	case delta == 1:
		return 90
	case delta == 2:
		return 70
	case delta == 3:
		return 50
	case delta <= 5:
		return 30
	case delta <= 10:
		return 10
	default:
		return 0
	}
}

// isCorrect derives the correctness flag from the percentage. Fuzzy text
// counts any tier hit as correct; everything else demands a full score.
func isCorrect(mode types.ScoringMode, pct int) bool {
	if mode == types.ScoringFuzzyText {
		return pct > 0
	}
	return pct == 100
}

func roundHalf(v float64) int {
	return int(math.Round(v))
}

func boolPtr(b bool) *bool {
	return &b
}
