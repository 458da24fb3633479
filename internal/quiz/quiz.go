package quiz

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// Default session settings applied when the snapshot leaves them zero
const (
	DefaultMaxPlayers   = 500
	DefaultStreakPoints = 2
	DefaultTimerSeconds = 30
	MinTimerSeconds     = 5
	MaxTimerSeconds     = 300
)

// DefaultPodiumPercentages are the speed bonus percentages for places 1-3
var DefaultPodiumPercentages = [3]int{30, 20, 10}

// Quiz is the immutable snapshot a session plays. It is taken when the
// session is created; editing the source quiz afterwards never touches it.
type Quiz struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Version  int      `json:"version"`
	Items    []Item   `json:"items"`
	Settings Settings `json:"settings"`
}

// Item is one step of the quiz run
type Item struct {
	ID       string          `json:"id"`
	Index    int             `json:"index"`
	Kind     types.ItemKind  `json:"kind"`
	Question *Question       `json:"question,omitempty"`
	Minigame *MinigameConfig `json:"minigame,omitempty"`
}

// Question holds everything the validator needs to judge a submission
type Question struct {
	Type              types.QuestionType `json:"type"`
	Text              string             `json:"text"`
	MediaURL          string             `json:"mediaUrl,omitempty"`
	Options           []Option           `json:"options,omitempty"`
	AcceptableAnswers []string           `json:"acceptableAnswers,omitempty"`
	CorrectBool       *bool              `json:"correctBool,omitempty"`
	CorrectValue      *float64           `json:"correctValue,omitempty"`
	MarginPercent     *float64           `json:"marginPercent,omitempty"`
	TimerSeconds      int                `json:"timerSeconds"`
	BasePoints        int                `json:"basePoints"`
}

// Option is a selectable answer. Order is the canonical position for
// ORDER questions and zero elsewhere.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
	Order     int    `json:"order,omitempty"`
}

// PublicOption is an option as players see it before reveal
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Settings are the per-session gameplay knobs
type Settings struct {
	StreakBonus  bool         `json:"streakBonus"`
	StreakPoints int          `json:"streakPoints"`
	SpeedPodium  PodiumConfig `json:"speedPodium"`
	MaxPlayers   int          `json:"maxPlayers"`
}

// PodiumConfig controls the speed bonus for the fastest perfect answers
type PodiumConfig struct {
	Enabled     bool   `json:"enabled"`
	Percentages [3]int `json:"percentages"`
}

// ScoringContext carries the settings slice the scorer needs
type ScoringContext struct {
	StreakBonus  bool
	StreakPoints int
}

// MinigameConfig overrides swan chase defaults; zero fields keep them
type MinigameConfig struct {
	DurationSeconds int     `json:"durationSeconds,omitempty"`
	TagRadius       float64 `json:"tagRadius,omitempty"`
	BoatSpeed       float64 `json:"boatSpeed,omitempty"`
	SwanSpeed       float64 `json:"swanSpeed,omitempty"`
}

// Parse decodes a quiz snapshot, applies defaults and validates it
func Parse(data []byte) (*Quiz, error) {
	var q Quiz
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to decode quiz snapshot: %v", err)
	}
	q.ApplyDefaults()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// ApplyDefaults fills zero-valued settings and timers
func (q *Quiz) ApplyDefaults() {
	if q.Settings.MaxPlayers <= 0 {
		q.Settings.MaxPlayers = DefaultMaxPlayers
	}
	if q.Settings.StreakPoints <= 0 {
		q.Settings.StreakPoints = DefaultStreakPoints
	}
	if q.Settings.SpeedPodium.Percentages == [3]int{} {
		q.Settings.SpeedPodium.Percentages = DefaultPodiumPercentages
	}
	for i := range q.Items {
		q.Items[i].Index = i
		qu := q.Items[i].Question
		if qu == nil {
			continue
		}
		if qu.TimerSeconds == 0 {
			qu.TimerSeconds = DefaultTimerSeconds
		}
		if qu.Type.AnswerFormat() == types.FormatBoolean {
			qu.normalizeBoolean()
		}
	}
}

// normalizeBoolean accepts the option-list shape of a boolean question:
// when correctBool is absent the answer is taken from the option flagged
// correct, by its text or failing that by its position.
func (qu *Question) normalizeBoolean() {
	if qu.CorrectBool != nil {
		return
	}
	for i := range qu.Options {
		if !qu.Options[i].IsCorrect {
			continue
		}
		v := i == 0
		switch strings.ToLower(strings.TrimSpace(qu.Options[i].Text)) {
		case "true", "yes":
			v = true
		case "false", "no":
			v = false
		}
		qu.CorrectBool = &v
		return
	}
}

// Validate rejects snapshots a session could not play correctly
func (q *Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("quiz snapshot has no id")
	}
	if len(q.Items) == 0 {
		return fmt.Errorf("quiz %q has no items", q.ID)
	}
	seen := make(map[string]bool, len(q.Items))
	for i := range q.Items {
		item := &q.Items[i]
		if item.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = true
		if !item.Kind.IsValid() {
			return fmt.Errorf("item %q: %v", item.ID, types.ErrInvalidItemKind)
		}
		if item.Kind == types.ItemKindQuestion {
			if item.Question == nil {
				return fmt.Errorf("item %q is a question without question data", item.ID)
			}
			if err := item.Question.validate(); err != nil {
				return fmt.Errorf("item %q: %v", item.ID, err)
			}
		}
	}
	return nil
}

func (qu *Question) validate() error {
	if !qu.Type.IsValid() {
		return fmt.Errorf("%v: %s", types.ErrInvalidQuestionType, qu.Type)
	}
	if qu.TimerSeconds < MinTimerSeconds || qu.TimerSeconds > MaxTimerSeconds {
		return fmt.Errorf("timer %ds out of range", qu.TimerSeconds)
	}
	if qu.BasePoints < 0 {
		return fmt.Errorf("negative base points")
	}

	switch qu.Type.AnswerFormat() {
	case types.FormatOptionID:
		if len(qu.Options) < 2 {
			return fmt.Errorf("needs at least 2 options")
		}
		if qu.Type != types.QuestionPoll && len(qu.CorrectOptionIDs()) != 1 {
			return fmt.Errorf("needs exactly one correct option")
		}
	case types.FormatOptionIDs:
		if len(qu.Options) < 2 {
			return fmt.Errorf("needs at least 2 options")
		}
		if len(qu.CorrectOptionIDs()) == 0 {
			return fmt.Errorf("needs at least one correct option")
		}
	case types.FormatBoolean:
		if qu.CorrectBool == nil {
			return fmt.Errorf("needs a correct boolean")
		}
	case types.FormatText:
		if len(qu.AcceptableAnswers) == 0 {
			return fmt.Errorf("needs at least one acceptable answer")
		}
		for _, a := range qu.AcceptableAnswers {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("empty acceptable answer")
			}
		}
	case types.FormatNumber:
		if qu.CorrectValue == nil {
			return fmt.Errorf("needs a correct value")
		}
	case types.FormatOrderArray:
		if len(qu.Options) < 2 {
			return fmt.Errorf("needs at least 2 options to order")
		}
		orders := make(map[int]bool, len(qu.Options))
		for _, o := range qu.Options {
			if orders[o.Order] {
				return fmt.Errorf("duplicate canonical order %d", o.Order)
			}
			orders[o.Order] = true
		}
	}
	return nil
}

// ItemByID finds an item in the snapshot
func (q *Quiz) ItemByID(id string) (*Item, bool) {
	for i := range q.Items {
		if q.Items[i].ID == id {
			return &q.Items[i], true
		}
	}
	return nil, false
}

// ScoringContext extracts the scorer's view of the settings
func (s Settings) ScoringContext() ScoringContext {
	return ScoringContext{StreakBonus: s.StreakBonus, StreakPoints: s.StreakPoints}
}

// CorrectOptionID returns the single correct option for exact-match types
func (qu *Question) CorrectOptionID() (string, bool) {
	ids := qu.CorrectOptionIDs()
	if len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}

// CorrectOptionIDs returns all options flagged correct
func (qu *Question) CorrectOptionIDs() []string {
	var ids []string
	for _, o := range qu.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// CanonicalOrder returns option IDs in their correct sequence
func (qu *Question) CanonicalOrder() []string {
	opts := make([]Option, len(qu.Options))
	copy(opts, qu.Options)
	sort.Slice(opts, func(i, j int) bool { return opts[i].Order < opts[j].Order })
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	return ids
}

// OptionByID finds an option on this question
func (qu *Question) OptionByID(id string) (*Option, bool) {
	for i := range qu.Options {
		if qu.Options[i].ID == id {
			return &qu.Options[i], true
		}
	}
	return nil, false
}

// PublicOptions returns options stripped of answer data. ORDER questions
// are listed by option ID so the canonical sequence never leaks through
// the display order.
func (qu *Question) PublicOptions() []PublicOption {
	pub := make([]PublicOption, len(qu.Options))
	for i, o := range qu.Options {
		pub[i] = PublicOption{ID: o.ID, Text: o.Text}
	}
	if qu.Type == types.QuestionOrder {
		sort.Slice(pub, func(i, j int) bool { return pub[i].ID < pub[j].ID })
	}
	return pub
}
