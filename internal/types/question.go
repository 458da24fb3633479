package types

import (
	"fmt"
)

// QuestionType represents the kind of question an item asks
type QuestionType string

const (
	QuestionMCSingle        QuestionType = "MC_SINGLE"
	QuestionMCMultiple      QuestionType = "MC_MULTIPLE"
	QuestionTrueFalse       QuestionType = "TRUE_FALSE"
	QuestionOpenText        QuestionType = "OPEN_TEXT"
	QuestionOrder           QuestionType = "ORDER"
	QuestionEstimation      QuestionType = "ESTIMATION"
	QuestionPoll            QuestionType = "POLL"
	QuestionPhoto           QuestionType = "PHOTO_QUESTION"
	QuestionPhotoOpen       QuestionType = "PHOTO_OPEN"
	QuestionAudio           QuestionType = "AUDIO_QUESTION"
	QuestionAudioOpen       QuestionType = "AUDIO_OPEN"
	QuestionVideo           QuestionType = "VIDEO_QUESTION"
	QuestionVideoOpen       QuestionType = "VIDEO_OPEN"
	QuestionMusicTitle      QuestionType = "MUSIC_GUESS_TITLE"
	QuestionMusicArtist     QuestionType = "MUSIC_GUESS_ARTIST"
	QuestionMusicYear       QuestionType = "MUSIC_GUESS_YEAR"
	QuestionYoutubeWhoSaid  QuestionType = "YOUTUBE_WHO_SAID_IT"
	QuestionYoutubeNextLine QuestionType = "YOUTUBE_NEXT_LINE"
	QuestionYoutubeScene    QuestionType = "YOUTUBE_SCENE_QUESTION"
)

// AnswerFormat is the shape a coerced player submission takes
type AnswerFormat string

const (
	FormatOptionID   AnswerFormat = "OPTION_ID"
	FormatOptionIDs  AnswerFormat = "OPTION_IDS"
	FormatBoolean    AnswerFormat = "BOOLEAN"
	FormatText       AnswerFormat = "TEXT"
	FormatNumber     AnswerFormat = "NUMBER"
	FormatOrderArray AnswerFormat = "ORDER_ARRAY"
	FormatNoAnswer   AnswerFormat = "NO_ANSWER"
)

// ScoringMode selects the rule that turns a submission into a percentage
type ScoringMode string

const (
	ScoringExactMatch      ScoringMode = "EXACT_MATCH"
	ScoringPartialMulti    ScoringMode = "PARTIAL_MULTI"
	ScoringPartialOrder    ScoringMode = "PARTIAL_ORDER"
	ScoringFuzzyText       ScoringMode = "FUZZY_TEXT"
	ScoringNumericDistance ScoringMode = "NUMERIC_DISTANCE"
	ScoringNoScore         ScoringMode = "NO_SCORE"
)

var (
	// questionFormats maps every question type to its answer format.
	// Each type has exactly one format and one scoring mode.
	questionFormats = map[QuestionType]AnswerFormat{
		QuestionMCSingle:        FormatOptionID,
		QuestionMCMultiple:      FormatOptionIDs,
		QuestionTrueFalse:       FormatBoolean,
		QuestionOpenText:        FormatText,
		QuestionOrder:           FormatOrderArray,
		QuestionEstimation:      FormatNumber,
		QuestionPoll:            FormatOptionID,
		QuestionPhoto:           FormatOptionID,
		QuestionPhotoOpen:       FormatText,
		QuestionAudio:           FormatOptionID,
		QuestionAudioOpen:       FormatText,
		QuestionVideo:           FormatOptionID,
		QuestionVideoOpen:       FormatText,
		QuestionMusicTitle:      FormatText,
		QuestionMusicArtist:     FormatText,
		QuestionMusicYear:       FormatNumber,
		QuestionYoutubeWhoSaid:  FormatOptionID,
		QuestionYoutubeNextLine: FormatText,
		QuestionYoutubeScene:    FormatText,
	}

	// questionScoring maps every question type to its scoring mode
	questionScoring = map[QuestionType]ScoringMode{
		QuestionMCSingle:        ScoringExactMatch,
		QuestionMCMultiple:      ScoringPartialMulti,
		QuestionTrueFalse:       ScoringExactMatch,
		QuestionOpenText:        ScoringFuzzyText,
		QuestionOrder:           ScoringPartialOrder,
		QuestionEstimation:      ScoringNumericDistance,
		QuestionPoll:            ScoringNoScore,
		QuestionPhoto:           ScoringExactMatch,
		QuestionPhotoOpen:       ScoringFuzzyText,
		QuestionAudio:           ScoringExactMatch,
		QuestionAudioOpen:       ScoringFuzzyText,
		QuestionVideo:           ScoringExactMatch,
		QuestionVideoOpen:       ScoringFuzzyText,
		QuestionMusicTitle:      ScoringFuzzyText,
		QuestionMusicArtist:     ScoringFuzzyText,
		QuestionMusicYear:       ScoringNumericDistance,
		QuestionYoutubeWhoSaid:  ScoringExactMatch,
		QuestionYoutubeNextLine: ScoringFuzzyText,
		QuestionYoutubeScene:    ScoringFuzzyText,
	}
)

// ErrInvalidQuestionType marks an unknown question type value
var ErrInvalidQuestionType = fmt.Errorf("invalid question type")

// IsValid checks if the QuestionType is valid
func (t QuestionType) IsValid() bool {
	_, ok := questionFormats[t]
	return ok
}

// String converts the enum to string
func (t QuestionType) String() string {
	return string(t)
}

// ParseQuestionType parses a string into a QuestionType
func ParseQuestionType(s string) (QuestionType, error) {
	if _, ok := questionFormats[QuestionType(s)]; ok {
		return QuestionType(s), nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidQuestionType, s)
}

// AnswerFormat returns the submission shape for this question type
func (t QuestionType) AnswerFormat() AnswerFormat {
	if f, ok := questionFormats[t]; ok {
		return f
	}
	return FormatNoAnswer
}

// ScoringMode returns the scoring rule for this question type
func (t QuestionType) ScoringMode() ScoringMode {
	if m, ok := questionScoring[t]; ok {
		return m
	}
	return ScoringNoScore
}

// String converts the enum to string
func (f AnswerFormat) String() string {
	return string(f)
}

// String converts the enum to string
func (m ScoringMode) String() string {
	return string(m)
}
