package protocol

import (
	"encoding/json"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/answer"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/leaderboard"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/minigame"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// Command payloads

type JoinSessionPayload struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Avatar            string `json:"avatar,omitempty"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
}

type RejoinAsExistingPayload struct {
	Code              string `json:"code"`
	PlayerID          string `json:"playerId"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

type PlayerRejoinPayload struct {
	Token string `json:"token"`
}

type DisplayJoinPayload struct {
	Code string `json:"code"`
}

type HostJoinPayload struct {
	Code      string `json:"code"`
	HostToken string `json:"hostToken,omitempty"`
	HostKey   string `json:"hostKey,omitempty"`
}

type SubmitAnswerPayload struct {
	ItemID string          `json:"itemId"`
	Answer json.RawMessage `json:"answer"`
	// Client-reported elapsed, accepted only when it does not beat the
	// server measurement.
	ClientElapsedMs int64 `json:"clientElapsedMs,omitempty"`
}

type StartItemPayload struct {
	ItemIndex int `json:"itemIndex"`
}

type ItemRefPayload struct {
	ItemID string `json:"itemId,omitempty"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type GenerateRejoinTokenPayload struct {
	PlayerID string `json:"playerId"`
}

type AdjustScorePayload struct {
	ItemID          string `json:"itemId"`
	PlayerID        string `json:"playerId"`
	ScorePercentage int    `json:"scorePercentage"`
}

type SwanChaseInputPayload struct {
	DirX    float64 `json:"dirX"`
	DirY    float64 `json:"dirY"`
	Ability string  `json:"ability,omitempty"`
}

type PingPayload struct {
	Nonce int64 `json:"nonce,omitempty"`
}

// Event payloads

// PlayerView is a player as other clients see them
type PlayerView struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Avatar        string                  `json:"avatar,omitempty"`
	Score         int                     `json:"score"`
	CurrentStreak int                     `json:"currentStreak"`
	Connected     bool                    `json:"connected"`
	Quality       types.ConnectionQuality `json:"quality,omitempty"`
}

// QuestionView is a question stripped of everything that gives the
// answer away
type QuestionView struct {
	Type         types.QuestionType  `json:"type"`
	Text         string              `json:"text"`
	MediaURL     string              `json:"mediaUrl,omitempty"`
	Options      []quiz.PublicOption `json:"options,omitempty"`
	TimerSeconds int                 `json:"timerSeconds"`
	BasePoints   int                 `json:"basePoints"`
}

// NewQuestionView builds the public view of a question
func NewQuestionView(q *quiz.Question) *QuestionView {
	if q == nil {
		return nil
	}
	return &QuestionView{
		Type:         q.Type,
		Text:         q.Text,
		MediaURL:     q.MediaURL,
		Options:      q.PublicOptions(),
		TimerSeconds: q.TimerSeconds,
		BasePoints:   q.BasePoints,
	}
}

// SessionStatePayload is the full snapshot pushed on join, rejoin,
// reset and archive
type SessionStatePayload struct {
	Code                string              `json:"code"`
	Status              types.SessionStatus `json:"status"`
	QuizTitle           string              `json:"quizTitle"`
	CurrentItemIndex    int                 `json:"currentItemIndex"`
	CurrentItemPhase    types.ItemPhase     `json:"currentItemPhase"`
	ItemCount           int                 `json:"itemCount"`
	Players             []PlayerView        `json:"players"`
	Leaderboard         []leaderboard.Entry `json:"leaderboard"`
	You                 *PlayerView         `json:"you,omitempty"`
	PersistenceDegraded bool                `json:"persistenceDegraded,omitempty"`
}

type PlayerJoinedPayload struct {
	Player      PlayerView `json:"player"`
	PlayerCount int        `json:"playerCount"`
}

type PlayerLeftPayload struct {
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	PlayerCount int    `json:"playerCount"`
}

type PlayerKickedPayload struct {
	Reason string `json:"reason,omitempty"`
}

type DeviceRecognizedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type RejoinTokenGeneratedPayload struct {
	PlayerID  string    `json:"playerId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ConnectionStatusPayload struct {
	PlayerID string                  `json:"playerId"`
	Quality  types.ConnectionQuality `json:"quality"`
}

type PongPayload struct {
	Nonce      int64     `json:"nonce,omitempty"`
	ServerTime time.Time `json:"serverTime"`
}

type ItemStartedPayload struct {
	ItemID       string               `json:"itemId"`
	ItemIndex    int                  `json:"itemIndex"`
	Kind         types.ItemKind       `json:"kind"`
	Question     *QuestionView        `json:"question,omitempty"`
	Minigame     *quiz.MinigameConfig `json:"minigame,omitempty"`
	StartedAt    time.Time            `json:"startedAt"`
	TimerSeconds int                  `json:"timerSeconds,omitempty"`
}

// HostItemStartedPayload additionally carries the unstripped question
type HostItemStartedPayload struct {
	ItemStartedPayload
	FullQuestion *quiz.Question `json:"fullQuestion,omitempty"`
}

type ItemLockedPayload struct {
	ItemID      string `json:"itemId"`
	AnswerCount int    `json:"answerCount"`
}

type ItemCancelledPayload struct {
	ItemID string `json:"itemId"`
}

// AnswerResultView is one player's judged answer, shown at reveal
type AnswerResultView struct {
	PlayerID        string      `json:"playerId"`
	IsCorrect       *bool       `json:"isCorrect,omitempty"`
	ScorePercentage int         `json:"scorePercentage"`
	Score           int         `json:"score"`
	TimeSpentMs     int64       `json:"timeSpentMs"`
	Submitted       interface{} `json:"submitted,omitempty"`
}

// RevealAnswersPayload carries the resolution of a locked item. The
// variant sent to each player adds their own result; host and displays
// get the bare version.
type RevealAnswersPayload struct {
	ItemID            string              `json:"itemId"`
	CorrectOptionIDs  []string            `json:"correctOptionIds,omitempty"`
	CorrectBool       *bool               `json:"correctBool,omitempty"`
	CorrectValue      *float64            `json:"correctValue,omitempty"`
	CanonicalOrder    []string            `json:"canonicalOrder,omitempty"`
	AcceptableAnswers []string            `json:"acceptableAnswers,omitempty"`
	Distribution      map[string]int      `json:"distribution,omitempty"`
	Results           []AnswerResultView  `json:"results"`
	Leaderboard       []leaderboard.Entry `json:"leaderboard"`
	YourResult        *AnswerResultView   `json:"yourResult,omitempty"`
}

type AnswerReceivedPayload struct {
	ItemID string `json:"itemId"`
}

type AnswerCountUpdatedPayload struct {
	ItemID    string `json:"itemId"`
	Answered  int    `json:"answered"`
	Connected int    `json:"connected"`
}

type PlayerAnsweredPayload struct {
	ItemID      string `json:"itemId"`
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	TimeSpentMs int64  `json:"timeSpentMs"`
}

type LeaderboardUpdatePayload struct {
	Entries []leaderboard.Entry `json:"entries"`
}

type SpeedPodiumPayload struct {
	ItemID string               `json:"itemId"`
	Podium []answer.PodiumBonus `json:"podium"`
}

type ScoreAdjustedPayload struct {
	ItemID          string `json:"itemId"`
	PlayerID        string `json:"playerId"`
	ScorePercentage int    `json:"scorePercentage"`
	Score           int    `json:"score"`
	NewTotal        int    `json:"newTotal"`
}

type SessionPausedPayload struct {
	RemainingMs int64 `json:"remainingMs,omitempty"`
}

type SessionEndedPayload struct {
	Reason      string              `json:"reason,omitempty"`
	Leaderboard []leaderboard.Entry `json:"leaderboard"`
}

type SwanChaseEndedPayload struct {
	ItemID    string              `json:"itemId"`
	Standings []minigame.Standing `json:"standings"`
	Aborted   bool                `json:"aborted,omitempty"`
}
