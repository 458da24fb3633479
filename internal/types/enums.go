package types

import (
	"fmt"
)

// SessionStatus represents the lifecycle phase of a live session
type SessionStatus string

const (
	SessionStatusLobby    SessionStatus = "LOBBY"    // Players joining, nothing started yet
	SessionStatusActive   SessionStatus = "ACTIVE"   // Host is driving items
	SessionStatusPaused   SessionStatus = "PAUSED"   // Timers frozen, no answers accepted
	SessionStatusEnded    SessionStatus = "ENDED"    // Terminal, kept for late readouts
	SessionStatusArchived SessionStatus = "ARCHIVED" // Terminal, underlying quiz was edited
)

// ItemPhase represents the state of the current item's run
type ItemPhase string

const (
	ItemPhaseIdle      ItemPhase = "IDLE"
	ItemPhaseActive    ItemPhase = "ACTIVE"
	ItemPhaseLocked    ItemPhase = "LOCKED"
	ItemPhaseRevealed  ItemPhase = "REVEALED"
	ItemPhaseCancelled ItemPhase = "CANCELLED"
)

// ItemKind represents what a quiz item is
type ItemKind string

const (
	ItemKindQuestion   ItemKind = "QUESTION"
	ItemKindMinigame   ItemKind = "MINIGAME"
	ItemKindScoreboard ItemKind = "SCOREBOARD"
	ItemKindBreak      ItemKind = "BREAK"
)

// Role represents what a connected socket is allowed to do
type Role string

const (
	RoleHost    Role = "HOST"
	RolePlayer  Role = "PLAYER"
	RoleDisplay Role = "DISPLAY"
)

// ConnectionQuality is the server-side judgement of a socket's health,
// derived from heartbeat gaps
type ConnectionQuality string

const (
	QualityGood    ConnectionQuality = "good"
	QualityPoor    ConnectionQuality = "poor"
	QualityOffline ConnectionQuality = "offline"
)

// Team represents a side in the swan chase minigame
type Team string

const (
	TeamBlue  Team = "BLUE"  // Boats, trying to reach the safe zone
	TeamWhite Team = "WHITE" // Swans, trying to tag boats
)

var (
	// AllSessionStatuses contains all valid session statuses
	AllSessionStatuses = []SessionStatus{
		SessionStatusLobby,
		SessionStatusActive,
		SessionStatusPaused,
		SessionStatusEnded,
		SessionStatusArchived,
	}

	// AllItemPhases contains all valid item phases
	AllItemPhases = []ItemPhase{
		ItemPhaseIdle,
		ItemPhaseActive,
		ItemPhaseLocked,
		ItemPhaseRevealed,
		ItemPhaseCancelled,
	}

	// sessionStatusMap maps string values to SessionStatus
	sessionStatusMap = map[string]SessionStatus{
		string(SessionStatusLobby):    SessionStatusLobby,
		string(SessionStatusActive):   SessionStatusActive,
		string(SessionStatusPaused):   SessionStatusPaused,
		string(SessionStatusEnded):    SessionStatusEnded,
		string(SessionStatusArchived): SessionStatusArchived,
	}

	// itemKindMap maps string values to ItemKind
	itemKindMap = map[string]ItemKind{
		string(ItemKindQuestion):   ItemKindQuestion,
		string(ItemKindMinigame):   ItemKindMinigame,
		string(ItemKindScoreboard): ItemKindScoreboard,
		string(ItemKindBreak):      ItemKindBreak,
	}

	// roleMap maps string values to Role
	roleMap = map[string]Role{
		string(RoleHost):    RoleHost,
		string(RolePlayer):  RolePlayer,
		string(RoleDisplay): RoleDisplay,
	}
)

// Error types for invalid values
var (
	ErrInvalidSessionStatus = fmt.Errorf("invalid session status")
	ErrInvalidItemKind      = fmt.Errorf("invalid item kind")
	ErrInvalidRole          = fmt.Errorf("invalid role")
)

// IsValid checks if the SessionStatus is valid
func (s SessionStatus) IsValid() bool {
	_, ok := sessionStatusMap[string(s)]
	return ok
}

// String converts the enum to string
func (s SessionStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further gameplay is possible
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusEnded || s == SessionStatusArchived
}

// ParseSessionStatus parses a string into a SessionStatus
func ParseSessionStatus(s string) (SessionStatus, error) {
	if status, ok := sessionStatusMap[s]; ok {
		return status, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidSessionStatus, s)
}

// String converts the enum to string
func (p ItemPhase) String() string {
	return string(p)
}

// IsValid checks if the ItemKind is valid
func (k ItemKind) IsValid() bool {
	_, ok := itemKindMap[string(k)]
	return ok
}

// String converts the enum to string
func (k ItemKind) String() string {
	return string(k)
}

// ParseItemKind parses a string into an ItemKind
func ParseItemKind(s string) (ItemKind, error) {
	if kind, ok := itemKindMap[s]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidItemKind, s)
}

// IsValid checks if the Role is valid
func (r Role) IsValid() bool {
	_, ok := roleMap[string(r)]
	return ok
}

// String converts the enum to string
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	if role, ok := roleMap[s]; ok {
		return role, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidRole, s)
}

// String converts the enum to string
func (q ConnectionQuality) String() string {
	return string(q)
}

// String converts the enum to string
func (t Team) String() string {
	return string(t)
}

// Opponent returns the other side
func (t Team) Opponent() Team {
	if t == TeamBlue {
		return TeamWhite
	}
	return TeamBlue
}
