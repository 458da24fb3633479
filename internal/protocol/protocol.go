package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType identifies a client-to-server frame
type CommandType string

const (
	CmdJoinSession         CommandType = "JOIN_SESSION"
	CmdJoinAsNew           CommandType = "JOIN_AS_NEW"
	CmdRejoinAsExisting    CommandType = "REJOIN_AS_EXISTING"
	CmdPlayerRejoin        CommandType = "PLAYER_REJOIN"
	CmdDisplayJoinSession  CommandType = "DISPLAY_JOIN_SESSION"
	CmdHostJoinSession     CommandType = "HOST_JOIN_SESSION"
	CmdSubmitAnswer        CommandType = "SUBMIT_ANSWER"
	CmdHeartbeat           CommandType = "HEARTBEAT"
	CmdPing                CommandType = "PING"
	CmdStartItem           CommandType = "START_ITEM"
	CmdLockItem            CommandType = "LOCK_ITEM"
	CmdCancelItem          CommandType = "CANCEL_ITEM"
	CmdRevealAnswers       CommandType = "REVEAL_ANSWERS"
	CmdPauseSession        CommandType = "PAUSE_SESSION"
	CmdResumeSession       CommandType = "RESUME_SESSION"
	CmdEndSession          CommandType = "END_SESSION"
	CmdResetSession        CommandType = "RESET_SESSION"
	CmdKickPlayer          CommandType = "KICK_PLAYER"
	CmdGenerateRejoinToken CommandType = "GENERATE_REJOIN_TOKEN"
	CmdAdjustScore         CommandType = "ADJUST_SCORE"
	CmdStartSwanChase      CommandType = "START_SWAN_CHASE"
	CmdSwanChaseInput      CommandType = "SWAN_CHASE_INPUT"
)

// EventType identifies a server-to-client frame
type EventType string

const (
	EventSessionState         EventType = "SESSION_STATE"
	EventPlayerJoined         EventType = "PLAYER_JOINED"
	EventPlayerLeft           EventType = "PLAYER_LEFT"
	EventPlayerKicked         EventType = "PLAYER_KICKED"
	EventDeviceRecognized     EventType = "DEVICE_RECOGNIZED"
	EventRejoinTokenGenerated EventType = "REJOIN_TOKEN_GENERATED"
	EventConnectionStatus     EventType = "CONNECTION_STATUS_UPDATE"
	EventPong                 EventType = "PONG"
	EventItemStarted          EventType = "ITEM_STARTED"
	EventItemLocked           EventType = "ITEM_LOCKED"
	EventItemCancelled        EventType = "ITEM_CANCELLED"
	EventRevealAnswers        EventType = "REVEAL_ANSWERS"
	EventAnswerReceived       EventType = "ANSWER_RECEIVED"
	EventAnswerCountUpdated   EventType = "ANSWER_COUNT_UPDATED"
	EventPlayerAnswered       EventType = "PLAYER_ANSWERED"
	EventLeaderboardUpdate    EventType = "LEADERBOARD_UPDATE"
	EventSpeedPodiumResults   EventType = "SPEED_PODIUM_RESULTS"
	EventScoreAdjusted        EventType = "SCORE_ADJUSTED"
	EventSessionPaused        EventType = "SESSION_PAUSED"
	EventSessionResumed       EventType = "SESSION_RESUMED"
	EventSessionEnded         EventType = "SESSION_ENDED"
	EventSessionReset         EventType = "SESSION_RESET"
	EventSwanChaseState       EventType = "SWAN_CHASE_STATE"
	EventBoatTagged           EventType = "BOAT_TAGGED"
	EventBoatSafe             EventType = "BOAT_SAFE"
	EventSwanChaseEnded       EventType = "SWAN_CHASE_ENDED"
	EventError                EventType = "ERROR"
)

// snapshotEvents carry the complete current view of something. Under
// backpressure the hub keeps only the newest one per type instead of
// queueing every update.
var snapshotEvents = map[EventType]bool{
	EventSessionState:      true,
	EventLeaderboardUpdate: true,
	EventSwanChaseState:    true,
}

// IsSnapshot reports whether the type follows the latest-wins queue policy
func (t EventType) IsSnapshot() bool {
	return snapshotEvents[t]
}

// Message is the JSON envelope both directions share. StateVersion is
// only meaningful on server frames; client frames leave it zero.
type Message struct {
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	StateVersion uint64          `json:"stateVersion,omitempty"`
}

// ParseMessage decodes an inbound frame
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %v", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

// Event is an outbound frame before marshaling. The hub stamps the
// timestamp when it serializes the envelope.
type Event struct {
	Type         EventType
	Payload      interface{}
	StateVersion uint64
}

// NewEvent builds an outbound event
func NewEvent(t EventType, payload interface{}, stateVersion uint64) Event {
	return Event{Type: t, Payload: payload, StateVersion: stateVersion}
}

// Marshal renders the full wire frame
func (e Event) Marshal() ([]byte, error) {
	var raw json.RawMessage
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %v", e.Type, err)
		}
		raw = data
	}
	return json.Marshal(Message{
		Type:         string(e.Type),
		Payload:      raw,
		Timestamp:    time.Now().UTC(),
		StateVersion: e.StateVersion,
	})
}

// Target selects which session sockets receive a directed event
type Target int

const (
	TargetAll Target = iota
	TargetHost
	TargetPlayers  // players and displays, everything except the host
	TargetDisplays // displays only
	TargetPlayer   // one player, all sockets bound to them
)

// Directed pairs an event with its audience. The item machine returns
// these; the supervisor hands them to the hub.
type Directed struct {
	Target   Target
	PlayerID string // set when Target is TargetPlayer
	Event    Event
}

// ToAll wraps an event for every socket in the session
func ToAll(ev Event) Directed {
	return Directed{Target: TargetAll, Event: ev}
}

// ToHost wraps an event for the host socket
func ToHost(ev Event) Directed {
	return Directed{Target: TargetHost, Event: ev}
}

// ToPlayers wraps an event for player and display sockets
func ToPlayers(ev Event) Directed {
	return Directed{Target: TargetPlayers, Event: ev}
}

// ToDisplays wraps an event for display sockets only
func ToDisplays(ev Event) Directed {
	return Directed{Target: TargetDisplays, Event: ev}
}

// ToPlayer wraps an event for one player's sockets
func ToPlayer(playerID string, ev Event) Directed {
	return Directed{Target: TargetPlayer, PlayerID: playerID, Event: ev}
}
