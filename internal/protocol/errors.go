package protocol

// ErrorCode is a machine-readable failure tag carried on ERROR events
type ErrorCode string

const (
	ErrSessionNotFound        ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionFull            ErrorCode = "SESSION_FULL"
	ErrSessionEnded           ErrorCode = "SESSION_ENDED"
	ErrSessionArchived        ErrorCode = "SESSION_ARCHIVED"
	ErrSessionQuarantined     ErrorCode = "SESSION_QUARANTINED"
	ErrNameTaken              ErrorCode = "NAME_TAKEN"
	ErrNameInvalid            ErrorCode = "NAME_INVALID"
	ErrNotHost                ErrorCode = "NOT_HOST"
	ErrHostKeyInvalid         ErrorCode = "HOST_KEY_INVALID"
	ErrWrongState             ErrorCode = "WRONG_STATE"
	ErrItemNotActive          ErrorCode = "ITEM_NOT_ACTIVE"
	ErrAnswerAfterLock        ErrorCode = "ANSWER_AFTER_LOCK"
	ErrAnswerAlreadySubmitted ErrorCode = "ANSWER_ALREADY_SUBMITTED"
	ErrPayloadInvalid         ErrorCode = "PAYLOAD_INVALID"
	ErrUnknownCommand         ErrorCode = "UNKNOWN_COMMAND"
	ErrRejoinTokenExpired     ErrorCode = "REJOIN_TOKEN_EXPIRED"
	ErrPlayerNotFound         ErrorCode = "PLAYER_NOT_FOUND"
	ErrRateLimited            ErrorCode = "RATE_LIMITED"
	ErrServerBusy             ErrorCode = "SERVER_BUSY"
	ErrNotJoined              ErrorCode = "NOT_JOINED"
)

// ErrorPayload is the body of an ERROR event. Fatal errors are followed
// by a socket close once the write queue drains.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Fatal   bool      `json:"fatal,omitempty"`
}

// NewError builds an ERROR event
func NewError(code ErrorCode, message string, stateVersion uint64) Event {
	return NewEvent(EventError, ErrorPayload{Code: code, Message: message}, stateVersion)
}

// NewFatalError builds an ERROR event that ends the connection
func NewFatalError(code ErrorCode, message string, stateVersion uint64) Event {
	return NewEvent(EventError, ErrorPayload{Code: code, Message: message, Fatal: true}, stateVersion)
}
