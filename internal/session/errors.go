package session

import (
	"fmt"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
)

// Error is a command failure with the wire code the sender should see.
// The supervisor turns these into ERROR events; they never touch state.
type Error struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errf(code protocol.ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts the wire code from a command failure, falling back
// to PAYLOAD_INVALID for anything unexpected.
func AsError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Code: protocol.ErrPayloadInvalid, Message: err.Error()}
}
