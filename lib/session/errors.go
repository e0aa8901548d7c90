package session

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a session reports
type Kind int

const (
	KindNone              Kind = iota // no error
	KindStore                         // error reported by the store, passed on verbatim
	KindProtocolViolation             // malformed reply from the store
	KindSerialization                 // value could not be encoded as JSON
	KindParse                         // stored text is not valid JSON
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindStore:
		return "StoreError"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindSerialization:
		return "SerializationError"
	case KindParse:
		return "ParseError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrNoReply is reported when a scan reply is missing or not a (cursor, keys) pair
	ErrNoReply = errors.New("no reply")
	// ErrUnknownCommand is reported when a command is not in the session's table
	ErrUnknownCommand = errors.New("unknown command")
	// ErrClosed is reported for operations started after Close
	ErrClosed = errors.New("session closed")
)

// Error is an error raised by the session itself (not by the store)
type Error struct {
	Kind Kind
	Key  string // affected key, empty if none
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (key %q): %v", e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors not raised by the session are store errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindStore
}

func protocolViolation(key string, err error) error {
	return &Error{Kind: KindProtocolViolation, Key: key, Err: err}
}
