package store

import (
	"fmt"
	"regexp"
	"strings"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Callback receives the outcome of a single store command.
// A missing key is reported as a nil result, never as an error.
type Callback func(result any, err error)

// CommandFunc is the callback-style entry point of one store command.
// Implementations must call cb exactly once, from any goroutine.
type CommandFunc func(args []any, cb Callback)

// InternalMarker flags bindings that are for the store's own use.
// A binding whose Name contains it is never exposed by a session.
const InternalMarker = "internal"

// Binding is the callable a store provides for one command name.
type Binding struct {
	// Name identifies the function bound to the command (e.g. "lstore.get")
	Name string
	// Fn executes the command
	Fn CommandFunc
}

// Internal reports whether the binding is marked for internal use only
func (b Binding) Internal() bool {
	return strings.Contains(b.Name, InternalMarker)
}

// IStore is the callback-style client a session is built on.
// Besides the per-command bindings, a store must bind at least "scan"
// (cursor, "MATCH", pattern → [nextCursor, keys]), "get", "set" and "del".
type IStore interface {
	// Commands returns the ordered command catalog the store was built against.
	Commands() []string
	// Lookup returns the binding for a command. Names are matched case-insensitively.
	// ok is false when the store does not support the command.
	Lookup(name string) (binding Binding, ok bool)
	// Transaction starts a transaction builder with the given commands already queued.
	// Each command is the command name followed by its arguments.
	Transaction(cmds ...[]any) ITx
	// Close releases the resources held by the store.
	Close() (err error)
}

// Finalize aliases every ITx must bind
const (
	ExecTransaction = "exec_transaction" // run all queued commands atomically
	ExecAtomic      = "exec_atomic"      // atomic only when more than one command is queued
	Exec            = "exec"             // run the queued commands as a pipeline
)

// FinalizeAliases lists the finalize aliases in catalog order
var FinalizeAliases = []string{ExecAtomic, ExecTransaction, Exec}

// ITx queues commands for a later exec-family call.
type ITx interface {
	// Queue appends a command to the transaction.
	Queue(name string, args ...any)
	// Lookup returns the binding of a finalize alias (see FinalizeAliases).
	// The result passed to the callback is a []any with one reply per queued command.
	Lookup(name string) (binding Binding, ok bool)
}

// --------------------------------------------------------------------------
// Command Names
// --------------------------------------------------------------------------

var invalidIdent = regexp.MustCompile(`(?:^([0-9])|[^a-zA-Z0-9_$])`)

// NormalizeName turns a catalog command name into an identifier:
// a leading digit is prefixed with '_' and every character outside [A-Za-z0-9_$]
// becomes '_' (e.g. "restore-asking" → "restore_asking").
func NormalizeName(name string) string {
	return invalidIdent.ReplaceAllString(name, "_${1}")
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new KVStoreError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation (e.g. wrong number of arguments).
	RetCWrongType                           // 4: Value has the wrong type for the operation.
	RetCSyntaxError                         // 5: Malformed command options.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCWrongType:
		return "WrongType"
	case RetCSyntaxError:
		return "SyntaxError"
	default:
		return "Unknown"
	}
}
