package vm

import "fmt"

// ErrorKind categorizes a fatal execution error.
type ErrorKind int

const (
	KindArithmetic    ErrorKind = iota + 1 // division by zero, division overflow, bad shift
	KindMemory                             // null dereference, bounds violation, bad address
	KindUser                               // ATHROW
	KindAssertion                          // ASSERT on a zero condition
	KindAllocation                         // heap limit exhausted
	KindInvalidOpcode                      // unrecognized byte in the code stream
	KindNative                             // host function missing or failed
	KindMalformed                          // program broke the stack or frame contract
)

func (k ErrorKind) String() string {
	switch k {
	case KindArithmetic:
		return "arithmetic error"
	case KindMemory:
		return "memory error"
	case KindUser:
		return "user error"
	case KindAssertion:
		return "assertion failure"
	case KindAllocation:
		return "allocation failure"
	case KindInvalidOpcode:
		return "invalid opcode"
	case KindNative:
		return "native error"
	case KindMalformed:
		return "malformed program"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the single error type the machine terminates with. Function and
// PC locate the faulting instruction.
type Error struct {
	Kind     ErrorKind
	Msg      string
	Function int
	PC       int
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrArithmetic    = &Error{Kind: KindArithmetic}
	ErrMemory        = &Error{Kind: KindMemory}
	ErrUser          = &Error{Kind: KindUser}
	ErrAssertion     = &Error{Kind: KindAssertion}
	ErrAllocation    = &Error{Kind: KindAllocation}
	ErrInvalidOpcode = &Error{Kind: KindInvalidOpcode}
	ErrNative        = &Error{Kind: KindNative}
	ErrMalformed     = &Error{Kind: KindMalformed}
)

// NewError builds an error of the given kind. Natives return one to fault
// with a kind other than KindNative.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, format, args...)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ExitCode is the process status a C0 runtime reports for the error:
// the signal-style 128+N codes for the trapping kinds, 1 for user errors.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindArithmetic:
		return 128 + 8 // SIGFPE
	case KindMemory:
		return 128 + 11 // SIGSEGV
	case KindAssertion, KindInvalidOpcode, KindMalformed:
		return 128 + 6 // SIGABRT
	case KindAllocation:
		return 2
	default:
		return 1
	}
}
