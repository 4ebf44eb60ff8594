package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which safety mechanism raised the error
type Phase string

const (
	PhaseBounds  Phase = "bounds"  // index and range checks
	PhaseCopy    Phase = "copy"    // slice copies
	PhaseBorrow  Phase = "borrow"  // shared and exclusive views
	PhaseMove    Phase = "move"    // ownership transfer
	PhaseAlloc   Phase = "alloc"   // allocation and release
	PhaseHistory Phase = "history" // snapshot navigation
	PhaseRuntime Phase = "runtime" // runtime operations
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseServe   Phase = "serve"   // session and HTTP handling
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds     Kind = "out_of_bounds"
	KindBoundsViolation Kind = "bounds_violation"
	KindLengthMismatch  Kind = "length_mismatch"
	KindUseAfterMove    Kind = "use_after_move"
	KindUseAfterFree    Kind = "use_after_free"
	KindDangling        Kind = "dangling"
	KindStaleBorrow     Kind = "stale_borrow"
	KindBorrowConflict  Kind = "borrow_conflict"
	KindAllocation      Kind = "allocation"
	KindStackOverflow   Kind = "stack_overflow"
	KindOutOfMemory     Kind = "out_of_memory"
	KindInvalidFree     Kind = "invalid_free"
	KindRegionMismatch  Kind = "region_mismatch"
	KindScopeEnded      Kind = "scope_ended"
	KindInvalidInput    Kind = "invalid_input"
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindClosed          Kind = "closed"
)

// Error is the structured fault type used throughout memsafe
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Subject string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Subject != "" {
		b.WriteString(": ")
		b.WriteString(e.Subject)
	}

	if e.Detail != "" {
		if e.Subject != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Subject names the value the fault is about
func (b *Builder) Subject(s string) *Builder {
	b.err.Subject = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Convenience constructors for common fault classes

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// RangeOutOfBounds creates an out of bounds error for a [offset, offset+length) range
func RangeOutOfBounds(phase Phase, subject string, offset, length, size uint64) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOutOfBounds,
		Subject: subject,
		Detail:  fmt.Sprintf("range %d..%d exceeds size %d", offset, offset+length, size),
		Value:   offset,
	}
}

// BoundsViolation creates an error for an access that escapes its allocation
func BoundsViolation(address, length uint32) *Error {
	return &Error{
		Phase:  PhaseBounds,
		Kind:   KindBoundsViolation,
		Detail: fmt.Sprintf("access %d..%d is not inside a single allocation", address, address+length),
		Value:  address,
	}
}

// LengthMismatch creates an error for an exact copy between slices of different lengths
func LengthMismatch(srcLen, dstLen int) *Error {
	return &Error{
		Phase:  PhaseCopy,
		Kind:   KindLengthMismatch,
		Detail: fmt.Sprintf("source slice length (%d) does not match destination slice length (%d)", srcLen, dstLen),
		Value:  srcLen,
	}
}

// UseAfterMove creates an error for use of a moved-from owner
func UseAfterMove(subject string) *Error {
	return &Error{
		Phase:   PhaseMove,
		Kind:    KindUseAfterMove,
		Subject: subject,
		Detail:  "value used after move",
	}
}

// UseAfterFree creates an error for use of a released owner
func UseAfterFree(phase Phase, subject string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindUseAfterFree,
		Subject: subject,
		Detail:  "value used after it was released",
	}
}

// Dangling creates an error for a view whose owner no longer exists
func Dangling(subject, owner string) *Error {
	return &Error{
		Phase:   PhaseBorrow,
		Kind:    KindDangling,
		Subject: subject,
		Detail:  fmt.Sprintf("%q does not live long enough", owner),
	}
}

// StaleBorrow creates an error for a shared view taken before its owner changed
func StaleBorrow(subject, owner string) *Error {
	return &Error{
		Phase:   PhaseBorrow,
		Kind:    KindStaleBorrow,
		Subject: subject,
		Detail:  fmt.Sprintf("%q was mutated or exclusively borrowed after this view was taken", owner),
	}
}

// BorrowConflict creates an error for an operation blocked by an outstanding borrow
func BorrowConflict(subject, detail string) *Error {
	return &Error{
		Phase:   PhaseBorrow,
		Kind:    KindBorrowConflict,
		Subject: subject,
		Detail:  detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: detail,
	}
}

// StackOverflow creates an error for a stack allocation that does not fit
func StackOverflow(size, available uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindStackOverflow,
		Detail: fmt.Sprintf("cannot allocate %d bytes (%d available)", size, available),
		Value:  size,
	}
}

// OutOfMemory creates an error for a heap allocation that does not fit
func OutOfMemory(size uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindOutOfMemory,
		Detail: fmt.Sprintf("cannot allocate %d bytes", size),
		Value:  size,
	}
}

// InvalidFree creates an error for releasing an address that holds no allocation
func InvalidFree(address uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindInvalidFree,
		Detail: fmt.Sprintf("no allocation at %d", address),
		Value:  address,
	}
}

// RegionMismatch creates an error for releasing an allocation through the wrong region
func RegionMismatch(address uint32, expected, actual string) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindRegionMismatch,
		Detail: fmt.Sprintf("allocation at %d is %s, expected %s", address, actual, expected),
		Value:  address,
	}
}

// ScopeEnded creates an error for use of a scope after it ended
func ScopeEnded(name string) *Error {
	return &Error{
		Phase:   PhaseBorrow,
		Kind:    KindScopeEnded,
		Subject: name,
		Detail:  "scope already ended",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unauthorized creates an access-denied error
func Unauthorized(detail string) *Error {
	return &Error{
		Phase:  PhaseServe,
		Kind:   KindUnauthorized,
		Detail: detail,
	}
}

// Closed creates an error for use of a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
