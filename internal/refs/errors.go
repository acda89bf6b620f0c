package refs

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	// ErrPolicyAbort is the root of all errors caused by an Abort policy (or an
	// unsupported symbolic chain). Use errors.Is to check for it.
	ErrPolicyAbort = errors.Sentinel("transaction aborted by policy")
	// ErrLockFailed is returned when the references of a batch could not be
	// locked.
	ErrLockFailed = errors.Sentinel("failed to lock references")
	// ErrPersistFailed is returned when the staged changes could not be
	// written to storage. Nothing from the batch is visible.
	ErrPersistFailed = errors.Sentinel("failed to persist reference transaction")
	// ErrInvariantViolation signals a defect in the engine.
	ErrInvariantViolation = errors.Sentinel("invariant violation")
	// ErrInvalidUpdate is returned for malformed updates.
	ErrInvalidUpdate = errors.Sentinel("invalid update")
	// ErrDuplicateUpdate is returned when more than one update in a batch
	// would write the same reference.
	ErrDuplicateUpdate = errors.Sentinel("duplicate reference in batch")
	// ErrConcurrentUpdate is returned when a reference that was read (but not
	// locked) by the transaction changed before the transaction committed.
	ErrConcurrentUpdate = errors.Sentinel("reference changed concurrently")
	// ErrHookRejected is returned when a prepared hook vetoed the transaction.
	ErrHookRejected = errors.Sentinel("transaction rejected by hook")
	// ErrNotFastForward is the rejection reason of updates that were rejected
	// because they are not a fast-forward.
	ErrNotFastForward = errors.Sentinel("not a fast-forward")
	// ErrTypeChange is the rejection reason of symbolic updates that would
	// overwrite a direct reference.
	ErrTypeChange = errors.Sentinel("reference type change")
)

// GuardErrorKind describes why a guard failed.
type GuardErrorKind int

const (
	DoesNotExist GuardErrorKind = iota
	DoesExist
	DoesNotMatch
)

// GuardError is returned by Edit.Guard and Remove.Guard. It never aborts a
// batch; the affected update is rejected instead.
type GuardError struct {
	Kind     GuardErrorKind
	Given    plumbing.Hash
	Expected plumbing.Hash
}

func (e *GuardError) Error() string {
	switch e.Kind {
	case DoesNotExist:
		return "reference does not exist"
	case DoesExist:
		return fmt.Sprintf("reference already exists at %s", e.Given)
	case DoesNotMatch:
		return fmt.Sprintf("reference is at %s but expected %s", e.Given, e.Expected)
	default:
		return "guard failed"
	}
}

// NonFastForwardError is returned when a direct update with an Abort policy is
// not a fast-forward.
type NonFastForwardError struct {
	Name plumbing.ReferenceName
	Old  plumbing.Hash
	New  plumbing.Hash
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("update of %s from %s to %s is not a fast-forward", e.Name, e.Old, e.New)
}

func (e *NonFastForwardError) Is(target error) bool {
	return target == ErrPolicyAbort || target == ErrNotFastForward
}

// TypeChangeError is returned when a symbolic update with an Abort policy would
// replace a direct reference.
type TypeChangeError struct {
	Name    plumbing.ReferenceName
	Current plumbing.Hash
}

func (e *TypeChangeError) Error() string {
	return fmt.Sprintf("%s is a direct reference (at %s) and cannot become symbolic", e.Name, e.Current)
}

func (e *TypeChangeError) Is(target error) bool {
	return target == ErrPolicyAbort || target == ErrTypeChange
}

// TargetSymbolicError is returned when the destination of a symbolic update is
// itself symbolic. Only a single level of indirection is supported.
type TargetSymbolicError struct {
	Name        plumbing.ReferenceName
	Destination plumbing.ReferenceName
	Pointee     plumbing.ReferenceName
}

func (e *TargetSymbolicError) Error() string {
	return fmt.Sprintf(
		"cannot point %s at %s: %s is itself symbolic (points at %s)",
		e.Name, e.Destination, e.Destination, e.Pointee,
	)
}

func (e *TargetSymbolicError) Is(target error) bool {
	return target == ErrPolicyAbort
}
