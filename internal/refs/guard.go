package refs

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
)

// EditKind is the kind of precondition placed on a reference that is about to
// be created or updated.
type EditKind int

const (
	// EditAny places no constraint on the current value.
	EditAny EditKind = iota
	EditMustExist
	EditMustNotExist
	EditMustExistAndMatch
	EditMayExistAndMatch
)

func (k EditKind) String() string {
	switch k {
	case EditAny:
		return "any"
	case EditMustExist:
		return "must-exist"
	case EditMustNotExist:
		return "must-not-exist"
	case EditMustExistAndMatch:
		return "must-exist-and-match"
	case EditMayExistAndMatch:
		return "may-exist-and-match"
	default:
		return fmt.Sprintf("EditKind(%d)", int(k))
	}
}

// Edit is the compare-and-swap guard of a create/update operation. It is
// evaluated against the value the transaction observes for the reference,
// where plumbing.ZeroHash means the reference does not exist.
type Edit struct {
	Kind EditKind
	// The expected object ID for EditMustExistAndMatch and EditMayExistAndMatch.
	Oid plumbing.Hash
}

func Any() Edit          { return Edit{Kind: EditAny} }
func MustExist() Edit    { return Edit{Kind: EditMustExist} }
func MustNotExist() Edit { return Edit{Kind: EditMustNotExist} }

func MustExistAndMatch(oid plumbing.Hash) Edit {
	return Edit{Kind: EditMustExistAndMatch, Oid: oid}
}

func MayExistAndMatch(oid plumbing.Hash) Edit {
	return Edit{Kind: EditMayExistAndMatch, Oid: oid}
}

// Guard checks the precondition against the observed value. It returns a
// *GuardError if the precondition does not hold.
func (e Edit) Guard(given plumbing.Hash) error {
	switch e.Kind {
	case EditAny:
		return nil
	case EditMustExist:
		if given.IsZero() {
			return &GuardError{Kind: DoesNotExist}
		}
		return nil
	case EditMustNotExist:
		if !given.IsZero() {
			return &GuardError{Kind: DoesExist, Given: given}
		}
		return nil
	case EditMustExistAndMatch:
		if given.IsZero() {
			return &GuardError{Kind: DoesNotExist, Expected: e.Oid}
		}
		return matches(given, e.Oid)
	case EditMayExistAndMatch:
		if given.IsZero() {
			return nil
		}
		return matches(given, e.Oid)
	default:
		panic(fmt.Sprintf("invariant error: unknown edit kind %d", int(e.Kind)))
	}
}

func (e Edit) String() string {
	switch e.Kind {
	case EditMustExistAndMatch, EditMayExistAndMatch:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Oid)
	default:
		return e.Kind.String()
	}
}

// RemoveKind is the kind of precondition placed on a reference that is about
// to be deleted.
type RemoveKind int

const (
	RemoveMustExist RemoveKind = iota
	RemoveMustExistAndMatch
)

// Remove is the compare-and-swap guard of a delete operation.
type Remove struct {
	Kind RemoveKind
	Oid  plumbing.Hash
}

func RemoveExisting() Remove { return Remove{Kind: RemoveMustExist} }

func RemoveMatching(oid plumbing.Hash) Remove {
	return Remove{Kind: RemoveMustExistAndMatch, Oid: oid}
}

// Guard checks the precondition against the observed value.
func (r Remove) Guard(given plumbing.Hash) error {
	switch r.Kind {
	case RemoveMustExist:
		return MustExist().Guard(given)
	case RemoveMustExistAndMatch:
		return MustExistAndMatch(r.Oid).Guard(given)
	default:
		panic(fmt.Sprintf("invariant error: unknown remove kind %d", int(r.Kind)))
	}
}

func (r Remove) String() string {
	if r.Kind == RemoveMustExistAndMatch {
		return MustExistAndMatch(r.Oid).String()
	}
	return EditMustExist.String()
}

func matches(given, expected plumbing.Hash) error {
	if given != expected {
		return &GuardError{Kind: DoesNotMatch, Given: given, Expected: expected}
	}
	return nil
}

// ParseEdit parses the text form of an Edit as returned by Edit.String, e.g.
// "must-not-exist" or "must-exist-and-match(<oid>)".
func ParseEdit(s string) (Edit, error) {
	s = strings.TrimSpace(s)
	kindText, oidText, hasOid := strings.Cut(s, "(")
	var kind EditKind
	switch kindText {
	case EditAny.String():
		kind = EditAny
	case EditMustExist.String():
		kind = EditMustExist
	case EditMustNotExist.String():
		kind = EditMustNotExist
	case EditMustExistAndMatch.String():
		kind = EditMustExistAndMatch
	case EditMayExistAndMatch.String():
		kind = EditMayExistAndMatch
	default:
		return Edit{}, errors.Errorf("unknown guard %q", s)
	}

	needsOid := kind == EditMustExistAndMatch || kind == EditMayExistAndMatch
	if !hasOid {
		if needsOid {
			return Edit{}, errors.Errorf("guard %s requires an object ID, e.g. %s(<oid>)", kind, kind)
		}
		return Edit{Kind: kind}, nil
	}
	oidText, ok := strings.CutSuffix(oidText, ")")
	if !ok || !needsOid {
		return Edit{}, errors.Errorf("invalid guard %q", s)
	}
	oid, ok := ParseOid(oidText)
	if !ok {
		return Edit{}, errors.Errorf("invalid object ID %q in guard %q", oidText, s)
	}
	return Edit{Kind: kind, Oid: oid}, nil
}

// ParseRemove parses the text form of a Remove as returned by Remove.String.
func ParseRemove(s string) (Remove, error) {
	e, err := ParseEdit(s)
	if err != nil {
		return Remove{}, err
	}
	switch e.Kind {
	case EditMustExist:
		return RemoveExisting(), nil
	case EditMustExistAndMatch:
		return RemoveMatching(e.Oid), nil
	default:
		return Remove{}, errors.Errorf("guard %s cannot be used to remove a reference", e.Kind)
	}
}
