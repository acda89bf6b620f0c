package refs

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
)

const symrefPrefix = "ref: "

// Target is what a reference points at: either an object ID (a direct
// target) or the name of another reference (a symbolic target).
// The zero Target is invalid.
type Target struct {
	oid      plumbing.Hash
	symbolic plumbing.ReferenceName
}

func DirectTarget(oid plumbing.Hash) Target {
	return Target{oid: oid}
}

func SymbolicTarget(name plumbing.ReferenceName) Target {
	return Target{symbolic: name}
}

// IsSymbolic returns true if the target is the name of another reference.
func (t Target) IsSymbolic() bool {
	return t.symbolic != ""
}

// IsZero returns true if the target is neither direct nor symbolic.
func (t Target) IsZero() bool {
	return t.symbolic == "" && t.oid.IsZero()
}

// Oid returns the object ID of a direct target (or plumbing.ZeroHash for a
// symbolic target).
func (t Target) Oid() plumbing.Hash {
	return t.oid
}

// Symbolic returns the name of the reference a symbolic target points at (or
// the empty string for a direct target).
func (t Target) Symbolic() plumbing.ReferenceName {
	return t.symbolic
}

// String returns the target in git's loose-ref format, i.e., either the hex
// object ID or "ref: <name>".
func (t Target) String() string {
	if t.IsSymbolic() {
		return symrefPrefix + t.symbolic.String()
	}
	return t.oid.String()
}

func (t Target) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return nil, errors.New("cannot marshal empty reference target")
	}
	return []byte(t.String()), nil
}

func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTarget parses a target in git's loose-ref format.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutPrefix(s, symrefPrefix); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return Target{}, errors.New("symbolic target has an empty name")
		}
		return SymbolicTarget(plumbing.ReferenceName(name)), nil
	}
	oid, ok := ParseOid(s)
	if !ok || oid.IsZero() {
		return Target{}, errors.Errorf("invalid reference target %q", s)
	}
	return DirectTarget(oid), nil
}

// ParseOid parses a full-length hexadecimal object ID.
func ParseOid(s string) (plumbing.Hash, bool) {
	if !plumbing.IsHash(s) {
		return plumbing.ZeroHash, false
	}
	return plumbing.NewHash(s), true
}

// Reference is a read-only snapshot of a single named reference.
type Reference struct {
	Name   plumbing.ReferenceName
	Target Target
}

func (r Reference) String() string {
	return fmt.Sprintf("%s %s", r.Target, r.Name)
}

// Plumbing converts the reference into the go-git representation.
func (r Reference) Plumbing() *plumbing.Reference {
	if r.Target.IsSymbolic() {
		return plumbing.NewSymbolicReference(r.Name, r.Target.Symbolic())
	}
	return plumbing.NewHashReference(r.Name, r.Target.Oid())
}

// FromPlumbing converts a go-git reference into a Reference.
func FromPlumbing(ref *plumbing.Reference) (Reference, error) {
	switch ref.Type() {
	case plumbing.HashReference:
		return Reference{Name: ref.Name(), Target: DirectTarget(ref.Hash())}, nil
	case plumbing.SymbolicReference:
		return Reference{Name: ref.Name(), Target: SymbolicTarget(ref.Target())}, nil
	default:
		return Reference{}, errors.Errorf("invalid reference %q", ref.Name())
	}
}
