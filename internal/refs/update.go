package refs

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Update is a single proposed change within a batch. It is one of
// DirectUpdate, SymbolicUpdate, or RemoveUpdate.
type Update interface {
	// RefName returns the name of the reference the update applies to.
	RefName() plumbing.ReferenceName
	fmt.Stringer
	isUpdate()
}

// DirectUpdate points a reference at an object.
type DirectUpdate struct {
	Name   plumbing.ReferenceName
	Target plumbing.Hash
	// NoFF is applied when the update is not a fast-forward.
	NoFF     Policy
	Previous Edit
	// Message is recorded in the reflog.
	Message string
}

// SymrefTarget is the destination of a symbolic update.
type SymrefTarget struct {
	Name plumbing.ReferenceName
	// Target is the object the destination should point at once the update
	// is applied. If it is the zero hash, only the alias is written and the
	// destination is left untouched.
	Target plumbing.Hash
}

// SymbolicUpdate points a reference (the alias) at another reference.
type SymbolicUpdate struct {
	Name   plumbing.ReferenceName
	Target SymrefTarget
	// TypeChange is applied when the alias currently exists as a direct
	// reference.
	TypeChange Policy
	Previous   Edit
	Message    string
}

// RemoveUpdate deletes a reference.
type RemoveUpdate struct {
	Name     plumbing.ReferenceName
	Previous Remove
	Message  string
}

func (u DirectUpdate) RefName() plumbing.ReferenceName   { return u.Name }
func (u SymbolicUpdate) RefName() plumbing.ReferenceName { return u.Name }
func (u RemoveUpdate) RefName() plumbing.ReferenceName   { return u.Name }

func (DirectUpdate) isUpdate()   {}
func (SymbolicUpdate) isUpdate() {}
func (RemoveUpdate) isUpdate()   {}

func (u DirectUpdate) String() string {
	return fmt.Sprintf("update %s -> %s (previous=%s, no-ff=%s)", u.Name, u.Target, u.Previous, u.NoFF)
}

func (u SymbolicUpdate) String() string {
	return fmt.Sprintf(
		"symref %s -> %s@%s (previous=%s, type-change=%s)",
		u.Name, u.Target.Name, u.Target.Target, u.Previous, u.TypeChange,
	)
}

func (u RemoveUpdate) String() string {
	return fmt.Sprintf("delete %s (previous=%s)", u.Name, u.Previous)
}

// Updated is the outcome of a successfully applied update. It is one of
// UpdatedDirect, UpdatedSymbolic, or Removed.
type Updated interface {
	RefName() plumbing.ReferenceName
	isUpdated()
}

type UpdatedDirect struct {
	Name   plumbing.ReferenceName
	Target plumbing.Hash
	// Previous is the zero hash if the reference did not exist.
	Previous plumbing.Hash
}

type UpdatedSymbolic struct {
	Name       plumbing.ReferenceName
	TargetName plumbing.ReferenceName
	Previous   plumbing.Hash
}

type Removed struct {
	Name     plumbing.ReferenceName
	Previous plumbing.Hash
}

func (u UpdatedDirect) RefName() plumbing.ReferenceName   { return u.Name }
func (u UpdatedSymbolic) RefName() plumbing.ReferenceName { return u.Name }
func (u Removed) RefName() plumbing.ReferenceName         { return u.Name }

func (UpdatedDirect) isUpdated()   {}
func (UpdatedSymbolic) isUpdated() {}
func (Removed) isUpdated()         {}

// Rejection is an update that was not applied while the rest of the batch
// was. Update is exactly the value that was submitted.
type Rejection struct {
	Update Update
	Reason error
}

// Applied is the result of a batch that was committed.
type Applied struct {
	Updated  []Updated
	Rejected []Rejection
}

// RejectedUpdates returns the rejected updates without their reasons.
func (a *Applied) RejectedUpdates() []Update {
	updates := make([]Update, len(a.Rejected))
	for i, r := range a.Rejected {
		updates[i] = r.Update
	}
	return updates
}
