package refdb

import (
	"context"
	"fmt"
)

// Phase is the stage of a reference transaction a hook is invoked for.
type Phase int

const (
	// UnknownPhase is the default value. It should not be used.
	UnknownPhase Phase = iota
	// Prepared runs after every update of the batch has been evaluated. All
	// affected references are locked but nothing has been written yet. A hook
	// returning an error aborts the transaction.
	Prepared
	// Committed runs after the changes have been persisted and published.
	Committed
	// Aborted runs after a transaction failed. Nothing has been written.
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Prepared:
		return "prepared"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// TxInfo describes a transaction to hooks.
type TxInfo struct {
	ID      string
	Changes []Change
}

// Hook observes reference transactions. Errors returned for the Committed and
// Aborted phases are logged and otherwise ignored.
type Hook interface {
	Transaction(ctx context.Context, phase Phase, tx TxInfo) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, phase Phase, tx TxInfo) error

func (f HookFunc) Transaction(ctx context.Context, phase Phase, tx TxInfo) error {
	return f(ctx, phase, tx)
}
