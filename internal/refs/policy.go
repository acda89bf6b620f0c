package refs

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
)

// Policy decides what happens when an update would not be a fast-forward
// (direct updates) or would change the type of a reference (symbolic updates).
type Policy int

const (
	// Abort fails the whole batch.
	Abort Policy = iota
	// Reject rejects only the offending update.
	Reject
	// Allow applies the update anyway.
	Allow
)

func (p Policy) String() string {
	switch p {
	case Abort:
		return "abort"
	case Reject:
		return "reject"
	case Allow:
		return "allow"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort":
		return Abort, nil
	case "reject":
		return Reject, nil
	case "allow":
		return Allow, nil
	default:
		return Abort, errors.Errorf("unknown policy %q (expected abort, reject, or allow)", s)
	}
}
