package errutils

import "emperror.dev/errors"

// As is a wrapper around errors.As using generics that returns the concrete
// error type if err is of type T.
func As[T error](err error) (T, bool) {
	var concreteErr T
	if err == nil {
		return concreteErr, false
	}
	if errors.As(err, &concreteErr) {
		return concreteErr, true
	}
	return concreteErr, false
}

// IsAny returns true if err matches any of the targets according to
// errors.Is.
func IsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
