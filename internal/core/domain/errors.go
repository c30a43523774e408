package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")
	// ErrUnavailable marks an optional capability that is not configured.
	ErrUnavailable = errors.New("capability unavailable")
)

// KindInternal names any error that carries none of the typed kinds.
const KindInternal = "internal"

var errorKinds = []struct {
	name string
	kind error
}{
	{"not_found", ErrNotFound},
	{"invalid_input", ErrInvalidInput},
	{"unauthorized", ErrUnauthorized},
	{"temporary", ErrTemporary},
	{"unavailable", ErrUnavailable},
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindName returns the stable wire name of the first typed kind err carries.
func KindName(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return KindInternal
}

// KindFromName is the inverse of KindName; unknown names yield nil.
func KindFromName(name string) error {
	for _, k := range errorKinds {
		if k.name == name {
			return k.kind
		}
	}
	return nil
}

// IsRejection reports whether err was caused by the caller rather than by a
// failing dependency.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound)
}
