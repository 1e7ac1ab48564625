package store

import (
	"errors"
	"fmt"

	"github.com/Sh00ty/dataflow-cp/internal/models"
)

// Sentinel classes for action failures. Reducers wrap these with
// context; the RPC boundary maps them onto grpc codes.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInternal          = errors.New("internal store failure")
)

func notFound(ref models.ResourceRef) error {
	return fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func invalidTransition(ref models.ResourceRef, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidTransition, ref, fmt.Sprintf(format, args...))
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func internal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
