package export

import (
	"errors"
	"fmt"

	"pigeon/internal/catalog"
)

var (
	ErrNoSupervisor   = errors.New("export: no supervisor for item")
	ErrValidation     = errors.New("export: output failed validation")
	ErrNotFileFielder = errors.New("export: item has no file fields")
)

// NoSupervisorError is returned by Dispatcher.Select when no registered
// supervisor claims the item.
type NoSupervisorError struct {
	Configuration string
	Kind          catalog.Kind
	Type          string
}

func (e *NoSupervisorError) Error() string {
	return fmt.Sprintf("%s: no supervisor found for %s (%s)", e.Configuration, e.Kind, e.Type)
}

func (e *NoSupervisorError) Unwrap() error {
	return ErrNoSupervisor
}

type ValidationError struct {
	Validator string
	Path      string
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output %s rejected by %s: %v", e.Path, e.Validator, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
