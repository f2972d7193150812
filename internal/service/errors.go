package service

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrCollaboratorFailure = errors.New("collaborator failure")
	ErrJobNotFound         = errors.New("job not found")
	ErrJobAlreadyTerminal  = errors.New("job already in terminal state")
	ErrCacheMiss           = errors.New("cache miss")
	ErrUnknownCategory     = errors.New("unknown cache category")
)

// ValidationError wraps field-level validation failures of a request
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// Fields returns one message per invalid field, or nil when the underlying
// error is not field-scoped.
func (e *ValidationError) Fields() map[string]string {
	var verrs validation.Errors
	if !errors.As(e.Err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for name, err := range verrs {
		fields[name] = err.Error()
	}
	return fields
}

// Detail renders the field messages in a stable order.
func (e *ValidationError) Detail() string {
	fields := e.Fields()
	if fields == nil {
		return e.Error()
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	detail := ""
	for i, name := range names {
		if i > 0 {
			detail += "; "
		}
		detail += name + ": " + fields[name]
	}
	return detail
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

func collaboratorError(name string, err error) error {
	if errors.Is(err, ErrCollaboratorFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrCollaboratorFailure, name, err)
}
