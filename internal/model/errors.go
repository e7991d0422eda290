package model

import "fmt"

// ErrorKind classifies a record-level processing error.
type ErrorKind string

const (
	ErrParse      ErrorKind = "parse"
	ErrValidation ErrorKind = "validation"
	ErrDatabase   ErrorKind = "database"
	ErrUnknown    ErrorKind = "unknown"
)

// ProcessingError records one failed record with enough context to locate it
// in the source file. These are recorded and continued past, never fatal on
// their own.
type ProcessingError struct {
	Kind        ErrorKind
	Index       int
	Description string
	Err         error
}

func (e *ProcessingError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s error at record %d (%s): %v", e.Kind, e.Index, e.Description, e.Err)
	}
	return fmt.Sprintf("%s error at record %d: %v", e.Kind, e.Index, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func NewParseError(index int, description string, err error) *ProcessingError {
	return &ProcessingError{Kind: ErrParse, Index: index, Description: description, Err: err}
}

func NewValidationError(index int, description string, err error) *ProcessingError {
	return &ProcessingError{Kind: ErrValidation, Index: index, Description: description, Err: err}
}

func NewDatabaseError(index int, description string, err error) *ProcessingError {
	return &ProcessingError{Kind: ErrDatabase, Index: index, Description: description, Err: err}
}

func NewUnknownError(index int, description string, err error) *ProcessingError {
	return &ProcessingError{Kind: ErrUnknown, Index: index, Description: description, Err: err}
}
