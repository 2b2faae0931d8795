package engine

import (
	"errors"
	"fmt"
)

// RequiredFieldError names the first required field left blank on completion.
type RequiredFieldError struct {
	FieldUUID string
}

func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("required field %s is blank", e.FieldUUID)
}

// ValidationError carries a message for the caller to surface. Err, when set, is the
// underlying cause.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

var (
	ErrFormulaInfiniteLoop = errors.New("formula infinite loop")
	ErrInviteRefused       = errors.New("invitation refused")
	ErrInviteIncomplete    = errors.New("not every required party could be invited")
	ErrAlreadyCompleted    = errors.New("form has already been completed")
	ErrDeclined            = errors.New("form has been declined")
	ErrSubmissionClosed    = errors.New("submission is archived or expired")
)

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// boundary translates any error into one of the two kinds callers see.
func boundary(err error) error {
	if err == nil {
		return nil
	}
	var rf *RequiredFieldError
	if errors.As(err, &rf) {
		return err
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Message: err.Error(), Err: err}
}
