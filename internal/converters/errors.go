// Package converters holds what every report converter shares: the error
// taxonomy callers use to tell a malformed file from a bad field.
package converters

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindStructural Kind = "structural"
	KindSchema     Kind = "schema"
	KindField      Kind = "field"
)

// Error is implemented by every conversion failure.
type Error interface {
	error
	Kind() Kind
}

type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return e.Reason }
func (e *FormatError) Kind() Kind    { return KindStructural }

type MissingColumnError struct {
	Label string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("could not find '%s' column", e.Label)
}
func (e *MissingColumnError) Kind() Kind { return KindSchema }

type DateError struct {
	Value  string
	Reason string
}

func (e *DateError) Error() string {
	if e.Value == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Value)
}
func (e *DateError) Kind() Kind { return KindField }

// TimeError reports a time cell that could not be normalized. Row is the
// 0-based index into the input grid.
type TimeError struct {
	Row   int
	Value string
	Err   error
}

func (e *TimeError) Error() string {
	msg := fmt.Sprintf("row %d: invalid time format: %q", e.Row+1, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}
func (e *TimeError) Unwrap() error { return e.Err }
func (e *TimeError) Kind() Kind    { return KindField }

type AmbiguousSideError struct {
	Row int
}

func (e *AmbiguousSideError) Error() string {
	return fmt.Sprintf("row %d: could not determine side: both B and S columns are empty or zero", e.Row+1)
}
func (e *AmbiguousSideError) Kind() Kind { return KindField }

// KindOf returns the kind of the first conversion error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce Error
	if errors.As(err, &ce) {
		return ce.Kind(), true
	}
	return "", false
}
