package models

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotFitted         = errors.New("scaler not fitted")
	ErrEmptyBatch        = errors.New("empty batch")
	ErrNotFound          = errors.New("not found")
)

// TimestampError reports the bar whose time could not be parsed.
// Row is -1 when the value was parsed outside of a batch.
type TimestampError struct {
	Value string
	Row   int
}

func (e *TimestampError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("invalid timestamp %q", e.Value)
	}
	return fmt.Sprintf("invalid timestamp %q at row %d", e.Value, e.Row)
}

func (e *TimestampError) Unwrap() error { return ErrInvalidTimestamp }

// DimensionMismatchError reports a feature batch whose width differs from the fitted width.
type DimensionMismatchError struct {
	Expected int
	Got      int
	Row      int
}

func (e *DimensionMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("dimension mismatch: expected %d columns, got %d", e.Expected, e.Got)
	}
	return fmt.Sprintf("dimension mismatch at row %d: expected %d columns, got %d", e.Row, e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
