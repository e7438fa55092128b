package entityid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid is wrapped by every parse and construction failure.
	ErrInvalid = errors.New("invalid entity id")

	// ErrInvalidFormat indicates the text does not have 3 or 4 dash-separated segments.
	ErrInvalidFormat = errors.New("expected YYYY-MM-NNNN[-vV]")
	// ErrYearFormat indicates the year segment is not exactly four characters.
	ErrYearFormat = errors.New("year must be four digits")
	// ErrYearParse indicates the year segment is not numeric.
	ErrYearParse = errors.New("year is not a number")
	// ErrYearRange indicates the year cannot be represented relative to the epoch.
	ErrYearRange = errors.New("year out of range")
	// ErrMonthFormat indicates the month segment is not exactly two characters.
	ErrMonthFormat = errors.New("month must be two digits")
	// ErrMonthRange indicates the month is outside 1..12.
	ErrMonthRange = errors.New("month must be between 1 and 12")
	// ErrMonthParse indicates the month segment is not numeric.
	ErrMonthParse = errors.New("month is not a number")
	// ErrNumberParse indicates the sequence segment is not numeric.
	ErrNumberParse = errors.New("sequence number is not a number")
	// ErrVersionFormat indicates the version segment does not start with 'v'.
	ErrVersionFormat = errors.New("version must look like vN")
	// ErrVersionValue indicates a version of zero.
	ErrVersionValue = errors.New("version must be >= 1")
	// ErrVersionParse indicates the version digits are not numeric.
	ErrVersionParse = errors.New("version is not a number")
	// ErrBinaryLength indicates a binary key that is not exactly Size bytes.
	ErrBinaryLength = errors.New("binary id must be 8 bytes")

	// ErrCounterExhausted indicates no more sequence numbers are available in the month.
	ErrCounterExhausted = errors.New("sequence counter exhausted for month")
	// ErrClockBeforeEpoch indicates a wall-clock time before the identifier epoch.
	ErrClockBeforeEpoch = errors.New("clock is before identifier epoch")
)

// ParseError reports which segment of an identifier was rejected.
type ParseError struct {
	Input   string
	Segment string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("entity id %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("entity id %q: segment %q: %v", e.Input, e.Segment, e.Err)
}

// Unwrap exposes both the specific kind and ErrInvalid.
func (e *ParseError) Unwrap() []error {
	return []error{e.Err, ErrInvalid}
}

func parseErr(input, segment string, kind error) error {
	return &ParseError{Input: input, Segment: segment, Err: kind}
}
