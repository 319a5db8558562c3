package core

// convert.go classifies and parses raw field text.
//
// Values are trimmed before they are classified. A field that is empty
// after trimming says nothing about the column's type and is NULL in a
// numeric column; a TEXT column keeps it verbatim unless it is "".

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	// integerRegex matches an optionally signed run of decimal digits.
	integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

	// numericRegex matches integers, decimals and scientific notation.
	// NaN and Inf spellings are deliberately not numbers.
	numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
)

var (
	errNotInteger  = errors.New("not an integer")
	errOutOfRange  = errors.New("integer out of range")
	errNotNumber   = errors.New("not a number")
	errUnknownType = errors.New("unknown column type")
)

// IsEmpty reports whether a raw field carries no value for type inference.
func IsEmpty(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// Classify returns the narrowest type that holds a non-empty raw value.
// Integers that do not fit in 64 bits classify as Real.
func Classify(raw string) Type {
	v := strings.TrimSpace(raw)
	if integerRegex.MatchString(v) {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Integer
		}
		return Real
	}
	if numericRegex.MatchString(v) {
		return Real
	}
	return Text
}

// ParseValue converts raw into the Go value stored for a column of type t:
// int64, float64, string, or nil for an empty field. Reals too large for a
// float64 load as ±Inf.
func ParseValue(raw string, t Type) (any, error) {
	if raw == "" || (t != Text && IsEmpty(raw)) {
		return nil, nil
	}

	switch t {
	case Integer:
		v := strings.TrimSpace(raw)
		if !integerRegex.MatchString(v) {
			return nil, errNotInteger
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errOutOfRange
		}
		return i, nil

	case Real:
		v := strings.TrimSpace(raw)
		if !numericRegex.MatchString(v) {
			return nil, errNotNumber
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, errNotNumber
		}
		return f, nil

	case Text:
		return raw, nil
	}

	return nil, errUnknownType
}

// isBlankRecord reports whether every field of a record is empty.
func isBlankRecord(fields []string) bool {
	for _, f := range fields {
		if !IsEmpty(f) {
			return false
		}
	}
	return true
}
