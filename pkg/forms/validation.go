package forms

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validator validates a field value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the error message shown for the field.
	Message() string
}

// RequiredValidator validates that a field is not empty.
type RequiredValidator struct {
	Msg string
}

func (v RequiredValidator) Validate(value any) error {
	if isEmpty(value) {
		return errors.New("required")
	}
	return nil
}

func (v RequiredValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "This field is required"
}

// MinLengthValidator validates the trimmed rune length of a string.
// Empty values pass; pair it with Required.
type MinLengthValidator struct {
	Min int
	Msg string
}

func (v MinLengthValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(str)) < v.Min {
		return fmt.Errorf("too short (min %d)", v.Min)
	}
	return nil
}

func (v MinLengthValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return fmt.Sprintf("Must be at least %d characters", v.Min)
}

// PatternValidator validates a string against a compiled pattern.
// Empty values pass.
type PatternValidator struct {
	Regexp *regexp.Regexp
	Msg    string
}

func (v PatternValidator) Validate(value any) error {
	str, ok := value.(string)
	if !ok || str == "" {
		return nil
	}
	if !v.Regexp.MatchString(str) {
		return errors.New("pattern mismatch")
	}
	return nil
}

func (v PatternValidator) Message() string {
	if v.Msg != "" {
		return v.Msg
	}
	return "Invalid format"
}

// CustomValidator allows custom validation functions.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error {
	return v.Fn(value)
}

func (v CustomValidator) Message() string {
	return v.Msg
}

// emailPattern rejects whitespace and requires one @ and a dotted domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

// Convenience constructors

// Required returns a required validator with the given message.
func Required(msg string) Validator {
	return RequiredValidator{Msg: msg}
}

// MinLength returns a trimmed minimum length validator.
func MinLength(n int, msg string) Validator {
	return MinLengthValidator{Min: n, Msg: msg}
}

// Email returns an email shape validator.
func Email(msg string) Validator {
	return PatternValidator{Regexp: emailPattern, Msg: msg}
}

// Pattern returns a validator for an arbitrary expression.
// It panics if the expression does not compile; use LoadSchema for untrusted input.
func Pattern(expr, msg string) Validator {
	return PatternValidator{Regexp: regexp.MustCompile(expr), Msg: msg}
}

// Optional returns a validator that accepts any value. It lets a step own a
// field without constraining it.
func Optional() Validator {
	return CustomValidator{Fn: func(any) error { return nil }}
}

// Custom returns a custom validator.
func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}
