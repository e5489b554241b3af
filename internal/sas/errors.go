package sas

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyLengthInvalid is returned when the decoded primary key cannot
	// key an HMAC-SHA256 signer.
	ErrKeyLengthInvalid  = errors.New("primary key length invalid")
	ErrMissingField      = errors.New("missing required field")
	ErrMalformedToken    = errors.New("malformed shared access signature")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTokenExpired      = errors.New("token expired")
)

// KeyDecodeError reports a primary key that is not valid base64.
type KeyDecodeError struct {
	Err error
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("failed to decode primary key: %v", e.Err)
}

func (e *KeyDecodeError) Unwrap() error { return e.Err }

// PrimaryKeyInvalidError is returned by token creation when the Key
// Validator rejects the primary key. Err is the validator's result.
type PrimaryKeyInvalidError struct {
	Err error
}

func (e *PrimaryKeyInvalidError) Error() string {
	return fmt.Sprintf("primary key invalid: %v", e.Err)
}

func (e *PrimaryKeyInvalidError) Unwrap() error { return e.Err }

// MissingFieldError reports a field the token kind requires but the caller
// left empty.
type MissingFieldError struct {
	Kind  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s token requires %s", e.Kind, e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
