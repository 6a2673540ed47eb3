// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic flow control).
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Account outcomes.
	ErrDuplicateUsername = errors.New("username is taken")
	ErrDuplicateEmail    = errors.New("email is taken")
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordMismatch  = errors.New("password does not match email")
	ErrMailDispatch      = errors.New("mail dispatch failed")
	ErrNotVerified       = errors.New("email not verified")
	ErrUnknown           = errors.New("unknown error")

	// Follow graph outcomes.
	ErrUserAlreadyFollowed = errors.New("user already followed")
	ErrUserNotFollowed     = errors.New("user not followed")
	ErrCannotFollowSelf    = errors.Join(ErrorValidation, errors.New("cannot follow yourself"))

	// Password reset outcomes.
	ErrPasskeyNotFound  = errors.New("no password change request found")
	ErrIncorrectPasskey = errors.New("incorrect passkey")
	ErrPasskeyTooOld    = errors.New("passkey too old")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
