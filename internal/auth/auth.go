// Package auth signs admins in against an identity provider and issues the
// session tokens that guard the admin API.
package auth

import (
	"context"
	"errors"
)

const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeTooManyRequests   = "auth/too-many-requests"
)

const DefaultMessage = "Login failed. Please try again."

var messages = map[string]string{
	CodeInvalidCredential: "Invalid email or password.",
	CodeUserNotFound:      "No user found with this email.",
	CodeWrongPassword:     "Incorrect password.",
	CodeTooManyRequests:   "Too many failed login attempts. Please try again later.",
}

// Message maps a provider code to the text shown to the admin.
func Message(code string) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return DefaultMessage
}

// Error is a sign-in failure reported by a provider.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the provider code carried by err, or "" when err is not a
// sign-in failure.
func CodeOf(err error) string {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ""
}

type User struct {
	ID    string `json:"uid"`
	Email string `json:"email"`
}

type Provider interface {
	SignIn(ctx context.Context, email, password string) (User, error)
}
