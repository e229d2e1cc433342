package domain

import (
	"errors"
	"fmt"
)

// Credential failure reasons.
const (
	CredentialRefreshFailed = "refresh_failed"
	CredentialNotConnected  = "not_connected"
)

var ErrCredentialNotFound = errors.New("credential not found")

// CredentialError means no usable credential exists for a user. It aborts a sync.
type CredentialError struct {
	UserID string
	Reason string
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential %s for user %s: %v", e.Reason, e.UserID, e.Err)
	}
	return fmt.Sprintf("credential %s for user %s", e.Reason, e.UserID)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// MailProviderError means the mail provider could not be listed or read. It aborts a sync.
type MailProviderError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *MailProviderError) Error() string {
	return fmt.Sprintf("mail provider %s: %v", e.Op, e.Err)
}

func (e *MailProviderError) Unwrap() error { return e.Err }

// ValidationError describes an inference response that failed the result contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid extraction: " + e.Reason
	}
	return fmt.Sprintf("invalid extraction field %q: %s", e.Field, e.Reason)
}

// DuplicateCheckError means the record store could not be queried for duplicates.
type DuplicateCheckError struct {
	Err error
}

func (e *DuplicateCheckError) Error() string {
	return "duplicate check: " + e.Err.Error()
}

func (e *DuplicateCheckError) Unwrap() error { return e.Err }

// PersistenceError wraps a record store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsCredentialError(err error) bool {
	var ce *CredentialError
	return errors.As(err, &ce)
}

func IsMailProviderError(err error) bool {
	var me *MailProviderError
	return errors.As(err, &me)
}
