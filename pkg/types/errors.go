package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRequest is returned when a signing request cannot be turned into a
// well-formed typed data envelope.
var ErrInvalidRequest = errors.New("invalid signing request")

// ResolutionError means the chain address for a vault/asset pair could not be derived.
type ResolutionError struct {
	VaultAccountId string
	AssetSymbol    string
	Reason         string
	Err            error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("failed to resolve address for vault %s asset %s: %s", e.VaultAccountId, e.AssetSymbol, e.Reason)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SigningRejectedError is a terminal custody failure of a signing job.
// SubStatus and Messages are carried verbatim from the custody response.
type SigningRejectedError struct {
	JobId     string
	Status    CustodyStatus
	SubStatus string
	Messages  []string
}

func (e *SigningRejectedError) Error() string {
	return fmt.Sprintf("signing job %s ended with status %s%s", e.JobId, e.Status, diagnosticSuffix(e.SubStatus, e.Messages))
}

// SigningTimeoutError means the poll budget was exhausted, or the caller's context
// ended, before the signing job reached a terminal status.
type SigningTimeoutError struct {
	JobId           string
	Attempts        int
	Interval        time.Duration
	LastStatus      CustodyStatus
	TransientErrors int
	Aborted         bool
	Err             error
}

// Bound is the upper limit on time spent polling.
func (e *SigningTimeoutError) Bound() time.Duration {
	return time.Duration(e.Attempts) * e.Interval
}

func (e *SigningTimeoutError) Error() string {
	if e.Aborted {
		return fmt.Sprintf("signing job %s aborted after %d attempts (last status %s): %v", e.JobId, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("signing job %s did not complete within %s (%d attempts every %s, last status %s, %d transient errors)",
		e.JobId, e.Bound(), e.Attempts, e.Interval, e.LastStatus, e.TransientErrors)
}

func (e *SigningTimeoutError) Unwrap() error {
	return e.Err
}

// SignatureFormatError means a raw custody signature could not be normalized to 65 bytes.
type SignatureFormatError struct {
	Expected int
	Actual   int
	Fields   []string
	Reason   string
}

func (e *SignatureFormatError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid signature format: expected %d bytes, got %d", e.Expected, e.Actual)
	if e.Reason != "" {
		fmt.Fprintf(&sb, ": %s", e.Reason)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&sb, " (available fields: %s)", strings.Join(e.Fields, ", "))
	}
	return sb.String()
}

// UnsupportedOperationError is returned by capabilities the custody-backed signer
// deliberately does not provide.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported by a custody-backed signer", e.Operation)
}

// CustodyFailureError is a terminal custody failure of a monitored transaction.
type CustodyFailureError struct {
	TransactionId string
	Status        CustodyStatus
	SubStatus     string
	Messages      []string
}

func (e *CustodyFailureError) Error() string {
	return fmt.Sprintf("custody transaction %s ended with status %s%s", e.TransactionId, e.Status, diagnosticSuffix(e.SubStatus, e.Messages))
}

// ChainConfirmationError means custody reported success but on-chain inclusion
// could not be verified.
type ChainConfirmationError struct {
	TransactionId string
	TxHash        string
	Confirmations uint64
	Required      uint64
	Reason        string
	Err           error
}

func (e *ChainConfirmationError) Error() string {
	msg := fmt.Sprintf("chain confirmation failed for transaction %s (hash %s, %d/%d confirmations): %s",
		e.TransactionId, e.TxHash, e.Confirmations, e.Required, e.Reason)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ChainConfirmationError) Unwrap() error {
	return e.Err
}

// MonitorTimeoutError means the custody phase of monitoring ran out of poll
// budget, or the caller's context ended, before a terminal status was seen.
type MonitorTimeoutError struct {
	TransactionId string
	Attempts      int
	Interval      time.Duration
	LastStatus    CustodyStatus
	Err           error
}

func (e *MonitorTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("monitoring of transaction %s stopped after %d attempts (last status %s): %v", e.TransactionId, e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("transaction %s not terminal within %s (last status %s)",
		e.TransactionId, time.Duration(e.Attempts)*e.Interval, e.LastStatus)
}

func (e *MonitorTimeoutError) Unwrap() error {
	return e.Err
}

// CustodyQueryError means a status query against the custody API failed in a way
// that retrying will not fix, such as an unknown id or a rejected credential.
type CustodyQueryError struct {
	Operation  string
	Id         string
	Attempt    int
	LastStatus CustodyStatus
	Err        error
}

func (e *CustodyQueryError) Error() string {
	return fmt.Sprintf("failed to %s %s on attempt %d (last status %s): %v", e.Operation, e.Id, e.Attempt, e.LastStatus, e.Err)
}

func (e *CustodyQueryError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure that is worth retrying, such as a dropped
// connection or a 5xx from the custody API.
type TransientError struct {
	Op  string
	Err error
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err, or anything it wraps, is a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func diagnosticSuffix(subStatus string, messages []string) string {
	var sb strings.Builder
	if subStatus != "" {
		fmt.Fprintf(&sb, " (sub-status %s)", subStatus)
	}
	if len(messages) > 0 {
		fmt.Fprintf(&sb, ": %s", strings.Join(messages, "; "))
	}
	return sb.String()
}
