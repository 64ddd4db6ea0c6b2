package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// MayHaveSucceeded returns true if the Error was triggered by a command that might have been
	// executed. For example, if the server accepted a lock request but the client could not read
	// the reply, the vehicle may still lock. (Not all timeouts mean the command MayHaveSucceeded,
	// so the common Timeout() error interface is not appropriate here).
	MayHaveSucceeded() bool

	// Temporary returns true if the Error might be the result of a transient condition, such as a
	// dropped connection or a truncated response from the portal.
	Temporary() bool
}

var (
	// ErrBadResponse indicates the server replied with a body the client could not interpret.
	ErrBadResponse = errors.New("invalid response")
	// ErrNoTransactionID indicates the server accepted a command without returning a transaction
	// identifier, so the outcome cannot be tracked.
	ErrNoTransactionID = errors.New("server response did not include a transaction id")
)

// CommandError is the generic classified error. The more specific types below embed the same
// classification.
type CommandError struct {
	Err               error
	PossibleSuccess   bool
	PossibleTemporary bool
}

func NewError(message string, mayHaveSucceeded bool, temporary bool) error {
	return &CommandError{Err: errors.New(message), PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *CommandError) Temporary() bool {
	return e.PossibleTemporary
}

// AuthenticationError indicates the portal rejected the account credentials or returned a login
// response the client could not use. It is never retried automatically.
type AuthenticationError struct {
	StatusCode int
	ErrorType  int
	ErrorCode  int
	Message    string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed (status %d, error type %d, code %d)", e.StatusCode, e.ErrorType, e.ErrorCode)
	}
	return fmt.Sprintf("authentication failed: %s (status %d, error type %d, code %d)", e.Message, e.StatusCode, e.ErrorType, e.ErrorCode)
}

func (e *AuthenticationError) MayHaveSucceeded() bool {
	return false
}

func (e *AuthenticationError) Temporary() bool {
	return false
}

// TransportError indicates the request could not be delivered or its reply could not be read.
type TransportError struct {
	Op              string
	Err             error
	PossibleSuccess bool
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transport error: %s", e.Err)
	}
	return fmt.Sprintf("transport error during %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *TransportError) Temporary() bool {
	return true
}

// ProtocolError indicates a reply arrived but did not have the expected shape. For retry
// purposes it is treated like a TransportError.
type ProtocolError struct {
	Op              string
	Err             error
	PossibleSuccess bool
}

func (e *ProtocolError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("protocol error: %s", e.Err)
	}
	return fmt.Sprintf("protocol error during %s: %s", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *ProtocolError) Temporary() bool {
	return true
}

// NotFoundError indicates the account has no vehicle (or no capability key) for VIN.
type NotFoundError struct {
	VIN      string
	Resource string
}

func (e *NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "vehicle info"
	}
	return fmt.Sprintf("could not find %s for vin %s", resource, e.VIN)
}

func (e *NotFoundError) MayHaveSucceeded() bool {
	return false
}

func (e *NotFoundError) Temporary() bool {
	return false
}

// RemoteError carries a non-zero status block returned with an otherwise well-formed reply.
type RemoteError struct {
	Status Status
}

func (e *RemoteError) Error() string {
	if e.Status.ErrorMessage != "" {
		return fmt.Sprintf("server returned error %d: %s", e.Status.ErrorCode, e.Status.ErrorMessage)
	}
	return fmt.Sprintf("server returned status %d (error type %d, code %d)", e.Status.StatusCode, e.Status.ErrorType, e.Status.ErrorCode)
}

func (e *RemoteError) MayHaveSucceeded() bool {
	return false
}

func (e *RemoteError) Temporary() bool {
	return false
}

// UnresolvedOutcomeError indicates the client gave up polling a transaction that was still
// pending. The command itself may well have succeeded; the client only failed to observe it.
type UnresolvedOutcomeError struct {
	VIN           string
	TransactionID string
	Attempts      int
	LastErr       error
}

func (e *UnresolvedOutcomeError) Error() string {
	msg := fmt.Sprintf("transaction %s for vin %s still pending after %d status checks", e.TransactionID, e.VIN, e.Attempts)
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %s)", e.LastErr)
	}
	return msg
}

func (e *UnresolvedOutcomeError) Unwrap() error {
	return e.LastErr
}

func (e *UnresolvedOutcomeError) MayHaveSucceeded() bool {
	return true
}

func (e *UnresolvedOutcomeError) Temporary() bool {
	return false
}

// MayHaveSucceeded returns true if err is an Error that indicates the command may have been
// executed but the client did not receive a confirmation from the vehicle.
func MayHaveSucceeded(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.MayHaveSucceeded() {
		return true
	}
	return false
}

// Temporary returns true if err is an Error that indicates the command failed due to possibly
// transient conditions that do not require user action to resolve.
func Temporary(err error) bool {
	var commErr Error
	if errors.As(err, &commErr) && commErr.Temporary() {
		return true
	}
	return false
}

// ShouldRetry returns true if the client should retry to issue the command that triggered an error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var e Error
	if errors.As(err, &e) {
		if e.MayHaveSucceeded() {
			return false
		}
		if e.Temporary() {
			return true
		}
	}
	return false
}

// IsAuthenticationError returns true if err was caused by a rejected login.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsNotFound returns true if err was caused by an unknown VIN.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// IsUnresolved returns true if err indicates a transaction whose outcome is unknown.
func IsUnresolved(err error) bool {
	var uErr *UnresolvedOutcomeError
	return errors.As(err, &uErr)
}
