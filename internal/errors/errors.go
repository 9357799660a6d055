package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Class identifies the failure class of a provisioning error
type Class int

const (
	// ClassValidation covers malformed input, identifier format violations
	// and quota rejections. Detected before any write.
	ClassValidation Class = iota + 1

	// ClassNotFound covers absent tenants, devices, profiles and templates.
	ClassNotFound

	// ClassRemoteTransport covers an unreachable or timed-out remote service.
	ClassRemoteTransport

	// ClassRemoteRejected covers a reachable remote service refusing the
	// operation for a business reason.
	ClassRemoteRejected

	// ClassConsistencyRace covers a local uniqueness violation caused by a
	// concurrent winner. Resolved internally, never surfaced to callers.
	ClassConsistencyRace
)

// String returns the class name used in logs and metrics labels
func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassRemoteTransport:
		return "remote_transport"
	case ClassRemoteRejected:
		return "remote_rejected"
	case ClassConsistencyRace:
		return "consistency_race"
	default:
		return "unknown"
	}
}

// ProvisioningError is a structured error with class, detail and cause
type ProvisioningError struct {
	Class      Class
	Message    string
	RemoteCode string // gRPC status code name when remote-originated
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *ProvisioningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *ProvisioningError) WithDetail(key string, value interface{}) *ProvisioningError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a ProvisioningError with the given class
func New(class Class, message string, cause error) *ProvisioningError {
	return &ProvisioningError{
		Class:   class,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// Convenience constructors

func Validation(format string, args ...interface{}) *ProvisioningError {
	return New(ClassValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(kind, ref string) *ProvisioningError {
	return New(ClassNotFound, fmt.Sprintf("%s not found: %s", kind, ref), nil).
		WithDetail("kind", kind).
		WithDetail("ref", ref)
}

func QuotaExceeded(tenantID string, count, max int64) *ProvisioningError {
	return New(ClassValidation, fmt.Sprintf("device quota reached for tenant %s: %d/%d", tenantID, count, max), nil).
		WithDetail("tenant_id", tenantID).
		WithDetail("count", count).
		WithDetail("max_devices", max)
}

func RemoteTransport(op, message string, cause error) *ProvisioningError {
	return New(ClassRemoteTransport, fmt.Sprintf("%s: %s", op, message), cause).
		WithDetail("operation", op)
}

func RemoteRejected(op, message string, cause error) *ProvisioningError {
	return New(ClassRemoteRejected, fmt.Sprintf("%s: %s", op, message), cause).
		WithDetail("operation", op)
}

func ConsistencyRace(message string, cause error) *ProvisioningError {
	return New(ClassConsistencyRace, message, cause)
}

// FromRPC translates a gRPC call failure into a ProvisioningError.
// Transport-level codes become ClassRemoteTransport, business refusals
// become ClassRemoteRejected, and NotFound keeps its own class so delete
// flows can absorb it.
func FromRPC(op string, err error) *ProvisioningError {
	st, ok := status.FromError(err)
	if !ok {
		return RemoteTransport(op, "remote call failed", err)
	}

	pe := &ProvisioningError{
		Message:    fmt.Sprintf("%s: %s", op, st.Message()),
		RemoteCode: st.Code().String(),
		Details:    map[string]interface{}{"operation": op},
		Cause:      err,
	}

	switch st.Code() {
	case codes.NotFound:
		pe.Class = ClassNotFound
	case codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition,
		codes.PermissionDenied, codes.Unauthenticated, codes.ResourceExhausted,
		codes.OutOfRange:
		pe.Class = ClassRemoteRejected
	default:
		// Unavailable, DeadlineExceeded, Canceled, Internal, Unknown, ...
		pe.Class = ClassRemoteTransport
	}

	return pe
}

// ClassOf extracts the class from an error chain, or 0 if none
func ClassOf(err error) Class {
	var pe *ProvisioningError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return 0
}

func IsValidation(err error) bool      { return ClassOf(err) == ClassValidation }
func IsNotFound(err error) bool       { return ClassOf(err) == ClassNotFound }
func IsRemoteTransport(err error) bool { return ClassOf(err) == ClassRemoteTransport }
func IsRemoteRejected(err error) bool  { return ClassOf(err) == ClassRemoteRejected }
func IsConsistencyRace(err error) bool { return ClassOf(err) == ClassConsistencyRace }
