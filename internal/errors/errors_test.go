package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromRPC_CodeMapping(t *testing.T) {
	tests := []struct {
		code codes.Code
		want Class
	}{
		{codes.NotFound, ClassNotFound},
		{codes.InvalidArgument, ClassRemoteRejected},
		{codes.AlreadyExists, ClassRemoteRejected},
		{codes.FailedPrecondition, ClassRemoteRejected},
		{codes.PermissionDenied, ClassRemoteRejected},
		{codes.Unauthenticated, ClassRemoteRejected},
		{codes.ResourceExhausted, ClassRemoteRejected},
		{codes.OutOfRange, ClassRemoteRejected},
		{codes.Unavailable, ClassRemoteTransport},
		{codes.DeadlineExceeded, ClassRemoteTransport},
		{codes.Internal, ClassRemoteTransport},
		{codes.Unknown, ClassRemoteTransport},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := FromRPC("tenant.create", status.Error(tt.code, "boom"))
			assert.Equal(t, tt.want, err.Class)
			assert.Equal(t, tt.code.String(), err.RemoteCode)
			assert.Contains(t, err.Error(), "tenant.create")
		})
	}
}

func TestFromRPC_NonStatusError(t *testing.T) {
	err := FromRPC("tenant.create", fmt.Errorf("connection refused"))

	assert.Equal(t, ClassRemoteTransport, err.Class)
}

func TestProvisioningError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := RemoteTransport("tenant.create", "call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "underlying")
}

func TestProvisioningError_WrappedClassDetection(t *testing.T) {
	inner := NotFound("tenant", "abc")
	wrapped := fmt.Errorf("create device: %w", inner)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestQuotaExceeded_Details(t *testing.T) {
	err := QuotaExceeded("tenant-1", 5, 5)

	require.Equal(t, ClassValidation, err.Class)
	assert.Equal(t, int64(5), err.Details["count"])
	assert.Equal(t, int64(5), err.Details["max_devices"])
	assert.Contains(t, err.Error(), "quota")
}

func TestClassOf_PlainError(t *testing.T) {
	assert.Equal(t, Class(0), ClassOf(fmt.Errorf("plain")))
	assert.Equal(t, "unknown", ClassOf(fmt.Errorf("plain")).String())
}
