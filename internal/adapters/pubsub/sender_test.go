package pubsub

import (
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unavailable", err: status.Error(codes.Unavailable, "try later"), want: true},
		{name: "deadline exceeded", err: status.Error(codes.DeadlineExceeded, "slow"), want: true},
		{name: "resource exhausted", err: status.Error(codes.ResourceExhausted, "quota"), want: true},
		{name: "internal", err: status.Error(codes.Internal, "oops"), want: true},
		{name: "aborted", err: status.Error(codes.Aborted, "conflict"), want: true},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "no"), want: false},
		{name: "not found", err: status.Error(codes.NotFound, "no topic"), want: false},
		{name: "invalid argument", err: status.Error(codes.InvalidArgument, "too big"), want: false},
		{name: "non-grpc error", err: errors.New("connection reset"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
