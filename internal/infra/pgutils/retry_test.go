package pgutils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetry(t *testing.T) {
	t.Parallel()

	b := Backoff{Attempts: 4, Base: time.Millisecond, Max: 2 * time.Millisecond}

	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{name: "first_try", failures: 0, wantCalls: 1},
		{name: "recovers", failures: 2, wantCalls: 3},
		{name: "exhausted", failures: 10, wantCalls: 4, wantErr: true},
		{name: "permanent", failures: 1, permanent: true, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := Retry(t.Context(), b, isTransient, func(int) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return errors.New("permanent")
					}

					return errTransient
				}

				return nil
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Fatalf("calls: want %d, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := Retry(ctx, Backoff{Attempts: 3, Base: time.Second}, isTransient, func(int) error {
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("last error must be kept, got %v", err)
	}
}
