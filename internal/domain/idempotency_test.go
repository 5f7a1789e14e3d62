package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestIdempotencyStatusValid(t *testing.T) {
	tests := []struct {
		name   string
		status IdempotencyStatus
		want   bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, want: true},
		{name: "done", status: IdempotencyStatusDone, want: true},
		{name: "failed", status: IdempotencyStatusFailed, want: true},
		{name: "invalid", status: IdempotencyStatus("broken"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.want {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotencyKey(t *testing.T) {
	key, err := NormalizeIdempotencyKey("  order-42 ")
	if err != nil || key != "order-42" {
		t.Fatalf("unexpected result: %q, %v", key, err)
	}

	if _, err := NormalizeIdempotencyKey("   "); !errors.Is(err, ErrIdempotencyKeyRequired) {
		t.Fatalf("expected ErrIdempotencyKeyRequired, got %v", err)
	}

	if _, err := NormalizeIdempotencyKey(strings.Repeat("k", IdempotencyKeyMaxLen+1)); !IsValidation(err) {
		t.Fatalf("expected validation error for long key, got %v", err)
	}
}
