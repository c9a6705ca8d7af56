package bizcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageCoversEveryCode(t *testing.T) {
	for _, code := range []int{OK, RecordNotFound, MissingParameter, AlreadyInState, ExclusivityViolation, ServiceError} {
		if Message(code) == "" {
			t.Fatalf("Message(%d) is empty", code)
		}
	}
	if Message(-12345) != Message(ServiceError) {
		t.Fatalf("unknown code should fall back to the service error message")
	}
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: OK},
		{name: "plain_bizcode", err: New(AlreadyInState), want: AlreadyInState},
		{name: "wrapped_bizcode", err: fmt.Errorf("transition: %w", New(ExclusivityViolation)), want: ExclusivityViolation},
		{name: "foreign_error", err: errors.New("boom"), want: ServiceError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Fatalf("CodeOf=%d, want %d", got, tc.want)
			}
		})
	}
}

func TestErrorMessageFallback(t *testing.T) {
	if got := New(RecordNotFound).Error(); got != Message(RecordNotFound) {
		t.Fatalf("Error()=%q, want table message", got)
	}
	if got := Newf(RecordNotFound, "formula %s not found", "abc").Error(); got != "formula abc not found" {
		t.Fatalf("Error()=%q, want custom message", got)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Newf(AlreadyInState, "already qualified"))
	if !errors.Is(err, New(AlreadyInState)) {
		t.Fatalf("errors.Is should match bizcode errors by code")
	}
	if errors.Is(err, New(RecordNotFound)) {
		t.Fatalf("errors.Is matched a different code")
	}
}
