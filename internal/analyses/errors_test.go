package analyses

import (
	"errors"
	"fmt"
	"testing"

	"ideascope-backend/internal/aiservice"
)

func TestErrorPublicCode(t *testing.T) {
	cases := []struct {
		err         *Error
		code        string
		recoverable bool
	}{
		{taskNotFound("ghost"), ErrorCodeTaskNotFound, true},
		{upstreamError(&aiservice.RejectedError{Status: 400, Code: "idea_too_vague"}), "idea_too_vague", true},
		{upstreamError(fmt.Errorf("%w: status=502", aiservice.ErrUnavailable)), ErrorCodeUpstreamUnavailable, false},
		{newError(KindValidationFailure, errors.New("progress out of range")), ErrorCodeUpstreamUnavailable, false},
		{newError(KindPersistenceFailure, errors.New("tx aborted")), ErrorCodeInternal, false},
	}
	for _, tc := range cases {
		if got := tc.err.PublicCode(); got != tc.code {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.code, got)
		}
		if got := tc.err.Recoverable(); got != tc.recoverable {
			t.Fatalf("%v: expected recoverable=%v", tc.err, tc.recoverable)
		}
		if tc.err.PublicMessage() == "" {
			t.Fatalf("%v: empty public message", tc.err)
		}
	}
}

func TestErrorMatchesSentinelByKind(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("commit: %w", newError(KindPersistenceFailure, cause))

	if !errors.Is(err, ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("unexpected match on another kind")
	}
	if AsError(err).Kind != KindPersistenceFailure {
		t.Fatalf("AsError lost the kind")
	}
	if AsError(errors.New("plain")).Kind != KindUpstreamUnavailable {
		t.Fatalf("unknown errors should be opaque")
	}
}
