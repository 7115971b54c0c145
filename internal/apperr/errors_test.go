package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindMappingToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Authorization("nope"), http.StatusForbidden},
		{NotFound("user"), http.StatusNotFound},
		{Conflict("exists"), http.StatusConflict},
		{Timeout("query", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{Internal("boom", errors.New("x")), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusCode(tc.err); got != tc.status {
			t.Errorf("StatusCode(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("user"))
	if !IsKind(err, KindNotFound) {
		t.Fatalf("kind lost through wrapping: %v", err)
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
}

func TestInternalDetailsMasked(t *testing.T) {
	err := Internal("db exploded", errors.New("dsn=secret"))
	msg := ClientMessage(err)
	if msg == "" || msg == err.Error() {
		t.Fatalf("internal error leaked to client: %q", msg)
	}

	// non-internal kinds keep their message
	if got := ClientMessage(Validation("name required")); got != "name required" {
		t.Fatalf("validation message = %q", got)
	}
}

func TestTimeoutUnwraps(t *testing.T) {
	err := Timeout("query", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("timeout does not unwrap to its cause")
	}
}
