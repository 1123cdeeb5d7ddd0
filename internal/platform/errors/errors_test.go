package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeEngineAlreadyRunning, "engine already running")
	target := New(CodeEngineAlreadyRunning, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}

	other := New(CodeEngineNotRunning, "engine not running")
	if stderrors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := Wrap(CodeEngineStartFailed, "start engine", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "not found", err: New(CodeDatasetNotFound, "missing"), want: http.StatusNotFound},
		{name: "mismatch", err: New(CodeTemplateMismatch, "mismatch"), want: http.StatusBadRequest},
		{name: "token", err: New(CodeTokenInvalid, "bad token"), want: http.StatusUnauthorized},
		{name: "unreachable", err: New(CodeEngineUnreachable, "down"), want: http.StatusBadGateway},
		{name: "plain error", err: fmt.Errorf("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, got)
			}
		})
	}
}
