package fserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNotFound, "not found"},
		{KindNotADirectory, "not a directory"},
		{KindPermissionDenied, "permission denied"},
		{KindNoAttributeData, "no attribute data"},
		{KindIOFailure, "i/o failure"},
		{KindUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestE(t *testing.T) {
	cause := errors.New("connection reset")

	err := E(KindIOFailure, "read", "/dir/b.txt", cause)
	if err.Kind != KindIOFailure {
		t.Errorf("kind = %v, want %v", err.Kind, KindIOFailure)
	}
	if err.Op != "read" {
		t.Errorf("op = %q, want %q", err.Op, "read")
	}
	if err.Path != "/dir/b.txt" {
		t.Errorf("path = %q, want %q", err.Path, "/dir/b.txt")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}

	// Argument order must not matter.
	err = E(KindNotFound, "lookup", cause, "/a.txt")
	if err.Path != "/a.txt" || err.Err != cause {
		t.Errorf("E with reversed args: path=%q err=%v", err.Path, err.Err)
	}
}

func TestKindOf(t *testing.T) {
	err := E(KindNotFound, "lookup", "/missing")
	wrapped := fmt.Errorf("handling request: %w", err)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindNotFound)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want %v", got, KindUnknown)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf(nil) = %v, want %v", got, KindUnknown)
	}
}

func TestIsHelpers(t *testing.T) {
	notFound := fmt.Errorf("wrap: %w", E(KindNotFound, "head", "a.txt"))
	ioFail := E(KindIOFailure, "get", "a.txt", errors.New("eof"))

	if !IsNotFound(notFound) {
		t.Error("IsNotFound should match wrapped not-found error")
	}
	if IsNotFound(ioFail) {
		t.Error("IsNotFound should not match i/o failure")
	}
	if !IsIOFailure(ioFail) {
		t.Error("IsIOFailure should match i/o failure")
	}
}

func TestErrorMessage(t *testing.T) {
	err := E(KindPermissionDenied, "open", "/dir")
	want := "open /dir: permission denied"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
