package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pantry/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstream, "assets", "upload", "put object failed", base)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assets", "upload", "put object failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{services.Wrap(services.ErrValidation, "pantry", "add", "bad price", nil), "validation"},
		{services.Wrap(services.ErrNotFound, "records", "get", "", nil), "not_found"},
		{services.Wrap(services.ErrUpstream, "llm", "complete", "", errors.New("502")), "upstream"},
		{services.Wrap(services.ErrTimeout, "llm", "complete", "", nil), "timeout"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected no item id on empty context")
	}
	ctx = services.WithItemID(ctx, "abc")
	ctx = services.WithOperation(ctx, "edit")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "abc" {
		t.Fatalf("unexpected item id %q (ok=%v)", id, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "edit" {
		t.Fatalf("unexpected operation %q (ok=%v)", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("unexpected request id %q (ok=%v)", rid, ok)
	}
	if services.WithItemID(ctx, "") != ctx {
		t.Fatal("expected empty id to leave context untouched")
	}
}

func TestMarked(t *testing.T) {
	if services.Marked(errors.New("plain")) {
		t.Fatal("plain error should not be marked")
	}
	if !services.Marked(fmt.Errorf("outer: %w", services.ErrNotFound)) {
		t.Fatal("wrapped marker should be detected")
	}
}
