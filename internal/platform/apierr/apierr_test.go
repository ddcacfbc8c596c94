package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	base := Conflict("stage_in_progress", "Cannot revert while a stage is in progress.")
	wrapped := fmt.Errorf("revert: %w", base)
	ae, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected apierr in chain")
	}
	if ae.Status != http.StatusConflict || ae.Code != "stage_in_progress" {
		t.Fatalf("unexpected error: %+v", ae)
	}
	if ae.Error() != "Cannot revert while a stage is in progress." {
		t.Fatalf("unexpected message %q", ae.Error())
	}
}

func TestErrorFallbacks(t *testing.T) {
	if got := (&Error{Code: "x"}).Error(); got != "x" {
		t.Fatalf("want code, got %q", got)
	}
	if got := (&Error{Status: 418}).Error(); got != "api error (418)" {
		t.Fatalf("unexpected %q", got)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Fatalf("plain error should not match")
	}
}
