package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeUnknownExam, "exam not in case", map[string]string{"key": "ct"})
	if !stderrors.Is(err, New(CodeUnknownExam, "")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if stderrors.Is(err, New(CodeUnknownTreatment, "")) {
		t.Fatalf("expected different codes not to match")
	}
}

func TestCodeOfWalksWrappedChain(t *testing.T) {
	inner := Wrap(CodeStoreUnavailable, "open save store", fmt.Errorf("disk gone"))
	outer := fmt.Errorf("boot: %w", inner)

	if got := CodeOf(outer); got != CodeStoreUnavailable {
		t.Errorf("CodeOf = %q, want %q", got, CodeStoreUnavailable)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
	if inner.Error() != "open save store: disk gone" {
		t.Errorf("unexpected message %q", inner.Error())
	}
}
