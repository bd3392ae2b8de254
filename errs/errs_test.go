package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesPoolOpAndCause(t *testing.T) {
	err := New(
		"bullets",
		CodeExhausted,
		WithOp("pop"),
		WithMessage("  no free instances  "),
		WithCause(errors.New("pool: exhausted")),
	)

	out := err.Error()
	if !strings.Contains(out, "pool=bullets") {
		t.Fatalf("expected pool marker in error string: %s", out)
	}
	if !strings.Contains(out, "op=pop") {
		t.Fatalf("expected op marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=exhausted") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "message=\"no free instances\"") {
		t.Fatalf("expected trimmed message in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"pool: exhausted\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := fmt.Errorf("outer: %w", New("p", CodeDestroyed, WithCause(sentinel)))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to reach the cause through the envelope")
	}
	if got := CodeOf(err); got != CodeDestroyed {
		t.Fatalf("expected code %q, got %q", CodeDestroyed, got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code for plain error, got %q", got)
	}
}

func TestEmptyPoolDefaultsToUnknown(t *testing.T) {
	out := New("  ", "").Error()
	if out != "pool=unknown code=unknown" {
		t.Fatalf("unexpected rendering %q", out)
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
