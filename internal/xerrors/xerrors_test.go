package xerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrap_NilPassthrough(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should be nil")
	}
	if WithKind(nil, KindInput) != nil {
		t.Fatal("WithKind(nil) should be nil")
	}
}

func TestWrap_MessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "extract bundle")
	if err.Error() != "extract bundle: boom" {
		t.Fatalf("unexpected message: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error should unwrap to base")
	}
}

func TestNew_CapturesStack(t *testing.T) {
	err := New("failure")
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) {
		t.Fatal("New should capture a stack")
	}
	if len(hs.StackPCs()) == 0 {
		t.Fatal("captured stack is empty")
	}
}

func TestEnsureTrace_DoesNotDoubleStack(t *testing.T) {
	err := New("already stacked")
	if EnsureTrace(err) != err {
		t.Fatal("EnsureTrace should return already-stacked error unchanged")
	}
	plain := errors.New("plain")
	if EnsureTrace(plain) == plain {
		t.Fatal("EnsureTrace should add a stack to a plain error")
	}
}

func TestKindOf_Untagged(t *testing.T) {
	if k := KindOf(errors.New("plain")); k != KindUnknown {
		t.Fatalf("KindOf(plain) = %v, want unknown", k)
	}
	if KindOf(nil) != KindUnknown {
		t.Fatal("KindOf(nil) should be unknown")
	}
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	err := E(KindConflict, "already imported")
	err = Wrap(err, "persist item")
	err = fmt.Errorf("submit: %w", err)

	if !IsKind(err, KindConflict) {
		t.Fatalf("kind lost through wrapping: %v", KindOf(err))
	}
}

func TestKindOf_InnermostWins(t *testing.T) {
	err := E(KindStorage, "insert failed")
	err = WithKind(err, KindInput)
	if got := KindOf(err); got != KindStorage {
		t.Fatalf("KindOf = %v, want innermost KindStorage", got)
	}
}

func TestKind_Strings(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:    "unknown",
		KindInput:      "input",
		KindValidation: "validation",
		KindConflict:   "conflict",
		KindNotFound:   "not_found",
		KindUpstream:   "upstream",
		KindStorage:    "storage",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Fatalf("%d.String() = %q, want %q", k, k.String(), want)
		}
	}
}

func TestEf_FormatsAndTags(t *testing.T) {
	err := Ef(KindUpstream, "fetch %s: status %d", "https://example.com", 502)
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !IsKind(err, KindUpstream) {
		t.Fatal("Ef should tag the kind")
	}
}
