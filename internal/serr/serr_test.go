package serr

import (
	"errors"
	"testing"
)

func TestCodeString(t *testing.T) {
	if g, e := PastEof.String(), "PastEof"; g != e {
		t.Fatal(g, e)
	}
	if g, e := Ok.String(), "Ok"; g != e {
		t.Fatal(g, e)
	}
}

func TestCodeStringOutOfRange(t *testing.T) {
	c := Code(1) // positive: never produced by New, but String must not panic
	if g := c.String(); g == "" {
		t.Fatal("want non-empty fallback string")
	}
}

func TestNewAndError(t *testing.T) {
	err := New(BadRead, "pkg.Func", 42)
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", err)
	}
	if e.Code != BadRead || e.Src != "pkg.Func" || e.Arg != 42 {
		t.Fatalf("got %+v", e)
	}
	if e.Error() == "" {
		t.Fatal("want non-empty message")
	}
}

func TestNewWithoutArg(t *testing.T) {
	err := New(CorruptFile, "pkg.Func", nil)
	if got := err.Error(); got != "CorruptFile: pkg.Func" {
		t.Fatalf("got %q", got)
	}
}

func TestAsCode(t *testing.T) {
	code, ok := AsCode(New(PastSof, "x", nil))
	if !ok || code != PastSof {
		t.Fatalf("got (%v,%v)", code, ok)
	}

	code, ok = AsCode(nil)
	if !ok || code != Ok {
		t.Fatalf("got (%v,%v), want (Ok,true)", code, ok)
	}

	code, ok = AsCode(errors.New("plain"))
	if ok || code != Ok {
		t.Fatalf("got (%v,%v), want (Ok,false)", code, ok)
	}
}
