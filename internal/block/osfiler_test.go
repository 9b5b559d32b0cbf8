package block

import (
	"os"
	"testing"
)

func newTestOSFiler(t *testing.T) *OSFiler {
	t.Helper()
	f, err := os.CreateTemp("", "s64-osfiler-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		f.Close()
		os.Remove(f.Name())
	})
	of, err := NewOSFiler(f)
	if err != nil {
		t.Fatal(err)
	}
	return of
}

func TestOSFilerWriteReadRoundTrip(t *testing.T) {
	f := newTestOSFiler(t)
	want := []byte("hello, son64")
	if _, err := f.WriteAt(want, 100); err != nil {
		t.Fatal(err)
	}
	if g, e := f.Size(), int64(100+len(want)); g != e {
		t.Fatalf("got size %d, want %d", g, e)
	}

	got := make([]byte, len(want))
	if _, err := f.ReadAt(got, 100); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOSFilerTruncate(t *testing.T) {
	f := newTestOSFiler(t)
	if err := f.Truncate(4096); err != nil {
		t.Fatal(err)
	}
	if f.Size() != 4096 {
		t.Fatalf("got %d, want 4096", f.Size())
	}
	if err := f.Truncate(-1); err == nil {
		t.Fatal("want error for negative size")
	}
}

func TestOSFilerPunchHoleIsHarmless(t *testing.T) {
	f := newTestOSFiler(t)
	if err := f.Truncate(8192); err != nil {
		t.Fatal(err)
	}
	if err := f.PunchHole(0, 4096); err != nil {
		t.Fatal(err)
	}
	// Punching a hole must not change the reported file size.
	if f.Size() != 8192 {
		t.Fatalf("got %d, want 8192 unchanged", f.Size())
	}
}

func TestOSFilerNameAndSyncAndClose(t *testing.T) {
	f := newTestOSFiler(t)
	if f.Name() == "" {
		t.Fatal("want non-empty name")
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
}
