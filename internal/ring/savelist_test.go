package ring

import "testing"

func TestSaveListDefaultIsNotSaving(t *testing.T) {
	s := NewSaveList()
	if s.IsSaving(0) {
		t.Fatal("want false by default")
	}
}

func TestSaveListSetSaveAndIsSaving(t *testing.T) {
	s := NewSaveList()
	s.SetSave(10, true)
	s.SetSave(20, false)

	if s.IsSaving(5) {
		t.Fatal("before 10: want false")
	}
	if !s.IsSaving(10) || !s.IsSaving(15) {
		t.Fatal("[10,20): want true")
	}
	if s.IsSaving(20) || s.IsSaving(30) {
		t.Fatal("from 20: want false")
	}
}

func TestSaveListSetSaveCoalescesSameState(t *testing.T) {
	s := NewSaveList()
	s.SetSave(10, true)
	s.SetSave(20, true) // no-op: already saving
	if !s.IsSaving(25) {
		t.Fatal("want still saving")
	}
}

func TestSaveListSaveRange(t *testing.T) {
	s := NewSaveList()
	s.SaveRange(10, 20)
	if s.IsSaving(5) {
		t.Fatal("before range: want false")
	}
	if !s.IsSaving(10) || !s.IsSaving(19) {
		t.Fatal("inside range: want true")
	}
	if s.IsSaving(20) {
		t.Fatal("after range: want false")
	}
}

func TestSaveListNoSaveList(t *testing.T) {
	s := NewSaveList()
	s.SetSave(10, true)
	s.SetSave(20, false)
	s.SetSave(30, true)

	got := s.NoSaveList(0, 100)
	if len(got) != 2 || got[0] != 20 || got[1] != 30 {
		t.Fatalf("got %v, want [20 30]", got)
	}
}

func TestSaveListFirstAndNextSaveRange(t *testing.T) {
	s := NewSaveList()
	s.SetSave(10, true)
	s.SetSave(20, false)
	s.SetSave(30, true)
	s.SetSave(40, false)

	f1, t1, ok := s.FirstSaveRange(0, 100, false)
	if !ok || f1 != 10 || t1 != 20 {
		t.Fatalf("got (%d,%d,%v), want (10,20,true)", f1, t1, ok)
	}

	f2, t2, ok := s.NextSaveRange(t1, 100)
	if !ok || f2 != 30 || t2 != 40 {
		t.Fatalf("got (%d,%d,%v), want (30,40,true)", f2, t2, ok)
	}

	_, _, ok = s.NextSaveRange(t2, 100)
	if ok {
		t.Fatal("want no further ranges")
	}
}

func TestSaveListFirstSaveRangeDefaultTrue(t *testing.T) {
	s := NewSaveList()
	s.SetSave(20, false)
	f, tt, ok := s.FirstSaveRange(0, 100, true)
	if !ok || f != 0 || tt != 20 {
		t.Fatalf("got (%d,%d,%v), want (0,20,true)", f, tt, ok)
	}
}

func TestSaveListFirstDirty(t *testing.T) {
	s := NewSaveList()
	if s.FirstDirty() != NoTime {
		t.Fatal("want NoTime initially")
	}
	s.SetFirstTime(42)
	if g, e := s.FirstDirty(), int64(42); g != e {
		t.Fatal(g, e)
	}
}

func TestSaveListAdvanceDeadToPrunesOldTransitions(t *testing.T) {
	s := NewSaveList()
	s.SetSave(10, true)
	s.SetSave(20, false)
	s.SetSave(30, true)

	s.AdvanceDeadTo(25, 25)
	// State queries at/after the prune point must remain correct.
	if !s.IsSaving(30) {
		t.Fatal("want still true after pruning")
	}
	if s.IsSaving(22) {
		t.Fatal("want false just after the retained boundary")
	}
}
