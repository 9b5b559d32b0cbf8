// Package ring implements the per-channel circular write buffer and its
// save/discard transition list (spec.md §4.9).
package ring

import "sort"

type transition struct {
	Time int64
	Save bool
}

// SaveList tracks the intended save/discard state of a channel from each
// recorded time onward (spec.md §4.9): a sequence of transitions, a
// "first dirty" time marking the earliest buffered-but-uncommitted time,
// and a dead range periodically advanced to prune transitions older than
// any live buffered item.
type SaveList struct {
	transitions []transition
	firstDirty  int64
	deadFrom    int64
	deadTo      int64
}

// NewSaveList returns an empty save list; state defaults to "not saving"
// from time NoTime onward.
func NewSaveList() *SaveList {
	return &SaveList{firstDirty: NoTime, deadFrom: NoTime, deadTo: NoTime}
}

const NoTime int64 = -1

// SetSave adds a transition no earlier than the last committed write
// time, coalescing against the most recent transition (spec.md §4.9).
func (s *SaveList) SetSave(t int64, save bool) {
	if n := len(s.transitions); n > 0 {
		last := &s.transitions[n-1]
		if last.Time <= t {
			if last.Save == save {
				return
			}
			if last.Time == t {
				last.Save = save
				return
			}
		}
	}
	s.transitions = append(s.transitions, transition{Time: t, Save: save})
}

// SaveRange marks [from, to) as saving unconditionally, irrespective of
// background state (spec.md §4.9).
func (s *SaveList) SaveRange(from, to int64) {
	after := s.IsSaving(to)
	kept := s.transitions[:0]
	for _, tr := range s.transitions {
		if tr.Time < from || tr.Time > to {
			kept = append(kept, tr)
		}
	}
	s.transitions = kept
	s.insertAt(from, true)
	s.insertAt(to, after)
}

// stateBefore returns what the saving state would be at t before any
// insertion at t itself.
func (s *SaveList) stateBefore(t int64) bool {
	state := false
	for _, tr := range s.transitions {
		if tr.Time >= t {
			break
		}
		state = tr.Save
	}
	return state
}

func (s *SaveList) insertAt(t int64, save bool) {
	i := sort.Search(len(s.transitions), func(i int) bool { return s.transitions[i].Time >= t })
	if i < len(s.transitions) && s.transitions[i].Time == t {
		s.transitions[i].Save = save
		return
	}
	s.transitions = append(s.transitions, transition{})
	copy(s.transitions[i+1:], s.transitions[i:])
	s.transitions[i] = transition{Time: t, Save: save}
}

// IsSaving reports the save/discard state in effect at time t.
func (s *SaveList) IsSaving(t int64) bool { return s.stateBefore(t + 1) }

// NoSaveList returns the transition times in [from, to), starting with a
// turn-off transition (spec.md §4.9).
func (s *SaveList) NoSaveList(from, to int64) []int64 {
	var out []int64
	started := false
	for _, tr := range s.transitions {
		if tr.Time < from || tr.Time >= to {
			continue
		}
		if !started {
			if tr.Save {
				continue // first reported transition must be a turn-off
			}
			started = true
		}
		out = append(out, tr.Time)
	}
	return out
}

// FirstSaveRange finds the first maximal saving-true subrange within
// [from, upto), defaulting the state before `from` to fromDefault. It
// returns false if no such subrange exists.
func (s *SaveList) FirstSaveRange(from, upto int64, fromDefault bool) (rFrom, rTo int64, ok bool) {
	return s.nextSaveRangeFrom(from, upto, fromDefault, from)
}

// NextSaveRange continues the iteration from the end of a previously
// returned subrange.
func (s *SaveList) NextSaveRange(prevTo, upto int64) (rFrom, rTo int64, ok bool) {
	return s.nextSaveRangeFrom(prevTo, upto, s.stateBefore(prevTo+1), prevTo)
}

func (s *SaveList) nextSaveRangeFrom(cursor, upto int64, stateAtCursor bool, searchFrom int64) (rFrom, rTo int64, ok bool) {
	state := stateAtCursor
	start := cursor
	if !state {
		// scan forward for a turn-on transition
		found := false
		for _, tr := range s.transitions {
			if tr.Time < searchFrom {
				continue
			}
			if tr.Time >= upto {
				break
			}
			if tr.Save {
				start = tr.Time
				found = true
				break
			}
		}
		if !found {
			return 0, 0, false
		}
	}
	end := upto
	for _, tr := range s.transitions {
		if tr.Time <= start {
			continue
		}
		if tr.Time >= upto {
			break
		}
		if !tr.Save {
			end = tr.Time
			break
		}
	}
	if start >= upto {
		return 0, 0, false
	}
	return start, end, true
}

// SetFirstTime marks the committed time boundary (spec.md §4.9 write
// step 5).
func (s *SaveList) SetFirstTime(t int64) { s.firstDirty = t }

// FirstDirty returns the earliest buffered-but-uncommitted time, or
// NoTime if nothing is pending.
func (s *SaveList) FirstDirty() int64 { return s.firstDirty }

// AdvanceDeadTo prunes transitions strictly older than oldestLive, capped
// at t, and records the new dead range (spec.md §4.9's latest_time).
func (s *SaveList) AdvanceDeadTo(oldestLive, t int64) {
	to := oldestLive
	if t < to {
		to = t
	}
	if s.deadFrom == NoTime {
		s.deadFrom = to
	}
	s.deadTo = to

	i := sort.Search(len(s.transitions), func(i int) bool { return s.transitions[i].Time >= to })
	if i > 1 {
		// keep one transition at/before `to` so state-before queries
		// remain correct.
		s.transitions = s.transitions[i-1:]
	}
}
