package channel

// LevelFlagInitialHigh is the channel-header flag bit recording a level channel's
// initial level (spec.md §4.10).
const LevelFlagInitialHigh uint32 = 1 << 0

// Transition is one rising (true) or falling (false) edge at a time.
type Transition struct {
	Time int64
	Rise bool
}

// EncodeRawTimes folds a raw stream of edge times (duplicates collapsed
// per spec.md §4.10: "an even number at identical time collapses to
// none, an odd number collapses to one") into the alternating transition
// sequence stored as marker records, given the channel's recorded
// initial level. The first encoded transition's code is the inverse of
// the initial level.
func EncodeRawTimes(times []int64, initialHigh bool) []Transition {
	if len(times) == 0 {
		return nil
	}
	// Group by identical time, counting parity.
	var out []Transition
	level := initialHigh
	i := 0
	for i < len(times) {
		j := i
		for j < len(times) && times[j] == times[i] {
			j++
		}
		count := j - i
		if count%2 == 1 {
			level = !level
			out = append(out, Transition{Time: times[i], Rise: level})
		}
		i = j
	}
	return out
}

// DecodeLevel replays a sequence of stored transitions (marker records
// with code[0] in {0,1} denoting low/high) into rise/fall events, for
// callers that want the raw edges back.
func DecodeLevel(transitions []Transition) (rises, falls []int64) {
	for _, tr := range transitions {
		if tr.Rise {
			rises = append(rises, tr.Time)
		} else {
			falls = append(falls, tr.Time)
		}
	}
	return rises, falls
}

// LevelBefore determines the level in effect just before a time (spec.md
// §4.10: "if the buffer is empty, the caller is told the level just
// before from"). prevTransition is the most recent transition before that
// time, found via a backward prev_n_time scan, or nil if none precedes
// it, in which case the channel's recorded initial level (initialHigh)
// applies.
func LevelBefore(prevTransition *Transition, initialHigh bool) bool {
	if prevTransition == nil {
		return initialHigh
	}
	return prevTransition.Rise
}
