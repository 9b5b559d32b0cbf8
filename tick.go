package s64

import "github.com/cznic/s64/internal/codec"

// Tick is a signed 64-bit count of the file's tick period (spec.md §2).
type Tick = int64

// NoTime is the sentinel meaning "no time" (spec.md §2).
const NoTime Tick = codec.NoTime

// TMax is the largest usable tick value, leaving headroom for arithmetic
// (spec.md §2: T_MAX = INT64_MAX - INT64_MAX/8).
const TMax Tick = codec.TMax

// Range describes a half-open query/write window plus a cooperative
// cancellation channel (spec.md §4.8, §5): a ready receive on Yield
// means "stop now and return partial progress", letting the caller loop
// re-enter with the same Range to continue.
type Range struct {
	From Tick
	Upto Tick
	Max  int
	Yield <-chan struct{}
}

func (r Range) toCodec() *codec.Range {
	return &codec.Range{From: r.From, Upto: r.Upto, Max: r.Max, Yield: r.Yield}
}
