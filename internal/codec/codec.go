// Package codec implements the per-channel-kind data block encodings
// (spec.md §4.8): dense event arrays, fixed marker records, extended
// marker records with text/real/ADC payloads, and run-based waveform
// blocks.
package codec

import "github.com/cznic/s64/internal/serr"

// NoTime is the sentinel meaning "no time" (spec.md §2).
const NoTime int64 = -1

// TMax is the largest usable tick value, leaving headroom for arithmetic
// (spec.md §2: T_MAX = INT64_MAX - INT64_MAX/8).
const TMax int64 = (1<<63 - 1) - (1<<63-1)/8

// ErrCallAgain is returned by codec read/write loops that ran out of their
// budget but have more work pending (spec.md §5's cooperative
// cancellation sentinel).
var ErrCallAgain = serr.New(serr.CallAgain, "codec", nil)

// Range describes a half-open time window and a cooperative cancellation
// flag (spec.md §4.8, §5). From is inclusive, Upto is exclusive. Max caps
// the number of items a call may deliver or skip.
type Range struct {
	From int64
	Upto int64
	Max  int

	// Yield, when non-nil, is checked by codec inner loops; a ready
	// receive means "stop now and return partial progress with
	// ErrCallAgain" (spec.md §5).
	Yield <-chan struct{}
}

func (r *Range) yielded() bool {
	if r.Yield == nil {
		return false
	}
	select {
	case <-r.Yield:
		return true
	default:
		return false
	}
}

// Filter is the collaborator predicate over a marker's four codes
// (spec.md §4.8, §6): four 256-bit masks, one per code, combined by
// mode, plus an optional column index for multi-trace AdcMark reads.
type Filter interface {
	// Test reports whether codes passes the filter.
	Test(codes [4]byte) bool
	// Column returns the trace column to read, or -1 for "all columns"
	// / not applicable.
	Column() int
}

// MaskFilter is the reference Filter implementation: four 256-bit (32
// byte) bitmaps, one per code; Mode selects And/Or semantics.
type MaskFilter struct {
	Masks  [4][32]byte // bit i of Masks[k] set => code value i allowed for codes[k]
	Mode   FilterMode
	Col    int
}

type FilterMode uint8

const (
	// ModeAnd requires all four codes to be within their masks.
	ModeAnd FilterMode = iota
	// ModeOr matches when codes[0] is non-zero and within Masks[0]
	// (spec.md §4.8: "Or (layer 0 only; non-zero codes match if set)").
	ModeOr
)

func maskHas(mask *[32]byte, v byte) bool {
	return mask[v>>3]&(1<<(v&7)) != 0
}

// Test implements Filter.
func (f *MaskFilter) Test(codes [4]byte) bool {
	switch f.Mode {
	case ModeOr:
		return codes[0] != 0 && maskHas(&f.Masks[0], codes[0])
	default:
		for i := 0; i < 4; i++ {
			if !maskHas(&f.Masks[i], codes[i]) {
				return false
			}
		}
		return true
	}
}

// Column implements Filter.
func (f *MaskFilter) Column() int { return f.Col }

// Set marks code value v as allowed for code-channel k.
func (f *MaskFilter) Set(k int, v byte) { f.Masks[k][v>>3] |= 1 << (v & 7) }
