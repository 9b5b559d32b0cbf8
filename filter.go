package s64

import "github.com/cznic/s64/internal/codec"

// Filter is the marker-filter collaborator (spec.md §6): a predicate
// over a marker's four codes, plus an optional target column for
// multi-trace AdcMark reads. It is out of scope as a full expression
// language (spec.md §1's Out of scope); only the interface the engine
// calls is specified here.
type Filter = codec.Filter

// FilterMode selects how MaskFilter combines its four per-code masks.
type FilterMode = codec.FilterMode

const (
	FilterAnd = codec.ModeAnd
	FilterOr  = codec.ModeOr
)

// MaskFilter is the reference Filter implementation: four 256-bit masks
// (spec.md §6), one per code, combined per Mode.
type MaskFilter = codec.MaskFilter
