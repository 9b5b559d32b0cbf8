package s64

import "github.com/cznic/s64/internal/serr"

// Code is the negative-integer error enum surfaced by every operation in
// this package (spec.md §6), re-exported from the internal serr package
// so internal packages never need to import s64 (which would cycle).
type Code = serr.Code

// Error wraps a Code with the operation that produced it and an optional
// argument, mirroring lldb's *ErrINVAL/*ErrPERM wrapper-struct idiom.
type Error = serr.Error

const (
	Ok          = serr.Ok
	NoFile      = serr.NoFile
	NoAccess    = serr.NoAccess
	NoMemory    = serr.NoMemory
	BadRead     = serr.BadRead
	BadWrite    = serr.BadWrite
	NoChannel   = serr.NoChannel
	ChannelUsed = serr.ChannelUsed
	ChannelType = serr.ChannelType
	PastEof     = serr.PastEof
	PastSof     = serr.PastSof
	WrongFile   = serr.WrongFile
	NoExtra     = serr.NoExtra
	CorruptFile = serr.CorruptFile
	ReadOnly    = serr.ReadOnly
	BadParam    = serr.BadParam
	OverWrite   = serr.OverWrite
	MoreData    = serr.MoreData
	NoBlock     = serr.NoBlock
	CallAgain   = serr.CallAgain
)

// AsCode extracts the Code from err, if err is (or wraps) one of this
// package's errors. ok is false for nil or foreign errors.
func AsCode(err error) (code Code, ok bool) { return serr.AsCode(err) }
