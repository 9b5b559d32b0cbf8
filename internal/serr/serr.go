// Package serr defines the engine-wide error code enum (spec.md §6) and the
// wrapper error type every package in this module returns. It exists below
// the other internal packages (and below the public s64 package, which
// re-exports Code and Error under its own names) purely to break the import
// cycle that would otherwise form between the leaf packages and the error
// definitions they all need.
package serr

import "fmt"

// Code is a negative-integer error code enum, one of the two representations
// spec.md §6 requires (the other is Error, a Go error implementing the sum
// type via a switch on Code).
type Code int

const (
	Ok Code = -iota
	NoFile
	NoAccess
	NoMemory
	BadRead
	BadWrite
	NoChannel
	ChannelUsed
	ChannelType
	PastEof
	PastSof
	WrongFile
	NoExtra
	CorruptFile
	ReadOnly
	BadParam
	OverWrite
	MoreData
	NoBlock
	CallAgain
)

var names = [...]string{
	"Ok", "NoFile", "NoAccess", "NoMemory", "BadRead", "BadWrite",
	"NoChannel", "ChannelUsed", "ChannelType", "PastEof", "PastSof",
	"WrongFile", "NoExtra", "CorruptFile", "ReadOnly", "BadParam",
	"OverWrite", "MoreData", "NoBlock", "CallAgain",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	i := -int(c)
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return names[i]
}

// Error wraps a Code with the parameter or context that produced it, in the
// same shape as the teacher's *ErrINVAL{Src string, Arg interface{}}.
type Error struct {
	Code Code
	Src  string
	Arg  interface{}
}

func (e *Error) Error() string {
	if e.Arg != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Src, e.Arg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Src)
}

// New builds an *Error for code, attributing it to src with optional detail.
func New(code Code, src string, arg interface{}) error {
	return &Error{Code: code, Src: src, Arg: arg}
}

// AsCode extracts the Code carried by err, if any, and true; otherwise
// (false, Ok).
func AsCode(err error) (Code, bool) {
	if err == nil {
		return Ok, true
	}
	if e, ok := err.(*Error); ok {
		return e.Code, true
	}
	return Ok, false
}
