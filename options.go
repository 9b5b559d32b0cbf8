package s64

// Options are passed to Create/Open to amend default behavior, mirroring
// dbm's flat Options-struct-with-defaults idiom. The compatibility
// promise matches the Go standard library's struct types: new fields may
// be added, which is backward compatible as long as client code uses
// field names in literals.
type Options struct {
	// DBSIZE is the data-block size in bytes; must be a power of two.
	// Zero selects the default, 64 KiB (spec.md §2).
	DBSIZE int

	// DLSIZE is the lookup-block size in bytes, sub-allocated from a
	// DBSIZE region; must be a power of two dividing DBSIZE. Zero
	// selects the default, 4 KiB (spec.md §2).
	DLSIZE int

	// MaxBlocks caps the file's data-block count; zero means
	// unbounded (spec.md §4.1's NoBlock condition).
	MaxBlocks int64

	// CreatorString identifies the writing application; opaque to the
	// engine (spec.md §6).
	CreatorString CreatorString

	// ForceBuffering, when true, enables circular write buffering for
	// every channel by default at creation, instead of leaving new
	// channels unbuffered until SetBuffering is called explicitly.
	// Default: off (an Open Question resolved in DESIGN.md).
	ForceBuffering bool

	// ReadOnly opens an existing file without permitting structural
	// mutation (spec.md §7's ReadOnly constraint class).
	ReadOnly bool

	checked bool
}

const (
	defaultDBSIZE = 64 * 1024
	defaultDLSIZE = 4 * 1024
)

func (o *Options) normalize() {
	if o.checked {
		return
	}
	if o.DBSIZE == 0 {
		o.DBSIZE = defaultDBSIZE
	}
	if o.DLSIZE == 0 {
		o.DLSIZE = defaultDLSIZE
	}
	o.checked = true
}
