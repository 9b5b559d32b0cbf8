package s64

// CreatorString identifies the application that wrote a file; eight
// opaque bytes, meaningless to the engine itself (spec.md §6).
type CreatorString [8]byte
