package chunk

import "strconv"

// ObjString is an interned, immutable string. Two *ObjString with identical
// content are always the same pointer: interning is performed by the
// machine's intern table (lang/machine), not by this package, so that a
// freshly-scanned or concatenated string can be looked up and deduplicated
// before anyone observes its address. Go's garbage collector reclaims
// ObjStrings once unreferenced; spec.md §3's intrusive "linked list of all
// heap objects, freed in bulk at shutdown" has no counterpart here (see
// DESIGN.md).
type ObjString struct {
	Value string
}

func (s *ObjString) String() string { return s.Value }
func (*ObjString) Type() string     { return "string" }

// NewString wraps a Go string as an ObjString without interning it. Callers
// that need interning semantics go through machine.VM's intern table.
func NewString(s string) *ObjString { return &ObjString{Value: s} }

// QuoteForDebug returns s as a double-quoted, escaped string literal. The
// disassembler does not call it; it prints constants with their String form.
func QuoteForDebug(s string) string { return strconv.Quote(s) }
