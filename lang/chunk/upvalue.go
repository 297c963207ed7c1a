package chunk

// Upvalue is a captured-variable cell. Per the Go-port design note in
// spec.md §9, it is expressed as a tagged handle — an open upvalue aliases a
// slot of the VM's value stack by index, a closed one owns its value
// directly — rather than as a raw pointer into the stack array. The two
// states are distinguished by closed == nil: since a Lox nil value is the
// concrete Nil{} and never a Go nil interface, a nil closed field
// unambiguously means "still open".
type Upvalue struct {
	StackIndex int
	closed     Value
}

// NewOpenUpvalue returns an Upvalue aliasing stack[stackIndex].
func NewOpenUpvalue(stackIndex int) *Upvalue {
	return &Upvalue{StackIndex: stackIndex}
}

// IsOpen reports whether the upvalue still aliases a live stack slot.
func (u *Upvalue) IsOpen() bool { return u.closed == nil }

// Get returns the upvalue's current value, reading through stack if open.
func (u *Upvalue) Get(stack []Value) Value {
	if u.closed != nil {
		return u.closed
	}
	return stack[u.StackIndex]
}

// Set writes through the upvalue, to stack if open or to its own closed cell
// otherwise.
func (u *Upvalue) Set(stack []Value, v Value) {
	if u.closed != nil {
		u.closed = v
		return
	}
	stack[u.StackIndex] = v
}

// Close hoists the current stack value into the upvalue's own cell, after
// which it no longer aliases the stack. Reads and writes continue to see
// and mutate the same logical cell (spec.md §8 invariant 4).
func (u *Upvalue) Close(stack []Value) {
	u.closed = stack[u.StackIndex]
}

func (*Upvalue) String() string { return "upvalue" }
func (*Upvalue) Type() string   { return "upvalue" }
