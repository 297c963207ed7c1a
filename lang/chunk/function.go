package chunk

import "fmt"

// Function is a compile-time artifact: the bytecode, arity, and captured-
// upvalue count of a single `fun` declaration (or, for the nameless
// top-level script, arity 0 and Name "").
type Function struct {
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         string
}

func (f *Function) String() string {
	if f.Name == "" {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}
func (*Function) Type() string { return "function" }

// Closure is the runtime pairing of a Function with the Upvalues it
// captured at creation time. Every callable value the VM actually invokes
// (other than natives) is a Closure, including the wrapped top-level script.
type Closure struct {
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Fn.String() }
func (*Closure) Type() string     { return "closure" }

// NativeFn is the signature of a host-provided function: it receives its
// positional arguments and returns a Value or an error describing a runtime
// failure.
type NativeFn func(args []Value) (Value, error)

// Native wraps a host function so it can be called like a Lox closure.
type Native struct {
	Name string
	Fn   NativeFn
}

func (n *Native) String() string { return "<native fn>" }
func (*Native) Type() string     { return "native function" }
