// Package machine implements the stack-based bytecode interpreter: the
// call-frame stack, the value stack, the globals and string-intern tables,
// and the dispatch loop itself (spec.md §5).
package machine

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dolthub/swiss"

	"github.com/loxscript/loxvm/lang/chunk"
	"github.com/loxscript/loxvm/lang/compiler"
)

// framesMax bounds call-frame depth (spec.md §5.1); stackMax follows from it
// since every frame can in principle fill the stack with its own locals.
const (
	framesMax  = 64
	uint8Count = 256
	stackMax   = framesMax * uint8Count
)

// maxStdinLineBytes bounds a single line read via ReadLine, spec.md §6's
// REPL limit of "a line up to 1024 bytes including newline". read_number()
// shares the same bound as a consequence of sharing the same reader.
const maxStdinLineBytes = 1024

// InterpretResult reports the outcome of a single VM.Interpret call, mapping
// directly onto the three process exit codes spec.md §7 specifies.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

type frame struct {
	closure *chunk.Closure
	ip      int
	slots   int // index into vm.stack of this frame's slot 0
}

// VM is the explicit, passed-by-reference interpreter state spec.md §9's
// design notes call for in place of the reference implementation's globals:
// one VM per embedding, safe to construct more than one of in a single
// process (e.g. in parallel tests) because nothing here is package-level.
type VM struct {
	frames []frame

	stack    []chunk.Value
	stackTop int

	globals *swiss.Map[string, chunk.Value]
	strings *swiss.Map[string, *chunk.ObjString]

	// openUpvalues is kept sorted by descending StackIndex, exactly like the
	// reference implementation's singly linked list ordered nearest-top-first,
	// so closing every upvalue at or above a stack index is a prefix scan.
	openUpvalues []*chunk.Upvalue

	Stdin       io.Reader
	stdinReader *bufio.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// ReadLine reads one line (including the trailing newline, if any) from
// Stdin through the VM's own buffered reader, the same one read_number()
// uses. Callers that read lines from Stdin themselves (the REPL) must go
// through this rather than wrapping Stdin in a reader of their own, or the
// two buffers race over the same bytes. A line longer than
// maxStdinLineBytes is reported as bufio.ErrBufferFull.
func (vm *VM) ReadLine() (string, error) {
	if vm.stdinReader == nil {
		vm.stdinReader = bufio.NewReaderSize(vm.Stdin, maxStdinLineBytes)
	}
	line, err := vm.stdinReader.ReadSlice('\n')
	return string(line), err
}

// New constructs a VM with its own fresh globals and intern tables and
// registers the native functions spec.md §6 requires.
func New(stdin io.Reader, stdout, stderr io.Writer) *VM {
	vm := &VM{
		stack:   make([]chunk.Value, stackMax),
		globals: swiss.NewMap[string, chunk.Value](32),
		strings: swiss.NewMap[string, *chunk.ObjString](256),
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
	}
	vm.defineNatives()
	return vm
}

// Intern implements compiler.Interner: it is the single chokepoint every
// Lox string value (literal or concatenation result) passes through, which
// is what makes spec.md §8 invariant 3 ("identical content shares one heap
// object") hold without a copying GC pass to enforce it after the fact.
func (vm *VM) Intern(s string) *chunk.ObjString {
	if existing, ok := vm.strings.Get(s); ok {
		return existing
	}
	obj := chunk.NewString(s)
	vm.strings.Put(s, obj)
	return obj
}

// Interpret compiles and runs source to completion, returning OK,
// CompileError, or RuntimeError. The VM's globals, intern table, and Stdout
// survive across calls, so a REPL can Interpret one line at a time and have
// later lines see earlier ones' globals.
func (vm *VM) Interpret(source string) InterpretResult {
	fn, err := compiler.Compile(source, vm, vm.Stderr)
	if err != nil {
		return InterpretCompileError
	}

	closure := &chunk.Closure{Fn: fn}
	vm.push(closure)
	if !vm.call(closure, 0) {
		vm.pop()
		return InterpretRuntimeError
	}
	return vm.run()
}

func (vm *VM) push(v chunk.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() chunk.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) chunk.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frames = vm.frames[:0]
	vm.openUpvalues = nil
}

func (vm *VM) callValue(callee chunk.Value, argCount int) bool {
	switch c := callee.(type) {
	case *chunk.Closure:
		return vm.call(c, argCount)
	case *chunk.Native:
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := c.Fn(args)
		if err != nil {
			vm.runtimeError(err.Error())
			return false
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true
	default:
		vm.runtimeError("Can only call functions and classes.")
		return false
	}
}

func (vm *VM) call(closure *chunk.Closure, argCount int) bool {
	if argCount != closure.Fn.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Fn.Arity, argCount)
		return false
	}
	if len(vm.frames) == framesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}
	vm.frames = append(vm.frames, frame{
		closure: closure,
		slots:   vm.stackTop - argCount - 1,
	})
	return true
}

// captureUpvalue returns the open upvalue aliasing vm.stack[stackIndex],
// reusing one already open over that slot so two closures capturing the
// same local share one cell (spec.md §5.3).
func (vm *VM) captureUpvalue(stackIndex int) *chunk.Upvalue {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].StackIndex > stackIndex {
		i++
	}
	if i < len(vm.openUpvalues) && vm.openUpvalues[i].StackIndex == stackIndex {
		return vm.openUpvalues[i]
	}
	uv := chunk.NewOpenUpvalue(stackIndex)
	vm.openUpvalues = append(vm.openUpvalues, nil)
	copy(vm.openUpvalues[i+1:], vm.openUpvalues[i:])
	vm.openUpvalues[i] = uv
	return uv
}

// closeUpvalues hoists every open upvalue at or above lastIndex into its own
// cell, severing it from the stack slot that is about to go out of scope or
// be popped (spec.md §8 invariant 4).
func (vm *VM) closeUpvalues(lastIndex int) {
	for len(vm.openUpvalues) > 0 && vm.openUpvalues[0].StackIndex >= lastIndex {
		vm.openUpvalues[0].Close(vm.stack)
		vm.openUpvalues = vm.openUpvalues[1:]
	}
}

// runtimeError prints the formatted message followed by a stack trace, one
// frame per line innermost-first, in the exact shape spec.md §6 specifies:
// "[line L] in <name>()" for a function frame, "[line L] in script" for the
// outermost one. It then resets the VM so a REPL can keep going.
func (vm *VM) runtimeError(format string, args ...any) {
	fmt.Fprintf(vm.Stderr, format+"\n", args...)

	for i := len(vm.frames) - 1; i >= 0; i-- {
		fr := vm.frames[i]
		fn := fr.closure.Fn
		line := fn.Chunk.Lines[fr.ip-1]
		if fn.Name == "" {
			fmt.Fprintf(vm.Stderr, "[line %d] in script\n", line)
		} else {
			fmt.Fprintf(vm.Stderr, "[line %d] in %s()\n", line, fn.Name)
		}
	}
	vm.resetStack()
}
