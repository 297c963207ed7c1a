package machine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loxscript/loxvm/lang/chunk"
)

// defineNatives installs spec.md §6's native functions directly into the
// globals table, the same way the reference implementation's initVM does:
// natives are ordinary global bindings whose value happens to be a host
// closure rather than one compiled from source.
func (vm *VM) defineNatives() {
	vm.defineNative("clock", 0, vm.nativeClock)
	vm.defineNative("read_number", -1, vm.nativeReadNumber)
}

func (vm *VM) defineNative(name string, arity int, fn func(args []chunk.Value) (chunk.Value, error)) {
	vm.globals.Put(name, &chunk.Native{Name: name, Fn: wrapArity(name, arity, fn)})
}

// wrapArity enforces a fixed argument count before delegating, unless arity
// is negative (variadic, used by read_number's optional prompt).
func wrapArity(name string, arity int, fn chunk.NativeFn) chunk.NativeFn {
	if arity < 0 {
		return fn
	}
	return func(args []chunk.Value) (chunk.Value, error) {
		if len(args) != arity {
			return nil, fmt.Errorf("%s() expects %d argument(s), got %d.", name, arity, len(args))
		}
		return fn(args)
	}
}

// nativeClock returns the number of seconds since the Unix epoch as a
// float, spec.md §6's clock().
func (vm *VM) nativeClock(args []chunk.Value) (chunk.Value, error) {
	return chunk.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// nativeReadNumber implements read_number([prompt]): it optionally writes
// prompt to Stdout, then reads one line from Stdin and parses it as a
// number. Bad argc, a non-string argument, or a parse failure all return 0
// rather than raising a runtime error, per spec.md §4.
func (vm *VM) nativeReadNumber(args []chunk.Value) (chunk.Value, error) {
	if len(args) > 1 {
		return chunk.Number(0), nil
	}
	if len(args) == 1 {
		s, ok := args[0].(*chunk.ObjString)
		if !ok {
			return chunk.Number(0), nil
		}
		fmt.Fprint(vm.Stdout, s.Value)
	}

	line, err := vm.ReadLine()
	if err != nil && line == "" {
		return nil, fmt.Errorf("read_number() could not read a line: %v", err)
	}
	line = strings.TrimSpace(line)

	n, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return chunk.Number(0), nil
	}
	return chunk.Number(n), nil
}
