package machine

import (
	"github.com/loxscript/loxvm/lang/chunk"
)

// run is the dispatch loop: it fetches, decodes, and executes instructions
// from the topmost call frame until an OP_RETURN unwinds the last frame or
// a runtime error aborts execution. Frame state (ip, slots) is re-read from
// vm.frames on every iteration that might have pushed or popped a frame,
// mirroring the reference implementation's CallFrame* cache invalidated
// around CALL/RETURN.
func (vm *VM) run() InterpretResult {
	fr := &vm.frames[len(vm.frames)-1]

	readByte := func() byte {
		b := fr.closure.Fn.Chunk.Code[fr.ip]
		fr.ip++
		return b
	}
	readU16 := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	readU24 := func() int {
		hi := readByte()
		mid := readByte()
		lo := readByte()
		return int(hi)<<16 | int(mid)<<8 | int(lo)
	}
	readConstant := func(long bool) chunk.Value {
		var idx int
		if long {
			idx = readU24()
		} else {
			idx = int(readByte())
		}
		return fr.closure.Fn.Chunk.Constants[idx]
	}
	readString := func(long bool) string {
		return readConstant(long).(*chunk.ObjString).Value
	}

	for {
		op := chunk.Opcode(readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(readConstant(false))
		case chunk.OpConstantLong:
			vm.push(readConstant(true))

		case chunk.OpNil:
			vm.push(chunk.NilValue)
		case chunk.OpTrue:
			vm.push(chunk.Bool(true))
		case chunk.OpFalse:
			vm.push(chunk.Bool(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[fr.slots+slot])
		case chunk.OpSetLocal:
			slot := int(readByte())
			vm.stack[fr.slots+slot] = vm.peek(0)

		case chunk.OpGetGlobal, chunk.OpGetGlobalLong:
			name := readString(op == chunk.OpGetGlobalLong)
			v, ok := vm.globals.Get(name)
			if !ok {
				vm.runtimeError("Undefined variable '%s'.", name)
				return InterpretRuntimeError
			}
			vm.push(v)
		case chunk.OpDefineGlobal, chunk.OpDefineGlobalLong:
			name := readString(op == chunk.OpDefineGlobalLong)
			vm.globals.Put(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal, chunk.OpSetGlobalLong:
			name := readString(op == chunk.OpSetGlobalLong)
			if _, ok := vm.globals.Get(name); !ok {
				vm.runtimeError("Undefined variable '%s'.", name)
				return InterpretRuntimeError
			}
			vm.globals.Put(name, vm.peek(0))

		case chunk.OpGetUpvalue:
			idx := readByte()
			vm.push(fr.closure.Upvalues[idx].Get(vm.stack))
		case chunk.OpSetUpvalue:
			idx := readByte()
			fr.closure.Upvalues[idx].Set(vm.stack, vm.peek(0))
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(chunk.Bool(chunk.ValuesEqual(a, b)))
		case chunk.OpGreater:
			if !vm.numericBinary(func(a, b float64) chunk.Value { return chunk.Bool(a > b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpLess:
			if !vm.numericBinary(func(a, b float64) chunk.Value { return chunk.Bool(a < b) }) {
				return InterpretRuntimeError
			}

		case chunk.OpAdd:
			if !vm.add() {
				return InterpretRuntimeError
			}
		case chunk.OpSubtract:
			if !vm.numericBinary(func(a, b float64) chunk.Value { return chunk.Number(a - b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpMultiply:
			if !vm.numericBinary(func(a, b float64) chunk.Value { return chunk.Number(a * b) }) {
				return InterpretRuntimeError
			}
		case chunk.OpDivide:
			if !vm.numericBinary(func(a, b float64) chunk.Value { return chunk.Number(a / b) }) {
				return InterpretRuntimeError
			}

		case chunk.OpNot:
			vm.push(chunk.Bool(chunk.IsFalsey(vm.pop())))
		case chunk.OpNegate:
			n, ok := vm.peek(0).(chunk.Number)
			if !ok {
				vm.runtimeError("Operand must be a number.")
				return InterpretRuntimeError
			}
			vm.pop()
			vm.push(-n)

		case chunk.OpPrint:
			fmtPrintValue(vm.Stdout, vm.pop())

		case chunk.OpJump:
			offset := readU16()
			fr.ip += offset
		case chunk.OpJumpIfFalse:
			offset := readU16()
			if chunk.IsFalsey(vm.peek(0)) {
				fr.ip += offset
			}
		case chunk.OpLoop:
			offset := readU16()
			fr.ip -= offset

		case chunk.OpCall:
			argCount := int(readByte())
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError
			}
			fr = &vm.frames[len(vm.frames)-1]

		case chunk.OpClosure:
			fnIdx := int(readByte())
			fn := fr.closure.Fn.Chunk.Constants[fnIdx].(*chunk.Function)
			closure := &chunk.Closure{Fn: fn, Upvalues: make([]*chunk.Upvalue, fn.UpvalueCount)}
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte()
				index := int(readByte())
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.slots + index)
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			vm.push(closure)

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(fr.slots)
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				vm.pop() // the script closure itself
				return InterpretOK
			}
			vm.stackTop = fr.slots
			vm.push(result)
			fr = &vm.frames[len(vm.frames)-1]
		}
	}
}

// numericBinary pops two operands, requiring both Number, applies fn, and
// pushes the result. It reports a runtime error and returns false on a type
// mismatch, matching spec.md §6's "Operands must be numbers." diagnostic.
func (vm *VM) numericBinary(fn func(a, b float64) chunk.Value) bool {
	bv, bOK := vm.peek(0).(chunk.Number)
	av, aOK := vm.peek(1).(chunk.Number)
	if !aOK || !bOK {
		vm.runtimeError("Operands must be numbers.")
		return false
	}
	vm.pop()
	vm.pop()
	vm.push(fn(float64(av), float64(bv)))
	return true
}

// add implements OP_ADD's two overloads: number + number, and
// string + string (producing a freshly interned concatenation, spec.md §6).
func (vm *VM) add() bool {
	b := vm.peek(0)
	a := vm.peek(1)

	as, aIsStr := a.(*chunk.ObjString)
	bs, bIsStr := b.(*chunk.ObjString)
	if aIsStr && bIsStr {
		vm.pop()
		vm.pop()
		vm.push(vm.Intern(as.Value + bs.Value))
		return true
	}

	an, aIsNum := a.(chunk.Number)
	bn, bIsNum := b.(chunk.Number)
	if aIsNum && bIsNum {
		vm.pop()
		vm.pop()
		vm.push(an + bn)
		return true
	}

	vm.runtimeError("Operands must be two numbers or two strings.")
	return false
}
