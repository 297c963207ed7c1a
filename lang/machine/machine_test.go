package machine_test

import (
	"strings"
	"testing"

	"github.com/loxscript/loxvm/lang/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (stdout, stderr string, result machine.InterpretResult) {
	t.Helper()
	return runWithStdin(t, "", source)
}

func runWithStdin(t *testing.T, stdin, source string) (stdout, stderr string, result machine.InterpretResult) {
	t.Helper()
	var out, errOut strings.Builder
	vm := machine.New(strings.NewReader(stdin), &out, &errOut)
	result = vm.Interpret(source)
	return out.String(), errOut.String(), result
}

func TestInterpretArithmeticPrecedence(t *testing.T) {
	out, _, result := run(t, `print 1 + 2 * 3;`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "7\n", out)
}

func TestInterpretStringConcatenation(t *testing.T) {
	out, _, result := run(t, `print "foo" + "bar";`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "foobar\n", out)
}

func TestInterpretGlobalVariables(t *testing.T) {
	out, _, result := run(t, `
		var greeting = "hi";
		greeting = greeting + "!";
		print greeting;
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "hi!\n", out)
}

func TestInterpretBlockScopingPopsLocals(t *testing.T) {
	out, _, result := run(t, `
		var x = "outer";
		{
			var x = "inner";
			print x;
		}
		print x;
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "inner\nouter\n", out)
}

func TestInterpretIfElse(t *testing.T) {
	out, _, result := run(t, `
		if (1 < 2) { print "yes"; } else { print "no"; }
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "yes\n", out)
}

func TestInterpretWhileLoop(t *testing.T) {
	out, _, result := run(t, `
		var i = 0;
		while (i < 3) {
			print i;
			i = i + 1;
		}
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestInterpretForLoop(t *testing.T) {
	out, _, result := run(t, `
		for (var i = 0; i < 3; i = i + 1) {
			print i;
		}
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestInterpretClosureCounter(t *testing.T) {
	out, _, result := run(t, `
		fun makeCounter() {
			var count = 0;
			fun counter() {
				count = count + 1;
				return count;
			}
			return counter;
		}
		var c = makeCounter();
		print c();
		print c();
		print c();
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestInterpretTwoClosuresShareUpvalueUntilClosed(t *testing.T) {
	out, _, result := run(t, `
		fun makePair() {
			var shared = 0;
			fun get() { return shared; }
			fun set(v) { shared = v; }
			set(42);
			print get();
		}
		makePair();
	`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "42\n", out)
}

func TestInterpretRuntimeErrorReportsStackTrace(t *testing.T) {
	_, errOut, result := run(t, `print -true;`)
	require.Equal(t, machine.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Operand must be a number.")
	assert.Contains(t, errOut, "[line 1] in script")
}

func TestInterpretRuntimeErrorInFunctionNamesFrame(t *testing.T) {
	_, errOut, result := run(t, "fun f() { return 1 + nil; }\nf();")
	require.Equal(t, machine.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Operands must be two numbers or two strings.")
	assert.Contains(t, errOut, "in f()")
}

func TestInterpretUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print undefinedThing;`)
	require.Equal(t, machine.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Undefined variable 'undefinedThing'.")
}

func TestInterpretNativeClockReturnsNumber(t *testing.T) {
	out, _, result := run(t, `print clock() >= 0;`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "true\n", out)
}

func TestInterpretReadNumberBadArgcReturnsZero(t *testing.T) {
	out, _, result := runWithStdin(t, "", `print read_number("a", "b");`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "0\n", out)
}

func TestInterpretReadNumberNonStringArgumentReturnsZero(t *testing.T) {
	out, _, result := runWithStdin(t, "", `print read_number(123);`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "0\n", out)
}

func TestInterpretReadNumberParseFailureReturnsZero(t *testing.T) {
	out, _, result := runWithStdin(t, "not a number\n", `print read_number();`)
	require.Equal(t, machine.InterpretOK, result)
	assert.Equal(t, "0\n", out)
}

func TestInterpretCallArityMismatchIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `
		fun add(a, b) { return a + b; }
		add(1);
	`)
	require.Equal(t, machine.InterpretRuntimeError, result)
	assert.Contains(t, errOut, "Expected 2 arguments but got 1.")
}

func TestInterpretCompileErrorShortCircuitsExecution(t *testing.T) {
	out, _, result := run(t, `print 1 +;`)
	require.Equal(t, machine.InterpretCompileError, result)
	assert.Empty(t, out)
}
