// Package maincmd implements the loxvm command-line entry point: a REPL
// when invoked with no path, or a single-file runner when given one,
// exactly as spec.md §7 specifies. It is deliberately thin, the same way
// the teacher's own maincmd package delegates nearly everything to the
// language packages and only handles argument shape, stdio wiring, and
// exit-code selection here.
package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"github.com/loxscript/loxvm/lang/machine"
)

const binName = "loxvm"

var usage = fmt.Sprintf("usage: %s [path]\n", binName)

// ExitCode mirrors the BSD sysexits.h values spec.md §7 calls for:
// 0 on success, 64 for a usage error, 65 for a compile-time error, 70 for an
// uncaught runtime error, 74 if the source file itself could not be read.
// mainer.ExitCode's own Success/Failure/InvalidArgs are too coarse for
// this (spec.md distinguishes 4 failure shapes, not 1), so this is a
// parallel, purpose-built type rather than a reuse of the teacher's.
type ExitCode int

const (
	ExitSuccess    ExitCode = 0
	ExitUsageError ExitCode = 64
	ExitDataError  ExitCode = 65
	ExitSoftware   ExitCode = 70
	ExitIOError    ExitCode = 74
)

// Cmd is the loxvm command. It carries no flags: spec.md's CLI surface is
// a single optional positional path argument, so mainer.Parser's
// struct-tag-driven flag binding has nothing to do here.
type Cmd struct {
	BuildVersion string
	BuildDate    string
}

// Main dispatches to the REPL or the file runner based on args[1:], the
// same split os.Args[0] vs the rest that the teacher's own cmd/nenuphar
// main.go performs before handing off.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) ExitCode {
	paths := args[1:]
	switch len(paths) {
	case 0:
		return c.RunREPL(context.Background(), stdio)
	case 1:
		return c.RunFile(stdio, paths[0])
	default:
		fmt.Fprint(stdio.Stderr, usage)
		return ExitUsageError
	}
}

// RunFile compiles and runs the source at path to completion.
func (c *Cmd) RunFile(stdio mainer.Stdio, path string) ExitCode {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
		return ExitIOError
	}

	vm := machine.New(stdio.Stdin, stdio.Stdout, stdio.Stderr)
	switch vm.Interpret(string(src)) {
	case machine.InterpretCompileError:
		return ExitDataError
	case machine.InterpretRuntimeError:
		return ExitSoftware
	default:
		return ExitSuccess
	}
}

// RunREPL reads one line at a time from stdio.Stdin, printing "> " before
// each, and interprets it against a single persistent VM so that variables
// and functions defined on one line are visible on the next. It exits 0 on
// EOF (Ctrl-D) and checks ctx between lines so a Ctrl-C delivered while a
// line is being typed is honoured as soon as the line completes; it cannot
// interrupt a read already blocked waiting for input.
//
// Lines are read via vm.ReadLine rather than a bufio.Scanner of our own:
// read_number() reads from the same Stdin through the VM's own buffered
// reader, and two independent buffers racing over one stream would each
// read bytes the other was meant to see.
func (c *Cmd) RunREPL(ctx context.Context, stdio mainer.Stdio) ExitCode {
	ctx = mainer.CancelOnSignal(ctx, os.Interrupt)

	vm := machine.New(stdio.Stdin, stdio.Stdout, stdio.Stderr)

	for {
		fmt.Fprint(stdio.Stdout, "> ")

		if ctx.Err() != nil {
			return ExitSuccess
		}

		line, err := vm.ReadLine()
		switch {
		case err == io.EOF:
			if line != "" {
				vm.Interpret(line)
			}
			return ExitSuccess
		case err != nil:
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", binName, err)
			return ExitIOError
		}

		vm.Interpret(line)
	}
}
