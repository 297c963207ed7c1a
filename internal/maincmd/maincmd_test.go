package maincmd_test

import (
	"bytes"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxscript/loxvm/internal/filetest"
	"github.com/loxscript/loxvm/internal/maincmd"
)

var testUpdateE2ETests = flag.Bool("test.update-e2e-tests", false, "If set, replace expected end-to-end test results with actual results.")

// stdinFor supplies read_number.lox's single input line; every other
// scenario ignores stdin entirely.
var stdinFor = map[string]string{
	"read_number.lox": "21\n",
}

// wantExit captures the one exit code spec.md §8's scenarios disagree on;
// everything not listed here is expected to succeed.
var wantExit = map[string]maincmd.ExitCode{
	"runtime_error.lox": maincmd.ExitSoftware,
}

// TestRunFileScenarios exercises spec.md §8's worked examples end to end,
// through the exact CLI entry point a user invokes, comparing stdout and
// stderr against golden files the same way the teacher's scanner/parser
// tests compare against testdata/out.
func TestRunFileScenarios(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lox") {
		t.Run(fi.Name(), func(t *testing.T) {
			var out, errOut bytes.Buffer
			stdio := mainer.Stdio{
				Stdin:  strings.NewReader(stdinFor[fi.Name()]),
				Stdout: &out,
				Stderr: &errOut,
			}

			c := &maincmd.Cmd{}
			got := c.RunFile(stdio, filepath.Join(srcDir, fi.Name()))

			want, ok := wantExit[fi.Name()]
			if !ok {
				want = maincmd.ExitSuccess
			}
			assert.Equal(t, want, got, "exit code")

			filetest.DiffCustom(t, fi, "stdout", ".out", out.String(), resultDir, testUpdateE2ETests)
			filetest.DiffCustom(t, fi, "stderr", ".err", errOut.String(), resultDir, testUpdateE2ETests)
		})
	}
}

func TestMainTooManyArgsIsUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &maincmd.Cmd{}
	got := c.Main([]string{"loxvm", "a.lox", "b.lox"}, stdio)
	assert.Equal(t, maincmd.ExitUsageError, got)
	assert.Contains(t, errOut.String(), "usage:")
}

func TestMainMissingFileIsIOError(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}
	c := &maincmd.Cmd{}
	got := c.Main([]string{"loxvm", "does-not-exist.lox"}, stdio)
	assert.Equal(t, maincmd.ExitIOError, got)
	require.NotEmpty(t, errOut.String())
}

func TestRunREPLExitsCleanlyOnEOF(t *testing.T) {
	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{
		Stdin:  strings.NewReader("print 1 + 1;\n"),
		Stdout: &out,
		Stderr: &errOut,
	}
	c := &maincmd.Cmd{}
	got := c.Main([]string{"loxvm"}, stdio)
	assert.Equal(t, maincmd.ExitSuccess, got)
	assert.Contains(t, out.String(), "2\n")
}
