package machine

import (
	"fmt"
	"io"

	"github.com/loxscript/loxvm/lang/chunk"
)

// fmtPrintValue writes v followed by a newline, the runtime behaviour of
// the `print` statement (spec.md §6). String values print without quotes;
// chunk.Value.String already renders every variant the way Lox source
// would (numbers via the shortest round-tripping decimal, etc).
func fmtPrintValue(w io.Writer, v chunk.Value) {
	if s, ok := v.(*chunk.ObjString); ok {
		fmt.Fprintln(w, s.Value)
		return
	}
	fmt.Fprintln(w, v.String())
}
