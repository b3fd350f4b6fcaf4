package process

import (
	"fmt"
	"os"
	"strings"
)

// PanicExitCode is the process exit status following an unrecovered
// runtime panic.
const PanicExitCode = 101

// Panic prints the exact stack-trace-and-message format the runtime
// specifies, then terminates the whole OS process. Panics are not caught,
// not unwound, and cannot be converted to values; there is no per-process
// containment in the core.
func (p *Process) Panic(msg string) {
	fmt.Fprintln(os.Stderr, formatPanic(p, msg))
	os.Exit(PanicExitCode)
}

// formatPanic renders the trace without touching os.Exit, so it can be
// unit tested.
func formatPanic(p *Process, msg string) string {
	var b strings.Builder

	b.WriteString("Stack trace (the most recent call comes last):\n")
	for _, f := range p.CallStack.Frames() {
		if f.Path == "" || f.Line == 0 {
			fmt.Fprintf(&b, "  ?? in %s\n", f.Name)
		} else {
			fmt.Fprintf(&b, "  %s:%d in %s\n", f.Path, f.Line, f.Name)
		}
	}

	typeName := "?"
	if p.Header.Type != nil {
		typeName = p.Header.Type.Name
	}
	fmt.Fprintf(&b, "Process '%s' (%#x): panicked: %s", typeName, p.Identifier(), msg)

	return b.String()
}
