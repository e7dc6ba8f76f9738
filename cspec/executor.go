package cspec

import "log/slog"

// Executor runs a command tree's roots in document order (C6). It is a
// thin driver over Command.Run: the ordering and fault-barrier rules live
// on Command itself (§4.2), so Executor's only job is to walk the roots and
// surface the first internal consistency error, if any, while logging each
// invocation at debug level (§4.15).
type Executor struct {
	Log *slog.Logger
}

// NewExecutor returns an Executor. A nil logger falls back to
// slog.Default(), matching the teacher's injected-logger pattern.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{Log: log}
}

// Run executes every root command in order. It returns on the first
// *InternalError any command (or its descendants) surfaces; assertion
// failures and caught exceptions never reach here as errors, since
// Command.Run already decorated them into the document.
func (x *Executor) Run(roots []*Command) error {
	for _, root := range roots {
		x.Log.Debug("running command", "kind", root.Kind, "element", elementPath(root.Element))
		if err := root.Run(); err != nil {
			x.Log.Warn("internal error while running command", "kind", root.Kind, "element", elementPath(root.Element), "error", err)
			return err
		}
	}
	return nil
}
