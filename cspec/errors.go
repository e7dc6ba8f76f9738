package cspec

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/beevik/etree"
)

// Sentinel errors for the "internal consistency" class (Design Notes, §7
// third kind): these must propagate out of Runner.Run rather than being
// caught and decorated in the document, since they indicate the document or
// its wiring is malformed rather than a failed assertion. ErrNotCallable is
// the exception: Context.Call returns it as an ordinary error, which the
// command's fault barrier decorates into the document.
var (
	ErrUnknownCommand          = errors.New("cspec: unknown command")
	ErrThIndexNotFound         = errors.New("cspec: could not match command with table header")
	ErrSubSpecNotFound         = errors.New("cspec: delegated specification not found")
	ErrDelegationNotConfigured = errors.New("cspec: run command used without a fixture resolver")
	ErrNotCallable             = errors.New("cspec: not callable")
)

// InternalError decorates one of the sentinel errors above with the
// document element it was raised against and a captured stack trace.
// Unwrap and Is let callers still match against the sentinel with
// errors.Is, while Error() renders the element path for operators
// reading CLI output.
type InternalError struct {
	Err   error
	Path  string
	stack []byte
}

func (e *InternalError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func (e *InternalError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// StackTrace returns the stack captured at the point InternalError was
// constructed, formatted for diagnostic output.
func (e *InternalError) StackTrace() string {
	return string(e.stack)
}

// newInternalError wraps err with el's ancestor path and a freshly captured
// stack trace.
func newInternalError(err error, el *etree.Element) *InternalError {
	return &InternalError{
		Err:   err,
		Path:  elementPath(el),
		stack: captureStack(),
	}
}

func captureStack() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}

// elementPath renders a breadcrumb of tag names from the document root down
// to el, e.g. "html > body > table > tr > td", used in InternalError and in
// debug logging (§4.15) to let an operator find the offending node.
func elementPath(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var parts []string
	for cur := el; cur != nil; cur = cur.Parent() {
		parts = append(parts, cur.Tag)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
