package cspec

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/beevik/etree"
)

// Decorator applies the document-markup side effects of command execution
// (§4.5/§6): CSS-class status marking for assertions and run results, and
// the exception/stack-trace triple for caught faults. It carries the
// exception counter (per document, see NewDecorator) that the source
// vocabulary's mark_exception uses for matching toggle buttons to stack
// trace panels.
type Decorator struct {
	exceptionIndex int
}

// NewDecorator returns a Decorator with its exception counter reset. Each
// Runner.Run call uses its own Decorator so the counter stays scoped to one
// document (§5, Concurrency & Resource Model).
func NewDecorator() *Decorator {
	return &Decorator{exceptionIndex: 1}
}

// MarkStatus records success or failure on el. For a failure, actual holds
// the evaluated value to render inside an <ins class="actual"> element; the
// element's prior content (text and children) is preserved inside a
// <del class="expected"> wrapper, matching the source vocabulary's
// expected/actual diff markup.
func (d *Decorator) MarkStatus(el *etree.Element, success bool, actual string) {
	if elementText(el) == "" {
		el.SetText(" ")
	}

	class := strings.TrimSpace(el.SelectAttrValue("class", ""))
	if success {
		el.CreateAttr("class", strings.TrimSpace(class+" success"))
		return
	}
	el.CreateAttr("class", strings.TrimSpace(class+" failure"))

	if actual == "" {
		actual = " "
	}
	actualEl := etree.NewElement("ins")
	actualEl.CreateAttr("class", "actual")
	actualEl.SetText(actual)

	expectedEl := etree.NewElement("del")
	expectedEl.CreateAttr("class", "expected")
	expectedEl.SetText(el.Text())
	for _, child := range el.ChildElements() {
		expectedEl.AddChild(child) // AddChild reparents, detaching child from el
	}
	el.SetText("")

	el.AddChild(expectedEl)
	el.AddChild(actualEl)
}

// MarkException inserts the exception-message span, the stack-trace toggle
// button, and the stack-trace panel immediately after target, in that
// order, mirroring mark_exception's three-element insert in the source
// vocabulary. cause is the caught error; Go has no runtime.Stack scoped to
// the panicking goroutine's already-unwound frames the way Python's
// traceback module does, so the panel instead renders stack one line per
// entry: the debug.Stack() a caller captured at the point of the recover,
// or, when stack is empty, a debug.Stack() captured here. cause itself
// appears only in the message span.
func (d *Decorator) MarkException(target *etree.Element, cause error, stack []byte) {
	index := d.exceptionIndex
	d.exceptionIndex++

	msg := etree.NewElement("span")
	msg.CreateAttr("class", "exceptionMessage")
	msg.SetText(cause.Error())

	toggle := etree.NewElement("input")
	toggle.CreateAttr("class", "stackTraceButton")
	toggle.CreateAttr("data-exception-index", fmt.Sprintf("%d", index))
	toggle.CreateAttr("type", "button")
	toggle.CreateAttr("value", "Toggle Stack")

	panel := etree.NewElement("div")
	panel.CreateAttr("class", fmt.Sprintf("stackTrace %d", index))
	heading := etree.NewElement("p")
	heading.SetText("Traceback:")
	panel.AddChild(heading)

	if len(stack) == 0 {
		stack = debug.Stack()
	}
	for _, line := range strings.Split(strings.TrimRight(string(stack), "\n"), "\n") {
		entry := etree.NewElement("div")
		entry.CreateAttr("class", "stackTraceEntry")
		entry.SetText(line)
		panel.AddChild(entry)
	}

	parent := target.Parent()
	if parent == nil {
		return
	}
	insertChildrenAt(parent, target.Index()+1, msg, toggle, panel)
}
