package cspec

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/beevik/etree"
)

// Kind is the closed vocabulary of command attributes the engine
// recognizes (§6): run, execute, set, assertEquals, assertTrue,
// assertFalse, verifyRows, echo.
type Kind string

const (
	KindRun          Kind = "run"
	KindExecute      Kind = "execute"
	KindSet          Kind = "set"
	KindAssertEquals Kind = "assertEquals"
	KindAssertTrue   Kind = "assertTrue"
	KindAssertFalse  Kind = "assertFalse"
	KindVerifyRows   Kind = "verifyRows"
	KindEcho         Kind = "echo"
)

// kindPriority orders commands that share an element (§4.3's multi-attribute
// rule): set runs before execute, which runs before everything else, so
// that e.g. a single <span> carrying both concordion:set and
// concordion:echo, inside another command's element, sees the freshly set
// value. An element with no commanding ancestor keeps only its last command
// after this ordering (see TreeBuilder.Build), so there the set is dropped.
func kindPriority(k Kind) int {
	switch k {
	case KindSet:
		return 0
	case KindExecute:
		return 1
	default:
		return 2
	}
}

// Command is one node of the command tree (§3/C4): an element, the command
// kind bound to it, its raw expression string, and the children attached to
// it by the tree builder (C5). Index holds the table-header column index
// for a command declared on a <th>, used to rebind execute/verifyRows
// children to the matching <td> per row.
type Command struct {
	Kind    Kind
	Element *etree.Element
	Expr    string
	Index   int
	Href    string

	Children []*Command

	ctx       Context
	eval      Evaluator
	decorator *Decorator
	delegator Delegator
}

// NewCommand constructs a Command wired to the collaborators it needs to
// execute (§4, C4): a Context to read/write fixture attributes, an
// Evaluator for its expression, a Decorator to mark the element up, and
// (only meaningful for KindRun) a Delegator to hand off to.
func NewCommand(kind Kind, el *etree.Element, expr string, ctx Context, eval Evaluator, dec *Decorator, delegator Delegator) *Command {
	return &Command{
		Kind:      kind,
		Element:   el,
		Expr:      expr,
		ctx:       ctx,
		eval:      eval,
		decorator: dec,
		delegator: delegator,
	}
}

// Run executes the command, applying the fault barrier of §4.2/§7: any error that is not an
// *InternalError is caught here, decorated onto the element as an exception
// marker, and swallowed so sibling commands still run. A Go panic raised
// during execution is recovered and decorated the same way, as the source
// vocabulary's broad "except Exception" treats any raised fault: decorated
// in place, never silently dropped. Only an *InternalError propagates,
// because it indicates the document or its wiring is malformed rather than
// a failed assertion.
func (c *Command) Run() (err error) {
	c.ctx.Set("TEXT", elementText(c.Element))

	defer func() {
		if r := recover(); r != nil {
			c.decorator.MarkException(c.Element, fmt.Errorf("%v", r), debug.Stack())
			err = nil
		}
	}()

	derr := c.dispatch()
	if derr == nil {
		return nil
	}
	var ie *InternalError
	if errors.As(derr, &ie) {
		return derr
	}
	c.decorator.MarkException(c.Element, derr, nil)
	return nil
}

func (c *Command) dispatch() error {
	switch c.Kind {
	case KindRun:
		return c.runRun()
	case KindExecute:
		return c.runExecute()
	case KindSet:
		return c.runSet()
	case KindAssertEquals:
		return c.runAssertEquals()
	case KindAssertTrue:
		return c.runAssertTrue()
	case KindAssertFalse:
		return c.runAssertFalse()
	case KindVerifyRows:
		return c.runVerifyRows()
	case KindEcho:
		return c.runEcho()
	default:
		return newInternalError(fmt.Errorf("%w: %q", ErrUnknownCommand, c.Kind), c.Element)
	}
}

func (c *Command) runRun() error {
	if c.delegator == nil {
		return newInternalError(ErrDelegationNotConfigured, c.Element)
	}
	href := strings.TrimSuffix(c.Href, ".html")
	success, err := c.delegator.Delegate(href)
	if err != nil {
		var ie *InternalError
		if errors.As(err, &ie) {
			return err
		}
		return newInternalError(fmt.Errorf("%w: %w", ErrSubSpecNotFound, err), c.Element)
	}
	c.decorator.MarkStatus(c.Element, success, "")
	return nil
}

func (c *Command) runExecute() error {
	if isTable(c.Element) {
		for _, row := range bodyRows(c.Element) {
			tds := row.SelectElements("td")
			for _, child := range c.Children {
				if child.Index < len(tds) {
					child.Element = tds[child.Index]
				}
			}
			if err := c.runChildrenPhased(); err != nil {
				return err
			}
		}
		return nil
	}
	return c.runChildrenPhased()
}

// runChildrenPhased implements the two-phase execute ordering (§4.4.3): all
// set children run first, then the execute's own expression evaluates,
// then every remaining child runs.
func (c *Command) runChildrenPhased() error {
	for _, child := range c.Children {
		if child.Kind == KindSet {
			if err := child.Run(); err != nil {
				return err
			}
		}
	}
	if _, err := c.eval.Evaluate(c.ctx, c.Expr); err != nil {
		return err
	}
	for _, child := range c.Children {
		if child.Kind != KindSet {
			if err := child.Run(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Command) runSet() error {
	parsed, err := c.eval.Parse(c.Expr)
	if err != nil {
		return err
	}
	if parsed.FunctionName != "" {
		_, err := c.eval.Evaluate(c.ctx, c.Expr)
		return err
	}
	c.ctx.Set(parsed.VariableName, elementText(c.Element))
	return nil
}

func (c *Command) runAssertEquals() error {
	result, err := c.eval.Evaluate(c.ctx, c.Expr)
	if err != nil {
		return err
	}
	actual := "(None)"
	if result != nil {
		actual = normalize(fmt.Sprint(result))
	}
	expected := elementText(c.Element)
	if actual == expected {
		c.decorator.MarkStatus(c.Element, true, "")
	} else {
		c.decorator.MarkStatus(c.Element, false, actual)
	}
	return nil
}

func (c *Command) runAssertTrue() error {
	result, err := c.eval.Evaluate(c.ctx, c.Expr)
	if err != nil {
		return err
	}
	c.decorator.MarkStatus(c.Element, isTruthy(result), "== false")
	return nil
}

func (c *Command) runAssertFalse() error {
	result, err := c.eval.Evaluate(c.ctx, c.Expr)
	if err != nil {
		return err
	}
	c.decorator.MarkStatus(c.Element, !isTruthy(result), "== true")
	return nil
}

func (c *Command) runVerifyRows() error {
	parsed, err := c.eval.Parse(c.Expr)
	if err != nil {
		return err
	}
	result, err := c.eval.Evaluate(c.ctx, c.Expr)
	if err != nil {
		return err
	}
	items := toSlice(result)
	rows := bodyRows(c.Element)
	n := len(items)
	if len(rows) < n {
		n = len(rows)
	}
	for i := 0; i < n; i++ {
		c.ctx.Set(parsed.VariableName, items[i])
		tds := rows[i].SelectElements("td")
		for _, child := range c.Children {
			if child.Index < len(tds) {
				child.Element = tds[child.Index]
			}
			if err := child.Run(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Command) runEcho() error {
	result, err := c.eval.Evaluate(c.ctx, c.Expr)
	if err != nil {
		return err
	}
	if result != nil {
		c.Element.SetText(fmt.Sprint(result))
		return nil
	}
	em := etree.NewElement("em")
	em.SetText("None")
	c.Element.AddChild(em)
	return nil
}

// isTable reports whether el is the <table> element of a table execute/
// verifyRows command (§4.4.3's table form), matched case-insensitively like
// the source vocabulary's element.tag.lower() check.
func isTable(el *etree.Element) bool {
	return strings.EqualFold(el.Tag, "table")
}

// bodyRows returns el's direct <tr> children that themselves contain at
// least one <td>, excluding a header-only row, matching
// get_table_body_rows's xpath filter in the source vocabulary.
func bodyRows(table *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, tr := range table.SelectElements("tr") {
		if len(tr.SelectElements("td")) > 0 {
			out = append(out, tr)
		}
	}
	return out
}

// thIndex returns the position of th among its parent's <th> siblings,
// used by the tree builder to set Command.Index (§4.3).
func thIndex(th *etree.Element) (int, error) {
	parent := th.Parent()
	if parent == nil {
		return 0, newInternalError(ErrThIndexNotFound, th)
	}
	for i, sib := range parent.SelectElements("th") {
		if sib == th {
			return i, nil
		}
	}
	return 0, newInternalError(ErrThIndexNotFound, th)
}
