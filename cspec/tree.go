package cspec

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
)

// TreeBuilder walks a Document's annotated elements and assembles the
// command tree (§4.3/C5), wiring each Command to the collaborators it needs
// to run.
type TreeBuilder struct {
	Doc       *Document
	Namespace string
	Context   Context
	Evaluator Evaluator
	Decorator *Decorator
	Delegator Delegator
}

// NewTreeBuilder constructs a TreeBuilder over doc. An empty namespace
// falls back to the well-known command namespace; a caller may override it
// to run the engine against a different command namespace URI (§4.14).
func NewTreeBuilder(doc *Document, namespace string, ctx Context, eval Evaluator, dec *Decorator, delegator Delegator) *TreeBuilder {
	if namespace == "" {
		namespace = Namespace
	}
	return &TreeBuilder{
		Doc:       doc,
		Namespace: namespace,
		Context:   ctx,
		Evaluator: eval,
		Decorator: dec,
		Delegator: delegator,
	}
}

// Build returns the document's root commands, in document order. Only root
// commands are tracked by element identity; every descendant command,
// regardless of how deeply it is nested under unrelated markup, attaches as
// a direct child of the nearest ancestor that is itself a root command —
// this flattening is a deliberate, preserved quirk of the source
// vocabulary's __add_to_commands_dict, not an approximation of it: a
// command three levels below another command's element is a *direct*
// child, not a grandchild, of that command in the resulting tree.
func (b *TreeBuilder) Build() ([]*Command, error) {
	elements := b.Doc.FindAnnotatedElements(b.Namespace)

	roots := make([]*Command, 0, len(elements))
	rootIndex := make(map[*etree.Element]int, len(elements))
	byElement := make(map[*etree.Element]*Command, len(elements))

	for _, el := range elements {
		cmds, err := b.commandsFor(el)
		if err != nil {
			return nil, err
		}
		for _, cmd := range cmds {
			if parent := b.findRootAncestor(el, byElement); parent != nil {
				parent.Children = append(parent.Children, cmd)
				continue
			}
			// No ancestor command claims el: el becomes (or remains) a root.
			// A second root-level command on the same element silently
			// replaces the first in place rather than running alongside it
			// — this mirrors a dict-keyed-by-element lookup where only the
			// most recently assigned command for that key survives, a
			// quirk of the source vocabulary deliberately preserved here.
			if idx, ok := rootIndex[el]; ok {
				roots[idx] = cmd
			} else {
				rootIndex[el] = len(roots)
				roots = append(roots, cmd)
			}
			byElement[el] = cmd
		}
	}
	return roots, nil
}

// findRootAncestor walks up from el's parent (el itself is never checked,
// matching __add_to_commands_dict starting from element.getparent()),
// returning the first ancestor already recorded as a root command.
func (b *TreeBuilder) findRootAncestor(el *etree.Element, byElement map[*etree.Element]*Command) *Command {
	for cur := el.Parent(); cur != nil; cur = cur.Parent() {
		if cmd, ok := byElement[cur]; ok {
			return cmd
		}
	}
	return nil
}

// commandsFor builds one Command per namespaced attribute on el, in
// attribute order, then stably reorders them set-before-execute-before-rest
// (§4.3) so a multi-attribute element's own commands run in the documented
// priority regardless of how the attributes were written.
func (b *TreeBuilder) commandsFor(el *etree.Element) ([]*Command, error) {
	attrs := b.Doc.NamespacedAttrs(el, b.Namespace)
	cmds := make([]*Command, 0, len(attrs))

	for _, a := range attrs {
		kind := Kind(LocalName(a))
		switch kind {
		case KindRun, KindExecute, KindSet, KindAssertEquals, KindAssertTrue,
			KindAssertFalse, KindVerifyRows, KindEcho:
		default:
			return nil, newInternalError(ErrUnknownCommand, el)
		}

		cmd := NewCommand(kind, el, a.Value, b.Context, b.Evaluator, b.Decorator, b.Delegator)
		if kind == KindRun {
			cmd.Href = el.SelectAttrValue("href", "")
		}
		if strings.EqualFold(el.Tag, "th") {
			idx, err := thIndex(el)
			if err != nil {
				return nil, err
			}
			cmd.Index = idx
		}
		cmds = append(cmds, cmd)
	}

	sort.SliceStable(cmds, func(i, j int) bool {
		return kindPriority(cmds[i].Kind) < kindPriority(cmds[j].Kind)
	})
	return cmds, nil
}
