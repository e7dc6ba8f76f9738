// Package cspec implements the command engine of a specification-by-example
// test runner: discovering namespaced annotations on an HTML/XML document,
// building a parent/child command tree, executing the commands, and
// re-emitting the document decorated with success/failure/exception markup.
package cspec

import (
	"bytes"
	"fmt"
	"os"

	"github.com/beevik/etree"
)

// Namespace is the well-known command namespace URI. Attributes and elements
// resolving to this URI carry the closed command vocabulary (§6).
const Namespace = "http://www.concordion.org/2007/concordion"

// Document wraps an etree.Document, exposing the namespace-aware query and
// in-place mutation primitives the command engine is built on (component C1).
// All mutation happens on the underlying etree tree; Document itself holds no
// additional state.
type Document struct {
	tree *etree.Document
}

// ParseFile reads a specification document from the given path. The document
// must be well-formed XML (XHTML-style void elements, properly closed tags),
// matching the practice of hand-authored Concordion specs.
func ParseFile(path string) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &Document{tree: tree}, nil
}

// ParseString reads a specification document from a string, primarily useful
// in tests.
func ParseString(s string) (*Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromString(s); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &Document{tree: tree}, nil
}

// Root returns the document's root element.
func (d *Document) Root() *etree.Element {
	return d.tree.Root()
}

// Bytes serializes the document, indenting it for human inspection.
func (d *Document) Bytes() ([]byte, error) {
	d.tree.Indent(2)
	var buf bytes.Buffer
	if _, err := d.tree.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteToFile serializes the document to path.
func (d *Document) WriteToFile(path string) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// FindAnnotatedElements returns, in document order, every element whose own
// namespace or whose attribute namespace resolves to namespace. This is the
// adapter's only required query primitive (§4.1).
func (d *Document) FindAnnotatedElements(namespace string) []*etree.Element {
	var out []*etree.Element
	root := d.Root()
	if root == nil {
		return out
	}
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if d.elementNamespace(el) == namespace {
			out = append(out, el)
		} else if len(d.NamespacedAttrs(el, namespace)) > 0 {
			out = append(out, el)
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(root)
	return out
}

// NamespacedAttrs returns el's own attributes (in parse order) whose prefix
// resolves to namespace.
func (d *Document) NamespacedAttrs(el *etree.Element, namespace string) []etree.Attr {
	var out []etree.Attr
	for _, a := range el.Attr {
		if a.Space == "" || a.Space == "xmlns" {
			continue
		}
		if d.resolvePrefix(el, a.Space) == namespace {
			out = append(out, a)
		}
	}
	return out
}

// LocalName strips the namespace prefix from a fully-qualified attribute,
// yielding the command kind (§4.1, secondary primitive). etree already
// separates the prefix into Attr.Space, so this is a thin, documented
// accessor rather than string surgery.
func LocalName(a etree.Attr) string {
	return a.Key
}

func (d *Document) elementNamespace(el *etree.Element) string {
	if el.Space == "" {
		return ""
	}
	return d.resolvePrefix(el, el.Space)
}

// insertChildrenAt splices toks into parent's children starting at idx,
// preserving every existing child's relative order. etree exposes no direct
// "insert at index" primitive, so this pops the tail off with RemoveChildAt
// and re-adds it with AddChild after the new tokens, which keeps each
// token's parent backreference consistent (unlike splicing the exported
// Child slice by hand).
func insertChildrenAt(parent *etree.Element, idx int, toks ...etree.Token) {
	tailLen := len(parent.Child) - idx
	if tailLen < 0 {
		tailLen = 0
	}
	tail := make([]etree.Token, 0, tailLen)
	for i := 0; i < tailLen; i++ {
		tail = append(tail, parent.Child[idx])
		parent.RemoveChildAt(idx)
	}
	for _, t := range toks {
		parent.AddChild(t)
	}
	for _, t := range tail {
		parent.AddChild(t)
	}
}

// resolvePrefix walks el's ancestor chain (closest first) looking for an
// xmlns:<prefix> declaration, implementing ordinary XML namespace shadowing.
func (d *Document) resolvePrefix(el *etree.Element, prefix string) string {
	for cur := el; cur != nil; cur = cur.Parent() {
		for _, a := range cur.Attr {
			if a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}
