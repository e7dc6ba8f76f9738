package cspec

import "github.com/beevik/etree"

// FinalizeDocument appends the §6 output-document fragments to doc once
// execution has finished: a charset <meta> at the front of <head> (creating
// a <head> if the document has none), the bundled CSS as an inline <style>,
// and the bundled JS as a <script> tag. Unlike the source vocabulary, which
// reads these assets from disk at render time, the bundle here is embedded
// at build time (§4.16) and passed in as plain strings.
func FinalizeDocument(doc *Document, css, js string) {
	root := doc.Root()
	if root == nil {
		return
	}

	head := findOrCreateHead(root)

	meta := etree.NewElement("meta")
	meta.CreateAttr("http-equiv", "content-type")
	meta.CreateAttr("content", "text/html; charset=UTF-8")
	prependChild(head, meta)

	style := etree.NewElement("style")
	style.CreateAttr("type", "text/css")
	style.SetText(css)
	head.AddChild(style)

	script := etree.NewElement("script")
	script.CreateAttr("type", "text/javascript")
	script.SetText(js)
	root.AddChild(script)
}

func findOrCreateHead(root *etree.Element) *etree.Element {
	if heads := root.SelectElements("head"); len(heads) > 0 {
		return heads[0]
	}
	head := etree.NewElement("head")
	prependChild(root, head)
	return head
}

// prependChild inserts child as el's first element, ahead of whatever el
// already contains.
func prependChild(el *etree.Element, child etree.Token) {
	insertChildrenAt(el, 0, child)
}
