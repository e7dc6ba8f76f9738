package cspec

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// elementText returns el's rendered text content, normalized (§4.4.1): its
// own tag is stripped and all nested text, including the tail text of
// nested elements, is concatenated in document order. This reproduces the
// effect of the source vocabulary's lxml.html reparse-and-descend trick
// (strip the wrapping tag, read text_content()) by walking the element tree
// directly instead.
func elementText(el *etree.Element) string {
	return normalize(rawElementText(el))
}

func rawElementText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var sb strings.Builder
	collectElementText(el, &sb)
	return sb.String()
}

func collectElementText(el *etree.Element, sb *strings.Builder) {
	sb.WriteString(el.Text())
	for _, child := range el.ChildElements() {
		collectElementText(child, sb)
		sb.WriteString(child.Tail())
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalize treats all whitespace as a single space and trims the result,
// additionally stripping the source vocabulary's own line-continuation
// marker (" _\n", used to hand-wrap long prose) before collapsing.
func normalize(text string) string {
	text = strings.ReplaceAll(text, " _\n", "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
