package cspec

import "github.com/beevik/etree"

// FailureDetail captures the expected/actual pair rendered by MarkStatus
// for one failed assertion (§4.6).
type FailureDetail struct {
	Expected string
	Actual   string
}

// Result aggregates the outcome of a document run (C7) by scanning the
// decorated tree for the CSS classes MarkStatus/MarkException applied,
// mirroring the source vocabulary's Result class, which reads the very
// same classes back out of the tree rather than accumulating counts during
// execution.
type Result struct {
	SuccessCount   int
	FailureCount   int
	ExceptionCount int
	MissingCount   int

	lastFailure *etree.Element
}

// Aggregate scans doc's root element for success/failure/missing/
// exceptionMessage markers and returns the tallied Result. No command
// currently applies the "missing" class — it is scanned for anyway, kept
// for forward compatibility with a future command that marks an element
// whose expected counterpart doesn't exist in the fixture's output.
func Aggregate(doc *Document) *Result {
	r := &Result{}
	root := doc.Root()
	if root == nil {
		return r
	}
	walkClassed(root, "success", func(*etree.Element) { r.SuccessCount++ })
	walkClassed(root, "failure", func(el *etree.Element) {
		r.FailureCount++
		r.lastFailure = el
	})
	walkClassed(root, "missing", func(*etree.Element) { r.MissingCount++ })
	walkClassed(root, "exceptionMessage", func(*etree.Element) { r.ExceptionCount++ })
	return r
}

func walkClassed(el *etree.Element, class string, visit func(*etree.Element)) {
	if hasClass(el, class) {
		visit(el)
	}
	for _, child := range el.ChildElements() {
		walkClassed(child, class, visit)
	}
}

func hasClass(el *etree.Element, class string) bool {
	for _, c := range splitClasses(el.SelectAttrValue("class", "")) {
		if c == class {
			return true
		}
	}
	return false
}

func splitClasses(attr string) []string {
	var out []string
	start := -1
	for i := 0; i <= len(attr); i++ {
		if i < len(attr) && attr[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, attr[start:i])
			start = -1
		}
	}
	return out
}

// Success reports whether the run had no failures and no exceptions (§4.6).
func (r *Result) Success() bool {
	return r.FailureCount == 0 && r.ExceptionCount == 0
}

// LastFailure returns the expected/actual pair of the most recently
// decorated failure, if any, by reading the <del class="expected"> and
// <ins class="actual"> elements MarkStatus nested directly under it. This
// intentionally scopes the lookup to the failed element's own children: the
// source vocabulary's equivalent uses an absolute "//" xpath from that
// element, which actually searches the whole document rather than the
// failure itself — almost certainly unintended there, since it returns the
// *first* expected/actual pair in document order regardless of which
// failure was requested. This implementation gives the result its element
// clearly intends: the detail belonging to the last failure.
func (r *Result) LastFailure() (FailureDetail, bool) {
	if r.lastFailure == nil {
		return FailureDetail{}, false
	}
	var detail FailureDetail
	for _, child := range r.lastFailure.ChildElements() {
		switch {
		case hasClass(child, "expected"):
			detail.Expected = elementText(child)
		case hasClass(child, "actual"):
			detail.Actual = elementText(child)
		}
	}
	return detail, true
}
