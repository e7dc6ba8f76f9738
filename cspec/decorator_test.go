package cspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecorator_MarkStatus_Success(t *testing.T) {
	doc, err := ParseString(`<span>expected text</span>`)
	require.NoError(t, err)

	d := NewDecorator()
	d.MarkStatus(doc.Root(), true, "")
	require.Equal(t, "success", doc.Root().SelectAttrValue("class", ""))
}

func TestDecorator_MarkStatus_Failure(t *testing.T) {
	doc, err := ParseString(`<span>expected text</span>`)
	require.NoError(t, err)

	d := NewDecorator()
	d.MarkStatus(doc.Root(), false, "actual text")

	root := doc.Root()
	require.Equal(t, "failure", root.SelectAttrValue("class", ""))

	var expected, actual string
	for _, child := range root.ChildElements() {
		switch {
		case hasClass(child, "expected"):
			expected = elementText(child)
		case hasClass(child, "actual"):
			actual = elementText(child)
		}
	}
	require.Equal(t, "expected text", expected)
	require.Equal(t, "actual text", actual)
}

func TestDecorator_MarkException(t *testing.T) {
	doc, err := ParseString(`<body><span>boom</span></body>`)
	require.NoError(t, err)

	target := doc.Root().ChildElements()[0]
	d := NewDecorator()
	d.MarkException(target, errors.New("fixture exploded"), []byte("frame1\nframe2"))

	body := doc.Root()
	var messages int
	for _, child := range body.ChildElements() {
		if hasClass(child, "exceptionMessage") {
			messages++
			require.Equal(t, "fixture exploded", elementText(child))
		}
	}
	require.Equal(t, 1, messages)
}
