package cspec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEngine_VerifyRows_TruncatesToShorterOfCollectionAndRows exercises the
// invariant that verifyRows (and table-execute) produce exactly
// min(|collection|, |body_rows|) iterations of their child commands: rows
// beyond the collection's length are left completely undecorated.
func TestEngine_VerifyRows_TruncatesToShorterOfCollectionAndRows(t *testing.T) {
	ctx := NewMapContext(map[string]any{"names": []string{"Alice", "Bob"}})
	body := `<table c:verifyRows="#name = #names">
		<tr><th c:assertEquals="#name">Name</th></tr>
		<tr><td>Alice</td></tr>
		<tr><td>Bob</td></tr>
		<tr><td>Carol</td></tr>
	</table>`
	doc, result := runDoc(t, body, ctx, nil)

	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 0, result.FailureCount)

	table := doc.Root().SelectElement("body").SelectElement("table")
	rows := table.SelectElements("tr")
	require.Len(t, rows, 4) // header + 3 body rows

	for i, wantDecorated := range []bool{true, true, false} {
		td := rows[i+1].SelectElement("td")
		class := td.SelectAttrValue("class", "")
		if wantDecorated {
			require.Equal(t, "success", class, "row %d should be decorated", i)
		} else {
			require.Empty(t, class, "row %d is beyond the collection and must be left untouched", i)
		}
	}
}

// TestEngine_VerifyRows_CollectionLongerThanRows covers the inverse
// truncation direction: more items than body rows still yields exactly
// one iteration per available row.
func TestEngine_VerifyRows_CollectionLongerThanRows(t *testing.T) {
	ctx := NewMapContext(map[string]any{"names": []string{"Alice", "Bob", "Carol"}})
	body := `<table c:verifyRows="#name = #names">
		<tr><th c:assertEquals="#name">Name</th></tr>
		<tr><td>Alice</td></tr>
	</table>`
	_, result := runDoc(t, body, ctx, nil)

	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, 0, result.FailureCount)
}
