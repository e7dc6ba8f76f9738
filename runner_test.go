package concordion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concordion-go/concordion/cspec"
)

type addingFixture struct {
	A, B, Sum int
}

func (f *addingFixture) Add() int {
	f.Sum = f.A + f.B
	return f.Sum
}

func writeSpec(t *testing.T, dir, relPath, body string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	doc := `<html xmlns:c="http://www.concordion.org/2007/concordion"><body>` + body + `</body></html>`
	require.NoError(t, os.WriteFile(full, []byte(doc), 0o644))
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `
		<span c:set="#a">2</span>
		<span c:set="#b">3</span>
		<div c:execute="#Add()">
			<span c:assertEquals="#sum">5</span>
		</div>
	`)

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewReflectContext(&addingFixture{}), nil
	}
	runner := NewRunner(dir, resolver, nil, nil)

	result, err := runner.Run("Adding.html", cspec.NewReflectContext(&addingFixture{}), "")
	require.NoError(t, err)
	require.True(t, result.Success())
}

func TestRunner_RunDelegatesToSubSpec(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Main.html", `<a c:run="href" href="Sub.html">Sub</a>`)
	writeSpec(t, dir, "Sub.html", `<span c:assertTrue="true">x</span>`)

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}
	runner := NewRunner(dir, resolver, nil, nil)

	result, err := runner.Run("Main.html", cspec.NewMapContext(nil), "")
	require.NoError(t, err)
	require.True(t, result.Success())
}

func TestRunner_Render_DoesNotMutateSourceFile(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Spec.html", `<span c:assertTrue="true">x</span>`)

	before, err := os.ReadFile(filepath.Join(dir, "Spec.html"))
	require.NoError(t, err)

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}
	runner := NewRunner(dir, resolver, nil, nil)

	_, result, err := runner.Render("Spec.html", cspec.NewMapContext(nil))
	require.NoError(t, err)
	require.True(t, result.Success())

	after, err := os.ReadFile(filepath.Join(dir, "Spec.html"))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRunner_NamespaceOverride(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "Spec.html")
	doc := `<html xmlns:x="urn:example:custom"><body><span x:assertTrue="true">x</span></body></html>`
	require.NoError(t, os.WriteFile(full, []byte(doc), 0o644))

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}

	runner := NewRunner(dir, resolver, nil, nil)
	result, err := runner.Run("Spec.html", cspec.NewMapContext(nil), "")
	require.NoError(t, err)
	require.Equal(t, 0, result.SuccessCount, "the well-known namespace should not see the custom-namespaced command")

	runner.Namespace = "urn:example:custom"
	result, err = runner.Run("Spec.html", cspec.NewMapContext(nil), "")
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)
}
