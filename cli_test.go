package concordion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/concordion-go/concordion/cspec"
)

func TestExpandDocumentArgs_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span c:assertTrue="true">x</span>`)

	docs, err := expandDocumentArgs(dir, []string{"Adding.html"}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"Adding.html"}, docs)
}

func TestExpandDocumentArgs_DirectorySkipsNonSpecFiles(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "specs/Adding.html", `<span c:assertTrue="true">x</span>`)
	writeSpec(t, dir, "specs/Plain.html", `<p>no commands here</p>`)

	docs, err := expandDocumentArgs(dir, []string{"specs"}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"specs/Adding.html"}, docs)
}

func TestExpandDocumentArgs_Dedupes(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span c:assertTrue="true">x</span>`)

	docs, err := expandDocumentArgs(dir, []string{"Adding.html", "Adding.html", "."}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"Adding.html"}, docs)
}

func TestExpandDocumentArgs_CustomNamespace(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span x:assertTrue="true" xmlns:x="urn:example:custom">x</span>`)

	docs, err := expandDocumentArgs(dir, []string{"Adding.html"}, "")
	require.NoError(t, err)
	require.Empty(t, docs, "the default namespace should not recognize the custom-namespaced attribute")

	docs, err = expandDocumentArgs(dir, []string{"Adding.html"}, "urn:example:custom")
	require.NoError(t, err)
	require.Equal(t, []string{"Adding.html"}, docs)
}

func TestRunCommand_FailureExitsWithErrSomeSpecsFailed(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span c:assertEquals="#missing">unmatched</span>`)

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}

	root := NewRootCommand(resolver, nil)
	root.SetArgs([]string{"run", "--root", dir, "Adding.html"})
	err := root.Execute()
	require.ErrorIs(t, err, ErrSomeSpecsFailed)
}

func TestRunCommand_SuccessReturnsNil(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span c:assertTrue="true">x</span>`)

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}

	root := NewRootCommand(resolver, nil)
	root.SetArgs([]string{"run", "--root", dir, "Adding.html"})
	require.NoError(t, root.Execute())
}

func TestRunCommand_OutputDirFallsBackToConfig(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "Adding.html", `<span c:assertTrue="true">x</span>`)

	outDir := filepath.Join(dir, "decorated")
	cfgContent := "output_dir: " + outDir + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".concordion.yaml"), []byte(cfgContent), 0o644))

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}

	root := NewRootCommand(resolver, nil)
	root.SetArgs([]string{"run", "--root", dir, "--config", filepath.Join(dir, ".concordion.yaml"), "Adding.html"})
	require.NoError(t, root.Execute())

	_, err := os.Stat(filepath.Join(outDir, "Adding.html"))
	require.NoError(t, err, "--out should fall back to the config file's output_dir when not passed explicitly")
}

func TestRunCommand_NamespaceOverrideFromConfig(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "Spec.html")
	doc := `<html xmlns:x="urn:example:custom"><body><span x:assertTrue="true">x</span></body></html>`
	require.NoError(t, os.WriteFile(full, []byte(doc), 0o644))

	cfgContent := "namespace: urn:example:custom\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".concordion.yaml"), []byte(cfgContent), 0o644))

	resolver := func(stem string) (cspec.Context, error) {
		return cspec.NewMapContext(nil), nil
	}

	root := NewRootCommand(resolver, nil)
	root.SetArgs([]string{"run", "--root", dir, "--config", filepath.Join(dir, ".concordion.yaml"), "Spec.html"})
	require.NoError(t, root.Execute())
}
