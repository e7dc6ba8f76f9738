// Package concordion ties the command engine (package cspec) to a
// filesystem of specification documents and a caller-supplied fixture,
// exposing the runner, CLI and dev-server surfaces documented in
// SPEC_FULL.md §4.11–§4.15.
package concordion

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/concordion-go/concordion/cspec"
)

// FixtureResolver resolves the fixture a specification document should run
// against, given the document's slash-separated stem relative to the
// runner's root (e.g. "subdir/Adding" for "subdir/Adding.html"). Go
// fixtures are ordinary values supplied by the caller rather than being
// discovered by dynamic import the way the Python original's
// imp.load_source locates a sibling *.py file, so resolution is entirely
// the caller's responsibility (§4.10).
type FixtureResolver func(stem string) (cspec.Context, error)

// Runner loads, executes and writes back specification documents (C11). A
// zero-value Runner is not usable; construct one with NewRunner.
type Runner struct {
	Root      string
	Resolver  FixtureResolver
	Resources *cspec.ResourceBundle
	Namespace string
	Log       *slog.Logger

	engine *cspec.Engine
}

// NewRunner returns a Runner rooted at root (the directory specification
// paths are resolved relative to), using resolver to find fixtures for both
// the top-level document and any `run`-delegated sub-documents.
func NewRunner(root string, resolver FixtureResolver, resources *cspec.ResourceBundle, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	engine := cspec.NewEngine(log)
	return &Runner{
		Root:      root,
		Resolver:  resolver,
		Resources: resources,
		Namespace: cspec.Namespace,
		Log:       log,
		engine:    engine,
	}
}

// Run executes the specification document at relPath (relative to
// r.Root) against fixture, finalizes the output document with the
// resource bundle (§6/C16), and writes the decorated document back to its
// original path (or, if out is non-empty, to that path instead). It
// returns the aggregated Result.
func (r *Runner) Run(relPath string, fixture cspec.Context, out string) (*cspec.Result, error) {
	fullPath := filepath.Join(r.Root, relPath)

	doc, result, err := r.render(fullPath, relPath, fixture)
	if err != nil {
		return nil, err
	}

	dest := fullPath
	if out != "" {
		dest = out
	}
	if err := doc.WriteToFile(dest); err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}

	return result, nil
}

// Render behaves like Run but returns the decorated document's serialized
// bytes instead of writing them back to disk, for callers (the dev server,
// C13) that must not mutate the source specification on every request.
func (r *Runner) Render(relPath string, fixture cspec.Context) ([]byte, *cspec.Result, error) {
	fullPath := filepath.Join(r.Root, relPath)

	doc, result, err := r.render(fullPath, relPath, fixture)
	if err != nil {
		return nil, nil, err
	}
	b, err := doc.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return b, result, nil
}

func (r *Runner) render(fullPath, relPath string, fixture cspec.Context) (*cspec.Document, *cspec.Result, error) {
	doc, err := cspec.ParseFile(fullPath)
	if err != nil {
		return nil, nil, err
	}

	delegator := &subRunnerDelegator{
		runner:  r,
		baseDir: path.Dir(relPath),
	}

	r.engine.Namespace = r.Namespace
	result, err := r.engine.Execute(doc, fixture, delegator)
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", relPath, err)
	}

	if r.Resources != nil {
		cspec.FinalizeDocument(doc, r.Resources.CSS, r.Resources.JS)
	}

	return doc, result, nil
}

// subRunnerDelegator implements cspec.Delegator by recursing into a fresh
// Runner for the target document, sharing the parent's Resolver and
// ResourceBundle (§4.10).
type subRunnerDelegator struct {
	runner  *Runner
	baseDir string
}

func (d *subRunnerDelegator) Delegate(href string) (bool, error) {
	if d.runner.Resolver == nil {
		return false, cspec.ErrDelegationNotConfigured
	}

	relPath := path.Join(d.baseDir, href) + ".html"
	stem := strings.TrimSuffix(relPath, ".html")

	fixture, err := d.runner.Resolver(stem)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", cspec.ErrSubSpecNotFound, stem, err)
	}

	sub := NewRunner(d.runner.Root, d.runner.Resolver, d.runner.Resources, d.runner.Log)
	sub.Namespace = d.runner.Namespace
	result, err := sub.Run(relPath, fixture, "")
	if err != nil {
		return false, err
	}
	return result.Success(), nil
}
