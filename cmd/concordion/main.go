// Command concordion runs specification-by-example HTML documents against
// Go fixtures, either once from the command line or from a dev server that
// reruns a document on each request for it.
//
// Unlike Concordion implementations on platforms with dynamic class
// loading, this binary cannot discover a fixture type from a document's
// path alone, so it ships with a small built-in demo fixture (mounted at
// "demo/Arithmetic") and expects real deployments to replace
// demoResolver with one that dispatches on the stem to their own fixture
// types (§4.10 of the runner contract).
package main

import (
	"fmt"
	"os"

	"github.com/concordion-go/concordion"
	"github.com/concordion-go/concordion/cspec"
)

// arithmeticFixture is a minimal worked example: `set` binds operands
// into it by field name, `execute` calls Add, and `assertEquals` reads
// the same field back by name, all via cspec.ReflectContext's reflection.
type arithmeticFixture struct {
	A, B int
	Sum  int
}

func (f *arithmeticFixture) Add() int {
	f.Sum = f.A + f.B
	return f.Sum
}

func demoResolver(stem string) (cspec.Context, error) {
	switch stem {
	case "demo/Arithmetic":
		return cspec.NewReflectContext(&arithmeticFixture{}), nil
	default:
		return nil, fmt.Errorf("no fixture registered for %s", stem)
	}
}

func main() {
	resources, err := cspec.LoadResourceBundle()
	if err != nil {
		fmt.Fprintln(os.Stderr, "concordion: load resources:", err)
		os.Exit(1)
	}

	root := concordion.NewRootCommand(demoResolver, resources)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "concordion:", err)
		os.Exit(1)
	}
}
