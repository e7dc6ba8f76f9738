package concordion

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/concordion-go/concordion/cspec"
)

// ErrSomeSpecsFailed is returned by the `run` subcommand's RunE when every
// document parsed and executed without an internal error but at least one
// had a failed assertion or a caught exception (§6, Exit contract): the CLI
// still exits non-zero, but this is not itself a Go error worth logging a
// stack trace for.
var ErrSomeSpecsFailed = errors.New("concordion: one or more specifications failed")

// NewRootCommand builds the CLI (C12): `concordion run` and
// `concordion serve`, both resolving fixtures through resolver and
// decorating output with resources.
func NewRootCommand(resolver FixtureResolver, resources *cspec.ResourceBundle) *cobra.Command {
	var cfgFile string
	var verbose bool

	root := &cobra.Command{
		Use:           "concordion",
		Short:         "Run specification-by-example documents against a fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to .concordion.yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(resolver, resources, &cfgFile, &verbose))
	root.AddCommand(newServeCmd(resolver, resources, &cfgFile, &verbose))
	return root
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newRunCmd builds `concordion run <path>...`. Each positional argument is
// either a specification document or a directory; directories are walked
// recursively and every *.html file carrying at least one namespaced
// command attribute is treated as a document to run (§4.12).
func newRunCmd(resolver FixtureResolver, resources *cspec.ResourceBundle, cfgFile *string, verbose *bool) *cobra.Command {
	var out string
	var failFast bool
	var root string

	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Execute one or more specification documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)

			cfg, err := LoadConfig(viper.GetViper(), filepath.Dir(*cfgFile))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("fail-fast") {
				cfg.FailFast = failFast
			}

			if root == "" {
				root = "."
			}
			docs, err := expandDocumentArgs(root, args, cfg.Namespace)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no specification documents found among %v", args)
			}

			runner := NewRunner(root, resolver, resources, log)
			if cfg.Namespace != "" {
				runner.Namespace = cfg.Namespace
			}

			if out == "" {
				out = cfg.OutputDir
			}

			anyFailed := false
			for _, relPath := range docs {
				stem := strings.TrimSuffix(relPath, ".html")
				fixture, err := resolver(stem)
				if err != nil {
					return fmt.Errorf("resolve fixture for %s: %w", stem, err)
				}

				dest := ""
				if out != "" {
					dest = filepath.Join(out, relPath)
					if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
						return fmt.Errorf("create output directory: %w", err)
					}
				}

				result, err := runner.Run(relPath, fixture, dest)
				if err != nil {
					return fmt.Errorf("run %s: %w", relPath, err)
				}

				log.Info("ran specification", "path", relPath,
					"success", result.SuccessCount, "failure", result.FailureCount,
					"missing", result.MissingCount, "exception", result.ExceptionCount)

				if !result.Success() {
					anyFailed = true
					if cfg.FailFast {
						break
					}
				}
			}

			if anyFailed {
				return ErrSomeSpecsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write decorated documents under this directory instead of in place")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop after the first failing document")
	cmd.Flags().StringVar(&root, "root", ".", "directory specification paths are resolved relative to")
	return cmd
}

// newServeCmd builds `concordion serve <dir>`, the dev server (C13).
func newServeCmd(resolver FixtureResolver, resources *cspec.ResourceBundle, cfgFile *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve specification documents, rerunning each on request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*verbose)

			cfg, err := LoadConfig(viper.GetViper(), filepath.Dir(*cfgFile))
			if err != nil {
				return err
			}

			runner := NewRunner(args[0], resolver, resources, log)
			if cfg.Namespace != "" {
				runner.Namespace = cfg.Namespace
			}
			server, err := NewServer(runner, log)
			if err != nil {
				return err
			}
			defer server.Close()

			log.Info("serving specifications", "root", args[0], "addr", cfg.Serve.Addr)
			return http.ListenAndServe(cfg.Serve.Addr, server)
		},
	}
}

// expandDocumentArgs resolves args (paths relative to root, or absolute)
// into a deduplicated list of root-relative specification document paths,
// in argument order (files beneath a directory in lexical walk order). A
// path naming a directory is walked recursively over its *.html files. A
// file, whether named directly or found in a directory, is kept only if it
// has at least one namespaced command attribute (§4.12: bare directories
// skip non-spec markup such as stylesheets or partials).
func expandDocumentArgs(root string, args []string, namespace string) ([]string, error) {
	seen := map[string]bool{}
	var docs []string

	add := func(relPath string) error {
		if seen[relPath] {
			return nil
		}
		ok, err := isSpecDocument(filepath.Join(root, relPath), namespace)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		seen[relPath] = true
		docs = append(docs, relPath)
		return nil
	}

	for _, arg := range args {
		full := arg
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, arg)
		}
		info, err := os.Stat(full)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(root, full)
			if err != nil {
				return nil, err
			}
			if err := add(filepath.ToSlash(rel)); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(p, ".html") {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			return add(filepath.ToSlash(rel))
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func isSpecDocument(path, namespace string) (bool, error) {
	if namespace == "" {
		namespace = cspec.Namespace
	}
	doc, err := cspec.ParseFile(path)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return len(doc.FindAnnotatedElements(namespace)) > 0, nil
}
