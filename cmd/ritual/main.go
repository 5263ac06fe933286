// Command ritual is the CLI entry point (spec section 6): it resolves the
// workspace/crates configuration, runs the pipeline orchestrator's named
// entry points as subcommands, and reports success or failure the way the
// teacher's demo/cmd/main.go builds its cobra command tree.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/rust-qt/ritual-sub000/internal/checker"
	"github.com/rust-qt/ritual-sub000/internal/config"
	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/hostgen"
	"github.com/rust-qt/ritual-sub000/internal/parser"
	"github.com/rust-qt/ritual-sub000/internal/pipeline"
	"github.com/rust-qt/ritual-sub000/internal/ritlog"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

// configuredCrates lists the crates this workspace knows how to build;
// "all" (spec section 6) expands against this set. A real deployment would
// read this from a workspace manifest; we keep it to the single crate name
// baked into build_script_data.json handling until a manifest format exists.
var configuredCrates = []string{"ritual_crate"}

// entryPointSteps are the pipeline steps exposed as their own subcommands
// (spec section 6: "a subcommand selects the pipeline entry point").
var entryPointSteps = []string{
	"parse", "explicit_destructors", "choose_allocation_places",
	"find_template_instantiations", "instantiate_templates",
	"ffi_generate", "ffi_check", "host_generate", "crate_write", "build_crate",
	"print_database", "clear_ffi", "clear_rust_info", "clear",
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ritual:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ritual",
		Short: "Generate idiomatic host-language bindings from a C++-like source library",
	}
	config.BindFlags(root)

	root.AddCommand(newEntryCommand("run", "Run the full pipeline from parse through build_crate", ""))
	for _, step := range entryPointSteps {
		root.AddCommand(newEntryCommand(step, "Run the "+step+" pipeline step", step))
	}
	return root
}

func newEntryCommand(use, short, entry string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntry(cmd, entry)
		},
	}
}

func runEntry(cmd *cobra.Command, entry string) error {
	cfg, err := config.FromFlags(cmd.Flags(), configuredCrates)
	if err != nil {
		return err
	}
	if _, err := ritlog.Init(ritlog.Options{WorkspaceDir: cfg.Workspace}); err != nil {
		return err
	}
	env, err := config.LoadEnv(cfg.Workspace)
	if err != nil {
		return err
	}

	for _, crateName := range cfg.Crates {
		if err := runCrate(cmd.Context(), cfg, env, crateName, entry); err != nil {
			return fmt.Errorf("crate %q: %w", crateName, err)
		}
	}
	return nil
}

func runCrate(ctx context.Context, cfg *config.Config, env *config.Env, crateName, entry string) error {
	store := db.NewFileStore(cfg.Workspace)
	database, err := db.LoadOrCreate(store, crateName)
	if err != nil {
		return err
	}
	if cfg.OutputCratesVersion != "" {
		database.CrateVersion = cfg.OutputCratesVersion
	}

	headers, err := discoverHeaders(cfg.Workspace, crateName)
	if err != nil {
		return err
	}

	envIndex := database.AddTarget(db.Environment{TargetTriple: defaultTargetTriple()})

	pc := &pipeline.Context{
		Workspace: cfg.Workspace,
		ParserConfig: &parser.Config{
			IncludePaths:        splitPathList(env.IncludePath),
			FrameworkPaths:      splitPathList(env.FrameworkPath),
			SystemIncludePrefix: env.ClangSystemIncludePath,
		},
		Headers:         headers,
		TargetIndex:     envIndex,
		EnvIndex:        envIndex,
		CurrentDatabase: database,
		Store:           store,
		NewToolchain:    nil, // no real CMake/compiler backend is wired into this environment; ffi_check logs and no-ops.
		SnippetOf: func(it db.FFIItem) checker.Snippet {
			return checker.Snippet{FFIItemIndex: it.Index, Code: it.Function.WrapperSource, Context: checker.ContextGlobal}
		},
		HostConfig: hostgen.Config{NameConfig: types.NameConfig{CrateName: crateName, StripQPrefix: true}},
	}

	if err := pipeline.New().Run(ctx, entry, pc); err != nil {
		return err
	}
	if pc.CrateLayout != nil && cfg.Workspace != "" {
		ritlog.L().Infow("ritual: wrote crate layout", "crate", crateName, "dir", filepath.Join(cfg.Workspace, crateName))
	}
	return nil
}

// discoverHeaders globs <workspace>/<crate>/include/**/*.h the way the
// Parser Driver expects pre-read header bytes (internal/parser.Driver.Run
// takes already-loaded content, not paths).
func discoverHeaders(workspace, crateName string) (map[string][]byte, error) {
	root := filepath.Join(workspace, crateName, "include")
	if _, err := os.Stat(root); err != nil {
		return map[string][]byte{}, nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.h")
	if err != nil {
		return nil, fmt.Errorf("globbing headers under %s: %w", root, err)
	}
	headers := make(map[string][]byte, len(matches))
	for _, rel := range matches {
		data, err := fs.ReadFile(os.DirFS(root), rel)
		if err != nil {
			return nil, fmt.Errorf("reading header %s: %w", rel, err)
		}
		headers[rel] = data
	}
	return headers, nil
}

func splitPathList(v string) []string {
	if v == "" {
		return nil
	}
	sep := ":"
	if os.PathSeparator == '\\' {
		sep = ";"
	}
	var out []string
	start := 0
	for i := 0; i < len(v); i++ {
		if string(v[i]) == sep {
			out = append(out, v[start:i])
			start = i + 1
		}
	}
	out = append(out, v[start:])
	return out
}

func defaultTargetTriple() string {
	if t := os.Getenv("RITUAL_TARGET_TRIPLE"); t != "" {
		return t
	}
	return "x86_64-unknown-linux-gnu"
}
