// Package pipeline implements the Pipeline Orchestrator (spec section
// 4.H): a named, ordered sequence of Processing Steps run against one
// Context, generalized from core.Pipeline's fixed 8-step Apply() into a
// named step graph that third-party steps can be spliced into, the way
// providers/golang/pipeline.go layers language-specific passes on top of
// the generic core pipeline rather than forking it.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rust-qt/ritual-sub000/internal/analyzer"
	"github.com/rust-qt/ritual-sub000/internal/checker"
	"github.com/rust-qt/ritual-sub000/internal/collab"
	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/ffi"
	"github.com/rust-qt/ritual-sub000/internal/hostgen"
	"github.com/rust-qt/ritual-sub000/internal/parser"
	"github.com/rust-qt/ritual-sub000/internal/ritlog"
)

// Context is the shared state every Step reads and mutates (spec section
// 4.H: "{workspace, config, current_database, dependency_databases}").
type Context struct {
	Workspace           string
	ParserConfig         *parser.Config
	Headers             map[string][]byte
	TargetIndex         int
	EnvIndex            int
	CurrentDatabase     *db.Database
	DependencyDatabases []*db.Database
	Store               db.Store

	NewToolchain checker.NewToolchainFunc
	SnippetOf    func(db.FFIItem) checker.Snippet
	HostConfig   hostgen.Config

	// HostOutput is populated by the host_generate step for crate_write to
	// consume.
	HostOutput *hostgen.Output
	// CrateFiles is populated by crate_write: relative path -> rendered
	// source, ready for a real filesystem writer to flush.
	CrateFiles map[string]string
	// CrateLayout is the structured form crate_write also hands to
	// internal/collab.Write; populated unconditionally, flushed to
	// Workspace/<crate>/ only when Workspace is set.
	CrateLayout *collab.Layout

	// pendingInstantiations carries find_template_instantiations' output to
	// instantiate_templates; unexported since it's a handoff between two
	// adjacent steps in this package, not part of the Context's public
	// shape.
	pendingInstantiations []analyzer.Instantiation
}

// Step is one named unit of pipeline work (spec section 4.H: "{name,
// is_const, run(context)}"). IsConst steps never mutate CurrentDatabase
// (print_database is the only one); everything else may.
type Step struct {
	Name    string
	IsConst bool
	Run     func(ctx context.Context, pc *Context) error
}

// Pipeline is a named, partially ordered set of Steps. The default chain
// (spec section 4.H) is a straight line; InsertAfter splices third-party
// steps in next to a named anchor, which is all "topological layout"
// amounts to once the graph stays this shallow.
type Pipeline struct {
	order []string
	steps map[string]Step
}

// New builds a Pipeline with the default step chain spec section 4.H names:
// parse -> explicit_destructors -> choose_allocation_places ->
// find_template_instantiations -> instantiate_templates -> ffi_generate ->
// ffi_check -> host_generate -> crate_write -> build_crate, plus the
// maintenance steps (print_database, clear_ffi, clear_rust_info, clear),
// which are reachable by name but not part of the default chain.
func New() *Pipeline {
	p := &Pipeline{steps: map[string]Step{}}
	for _, s := range defaultChain() {
		p.order = append(p.order, s.Name)
		p.steps[s.Name] = s
	}
	for _, s := range maintenanceSteps() {
		p.steps[s.Name] = s
	}
	return p
}

// InsertAfter splices step into the default chain immediately after
// anchor, implementing spec section 4.H's "third-party step injection via
// topological layout" for the common case of "run my step right after X".
func (p *Pipeline) InsertAfter(anchor string, step Step) error {
	idx := p.indexOf(anchor)
	if idx < 0 {
		return fmt.Errorf("pipeline: unknown anchor step %q", anchor)
	}
	p.steps[step.Name] = step
	out := make([]string, 0, len(p.order)+1)
	out = append(out, p.order[:idx+1]...)
	out = append(out, step.Name)
	out = append(out, p.order[idx+1:]...)
	p.order = out
	return nil
}

func (p *Pipeline) indexOf(name string) int {
	for i, n := range p.order {
		if n == name {
			return i
		}
	}
	return -1
}

// Run resolves entry into a concrete step sequence and executes it against
// pc (spec section 4.H's named entry points):
//   - "" or "main": the full default chain
//   - "from:<step>": the default chain starting at <step>
//   - "<step>": that single step, whether in the default chain or a
//     maintenance step
func (p *Pipeline) Run(ctx context.Context, entry string, pc *Context) error {
	sequence, err := p.resolve(entry)
	if err != nil {
		return err
	}
	for _, name := range sequence {
		step := p.steps[name]
		ritlog.L().Infow("pipeline: running step", "step", step.Name)
		if err := step.Run(ctx, pc); err != nil {
			if !step.IsConst && pc.CurrentDatabase != nil && pc.CurrentDatabase.Dirty() && pc.Store != nil {
				if persistErr := pc.CurrentDatabase.Persist(pc.Store); persistErr != nil {
					ritlog.L().Errorw("pipeline: failed to persist dirty database after step error", "step", step.Name, "persist_error", persistErr)
				} else {
					ritlog.L().Infow("pipeline: persisted dirty database before propagating step error", "step", step.Name)
				}
			}
			return fmt.Errorf("pipeline: step %q failed: %w", step.Name, err)
		}
	}
	if pc.CurrentDatabase != nil && pc.CurrentDatabase.Dirty() && pc.Store != nil {
		if err := pc.CurrentDatabase.Persist(pc.Store); err != nil {
			return fmt.Errorf("pipeline: persisting database after run: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) resolve(entry string) ([]string, error) {
	switch {
	case entry == "" || entry == "main":
		return append([]string{}, p.order...), nil
	case len(entry) > len("from:") && entry[:len("from:")] == "from:":
		name := entry[len("from:"):]
		idx := p.indexOf(name)
		if idx < 0 {
			return nil, fmt.Errorf("pipeline: unknown entry point step %q", name)
		}
		return append([]string{}, p.order[idx:]...), nil
	default:
		if _, ok := p.steps[entry]; !ok {
			return nil, fmt.Errorf("pipeline: unknown step %q", entry)
		}
		return []string{entry}, nil
	}
}

func defaultChain() []Step {
	return []Step{
		{Name: "parse", Run: stepParse},
		{Name: "explicit_destructors", Run: stepExplicitDestructors},
		{Name: "choose_allocation_places", Run: stepChooseAllocationPlaces},
		{Name: "find_template_instantiations", Run: stepFindTemplateInstantiations},
		{Name: "instantiate_templates", Run: stepInstantiateTemplates},
		{Name: "ffi_generate", Run: stepFFIGenerate},
		{Name: "ffi_check", Run: stepFFICheck},
		{Name: "host_generate", Run: stepHostGenerate},
		{Name: "crate_write", Run: stepCrateWrite},
		{Name: "build_crate", Run: stepBuildCrate},
	}
}

func maintenanceSteps() []Step {
	return []Step{
		{Name: "print_database", IsConst: true, Run: stepPrintDatabase},
		{Name: "clear_ffi", Run: stepClearFFI},
		{Name: "clear_rust_info", Run: stepClearRustInfo},
		{Name: "clear", Run: stepClear},
	}
}

func stepParse(ctx context.Context, pc *Context) error {
	drv := parser.NewDriver()
	return drv.Run(ctx, pc.ParserConfig, pc.Headers, pc.CurrentDatabase, pc.TargetIndex)
}

func stepExplicitDestructors(ctx context.Context, pc *Context) error {
	return analyzer.ExplicitDestructors(pc.CurrentDatabase)
}

func stepChooseAllocationPlaces(ctx context.Context, pc *Context) error {
	return analyzer.ChooseAllocationPlaces(pc.CurrentDatabase)
}

func stepFindTemplateInstantiations(ctx context.Context, pc *Context) error {
	discovered, err := analyzer.FindTemplateInstantiations(pc.CurrentDatabase)
	if err != nil {
		return err
	}
	pc.pendingInstantiations = discovered
	return nil
}

func stepInstantiateTemplates(ctx context.Context, pc *Context) error {
	return analyzer.InstantiateTemplates(pc.CurrentDatabase, pc.pendingInstantiations)
}

func stepFFIGenerate(ctx context.Context, pc *Context) error {
	return ffi.NewGenerator(pc.CurrentDatabase).Run(pc.CurrentDatabase)
}

func stepFFICheck(ctx context.Context, pc *Context) error {
	if pc.NewToolchain == nil {
		ritlog.L().Infow("pipeline: no toolchain configured, skipping ffi_check")
		return nil
	}
	c := checker.New(pc.NewToolchain, 0)
	return c.Run(ctx, pc.CurrentDatabase, pc.EnvIndex, pc.SnippetOf)
}

func stepHostGenerate(ctx context.Context, pc *Context) error {
	out, err := hostgen.New(pc.HostConfig).Run(pc.CurrentDatabase)
	if err != nil {
		return err
	}
	pc.HostOutput = out
	return nil
}

func stepCrateWrite(ctx context.Context, pc *Context) error {
	if pc.HostOutput == nil {
		return fmt.Errorf("pipeline: crate_write ran before host_generate produced output")
	}
	files := map[string]string{}
	hostSources := map[string]string{}
	for modulePath, source := range pc.HostOutput.Sources {
		rel := modulePath + ".rs"
		files["src/"+rel] = source
		hostSources[rel] = source
	}
	files["src/ffi.rs"] = pc.HostOutput.FFIDecls
	hostSources["ffi.rs"] = pc.HostOutput.FFIDecls
	pc.CrateFiles = files

	manifest, err := collab.RenderManifest(collab.ManifestData{
		CrateName:    pc.CurrentDatabase.CrateName,
		CrateVersion: pc.CurrentDatabase.CrateVersion,
	})
	if err != nil {
		return err
	}

	layout := collab.Layout{
		Manifest: manifest,
		BuildScriptData: collab.BuildScriptData{
			CppWrapperLibName: pc.CurrentDatabase.CrateName + "_wrapper",
			CppLibVersion:     pc.CurrentDatabase.CrateVersion,
		},
		HostSources: hostSources,
		FFIInclude:  pc.HostOutput.FFIDecls,
	}
	pc.CrateLayout = &layout

	if pc.Workspace == "" {
		return nil
	}
	outDir := filepath.Join(pc.Workspace, pc.CurrentDatabase.CrateName)
	if err := collab.Write(outDir, layout); err != nil {
		return err
	}
	return nil
}

func stepBuildCrate(ctx context.Context, pc *Context) error {
	ritlog.L().Infow("pipeline: build_crate is a no-op without a cargo toolchain wired in", "files", len(pc.CrateFiles))
	return nil
}

func stepPrintDatabase(ctx context.Context, pc *Context) error {
	items := pc.CurrentDatabase.Items()
	ritlog.L().Infow("pipeline: database contents", "item_count", len(items), "ffi_item_count", len(pc.CurrentDatabase.FFIItems()))
	return nil
}

func stepClearFFI(ctx context.Context, pc *Context) error {
	pc.CurrentDatabase.ClearFFI()
	return nil
}

func stepClearRustInfo(ctx context.Context, pc *Context) error {
	pc.CurrentDatabase.ClearRustInfo()
	return nil
}

func stepClear(ctx context.Context, pc *Context) error {
	pc.CurrentDatabase.Clear()
	return nil
}
