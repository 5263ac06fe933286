package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-qt/ritual-sub000/internal/checker"
	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/hostgen"
	"github.com/rust-qt/ritual-sub000/internal/parser"
	"github.com/rust-qt/ritual-sub000/internal/types"
)

type alwaysPassToolchain struct{}

func (alwaysPassToolchain) SelfTestPositive(ctx context.Context) error { return nil }
func (alwaysPassToolchain) SelfTestNegative(ctx context.Context) error { return assertErr }
func (alwaysPassToolchain) Compile(ctx context.Context, snippets []checker.Snippet) (checker.CompileResult, error) {
	return checker.CompileResult{Success: true}, nil
}

var assertErr = assertError("expected failure")

type assertError string

func (e assertError) Error() string { return string(e) }

func newContext(t *testing.T, source string) *Context {
	t.Helper()
	database := &db.Database{CrateName: "widgets"}
	env := database.AddTarget(db.Environment{TargetTriple: "x86_64-linux"})
	return &Context{
		ParserConfig:    &parser.Config{},
		Headers:         map[string][]byte{"widgets.h": []byte(source)},
		TargetIndex:     env,
		EnvIndex:        env,
		CurrentDatabase: database,
		NewToolchain:    func(workerID int) (checker.Toolchain, error) { return alwaysPassToolchain{}, nil },
		SnippetOf: func(it db.FFIItem) checker.Snippet {
			return checker.Snippet{FFIItemIndex: it.Index, Code: it.Function.WrapperSource, Context: checker.ContextGlobal}
		},
		HostConfig: hostgen.Config{NameConfig: types.NameConfig{CrateName: "widgets"}},
	}
}

func TestRunMainExecutesFreeFunctionSeedScenarioEndToEnd(t *testing.T) {
	pc := newContext(t, "int add(int a, int b);\n")

	require.NoError(t, New().Run(context.Background(), "main", pc))

	assert.NotEmpty(t, pc.CurrentDatabase.FFIItems(), "ffi_generate should have produced at least one FFI item")
	for _, it := range pc.CurrentDatabase.FFIItems() {
		_, ok := pc.CurrentDatabase.Check(it.Index, pc.EnvIndex)
		assert.True(t, ok, "ffi_check should have recorded a verdict for every FFI item")
	}
	require.NotNil(t, pc.HostOutput, "host_generate should have populated HostOutput")
	assert.True(t, strings.Contains(pc.HostOutput.FFIDecls, "_G_add"))
	require.NotNil(t, pc.CrateFiles, "crate_write should have populated CrateFiles")
}

func TestRunFromStepSkipsEarlierSteps(t *testing.T) {
	pc := newContext(t, "int add(int a, int b);\n")

	require.NoError(t, New().Run(context.Background(), "parse", pc))
	require.Empty(t, pc.CurrentDatabase.FFIItems(), "ffi_generate has not run yet")

	require.NoError(t, New().Run(context.Background(), "from:ffi_generate", pc))
	assert.NotEmpty(t, pc.CurrentDatabase.FFIItems())
}

func TestRunClearMaintenanceStepEmptiesDatabase(t *testing.T) {
	pc := newContext(t, "int add(int a, int b);\n")
	require.NoError(t, New().Run(context.Background(), "main", pc))
	require.NotEmpty(t, pc.CurrentDatabase.Items())

	require.NoError(t, New().Run(context.Background(), "clear", pc))
	assert.Empty(t, pc.CurrentDatabase.Items())
}

func TestRunUnknownStepReturnsError(t *testing.T) {
	pc := newContext(t, "int add(int a, int b);\n")
	err := New().Run(context.Background(), "not_a_real_step", pc)
	assert.Error(t, err)
}

func TestRunMainWritesCrateLayoutWhenWorkspaceIsSet(t *testing.T) {
	pc := newContext(t, "int add(int a, int b);\n")
	pc.Workspace = t.TempDir()

	require.NoError(t, New().Run(context.Background(), "main", pc))

	require.NotNil(t, pc.CrateLayout)
	manifestPath := pc.Workspace + "/widgets/Cargo.toml"
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err, "crate_write should have flushed Cargo.toml into the workspace")
	assert.True(t, strings.Contains(string(data), `name = "widgets"`))
}

func TestInsertAfterSplicesThirdPartyStep(t *testing.T) {
	p := New()
	called := false
	require.NoError(t, p.InsertAfter("parse", Step{Name: "custom_check", Run: func(ctx context.Context, pc *Context) error {
		called = true
		return nil
	}}))

	pc := newContext(t, "int add(int a, int b);\n")
	require.NoError(t, p.Run(context.Background(), "custom_check", pc))
	assert.True(t, called)
}
