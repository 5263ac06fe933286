// Package checker implements the Probe Checker (spec section 4.F): it
// validates every FFI item against the actual toolchain, one worker per
// hardware thread, the way core/fileprocessor.go partitions files across a
// worker pool and merges results after join -- generalized here from
// file-transform jobs to compile-probe jobs, and from naive per-item
// compiles to the iterative binary-bulk-probe worklist spec section 4.F.3
// describes.
package checker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/rust-qt/ritual-sub000/internal/db"
	"github.com/rust-qt/ritual-sub000/internal/rerror"
	"github.com/rust-qt/ritual-sub000/internal/ritlog"
)

// Snippet is one probe unit submitted to the toolchain (spec section
// 4.F.5): an FFI item's wrapper source plus where it is emitted.
type Snippet struct {
	FFIItemIndex int
	Code         string
	Context      SnippetContext
}

// SnippetContext says whether a snippet is valid at file scope or must be
// wrapped in a function body.
type SnippetContext int

const (
	ContextGlobal SnippetContext = iota
	ContextMain
)

// CompileResult is the toolchain's answer for one compile attempt, whether
// of a bulk group or a single snippet.
type CompileResult struct {
	Success bool
	Stdout  string
	Stderr  string
}

// Toolchain is the oracle spec section 4.F's protocol describes: "does this
// snippet compile and link?". A real implementation shells out to CMake and
// the system compiler (grounded on core/process_unix.go/process_windows.go
// for subprocess handling); fakeToolchain in the test file stands in for it
// here since no toolchain is available at generation time.
type Toolchain interface {
	// SelfTestPositive must succeed; SelfTestNegative must fail. Together
	// they verify the toolchain is usable at all (spec section 4.F.2).
	SelfTestPositive(ctx context.Context) error
	SelfTestNegative(ctx context.Context) error
	// Compile attempts the concatenation of every snippet's code.
	Compile(ctx context.Context, snippets []Snippet) (CompileResult, error)
}

// SelfTest runs the toolchain self-test battery (spec section 4.F.2),
// aborting with ToolchainUnusable if the positive case fails or the
// negative case unexpectedly succeeds.
func SelfTest(ctx context.Context, tc Toolchain) error {
	if err := tc.SelfTestPositive(ctx); err != nil {
		return rerror.ToolchainUnusable("positive self-test failed: " + err.Error())
	}
	if err := tc.SelfTestNegative(ctx); err == nil {
		return rerror.ToolchainUnusable("negative self-test unexpectedly succeeded")
	}
	return nil
}

// Verdict is one resolved (FFI item, environment) outcome.
type Verdict struct {
	FFIItemIndex int
	Success      bool
	Stdout       string
	Stderr       string
}

// NewToolchainFunc builds one Toolchain instance per worker; each worker
// gets an independent scratch build directory and toolchain invocation
// (spec section 5: "workers never share mutable state").
type NewToolchainFunc func(workerID int) (Toolchain, error)

// Checker validates outstanding FFI items against the toolchain.
type Checker struct {
	Workers      int
	NewToolchain NewToolchainFunc
}

// New builds a Checker with one worker per hardware thread unless workers
// is overridden.
func New(newToolchain NewToolchainFunc, workers int) *Checker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Checker{Workers: workers, NewToolchain: newToolchain}
}

// Run implements spec section 4.F's in-process protocol: partition the
// outstanding FFI items (those lacking a verdict in envIndex -- the
// idempotence invariant) across workers, each of which runs the binary
// bulk probe, and merge verdicts into database after join.
func (c *Checker) Run(ctx context.Context, database *db.Database, envIndex int, snippetOf func(item db.FFIItem) Snippet) error {
	var outstanding []Snippet
	for _, it := range database.FFIItems() {
		if _, ok := database.Check(it.Index, envIndex); ok {
			continue // idempotent: already decided this run or a previous one
		}
		outstanding = append(outstanding, snippetOf(it))
	}
	if len(outstanding) == 0 {
		return nil
	}

	chunks := partition(outstanding, c.Workers)

	verdicts := make(chan Verdict, len(outstanding))
	errs := make(chan error, len(chunks))
	var wg sync.WaitGroup

	for workerID, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		wg.Add(1)
		go func(workerID int, chunk []Snippet) {
			defer wg.Done()
			tc, err := c.NewToolchain(workerID)
			if err != nil {
				errs <- rerror.ToolchainUnusable(fmt.Sprintf("worker %d: %s", workerID, err))
				return
			}
			if err := SelfTest(ctx, tc); err != nil {
				errs <- err
				return
			}
			if err := bisect(ctx, tc, chunk, verdicts); err != nil {
				errs <- err
			}
		}(workerID, chunk)
	}

	wg.Wait()
	close(verdicts)
	close(errs)

	for v := range verdicts {
		accepted := database.RecordCheck(v.FFIItemIndex, envIndex, v.Success)
		if !accepted {
			ritlog.L().Warnw("checker: duplicate verdict ignored", "ffi_item", v.FFIItemIndex, "env", envIndex)
		}
	}
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// bisect runs the binary bulk probe (spec section 4.F.3) using an explicit
// worklist rather than recursion, so a pathological number of snippets
// cannot blow the goroutine stack.
func bisect(ctx context.Context, tc Toolchain, snippets []Snippet, out chan<- Verdict) error {
	type group struct{ snippets []Snippet }
	queue := []group{{snippets: snippets}}

	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]

		result, err := tc.Compile(ctx, g.snippets)
		if err != nil {
			return err
		}
		if result.Success {
			for _, s := range g.snippets {
				out <- Verdict{FFIItemIndex: s.FFIItemIndex, Success: true}
			}
			continue
		}
		if len(g.snippets) >= 3 {
			mid := len(g.snippets) / 2
			queue = append(queue, group{snippets: g.snippets[:mid]}, group{snippets: g.snippets[mid:]})
			continue
		}
		for _, s := range g.snippets {
			single, err := tc.Compile(ctx, []Snippet{s})
			if err != nil {
				return err
			}
			if !single.Success {
				logBisectionFailure(g.snippets, s, result, single)
			}
			out <- Verdict{FFIItemIndex: s.FFIItemIndex, Success: single.Success, Stdout: single.Stdout, Stderr: single.Stderr}
		}
	}
	return nil
}

// logBisectionFailure emits a unified diff between the failing group's
// captured stderr and the individually-isolated snippet's stderr, making it
// obvious at debug level whether the isolated snippet reproduces the same
// failure or a different one.
func logBisectionFailure(group []Snippet, culprit Snippet, groupResult, single CompileResult) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(groupResult.Stderr),
		B:        difflib.SplitLines(single.Stderr),
		FromFile: "group stderr",
		ToFile:   "isolated stderr",
		Context:  2,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	ritlog.L().Debugw("checker: snippet failed in isolation", "ffi_item", culprit.FFIItemIndex, "group_size", len(group), "diff", text)
}

// partition splits snippets into at most n roughly equal chunks.
func partition(snippets []Snippet, n int) [][]Snippet {
	if n <= 0 {
		n = 1
	}
	if n > len(snippets) {
		n = len(snippets)
	}
	chunks := make([][]Snippet, n)
	for i, s := range snippets {
		idx := i % n
		chunks[idx] = append(chunks[idx], s)
	}
	return chunks
}
