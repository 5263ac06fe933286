// Package parser implements the Parser Driver (spec section 4.C): it
// synthesizes a translation unit from the caller's include directives,
// invokes a native parsing backend over it, walks the resulting entity
// tree, and populates the API Database with Source Functions, Classes,
// Enums, Fields and Namespaces.
//
// The native backend here is tree-sitter's C++ grammar
// (github.com/smacker/go-tree-sitter), queried the way the teacher's
// internal/parser/universal.go compiles a DSL into a structured query: we
// walk the concrete syntax tree directly rather than shelling out to a
// separate process, the same "incremental parser as a library" posture the
// teacher takes with its base.Provider.
package parser

import (
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rust-qt/ritual-sub000/internal/types"
)

// Config collects everything the Parser Driver's protocol step 1 needs
// (spec section 4.C).
type Config struct {
	IncludePaths        []string
	FrameworkPaths       []string
	SystemIncludePrefix  string // read from CLANG_SYSTEM_INCLUDE_PATH if empty
	ExtraFlags           []string
	IncludeDirectives    []string // headers the library wishes to expose
	TargetIncludePaths   []string // glob patterns; only matching declarations are retained

	// PathFilter, when non-nil, may veto any discovered path; a false
	// result silently skips the entity (spec section 4.C "user-provided
	// path-filter hook").
	PathFilter func(types.Path) bool
}

// ResolveSystemIncludePrefix applies the CLANG_SYSTEM_INCLUDE_PATH
// environment override (spec section 6) when Config.SystemIncludePrefix
// is unset.
func (c *Config) ResolveSystemIncludePrefix() string {
	if c.SystemIncludePrefix != "" {
		return c.SystemIncludePrefix
	}
	return os.Getenv("CLANG_SYSTEM_INCLUDE_PATH")
}

// IsInsideTargetPaths reports whether includeFile matches one of the
// configured target include paths (spec section 4.C "only declarations
// physically inside one of these paths are retained"). An empty
// TargetIncludePaths list matches everything, so the common single-header
// case needs no configuration.
func (c *Config) IsInsideTargetPaths(includeFile string) bool {
	if len(c.TargetIncludePaths) == 0 {
		return true
	}
	for _, pattern := range c.TargetIncludePaths {
		if ok, _ := doublestar.Match(pattern, includeFile); ok {
			return true
		}
		// doublestar.Match requires the pattern to describe the whole
		// path; target paths are usually directory prefixes, so also
		// accept a plain prefix match the way a scanner would restrict a
		// file walk to a subtree.
		if len(includeFile) >= len(pattern) && includeFile[:len(pattern)] == pattern {
			return true
		}
	}
	return false
}
