// Package config implements the External Collaborator configuration surface
// (spec section 6): workspace/crate selection plus the recognized environment
// variables, generalized from the teacher's internal/config/config.go env
// loader and internal/config/cli.go flag loader.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// Config is the resolved CLI configuration (spec section 6's "--workspace,
// --crates, --output-crates-version, --local-paths").
type Config struct {
	Workspace           string
	Crates              []string
	OutputCratesVersion string
	LocalPaths          bool
}

// Env holds the recognized environment variables (spec section 6).
type Env struct {
	ClangSystemIncludePath string
	LibraryPath            string
	FrameworkPath          string
	IncludePath            string
	CMakeArgs              string
}

// LoadEnv loads a workspace-local .env (if present) with godotenv before
// resolving the recognized variables, the way the teacher's LoadConfig reads
// MORFX_* variables after its own env bootstrap.
func LoadEnv(workspace string) (*Env, error) {
	envFile := filepath.Join(workspace, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, rerror.Wrap(rerror.KindConfig, "DotenvLoadFailed", "loading "+envFile, err)
		}
	}
	return &Env{
		ClangSystemIncludePath: os.Getenv("CLANG_SYSTEM_INCLUDE_PATH"),
		LibraryPath:            os.Getenv("LIBRARY_PATH"),
		FrameworkPath:          os.Getenv("FRAMEWORK_PATH"),
		IncludePath:            os.Getenv("INCLUDE_PATH"),
		CMakeArgs:              os.Getenv("CMAKE_ARGS"),
	}, nil
}

// Validate enforces spec section 6's CLI contract: an absolute workspace
// path and at least one syntactically valid crate name.
func Validate(cfg *Config) error {
	if cfg.Workspace == "" {
		return rerror.InvalidWorkspace("--workspace is required")
	}
	if !filepath.IsAbs(cfg.Workspace) {
		return rerror.InvalidWorkspace("--workspace must be an absolute path, got " + cfg.Workspace)
	}
	if len(cfg.Crates) == 0 {
		return rerror.InvalidCrateName("--crates is required")
	}
	for _, c := range cfg.Crates {
		if !isValidCrateName(c) {
			return rerror.InvalidCrateName("invalid crate name: " + c)
		}
	}
	return nil
}

func isValidCrateName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// ExpandCrates resolves the "all" shorthand against the workspace's
// configured crate set (spec section 6: "`all` expands to configured set").
func ExpandCrates(requested []string, configured []string) []string {
	for _, r := range requested {
		if strings.EqualFold(r, "all") {
			return configured
		}
	}
	return requested
}
