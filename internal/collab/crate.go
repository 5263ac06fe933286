// Package collab implements the thin External Collaborator Interfaces (spec
// section 4.I): emitting the generated crate's package layout and the
// build-script data handoff JSON, a scope that spec section 1 explicitly
// keeps outside the core pipeline components but still exercises from
// internal/pipeline's crate_write step. Templating follows
// cmd/morfx-provider-gen/main.go's text/template usage; atomic file writes
// follow internal/db/atomic.go's temp-then-rename discipline (itself
// grounded on core/atomicwriter.go).
package collab

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// ManifestData is the Cargo.toml-equivalent manifest (spec section 6:
// "Emitted package layout").
type ManifestData struct {
	CrateName    string
	CrateVersion string
	Dependencies map[string]string
}

var manifestTemplate = template.Must(template.New("manifest").Parse(
	`[package]
name = "{{.CrateName}}"
version = "{{.CrateVersion}}"

[dependencies]
{{- range $name, $version := .Dependencies}}
{{$name}} = "{{$version}}"
{{- end}}
`))

// RenderManifest renders the crate manifest text.
func RenderManifest(data ManifestData) (string, error) {
	var sb strings.Builder
	if err := manifestTemplate.Execute(&sb, data); err != nil {
		return "", rerror.Wrap(rerror.KindIO, "ManifestRenderFailed", "rendering manifest for "+data.CrateName, err)
	}
	return sb.String(), nil
}

// BuildScriptData is the build-script handoff JSON (spec section 6:
// "{cpp_build_config, cpp_wrapper_lib_name, cpp_lib_version}"), read by the
// consumer crate's build.rs-equivalent at its own build time.
type BuildScriptData struct {
	CppBuildConfig    map[string]string `json:"cpp_build_config"`
	CppWrapperLibName string            `json:"cpp_wrapper_lib_name"`
	CppLibVersion     string            `json:"cpp_lib_version"`
}

// Layout is the emitted package layout (spec section 6): manifest, build
// script data, C wrapper sources under c_lib/, generated host sources under
// src/, and the FFI include file.
type Layout struct {
	Manifest        string
	BuildScriptData BuildScriptData
	WrapperSources  map[string]string // c_lib/<name> -> content
	HostSources     map[string]string // src/<name> -> content
	FFIInclude      string
}

// Write flushes layout to destDir, one atomically-written file per entry
// (spec section 6's package layout), creating c_lib/ and src/ as needed.
func Write(destDir string, layout Layout) error {
	if err := atomicWrite(filepath.Join(destDir, "Cargo.toml"), []byte(layout.Manifest)); err != nil {
		return err
	}

	buildData, err := json.MarshalIndent(layout.BuildScriptData, "", "  ")
	if err != nil {
		return rerror.Wrap(rerror.KindIO, "BuildScriptDataMarshalFailed", "marshaling build_script_data.json", err)
	}
	if err := atomicWrite(filepath.Join(destDir, "build_script_data.json"), buildData); err != nil {
		return err
	}

	if err := atomicWrite(filepath.Join(destDir, "c_lib", "ffi.h"), []byte(layout.FFIInclude)); err != nil {
		return err
	}
	for name, content := range layout.WrapperSources {
		if err := atomicWrite(filepath.Join(destDir, "c_lib", name), []byte(content)); err != nil {
			return err
		}
	}
	for name, content := range layout.HostSources {
		if err := atomicWrite(filepath.Join(destDir, "src", name), []byte(content)); err != nil {
			return err
		}
	}
	return nil
}

// atomicWrite writes data to path via write-temp-then-rename, the same
// discipline internal/db/atomic.go uses for the database file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerror.Wrap(rerror.KindIO, "MkdirFailed", "creating "+dir, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return rerror.Wrap(rerror.KindIO, "WriteFailed", "writing temp file "+tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return rerror.Wrap(rerror.KindIO, "RenameFailed", "renaming "+tmp+" to "+path, err)
	}
	return nil
}
