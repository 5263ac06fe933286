package collab

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderManifestIncludesNameVersionAndDependencies(t *testing.T) {
	text, err := RenderManifest(ManifestData{
		CrateName:    "widgets",
		CrateVersion: "0.1.0",
		Dependencies: map[string]string{"libc": "0.2"},
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(text, `name = "widgets"`))
	assert.True(t, strings.Contains(text, `version = "0.1.0"`))
	assert.True(t, strings.Contains(text, `libc = "0.2"`))
}

func TestWriteEmitsEveryPackageLayoutEntry(t *testing.T) {
	dir := t.TempDir()
	layout := Layout{
		Manifest: "[package]\nname = \"widgets\"\n",
		BuildScriptData: BuildScriptData{
			CppBuildConfig:    map[string]string{"std": "c++17"},
			CppWrapperLibName: "widgets_wrapper",
			CppLibVersion:     "1.0",
		},
		WrapperSources: map[string]string{"wrapper.cpp": "// wrapper\n"},
		HostSources:    map[string]string{"lib.rs": "pub mod widgets;\n"},
		FFIInclude:     "// ffi.h\n",
	}

	require.NoError(t, Write(dir, layout))

	manifest, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	require.NoError(t, err)
	assert.Equal(t, layout.Manifest, string(manifest))

	buildDataRaw, err := os.ReadFile(filepath.Join(dir, "build_script_data.json"))
	require.NoError(t, err)
	var buildData BuildScriptData
	require.NoError(t, json.Unmarshal(buildDataRaw, &buildData))
	assert.Equal(t, "widgets_wrapper", buildData.CppWrapperLibName)

	wrapper, err := os.ReadFile(filepath.Join(dir, "c_lib", "wrapper.cpp"))
	require.NoError(t, err)
	assert.Equal(t, "// wrapper\n", string(wrapper))

	host, err := os.ReadFile(filepath.Join(dir, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, "pub mod widgets;\n", string(host))

	ffiInclude, err := os.ReadFile(filepath.Join(dir, "c_lib", "ffi.h"))
	require.NoError(t, err)
	assert.Equal(t, "// ffi.h\n", string(ffiInclude))
}

func TestWriteIsAtomicAndLeavesNoTempFilesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, Layout{Manifest: "[package]\n"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "no .tmp file should survive a successful write")
	}
}
