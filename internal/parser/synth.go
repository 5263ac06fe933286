package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rust-qt/ritual-sub000/internal/rerror"
)

// TranslationUnit is the synthesized input handed to the parsing backend
// (spec section 4.C protocol step 2): a single header combining every
// include directive, plus a trivial source file that includes it so the
// backend sees one compilation unit.
type TranslationUnit struct {
	HeaderPath string
	SourcePath string
}

// Synthesize writes the combined header and its driving source file into
// scratchDir, mirroring "a header combining the include directives plus a
// trivial #include-based source file, written into a scratch directory".
func Synthesize(cfg *Config, scratchDir string) (*TranslationUnit, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, rerror.Wrap(rerror.KindIO, "MkdirFailed", "creating scratch directory "+scratchDir, err)
	}

	var header strings.Builder
	header.WriteString("#pragma once\n")
	for _, include := range cfg.IncludeDirectives {
		fmt.Fprintf(&header, "#include <%s>\n", include)
	}

	headerPath := filepath.Join(scratchDir, "ritual_global_include.h")
	if err := os.WriteFile(headerPath, []byte(header.String()), 0o644); err != nil {
		return nil, rerror.Wrap(rerror.KindIO, "WriteFailed", "writing "+headerPath, err)
	}

	source := "#include \"ritual_global_include.h\"\n"
	sourcePath := filepath.Join(scratchDir, "ritual_global_include.cpp")
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		return nil, rerror.Wrap(rerror.KindIO, "WriteFailed", "writing "+sourcePath, err)
	}

	return &TranslationUnit{HeaderPath: headerPath, SourcePath: sourcePath}, nil
}
