// Package ritlog provides the process-wide structured logger used by every
// pipeline step. It wraps zap the way theRebelliousNerd-codenerd's daemon
// does: a console-encoded core on stderr always, plus a JSON-encoded
// workspace log file when a workspace is given. Opening the file renames a
// previous non-empty log to a single ".1" backup, the backup policy
// core/atomicwriter.go used for database snapshots, since no rotation
// library is a direct dependency anywhere in the retrieval pack.
package ritlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	current *zap.SugaredLogger = zap.NewNop().Sugar()
)

// Options controls where and how the logger writes.
type Options struct {
	// WorkspaceDir, when non-empty, gets a rotating log file at
	// <workspace>/.ritual/ritual.log.
	WorkspaceDir string
	// Debug enables debug-level console output in addition to the file sink.
	Debug bool
}

// Init installs the process-wide logger. Safe to call multiple times; the
// most recent call wins, matching how the orchestrator re-initializes
// logging per CLI invocation.
func Init(opts Options) (*zap.SugaredLogger, error) {
	var cores []zapcore.Core

	consoleLevel := zapcore.InfoLevel
	if opts.Debug {
		consoleLevel = zapcore.DebugLevel
	}
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), consoleLevel))

	if opts.WorkspaceDir != "" {
		sink, err := newRotatingSink(opts.WorkspaceDir)
		if err != nil {
			return nil, fmt.Errorf("ritlog: opening rotating sink: %w", err)
		}
		jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(sink), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Sugar()

	mu.Lock()
	current = logger
	mu.Unlock()
	return logger, nil
}

// L returns the current process-wide logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// rotatingSink is an os.File wrapper that, the first time it is opened,
// renames any pre-existing log file to a single ".1" backup -- the same
// "keep one backup, atomic rename" policy AtomicWriter.BackupOriginal used.
type rotatingSink struct {
	f *os.File
}

func newRotatingSink(workspaceDir string) (*rotatingSink, error) {
	dir := filepath.Join(workspaceDir, ".ritual")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "ritual.log")
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		backup := path + ".1"
		_ = os.Remove(backup)
		_ = os.Rename(path, backup)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &rotatingSink{f: f}, nil
}

func (s *rotatingSink) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *rotatingSink) Sync() error                 { return s.f.Sync() }
func (s *rotatingSink) Close() error                { return s.f.Close() }
