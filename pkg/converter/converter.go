// Package converter turns office documents (doc/docx) into PDFs by driving a
// local conversion engine. The engine is a single shared external process
// that is not safely reentrant, so every conversion in the process is
// serialized through one mutex regardless of which request triggered it.
package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
)

// Engine names accepted in configuration.
const (
	EngineSoffice = "soffice"
	EngineUnoconv = "unoconv"
)

// ConversionError is the tagged outcome of a failed conversion. No partial
// or corrupt target file remains when it is returned.
type ConversionError struct {
	Source string
	Cause  string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("converting %s: %s: %v", e.Source, e.Cause, e.Err)
	}
	return fmt.Sprintf("converting %s: %s", e.Source, e.Cause)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Converter converts an office document at sourcePath into a PDF at
// targetPath. Implementations are idempotent on retry and guarantee that a
// returned error leaves no output file behind.
type Converter interface {
	Convert(ctx context.Context, sourcePath, targetPath string) error
}

// engineMu serializes conversions process-wide. The underlying office engine
// keeps a single user profile on disk and crashes under concurrent use.
var engineMu sync.Mutex

// NewConverter selects the engine implementation from configuration, falling
// back to a platform default when none is set.
func NewConverter(cfg config.ConverterConfig, log *zap.Logger) (Converter, error) {
	engine := cfg.Engine
	if engine == "" {
		if runtime.GOOS == "linux" {
			engine = EngineUnoconv
		} else {
			engine = EngineSoffice
		}
	}

	switch engine {
	case EngineSoffice:
		binary := cfg.Binary
		if binary == "" {
			binary = "soffice"
		}
		return &sofficeConverter{base: newBase(binary, cfg, log)}, nil
	case EngineUnoconv:
		binary := cfg.Binary
		if binary == "" {
			binary = "unoconv"
		}
		return &unoconvConverter{base: newBase(binary, cfg, log)}, nil
	default:
		return nil, fmt.Errorf("unknown conversion engine %q", engine)
	}
}

type base struct {
	binary       string
	timeout      time.Duration
	waitAttempts int
	waitInterval time.Duration
	logger       *zap.Logger
}

func newBase(binary string, cfg config.ConverterConfig, log *zap.Logger) base {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	attempts := cfg.OutputWaitAttempts
	if attempts <= 0 {
		attempts = 5
	}
	interval := cfg.OutputWaitInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return base{
		binary:       binary,
		timeout:      timeout,
		waitAttempts: attempts,
		waitInterval: interval,
		logger:       log,
	}
}

// checkSource validates preconditions shared by both engines.
func (b base) checkSource(sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return &ConversionError{Source: sourcePath, Cause: "source missing", Err: err}
	}
	if info.Size() == 0 {
		return &ConversionError{Source: sourcePath, Cause: "source is empty"}
	}
	return nil
}

func (b base) ensureTargetDir(targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return &ConversionError{Source: targetPath, Cause: "creating output directory", Err: err}
	}
	return nil
}

// waitForOutput polls for a non-empty output file with a bounded number of
// attempts. The engine releases its file handle asynchronously after the
// process exits, so the first check can race the flush.
func (b base) waitForOutput(path string) error {
	var lastErr error
	for attempt := 0; attempt < b.waitAttempts; attempt++ {
		info, err := os.Stat(path)
		if err == nil && info.Size() > 0 {
			return nil
		}
		lastErr = err
		time.Sleep(b.waitInterval)
	}
	if lastErr != nil {
		return fmt.Errorf("output not produced after %d attempts: %w", b.waitAttempts, lastErr)
	}
	return fmt.Errorf("output empty after %d attempts", b.waitAttempts)
}

// discardPartial removes whatever the engine may have left at path. Called
// on every failure so retries start clean.
func (b base) discardPartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.logger.Warn("could not remove partial conversion output",
			zap.String("path", path), zap.Error(err))
	}
}
