package converter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// sofficeConverter drives LibreOffice in headless mode. soffice derives the
// output filename from the source basename, so conversion goes through a
// scratch directory and the produced PDF is moved to the requested target.
type sofficeConverter struct {
	base
}

func (c *sofficeConverter) Convert(ctx context.Context, sourcePath, targetPath string) error {
	if err := c.checkSource(sourcePath); err != nil {
		return err
	}
	if err := c.ensureTargetDir(targetPath); err != nil {
		return err
	}

	engineMu.Lock()
	defer engineMu.Unlock()

	scratch, err := os.MkdirTemp("", "soffice-out-")
	if err != nil {
		return &ConversionError{Source: sourcePath, Cause: "creating scratch directory", Err: err}
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary,
		"--headless", "--convert-to", "pdf", "--outdir", scratch, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		c.logger.Error("soffice conversion failed",
			zap.String("source", sourcePath),
			zap.ByteString("output", out),
			zap.Error(err))
		c.discardPartial(targetPath)
		return &ConversionError{Source: sourcePath, Cause: "engine failed", Err: err}
	}

	produced := filepath.Join(scratch, producedName(sourcePath))
	if err := c.waitForOutput(produced); err != nil {
		c.discardPartial(produced)
		c.discardPartial(targetPath)
		return &ConversionError{Source: sourcePath, Cause: "engine produced no output", Err: err}
	}

	if err := os.Rename(produced, targetPath); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		data, rerr := os.ReadFile(produced)
		if rerr == nil {
			rerr = os.WriteFile(targetPath, data, 0o644)
		}
		if rerr != nil {
			c.discardPartial(targetPath)
			return &ConversionError{Source: sourcePath, Cause: "moving output", Err: err}
		}
	}

	if err := c.waitForOutput(targetPath); err != nil {
		c.discardPartial(targetPath)
		return &ConversionError{Source: sourcePath, Cause: "output verification failed", Err: err}
	}
	return nil
}

// producedName is the PDF filename soffice derives from the source.
func producedName(sourcePath string) string {
	name := filepath.Base(sourcePath)
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name + ".pdf"
}
