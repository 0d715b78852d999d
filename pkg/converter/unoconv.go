package converter

import (
	"context"
	"os/exec"

	"go.uber.org/zap"
)

// unoconvConverter drives unoconv, which accepts an explicit output path.
type unoconvConverter struct {
	base
}

func (c *unoconvConverter) Convert(ctx context.Context, sourcePath, targetPath string) error {
	if err := c.checkSource(sourcePath); err != nil {
		return err
	}
	if err := c.ensureTargetDir(targetPath); err != nil {
		return err
	}

	engineMu.Lock()
	defer engineMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "-f", "pdf", "-o", targetPath, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		c.logger.Error("unoconv conversion failed",
			zap.String("source", sourcePath),
			zap.ByteString("output", out),
			zap.Error(err))
		c.discardPartial(targetPath)
		return &ConversionError{Source: sourcePath, Cause: "engine failed", Err: err}
	}

	if err := c.waitForOutput(targetPath); err != nil {
		c.discardPartial(targetPath)
		return &ConversionError{Source: sourcePath, Cause: "engine produced no output", Err: err}
	}
	return nil
}
