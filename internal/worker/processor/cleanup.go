package processor

import (
	"os"
	"path/filepath"
	"strconv"

	"renderfarm/internal/scheduler"
)

type Cleanup struct {
	workDir string
}

func NewCleanup(workDir string) *Cleanup {
	return &Cleanup{workDir: workDir}
}

// FrameDir is the scratch directory a frame is rendered into.
func (c *Cleanup) FrameDir(frame scheduler.FrameID) string {
	return filepath.Join(c.workDir, "frames", strconv.FormatUint(frame, 10))
}

// CleanupFrame removes a frame's scratch directory once it has been
// submitted or given up on.
func (c *Cleanup) CleanupFrame(frame scheduler.FrameID) error {
	err := os.RemoveAll(c.FrameDir(frame))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return err
}
