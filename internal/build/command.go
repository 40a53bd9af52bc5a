// Package build starts the step that follows a finished render job, either
// directly as a shell command or through the Redis build queue.
package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
)

// maxOutputTail bounds how much command output is kept for error reports.
const maxOutputTail = 4 << 10

// Job describes the frames a build command works on. It is exposed to the
// command as FRAMES_DIR and FRAMES_COUNT.
type Job struct {
	FramesDir  string
	FrameCount uint64
	EventID    string
}

func (j Job) environ() []string {
	env := append(os.Environ(),
		"FRAMES_DIR="+j.FramesDir,
		"FRAMES_COUNT="+strconv.FormatUint(j.FrameCount, 10),
	)
	if j.EventID != "" {
		env = append(env, "BUILD_EVENT_ID="+j.EventID)
	}
	return env
}

// RunCommand runs command through sh -c and waits for it.
func RunCommand(ctx context.Context, log *logger.Logger, command string, job Job) error {
	const op = "build.RunCommand"

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = job.environ()
	// Cancellation kills the whole process group, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var out tailBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.Info("build command started", "command", command, "frames", job.FrameCount)
	start := time.Now()

	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, op, "build command failed").
			WithField("command", command).
			WithField("output", out.String())
	}

	log.Info("build command finished",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// tailBuffer keeps the last maxOutputTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n, _ := t.buf.Write(p)
	if over := t.buf.Len() - maxOutputTail; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
