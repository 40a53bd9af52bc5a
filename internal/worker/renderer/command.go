// Package renderer produces frame images by running an external program.
package renderer

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"renderfarm/internal/pkg/errors"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/scheduler"
)

const maxOutputTail = 4 << 10

type Request struct {
	// Source is the local path of the job's source asset.
	Source string
	Frame  scheduler.FrameID
	// OutDir receives the rendered image. It must not be shared between
	// frames.
	OutDir string
}

type Renderer interface {
	// Render renders one frame and returns the path of the image.
	Render(ctx context.Context, req Request) (string, error)
}

// Command runs a program per frame. The template is split on whitespace and
// {source}, {frame} and {output} are replaced in every argument; {output} is
// a file prefix inside the request's OutDir.
type Command struct {
	args []string
	log  *logger.Logger
}

func NewCommand(template string, log *logger.Logger) (*Command, error) {
	args := strings.Fields(template)
	if len(args) == 0 {
		return nil, errors.ValidationField("RENDER_COMMAND", "render command is empty").
			WithOp("renderer.NewCommand")
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Command{args: args, log: log.WithComponent("renderer")}, nil
}

func (c *Command) Render(ctx context.Context, req Request) (string, error) {
	const op = "renderer.Render"

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return "", errors.Wrap(err, op, "create output directory")
	}

	r := strings.NewReplacer(
		"{source}", req.Source,
		"{frame}", strconv.FormatUint(req.Frame, 10),
		"{output}", filepath.Join(req.OutDir, "frame_"),
	)
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.WaitDelay = 5 * time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log := c.log.FromContext(ctx).WithFrameID(req.Frame)
	log.Debug("render started", "args", args)
	start := time.Now()

	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(err, op, "render command failed").
			WithField("frame_id", req.Frame).
			WithField("output", tail(out.Bytes()))
	}

	path, err := newestFile(req.OutDir)
	if err != nil {
		return "", errors.Wrap(err, op, "read output directory").WithField("frame_id", req.Frame)
	}
	if path == "" {
		return "", errors.New(errors.CodeInternal, "render command produced no image").
			WithOp(op).
			WithField("frame_id", req.Frame).
			WithField("output", tail(out.Bytes()))
	}

	log.Info("frame rendered",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

// newestFile returns the most recently modified regular file in dir, or ""
// when there is none. Renderers pick their own suffix and padding, so the
// exact name is not known up front.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var (
		newest  string
		modTime time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return "", err
		}
		if newest == "" || info.ModTime().After(modTime) {
			newest = filepath.Join(dir, e.Name())
			modTime = info.ModTime()
		}
	}
	return newest, nil
}

func tail(b []byte) string {
	if len(b) > maxOutputTail {
		b = b[len(b)-maxOutputTail:]
	}
	return string(b)
}
