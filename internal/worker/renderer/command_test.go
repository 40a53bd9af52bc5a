package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderfarm/internal/pkg/errors"
)

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "scene.blend")
	require.NoError(t, os.WriteFile(src, []byte("scene"), 0o644))
	return src
}

func TestCommandRender(t *testing.T) {
	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "7")

	c, err := NewCommand("cp {source} {output}{frame}.png", nil)
	require.NoError(t, err)

	path, err := c.Render(context.Background(), Request{Source: src, Frame: 7, OutDir: out})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "frame_7.png"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "scene", string(data))
}

func TestCommandRenderFailures(t *testing.T) {
	src := writeSource(t)

	tests := []struct {
		name     string
		template string
	}{
		{name: "non-zero exit", template: "false {frame}"},
		{name: "no image", template: "true {output}"},
		{name: "missing program", template: "renderfarm-no-such-renderer {frame}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCommand(tt.template, nil)
			require.NoError(t, err)

			_, err = c.Render(context.Background(), Request{Source: src, Frame: 1, OutDir: t.TempDir()})
			require.Error(t, err)
			assert.Equal(t, uint64(1), errors.GetFields(err)["frame_id"])
		})
	}
}

func TestCommandRenderCanceled(t *testing.T) {
	c, err := NewCommand("sleep 30", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Render(ctx, Request{Frame: 0, OutDir: t.TempDir()})
	assert.Error(t, err)
}

func TestNewCommandEmpty(t *testing.T) {
	_, err := NewCommand("   ", nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestTail(t *testing.T) {
	long := make([]byte, maxOutputTail+10)
	for i := range long {
		long[i] = 'a'
	}
	long[len(long)-1] = 'z'

	got := tail(long)
	assert.Len(t, got, maxOutputTail)
	assert.Equal(t, byte('z'), got[len(got)-1])
	assert.Equal(t, "short", tail([]byte("short")))
}
