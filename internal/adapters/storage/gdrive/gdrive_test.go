package gdrive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"renderfarm/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	srv, err := drive.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return NewClient(srv, "folder-1")
}

func TestPutObject(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "files"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "drive-file-9"})
	})

	out, err := client.PutObject(context.Background(), ports.PutObjectInput{
		ObjectKey:   "9",
		ContentType: "image/png",
		Reader:      strings.NewReader("frame nine"),
		Size:        10,
	})
	require.NoError(t, err)
	assert.Equal(t, "drive-file-9", out.Location)
	assert.Equal(t, int64(10), out.Size)
	assert.Contains(t, gotBody, "frame nine")
	assert.Contains(t, gotBody, `"folder-1"`)
}

func TestPutObjectError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"quota"}}`, http.StatusForbidden)
	})

	_, err := client.PutObject(context.Background(), ports.PutObjectInput{
		ObjectKey: "1",
		Reader:    strings.NewReader("x"),
	})
	assert.Error(t, err)
}

func TestDeleteObjectIgnoresMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	})

	assert.NoError(t, client.DeleteObject(context.Background(), "gone"))
}

func TestCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "files"), r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "folder-1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"files":[]}`)
	})

	assert.NoError(t, client.Check(context.Background()))
	assert.Equal(t, "gdrive", client.Provider())
}
