package httpkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, http.StatusNotFound, "UNKNOWN_WORKER", "no task for worker", map[string]any{"worker_id": "7"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`{"error":{"code":"UNKNOWN_WORKER","message":"no task for worker","details":{"worker_id":"7"}}}`,
		rec.Body.String())

	body, ok := ReadErr(rec.Body)
	require.True(t, ok)
	assert.Equal(t, "UNKNOWN_WORKER", body.Code)
	assert.Equal(t, "7", body.Details["worker_id"])
}

func TestWriteErrOmitsEmptyDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	assert.NotContains(t, rec.Body.String(), "details")
}

func TestReadErrRejectsOtherBodies(t *testing.T) {
	for _, body := range []string{"", "bad gateway\n", `{"status":"ok"}`, `{"error":{"message":"x"}}`} {
		_, ok := ReadErr(strings.NewReader(body))
		assert.False(t, ok, "body %q", body)
	}
}

func TestWriteBlob(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBlob(rec, []byte("scene"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Equal(t, "scene", rec.Body.String())
}
