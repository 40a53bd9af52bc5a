package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		status  int
		code    string
		wantErr bool
	}{
		{name: "success", query: "?state=s1&code=abc", status: http.StatusOK, code: "abc"},
		{name: "wrong state", query: "?state=other&code=abc", status: http.StatusBadRequest, wantErr: true},
		{name: "provider error", query: "?state=s1&error=access_denied", status: http.StatusBadRequest, wantErr: true},
		{name: "missing code", query: "?state=s1", status: http.StatusBadRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codeCh := make(chan string, 1)
			errCh := make(chan error, 1)
			h := callbackHandler("s1", codeCh, errCh)

			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))
			assert.Equal(t, tt.status, rec.Code)

			if tt.wantErr {
				assert.Len(t, errCh, 1)
				assert.Empty(t, codeCh)
				return
			}
			assert.Equal(t, tt.code, <-codeCh)
		})
	}
}

func TestCallbackHandlerOnlyFirstResult(t *testing.T) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	h := callbackHandler("s1", codeCh, errCh)

	for range 2 {
		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s1&code=abc", nil))
	}
	assert.Len(t, codeCh, 1)
}

func TestRandomState(t *testing.T) {
	a, b := randomState(), randomState()
	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
}
