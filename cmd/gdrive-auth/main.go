// Command gdrive-auth mints the refresh token the gdrive storage provider
// needs. It runs a one-shot local OAuth callback and prints the token.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"renderfarm/internal/config"
	"renderfarm/internal/pkg/logger"
	"renderfarm/internal/storage"
)

const authTimeout = 3 * time.Minute

func main() {
	logCfg := logger.DefaultConfig()
	logCfg.Format = "text"
	logCfg.ServiceName = "renderfarm-gdrive-auth"
	log := logger.New(logCfg)

	g, err := config.LoadGDrive(false)
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.LogFatal("failed to open callback listener", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	conf := storage.OAuthConfig(g, redirectURL)
	state := randomState()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, codeCh, errCh))

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()

	// Offline access with forced consent so Google returns a refresh token.
	authURL := conf.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Println("Open this URL in a browser:")
	fmt.Println()
	fmt.Println(authURL)
	fmt.Println()
	log.Info("waiting for authorization", "redirect_url", redirectURL)

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		_ = srv.Close()
		log.LogFatal("authorization failed", err)
	case <-time.After(authTimeout):
		_ = srv.Close()
		log.LogFatal("authorization timed out", nil, "timeout", authTimeout)
	}
	_ = srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		log.LogFatal("token exchange failed", err)
	}

	// Google omits the refresh token when the app was already authorized.
	if strings.TrimSpace(tok.RefreshToken) == "" {
		log.Warn("no refresh_token returned; revoke the app at https://myaccount.google.com/permissions and retry")
		return
	}

	fmt.Println("GDRIVE_REFRESH_TOKEN=" + tok.RefreshToken)
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			send(errCh, fmt.Errorf("invalid state"))
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "auth error: "+e, http.StatusBadRequest)
			send(errCh, fmt.Errorf("auth error: %s", e))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			send(errCh, fmt.Errorf("missing code"))
			return
		}

		fmt.Fprintln(w, "Authorized. You can close this window.")
		send(codeCh, code)
	}
}

// send never blocks; only the first result matters.
func send[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func randomState() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
