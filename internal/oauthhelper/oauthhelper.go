// Package oauthhelper performs the one-shot OAuth2 authorization-code flow
// some upstream agents require before first use. It is invoked only by
// cmd/installer; the daemon core never imports it, matching SPEC_FULL.md
// §4.11's isolation of the OAuth concern to the installer call site.
package oauthhelper

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// Config names the authorization-code flow the upstream agent documents for
// itself (client id, endpoints, scopes). No client secret is needed for the
// public-client, loopback-redirect flow this package implements.
type Config struct {
	ClientID    string
	AuthURL     string
	TokenURL    string
	Scopes      []string
	RedirectURI string // loopback address, e.g. "http://127.0.0.1:8765/callback"
}

// Authorize runs the full flow: start a loopback listener, open the
// authorization URL for the operator to approve in a browser, capture the
// redirect's code, and exchange it for a token. The caller is responsible
// for printing authURL somewhere the operator can actually open it (the
// installer prints it to stdout).
func Authorize(ctx context.Context, cfg Config, printAuthURL func(url string)) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("oauthhelper: generate state: %w", err)
	}

	oc := &oauth2.Config{
		ClientID:    cfg.ClientID,
		Scopes:      cfg.Scopes,
		RedirectURL: cfg.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}

	addr, err := redirectAddr(cfg.RedirectURI)
	if err != nil {
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	srv := &http.Server{Addr: addr}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauthhelper: state mismatch in callback")
			return
		}
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, errMsg, http.StatusBadRequest)
			errCh <- fmt.Errorf("oauthhelper: authorization denied: %s", errMsg)
			return
		}
		code := q.Get("code")
		fmt.Fprintln(w, "authorization complete, you may close this tab")
		codeCh <- code
	})
	srv.Handler = mux

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("oauthhelper: listen on %s: %w", addr, err)
	}
	go srv.Serve(ln)
	defer srv.Close()

	printAuthURL(oc.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("oauthhelper: timed out waiting for authorization redirect")
	}

	token, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauthhelper: exchange code: %w", err)
	}
	return token, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// redirectAddr extracts the host:port a loopback listener must bind to
// in order to receive redirectURI's callback.
func redirectAddr(redirectURI string) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("oauthhelper: parse redirect uri %q: %w", redirectURI, err)
	}
	host := parsed.Host
	if host == "" {
		return "", fmt.Errorf("oauthhelper: redirect uri %q has no host", redirectURI)
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "80")
	}
	return host, nil
}
