package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrAuthDenied is returned when the consent screen redirects back with an
// error instead of a code.
var ErrAuthDenied = errors.New("authorization denied")

type callbackResult struct {
	code string
	err  error
}

// LoopbackReceiver receives the authorization code of the desktop OAuth flow
// on a short-lived listener at http://127.0.0.1:<port>/.
type LoopbackReceiver struct {
	listener net.Listener
	server   *http.Server
	state    string
	verifier string
	result   chan callbackResult
}

// NewLoopbackReceiver listens on a free loopback port and points
// config.RedirectURL at it.
func NewLoopbackReceiver(config *oauth2.Config) (*LoopbackReceiver, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the oauth redirect: %w", err)
	}

	r := newReceiver()
	r.listener = listener
	r.server = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	config.RedirectURL = "http://" + listener.Addr().String() + "/"

	go r.server.Serve(listener)
	return r, nil
}

func newReceiver() *LoopbackReceiver {
	return &LoopbackReceiver{
		state:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
		result:   make(chan callbackResult, 1),
	}
}

// AuthCodeURL is the consent page the user opens in a browser.
func (r *LoopbackReceiver) AuthCodeURL(config *oauth2.Config) string {
	return config.AuthCodeURL(r.state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(r.verifier))
}

// ExchangeOptions must be passed to TokenFromWeb with the received code.
func (r *LoopbackReceiver) ExchangeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(r.verifier)}
}

// ServeHTTP handles the redirect from the consent screen. Only the first
// redirect is delivered.
func (r *LoopbackReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	var res callbackResult
	switch {
	case q.Get("state") != r.state:
		http.Error(w, "State mismatch.", http.StatusBadRequest)
		return
	case q.Get("error") != "":
		res.err = fmt.Errorf("%w: %s", ErrAuthDenied, q.Get("error"))
		http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusForbidden)
	case q.Get("code") == "":
		http.Error(w, "Missing code.", http.StatusBadRequest)
		return
	default:
		res.code = q.Get("code")
		fmt.Fprintln(w, "emscal is authorized. You can close this window.")
	}

	select {
	case r.result <- res:
	default:
	}
}

// Wait blocks until the redirect arrives or ctx is done.
func (r *LoopbackReceiver) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-r.result:
		return res.code, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for the oauth redirect: %w", ctx.Err())
	}
}

// Close stops the listener.
func (r *LoopbackReceiver) Close() error {
	if r.server == nil {
		return nil
	}
	return r.server.Close()
}
