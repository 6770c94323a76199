package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/autoshorts/internal/shared"
)

// CallbackPath is where the OAuth provider redirects after consent.
const CallbackPath = "/callback"

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// TokenSink persists an exchanged token. It runs before the browser sees the success page.
type TokenSink func(ctx context.Context, token *oauth2.Token) error

// OAuthHandler handles one OAuth2 authorization code callback.
//
// Only the first callback is processed; later ones are rejected.
type OAuthHandler struct {
	config      *oauth2.Config
	state       string
	sink        TokenSink
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a handler for config. state must be the random token sent in the auth URL.
//
// sink may be nil when the caller only reads [OAuthHandler.Result].
func NewOAuthHandler(config *oauth2.Config, state string, sink TokenSink) *OAuthHandler {
	return &OAuthHandler{
		config:     config,
		state:      state,
		sink:       sink,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{CallbackPath}
}

// AuthCodeURL is the consent URL with offline access so the provider issues a refresh token.
func (h *OAuthHandler) AuthCodeURL() string {
	return h.config.AuthCodeURL(h.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ServeHTTP validates state, exchanges the code and hands the token to the sink.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.Send(OAuthResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.Send(OAuthResult{err: fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(r.Context(), code)
	if err != nil {
		h.Send(OAuthResult{err: fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}
	if token.RefreshToken == "" {
		h.Send(OAuthResult{Token: token, err: fmt.Errorf("%w: provider returned no refresh token", shared.ErrMissingCredentials)})
		http.Error(w, "No refresh token issued; revoke access and try again", http.StatusBadRequest)
		return
	}

	if h.sink != nil {
		if err := h.sink(r.Context(), token); err != nil {
			h.Send(OAuthResult{Token: token, err: fmt.Errorf("failed to store token: %w", err)})
			http.Error(w, "Failed to store credentials", http.StatusInternalServerError)
			return
		}
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// Wait blocks until the callback completes or ctx is done.
func (h *OAuthHandler) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case result, ok := <-h.resultChan:
		if !ok {
			return nil, errors.New("oauth flow already consumed")
		}
		return result.Token, result.Error()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for authorization: %v", shared.ErrTimeout, ctx.Err())
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>autoshorts: YouTube connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #FF0000; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ YouTube connected</h1>
        <p>Credentials are stored. You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
