package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lyx/internal/shared"
	"golang.org/x/oauth2"
)

// GeniusEndpoint is the Genius OAuth2 endpoint. Client credentials are sent in the request body.
var GeniusEndpoint = oauth2.Endpoint{
	AuthURL:   "https://api.genius.com/oauth/authorize",
	TokenURL:  "https://api.genius.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

const successPage = `<!DOCTYPE html>
<html>
<head><title>lyx</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
<h1>Authorization successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

// CallbackResult is the outcome of the authorization code callback.
type CallbackResult struct {
	Token *oauth2.Token
	Err   error
}

// CallbackHandler receives the redirect from the consent page and exchanges the code for a token.
//
// Only the first request is processed; later ones are rejected.
type CallbackHandler struct {
	config  *oauth2.Config
	state   string
	path    string
	client  *http.Client
	handled atomic.Bool
	once    sync.Once
	results chan CallbackResult
}

// NewCallbackHandler serves the path of config.RedirectURL, expecting state back from the provider.
// client, when set, is used for the token exchange.
func NewCallbackHandler(config *oauth2.Config, state string, client *http.Client) *CallbackHandler {
	path := "/callback"
	if u, err := url.Parse(config.RedirectURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return &CallbackHandler{
		config:  config,
		state:   state,
		path:    path,
		client:  client,
		results: make(chan CallbackResult, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if query.Get("state") != h.state {
		h.send(CallbackResult{Err: fmt.Errorf("%w: state mismatch in callback", shared.ErrInvalidCredentials)})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: authorization denied: %s %s", shared.ErrInvalidCredentials, query.Get("error"), query.Get("error_description"))
		h.send(CallbackResult{Err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}
	token, err := h.config.Exchange(ctx, code, oauth2.SetAuthURLParam("response_type", "code"))
	if err != nil {
		h.send(CallbackResult{Err: fmt.Errorf("%w: token exchange failed: %v", shared.ErrInvalidCredentials, err)})
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.send(CallbackResult{Token: token})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

func (h *CallbackHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one result, then is closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}

// AuthorizeOpts configures [Authorize].
type AuthorizeOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint // GeniusEndpoint when zero
	HTTPClient   *http.Client
	Logger       *log.Logger
	// Visit is handed the consent page URL, typically to print it and open a browser.
	Visit   func(authURL string) error
	Timeout time.Duration
}

// Authorize runs the authorization code flow against a local callback server listening on the redirect URL's host.
func Authorize(ctx context.Context, opts AuthorizeOpts) (*oauth2.Token, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and client secret are required", shared.ErrMissingCredentials)
	}

	redirect, err := url.Parse(opts.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: invalid redirect url %q", shared.ErrInvalidArgument, opts.RedirectURL)
	}

	if opts.Endpoint.AuthURL == "" {
		opts.Endpoint = GeniusEndpoint
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{"me"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURL,
		Scopes:       opts.Scopes,
		Endpoint:     opts.Endpoint,
	}
	state := shared.GenerateID()
	handler := NewCallbackHandler(config, state, opts.HTTPClient)

	router := NewRouter()
	router.Use(Logging(logger))
	router.Mount(handler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	authURL := config.AuthCodeURL(state)
	logger.Info("waiting for authorization", "callback", opts.RedirectURL)
	if opts.Visit != nil {
		if err := opts.Visit(authURL); err != nil {
			logger.Warn("failed to open authorization page", "error", err)
		}
	}

	select {
	case result := <-handler.Result():
		if result.Err != nil {
			return nil, result.Err
		}
		logger.Info("authorization complete")
		return result.Token, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: no authorization callback received", shared.ErrTimeout)
		}
		return nil, ctx.Err()
	}
}
