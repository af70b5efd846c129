package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/time/rate"
)

// fragmentShim converts the token fragment into a query string the
// listener can actually see. Fragments never leave the browser, so the
// callback page forwards them itself.
const fragmentShim = `<!DOCTYPE html>
<html>
<head><title>Signing in…</title></head>
<body>
<p>Completing sign-in…</p>
<script>
  var hash = window.location.hash.replace(/^#/, "");
  window.location.replace("/auth/complete" + (hash ? "?" + hash : ""));
</script>
</body>
</html>`

const completePage = `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body><p>Sign-in complete. You can close this window and return to the app.</p></body>
</html>`

// Loopback is a desktop Surface: it binds a listener on the loopback
// interface, opens the system browser at the authorization URL, and
// waits for the provider to redirect back to the listener.
type Loopback struct {
	// Addr is the listen address. Defaults to an ephemeral loopback
	// port, which is what the provider's wildcard localhost redirect
	// allowance expects.
	Addr string

	// OpenURL launches the user's browser. Defaults to the platform
	// opener; tests override it.
	OpenURL func(url string) error

	// Limit throttles callback hits so a misbehaving page cannot spin
	// the listener. Defaults to one hit per second with a small burst.
	Limit *rate.Limiter

	Logger *slog.Logger
}

// Authenticate implements Surface. At most one callback wins; later
// hits on the same flow see a 409 and change nothing.
func (l *Loopback) Authenticate(ctx context.Context, build BuildAuthorizeURL) (string, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := l.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind loopback listener: %w", err)
	}
	defer listener.Close()

	redirectTo := fmt.Sprintf("http://%s/auth/callback", listener.Addr().String())
	authorizeURL, err := build(redirectTo)
	if err != nil {
		return "", err
	}

	limiter := l.Limit
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 5)
	}

	resultCh := make(chan string, 1)

	server := &http.Server{
		Handler:           callbackHandler(resultCh, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	// Drain rather than kill: a losing callback still in flight when
	// the winner resolves the flow must get its conflict response.
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			_ = server.Close()
		}
	}()

	opener := l.OpenURL
	if opener == nil {
		opener = openSystemBrowser
	}
	if err := opener(authorizeURL); err != nil {
		return "", fmt.Errorf("failed to open browser: %w", err)
	}

	logger.Debug("waiting for provider callback", "redirect_to", redirectTo)

	select {
	case callbackURL := <-resultCh:
		return callbackURL, nil
	case err := <-serveErr:
		return "", fmt.Errorf("loopback listener failed: %w", err)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}

// callbackHandler serves one sign-in flow: the fragment shim on
// /auth/callback and the one-shot completion on /auth/complete. The
// first completion wins resultCh; later hits see 409 Conflict.
func callbackHandler(resultCh chan<- string, limiter *rate.Limiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fragmentShim))
	})
	mux.HandleFunc("/auth/complete", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		select {
		case resultCh <- "http://" + r.Host + r.URL.String():
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(completePage))
		default:
			// A callback already won this flow.
			http.Error(w, "sign-in already completed", http.StatusConflict)
		}
	})
	return mux
}

// openSystemBrowser launches the default browser for the current
// platform.
func openSystemBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
