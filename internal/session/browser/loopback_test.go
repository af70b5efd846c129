package browser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// driveCallback simulates the browser: fetch the callback page, then
// follow the shim to /auth/complete carrying the fragment as a query.
func driveCallback(t *testing.T, authorizeURL, fragment string) {
	t.Helper()

	u, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	redirectTo := u.Query().Get("redirect_to")
	require.NotEmpty(t, redirectTo)

	resp, err := http.Get(redirectTo)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "/auth/complete")

	complete := strings.Replace(redirectTo, "/auth/callback", "/auth/complete", 1)
	resp, err = http.Get(complete + "?" + fragment)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func buildFor(t *testing.T) BuildAuthorizeURL {
	t.Helper()
	return func(redirectTo string) (string, error) {
		return "https://id.example.com/authorize?provider=google&redirect_to=" + url.QueryEscape(redirectTo), nil
	}
}

func TestLoopbackDeliversCallback(t *testing.T) {
	t.Parallel()

	opened := make(chan string, 1)
	l := &Loopback{
		OpenURL: func(u string) error {
			opened <- u
			return nil
		},
	}

	go func() {
		authorizeURL := <-opened
		driveCallback(t, authorizeURL, "access_token=AAA&refresh_token=BBB")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	callbackURL, err := l.Authenticate(ctx, buildFor(t))
	require.NoError(t, err)
	require.Contains(t, callbackURL, "/auth/complete")

	u, err := url.Parse(callbackURL)
	require.NoError(t, err)
	require.Equal(t, "AAA", u.Query().Get("access_token"))
	require.Equal(t, "BBB", u.Query().Get("refresh_token"))
}

func TestLoopbackSingleCallbackWins(t *testing.T) {
	t.Parallel()

	resultCh := make(chan string, 1)
	srv := httptest.NewServer(callbackHandler(resultCh, rate.NewLimiter(rate.Every(time.Second), 5)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/auth/complete?access_token=FIRST")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second completion on the same flow changes nothing.
	resp, err = http.Get(srv.URL + "/auth/complete?access_token=SECOND")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	select {
	case got := <-resultCh:
		require.Contains(t, got, "access_token=FIRST")
	default:
		t.Fatal("winning callback never delivered")
	}
}

func TestLoopbackCancellation(t *testing.T) {
	t.Parallel()

	l := &Loopback{
		OpenURL: func(u string) error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := l.Authenticate(ctx, buildFor(t))
	require.ErrorIs(t, err, ErrCancelled)
}

func TestLoopbackRateLimit(t *testing.T) {
	t.Parallel()

	opened := make(chan string, 1)
	l := &Loopback{
		OpenURL: func(u string) error {
			opened <- u
			return nil
		},
		// One hit allowed, nothing more.
		Limit: rate.NewLimiter(rate.Every(time.Hour), 1),
	}

	limited := make(chan int, 1)
	go func() {
		authorizeURL := <-opened
		u, _ := url.Parse(authorizeURL)
		redirectTo := u.Query().Get("redirect_to")

		// First hit consumes the limiter budget on the callback page.
		resp, err := http.Get(redirectTo)
		if err == nil {
			_ = resp.Body.Close()
		}

		resp, err = http.Get(redirectTo)
		if err == nil {
			limited <- resp.StatusCode
			_ = resp.Body.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := l.Authenticate(ctx, buildFor(t))
	require.ErrorIs(t, err, ErrCancelled) // flow never completes

	select {
	case status := <-limited:
		require.Equal(t, http.StatusTooManyRequests, status)
	case <-time.After(time.Second):
		t.Fatal("rate-limited request never observed")
	}
}

func TestLoopbackBuildErrorSurfaces(t *testing.T) {
	t.Parallel()

	l := &Loopback{OpenURL: func(u string) error { return nil }}

	wantErr := context.DeadlineExceeded // any sentinel will do
	_, err := l.Authenticate(context.Background(), func(string) (string, error) {
		return "", wantErr
	})
	require.ErrorIs(t, err, wantErr)
}
