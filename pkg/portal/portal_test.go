package portal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/umputun/clockon/pkg/attendance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSession = "IW_SessionID_=abcdefghijklmnopqrstuvwxyz01234" // 45 chars

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := New(Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultURL, c.cfg.URL)
		assert.Equal(t, DefaultUserAgent, c.cfg.UserAgent)
		assert.Equal(t, DefaultLoginSizeLimit, c.cfg.LoginSizeLimit)
		assert.Zero(t, c.http.Timeout)
	})

	t.Run("adds trailing slash", func(t *testing.T) {
		c, err := New(Config{URL: "https://portal.example.com:4465"})
		require.NoError(t, err)
		assert.Equal(t, "https://portal.example.com:4465/", c.cfg.URL)
	})

	t.Run("insecure tls and timeout", func(t *testing.T) {
		c, err := New(Config{InsecureTLS: true, Timeout: 5 * time.Second})
		require.NoError(t, err)
		tr, ok := c.http.Transport.(*http.Transport)
		require.True(t, ok)
		assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
		assert.True(t, tr.DisableKeepAlives)
		assert.Equal(t, 5*time.Second, c.http.Timeout)
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := New(Config{URL: "ftp://portal.example.com/"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheme must be http or https")
	})
}

func TestClient_CallbackURL(t *testing.T) {
	c, err := New(Config{URL: "https://portal.example.com:4465/"})
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com:4465/$/callback?callback=BRKSTABTN.DoOnAsyncClick&which=0&modifiers=",
		c.CallbackURL(attendance.BreakOn))
}

func TestClient_AcquireCookie(t *testing.T) {
	t.Run("takes leading 45 chars", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/", r.URL.Path)
			assert.Equal(t, DefaultUserAgent, r.UserAgent())
			w.Header().Add("Set-Cookie", testSession+"; path=/; HttpOnly")
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL})
		require.NoError(t, err)
		cookie, err := c.AcquireCookie(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testSession, cookie)
		assert.Len(t, cookie, SessionIDLen)
	})

	t.Run("header missing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		}))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL})
		require.NoError(t, err)
		_, err = c.AcquireCookie(context.Background())
		require.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("header too short", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Add("Set-Cookie", "IW_SessionID_=short")
		}))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL})
		require.NoError(t, err)
		_, err = c.AcquireCookie(context.Background())
		var lenErr *BadHeaderLenError
		require.ErrorAs(t, err, &lenErr)
		assert.Equal(t, "IW_SessionID_=short", lenErr.Captured)
		assert.Contains(t, err.Error(), "got 19 chars, want 45")
	})

	t.Run("self-signed certificate with insecure tls", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Add("Set-Cookie", testSession)
		}))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL, InsecureTLS: true})
		require.NoError(t, err)
		cookie, err := c.AcquireCookie(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testSession, cookie)
	})

	t.Run("self-signed certificate rejected by default", func(t *testing.T) {
		srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Add("Set-Cookie", testSession)
		}))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL})
		require.NoError(t, err)
		_, err = c.AcquireCookie(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "request cookie")
	})
}

func TestClient_Login(t *testing.T) {
	newServer := func(t *testing.T, body string) *httptest.Server {
		t.Helper()
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, testSession, r.Header.Get("Cookie"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "worker", r.PostForm.Get("USRNMEEDT"))
			assert.Equal(t, "secret", r.PostForm.Get("PSSWRDEDT"))
			assert.Equal(t, "LOGINBTN", r.PostForm.Get("IW_Action"))
			_, _ = io.WriteString(w, body)
		}))
	}

	t.Run("dashboard returned", func(t *testing.T) {
		srv := newServer(t, "<html>dashboard</html>")
		defer srv.Close()

		c, err := New(Config{URL: srv.URL, Username: "worker", Password: "secret"})
		require.NoError(t, err)
		body, err := c.Login(context.Background(), testSession)
		require.NoError(t, err)
		assert.Equal(t, "<html>dashboard</html>", body)
	})

	t.Run("large page is a failure", func(t *testing.T) {
		srv := newServer(t, strings.Repeat("x", DefaultLoginSizeLimit))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL, Username: "worker", Password: "secret"})
		require.NoError(t, err)
		_, err = c.Login(context.Background(), testSession)
		require.ErrorIs(t, err, ErrLoginFailure)
	})

	t.Run("page just under limit", func(t *testing.T) {
		srv := newServer(t, strings.Repeat("x", 99))
		defer srv.Close()

		c, err := New(Config{URL: srv.URL, Username: "worker", Password: "secret", LoginSizeLimit: 100})
		require.NoError(t, err)
		body, err := c.Login(context.Background(), testSession)
		require.NoError(t, err)
		assert.Len(t, body, 99)
	})
}

func TestClient_SubmitAction(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/$/callback", r.URL.Path)
		assert.Equal(t, testSession, r.Header.Get("Cookie"))
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, "<response></response>")
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	body, err := c.SubmitAction(context.Background(), testSession, attendance.ClockOff)
	require.NoError(t, err)
	assert.Equal(t, "<response></response>", body)
	assert.Equal(t, "callback=CLKOFFBTN.DoOnAsyncClick&which=0&modifiers=", gotQuery)
}

func TestClient_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Set-Cookie", testSession)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.AcquireCookie(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
