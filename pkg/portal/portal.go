// Package portal talks to the time-attendance web portal over http.
// It acquires a session cookie, logs in and posts control callbacks, returning raw markup.
// Interpretation of that markup lives in the attendance package.
package portal

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/umputun/clockon/pkg/attendance"
)

// defaults reproducing the portal setup the tool was written for.
const (
	DefaultURL            = "https://webportal.clockon.com.au:4465/"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; rv:110.0) Gecko/20100101 Firefox/110.0"
	DefaultLoginSizeLimit = 75000

	// SessionIDLen is the number of leading Set-Cookie characters forming the session id.
	SessionIDLen = 45
)

// login form fields.
const (
	fieldUsername = "USRNMEEDT"
	fieldPassword = "PSSWRDEDT"
	fieldAction   = "IW_Action"
	loginAction   = "LOGINBTN"
)

// errors returned by the client.
var (
	ErrNoHeader     = errors.New("session header missing")
	ErrLoginFailure = errors.New("login failed")
)

// BadHeaderLenError is returned when the session header is shorter than SessionIDLen.
type BadHeaderLenError struct {
	Captured string
}

func (e *BadHeaderLenError) Error() string {
	return fmt.Sprintf("session header too short: got %d chars, want %d", len([]rune(e.Captured)), SessionIDLen)
}

// Config holds portal client settings. zero values fall back to the defaults above,
// except InsecureTLS and Timeout where zero means verify certificates and no timeout.
type Config struct {
	URL            string
	UserAgent      string
	Username       string
	Password       string
	InsecureTLS    bool          // skip certificate verification, the portal uses a self-signed cert
	Timeout        time.Duration // overall request timeout, 0 for none
	LoginSizeLimit int           // login responses of this size or larger are failures
}

// Client performs the portal requests. each run gets a fresh client, connections aren't reused.
type Client struct {
	cfg  Config
	http *http.Client
}

// New makes a client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.LoginSizeLimit <= 0 {
		cfg.LoginSizeLimit = DefaultLoginSizeLimit
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("portal url %q: scheme must be http or https", cfg.URL)
	}
	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureTLS, //nolint:gosec // portal serves a self-signed certificate
		},
	}

	return &Client{cfg: cfg, http: &http.Client{Transport: transport, Timeout: cfg.Timeout}}, nil
}

// AcquireCookie requests the portal root and returns the session id taken from the first
// SessionIDLen characters of the Set-Cookie header.
func (c *Client) AcquireCookie(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request cookie: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	values := resp.Header.Values("Set-Cookie")
	if len(values) == 0 {
		return "", ErrNoHeader
	}
	return sessionID(values[0])
}

// Login posts the login form with the session cookie and returns the dashboard markup.
// a response of LoginSizeLimit or more bytes is the portal's failure page.
func (c *Client) Login(ctx context.Context, cookie string) (string, error) {
	form := url.Values{}
	form.Set(fieldUsername, c.cfg.Username)
	form.Set(fieldPassword, c.cfg.Password)
	form.Set(fieldAction, loginAction)

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", cookie)

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if len(body) >= c.cfg.LoginSizeLimit {
		return "", fmt.Errorf("%w: response of %d bytes", ErrLoginFailure, len(body))
	}
	return body, nil
}

// SubmitAction posts the callback for the action's control and returns the xml response.
func (c *Client) SubmitAction(ctx context.Context, cookie string, action attendance.Action) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.CallbackURL(action), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", cookie)

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", action, err)
	}
	return body, nil
}

// CallbackURL returns the callback endpoint for the action's control.
func (c *Client) CallbackURL(action attendance.Action) string {
	return c.cfg.URL + "$/callback?callback=" + action.Code() + ".DoOnAsyncClick&which=0&modifiers="
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("make %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(data), nil
}

// sessionID takes the first SessionIDLen characters of the header value.
func sessionID(header string) (string, error) {
	runes := []rune(header)
	if len(runes) < SessionIDLen {
		return "", &BadHeaderLenError{Captured: header}
	}
	return string(runes[:SessionIDLen]), nil
}
