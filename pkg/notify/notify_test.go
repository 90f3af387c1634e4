package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockNotifier implements ntfy.Notifier for testing.
type mockNotifier struct {
	schema string
	mu     sync.Mutex
	calls  []sendCall
	err    error
}

type sendCall struct {
	dest string
	text string
}

func (m *mockNotifier) Send(_ context.Context, dest, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{dest: dest, text: text})
	return m.err
}

func (m *mockNotifier) Schema() string { return m.schema }
func (m *mockNotifier) String() string { return "mock-" + m.schema }

func (m *mockNotifier) getCalls() []sendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]sendCall, len(m.calls))
	copy(res, m.calls)
	return res
}

// mockLogger captures log output for testing.
type mockLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *mockLogger) Print(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func (l *mockLogger) getMsgs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	res := make([]string, len(l.msgs))
	copy(res, l.msgs)
	return res
}

func TestNew(t *testing.T) {
	t.Run("no channels returns nil service", func(t *testing.T) {
		svc, err := New(Params{}, &mockLogger{})
		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	errTests := []struct {
		name    string
		params  Params
		wantErr string
	}{
		{name: "unknown channel", params: Params{Channels: []string{"pager"}}, wantErr: `unknown notification channel: "pager"`},
		{name: "webhook without urls", params: Params{Channels: []string{"webhook"}}, wantErr: "notify_webhook_urls is required"},
		{name: "email without host", params: Params{Channels: []string{"email"}}, wantErr: "notify_smtp_host is required"},
		{name: "email without from", params: Params{Channels: []string{"email"}, SMTPHost: "smtp.example.com"},
			wantErr: "notify_email_from is required"},
		{name: "email without to", params: Params{Channels: []string{"email"}, SMTPHost: "smtp.example.com", EmailFrom: "a@example.com"},
			wantErr: "notify_email_to is required"},
		{name: "slack without token", params: Params{Channels: []string{"slack"}, SlackChannel: "general"},
			wantErr: "notify_slack_token and notify_slack_channel are required"},
		{name: "telegram without chat", params: Params{Channels: []string{"telegram"}, TelegramToken: "tok"},
			wantErr: "notify_telegram_token and notify_telegram_chat are required"},
		{name: "custom without script", params: Params{Channels: []string{"custom"}}, wantErr: "notify_custom_script is required"},
	}
	for _, tc := range errTests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.params, &mockLogger{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}

	t.Run("webhook urls become separate channels", func(t *testing.T) {
		svc, err := New(Params{
			Channels:    []string{" Webhook "},
			OnComplete:  true,
			WebhookURLs: []string{"https://a.example.com", "https://b.example.com"},
		}, &mockLogger{})
		require.NoError(t, err)
		require.NotNil(t, svc)
		require.Len(t, svc.channels, 2)
		assert.Equal(t, "https://b.example.com", svc.channels[1].dest)
		assert.True(t, svc.onComplete)
		assert.Equal(t, defaultTimeout, svc.timeout)
	})

	t.Run("email and slack destinations", func(t *testing.T) {
		svc, err := New(Params{
			Channels:     []string{"email", "slack"},
			SMTPHost:     "smtp.example.com",
			SMTPPort:     587,
			EmailFrom:    "clockon@example.com",
			EmailTo:      []string{"a@example.com", "b@example.com"},
			SlackToken:   "xoxb",
			SlackChannel: "attendance",
			TimeoutMs:    2500,
		}, &mockLogger{})
		require.NoError(t, err)
		require.Len(t, svc.channels, 2)
		assert.Equal(t, "mailto:a@example.com,b@example.com?from=clockon%40example.com&subject=clockon+notification", svc.channels[0].dest)
		assert.Equal(t, "slack:attendance", svc.channels[1].dest)
		assert.Equal(t, 2500*time.Millisecond, svc.timeout)
	})

	t.Run("custom script", func(t *testing.T) {
		svc, err := New(Params{Channels: []string{"custom"}, CustomScript: "/usr/local/bin/notify.sh"}, &mockLogger{})
		require.NoError(t, err)
		require.NotNil(t, svc.script)
		assert.Equal(t, "/usr/local/bin/notify.sh", svc.script.path)
	})

	t.Run("telegram uses html parse mode", func(t *testing.T) {
		orig := telegramChannelMaker
		telegramChannelMaker = func(p Params) (channel, error) {
			return channel{notifier: &mockNotifier{schema: "telegram"}, dest: "telegram:" + p.TelegramChat, htmlEscape: true}, nil
		}
		t.Cleanup(func() { telegramChannelMaker = orig })

		svc, err := New(Params{Channels: []string{"telegram"}, TelegramToken: "tok", TelegramChat: "-100"}, &mockLogger{})
		require.NoError(t, err)
		require.Len(t, svc.channels, 1)
		assert.True(t, svc.channels[0].htmlEscape)
	})

	t.Run("telegram api failure disables channel and redacts token", func(t *testing.T) {
		orig := telegramChannelMaker
		telegramChannelMaker = func(p Params) (channel, error) {
			return channel{}, fmt.Errorf("get https://api.telegram.org/bot%s/getMe: 401", p.TelegramToken)
		}
		t.Cleanup(func() { telegramChannelMaker = orig })

		log := &mockLogger{}
		svc, err := New(Params{Channels: []string{"telegram"}, TelegramToken: "123:secret", TelegramChat: "-100"}, log)
		require.NoError(t, err)
		require.NotNil(t, svc)
		assert.Empty(t, svc.channels)

		msgs := log.getMsgs()
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0], "telegram channel disabled")
		assert.Contains(t, msgs[0], "[REDACTED]")
		assert.NotContains(t, msgs[0], "123:secret")
		assert.Contains(t, msgs[1], "no notification channel left")
	})
}

func TestService_Send(t *testing.T) {
	newSvc := func(onError, onComplete bool, chs ...channel) (*Service, *mockLogger) {
		log := &mockLogger{}
		return &Service{channels: chs, onError: onError, onComplete: onComplete,
			timeout: time.Second, hostname: "desk-01", log: log}, log
	}

	t.Run("nil receiver is no-op", func(t *testing.T) {
		var svc *Service
		svc.Send(context.Background(), Result{Outcome: OutcomeSuccess})
	})

	tests := []struct {
		name       string
		onError    bool
		onComplete bool
		outcome    string
		wantCalls  int
	}{
		{name: "success with on-complete", onComplete: true, outcome: OutcomeSuccess, wantCalls: 1},
		{name: "success without on-complete", onError: true, outcome: OutcomeSuccess, wantCalls: 0},
		{name: "failure with on-error", onError: true, outcome: OutcomeFailure, wantCalls: 1},
		{name: "failure without on-error", onComplete: true, outcome: OutcomeFailure, wantCalls: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockNotifier{schema: "http"}
			svc, _ := newSvc(tc.onError, tc.onComplete, channel{notifier: mock, dest: "https://example.com/hook"})
			svc.Send(context.Background(), Result{Outcome: tc.outcome, Intent: "on"})
			assert.Len(t, mock.getCalls(), tc.wantCalls)
		})
	}

	t.Run("notifier errors are logged", func(t *testing.T) {
		mock := &mockNotifier{schema: "http", err: errors.New("connection refused")}
		svc, log := newSvc(true, true, channel{notifier: mock, dest: "https://example.com/hook"})
		svc.Send(context.Background(), Result{Outcome: OutcomeSuccess, Intent: "off"})

		msgs := log.getMsgs()
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], "notification failed for mock-http")
		assert.Contains(t, msgs[0], "connection refused")
	})

	t.Run("html escaped only for telegram", func(t *testing.T) {
		tg := &mockNotifier{schema: "telegram"}
		plain := &mockNotifier{schema: "http"}
		svc, _ := newSvc(true, false,
			channel{notifier: tg, dest: "telegram:-100?parseMode=HTML", htmlEscape: true},
			channel{notifier: plain, dest: "https://example.com/hook"})
		svc.Send(context.Background(), Result{Outcome: OutcomeFailure, Intent: "on", Error: "unexpected <nil> & more"})

		require.Len(t, tg.getCalls(), 1)
		assert.Contains(t, tg.getCalls()[0].text, "unexpected &lt;nil&gt; &amp; more")
		require.Len(t, plain.getCalls(), 1)
		assert.Contains(t, plain.getCalls()[0].text, "unexpected <nil> & more")
	})
}

func TestService_formatMessage(t *testing.T) {
	svc := &Service{hostname: "desk-01"}

	t.Run("success", func(t *testing.T) {
		msg := svc.formatMessage(Result{
			Outcome: OutcomeSuccess, Intent: "on", Status: "Clocked Off", Action: "CLKONBTN", Duration: "2 seconds",
		})
		assert.Equal(t, "clockon on done on desk-01\n\n"+
			"status:   Clocked Off\n"+
			"action:   CLKONBTN\n"+
			"duration: 2 seconds\n", msg)
	})

	t.Run("dry run", func(t *testing.T) {
		msg := svc.formatMessage(Result{Outcome: OutcomeSuccess, Intent: "off", Status: "Clocked On", Action: "CLKOFFBTN", DryRun: true})
		assert.Contains(t, msg, "action:   CLKOFFBTN (dry run)")
	})

	t.Run("failure", func(t *testing.T) {
		msg := svc.formatMessage(Result{Outcome: OutcomeFailure, Intent: "off", Error: "login stage: login failed"})
		assert.Contains(t, msg, "clockon off failed on desk-01")
		assert.Contains(t, msg, "error:    login stage: login failed")
		assert.NotContains(t, msg, "status:")
		assert.NotContains(t, msg, "action:")

		lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")
		assert.Len(t, lines, 3) // header, blank, error
	})
}
