// Package notify sends the outcome of a clock transition to configured channels.
// Sending is best-effort: failures are logged and never change the run result.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"os"
	"strings"
	"time"

	ntfy "github.com/go-pkgz/notify"
)

// outcome values of Result.Outcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const defaultTimeout = 10 * time.Second

// Params holds configuration for creating a notification Service.
type Params struct {
	Channels      []string
	OnError       bool
	OnComplete    bool
	TimeoutMs     int
	TelegramToken string
	TelegramChat  string
	SlackToken    string
	SlackChannel  string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPStartTLS  bool
	EmailFrom     string
	EmailTo       []string
	WebhookURLs   []string
	CustomScript  string
}

// Service sends notifications through configured channels.
type Service struct {
	channels   []channel
	script     *scriptChannel
	onError    bool
	onComplete bool
	timeout    time.Duration
	hostname   string
	log        logger
}

// channel pairs a notifier with its destination URI.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // telegram uses HTML parse mode
}

type logger interface {
	Print(format string, args ...any)
}

// Result holds the data of a finished run.
type Result struct {
	Outcome  string `json:"outcome"` // "success" or "failure"
	Intent   string `json:"intent"`  // "on" or "off"
	Status   string `json:"status,omitempty"`
	Action   string `json:"action,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// New creates a notification Service from the given Params.
// returns nil, nil if no channels are configured; Send is nil-safe.
func New(p Params, log logger) (*Service, error) {
	if len(p.Channels) == 0 {
		return nil, nil //nolint:nilnil // nil service means notifications are off
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := &Service{
		onError:    p.OnError,
		onComplete: p.OnComplete,
		timeout:    defaultTimeout,
		hostname:   hostname,
		log:        log,
	}
	if p.TimeoutMs > 0 {
		svc.timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}

	for _, ch := range p.Channels {
		switch strings.TrimSpace(strings.ToLower(ch)) {
		case "telegram":
			if p.TelegramToken == "" || p.TelegramChat == "" {
				return nil, errors.New("telegram channel: notify_telegram_token and notify_telegram_chat are required")
			}
			c, cErr := telegramChannelMaker(p)
			if cErr != nil {
				// telegram init calls the api, an unreachable api disables the channel only
				log.Print("telegram channel disabled: %s", strings.ReplaceAll(cErr.Error(), p.TelegramToken, "[REDACTED]"))
				continue
			}
			svc.channels = append(svc.channels, c)
		case "email":
			c, cErr := makeEmailChannel(p)
			if cErr != nil {
				return nil, fmt.Errorf("email channel: %w", cErr)
			}
			svc.channels = append(svc.channels, c)
		case "slack":
			if p.SlackToken == "" || p.SlackChannel == "" {
				return nil, errors.New("slack channel: notify_slack_token and notify_slack_channel are required")
			}
			svc.channels = append(svc.channels, channel{notifier: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel})
		case "webhook":
			if len(p.WebhookURLs) == 0 {
				return nil, errors.New("webhook channel: notify_webhook_urls is required")
			}
			wh := ntfy.NewWebhook(ntfy.WebhookParams{})
			for _, u := range p.WebhookURLs {
				svc.channels = append(svc.channels, channel{notifier: wh, dest: u})
			}
		case "custom":
			if p.CustomScript == "" {
				return nil, errors.New("custom channel: notify_custom_script is required")
			}
			svc.script = &scriptChannel{path: p.CustomScript}
		default:
			return nil, fmt.Errorf("unknown notification channel: %q", ch)
		}
	}

	if len(svc.channels) == 0 && svc.script == nil {
		log.Print("no notification channel left after initialization")
	}
	return svc, nil
}

// Send delivers the result to all channels, filtered by the on-error/on-complete flags.
// errors are logged, not returned.
func (s *Service) Send(ctx context.Context, r Result) {
	if s == nil {
		return
	}
	if r.Outcome == OutcomeSuccess && !s.onComplete {
		return
	}
	if r.Outcome == OutcomeFailure && !s.onError {
		return
	}

	msg := s.formatMessage(r)
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, ch := range s.channels {
		text := msg
		if ch.htmlEscape {
			text = html.EscapeString(msg)
		}
		if err := ch.notifier.Send(sendCtx, ch.dest, text); err != nil {
			s.log.Print("notification failed for %s: %v", ch.notifier, err)
		}
	}

	if s.script != nil {
		if err := s.script.send(sendCtx, r); err != nil {
			s.log.Print("custom notification failed: %v", err)
		}
	}
}

// formatMessage creates a plain text message from the result.
func (s *Service) formatMessage(r Result) string {
	var b strings.Builder

	if r.Outcome == OutcomeSuccess {
		fmt.Fprintf(&b, "clockon %s done on %s\n\n", r.Intent, s.hostname)
	} else {
		fmt.Fprintf(&b, "clockon %s failed on %s\n\n", r.Intent, s.hostname)
	}
	if r.Status != "" {
		fmt.Fprintf(&b, "status:   %s\n", r.Status)
	}
	if r.Action != "" {
		action := r.Action
		if r.DryRun {
			action += " (dry run)"
		}
		fmt.Fprintf(&b, "action:   %s\n", action)
	}
	if r.Duration != "" {
		fmt.Fprintf(&b, "duration: %s\n", r.Duration)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error:    %s\n", r.Error)
	}
	return b.String()
}

// telegramChannelMaker is replaced in tests to avoid live api calls.
var telegramChannelMaker = makeTelegramChannel

func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}
	return channel{notifier: tg, dest: fmt.Sprintf("telegram:%s?parseMode=HTML", p.TelegramChat), htmlEscape: true}, nil
}

func makeEmailChannel(p Params) (channel, error) {
	switch {
	case p.SMTPHost == "":
		return channel{}, errors.New("notify_smtp_host is required")
	case p.EmailFrom == "":
		return channel{}, errors.New("notify_email_from is required")
	case len(p.EmailTo) == 0:
		return channel{}, errors.New("notify_email_to is required")
	}

	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})
	dest := fmt.Sprintf("mailto:%s?from=%s&subject=%s",
		strings.Join(p.EmailTo, ","), url.QueryEscape(p.EmailFrom), url.QueryEscape("clockon notification"))
	return channel{notifier: em, dest: dest}, nil
}
