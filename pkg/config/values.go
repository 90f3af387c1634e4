package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., InsecureTLSSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit false/0 from "not set", enabling
// proper merge behavior where local config can override global config with zero values.
type Values struct {
	PortalURL           string
	UserAgent           string
	Username            string
	Password            string
	InsecureTLS         bool
	InsecureTLSSet      bool // tracks if insecure_tls was explicitly set
	TimeoutMs           int
	TimeoutMsSet        bool // tracks if timeout_ms was explicitly set
	LoginSizeLimit      int
	LogFile             string
	NotifyChannels      []string
	NotifyOnError       bool
	NotifyOnErrorSet    bool
	NotifyOnComplete    bool
	NotifyOnCompleteSet bool
	NotifyTimeoutMs     int
	TelegramToken       string
	TelegramChat        string
	SlackToken          string
	SlackChannel        string
	SMTPHost            string
	SMTPPort            int
	SMTPUsername        string
	SMTPPassword        string
	SMTPStartTLS        bool
	SMTPStartTLSSet     bool
	EmailFrom           string
	EmailTo             []string
	WebhookURLs         []string
	NotifyCustomScript  string
}

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

// newValuesLoader creates a new valuesLoader with the given embedded filesystem.
func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: embedded → paths in order.
// later paths win. missing files are skipped.
func (vl *valuesLoader) Load(paths ...string) (Values, error) {
	result, err := vl.parseValuesFromEmbedded()
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	for _, p := range paths {
		v, err := vl.parseValuesFromFile(p)
		if err != nil {
			return Values{}, fmt.Errorf("parse config %s: %w", p, err)
		}
		result.mergeFrom(&v)
	}
	return result, nil
}

// parseValuesFromFile reads a config file and parses it into Values.
// returns empty Values (not error) if file doesn't exist or contains only comments/whitespace.
func (vl *valuesLoader) parseValuesFromFile(path string) (Values, error) {
	if path == "" {
		return Values{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return Values{}, nil
		}
		return Values{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromEmbedded parses values from the embedded defaults/config file.
func (vl *valuesLoader) parseValuesFromEmbedded() (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	return vl.parseValuesFromBytes(data)
}

// parseValuesFromBytes parses configuration from a byte slice into Values.
func (vl *valuesLoader) parseValuesFromBytes(data []byte) (Values, error) {
	// ignoreInlineComment: true prevents # from being treated as inline comment marker
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return Values{}, fmt.Errorf("parse config: %w", err)
	}

	var values Values
	section := cfg.Section("")

	stringKeys := []struct {
		key   string
		field *string
	}{
		{"portal_url", &values.PortalURL},
		{"user_agent", &values.UserAgent},
		{"username", &values.Username},
		{"password", &values.Password},
		{"log_file", &values.LogFile},
		{"notify_telegram_token", &values.TelegramToken},
		{"notify_telegram_chat", &values.TelegramChat},
		{"notify_slack_token", &values.SlackToken},
		{"notify_slack_channel", &values.SlackChannel},
		{"notify_smtp_host", &values.SMTPHost},
		{"notify_smtp_username", &values.SMTPUsername},
		{"notify_smtp_password", &values.SMTPPassword},
		{"notify_email_from", &values.EmailFrom},
		{"notify_custom_script", &values.NotifyCustomScript},
	}
	for _, k := range stringKeys {
		if key, err := section.GetKey(k.key); err == nil {
			*k.field = strings.TrimSpace(key.String())
		}
	}

	boolKeys := []struct {
		key   string
		field *bool
		set   *bool
	}{
		{"insecure_tls", &values.InsecureTLS, &values.InsecureTLSSet},
		{"notify_on_error", &values.NotifyOnError, &values.NotifyOnErrorSet},
		{"notify_on_complete", &values.NotifyOnComplete, &values.NotifyOnCompleteSet},
		{"notify_smtp_starttls", &values.SMTPStartTLS, &values.SMTPStartTLSSet},
	}
	for _, k := range boolKeys {
		key, err := section.GetKey(k.key)
		if err != nil {
			continue
		}
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", k.key, boolErr)
		}
		*k.field, *k.set = val, true
	}

	intKeys := []struct {
		key   string
		field *int
		set   *bool // nil if zero means "not set"
	}{
		{"timeout_ms", &values.TimeoutMs, &values.TimeoutMsSet},
		{"login_size_limit", &values.LoginSizeLimit, nil},
		{"notify_timeout_ms", &values.NotifyTimeoutMs, nil},
		{"notify_smtp_port", &values.SMTPPort, nil},
	}
	for _, k := range intKeys {
		key, err := section.GetKey(k.key)
		if err != nil {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", k.key, intErr)
		}
		if val < 0 {
			return Values{}, fmt.Errorf("invalid %s: must be non-negative, got %d", k.key, val)
		}
		*k.field = val
		if k.set != nil {
			*k.set = true
		}
	}

	// comma-separated lists
	listKeys := []struct {
		key   string
		field *[]string
	}{
		{"notify_channels", &values.NotifyChannels},
		{"notify_email_to", &values.EmailTo},
		{"notify_webhook_urls", &values.WebhookURLs},
	}
	for _, k := range listKeys {
		if key, err := section.GetKey(k.key); err == nil {
			*k.field = splitList(key.String())
		}
	}

	return values, nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(val string) []string {
	var res []string
	for p := range strings.SplitSeq(val, ",") {
		if t := strings.TrimSpace(p); t != "" {
			res = append(res, t)
		}
	}
	return res
}

// stripComments removes full-line # and ; comments.
func stripComments(content string) string {
	var lines []string
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	mergeString := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	mergeString(&dst.PortalURL, src.PortalURL)
	mergeString(&dst.UserAgent, src.UserAgent)
	mergeString(&dst.Username, src.Username)
	mergeString(&dst.Password, src.Password)
	mergeString(&dst.LogFile, src.LogFile)
	mergeString(&dst.TelegramToken, src.TelegramToken)
	mergeString(&dst.TelegramChat, src.TelegramChat)
	mergeString(&dst.SlackToken, src.SlackToken)
	mergeString(&dst.SlackChannel, src.SlackChannel)
	mergeString(&dst.SMTPHost, src.SMTPHost)
	mergeString(&dst.SMTPUsername, src.SMTPUsername)
	mergeString(&dst.SMTPPassword, src.SMTPPassword)
	mergeString(&dst.EmailFrom, src.EmailFrom)
	mergeString(&dst.NotifyCustomScript, src.NotifyCustomScript)

	if src.InsecureTLSSet {
		dst.InsecureTLS, dst.InsecureTLSSet = src.InsecureTLS, true
	}
	if src.NotifyOnErrorSet {
		dst.NotifyOnError, dst.NotifyOnErrorSet = src.NotifyOnError, true
	}
	if src.NotifyOnCompleteSet {
		dst.NotifyOnComplete, dst.NotifyOnCompleteSet = src.NotifyOnComplete, true
	}
	if src.SMTPStartTLSSet {
		dst.SMTPStartTLS, dst.SMTPStartTLSSet = src.SMTPStartTLS, true
	}
	if src.TimeoutMsSet {
		dst.TimeoutMs, dst.TimeoutMsSet = src.TimeoutMs, true
	}
	if src.LoginSizeLimit > 0 {
		dst.LoginSizeLimit = src.LoginSizeLimit
	}
	if src.NotifyTimeoutMs > 0 {
		dst.NotifyTimeoutMs = src.NotifyTimeoutMs
	}
	if src.SMTPPort > 0 {
		dst.SMTPPort = src.SMTPPort
	}

	if len(src.NotifyChannels) > 0 {
		dst.NotifyChannels = src.NotifyChannels
	}
	if len(src.EmailTo) > 0 {
		dst.EmailTo = src.EmailTo
	}
	if len(src.WebhookURLs) > 0 {
		dst.WebhookURLs = src.WebhookURLs
	}
}
