// Package config loads clockon configuration from ini files with embedded defaults.
// Lookup order is embedded defaults, then the global config dir (~/.config/clockon/config),
// then the local .clockon/config in the working directory, then any explicitly given files.
// Later sources win.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/umputun/clockon/pkg/notify"
	"github.com/umputun/clockon/pkg/portal"
)

//go:embed defaults/config
var defaultsFS embed.FS

// localDirName is the per-directory config location.
const localDirName = ".clockon"

// Config is the merged application configuration.
type Config struct {
	Values

	configDir string // global config directory
	localDir  string // local config directory, empty if not present
}

// Load reads configuration from configDir (empty uses DefaultConfigDir), the local
// .clockon directory and the extra files, installing the default config file into
// configDir on first run. extra files must exist.
func Load(configDir string, extra ...string) (*Config, error) {
	localDir := ""
	if st, err := os.Stat(localDirName); err == nil && st.IsDir() {
		if abs, absErr := filepath.Abs(localDirName); absErr == nil {
			localDir = abs
		}
	}
	return loadWithLocal(configDir, localDir, extra...)
}

// loadWithLocal loads config with explicit global and local directories.
func loadWithLocal(configDir, localDir string, extra ...string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	for _, f := range extra {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	if err := newDefaultsInstaller(defaultsFS).Install(configDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	localConfig := ""
	if localDir != "" {
		localConfig = filepath.Join(localDir, "config")
	}

	paths := append([]string{filepath.Join(configDir, "config"), localConfig}, extra...)
	values, err := newValuesLoader(defaultsFS).Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}

	return &Config{Values: values, configDir: configDir, localDir: localDir}, nil
}

// DefaultConfigDir returns ~/.config/clockon, or a relative .config/clockon if the home
// directory can't be determined.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "clockon")
	}
	return filepath.Join(home, ".config", "clockon")
}

// ConfigDir returns the global config directory in use.
func (c *Config) ConfigDir() string { return c.configDir }

// LocalDir returns the local config directory, empty if none was found.
func (c *Config) LocalDir() string { return c.localDir }

// PortalConfig maps the values to portal client settings.
func (c *Config) PortalConfig() portal.Config {
	return portal.Config{
		URL:            c.PortalURL,
		UserAgent:      c.UserAgent,
		Username:       c.Username,
		Password:       c.Password,
		InsecureTLS:    c.InsecureTLS,
		Timeout:        time.Duration(c.TimeoutMs) * time.Millisecond,
		LoginSizeLimit: c.LoginSizeLimit,
	}
}

// NotifyParams maps the values to notification settings.
func (c *Config) NotifyParams() notify.Params {
	return notify.Params{
		Channels:      c.NotifyChannels,
		OnError:       c.NotifyOnError,
		OnComplete:    c.NotifyOnComplete,
		TimeoutMs:     c.NotifyTimeoutMs,
		TelegramToken: c.TelegramToken,
		TelegramChat:  c.TelegramChat,
		SlackToken:    c.SlackToken,
		SlackChannel:  c.SlackChannel,
		SMTPHost:      c.SMTPHost,
		SMTPPort:      c.SMTPPort,
		SMTPUsername:  c.SMTPUsername,
		SMTPPassword:  c.SMTPPassword,
		SMTPStartTLS:  c.SMTPStartTLS,
		EmailFrom:     c.EmailFrom,
		EmailTo:       c.EmailTo,
		WebhookURLs:   c.WebhookURLs,
		CustomScript:  c.NotifyCustomScript,
	}
}
