// Package main provides clockon - clock on, clock off and take breaks on the attendance
// portal from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/umputun/clockon/pkg/attendance"
	"github.com/umputun/clockon/pkg/config"
	"github.com/umputun/clockon/pkg/notify"
	"github.com/umputun/clockon/pkg/portal"
	"github.com/umputun/clockon/pkg/progress"
	"github.com/umputun/clockon/pkg/report"
	"github.com/umputun/clockon/pkg/runner"
)

// opts holds all command-line options.
type opts struct {
	Config    string `short:"c" long:"config" description:"extra config file, merged over global and local config"`
	ConfigDir string `long:"config-dir" env:"CLOCKON_CONFIG_DIR" description:"global config directory (default ~/.config/clockon)"`
	Username  string `short:"u" long:"username" env:"CLOCKON_USERNAME" description:"portal username"`
	Password  string `long:"password" env:"CLOCKON_PASSWORD" description:"portal password, prompted if not set"`
	DryRun    bool   `short:"n" long:"dry-run" description:"check status and plan the action without submitting it"`
	Output    string `short:"o" long:"output" choice:"text" choice:"yaml" default:"text" description:"report format"`
	Debug     bool   `short:"d" long:"debug" description:"enable debug logging"`
	NoColor   bool   `long:"no-color" description:"disable color output"`
	Version   bool   `short:"v" long:"version" description:"print version and exit"`

	Intent string `positional-arg-name:"on|off" description:"on to clock on or end a break, off to clock off or start a break"`
}

var revision = "unknown"

// passwordInput is where the password prompt reads from.
var passwordInput = os.Stdin

func main() {
	var o opts
	parser := flags.NewParser(&o, flags.Default)
	parser.Usage = "[OPTIONS] on|off"

	args, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if o.Version {
		fmt.Printf("clockon %s\n", revision)
		os.Exit(0)
	}

	if len(args) > 0 {
		o.Intent = args[0]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	restore := disableCtrlCEcho()
	defer restore()

	if err := run(ctx, o, os.Stdout); err != nil {
		restore()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1) //nolint:gocritic // exitAfterDefer, restore already called
	}
}

func run(ctx context.Context, o opts, stdout io.Writer) error {
	wantActive, err := attendance.ParseIntent(o.Intent)
	if err != nil {
		return err
	}

	var extra []string
	if o.Config != "" {
		extra = append(extra, o.Config)
	}
	cfg, err := config.Load(o.ConfigDir, extra...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, o)

	if cfg.Username == "" {
		return errors.New("username is required, set it in config, CLOCKON_USERNAME or --username")
	}
	if cfg.Password == "" {
		pass, promptErr := promptPassword(passwordInput, os.Stderr)
		if promptErr != nil {
			return promptErr
		}
		cfg.Password = pass
	}

	noColor := o.NoColor || o.Output == string(report.FormatYAML) || !isTerminal(stdout)
	log, err := progress.NewLogger(progress.Config{
		LogFile: cfg.LogFile,
		Intent:  attendance.IntentString(wantActive),
		NoColor: noColor,
		Debug:   o.Debug,
		Stdout:  logWriter(o, stdout),
	})
	if err != nil {
		return fmt.Errorf("create progress logger: %w", err)
	}
	defer log.Close()

	log.Debug("clockon %s, config dir %s, local dir %q", revision, cfg.ConfigDir(), cfg.LocalDir())
	log.Debug("portal %s, timeout %dms, insecure tls %v", cfg.PortalURL, cfg.TimeoutMs, cfg.InsecureTLS)

	notifier, err := notify.New(cfg.NotifyParams(), log)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}

	client, err := portal.New(cfg.PortalConfig())
	if err != nil {
		return fmt.Errorf("create portal client: %w", err)
	}

	res, runErr := runner.New(runner.Config{WantActive: wantActive, DryRun: o.DryRun}, client, log).Run(ctx)
	rep := report.New(res, runErr)
	if runErr != nil {
		log.Fail(runErr) // main prints the error line
	} else {
		log.Print("done in %s", log.Elapsed())
	}
	if path := log.Path(); path != "" {
		log.Print("log file: %s", path)
	}

	if err := report.Write(stdout, rep, report.Format(o.Output), noColor); err != nil {
		log.Warn("can't write report: %v", err)
	}

	// notifications outlive a cancelled run context
	notifier.Send(context.WithoutCancel(ctx), rep.Notification())
	return runErr
}

// applyOverrides puts cli and env values over the config file values.
func applyOverrides(cfg *config.Config, o opts) {
	if o.Username != "" {
		cfg.Username = o.Username
	}
	if o.Password != "" {
		cfg.Password = o.Password
	}
}

// promptPassword reads the password without echo. fails if in is not a terminal.
func promptPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd()) //nolint:gosec // fd fits int
	if !term.IsTerminal(fd) {
		return "", errors.New("password is required, set it in config, CLOCKON_PASSWORD or --password")
	}
	fmt.Fprint(out, "password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}

// logWriter keeps yaml output on stdout parseable by moving step logs to stderr.
func logWriter(o opts, stdout io.Writer) io.Writer {
	if o.Output == string(report.FormatYAML) {
		return os.Stderr
	}
	return stdout
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits int
}
