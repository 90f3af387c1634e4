// Package progress provides timestamped step logging to stdout with color support,
// optionally mirrored without colors to a log file.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/umputun/clockon/pkg/runner"
)

// stage colors using fatih/color.
var (
	sessionColor   = color.New(color.FgCyan)  // cookie and login
	inspectColor   = color.New(color.FgBlue)  // status and plan
	submitColor    = color.New(color.FgGreen) // submit and verify
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	debugColor     = color.New(color.FgHiBlack)
	timestampColor = color.New(color.FgWhite)
)

// stageColors maps stages to their color.
var stageColors = map[runner.Stage]*color.Color{
	runner.StageCookie: sessionColor,
	runner.StageLogin:  sessionColor,
	runner.StageStatus: inspectColor,
	runner.StagePlan:   inspectColor,
	runner.StageSubmit: submitColor,
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Logger writes timestamped output to stdout and an optional log file.
type Logger struct {
	file      *os.File
	stdout    io.Writer
	startTime time.Time
	stage     runner.Stage
	debug     bool
	now       func() time.Time
}

// Config holds logger configuration.
type Config struct {
	LogFile string    // append a plain copy of every line here, empty disables
	Intent  string    // requested intent, written to the log file header
	NoColor bool      // disable color output (sets color.NoColor globally)
	Debug   bool      // print Debug messages
	Stdout  io.Writer // defaults to os.Stdout
}

// NewLogger creates a logger writing to stdout and, if configured, to a log file.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.NoColor {
		color.NoColor = true
	}

	l := &Logger{
		stdout:    cfg.Stdout,
		startTime: time.Now(),
		stage:     runner.StageCookie,
		debug:     cfg.Debug,
		now:       time.Now,
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}

	if cfg.LogFile == "" {
		return l, nil
	}

	if dir := filepath.Dir(cfg.LogFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path from user config
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f

	l.writeFile("%s\n", strings.Repeat("-", 60))
	l.writeFile("clockon %s, started %s\n", cfg.Intent, l.startTime.Format("2006-01-02 15:04:05"))
	return l, nil
}

// Path returns the log file path, empty if there is none.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// SetStage sets the current stage for color coding.
func (l *Logger) SetStage(stage runner.Stage) {
	l.stage = stage
}

// Print writes a timestamped message to stdout and the log file.
func (l *Logger) Print(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := l.now().Format(timestampFormat)

	l.writeFile("[%s] %s: %s\n", timestamp, l.stage, msg)

	stageColor, ok := stageColors[l.stage]
	if !ok {
		stageColor = timestampColor
	}
	l.writeStdout("%s %s\n", timestampColor.Sprintf("[%s]", timestamp), stageColor.Sprint(msg))
}

// Debug writes a message only when debug output is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	timestamp := l.now().Format(timestampFormat)

	l.writeFile("[%s] DEBUG: %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", timestampColor.Sprintf("[%s]", timestamp), debugColor.Sprintf("DEBUG: %s", msg))
}

// Error writes an error message in red.
func (l *Logger) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := l.now().Format(timestampFormat)

	l.writeFile("[%s] ERROR: %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", timestampColor.Sprintf("[%s]", timestamp), errorColor.Sprintf("ERROR: %s", msg))
}

// Fail records the error of a failed run in the log file only, the console gets it from the caller.
func (l *Logger) Fail(err error) {
	l.writeFile("[%s] ERROR: %v\n", l.now().Format(timestampFormat), err)
}

// Warn writes a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := l.now().Format(timestampFormat)

	l.writeFile("[%s] WARN: %s\n", timestamp, msg)
	l.writeStdout("%s %s\n", timestampColor.Sprintf("[%s]", timestamp), warnColor.Sprintf("WARN: %s", msg))
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return strings.TrimSpace(humanize.RelTime(l.startTime, l.now(), "", ""))
}

// Close writes footer and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	l.writeFile("finished: %s (%s)\n", l.now().Format("2006-01-02 15:04:05"), l.Elapsed())
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}
