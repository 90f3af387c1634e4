// Package report summarizes a finished run for the terminal (markdown via glamour) or
// for scripts (yaml), and converts it into a notification.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"gopkg.in/yaml.v3"

	"github.com/umputun/clockon/pkg/attendance"
	"github.com/umputun/clockon/pkg/notify"
	"github.com/umputun/clockon/pkg/runner"
)

// Format selects the report output.
type Format string

// supported formats.
const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// Report is the outcome of a single run.
type Report struct {
	Intent      string `yaml:"intent"`
	Outcome     string `yaml:"outcome"`
	Status      string `yaml:"status,omitempty"`
	Action      string `yaml:"action,omitempty"`
	Confirmed   string `yaml:"confirmed,omitempty"`
	Reported    string `yaml:"reported,omitempty"` // action the portal echoed back when it differs from the submitted one
	DryRun      bool   `yaml:"dry_run,omitempty"`
	FailedStage string `yaml:"failed_stage,omitempty"`
	Error       string `yaml:"error,omitempty"`
	Duration    string `yaml:"duration"`
}

// New builds a report from the runner result and the error returned with it.
func New(res runner.Result, err error) Report {
	r := Report{
		Intent:   attendance.IntentString(res.WantActive),
		Outcome:  notify.OutcomeSuccess,
		DryRun:   res.DryRun,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
	if res.StatusKnown {
		r.Status = res.Status.String()
	}
	if res.ActionKnown {
		r.Action = res.Action.String()
	}
	if res.Verified {
		r.Confirmed = res.Reconstructed.String()
	}

	if err != nil {
		r.Outcome = notify.OutcomeFailure
		r.Error = err.Error()
		var se *runner.StageError
		if errors.As(err, &se) {
			r.FailedStage = string(se.Stage)
		}
		var afe *runner.ActionFailureError
		if errors.As(err, &afe) {
			r.Reported = afe.Reconstructed.String()
		}
	}
	return r
}

// Notification converts the report into a notify.Result.
func (r Report) Notification() notify.Result {
	return notify.Result{
		Outcome:  r.Outcome,
		Intent:   r.Intent,
		Status:   r.Status,
		Action:   r.Action,
		DryRun:   r.DryRun,
		Duration: r.Duration,
		Error:    r.Error,
	}
}

// Markdown formats the report as a small markdown table.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## clockon %s: %s\n\n", r.Intent, r.Outcome)
	b.WriteString("| | |\n|---|---|\n")
	row := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", name, escapeCell(value))
		}
	}
	row("status", r.Status)
	action := r.Action
	if r.DryRun && action != "" {
		action += " (dry run, not submitted)"
	}
	row("action", action)
	row("confirmed", r.Confirmed)
	row("reported", r.Reported)
	row("failed stage", r.FailedStage)
	row("error", r.Error)
	row("duration", r.Duration)
	return b.String()
}

// YAML serializes the report.
func (r Report) YAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// Write renders the report in the given format to w. text output is passed through
// glamour unless noColor is set.
func Write(w io.Writer, r Report, format Format, noColor bool) error {
	var out string
	switch format {
	case FormatYAML:
		data, err := r.YAML()
		if err != nil {
			return err
		}
		out = string(data)
	case FormatText, "":
		rendered, err := RenderMarkdown(r.Markdown(), noColor)
		if err != nil {
			return err
		}
		out = rendered
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders markdown content for terminal display.
// If noColor is true, returns the content unchanged.
func RenderMarkdown(content string, noColor bool) (string, error) {
	if noColor {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	result, err := renderer.Render(content)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return result, nil
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
