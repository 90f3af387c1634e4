// Package runner performs one clock transition as a fixed sequence of fallible stages:
// cookie, login, status, plan, submit. The first failing stage ends the run and is named
// in the returned error.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/clockon/pkg/attendance"
)

// Stage names a step of the run.
type Stage string

// stages in execution order.
const (
	StageCookie Stage = "cookie"
	StageLogin  Stage = "login"
	StageStatus Stage = "status"
	StagePlan   Stage = "plan"
	StageSubmit Stage = "submit"
)

// Portal is the transport used by the runner.
type Portal interface {
	AcquireCookie(ctx context.Context) (string, error)
	Login(ctx context.Context, cookie string) (string, error)
	SubmitAction(ctx context.Context, cookie string, action attendance.Action) (string, error)
}

// Logger provides step logging.
type Logger interface {
	SetStage(stage Stage)
	Print(format string, args ...any)
}

// StageError wraps the error of the stage that ended the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrActionFailure is matched by ActionFailureError with errors.Is.
var ErrActionFailure = errors.New("action not confirmed by portal")

// ActionFailureError is returned when the action reconstructed from the response differs
// from the submitted one, i.e. the portal ignored or rejected the callback.
type ActionFailureError struct {
	Submitted     attendance.Action
	Reconstructed attendance.Action
	BodyLen       int
}

func (e *ActionFailureError) Error() string {
	return fmt.Sprintf("%v: submitted %s, portal reports %s (response %d bytes)",
		ErrActionFailure, e.Submitted, e.Reconstructed, e.BodyLen)
}

// Is reports ErrActionFailure as the target.
func (e *ActionFailureError) Is(target error) bool { return target == ErrActionFailure }

// Config holds runner configuration.
type Config struct {
	WantActive bool // requested intent, true for "on"
	DryRun     bool // stop after planning, nothing is submitted
}

// Result describes how far a run got. fields after the failing stage stay zero.
type Result struct {
	WantActive    bool
	Status        attendance.Status
	StatusKnown   bool
	Action        attendance.Action
	ActionKnown   bool
	Reconstructed attendance.Action
	Verified      bool
	Submitted     bool
	DryRun        bool
	Duration      time.Duration
}

// Runner executes a single transition.
type Runner struct {
	cfg    Config
	portal Portal
	log    Logger
}

// New creates a Runner.
func New(cfg Config, portal Portal, log Logger) *Runner {
	return &Runner{cfg: cfg, portal: portal, log: log}
}

// run holds values passed between stages.
type run struct {
	cookie string
	page   string
	res    Result
}

type stage struct {
	name Stage
	fn   func(ctx context.Context, st *run) error
}

// Run performs the stages in order and stops at the first error, returned as *StageError.
// the result is filled up to the failing stage.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	st := &run{res: Result{WantActive: r.cfg.WantActive, DryRun: r.cfg.DryRun}}

	stages := []stage{
		{name: StageCookie, fn: r.acquireCookie},
		{name: StageLogin, fn: r.login},
		{name: StageStatus, fn: r.resolveStatus},
		{name: StagePlan, fn: r.plan},
		{name: StageSubmit, fn: r.submit},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			st.res.Duration = time.Since(start)
			return st.res, &StageError{Stage: s.name, Err: err}
		}
		r.log.SetStage(s.name)
		if err := s.fn(ctx, st); err != nil {
			st.res.Duration = time.Since(start)
			return st.res, &StageError{Stage: s.name, Err: err}
		}
	}

	st.res.Duration = time.Since(start)
	return st.res, nil
}

func (r *Runner) acquireCookie(ctx context.Context, st *run) error {
	r.log.Print("requesting cookie")
	cookie, err := r.portal.AcquireCookie(ctx)
	if err != nil {
		return err
	}
	st.cookie = cookie
	return nil
}

func (r *Runner) login(ctx context.Context, st *run) error {
	r.log.Print("logging in")
	page, err := r.portal.Login(ctx, st.cookie)
	if err != nil {
		return err
	}
	st.page = page
	return nil
}

func (r *Runner) resolveStatus(_ context.Context, st *run) error {
	status, err := attendance.ResolveStatus(st.page)
	if err != nil {
		return err
	}
	st.res.Status, st.res.StatusKnown = status, true
	r.log.Print("status: %s", status)
	return nil
}

func (r *Runner) plan(_ context.Context, st *run) error {
	action, err := attendance.Plan(st.res.Status, r.cfg.WantActive)
	if err != nil {
		return err
	}
	st.res.Action, st.res.ActionKnown = action, true
	r.log.Print("planned action: %s", action)
	return nil
}

// submit posts the planned action and checks the response reflects it.
func (r *Runner) submit(ctx context.Context, st *run) error {
	if r.cfg.DryRun {
		r.log.Print("dry run, not submitting %s", st.res.Action)
		return nil
	}

	r.log.Print("doing action: %s", st.res.Action)
	body, err := r.portal.SubmitAction(ctx, st.cookie, st.res.Action)
	if err != nil {
		return err
	}
	st.res.Submitted = true

	got, err := attendance.Verify(body)
	if err != nil {
		return err
	}
	st.res.Reconstructed = got
	if got != st.res.Action {
		return &ActionFailureError{Submitted: st.res.Action, Reconstructed: got, BodyLen: len(body)}
	}
	st.res.Verified = true
	r.log.Print("verified: %s", got)
	return nil
}
