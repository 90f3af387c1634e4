// Package attendance infers clock state from portal markup, plans the single legal transition
// for a requested intent and reconstructs the action the portal reports after submission.
package attendance

import (
	"errors"
	"fmt"
)

// errors returned by the attendance functions, matched with errors.Is.
var (
	ErrBadStatus          = errors.New("status markup not recognized")
	ErrNoActionToTake     = errors.New("no legal action for status")
	ErrResponseUnparsable = errors.New("action response not recognized")
	ErrNoOperator         = errors.New(`operator must be "on" or "off"`)
)

// Action is a portal control submitted as a server callback.
type Action int

// actions in the order of the wire code table.
const (
	ClockOn Action = iota
	ClockOff
	BreakOn
	BreakOff
)

// actionCodes maps each action to the control id the portal expects.
var actionCodes = [...]string{
	ClockOn:  "CLKONBTN",
	ClockOff: "CLKOFFBTN",
	BreakOn:  "BRKSTABTN",
	BreakOff: "BRKENDBTN",
}

// Actions returns all actions in table order.
func Actions() []Action {
	return []Action{ClockOn, ClockOff, BreakOn, BreakOff}
}

// Code returns the wire code of the action. panics on values outside the table.
func (a Action) Code() string {
	return actionCodes[a]
}

// String returns the wire code, or a placeholder for unknown values.
func (a Action) String() string {
	if a < 0 || int(a) >= len(actionCodes) {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionCodes[a]
}

// ActionFromCode is the inverse of Action.Code.
func ActionFromCode(code string) (Action, bool) {
	for i, c := range actionCodes {
		if c == code {
			return Action(i), true
		}
	}
	return 0, false
}

// Status is the worker's attendance state as shown by the portal.
type Status int

// known statuses.
const (
	ClockedOn Status = iota
	ClockedOff
	OnBreak
)

// String returns the human-readable status.
func (s Status) String() string {
	switch s {
	case ClockedOn:
		return "Clocked On"
	case ClockedOff:
		return "Clocked Off"
	case OnBreak:
		return "Clocked On (On Break)"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseIntent converts the operator argument into the requested direction:
// "on" means become active (clock on or end a break), "off" means become inactive.
func ParseIntent(op string) (bool, error) {
	switch op {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w, got %q", ErrNoOperator, op)
	}
}

// IntentString is the inverse of ParseIntent.
func IntentString(wantActive bool) string {
	if wantActive {
		return "on"
	}
	return "off"
}
