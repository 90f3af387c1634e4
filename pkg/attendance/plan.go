package attendance

import "fmt"

// transition is a row of the planning table: the action for each intent, nil if none is legal.
type transition struct {
	active   *Action
	inactive *Action
}

func act(a Action) *Action { return &a }

// transitions covers every status. "on" while on break and "off" while clocked off have no
// enabled control on the portal.
var transitions = map[Status]transition{
	ClockedOn:  {active: act(BreakOn), inactive: act(ClockOff)},
	ClockedOff: {active: act(ClockOn), inactive: nil},
	OnBreak:    {active: nil, inactive: act(BreakOff)},
}

// Plan returns the single action that moves status in the requested direction.
// returns ErrNoActionToTake for combinations with no enabled control, so nothing is submitted.
func Plan(status Status, wantActive bool) (Action, error) {
	tr, ok := transitions[status]
	if !ok {
		return 0, fmt.Errorf("unknown status %s: %w", status, ErrNoActionToTake)
	}
	next := tr.inactive
	if wantActive {
		next = tr.active
	}
	if next == nil {
		return 0, fmt.Errorf("%s, operator %s: %w", status, IntentString(wantActive), ErrNoActionToTake)
	}
	return *next, nil
}
