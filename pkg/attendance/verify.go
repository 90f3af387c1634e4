package attendance

import (
	"fmt"

	"github.com/umputun/clockon/pkg/markup"
)

// markers of the lines the verifier reads from a callback response.
var responseMarkers = []string{"caption", "enabled", "innerhtml"}

// captionRule reconstructs an action from a control caption and its enabled flag.
// the rule is reversed: an enabled "Clock Off" control means the submitted action was the one
// that made clocking off possible, i.e. ClockOn.
type captionRule struct {
	caption  string
	enabled  Action
	disabled Action
}

// captionRules are checked in order, so "Clock Off" wins when both captions are present.
var captionRules = []captionRule{
	{caption: "Clock Off", enabled: ClockOn, disabled: ClockOff},
	{caption: "End Break", enabled: BreakOn, disabled: BreakOff},
}

// Verify reconstructs the action the portal reports as just taken from the xml callback
// response. the response is read as caption/enabled line pairs; a later pair for the same
// caption replaces an earlier one. returns ErrResponseUnparsable if the marker lines don't
// pair up or neither known caption is present.
func Verify(xml string) (Action, error) {
	pairs, err := markup.Pairs(markup.Scan(xml, responseMarkers...))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrResponseUnparsable, err)
	}

	type seen struct {
		found   bool
		enabled bool
	}
	state := make([]seen, len(captionRules))
	for _, p := range pairs {
		caption := markup.Inner(p.First.Text)
		for i, rule := range captionRules {
			if caption == rule.caption {
				state[i] = seen{found: true, enabled: markup.Inner(p.Second.Text) == "true"}
				break
			}
		}
	}

	for i, rule := range captionRules {
		if !state[i].found {
			continue
		}
		if state[i].enabled {
			return rule.enabled, nil
		}
		return rule.disabled, nil
	}
	return 0, fmt.Errorf("%w: no %q or %q caption in %d marker lines",
		ErrResponseUnparsable, captionRules[0].caption, captionRules[1].caption, len(pairs)*2)
}
