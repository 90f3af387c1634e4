package attendance

import (
	"fmt"

	"github.com/umputun/clockon/pkg/markup"
)

// disabledMarker is present on every control line the portal has disabled.
const disabledMarker = "DISABLED"

// disabledSignatures maps a disabled control to the status it implies, checked in order.
// a disabled "start break" control means the break is running; a disabled "end break"
// control with no third disabled control means clocked on and not on break.
var disabledSignatures = []struct {
	action Action
	status Status
}{
	{action: BreakOn, status: OnBreak},
	{action: BreakOff, status: ClockedOn},
}

// ResolveStatus infers the current status from the login page markup.
// the portal disables controls that can't be used right now, so the set of disabled
// controls is the signal: three or more disabled controls mean clocked off, otherwise the
// ids of the first two decide. returns ErrBadStatus if fewer than two disabled controls
// carry an id or the ids match no known shape.
func ResolveStatus(html string) (Status, error) {
	tokens := markup.Scan(html, disabledMarker)
	if len(tokens) < 2 {
		return 0, fmt.Errorf("%w: %d disabled controls, need at least 2", ErrBadStatus, len(tokens))
	}

	ids := make([]string, 0, 2)
	for _, tok := range tokens[:2] {
		id, ok := markup.AttrID(tok.Text)
		if !ok {
			return 0, fmt.Errorf("%w: disabled control on line %d has no id", ErrBadStatus, tok.Line)
		}
		ids = append(ids, id)
	}

	if len(tokens) > 2 {
		return ClockedOff, nil
	}

	for _, sig := range disabledSignatures {
		code := sig.action.Code()
		if ids[0] == code || ids[1] == code {
			return sig.status, nil
		}
	}
	return 0, fmt.Errorf("%w: disabled controls %q (line %d) and %q (line %d) match no status",
		ErrBadStatus, ids[0], tokens[0].Line, ids[1], tokens[1].Line)
}
