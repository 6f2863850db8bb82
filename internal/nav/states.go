// Package nav walks one meet page through its event list and extracts the
// raw tables of every event. The walk is a state machine: each state names
// what the page must show before the next action fires, so a layout change
// on the source site surfaces as a failed assertion instead of silently
// wrong data.
package nav

// State is one step of the navigation walk.
type State int

const (
	// Idle is the machine before Run.
	Idle State = iota

	// Loading fetches the meet page and detects its layout.
	Loading

	// AwaitingEventMode has fired the results toggle and waits for the
	// event menu to render.
	AwaitingEventMode

	// PollingEventList waits for the menu to list at least one event.
	PollingEventList

	// SelectingEvent opens the next unprocessed event.
	SelectingEvent

	// AwaitingHeats waits for the heats panel to carry populated rows.
	AwaitingHeats

	// AwaitingRanking waits for the summary panel to stabilize.
	AwaitingRanking

	// Extracting parses the panels of the selected event.
	Extracting

	// ReturningToList verifies the menu survived the event visit.
	ReturningToList

	// Done is reached when every listed event was visited.
	Done

	// Failed is reached when the meet as a whole cannot be crawled.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case AwaitingEventMode:
		return "awaitingEventMode"
	case PollingEventList:
		return "pollingEventList"
	case SelectingEvent:
		return "selectingEvent"
	case AwaitingHeats:
		return "awaitingHeats"
	case AwaitingRanking:
		return "awaitingRanking"
	case Extracting:
		return "extracting"
	case ReturningToList:
		return "returningToList"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// validNext lists the legal transitions. Failed is reachable from any
// active state, so it is not listed per state.
var validNext = map[State][]State{
	Idle:              {Loading},
	Loading:           {AwaitingEventMode, Extracting},
	AwaitingEventMode: {PollingEventList},
	PollingEventList:  {SelectingEvent, Done},
	SelectingEvent:    {AwaitingHeats, ReturningToList},
	AwaitingHeats:     {AwaitingRanking, ReturningToList},
	AwaitingRanking:   {Extracting, ReturningToList},
	Extracting:        {ReturningToList, Done},
	ReturningToList:   {SelectingEvent, Done},
}

// canTransition reports whether moving from one state to another is legal.
func canTransition(from, to State) bool {
	if to == Failed {
		return from != Done && from != Failed
	}
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}
