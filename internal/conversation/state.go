// ABOUTME: Conversation processing states and the valid transition table.
// ABOUTME: Every turn walks from idle through the processing states and back.

package conversation

// State is the processing state of a single conversation. A conversation
// with no turn in flight is idle; a turn moves it through receiving,
// context_building, generating and persisting, then back to idle. Any
// mid-turn error lands in failed, which always returns to idle after the
// error event is emitted.
type State string

const (
	StateIdle            State = "idle"
	StateReceiving       State = "receiving"
	StateContextBuilding State = "context_building"
	StateGenerating      State = "generating"
	StatePersisting      State = "persisting"
	StateFailed          State = "failed"
)

// validTransitions defines which state changes a conversation may make.
var validTransitions = map[State][]State{
	StateIdle:            {StateReceiving},
	StateReceiving:       {StateContextBuilding, StateFailed},
	StateContextBuilding: {StateGenerating, StateFailed},
	StateGenerating:      {StatePersisting, StateFailed},
	StatePersisting:      {StateIdle, StateFailed},
	StateFailed:          {StateIdle},
}

func canTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
