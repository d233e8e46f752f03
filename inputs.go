package master

import (
	"sort"
	"sync"
	"time"
)

// InputState is the tracked state of a single input
type InputState struct {
	ID               int
	Status           bool
	LastStatusChange time.Time
	LastUpdated      time.Time
}

// InputStatus keeps track of the last pressed inputs within a time window
type InputStatus struct {
	numInputs int
	window    time.Duration
	onChange  func(state InputState)

	lock   sync.Mutex
	inputs map[int]InputState
}

func NewInputStatus(numInputs int, window time.Duration, onChange func(state InputState)) *InputStatus {
	return &InputStatus{
		numInputs: numInputs,
		window:    window,
		onChange:  onChange,
		inputs:    map[int]InputState{},
	}
}

// SetInput records an input status update
func (status *InputStatus) SetInput(data InputEventData) {
	status.lock.Lock()
	now := time.Now()
	current, ok := status.inputs[data.Input]
	current.ID = data.Input
	current.LastUpdated = now
	changed := !ok || current.Status != data.Status
	current.Status = data.Status
	if changed {
		current.LastStatusChange = now
	}
	status.inputs[data.Input] = current
	status.lock.Unlock()
	if changed && status.onChange != nil {
		status.onChange(current)
	}
}

// GetRecent returns the ids of the inputs that changed within the window,
// oldest first, capped to the configured amount.
func (status *InputStatus) GetRecent() []int {
	status.lock.Lock()
	defer status.lock.Unlock()
	states := make([]InputState, 0, len(status.inputs))
	for _, state := range status.inputs {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].LastStatusChange.Before(states[j].LastStatusChange)
	})
	threshold := time.Now().Add(-status.window)
	recent := []int{}
	for _, state := range states {
		if state.LastStatusChange.After(threshold) {
			recent = append(recent, state.ID)
		}
	}
	if len(recent) > status.numInputs {
		recent = recent[len(recent)-status.numInputs:]
	}
	return recent
}
