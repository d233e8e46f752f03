package master

import "sync"

// OutputState is the cached state of a single output
type OutputState struct {
	ID     int
	Status bool
	Dimmer int
	Timer  int
}

// OutputStatus tracks the current state of the outputs on the Master and
// reports changes through a callback. Refreshing has to be invoked
// explicitly by the controller owning it.
type OutputStatus struct {
	lock     sync.Mutex
	outputs  map[int]OutputState
	onChange func(state OutputState)
}

func NewOutputStatus(onChange func(state OutputState)) *OutputStatus {
	return &OutputStatus{
		outputs:  map[int]OutputState{},
		onChange: onChange,
	}
}

// PartialUpdate updates the tracked outputs from a list of (id, dimmer)
// pairs of the outputs that are currently on. Outputs not listed are off.
func (status *OutputStatus) PartialUpdate(onOutputs [][2]int) {
	onDimmers := map[int]int{}
	for _, onOutput := range onOutputs {
		onDimmers[onOutput[0]] = onOutput[1]
	}
	status.lock.Lock()
	defer status.lock.Unlock()
	for id, output := range status.outputs {
		dimmer, on := onDimmers[id]
		if !on {
			dimmer = output.Dimmer
		}
		status.updateMaybeReport(output, on, dimmer)
	}
}

// FullUpdate replaces the tracked outputs. Outputs that disappeared are
// dropped, changed or new ones are reported.
func (status *OutputStatus) FullUpdate(outputs []OutputState) {
	status.lock.Lock()
	defer status.lock.Unlock()
	seen := map[int]bool{}
	for _, output := range outputs {
		seen[output.ID] = true
		if current, ok := status.outputs[output.ID]; ok {
			current.Timer = output.Timer
			status.outputs[output.ID] = current
			status.updateMaybeReport(current, output.Status, output.Dimmer)
		} else {
			status.outputs[output.ID] = output
			status.report(output)
		}
	}
	for id := range status.outputs {
		if !seen[id] {
			delete(status.outputs, id)
		}
	}
}

// Update stores the state of one output, reporting when it changed
func (status *OutputStatus) Update(output OutputState) {
	status.lock.Lock()
	defer status.lock.Unlock()
	if current, ok := status.outputs[output.ID]; ok {
		current.Timer = output.Timer
		status.outputs[output.ID] = current
		status.updateMaybeReport(current, output.Status, output.Dimmer)
	} else {
		status.outputs[output.ID] = output
		status.report(output)
	}
}

// GetOutputs returns a snapshot of the tracked outputs
func (status *OutputStatus) GetOutputs() []OutputState {
	status.lock.Lock()
	defer status.lock.Unlock()
	outputs := make([]OutputState, 0, len(status.outputs))
	for _, output := range status.outputs {
		outputs = append(outputs, output)
	}
	return outputs
}

func (status *OutputStatus) updateMaybeReport(output OutputState, on bool, dimmer int) {
	report := false
	if on {
		if !output.Status || output.Dimmer != dimmer {
			output.Status = true
			output.Dimmer = dimmer
			report = true
		}
	} else if output.Status {
		output.Status = false
		report = true
	}
	status.outputs[output.ID] = output
	if report {
		status.report(output)
	}
}

func (status *OutputStatus) report(output OutputState) {
	if status.onChange != nil {
		status.onChange(output)
	}
}
