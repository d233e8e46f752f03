package master

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func collectOutputChanges() (*OutputStatus, *[]OutputState) {
	changes := &[]OutputState{}
	status := NewOutputStatus(func(state OutputState) {
		*changes = append(*changes, state)
	})
	return status, changes
}

func TestOutputStatusFullUpdate(t *testing.T) {
	status, changes := collectOutputChanges()

	status.FullUpdate([]OutputState{
		{ID: 0, Status: false},
		{ID: 1, Status: true, Dimmer: 100},
	})
	assert.Len(t, *changes, 2)
	assert.Len(t, status.GetOutputs(), 2)

	// Same state again reports nothing
	*changes = nil
	status.FullUpdate([]OutputState{
		{ID: 0, Status: false},
		{ID: 1, Status: true, Dimmer: 100},
	})
	assert.Len(t, *changes, 0)

	// Output 1 disappears, output 2 is new
	status.FullUpdate([]OutputState{
		{ID: 0, Status: true, Dimmer: 50},
		{ID: 2, Status: false},
	})
	outputs := status.GetOutputs()
	assert.Len(t, outputs, 2)
	ids := map[int]bool{}
	for _, output := range outputs {
		ids[output.ID] = true
	}
	assert.True(t, ids[0])
	assert.True(t, ids[2])
	assert.False(t, ids[1])
}

func TestOutputStatusPartialUpdate(t *testing.T) {
	status, changes := collectOutputChanges()
	status.FullUpdate([]OutputState{
		{ID: 0, Status: false},
		{ID: 1, Status: false},
		{ID: 2, Status: true, Dimmer: 100},
	})
	*changes = nil

	// Output 1 switched on with dimmer 80, output 2 went off
	status.PartialUpdate([][2]int{{1, 80}})
	assert.Len(t, *changes, 2)
	byID := map[int]OutputState{}
	for _, output := range status.GetOutputs() {
		byID[output.ID] = output
	}
	assert.True(t, byID[1].Status)
	assert.Equal(t, 80, byID[1].Dimmer)
	assert.False(t, byID[2].Status)
	// The dimmer of an off output is remembered
	assert.Equal(t, 100, byID[2].Dimmer)
}

func TestOutputStatusDimmerChangeReports(t *testing.T) {
	status, changes := collectOutputChanges()
	status.Update(OutputState{ID: 4, Status: true, Dimmer: 50})
	*changes = nil

	status.Update(OutputState{ID: 4, Status: true, Dimmer: 80})
	assert.Len(t, *changes, 1)
	assert.Equal(t, 80, (*changes)[0].Dimmer)

	status.Update(OutputState{ID: 4, Status: true, Dimmer: 80})
	assert.Len(t, *changes, 1)
}

func TestInputStatusRecent(t *testing.T) {
	var changes []InputState
	status := NewInputStatus(5, time.Minute, func(state InputState) {
		changes = append(changes, state)
	})

	status.SetInput(InputEventData{Input: 3, Status: true})
	status.SetInput(InputEventData{Input: 8, Status: true})
	assert.Len(t, changes, 2)
	assert.Equal(t, []int{3, 8}, status.GetRecent())

	// A repeated status is not a change
	status.SetInput(InputEventData{Input: 8, Status: true})
	assert.Len(t, changes, 2)
}

func TestInputStatusWindowCap(t *testing.T) {
	status := NewInputStatus(2, time.Minute, nil)
	for id := 0; id < 4; id++ {
		status.SetInput(InputEventData{Input: id, Status: true})
	}
	recent := status.GetRecent()
	assert.Len(t, recent, 2)

	expired := NewInputStatus(5, -time.Second, nil)
	expired.SetInput(InputEventData{Input: 1, Status: true})
	assert.Empty(t, expired.GetRecent())
}
