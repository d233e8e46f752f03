package master

import "fmt"

// EventType classifies an asynchronous Master event
type EventType int

const (
	EventTypeOutput EventType = iota
	EventTypeInput
	EventTypeSensor
	EventTypeUnknown
)

func (eventType EventType) String() string {
	switch eventType {
	case EventTypeOutput:
		return "OUTPUT"
	case EventTypeInput:
		return "INPUT"
	case EventTypeSensor:
		return "SENSOR"
	}
	return "UNKNOWN"
}

// TimerType classifies the timer resolution reported in an output event
type TimerType string

const (
	TimerTypeNone    TimerType = "NO_TIMER"
	TimerType100Ms   TimerType = "100_MS"
	TimerTypeSeconds TimerType = "1_S"
	TimerTypeMinutes TimerType = "1_M"
)

// MasterEvent is a decoded event-information frame. Such frames arrive
// unsolicited and describe output, input or sensor state changes.
type MasterEvent struct {
	Type     EventType
	Action   int
	DeviceNr int
	Data     []byte
}

// DecodeMasterEvent interprets the fields of an event-information response
func DecodeMasterEvent(fields map[string]any) *MasterEvent {
	event := &MasterEvent{Type: EventTypeUnknown}
	if eventType, ok := fields["type"].(int); ok && eventType <= int(EventTypeSensor) {
		event.Type = EventType(eventType)
	}
	event.Action, _ = fields["action"].(int)
	event.DeviceNr, _ = fields["device_nr"].(int)
	event.Data, _ = fields["data"].([]byte)
	return event
}

// OutputEventData is the decoded payload of an output event
type OutputEventData struct {
	Output      int
	Status      bool
	DimmerValue int
	TimerType   TimerType
	TimerValue  int
}

// Output decodes the event as an output state change
func (event *MasterEvent) Output() (OutputEventData, bool) {
	if event.Type != EventTypeOutput || len(event.Data) < 4 {
		return OutputEventData{}, false
	}
	data := OutputEventData{
		Output:      event.DeviceNr,
		Status:      event.Action == 1,
		DimmerValue: int(event.Data[0]),
		TimerType:   TimerTypeNone,
		TimerValue:  int(event.Data[2])<<8 | int(event.Data[3]),
	}
	switch event.Data[1] {
	case 1:
		data.TimerType = TimerType100Ms
	case 2:
		data.TimerType = TimerTypeSeconds
	case 3:
		data.TimerType = TimerTypeMinutes
	}
	return data, true
}

// InputEventData is the decoded payload of an input event
type InputEventData struct {
	Input  int
	Status bool
}

// Input decodes the event as an input state change
func (event *MasterEvent) Input() (InputEventData, bool) {
	if event.Type != EventTypeInput {
		return InputEventData{}, false
	}
	return InputEventData{Input: event.DeviceNr, Status: event.Action == 1}, true
}

// SensorEventData is the decoded payload of a sensor event
type SensorEventData struct {
	Sensor     int
	SensorType string
	Value      int
}

// Sensor decodes the event as a sensor value update
func (event *MasterEvent) Sensor() (SensorEventData, bool) {
	if event.Type != EventTypeSensor || len(event.Data) < 2 {
		return SensorEventData{}, false
	}
	data := SensorEventData{Sensor: event.DeviceNr, SensorType: "UNKNOWN"}
	switch event.Action {
	case 0:
		data.SensorType = "TEMPERATURE"
		data.Value = int(event.Data[1])
	case 1:
		data.SensorType = "HUMIDITY"
		data.Value = int(event.Data[1])
	case 2:
		data.SensorType = "BRIGHTNESS"
		data.Value = int(event.Data[0])<<8 | int(event.Data[1])
	}
	return data, true
}

func (event *MasterEvent) String() string {
	if data, ok := event.Output(); ok {
		return fmt.Sprintf("OUTPUT (%+v)", data)
	}
	if data, ok := event.Input(); ok {
		return fmt.Sprintf("INPUT (%+v)", data)
	}
	if data, ok := event.Sensor(); ok {
		return fmt.Sprintf("SENSOR (%+v)", data)
	}
	return fmt.Sprintf("UNKNOWN (action %d, device %d, data %s)", event.Action, event.DeviceNr, Printable(event.Data))
}
