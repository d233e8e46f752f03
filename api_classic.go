package master

// Command specs and basic action codes for the Classic Master generation.
// The Classic shares the frame contract with the Core but uses its own
// instruction set.

// Classic basic action types
const (
	BALightOff    = 160
	BALightOn     = 161
	BALightToggle = 162
	BAAllOff      = 163
	BAShutterUp   = 100
	BAShutterDown = 101
	BAShutterStop = 102
)

// ClassicStatus reads time, date and firmware version
func ClassicStatus() *CommandSpec {
	return NewCommandSpec("ST",
		nil,
		[]Field{NewByteField("hours"), NewByteField("minutes"), NewByteField("seconds"),
			NewByteField("weekday"), NewByteField("day"), NewByteField("month"), NewByteField("year"),
			NewVersionField("version"), NewByteField("mode")})
}

// ClassicBasicAction executes a basic action on the Classic
func ClassicBasicAction() *CommandSpec {
	return NewCommandSpec("BA",
		[]Field{NewByteField("action_type"), NewByteField("action_number")},
		[]Field{NewByteField("action_type"), NewByteField("action_number")})
}

// ClassicOutputList is pushed by the Classic whenever the set of switched-on
// outputs changes: a count followed by (id, dimmer) pairs.
func ClassicOutputList() *CommandSpec {
	return NewCommandSpec("OL",
		nil,
		[]Field{NewByteField("amount"), NewVariableByteArrayField("outputs", func(length int) int { return length - 1 })})
}

// ClassicInputList is pushed by the Classic when an input is pressed
func ClassicInputList() *CommandSpec {
	return NewCommandSpec("IL",
		nil,
		[]Field{NewByteField("input"), NewByteField("output")})
}

// ClassicReadOutput loads the state of a single output
func ClassicReadOutput() *CommandSpec {
	return NewCommandSpec("RO",
		[]Field{NewByteField("output_nr")},
		[]Field{NewByteField("output_nr"), NewByteField("status"), NewByteField("dimmer"), NewWordField("timer")})
}

// ClassicEepromList reads a full 256-byte EEPROM bank
func ClassicEepromList() *CommandSpec {
	return NewCommandSpec("EL",
		[]Field{NewByteField("bank")},
		[]Field{NewByteField("bank"), NewByteArrayField("data", 256)})
}

// ClassicWriteEeprom writes up to 10 bytes to an EEPROM bank
func ClassicWriteEeprom(length int) *CommandSpec {
	return NewCommandSpec("WE",
		[]Field{NewByteField("bank"), NewByteField("address"), NewByteArrayField("data", length)},
		[]Field{NewByteField("bank"), NewByteField("address"), NewByteArrayField("data", length)})
}

// ClassicActivateEeprom activates the written EEPROM contents
func ClassicActivateEeprom() *CommandSpec {
	return NewCommandSpec("AE",
		[]Field{NewLiteralBytesField(0)},
		[]Field{NewByteField("eep")})
}
