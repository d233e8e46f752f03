package master

// Command specs for the Core/AIO Master generation. Specs are stateless and
// can be shared freely.

// BasicActionCommand executes a basic action
func BasicActionCommand() *CommandSpec {
	return NewCommandSpec("BA",
		[]Field{NewByteField("type"), NewByteField("action"), NewWordField("device_nr"), NewWordField("extra_parameter")},
		[]Field{NewByteField("type"), NewByteField("action"), NewWordField("device_nr"), NewWordField("extra_parameter")})
}

// EventInformation is pushed by the Core on state changes
func EventInformation() *CommandSpec {
	return NewCommandSpec("EV",
		nil,
		[]Field{NewByteField("type"), NewByteField("action"), NewWordField("device_nr"), NewByteArrayField("data", 4)})
}

// ErrorInformation is pushed by the Core on internal errors
func ErrorInformation() *CommandSpec {
	return NewCommandSpec("ER",
		nil,
		[]Field{NewByteField("type"), NewByteField("parameter_a"), NewWordField("parameter_b"), NewWordField("parameter_c")})
}

// FirmwareVersion reads the firmware version of the Core
func FirmwareVersion() *CommandSpec {
	return NewCommandSpec("FV",
		nil,
		[]Field{NewVersionField("version"), NewByteField("mode")})
}

// DeviceInformationListOutputs lists the output device information
func DeviceInformationListOutputs() *CommandSpec {
	return NewCommandSpec("DL",
		[]Field{NewLiteralBytesField(0)},
		[]Field{NewByteField("type"), NewVariableByteArrayField("information", func(length int) int { return length - 1 })})
}

// DeviceInformationListInputs lists the input device information
func DeviceInformationListInputs() *CommandSpec {
	return NewCommandSpec("DL",
		[]Field{NewLiteralBytesField(1)},
		[]Field{NewByteField("type"), NewVariableByteArrayField("information", func(length int) int { return length - 1 })})
}

// GeneralConfigurationNumberOfModules reads how many modules are installed
func GeneralConfigurationNumberOfModules() *CommandSpec {
	return NewCommandSpec("GC",
		[]Field{NewLiteralBytesField(0)},
		[]Field{NewByteField("type"), NewByteField("output"), NewByteField("input"), NewByteField("sensor"),
			NewByteField("ucan"), NewByteField("ucan_input"), NewByteField("ucan_sensor")})
}

// GeneralConfigurationMaxSpecs reads the maximum specifications, e.g. the
// maximum number of input modules or basic actions
func GeneralConfigurationMaxSpecs() *CommandSpec {
	return NewCommandSpec("GC",
		[]Field{NewLiteralBytesField(1)},
		[]Field{NewByteField("type"), NewByteField("output"), NewByteField("input"), NewByteField("sensor"),
			NewByteField("ucan"), NewWordField("groups"), NewWordField("basic_actions"),
			NewByteField("shutters"), NewByteField("shutter_groups")})
}

// ModuleInformation reads information on a single module
func ModuleInformation() *CommandSpec {
	return NewCommandSpec("MC",
		[]Field{NewByteField("module_nr"), NewByteField("module_family")},
		[]Field{NewByteField("module_nr"), NewByteField("module_family"), NewByteField("module_type"),
			NewAddressField("address", 4), NewWordField("bus_errors"), NewByteField("module_status")})
}

// OutputDetail reads the current state of a single output
func OutputDetail() *CommandSpec {
	return NewCommandSpec("OD",
		[]Field{NewWordField("device_nr")},
		[]Field{NewWordField("device_nr"), NewByteField("status"), NewByteField("dimmer"), NewWordField("timer")})
}

// MemoryRead reads a chunk of EEPROM/FRAM memory
func MemoryRead() *CommandSpec {
	return NewCommandSpec("MR",
		[]Field{NewCharField("type"), NewWordField("page"), NewByteField("start"), NewByteField("length")},
		[]Field{NewCharField("type"), NewWordField("page"), NewByteField("start"),
			NewVariableByteArrayField("data", func(length int) int { return length - 4 })})
}

// MemoryWrite writes a chunk of EEPROM/FRAM memory
func MemoryWrite(length int) *CommandSpec {
	return NewCommandSpec("MW",
		[]Field{NewCharField("type"), NewWordField("page"), NewByteField("start"), NewByteArrayField("data", length)},
		[]Field{NewCharField("type"), NewWordField("page"), NewByteField("start"), NewByteField("length"), NewCharField("result")})
}

// GetAmountOfUCANs reads the amount of uCAN modules behind a CC
func GetAmountOfUCANs() *CommandSpec {
	return NewCommandSpec("FS",
		[]Field{NewAddressField("cc_address", 4), NewLiteralBytesField(0), NewLiteralBytesField(0)},
		[]Field{NewAddressField("cc_address", 4), NewPaddingField(2), NewByteField("amount"), NewPaddingField(2)})
}

// GetUCANAddress reads the address of a specific uCAN
func GetUCANAddress() *CommandSpec {
	return NewCommandSpec("FS",
		[]Field{NewAddressField("cc_address", 4), NewLiteralBytesField(1), NewByteField("ucan_nr")},
		[]Field{NewAddressField("cc_address", 4), NewPaddingField(2), NewAddressField("ucan_address", 3)})
}

// UCANTxTransportMessage tunnels an 8-byte CAN payload towards a uCAN
func UCANTxTransportMessage() *CommandSpec {
	return NewCommandSpec("FM",
		[]Field{NewAddressField("cc_address", 4), NewByteField("nr_can_bytes"), NewByteField("sid"), NewByteArrayField("payload", 8)},
		[]Field{NewAddressField("cc_address", 4)})
}

// UCANRxTransportMessage is pushed by the Core for every CAN payload
// received from a uCAN
func UCANRxTransportMessage() *CommandSpec {
	return NewCommandSpec("FM",
		nil,
		[]Field{NewAddressField("cc_address", 4), NewByteField("nr_can_bytes"), NewByteField("sid"), NewByteArrayField("payload", 8)})
}

// UCANModuleInformation is pushed by the Core when a uCAN module announces
// itself
func UCANModuleInformation() *CommandSpec {
	return NewCommandSpec("CD",
		nil,
		[]Field{NewAddressField("ucan_address", 3), NewWordArrayField("input_links", 6),
			NewByteArrayField("sensor_links", 2), NewByteField("sensor_type"), NewVersionField("version"),
			NewByteField("bootloader"), NewCharField("new_indicator"),
			NewByteField("min_led_brightness"), NewByteField("max_led_brightness")})
}
