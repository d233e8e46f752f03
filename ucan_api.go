package master

// UCANPing sends a data byte and expects it echoed back. Works in both
// application and bootloader mode, which makes it the mode probe of choice.
func UCANPing(sid SID) *UCANCommandSpec {
	return NewUCANCommandSpec(sid,
		Instruction{Instruction: []byte{0, 96}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteField("data")},
		[]Instruction{{Instruction: []byte{1, 96}, ChecksumByte: 6}},
		[]Field{NewByteField("data")})
}

// UCANReadConfig reads the full uCAN configuration, spread over 13 reply
// frames.
func UCANReadConfig() *UCANCommandSpec {
	responseInstructions := make([]Instruction, 0, 13)
	for i := byte(1); i <= 13; i++ {
		responseInstructions = append(responseInstructions, Instruction{Instruction: []byte{i, 199}, ChecksumByte: 7})
	}
	return NewUCANCommandSpec(SIDNormalCommand,
		Instruction{Instruction: []byte{0, 199}},
		NewAddressField("ucan_address", 3),
		nil,
		responseInstructions,
		[]Field{
			NewByteField("input_link_0"), NewByteField("input_link_1"), NewByteField("input_link_2"),
			NewByteField("input_link_3"), NewByteField("input_link_4"), NewByteField("input_link_5"),
			NewByteField("sensor_link_0"), NewByteField("sensor_link_1"), NewByteField("sensor_type"),
			NewVersionField("firmware_version"), NewByteField("bootloader"), NewByteField("new_indicator"),
			NewByteField("min_led_brightness"), NewByteField("max_led_brightness"),
			NewWordField("adc_input_2"), NewWordField("adc_input_3"), NewWordField("adc_input_4"),
			NewWordField("adc_input_5"), NewWordField("adc_dc_input"),
		})
}

// UCANSetMinLEDBrightness sets the minimum brightness for a uCAN led
func UCANSetMinLEDBrightness() *UCANCommandSpec {
	return NewUCANCommandSpec(SIDNormalCommand,
		Instruction{Instruction: []byte{0, 246}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteField("brightness")},
		nil, nil)
}

// UCANSetMaxLEDBrightness sets the maximum brightness for a uCAN led
func UCANSetMaxLEDBrightness() *UCANCommandSpec {
	return NewUCANCommandSpec(SIDNormalCommand,
		Instruction{Instruction: []byte{0, 247}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteField("brightness")},
		nil, nil)
}

// UCANSetBootloaderTimeout configures how long the bootloader waits before
// starting the application. 0 keeps it in bootloader forever.
func UCANSetBootloaderTimeout(sid SID) *UCANCommandSpec {
	return NewUCANCommandSpec(sid,
		Instruction{Instruction: []byte{0, 123}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteField("timeout")},
		[]Instruction{{Instruction: []byte{123, 123}, ChecksumByte: 6}},
		[]Field{NewByteField("timeout")})
}

// UCANReset resets the uCAN and reports whether it booted into application
// mode.
func UCANReset(sid SID) *UCANCommandSpec {
	return NewUCANCommandSpec(sid,
		Instruction{Instruction: []byte{0, 94}},
		NewAddressField("ucan_address", 3),
		nil,
		[]Instruction{{Instruction: []byte{94, 94}, ChecksumByte: 6}},
		[]Field{NewByteField("application_mode")})
}

// UCANSetBootloaderSafetyFlag marks the freshly written application as safe
// to boot.
func UCANSetBootloaderSafetyFlag() *UCANCommandSpec {
	return NewUCANCommandSpec(SIDBootloaderCommand,
		Instruction{Instruction: []byte{0, 125}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteField("safety_flag")},
		[]Instruction{{Instruction: []byte{125, 125}, ChecksumByte: 6}},
		[]Field{NewByteField("safety_flag")})
}

// UCANGetMCUID reads the microcontroller identifier through a pallet
// transfer.
func UCANGetMCUID() *UCANPalletCommandSpec {
	return NewUCANPalletCommandSpec(
		NewAddressField("ucan_address", 3),
		PalletTypeMCUIDRequest,
		nil,
		[]Field{NewStringField("mcu_id")})
}

// UCANGetBootloaderVersion reads the bootloader version through a pallet
// transfer.
func UCANGetBootloaderVersion() *UCANPalletCommandSpec {
	return NewUCANPalletCommandSpec(
		NewAddressField("ucan_address", 3),
		PalletTypeBootloaderIDRequest,
		nil,
		[]Field{NewByteField("major"), NewByteField("minor")})
}

// UCANEraseFlash wipes the application area of the flash
func UCANEraseFlash() *UCANPalletCommandSpec {
	return NewUCANPalletCommandSpec(
		NewAddressField("ucan_address", 3),
		PalletTypeEraseFlashRequest,
		nil,
		[]Field{NewByteField("success")})
}

// UCANWriteFlash writes a block of the given length at a flash address
func UCANWriteFlash(dataLength int) *UCANPalletCommandSpec {
	return NewUCANPalletCommandSpec(
		NewAddressField("ucan_address", 3),
		PalletTypeFlashWriteRequest,
		[]Field{NewInt32Field("start_address"), NewByteArrayField("data", dataLength)},
		[]Field{NewByteField("success")})
}

// UCANReadFlash reads a block of the given length from a flash address
func UCANReadFlash(dataLength int) *UCANPalletCommandSpec {
	return NewUCANPalletCommandSpec(
		NewAddressField("ucan_address", 3),
		PalletTypeFlashReadRequest,
		[]Field{NewInt32Field("start_address"), NewByteField("data_length")},
		[]Field{NewByteArrayField("data", dataLength)})
}
