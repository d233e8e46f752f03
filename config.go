package master

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"gopkg.in/ini.v1"
)

// Config holds the gateway's Master connection settings
type Config struct {
	// SerialDevice is the RS485 command port
	SerialDevice string
	// CLISerialDevice is the Core's console port, used for maintenance and
	// Master firmware updates. Empty for a Classic.
	CLISerialDevice string
	BaudRate        int
	Generation      Generation
	CommandTimeout  time.Duration
	Verbose         bool
}

// DefaultConfig returns the settings for a Core on the default port
func DefaultConfig() *Config {
	return &Config{
		SerialDevice:   "/dev/ttyO5",
		BaudRate:       115200,
		Generation:     GenerationCore,
		CommandTimeout: 2 * time.Second,
	}
}

// LoadConfig reads settings from an ini file. Missing keys keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	config := DefaultConfig()
	section := file.Section("master")
	if key := section.Key("serial_device"); key.String() != "" {
		config.SerialDevice = key.String()
	}
	if key := section.Key("cli_serial_device"); key.String() != "" {
		config.CLISerialDevice = key.String()
	}
	if value, err := section.Key("baud_rate").Int(); err == nil && value > 0 {
		config.BaudRate = value
	}
	if key := section.Key("generation"); key.String() != "" {
		switch strings.ToLower(key.String()) {
		case "classic":
			config.Generation = GenerationClassic
		case "core":
			config.Generation = GenerationCore
		default:
			return nil, newValueError("unknown generation %q", key.String())
		}
	}
	if value, err := section.Key("command_timeout_seconds").Int(); err == nil && value > 0 {
		config.CommandTimeout = time.Duration(value) * time.Second
	}
	config.Verbose, _ = section.Key("verbose").Bool()
	return config, nil
}

// OpenSerial opens a serial device with the gateway's line settings
func OpenSerial(device string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", device, err)
	}
	// Bounded reads keep the read loops responsive to Stop
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("could not configure %s: %w", device, err)
	}
	return port, nil
}
