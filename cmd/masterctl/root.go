package main

import (
	"fmt"
	"strings"

	"github.com/gatewaycore/gomaster"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	portName   string
	baudRate   int
	generation string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "masterctl",
	Short: "Gateway Master control tool",
	Long: `Masterctl talks to an OpenMotics-style Master over its RS485 serial port.

It supports both Master generations (classic and core), and provides
commands for switching outputs, inspecting memory, firmware updates and
the maintenance console.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "ini config file")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "baud rate")
	rootCmd.PersistentFlags().StringVarP(&generation, "generation", "g", "", "master generation (classic|core)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose frame logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges the config file with the command line flag overrides
func loadConfig() (*master.Config, error) {
	config := master.DefaultConfig()
	if configPath != "" {
		loaded, err := master.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if portName != "" {
		config.SerialDevice = portName
	}
	if baudRate > 0 {
		config.BaudRate = baudRate
	}
	switch strings.ToLower(generation) {
	case "":
	case "classic":
		config.Generation = master.GenerationClassic
	case "core":
		config.Generation = master.GenerationCore
	default:
		return nil, fmt.Errorf("unknown generation %q", generation)
	}
	if verbose {
		config.Verbose = true
		log.SetLevel(log.DebugLevel)
	}
	return config, nil
}

// openCommunicator opens the serial port and starts a communicator on it.
// The returned closer stops both.
func openCommunicator() (*master.Communicator, *master.Config, func(), error) {
	config, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	port, err := master.OpenSerial(config.SerialDevice, config.BaudRate)
	if err != nil {
		return nil, nil, nil, err
	}
	communicator := master.NewCommunicator(port, config.Generation, config.Verbose)
	communicator.Start()
	closer := func() {
		communicator.Stop()
	}
	return communicator, config, closer, nil
}

// openController builds the generation-specific controller
func openController() (master.MasterController, func(), error) {
	communicator, config, closer, err := openCommunicator()
	if err != nil {
		return nil, nil, err
	}
	if config.Generation == master.GenerationClassic {
		return master.NewMasterClassicController(communicator), closer, nil
	}
	ucan := master.NewUCANCommunicator(communicator, config.Verbose)
	controller, err := master.NewMasterCoreController(communicator, ucan)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return controller, closer, nil
}
