package main

import (
	"fmt"

	"github.com/gatewaycore/gomaster"
	"github.com/spf13/cobra"
)

var updateUCANCmd = &cobra.Command{
	Use:   "update-ucan <cc-address> <ucan-address> <hex-file>",
	Short: "Flash a firmware image to a uCAN",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		communicator, config, closer, err := openCommunicator()
		if err != nil {
			return err
		}
		defer closer()
		ucan := master.NewUCANCommunicator(communicator, config.Verbose)
		updater := master.NewUCANUpdater(ucan, true)
		return updater.Update(args[0], args[1], args[2])
	},
}

var updateMasterCmd = &cobra.Command{
	Use:   "update-master <hex-file>",
	Short: "Flash a firmware image to the Master itself",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		if config.CLISerialDevice == "" {
			return fmt.Errorf("a cli serial device is required to update the Master")
		}
		cliPort, err := master.OpenSerial(config.CLISerialDevice, config.BaudRate)
		if err != nil {
			return err
		}
		defer cliPort.Close()
		updater := master.NewCoreUpdater(cliPort, nil, nil, true)
		return updater.Update(args[0])
	},
}

func init() {
	rootCmd.AddCommand(updateUCANCmd)
	rootCmd.AddCommand(updateMasterCmd)
}
