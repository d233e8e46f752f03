package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/gatewaycore/gomaster"
	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Open an interactive maintenance console",
	Long: `Opens a passthrough session to the Master's CLI console.

On a Core this uses the dedicated CLI serial port. On a Classic the shared
command port is switched to maintenance mode for the duration of the
session, suspending regular commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		if config.Generation == master.GenerationClassic {
			return runClassicMaintenance(config)
		}
		return runCoreMaintenance(config)
	},
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
}

func runCoreMaintenance(config *master.Config) error {
	if config.CLISerialDevice == "" {
		return fmt.Errorf("a cli serial device is required for core maintenance")
	}
	cliPort, err := master.OpenSerial(config.CLISerialDevice, config.BaudRate)
	if err != nil {
		return err
	}
	defer cliPort.Close()

	controller := master.NewMaintenanceController(cliPort)
	controller.AddSubscriber(0, func(line string) {
		fmt.Println(line)
	})
	controller.Start()
	defer controller.Stop()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "exit" {
			return nil
		}
		if err := controller.Write(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runClassicMaintenance(config *master.Config) error {
	port, err := master.OpenSerial(config.SerialDevice, config.BaudRate)
	if err != nil {
		return err
	}
	communicator := master.NewCommunicator(port, master.GenerationClassic, config.Verbose)
	communicator.Start()
	defer communicator.Stop()

	if err := communicator.EnterMaintenanceMode(func(data []byte) {
		fmt.Print(string(data))
	}); err != nil {
		return err
	}
	defer communicator.LeaveMaintenanceMode()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "exit" {
			return nil
		}
		if err := communicator.WriteMaintenance([]byte(line + "\r\n")); err != nil {
			return err
		}
	}
	return scanner.Err()
}
