package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setOutputCmd = &cobra.Command{
	Use:   "set-output <id> <on|off>",
	Short: "Switch a single output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid output id %q", args[0])
		}
		var on bool
		switch args[1] {
		case "on":
			on = true
		case "off":
		default:
			return fmt.Errorf("state should be on or off, got %q", args[1])
		}
		controller, closer, err := openController()
		if err != nil {
			return err
		}
		defer closer()
		return controller.SetOutput(outputID, on)
	},
}

var toggleOutputCmd = &cobra.Command{
	Use:   "toggle-output <id>",
	Short: "Toggle a single output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid output id %q", args[0])
		}
		controller, closer, err := openController()
		if err != nil {
			return err
		}
		defer closer()
		return controller.ToggleOutput(outputID)
	},
}

var outputStatusCmd = &cobra.Command{
	Use:   "output-status",
	Short: "Read the state of all outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, closer, err := openController()
		if err != nil {
			return err
		}
		defer closer()
		if err := controller.RefreshOutputStates(); err != nil {
			return err
		}
		for _, state := range controller.GetOutputStatuses() {
			status := "off"
			if state.Status {
				status = "on"
			}
			fmt.Printf("output %3d: %-3s dimmer %3d timer %d\n", state.ID, status, state.Dimmer, state.Timer)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setOutputCmd)
	rootCmd.AddCommand(toggleOutputCmd)
	rootCmd.AddCommand(outputStatusCmd)
}
