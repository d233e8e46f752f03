package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Read the Master's firmware version",
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, closer, err := openController()
		if err != nil {
			return err
		}
		defer closer()
		version, err := controller.FirmwareVersion()
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
