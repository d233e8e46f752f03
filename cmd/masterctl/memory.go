package main

import (
	"fmt"
	"strconv"

	"github.com/gatewaycore/gomaster"
	"github.com/spf13/cobra"
)

var memoryType string

var readMemoryCmd = &cobra.Command{
	Use:   "read-memory <page>",
	Short: "Dump a memory page (core) or an EEPROM bank (classic)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page %q", args[0])
		}
		communicator, config, closer, err := openCommunicator()
		if err != nil {
			return err
		}
		defer closer()

		var data []byte
		if config.Generation == master.GenerationClassic {
			controller := master.NewMasterClassicController(communicator)
			data, err = controller.ReadEepromBank(page)
		} else {
			bank := master.MemoryTypeEEPROM
			if memoryType == "fram" {
				bank = master.MemoryTypeFRAM
			}
			var file *master.MemoryFile
			file, err = master.NewMemoryFile(bank, communicator)
			if err == nil {
				data, err = file.ReadPage(page)
			}
		}
		if err != nil {
			return err
		}
		for offset := 0; offset < len(data); offset += 16 {
			end := offset + 16
			if end > len(data) {
				end = len(data)
			}
			fmt.Printf("%04X: % 02X\n", offset, data[offset:end])
		}
		return nil
	},
}

func init() {
	readMemoryCmd.Flags().StringVarP(&memoryType, "type", "t", "eeprom", "memory bank (eeprom|fram)")
	rootCmd.AddCommand(readMemoryCmd)
}
