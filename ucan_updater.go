package master

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/marcinbor85/gohex"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

const (
	// Application space. Behind it, 4 bytes hold the original reset vector
	// and 4 bytes hold the CRC.
	ucanAddressStart = 0x4
	ucanAddressEnd   = 0xCFF8

	// The uCAN buffers 8 segments. That is 7 data segments plus a 1-byte
	// header each, so 49 bytes, of which the address (4 bytes) and the CRC
	// (4 bytes) leave 41 useful bytes.
	ucanMaxFlashBytes = 41

	ucanBootloaderTimeoutUpdate  = 255
	ucanBootloaderTimeoutRuntime = 0
)

// UCANUpdater flashes Intel HEX images to uCANs through the pallet-mode
// bootloader protocol.
type UCANUpdater struct {
	communicator *UCANCommunicator
	showProgress bool
}

func NewUCANUpdater(communicator *UCANCommunicator, showProgress bool) *UCANUpdater {
	return &UCANUpdater{communicator: communicator, showProgress: showProgress}
}

// Update flashes the content of an Intel HEX file to the specified uCAN.
// This is a long-running, blocking, single-shot operation.
func (updater *UCANUpdater) Update(ccAddress, ucanAddress, hexFilename string) error {
	log.Infof("[UPDATE] updating uCAN %s at CC %s", ucanAddress, ccAddress)

	file, err := os.Open(hexFilename)
	if err != nil {
		return fmt.Errorf("could not open hex file: %w", err)
	}
	defer file.Close()
	image := gohex.NewMemory()
	if err := image.ParseIntelHex(file); err != nil {
		return fmt.Errorf("could not parse hex file: %w", err)
	}
	firmware := image.ToBinary(0, ucanAddressEnd, 0xFF)

	inBootloader, err := updater.communicator.IsUCANInBootloader(ccAddress, ucanAddress)
	if err != nil {
		return err
	}
	if inBootloader {
		log.Info("[UPDATE] bootloader active")
	} else {
		log.Info("[UPDATE] bootloader not active, switching to bootloader")
		if err := updater.enterBootloader(ccAddress, ucanAddress); err != nil {
			return err
		}
		log.Info("[UPDATE] bootloader active")
	}

	log.Info("[UPDATE] erasing flash")
	if _, err := updater.communicator.DoCommand(ccAddress, UCANEraseFlash(), ucanAddress, nil, 10*time.Second); err != nil {
		return fmt.Errorf("could not erase flash: %w", err)
	}

	log.Infof("[UPDATE] flashing contents of %s", filepath.Base(hexFilename))
	if err := updater.flash(ccAddress, ucanAddress, firmware); err != nil {
		return err
	}

	// Prepare reset to application mode
	log.Infof("[UPDATE] reduce bootloader timeout to %ds", ucanBootloaderTimeoutRuntime)
	if _, err := updater.communicator.DoCommand(ccAddress, UCANSetBootloaderTimeout(SIDBootloaderCommand), ucanAddress,
		map[string]any{"timeout": ucanBootloaderTimeoutRuntime}, 2*time.Second); err != nil {
		return err
	}
	log.Info("[UPDATE] set safety bit allowing the application to immediately start on reset")
	if _, err := updater.communicator.DoCommand(ccAddress, UCANSetBootloaderSafetyFlag(), ucanAddress,
		map[string]any{"safety_flag": 1}, 2*time.Second); err != nil {
		return err
	}

	log.Info("[UPDATE] reset to application mode")
	response, err := updater.communicator.DoCommand(ccAddress, UCANReset(SIDBootloaderCommand), ucanAddress, nil, 10*time.Second)
	if err != nil {
		return fmt.Errorf("could not reset uCAN after flashing: %w", err)
	}
	if mode, _ := response["application_mode"].(int); mode != 1 {
		return fmt.Errorf("uCAN did not enter application mode after reset")
	}

	log.Info("[UPDATE] update completed")
	return nil
}

func (updater *UCANUpdater) enterBootloader(ccAddress, ucanAddress string) error {
	if _, err := updater.communicator.DoCommand(ccAddress, UCANSetBootloaderTimeout(SIDNormalCommand), ucanAddress,
		map[string]any{"timeout": ucanBootloaderTimeoutUpdate}, 2*time.Second); err != nil {
		return err
	}
	response, err := updater.communicator.DoCommand(ccAddress, UCANReset(SIDNormalCommand), ucanAddress, nil, 10*time.Second)
	if err != nil {
		return fmt.Errorf("could not reset uCAN before flashing: %w", err)
	}
	if mode, _ := response["application_mode"].(int); mode != 0 {
		return fmt.Errorf("uCAN did not enter bootloader after reset")
	}
	inBootloader, err := updater.communicator.IsUCANInBootloader(ccAddress, ucanAddress)
	if err != nil {
		return err
	}
	if !inBootloader {
		return fmt.Errorf("could not enter bootloader")
	}
	return nil
}

// flash writes the application area block by block. The last block carries
// the original reset vector and the image CRC, erased (all 0xFF) blocks are
// skipped.
func (updater *UCANUpdater) flash(ccAddress, ucanAddress string, firmware []byte) error {
	resetVector := append([]byte{}, firmware[:4]...)
	erasedBlock := bytes.Repeat([]byte{0xFF}, ucanMaxFlashBytes)

	blocks := 0
	for start := ucanAddressStart; start < ucanAddressEnd; start += ucanMaxFlashBytes {
		blocks++
	}
	var bar *progressbar.ProgressBar
	if updater.showProgress {
		bar = progressbar.Default(int64(blocks), "flashing")
	}

	var crc uint32
	var totalPayload []byte
	index := 0
	for start := ucanAddressStart; start < ucanAddressEnd; start += ucanMaxFlashBytes {
		end := start + ucanMaxFlashBytes
		lastBlock := end >= ucanAddressEnd
		if end > ucanAddressEnd {
			end = ucanAddressEnd
		}
		payload := append([]byte{}, firmware[start:end]...)

		crc = CalculatePalletCRC(payload, crc)
		if lastBlock {
			crc = CalculatePalletCRC(resetVector, crc)
			payload = append(payload, resetVector...)
			payload = append(payload, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
		}

		if !bytes.Equal(payload, erasedBlock) {
			// The flash area was just erased, empty blocks can be skipped
			// The uCAN expects the start address in reversed byte order
			reversedStart := uint32(start)<<24 | uint32(start)&0xFF00<<8 | uint32(start)>>8&0xFF00 | uint32(start)>>24
			if _, err := updater.communicator.DoCommand(ccAddress, UCANWriteFlash(len(payload)), ucanAddress,
				map[string]any{"start_address": reversedStart, "data": payload}, 10*time.Second); err != nil {
				return fmt.Errorf("could not write block at 0x%0X: %w", start, err)
			}
		}
		totalPayload = append(totalPayload, payload...)

		index++
		if bar != nil {
			_ = bar.Add(1)
		} else if index%(blocks/100+1) == 0 {
			log.Infof("[UPDATE] flashing %d%%", index*100/blocks)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if residue := CalculatePalletCRC(totalPayload, 0); residue != 0 {
		return &CRCError{Residue: residue}
	}
	log.Info("[UPDATE] flashing done")
	return nil
}
