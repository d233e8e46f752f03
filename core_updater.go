package master

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcinbor85/gohex"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

const coreBootloaderReadTimeout = 3 * time.Second

// CoreUpdater flashes Intel HEX images to a Core Master through the
// line-based bootloader console on the CLI serial port.
type CoreUpdater struct {
	cliSerial    io.ReadWriter
	maintenance  *MaintenanceController
	communicator *Communicator
	showProgress bool

	lines    chan string
	finished chan struct{}
}

func NewCoreUpdater(cliSerial io.ReadWriter, maintenance *MaintenanceController,
	communicator *Communicator, showProgress bool) *CoreUpdater {
	return &CoreUpdater{
		cliSerial:    cliSerial,
		maintenance:  maintenance,
		communicator: communicator,
		showProgress: showProgress,
	}
}

// Update flashes the content of an Intel HEX file to the Core. The
// maintenance console is suspended for the duration of the update since
// both talk to the same CLI serial port.
func (updater *CoreUpdater) Update(hexFilename string) error {
	log.Info("[UPDATE] updating Core")

	raw, err := os.ReadFile(hexFilename)
	if err != nil {
		return fmt.Errorf("could not read hex file: %w", err)
	}
	// Parse up front so a corrupt image is rejected before touching the
	// bootloader, the flashing itself sends the original lines.
	image := gohex.NewMemory()
	if err := image.ParseIntelHex(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("could not parse hex file: %w", err)
	}
	var hexLines []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			hexLines = append(hexLines, line)
		}
	}

	maintenanceWasRunning := updater.maintenance != nil && updater.maintenance.IsRunning()
	if maintenanceWasRunning {
		updater.maintenance.Stop()
		// The console comes back even when flashing fails halfway
		defer updater.maintenance.Start()
	}

	updater.lines = make(chan string, 16)
	updater.finished = make(chan struct{})
	defer close(updater.finished)
	go updater.readLines()

	log.Info("[UPDATE] verify bootloader communications")
	if _, err := updater.cliSerial.Write([]byte("hi\n")); err != nil {
		return err
	}
	response, err := updater.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(response, "hi;version=") {
		return fmt.Errorf("unexpected bootloader response: %s", response)
	}
	log.Infof("[UPDATE] bootloader version %s", response[strings.LastIndex(response, "=")+1:])

	log.Infof("[UPDATE] flashing contents of %s", filepath.Base(hexFilename))
	var bar *progressbar.ProgressBar
	if updater.showProgress {
		bar = progressbar.Default(int64(len(hexLines)), "flashing")
	}
	for index, line := range hexLines {
		if _, err := updater.cliSerial.Write([]byte(line + "\n")); err != nil {
			return err
		}
		response, err := updater.readLine()
		if err != nil {
			return err
		}
		if strings.HasPrefix(response, "nok") {
			return fmt.Errorf("unexpected NOK while flashing: %s", response)
		}
		if !strings.HasPrefix(response, "ok") {
			return fmt.Errorf("unexpected answer while flashing: %s", response)
		}
		if bar != nil {
			_ = bar.Add(1)
		} else if index%(len(hexLines)/10+1) == 0 {
			log.Infof("[UPDATE] flashing %d%%", index*100/len(hexLines))
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	log.Info("[UPDATE] flashing done")

	if updater.communicator != nil {
		log.Info("[UPDATE] verify Core communication")
		response, err := updater.communicator.DoCommand(FirmwareVersion(), nil, 5*time.Second)
		if err != nil {
			return fmt.Errorf("could not verify Core communication: %w", err)
		}
		log.Infof("[UPDATE] firmware version %v", response["version"])
	}

	log.Info("[UPDATE] update completed")
	return nil
}

// readLines feeds console lines into a channel so replies can be waited for
// with a timeout. Debug lines start with '#' and are logged instead of
// delivered.
func (updater *CoreUpdater) readLines() {
	scanner := bufio.NewScanner(updater.cliSerial)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "#") {
			log.Debugf("[UPDATE] bootloader debug: %s", line)
			continue
		}
		select {
		case updater.lines <- line:
		case <-updater.finished:
			return
		}
	}
	close(updater.lines)
}

func (updater *CoreUpdater) readLine() (string, error) {
	select {
	case line, ok := <-updater.lines:
		if !ok {
			return "", fmt.Errorf("serial port closed while communicating with Core bootloader")
		}
		return line, nil
	case <-time.After(coreBootloaderReadTimeout):
		return "", newTimeoutError("timeout while communicating with Core bootloader")
	}
}
