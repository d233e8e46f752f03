package master

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Core basic action types
const (
	coreActionTypeOutput  = 0
	coreActionTypeShutter = 10
)

// MasterCoreController drives a Core generation Master. Asynchronous event,
// error and uCAN information frames are handled through background
// consumers, output state is cached and refreshed periodically.
type MasterCoreController struct {
	communicator     *Communicator
	ucanCommunicator *UCANCommunicator
	memoryFiles      map[MemoryType]*MemoryFile
	timeout          time.Duration

	callbacksLock  sync.Mutex
	eventCallbacks []func(event *MasterEvent)

	outputStatus *OutputStatus

	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

func NewMasterCoreController(communicator *Communicator, ucanCommunicator *UCANCommunicator) (*MasterCoreController, error) {
	eeprom, err := NewMemoryFile(MemoryTypeEEPROM, communicator)
	if err != nil {
		return nil, err
	}
	fram, err := NewMemoryFile(MemoryTypeFRAM, communicator)
	if err != nil {
		return nil, err
	}
	controller := &MasterCoreController{
		communicator:     communicator,
		ucanCommunicator: ucanCommunicator,
		memoryFiles:      map[MemoryType]*MemoryFile{MemoryTypeEEPROM: eeprom, MemoryTypeFRAM: fram},
		timeout:          2 * time.Second,
	}
	controller.outputStatus = NewOutputStatus(nil)

	communicator.RegisterConsumer(NewBackgroundConsumer(EventInformation(), 0, controller.handleEvent))
	communicator.RegisterConsumer(NewBackgroundConsumer(ErrorInformation(), 0, func(fields map[string]any) {
		log.Infof("[MASTER] got master error: %s", DecodeMasterError(fields))
	}))
	communicator.RegisterConsumer(NewBackgroundConsumer(UCANModuleInformation(), 0, func(fields map[string]any) {
		log.Infof("[MASTER] got uCAN module information: %v", fields)
	}))
	return controller, nil
}

// Start launches the monitor goroutine refreshing output states
func (controller *MasterCoreController) Start() error {
	if controller.running {
		return nil
	}
	controller.running = true
	controller.stopChan = make(chan struct{})
	controller.done = make(chan struct{})
	go controller.monitor()
	return nil
}

func (controller *MasterCoreController) Stop() {
	if !controller.running {
		return
	}
	controller.running = false
	close(controller.stopChan)
	<-controller.done
}

func (controller *MasterCoreController) SubscribeEvent(callback func(event *MasterEvent)) {
	controller.callbacksLock.Lock()
	defer controller.callbacksLock.Unlock()
	controller.eventCallbacks = append(controller.eventCallbacks, callback)
}

func (controller *MasterCoreController) handleEvent(fields map[string]any) {
	event := DecodeMasterEvent(fields)
	log.Infof("[MASTER] got master event: %s", event)
	if data, ok := event.Output(); ok {
		controller.outputStatus.Update(OutputState{
			ID:     data.Output,
			Status: data.Status,
			Dimmer: data.DimmerValue,
			Timer:  data.TimerValue,
		})
	}
	controller.callbacksLock.Lock()
	callbacks := append([]func(*MasterEvent){}, controller.eventCallbacks...)
	controller.callbacksLock.Unlock()
	for _, callback := range callbacks {
		callback(event)
	}
}

// monitor periodically refreshes the output state cache. A communication
// timeout backs off before trying again.
func (controller *MasterCoreController) monitor() {
	defer close(controller.done)
	interval := 10 * time.Minute
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-controller.stopChan:
			return
		case <-timer.C:
		}
		if err := controller.RefreshOutputStates(); err != nil {
			if IsTimeout(err) {
				log.Error("[MASTER] got communication timeout during monitoring, waiting 10 seconds")
			} else {
				log.Errorf("[MASTER] unexpected error during monitoring: %v", err)
			}
			timer.Reset(10 * time.Second)
			continue
		}
		timer.Reset(interval)
	}
}

func (controller *MasterCoreController) FirmwareVersion() (string, error) {
	response, err := controller.communicator.DoCommand(FirmwareVersion(), nil, controller.timeout)
	if err != nil {
		return "", err
	}
	version, _ := response["version"].(string)
	return version, nil
}

func (controller *MasterCoreController) basicAction(actionType, action, deviceNr int) error {
	_, err := controller.communicator.DoCommand(BasicActionCommand(), map[string]any{
		"type":            actionType,
		"action":          action,
		"device_nr":       deviceNr,
		"extra_parameter": 0,
	}, controller.timeout)
	return err
}

func (controller *MasterCoreController) SetOutput(outputID int, on bool) error {
	action := 0
	if on {
		action = 1
	}
	return controller.basicAction(coreActionTypeOutput, action, outputID)
}

func (controller *MasterCoreController) ToggleOutput(outputID int) error {
	return controller.basicAction(coreActionTypeOutput, 16, outputID)
}

func (controller *MasterCoreController) GetOutputStatuses() []OutputState {
	return controller.outputStatus.GetOutputs()
}

// RefreshOutputStates reads the detailed state of every configured output
func (controller *MasterCoreController) RefreshOutputStates() error {
	response, err := controller.communicator.DoCommand(GeneralConfigurationNumberOfModules(), nil, controller.timeout)
	if err != nil {
		return err
	}
	amountOutputModules, _ := response["output"].(int)
	outputs := make([]OutputState, 0, amountOutputModules*8)
	for i := 0; i < amountOutputModules*8; i++ {
		state, err := controller.communicator.DoCommand(OutputDetail(), map[string]any{"device_nr": i}, controller.timeout)
		if err != nil {
			return err
		}
		statusValue, _ := state["status"].(int)
		dimmer, _ := state["dimmer"].(int)
		timer, _ := state["timer"].(int)
		outputs = append(outputs, OutputState{ID: i, Status: statusValue == 1, Dimmer: dimmer, Timer: timer})
	}
	controller.outputStatus.FullUpdate(outputs)
	return nil
}

func (controller *MasterCoreController) ShutterUp(shutterID int) error {
	return controller.basicAction(coreActionTypeShutter, 1, shutterID)
}

func (controller *MasterCoreController) ShutterDown(shutterID int) error {
	return controller.basicAction(coreActionTypeShutter, 2, shutterID)
}

func (controller *MasterCoreController) ShutterStop(shutterID int) error {
	return controller.basicAction(coreActionTypeShutter, 0, shutterID)
}

// EepromReadPage reads a full EEPROM page
func (controller *MasterCoreController) EepromReadPage(page int) ([]byte, error) {
	return controller.memoryFiles[MemoryTypeEEPROM].ReadPage(page)
}

// FramReadPage reads a full FRAM page
func (controller *MasterCoreController) FramReadPage(page int) ([]byte, error) {
	return controller.memoryFiles[MemoryTypeFRAM].ReadPage(page)
}

// InvalidateMemoryCache drops the cached pages of both memory banks
func (controller *MasterCoreController) InvalidateMemoryCache() {
	for _, file := range controller.memoryFiles {
		file.InvalidateAll()
	}
}

// MemoryFiles exposes the memory banks for model access
func (controller *MasterCoreController) MemoryFiles() map[MemoryType]*MemoryFile {
	return controller.memoryFiles
}

// LoadOutput reads the configuration of one output from memory
func (controller *MasterCoreController) LoadOutput(outputID int) (map[string]any, error) {
	record := OutputConfiguration.Load(outputID, controller.memoryFiles)
	data, err := record.Serialize()
	if err != nil {
		return nil, err
	}
	module, err := record.Relation("module")
	if err != nil {
		return nil, err
	}
	deviceType, err := module.Get("device_type")
	if err != nil {
		return nil, err
	}
	data["module_type"] = deviceType
	return data, nil
}

// LoadOutputs reads the configuration of every configured output
func (controller *MasterCoreController) LoadOutputs() ([]map[string]any, error) {
	response, err := controller.communicator.DoCommand(GeneralConfigurationNumberOfModules(), nil, controller.timeout)
	if err != nil {
		return nil, err
	}
	amountOutputModules, _ := response["output"].(int)
	outputs := make([]map[string]any, 0, amountOutputModules*8)
	for i := 0; i < amountOutputModules*8; i++ {
		output, err := controller.LoadOutput(i)
		if err != nil {
			return nil, fmt.Errorf("could not load output %d: %w", i, err)
		}
		outputs = append(outputs, output)
	}
	return outputs, nil
}
