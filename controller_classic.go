package master

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MasterClassicController drives a Classic generation Master. The Classic
// pushes output and input lists whenever something changes, those are turned
// into the same cached state and events as the Core's.
type MasterClassicController struct {
	communicator *Communicator
	timeout      time.Duration

	callbacksLock  sync.Mutex
	eventCallbacks []func(event *MasterEvent)

	outputStatus *OutputStatus
	inputStatus  *InputStatus
}

func NewMasterClassicController(communicator *Communicator) *MasterClassicController {
	controller := &MasterClassicController{
		communicator: communicator,
		timeout:      2 * time.Second,
	}
	controller.outputStatus = NewOutputStatus(controller.handleOutputChange)
	controller.inputStatus = NewInputStatus(5, 10*time.Second, nil)

	communicator.RegisterConsumer(NewBackgroundConsumer(ClassicOutputList(), 0, controller.handleOutputList))
	communicator.RegisterConsumer(NewBackgroundConsumer(ClassicInputList(), 1, controller.handleInputList))
	return controller
}

func (controller *MasterClassicController) Start() error { return nil }

func (controller *MasterClassicController) Stop() {}

func (controller *MasterClassicController) SubscribeEvent(callback func(event *MasterEvent)) {
	controller.callbacksLock.Lock()
	defer controller.callbacksLock.Unlock()
	controller.eventCallbacks = append(controller.eventCallbacks, callback)
}

func (controller *MasterClassicController) publishEvent(event *MasterEvent) {
	controller.callbacksLock.Lock()
	callbacks := append([]func(*MasterEvent){}, controller.eventCallbacks...)
	controller.callbacksLock.Unlock()
	for _, callback := range callbacks {
		callback(event)
	}
}

func (controller *MasterClassicController) handleOutputChange(state OutputState) {
	action := 0
	if state.Status {
		action = 1
	}
	controller.publishEvent(&MasterEvent{
		Type:     EventTypeOutput,
		Action:   action,
		DeviceNr: state.ID,
		Data:     []byte{byte(state.Dimmer), 0, byte(state.Timer >> 8), byte(state.Timer)},
	})
}

// handleOutputList processes an unsolicited list of switched-on outputs
func (controller *MasterClassicController) handleOutputList(fields map[string]any) {
	pairs, ok := parseOutputList(fields)
	if !ok {
		log.Warn("[MASTER] received malformed output list")
		return
	}
	controller.outputStatus.PartialUpdate(pairs)
}

func parseOutputList(fields map[string]any) ([][2]int, bool) {
	amount, _ := fields["amount"].(int)
	data, _ := fields["outputs"].([]byte)
	if len(data) < amount*2 {
		return nil, false
	}
	pairs := make([][2]int, 0, amount)
	for i := 0; i < amount; i++ {
		pairs = append(pairs, [2]int{int(data[i*2]), int(data[i*2+1])})
	}
	return pairs, true
}

func (controller *MasterClassicController) handleInputList(fields map[string]any) {
	input, _ := fields["input"].(int)
	controller.inputStatus.SetInput(InputEventData{Input: input, Status: true})
	controller.publishEvent(&MasterEvent{Type: EventTypeInput, Action: 1, DeviceNr: input})
}

func (controller *MasterClassicController) FirmwareVersion() (string, error) {
	response, err := controller.communicator.DoCommand(ClassicStatus(), nil, controller.timeout)
	if err != nil {
		return "", err
	}
	version, _ := response["version"].(string)
	return version, nil
}

func (controller *MasterClassicController) basicAction(actionType, actionNumber int) error {
	_, err := controller.communicator.DoCommand(ClassicBasicAction(), map[string]any{
		"action_type":   actionType,
		"action_number": actionNumber,
	}, controller.timeout)
	return err
}

// SetOutput switches a single output through one basic action
func (controller *MasterClassicController) SetOutput(outputID int, on bool) error {
	actionType := BALightOff
	if on {
		actionType = BALightOn
	}
	return controller.basicAction(actionType, outputID)
}

func (controller *MasterClassicController) ToggleOutput(outputID int) error {
	return controller.basicAction(BALightToggle, outputID)
}

func (controller *MasterClassicController) GetOutputStatuses() []OutputState {
	return controller.outputStatus.GetOutputs()
}

// RefreshOutputStates requests the output list and merges it into the cache
func (controller *MasterClassicController) RefreshOutputStates() error {
	response, err := controller.communicator.DoCommand(ClassicOutputList(), nil, controller.timeout)
	if err != nil {
		return err
	}
	pairs, ok := parseOutputList(response)
	if !ok {
		return newValueError("received malformed output list")
	}
	controller.outputStatus.PartialUpdate(pairs)
	return nil
}

// LoadOutputState reads and caches the state of a single output
func (controller *MasterClassicController) LoadOutputState(outputID int) (OutputState, error) {
	response, err := controller.communicator.DoCommand(ClassicReadOutput(), map[string]any{"output_nr": outputID}, controller.timeout)
	if err != nil {
		return OutputState{}, err
	}
	statusValue, _ := response["status"].(int)
	dimmer, _ := response["dimmer"].(int)
	timer, _ := response["timer"].(int)
	state := OutputState{ID: outputID, Status: statusValue == 1, Dimmer: dimmer, Timer: timer}
	controller.outputStatus.Update(state)
	return state, nil
}

// GetRecentInputs returns the inputs pressed within the tracking window
func (controller *MasterClassicController) GetRecentInputs() []int {
	return controller.inputStatus.GetRecent()
}

func (controller *MasterClassicController) ShutterUp(shutterID int) error {
	return controller.basicAction(BAShutterUp, shutterID)
}

func (controller *MasterClassicController) ShutterDown(shutterID int) error {
	return controller.basicAction(BAShutterDown, shutterID)
}

func (controller *MasterClassicController) ShutterStop(shutterID int) error {
	return controller.basicAction(BAShutterStop, shutterID)
}

// ReadEepromBank reads a full 256-byte EEPROM bank
func (controller *MasterClassicController) ReadEepromBank(bank int) ([]byte, error) {
	response, err := controller.communicator.DoCommand(ClassicEepromList(), map[string]any{"bank": bank}, 5*time.Second)
	if err != nil {
		return nil, err
	}
	data, _ := response["data"].([]byte)
	return data, nil
}

// EepromReadPage reads one memory page, a bank on the Classic
func (controller *MasterClassicController) EepromReadPage(page int) ([]byte, error) {
	return controller.ReadEepromBank(page)
}

func (controller *MasterClassicController) FramReadPage(page int) ([]byte, error) {
	return nil, newValueError("a classic master has no FRAM bank")
}

// InvalidateMemoryCache is a no-op, bank reads are not cached
func (controller *MasterClassicController) InvalidateMemoryCache() {}

// Classic output configuration layout inside the per-module banks
const (
	classicOutputBankBase   = 33
	classicTimerOffset      = 4
	classicOutputTypeOffset = 63
	classicNameOffset       = 128
	classicNameLength       = 16
)

// LoadOutput reads the stored configuration of one output from its module
// bank
func (controller *MasterClassicController) LoadOutput(outputID int) (map[string]any, error) {
	bank, err := controller.ReadEepromBank(classicOutputBankBase + outputID/8)
	if err != nil {
		return nil, err
	}
	if len(bank) < 256 {
		return nil, newValueError("received truncated bank for output %d", outputID)
	}
	slot := outputID % 8
	timerOffset := classicTimerOffset + slot*2
	nameOffset := classicNameOffset + slot*classicNameLength
	return map[string]any{
		"id":          outputID,
		"module_type": string(bank[0:1]),
		"timer":       int(bank[timerOffset])<<8 | int(bank[timerOffset+1]),
		"output_type": int(bank[classicOutputTypeOffset+slot]),
		"name":        memoryStringCodec{size: classicNameLength}.decode(bank[nameOffset : nameOffset+classicNameLength]),
	}, nil
}

// WriteEeprom writes bytes to an EEPROM bank and activates the change
func (controller *MasterClassicController) WriteEeprom(bank, address int, data []byte) error {
	if _, err := controller.communicator.DoCommand(ClassicWriteEeprom(len(data)), map[string]any{
		"bank":    bank,
		"address": address,
		"data":    data,
	}, controller.timeout); err != nil {
		return err
	}
	_, err := controller.communicator.DoCommand(ClassicActivateEeprom(), nil, controller.timeout)
	return err
}

// EnterMaintenance switches the shared serial port to maintenance mode. The
// consumer receives the raw console output.
func (controller *MasterClassicController) EnterMaintenance(consumer func(data []byte)) error {
	return controller.communicator.EnterMaintenanceMode(consumer)
}

// LeaveMaintenance returns the shared serial port to command mode
func (controller *MasterClassicController) LeaveMaintenance() {
	controller.communicator.LeaveMaintenanceMode()
}
