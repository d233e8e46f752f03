package master

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func startedClassicController(t *testing.T) (*MasterClassicController, *testPort) {
	t.Helper()
	communicator, port := startedCommunicator(t, GenerationClassic)
	controller := NewMasterClassicController(communicator)
	assert.Nil(t, controller.Start())
	t.Cleanup(controller.Stop)
	return controller, port
}

func TestClassicSetOutput(t *testing.T) {
	controller, port := startedClassicController(t)

	var actions [][2]int
	port.handle("BA", func(cid byte, payload []byte) []byte {
		actions = append(actions, [2]int{int(payload[0]), int(payload[1])})
		return replyFrame(GenerationClassic, cid, "BA", payload)
	})

	assert.Nil(t, controller.SetOutput(5, true))
	assert.Nil(t, controller.SetOutput(5, false))
	assert.Nil(t, controller.ToggleOutput(7))
	assert.Equal(t, [][2]int{{BALightOn, 5}, {BALightOff, 5}, {BALightToggle, 7}}, actions)
}

func TestClassicShutters(t *testing.T) {
	controller, port := startedClassicController(t)

	var actions [][2]int
	port.handle("BA", func(cid byte, payload []byte) []byte {
		actions = append(actions, [2]int{int(payload[0]), int(payload[1])})
		return replyFrame(GenerationClassic, cid, "BA", payload)
	})

	assert.Nil(t, controller.ShutterUp(2))
	assert.Nil(t, controller.ShutterDown(2))
	assert.Nil(t, controller.ShutterStop(2))
	assert.Equal(t, [][2]int{{BAShutterUp, 2}, {BAShutterDown, 2}, {BAShutterStop, 2}}, actions)
}

func TestClassicFirmwareVersion(t *testing.T) {
	controller, port := startedClassicController(t)

	port.handle("ST", func(cid byte, payload []byte) []byte {
		response, _ := ClassicStatus().CreateResponsePayload(map[string]any{
			"hours": 12, "minutes": 30, "seconds": 5, "weekday": 3,
			"day": 27, "month": 8, "year": 26, "version": "3.143.102", "mode": 73,
		})
		return replyFrame(GenerationClassic, cid, "ST", response)
	})

	version, err := controller.FirmwareVersion()
	assert.Nil(t, err)
	assert.Equal(t, "3.143.102", version)
}

func TestClassicOutputListUpdatesCache(t *testing.T) {
	controller, port := startedClassicController(t)

	port.handle("RO", func(cid byte, payload []byte) []byte {
		response, _ := ClassicReadOutput().CreateResponsePayload(map[string]any{
			"output_nr": int(payload[0]), "status": 0, "dimmer": 100, "timer": 0,
		})
		return replyFrame(GenerationClassic, cid, "RO", response)
	})
	_, err := controller.LoadOutputState(5)
	assert.Nil(t, err)

	var eventsLock sync.Mutex
	var events []*MasterEvent
	controller.SubscribeEvent(func(event *MasterEvent) {
		eventsLock.Lock()
		events = append(events, event)
		eventsLock.Unlock()
	})

	// The Classic pushes an output list showing output 5 switched on
	response, _ := ClassicOutputList().CreateResponsePayload(map[string]any{
		"amount": 1, "outputs": []byte{5, 80},
	})
	port.push(replyFrame(GenerationClassic, 0, "OL", response))

	assert.Eventually(t, func() bool {
		for _, output := range controller.GetOutputStatuses() {
			if output.ID == 5 && output.Status && output.Dimmer == 80 {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	eventsLock.Lock()
	defer eventsLock.Unlock()
	assert.Len(t, events, 1)
	assert.Equal(t, EventTypeOutput, events[0].Type)
	assert.Equal(t, 5, events[0].DeviceNr)
	assert.Equal(t, 1, events[0].Action)
}

func TestClassicInputListPublishesEvent(t *testing.T) {
	controller, port := startedClassicController(t)

	events := make(chan *MasterEvent, 1)
	controller.SubscribeEvent(func(event *MasterEvent) {
		events <- event
	})

	response, _ := ClassicInputList().CreateResponsePayload(map[string]any{"input": 9, "output": 240})
	port.push(replyFrame(GenerationClassic, 1, "IL", response))

	select {
	case event := <-events:
		assert.Equal(t, EventTypeInput, event.Type)
		assert.Equal(t, 9, event.DeviceNr)
		assert.Equal(t, []int{9}, controller.GetRecentInputs())
	case <-time.After(time.Second):
		t.Fatal("no input event received")
	}
}

func TestClassicEeprom(t *testing.T) {
	controller, port := startedClassicController(t)

	bank := make([]byte, 256)
	for i := range bank {
		bank[i] = byte(i)
	}
	port.handle("EL", func(cid byte, payload []byte) []byte {
		response, _ := ClassicEepromList().CreateResponsePayload(map[string]any{
			"bank": int(payload[0]), "data": bank,
		})
		return replyFrame(GenerationClassic, cid, "EL", response)
	})

	data, err := controller.ReadEepromBank(3)
	assert.Nil(t, err)
	assert.Equal(t, bank, data)

	var writes [][]byte
	port.handle("WE", func(cid byte, payload []byte) []byte {
		writes = append(writes, append([]byte{}, payload...))
		return replyFrame(GenerationClassic, cid, "WE", payload)
	})
	activated := false
	port.handle("AE", func(cid byte, payload []byte) []byte {
		activated = true
		response, _ := ClassicActivateEeprom().CreateResponsePayload(map[string]any{"eep": 0})
		return replyFrame(GenerationClassic, cid, "AE", response)
	})

	assert.Nil(t, controller.WriteEeprom(3, 10, []byte{1, 2, 3}))
	assert.Equal(t, [][]byte{{3, 10, 1, 2, 3}}, writes)
	assert.True(t, activated)
}

func TestClassicLoadOutput(t *testing.T) {
	controller, port := startedClassicController(t)

	bank := make([]byte, 256)
	for i := range bank {
		bank[i] = 255
	}
	bank[0] = 'O'
	bank[8], bank[9] = 1, 44
	bank[65] = 3
	copy(bank[160:], append([]byte("kitchen"), 255))
	requested := -1
	port.handle("EL", func(cid byte, payload []byte) []byte {
		requested = int(payload[0])
		response, _ := ClassicEepromList().CreateResponsePayload(map[string]any{
			"bank": requested, "data": bank,
		})
		return replyFrame(GenerationClassic, cid, "EL", response)
	})

	output, err := controller.LoadOutput(10)
	assert.Nil(t, err)
	assert.Equal(t, 34, requested)
	assert.Equal(t, 10, output["id"])
	assert.Equal(t, "O", output["module_type"])
	assert.Equal(t, 300, output["timer"])
	assert.Equal(t, 3, output["output_type"])
	assert.Equal(t, "kitchen", output["name"])
}

func TestClassicFramUnsupported(t *testing.T) {
	controller, _ := startedClassicController(t)

	_, err := controller.FramReadPage(0)
	var valueError *ValueError
	assert.ErrorAs(t, err, &valueError)
}
