package master

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeCLIPort emulates a serial port with a read timeout: reads return
// (0, nil) when no data is pending, like a real port configured through
// OpenSerial.
type fakeCLIPort struct {
	mu       sync.Mutex
	received bytes.Buffer
	partial  []byte
	onLine   func(line string)

	reads chan []byte
}

func newFakeCLIPort() *fakeCLIPort {
	return &fakeCLIPort{reads: make(chan []byte, 64)}
}

func (port *fakeCLIPort) Read(buffer []byte) (int, error) {
	select {
	case data := <-port.reads:
		return copy(buffer, data), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (port *fakeCLIPort) Write(data []byte) (int, error) {
	port.mu.Lock()
	port.received.Write(data)
	port.partial = append(port.partial, data...)
	var lines []string
	for {
		index := bytes.IndexByte(port.partial, '\n')
		if index < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(port.partial[:index]), "\r"))
		port.partial = port.partial[index+1:]
	}
	onLine := port.onLine
	port.mu.Unlock()
	if onLine != nil {
		for _, line := range lines {
			onLine(line)
		}
	}
	return len(data), nil
}

func (port *fakeCLIPort) push(text string) {
	port.reads <- []byte(text)
}

func (port *fakeCLIPort) receivedString() string {
	port.mu.Lock()
	defer port.mu.Unlock()
	return port.received.String()
}

func TestMaintenanceControllerDeliversLines(t *testing.T) {
	port := newFakeCLIPort()
	controller := NewMaintenanceController(port)
	controller.Start()
	defer controller.Stop()
	assert.True(t, controller.IsRunning())

	var linesLock sync.Mutex
	var lines []string
	controller.AddSubscriber(1, func(line string) {
		linesLock.Lock()
		lines = append(lines, line)
		linesLock.Unlock()
	})

	port.push("OK\r\nerror li")
	port.push("st\n")
	assert.Eventually(t, func() bool {
		linesLock.Lock()
		defer linesLock.Unlock()
		return len(lines) == 2 && lines[0] == "OK" && lines[1] == "error list"
	}, time.Second, 10*time.Millisecond)

	controller.RemoveSubscriber(1)
	port.push("ignored\n")
	time.Sleep(50 * time.Millisecond)
	linesLock.Lock()
	assert.Len(t, lines, 2)
	linesLock.Unlock()
}

func TestMaintenanceControllerWrite(t *testing.T) {
	port := newFakeCLIPort()
	controller := NewMaintenanceController(port)
	assert.Nil(t, controller.Write("error list"))
	assert.Equal(t, "error list\r\n", port.receivedString())
}

func TestMaintenanceControllerStopIsIdempotent(t *testing.T) {
	port := newFakeCLIPort()
	controller := NewMaintenanceController(port)
	controller.Start()
	controller.Start()
	assert.True(t, controller.IsRunning())
	controller.Stop()
	controller.Stop()
	assert.False(t, controller.IsRunning())

	// A fresh session can be started afterwards
	controller.Start()
	assert.True(t, controller.IsRunning())
	controller.Stop()
}

func TestMaintenanceControllerSurvivesPanickingSubscriber(t *testing.T) {
	port := newFakeCLIPort()
	controller := NewMaintenanceController(port)
	controller.Start()
	defer controller.Stop()

	received := make(chan string, 2)
	controller.AddSubscriber(1, func(string) { panic("boom") })
	controller.AddSubscriber(2, func(line string) { received <- line })

	port.push("first\nsecond\n")
	assert.Equal(t, "first", <-received)
	assert.Equal(t, "second", <-received)
}
