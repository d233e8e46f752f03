package master

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// MaintenanceController exposes the Master's interactive CLI console as a
// line-based passthrough session. The Core has a separate serial port for
// this console, the Classic shares the command port and needs the
// communicator switched into maintenance mode first.
type MaintenanceController struct {
	serial io.ReadWriter

	writeLock sync.Mutex

	subscribersLock sync.Mutex
	subscribers     map[int]func(line string)

	running int32
	stop    chan struct{}
	done    chan struct{}
}

func NewMaintenanceController(serial io.ReadWriter) *MaintenanceController {
	return &MaintenanceController{
		serial:      serial,
		subscribers: map[int]func(string){},
	}
}

// Start launches the read loop
func (controller *MaintenanceController) Start() {
	if !atomic.CompareAndSwapInt32(&controller.running, 0, 1) {
		return
	}
	controller.stop = make(chan struct{})
	controller.done = make(chan struct{})
	go controller.readData()
}

// Stop halts the read loop. The loop also ends when the port is closed.
func (controller *MaintenanceController) Stop() {
	if !atomic.CompareAndSwapInt32(&controller.running, 1, 0) {
		return
	}
	close(controller.stop)
	<-controller.done
}

func (controller *MaintenanceController) IsRunning() bool {
	return atomic.LoadInt32(&controller.running) == 1
}

// AddSubscriber registers a callback receiving every console line
func (controller *MaintenanceController) AddSubscriber(id int, callback func(line string)) {
	controller.subscribersLock.Lock()
	defer controller.subscribersLock.Unlock()
	controller.subscribers[id] = callback
}

func (controller *MaintenanceController) RemoveSubscriber(id int) {
	controller.subscribersLock.Lock()
	defer controller.subscribersLock.Unlock()
	delete(controller.subscribers, id)
}

// readData assembles console lines from bounded serial reads. A read timeout
// on the port makes empty reads the moments to notice a Stop.
func (controller *MaintenanceController) readData() {
	defer close(controller.done)
	var pending []byte
	buffer := make([]byte, 256)
	for {
		select {
		case <-controller.stop:
			return
		default:
		}
		read, err := controller.serial.Read(buffer)
		if err != nil {
			if atomic.LoadInt32(&controller.running) == 1 {
				log.Warnf("[MAINTENANCE] read loop ended: %v", err)
			}
			return
		}
		pending = append(pending, buffer[:read]...)
		for {
			index := bytes.IndexByte(pending, '\n')
			if index < 0 {
				break
			}
			line := strings.TrimRight(string(pending[:index]), "\r")
			pending = pending[index+1:]
			controller.deliver(line)
		}
	}
}

func (controller *MaintenanceController) deliver(line string) {
	controller.subscribersLock.Lock()
	callbacks := make([]func(string), 0, len(controller.subscribers))
	for _, callback := range controller.subscribers {
		callbacks = append(callbacks, callback)
	}
	controller.subscribersLock.Unlock()

	for _, callback := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("[MAINTENANCE] unexpected panic during maintenance callback: %v", r)
				}
			}()
			callback(line)
		}()
	}
}

// Write sends one console command, terminated with CRLF
func (controller *MaintenanceController) Write(message string) error {
	controller.writeLock.Lock()
	defer controller.writeLock.Unlock()
	_, err := controller.serial.Write([]byte(strings.TrimSpace(message) + "\r\n"))
	return err
}
