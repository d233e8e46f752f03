package master

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Generation selects the Master hardware generation and with it the wire
// framing of the serial protocol.
type Generation int

const (
	GenerationClassic Generation = iota
	GenerationCore
)

func (g Generation) String() string {
	if g == GenerationClassic {
		return "classic"
	}
	return "core"
}

// framing holds the per-generation frame markers. The frame layout itself is
// identical across generations:
//
//	request:  START + {cid, 1 byte} + {instruction, 2 bytes} + {length, 2 bytes} + {payload} + 'C' + {checksum, 1 byte} + END
//	response: same layout with the reply markers
type framing struct {
	startOfRequest []byte
	endOfRequest   []byte
	startOfReply   []byte
	endOfReply     []byte
}

var framings = map[Generation]framing{
	GenerationClassic: {
		startOfRequest: []byte("STC"),
		endOfRequest:   []byte("\r\n"),
		startOfReply:   []byte("RTC"),
		endOfReply:     []byte("\r\n"),
	},
	GenerationCore: {
		startOfRequest: []byte("STR"),
		endOfRequest:   []byte("\r\n\r\n"),
		startOfReply:   []byte("RTR"),
		endOfReply:     []byte("\r\n"),
	},
}

const checksumMarker = 'C'

// additiveChecksum is the frame checksum: sum of all checked bytes mod 256
func additiveChecksum(data []byte) byte {
	var crc byte
	for _, item := range data {
		crc += item
	}
	return crc
}

// CommunicationStatistics tracks link health for external activity and
// health indicators.
type CommunicationStatistics struct {
	CallsSucceeded []time.Time
	CallsTimedOut  []time.Time
	BytesWritten   uint64
	BytesRead      uint64
}

// Communicator owns a physical serial channel towards a Master. It frames
// outgoing commands, runs a dedicated reader goroutine that reassembles
// reply frames, matches them to pending consumers and enforces the serial
// half-duplex discipline of a single in-flight command.
type Communicator struct {
	port       io.ReadWriter
	generation Generation
	framing    framing
	verbose    bool

	writeLock   sync.Mutex
	commandLock sync.Mutex

	bytesWritten uint64
	bytesRead    uint64

	cidLock   sync.Mutex
	cid       int
	cidsInUse map[byte]bool

	consumersLock sync.Mutex
	consumers     map[string][]frameConsumer

	statsLock   sync.Mutex
	succeeded   []time.Time
	timedOut    []time.Time
	lastSuccess time.Time

	maintenanceLock     sync.Mutex
	maintenanceActive   bool
	maintenanceConsumer func([]byte)

	running int32
	stop    chan struct{}
	done    chan struct{}
}

// NewCommunicator creates a communicator for the given generation on top of
// an exclusively owned serial port. Call Start before issuing commands.
func NewCommunicator(port io.ReadWriter, generation Generation, verbose bool) *Communicator {
	return &Communicator{
		port:       port,
		generation: generation,
		framing:    framings[generation],
		verbose:    verbose,
		cid:        -1,
		cidsInUse:  map[byte]bool{},
		consumers:  map[string][]frameConsumer{},
	}
}

// Start launches the background reader goroutine
func (c *Communicator) Start() {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.read()
}

// Stop signals the reader goroutine and waits for it to exit
func (c *Communicator) Stop() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}
	close(c.stop)
	if closer, ok := c.port.(io.Closer); ok {
		// Unblocks a pending port read
		closer.Close()
	}
	<-c.done

	c.consumersLock.Lock()
	remaining := c.consumers
	c.consumers = map[string][]frameConsumer{}
	c.consumersLock.Unlock()
	for _, list := range remaining {
		for _, consumer := range list {
			consumer.release()
		}
	}
}

// Generation returns the configured Master generation
func (c *Communicator) Generation() Generation {
	return c.generation
}

// GetBytesWritten returns the number of bytes written to the Master. The
// counter is monotonic and safe to read concurrently.
func (c *Communicator) GetBytesWritten() uint64 {
	return atomic.LoadUint64(&c.bytesWritten)
}

// GetBytesRead returns the number of bytes read from the Master
func (c *Communicator) GetBytesRead() uint64 {
	return atomic.LoadUint64(&c.bytesRead)
}

// GetCommunicationStatistics returns a snapshot of the link statistics
func (c *Communicator) GetCommunicationStatistics() CommunicationStatistics {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()
	stats := CommunicationStatistics{
		CallsSucceeded: append([]time.Time{}, c.succeeded...),
		CallsTimedOut:  append([]time.Time{}, c.timedOut...),
		BytesWritten:   atomic.LoadUint64(&c.bytesWritten),
		BytesRead:      atomic.LoadUint64(&c.bytesRead),
	}
	return stats
}

// GetSecondsSinceLastSuccess returns the seconds since the last successful
// command, or 0 when nothing was sent yet.
func (c *Communicator) GetSecondsSinceLastSuccess() float64 {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()
	if c.lastSuccess.IsZero() {
		return 0
	}
	return time.Since(c.lastSuccess).Seconds()
}

// getCID allocates a communication id. CIDs 0 and 1 are reserved for
// background consumers.
func (c *Communicator) getCID() (byte, error) {
	c.cidLock.Lock()
	defer c.cidLock.Unlock()
	candidate := c.cid
	for attempt := 0; attempt < 254; attempt++ {
		candidate++
		if candidate < 2 || candidate > 255 {
			candidate = 2
		}
		if !c.cidsInUse[byte(candidate)] {
			c.cid = candidate
			c.cidsInUse[byte(candidate)] = true
			return byte(candidate), nil
		}
	}
	return 0, ErrNoCID
}

func (c *Communicator) releaseCID(cid byte) {
	c.cidLock.Lock()
	defer c.cidLock.Unlock()
	delete(c.cidsInUse, cid)
}

// RegisterConsumer registers a background consumer. Its frames are delivered
// without consuming a pending-request slot.
func (c *Communicator) RegisterConsumer(consumer frameConsumer) {
	c.consumersLock.Lock()
	defer c.consumersLock.Unlock()
	header := consumer.header(c.framing)
	c.consumers[header] = append(c.consumers[header], consumer)
}

// UnregisterConsumer removes a consumer and releases its CID
func (c *Communicator) UnregisterConsumer(consumer frameConsumer) {
	c.consumersLock.Lock()
	header := consumer.header(c.framing)
	consumers := c.consumers[header]
	for i, candidate := range consumers {
		if candidate == consumer {
			c.consumers[header] = append(consumers[:i], consumers[i+1:]...)
			break
		}
	}
	c.consumersLock.Unlock()
	consumer.release()
	if cid := consumer.cid(); cid >= 2 {
		c.releaseCID(cid)
	}
}

// DoBasicAction sends a basic action to the Master
func (c *Communicator) DoBasicAction(actionType, action, deviceNr, extraParameter int, timeout time.Duration) (map[string]any, error) {
	log.Infof("[COMM] BA: execute %d %d %d %d", actionType, action, deviceNr, extraParameter)
	return c.DoCommand(BasicActionCommand(), map[string]any{
		"type":            actionType,
		"action":          action,
		"device_nr":       deviceNr,
		"extra_parameter": extraParameter,
	}, timeout)
}

// DoCommand sends a command over the serial port and blocks until an answer
// is received or the timeout expires. Concurrent callers are serialized, the
// serial link is half duplex and allows one in-flight command at a time.
func (c *Communicator) DoCommand(spec *CommandSpec, fields map[string]any, timeout time.Duration) (map[string]any, error) {
	if atomic.LoadInt32(&c.running) == 0 {
		return nil, ErrStopped
	}
	if c.InMaintenanceMode() {
		return nil, &MaintenanceModeError{}
	}

	payload, err := spec.CreateRequestPayload(fields)
	if err != nil {
		return nil, err
	}

	c.commandLock.Lock()
	defer c.commandLock.Unlock()

	cid, err := c.getCID()
	if err != nil {
		return nil, err
	}
	consumer := NewConsumer(spec, cid)
	c.RegisterConsumer(consumer)

	if err := c.writeRequest(cid, spec, payload); err != nil {
		c.UnregisterConsumer(consumer)
		return nil, err
	}

	result, err := consumer.Get(timeout)
	if err != nil {
		// Discard the stale consumer so a late reply cannot corrupt a
		// future unrelated call
		c.UnregisterConsumer(consumer)
		c.recordCall(false)
		return nil, err
	}
	c.releaseCID(cid)
	c.recordCall(true)
	return result, nil
}

func (c *Communicator) recordCall(success bool) {
	c.statsLock.Lock()
	defer c.statsLock.Unlock()
	now := time.Now()
	if success {
		c.lastSuccess = now
		c.succeeded = append(c.succeeded, now)
		if len(c.succeeded) > 50 {
			c.succeeded = c.succeeded[len(c.succeeded)-50:]
		}
	} else {
		c.timedOut = append(c.timedOut, now)
		if len(c.timedOut) > 50 {
			c.timedOut = c.timedOut[len(c.timedOut)-50:]
		}
	}
}

func (c *Communicator) writeRequest(cid byte, spec *CommandSpec, payload []byte) error {
	lengthWord, err := NewWordField("length").Encode(len(payload))
	if err != nil {
		return err
	}

	var checked bytes.Buffer
	checked.WriteByte(cid)
	checked.WriteString(spec.Instruction)
	checked.Write(lengthWord)
	checked.Write(payload)

	var frame bytes.Buffer
	frame.Write(c.framing.startOfRequest)
	frame.Write(checked.Bytes())
	frame.WriteByte(checksumMarker)
	frame.WriteByte(additiveChecksum(checked.Bytes()))
	frame.Write(c.framing.endOfRequest)

	return c.writeToSerial(frame.Bytes())
}

func (c *Communicator) writeToSerial(data []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if c.verbose {
		log.Infof("[COMM] writing to serial:   %s", Printable(data))
	}
	written, err := c.port.Write(data)
	atomic.AddUint64(&c.bytesWritten, uint64(written))
	return err
}

// read is the background reader goroutine: it accumulates bytes from the
// serial port, detects complete frames, validates their checksum and
// dispatches payloads to matching consumers.
func (c *Communicator) read() {
	defer close(c.done)

	headerLength := len(c.framing.startOfReply) + 1 + 2 + 2
	footerLength := 1 + 1 + len(c.framing.endOfReply)
	var data []byte
	buffer := make([]byte, 256)

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		read, err := c.port.Read(buffer)
		if read > 0 {
			atomic.AddUint64(&c.bytesRead, uint64(read))
			if c.forwardMaintenance(buffer[:read]) {
				data = nil
				continue
			}
			data = append(data, buffer[:read]...)
		}
		if err != nil {
			select {
			case <-c.stop:
			default:
				log.Errorf("[COMM] unexpected error while reading from serial: %v", err)
			}
			return
		}

		for {
			index := bytes.Index(data, c.framing.startOfReply)
			if index < 0 {
				// Keep a potential partial start marker
				if len(data) > len(c.framing.startOfReply) {
					data = data[len(data)-len(c.framing.startOfReply):]
				}
				break
			}
			data = data[index:]
			if len(data) < headerLength {
				break
			}

			base := len(c.framing.startOfReply)
			length := int(data[base+3])<<8 | int(data[base+4])
			messageLength := headerLength + length + footerLength
			if len(data) < messageLength {
				break
			}

			message := data[:messageLength]
			if c.verbose {
				log.Infof("[COMM] reading from serial: %s", Printable(message))
			}

			if !bytes.HasSuffix(message, c.framing.endOfReply) || message[messageLength-footerLength] != checksumMarker {
				log.Infof("[COMM] unexpected boundaries: %s", Printable(message))
				// Stay in sync by re-scanning for the next start marker
				data = data[base:]
				continue
			}

			crc := message[messageLength-footerLength+1]
			checked := message[base : messageLength-footerLength]
			if expected := additiveChecksum(checked); crc != expected {
				log.Infof("[COMM] unexpected CRC (%d vs expected %d): %s", crc, expected, Printable(checked))
				data = data[base:]
				continue
			}

			header := string(message[:base+3])
			payload := message[headerLength : messageLength-footerLength]
			c.deliver(header, payload)
			data = data[messageLength:]
		}
	}
}

func (c *Communicator) deliver(header string, payload []byte) {
	c.consumersLock.Lock()
	consumers := append([]frameConsumer{}, c.consumers[header]...)
	c.consumersLock.Unlock()

	if len(consumers) == 0 {
		log.Infof("[COMM] unexpected message with header %s: %s", Printable([]byte(header)), Printable(payload))
		return
	}
	for _, consumer := range consumers {
		if c.verbose {
			log.Infof("[COMM] delivering payload to consumer %s: %s", Printable([]byte(header)), Printable(payload))
		}
		consumer.consume(payload)
		if consumer.oneShot() {
			c.UnregisterConsumer(consumer)
		}
	}
}

func (c *Communicator) forwardMaintenance(data []byte) bool {
	c.maintenanceLock.Lock()
	active, callback := c.maintenanceActive, c.maintenanceConsumer
	c.maintenanceLock.Unlock()
	if active && callback != nil {
		callback(data)
	}
	return active
}

// EnterMaintenanceMode suspends normal command processing and redirects all
// incoming bytes to the given consumer. Normal DoCommand calls fail fast
// with a MaintenanceModeError while active.
func (c *Communicator) EnterMaintenanceMode(consumer func([]byte)) error {
	c.maintenanceLock.Lock()
	defer c.maintenanceLock.Unlock()
	if c.maintenanceActive {
		return &MaintenanceModeError{}
	}
	c.maintenanceActive = true
	c.maintenanceConsumer = consumer
	log.Infof("[COMM] maintenance mode activated")
	return nil
}

// LeaveMaintenanceMode restores normal command processing
func (c *Communicator) LeaveMaintenanceMode() {
	c.maintenanceLock.Lock()
	defer c.maintenanceLock.Unlock()
	c.maintenanceActive = false
	c.maintenanceConsumer = nil
	log.Infof("[COMM] maintenance mode deactivated")
}

// InMaintenanceMode reports whether a maintenance session owns the channel
func (c *Communicator) InMaintenanceMode() bool {
	c.maintenanceLock.Lock()
	defer c.maintenanceLock.Unlock()
	return c.maintenanceActive
}

// WriteMaintenance writes raw bytes to the serial port during an active
// maintenance session.
func (c *Communicator) WriteMaintenance(data []byte) error {
	if !c.InMaintenanceMode() {
		return &MaintenanceModeError{}
	}
	return c.writeToSerial(data)
}
