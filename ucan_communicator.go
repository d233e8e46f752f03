package master

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// UCANCommunicator uses a Communicator to talk to uCANs behind CAN Control
// (CC) modules, tunnelling CAN payloads inside Master transport commands.
type UCANCommunicator struct {
	communicator *Communicator
	verbose      bool

	lock       sync.Mutex
	consumers  map[string][]ucanConsumer
	palletMode map[string]bool
}

// NewUCANCommunicator creates a uCAN communicator on top of a started
// Communicator and hooks into the transport-message stream.
func NewUCANCommunicator(communicator *Communicator, verbose bool) *UCANCommunicator {
	ucan := &UCANCommunicator{
		communicator: communicator,
		verbose:      verbose,
		consumers:    map[string][]ucanConsumer{},
		palletMode:   map[string]bool{},
	}
	communicator.RegisterConsumer(NewBackgroundConsumer(UCANRxTransportMessage(), 1, ucan.processTransportMessage))
	return ucan
}

// IsUCANInBootloader figures out whether a uCAN is in bootloader or
// application mode. This can be a rather slow call since it may rely on a
// communication timeout.
func (ucan *UCANCommunicator) IsUCANInBootloader(ccAddress, ucanAddress string) (bool, error) {
	_, err := ucan.DoCommand(ccAddress, UCANPing(SIDNormalCommand), ucanAddress, map[string]any{"data": 1}, 2*time.Second)
	if err == nil {
		return false, nil
	}
	if !IsTimeout(err) {
		return false, err
	}
	_, err = ucan.DoCommand(ccAddress, UCANPing(SIDBootloaderCommand), ucanAddress, map[string]any{"data": 1}, 2*time.Second)
	if err != nil {
		return false, err
	}
	return true, nil
}

// InPalletMode reports whether a pallet transfer is outstanding for a CC
func (ucan *UCANCommunicator) InPalletMode(ccAddress string) bool {
	ucan.lock.Lock()
	defer ucan.lock.Unlock()
	return ucan.palletMode[ccAddress]
}

func (ucan *UCANCommunicator) registerConsumer(consumer ucanConsumer) {
	ucan.lock.Lock()
	defer ucan.lock.Unlock()
	ucan.consumers[consumer.ccAddress()] = append(ucan.consumers[consumer.ccAddress()], consumer)
}

func (ucan *UCANCommunicator) unregisterConsumer(consumer ucanConsumer) {
	ucan.lock.Lock()
	defer ucan.lock.Unlock()
	consumers := ucan.consumers[consumer.ccAddress()]
	for i, candidate := range consumers {
		if candidate == consumer {
			ucan.consumers[consumer.ccAddress()] = append(consumers[:i], consumers[i+1:]...)
			break
		}
	}
}

// DoCommand sends a uCAN command through the Master transport and blocks
// until all expected response frames arrived or the timeout expires. While a
// pallet transfer is outstanding for a CC, normal commands to that CC fail
// with a BootloadingError.
func (ucan *UCANCommunicator) DoCommand(ccAddress string, command UCANCommand, identity string,
	fields map[string]any, timeout time.Duration) (map[string]any, error) {

	ucan.lock.Lock()
	if ucan.palletMode[ccAddress] {
		ucan.lock.Unlock()
		return nil, &BootloadingError{CCAddress: ccAddress}
	}
	var consumer ucanConsumer
	if command.CommandSID() == SIDBootloaderPallet {
		consumer = newPalletConsumer(ccAddress, command, ucan.releasePalletMode)
		ucan.palletMode[ccAddress] = true
	} else {
		consumer = newUCANRequestConsumer(ccAddress, command)
	}
	ucan.lock.Unlock()

	if err := command.SetIdentity(identity); err != nil {
		ucan.unregisterConsumer(consumer)
		consumer.release()
		return nil, err
	}
	ucan.registerConsumer(consumer)

	payloads, err := command.CreateRequestPayloads(identity, fields)
	if err != nil {
		ucan.unregisterConsumer(consumer)
		consumer.release()
		return nil, err
	}

	masterTimeout := false
	for _, payload := range payloads {
		if ucan.verbose {
			log.Infof("[UCAN] writing to transport:   CC %s - SID %d - data: %s", ccAddress, command.CommandSID(), Printable(payload))
		}
		padded := append(append([]byte{}, payload...), make([]byte, 8-len(payload))...)
		_, err := ucan.communicator.DoCommand(UCANTxTransportMessage(), map[string]any{
			"cc_address":   ccAddress,
			"nr_can_bytes": len(payload),
			"sid":          int(command.CommandSID()),
			"payload":      padded,
		}, timeout)
		if err != nil {
			log.Errorf("[UCAN] internal timeout during transport to CC %s: %v", ccAddress, err)
			masterTimeout = true
			break
		}
	}

	if command.ResponseCount() == 0 {
		ucan.unregisterConsumer(consumer)
		consumer.release()
		return nil, nil
	}
	if masterTimeout {
		// Timeout the consumer immediately so callers see the flow they
		// expect
		result, err := consumer.get(0)
		ucan.unregisterConsumer(consumer)
		return result, err
	}
	result, err := consumer.get(timeout)
	if err != nil {
		ucan.unregisterConsumer(consumer)
	}
	return result, err
}

func (ucan *UCANCommunicator) releasePalletMode(ccAddress string) {
	log.Infof("[UCAN] releasing pallet mode for CC %s", ccAddress)
	ucan.lock.Lock()
	defer ucan.lock.Unlock()
	ucan.palletMode[ccAddress] = false
}

// processTransportMessage routes every received transport payload to the
// consumers registered for its CC address.
func (ucan *UCANCommunicator) processTransportMessage(message map[string]any) {
	ccAddress, _ := message["cc_address"].(string)
	length, _ := message["nr_can_bytes"].(int)
	payload, _ := message["payload"].([]byte)
	if length > len(payload) {
		length = len(payload)
	}
	payload = payload[:length]
	if ucan.verbose {
		log.Infof("[UCAN] reading from transport: CC %s - data: %s", ccAddress, Printable(payload))
	}

	ucan.lock.Lock()
	consumers := append([]ucanConsumer{}, ucan.consumers[ccAddress]...)
	ucan.lock.Unlock()

	for _, consumer := range consumers {
		if consumer.suggestPayload(payload) {
			ucan.unregisterConsumer(consumer)
		}
	}
}

// ucanConsumer correlates transport payloads with a pending uCAN command
type ucanConsumer interface {
	ccAddress() string
	// suggestPayload offers an incoming payload, returning true once the
	// consumer collected everything it was waiting for
	suggestPayload(payload []byte) bool
	get(timeout time.Duration) (map[string]any, error)
	// release is invoked when the command is abandoned before completion
	release()
}

// ucanRequestConsumer waits for all expected response-instruction variants
// of one command on one identity. Partial arrival keeps waiting up to the
// timeout.
type ucanRequestConsumer struct {
	cc         string
	command    UCANCommand
	payloadSet map[int][]byte
	queue      chan map[string]any
}

func newUCANRequestConsumer(ccAddress string, command UCANCommand) *ucanRequestConsumer {
	return &ucanRequestConsumer{
		cc:         ccAddress,
		command:    command,
		payloadSet: map[int][]byte{},
		queue:      make(chan map[string]any, 1),
	}
}

func (consumer *ucanRequestConsumer) ccAddress() string { return consumer.cc }

func (consumer *ucanRequestConsumer) suggestPayload(payload []byte) bool {
	payloadHash := consumer.command.ExtractHash(payload)
	for _, header := range consumer.command.Headers() {
		if header == payloadHash {
			consumer.payloadSet[payloadHash] = append([]byte{}, payload...)
			break
		}
	}
	if len(consumer.payloadSet) == len(consumer.command.Headers()) {
		select {
		case consumer.queue <- consumer.command.ConsumeResponsePayload(consumer.payloadSet):
		default:
		}
		return true
	}
	return false
}

func (consumer *ucanRequestConsumer) get(timeout time.Duration) (map[string]any, error) {
	var value map[string]any
	if timeout <= 0 {
		select {
		case value = <-consumer.queue:
		default:
			return nil, newTimeoutError("no uCAN data received")
		}
	} else {
		select {
		case value = <-consumer.queue:
		case <-time.After(timeout):
			return nil, newTimeoutError("no uCAN data received in %s", timeout)
		}
	}
	if value == nil {
		// No valid data could be received
		return nil, newTimeoutError("empty or invalid uCAN data received")
	}
	return value, nil
}

func (consumer *ucanRequestConsumer) release() {}

// palletConsumer buffers pallet segments keyed by their remaining count and
// reassembles them, in descending remaining order, once the announced set is
// complete. The release callback clears the per-CC bootloading flag exactly
// once, on completion, success or failure.
type palletConsumer struct {
	ucanRequestConsumer
	amountOfSegments int
	finished         func(ccAddress string)
	releaseOnce      sync.Once
}

func newPalletConsumer(ccAddress string, command UCANCommand, finished func(string)) *palletConsumer {
	return &palletConsumer{
		ucanRequestConsumer: ucanRequestConsumer{
			cc:         ccAddress,
			command:    command,
			payloadSet: map[int][]byte{},
			queue:      make(chan map[string]any, 1),
		},
		amountOfSegments: -1,
		finished:         finished,
	}
}

func (consumer *palletConsumer) suggestPayload(payload []byte) bool {
	if len(payload) < 1 {
		return false
	}
	header := payload[0]
	firstSegment := header>>7&1 == 1
	segmentsRemaining := int(header & 127)
	if firstSegment {
		consumer.amountOfSegments = segmentsRemaining + 1
	}
	consumer.payloadSet[segmentsRemaining] = append([]byte{}, payload[1:]...)

	if consumer.amountOfSegments < 0 || len(consumer.payloadSet) != consumer.amountOfSegments {
		return false
	}
	keys := make([]int, 0, len(consumer.payloadSet))
	for key := range consumer.payloadSet {
		keys = append(keys, key)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))
	if keys[0] != consumer.amountOfSegments-1 || keys[len(keys)-1] != 0 {
		return false
	}
	var pallet []byte
	for _, key := range keys {
		pallet = append(pallet, consumer.payloadSet[key]...)
	}
	select {
	case consumer.queue <- consumer.command.ConsumeResponsePayload(pallet):
	default:
	}
	return true
}

func (consumer *palletConsumer) get(timeout time.Duration) (map[string]any, error) {
	defer consumer.release()
	return consumer.ucanRequestConsumer.get(timeout)
}

func (consumer *palletConsumer) release() {
	consumer.releaseOnce.Do(func() {
		consumer.finished(consumer.cc)
	})
}
