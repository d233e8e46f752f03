package master

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// frameConsumer correlates incoming reply frames with interested parties,
// either a blocked caller (Consumer) or a registered callback
// (BackgroundConsumer).
type frameConsumer interface {
	header(f framing) string
	consume(payload []byte)
	oneShot() bool
	cid() byte
	// release ends any goroutine owned by the consumer, called on
	// unregistration
	release()
}

// Consumer is registered to the reader before a command is issued. When a
// reply frame matches, the Get caller is unblocked. A consumer is fulfilled
// or timed out exactly once and then discarded, never reused.
type Consumer struct {
	command *CommandSpec
	cidByte byte
	queue   chan map[string]any
}

func NewConsumer(command *CommandSpec, cid byte) *Consumer {
	return &Consumer{
		command: command,
		cidByte: cid,
		queue:   make(chan map[string]any, 1),
	}
}

func (consumer *Consumer) header(f framing) string {
	return string(f.startOfReply) + string(consumer.cidByte) + consumer.command.ResponseInstruction
}

func (consumer *Consumer) cid() byte { return consumer.cidByte }

func (consumer *Consumer) oneShot() bool { return true }

func (consumer *Consumer) release() {}

func (consumer *Consumer) consume(payload []byte) {
	select {
	case consumer.queue <- consumer.command.ConsumeResponsePayload(payload):
	default:
		// Already fulfilled or abandoned, drop the late value
	}
}

// Get waits until the Master replies or the timeout expires
func (consumer *Consumer) Get(timeout time.Duration) (map[string]any, error) {
	select {
	case result := <-consumer.queue:
		return result, nil
	case <-time.After(timeout):
		return nil, newTimeoutError("no Master data received in %s", timeout)
	}
}

// BackgroundConsumer delivers unsolicited/event frames to a callback instead
// of unblocking a caller. Delivery runs on its own goroutine so the reader
// never blocks on a slow callback.
type BackgroundConsumer struct {
	command  *CommandSpec
	cidByte  byte
	callback func(map[string]any)

	queueLock sync.Mutex
	released  bool
	queue     chan map[string]any
}

func NewBackgroundConsumer(command *CommandSpec, cid byte, callback func(map[string]any)) *BackgroundConsumer {
	consumer := &BackgroundConsumer{
		command:  command,
		cidByte:  cid,
		callback: callback,
		queue:    make(chan map[string]any, 256),
	}
	go consumer.deliver()
	return consumer
}

func (consumer *BackgroundConsumer) header(f framing) string {
	return string(f.startOfReply) + string(consumer.cidByte) + consumer.command.ResponseInstruction
}

func (consumer *BackgroundConsumer) cid() byte { return consumer.cidByte }

func (consumer *BackgroundConsumer) oneShot() bool { return false }

func (consumer *BackgroundConsumer) consume(payload []byte) {
	consumer.queueLock.Lock()
	defer consumer.queueLock.Unlock()
	if consumer.released {
		return
	}
	select {
	case consumer.queue <- consumer.command.ConsumeResponsePayload(payload):
	default:
		log.Warnf("[COMM] background consumer %s queue full, dropping frame", consumer.command.ResponseInstruction)
	}
}

// release closes the queue so the delivery goroutine drains and exits
func (consumer *BackgroundConsumer) release() {
	consumer.queueLock.Lock()
	defer consumer.queueLock.Unlock()
	if consumer.released {
		return
	}
	consumer.released = true
	close(consumer.queue)
}

func (consumer *BackgroundConsumer) deliver() {
	for data := range consumer.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("[COMM] unexpected panic delivering background consumer data: %v", r)
				}
			}()
			consumer.callback(data)
		}()
	}
}
