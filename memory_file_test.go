package master

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// memoryBackend simulates the memory commands of a Core Master. Pages are
// initialized so every byte reads as page + offset, writes persist.
type memoryBackend struct {
	port       *testPort
	failWrites bool

	mu    sync.Mutex
	pages map[int][]byte
}

func newMemoryBackend(port *testPort) *memoryBackend {
	backend := &memoryBackend{port: port, pages: map[int][]byte{}}
	port.handle("MR", backend.read)
	port.handle("MW", backend.write)
	return backend
}

func (backend *memoryBackend) page(page int) []byte {
	if data, ok := backend.pages[page]; ok {
		return data
	}
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(page + i)
	}
	backend.pages[page] = data
	return data
}

func (backend *memoryBackend) read(cid byte, request []byte) []byte {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	page := int(request[1])<<8 | int(request[2])
	start := int(request[3])
	length := int(request[4])
	data := append([]byte{}, backend.page(page)[start:start+length]...)
	payload, _ := MemoryRead().CreateResponsePayload(map[string]any{
		"type": string(request[0]), "page": page, "start": start, "data": data,
	})
	return replyFrame(GenerationCore, cid, "MR", payload)
}

func (backend *memoryBackend) write(cid byte, request []byte) []byte {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.failWrites {
		return nil
	}
	page := int(request[1])<<8 | int(request[2])
	start := int(request[3])
	length := len(request) - 4
	copy(backend.page(page)[start:], request[4:])
	payload, _ := MemoryWrite(length).CreateResponsePayload(map[string]any{
		"type": string(request[0]), "page": page, "start": start, "length": length, "result": "O",
	})
	return replyFrame(GenerationCore, cid, "MW", payload)
}

func commandCount(port *testPort, instruction string) int {
	count := 0
	for _, frame := range port.writtenFrames() {
		if string(frame[4:6]) == instruction {
			count++
		}
	}
	return count
}

func testMemoryFile(t *testing.T, memoryType MemoryType) (*MemoryFile, *testPort, *memoryBackend) {
	t.Helper()
	communicator, port := startedCommunicator(t, GenerationCore)
	backend := newMemoryBackend(port)
	file, err := NewMemoryFile(memoryType, communicator)
	assert.Nil(t, err)
	file.timeout = 100 * time.Millisecond
	return file, port, backend
}

func TestMemoryFileUnknownType(t *testing.T) {
	_, err := NewMemoryFile(MemoryType('X'), nil)
	assert.IsType(t, &ValueError{}, err)
}

func TestMemoryFilePageCount(t *testing.T) {
	eeprom, _, _ := testMemoryFile(t, MemoryTypeEEPROM)
	assert.Equal(t, 512, eeprom.Pages())
	fram, _, _ := testMemoryFile(t, MemoryTypeFRAM)
	assert.Equal(t, 128, fram.Pages())
}

func TestMemoryFileReadPage(t *testing.T) {
	file, port, _ := testMemoryFile(t, MemoryTypeEEPROM)

	data, err := file.ReadPage(3)
	assert.Nil(t, err)
	assert.Len(t, data, 256)
	assert.Equal(t, byte(3), data[0])
	assert.Equal(t, byte(3+100), data[100])
	assert.Equal(t, 8, commandCount(port, "MR"))

	// Cached, so no further traffic
	_, err = file.ReadPage(3)
	assert.Nil(t, err)
	assert.Equal(t, 8, commandCount(port, "MR"))

	file.InvalidateCache(3)
	_, err = file.ReadPage(3)
	assert.Nil(t, err)
	assert.Equal(t, 16, commandCount(port, "MR"))
}

func TestMemoryFileReadPageOutOfRange(t *testing.T) {
	file, _, _ := testMemoryFile(t, MemoryTypeFRAM)
	_, err := file.ReadPage(128)
	assert.IsType(t, &ValueError{}, err)
	_, err = file.ReadPage(-1)
	assert.IsType(t, &ValueError{}, err)
}

func TestMemoryFileReadAddresses(t *testing.T) {
	file, _, _ := testMemoryFile(t, MemoryTypeEEPROM)

	first := MemoryAddress{MemoryTypeEEPROM, 1, 10, 2}
	second := MemoryAddress{MemoryTypeEEPROM, 2, 0, 3}
	data, err := file.Read([]MemoryAddress{first, second})
	assert.Nil(t, err)
	assert.Equal(t, []byte{11, 12}, data[first])
	assert.Equal(t, []byte{2, 3, 4}, data[second])

	_, err = file.Read([]MemoryAddress{{MemoryTypeEEPROM, 1, 250, 10}})
	assert.IsType(t, &ValueError{}, err)
}

func TestMemoryFileWrite(t *testing.T) {
	file, port, _ := testMemoryFile(t, MemoryTypeEEPROM)

	address := MemoryAddress{MemoryTypeEEPROM, 5, 16, 3}
	err := file.Write(map[MemoryAddress][]byte{address: {99, 98, 97}})
	assert.Nil(t, err)
	assert.Equal(t, 8, commandCount(port, "MW"))

	// The written page stays cached, merged with the untouched bytes
	page, err := file.ReadPage(5)
	assert.Nil(t, err)
	assert.Equal(t, 8, commandCount(port, "MR"))
	assert.Equal(t, []byte{99, 98, 97}, page[16:19])
	assert.Equal(t, byte(5+15), page[15])
}

func TestMemoryFileFailedWriteDropsCache(t *testing.T) {
	file, port, backend := testMemoryFile(t, MemoryTypeFRAM)

	_, err := file.ReadPage(2)
	assert.Nil(t, err)
	assert.Equal(t, 8, commandCount(port, "MR"))

	backend.failWrites = true
	page := make([]byte, 256)
	assert.NotNil(t, file.WritePage(2, page))

	// The cache no longer claims data the hardware never received
	backend.failWrites = false
	_, err = file.ReadPage(2)
	assert.Nil(t, err)
	assert.Equal(t, 16, commandCount(port, "MR"))
}

func TestMemoryFileWritePageLengthCheck(t *testing.T) {
	file, _, _ := testMemoryFile(t, MemoryTypeEEPROM)
	assert.IsType(t, &ValueError{}, file.WritePage(0, make([]byte, 100)))
}
