package master

import (
	"fmt"
	"sync"
	"time"
)

// MemoryType identifies one of the memory banks on the Master
type MemoryType byte

const (
	MemoryTypeEEPROM MemoryType = 'E'
	MemoryTypeFRAM   MemoryType = 'F'
)

const memoryReadChunk = 32

// MemoryAddress points at a byte range inside a memory bank
type MemoryAddress struct {
	MemoryType MemoryType
	Page       int
	Offset     int
	Length     int
}

func (address MemoryAddress) String() string {
	return fmt.Sprintf("Address(%c%d, %d, %d)", address.MemoryType, address.Page, address.Offset, address.Length)
}

// MemoryFile represents one of the memory banks (EEPROM or FRAM) behind a
// Core Master, read and written in 32-byte chunks through memory commands.
// Pages are cached until invalidated.
type MemoryFile struct {
	communicator *Communicator
	memoryType   MemoryType
	pages        int
	pageLength   int
	timeout      time.Duration

	lock  sync.Mutex
	cache map[int][]byte
}

// NewMemoryFile creates a memory representation of the given type
func NewMemoryFile(memoryType MemoryType, communicator *Communicator) (*MemoryFile, error) {
	file := &MemoryFile{
		communicator: communicator,
		memoryType:   memoryType,
		pageLength:   256,
		timeout:      2 * time.Second,
		cache:        map[int][]byte{},
	}
	switch memoryType {
	case MemoryTypeEEPROM:
		file.pages = 512
	case MemoryTypeFRAM:
		file.pages = 128
	default:
		return nil, newValueError("unknown memory type %c", memoryType)
	}
	return file, nil
}

// Pages returns the amount of pages in this bank
func (file *MemoryFile) Pages() int { return file.pages }

// Read reads the byte ranges for the given addresses
func (file *MemoryFile) Read(addresses []MemoryAddress) (map[MemoryAddress][]byte, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	data := map[MemoryAddress][]byte{}
	for _, address := range addresses {
		pageData, err := file.readPage(address.Page)
		if err != nil {
			return nil, err
		}
		if address.Offset+address.Length > len(pageData) {
			return nil, newValueError("%s exceeds the page boundary", address)
		}
		data[address] = append([]byte{}, pageData[address.Offset:address.Offset+address.Length]...)
	}
	return data, nil
}

// Write merges the given byte ranges into their pages and writes those pages
// back
func (file *MemoryFile) Write(data map[MemoryAddress][]byte) error {
	file.lock.Lock()
	defer file.lock.Unlock()
	for address, bytes := range data {
		pageData, err := file.readPage(address.Page)
		if err != nil {
			return err
		}
		if address.Offset+len(bytes) > len(pageData) {
			return newValueError("%s exceeds the page boundary", address)
		}
		updated := append([]byte{}, pageData...)
		copy(updated[address.Offset:], bytes)
		if err := file.writePage(address.Page, updated); err != nil {
			return err
		}
	}
	return nil
}

// ReadPage reads a full page, serving it from cache when possible
func (file *MemoryFile) ReadPage(page int) ([]byte, error) {
	file.lock.Lock()
	defer file.lock.Unlock()
	data, err := file.readPage(page)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, data...), nil
}

func (file *MemoryFile) readPage(page int) ([]byte, error) {
	if page < 0 || page >= file.pages {
		return nil, newValueError("page %d out of range", page)
	}
	if data, ok := file.cache[page]; ok {
		return data, nil
	}
	pageData := make([]byte, 0, file.pageLength)
	for i := 0; i < file.pageLength/memoryReadChunk; i++ {
		response, err := file.communicator.DoCommand(MemoryRead(), map[string]any{
			"type":   string(file.memoryType),
			"page":   page,
			"start":  i * memoryReadChunk,
			"length": memoryReadChunk,
		}, file.timeout)
		if err != nil {
			return nil, err
		}
		chunk, _ := response["data"].([]byte)
		if len(chunk) != memoryReadChunk {
			return nil, newValueError("memory read of page %d returned %d bytes", page, len(chunk))
		}
		pageData = append(pageData, chunk...)
	}
	file.cache[page] = pageData
	return pageData, nil
}

// WritePage writes a full page in 32-byte chunks. The cache is only updated
// after every chunk was written successfully, so a failed write does not
// leave the cache claiming data the hardware never received.
func (file *MemoryFile) WritePage(page int, data []byte) error {
	file.lock.Lock()
	defer file.lock.Unlock()
	return file.writePage(page, data)
}

func (file *MemoryFile) writePage(page int, data []byte) error {
	if page < 0 || page >= file.pages {
		return newValueError("page %d out of range", page)
	}
	if len(data) != file.pageLength {
		return newValueError("page %d write needs %d bytes, got %d", page, file.pageLength, len(data))
	}
	for i := 0; i < file.pageLength/memoryReadChunk; i++ {
		start := i * memoryReadChunk
		_, err := file.communicator.DoCommand(MemoryWrite(memoryReadChunk), map[string]any{
			"type":  string(file.memoryType),
			"page":  page,
			"start": start,
			"data":  data[start : start+memoryReadChunk],
		}, file.timeout)
		if err != nil {
			delete(file.cache, page)
			return err
		}
	}
	file.cache[page] = append([]byte{}, data...)
	return nil
}

// InvalidateCache drops the cached copy of one page
func (file *MemoryFile) InvalidateCache(page int) {
	file.lock.Lock()
	defer file.lock.Unlock()
	delete(file.cache, page)
}

// InvalidateAll drops every cached page
func (file *MemoryFile) InvalidateAll() {
	file.lock.Lock()
	defer file.lock.Unlock()
	file.cache = map[int][]byte{}
}
