package master

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeUCAN emulates a single uCAN behind a CC: a mode-aware command handler
// plus the pallet bootloader protocol.
type fakeUCAN struct {
	t    *testing.T
	port *testPort

	mu                sync.Mutex
	inBootloader      bool
	bootloaderTimeout int
	safetyFlag        int
	erased            bool
	flash             map[int][]byte
	segments          map[int][]byte
	announced         int
}

func newFakeUCAN(t *testing.T, port *testPort, inBootloader bool) *fakeUCAN {
	ucan := &fakeUCAN{
		t:            t,
		port:         port,
		inBootloader: inBootloader,
		flash:        map[int][]byte{},
		segments:     map[int][]byte{},
		announced:    -1,
	}
	port.handle("FM", ucan.handleTransport)
	return ucan
}

func (ucan *fakeUCAN) handleTransport(cid byte, request []byte) []byte {
	sid, payload := parseUCANTx(request)

	ucan.mu.Lock()
	defer ucan.mu.Unlock()
	switch sid {
	case SIDNormalCommand:
		if !ucan.inBootloader {
			ucan.handleCommand(payload)
		}
	case SIDBootloaderCommand:
		if ucan.inBootloader {
			ucan.handleCommand(payload)
		}
	case SIDBootloaderPallet:
		ucan.handleSegment(payload)
	}
	return ucanTxAck(cid, testCC)
}

func (ucan *fakeUCAN) reply(instruction []byte, value byte) {
	frame := append(append([]byte{}, instruction...), 10, 20, 30, value)
	frame = append(frame, additiveChecksum(frame))
	pushUCANRx(ucan.t, ucan.port, testCC, SIDNormalCommand, frame)
}

func (ucan *fakeUCAN) handleCommand(payload []byte) {
	switch {
	case payload[0] == 0 && payload[1] == 96:
		ucan.reply([]byte{1, 96}, payload[5])
	case payload[0] == 0 && payload[1] == 123:
		ucan.bootloaderTimeout = int(payload[5])
		ucan.reply([]byte{123, 123}, payload[5])
	case payload[0] == 0 && payload[1] == 125:
		ucan.safetyFlag = int(payload[5])
		ucan.reply([]byte{125, 125}, payload[5])
	case payload[0] == 0 && payload[1] == 94:
		// A reset boots into the bootloader unless it times out immediately
		ucan.inBootloader = ucan.bootloaderTimeout != 0
		mode := byte(0)
		if !ucan.inBootloader {
			mode = 1
		}
		ucan.reply([]byte{94, 94}, mode)
	}
}

func (ucan *fakeUCAN) handleSegment(payload []byte) {
	header := payload[0]
	remaining := int(header & 127)
	if header>>7 == 1 {
		ucan.announced = remaining + 1
		ucan.segments = map[int][]byte{}
	}
	ucan.segments[remaining] = append([]byte{}, payload[1:]...)
	if remaining != 0 || ucan.announced < 0 || len(ucan.segments) != ucan.announced {
		return
	}

	var pallet []byte
	for index := ucan.announced - 1; index >= 0; index-- {
		pallet = append(pallet, ucan.segments[index]...)
	}
	assert.Equal(ucan.t, uint32(0), CalculatePalletCRC(pallet, 0))

	body := pallet[4 : len(pallet)-4]
	switch pallet[3] {
	case PalletTypeEraseFlashRequest:
		ucan.erased = true
		ucan.flash = map[int][]byte{}
		ucan.palletReply(PalletTypeEraseFlashReply, []byte{1})
	case PalletTypeFlashWriteRequest:
		// The start address arrives byte-reversed
		start := int(body[3])<<24 | int(body[2])<<16 | int(body[1])<<8 | int(body[0])
		ucan.flash[start] = append([]byte{}, body[4:]...)
		ucan.palletReply(PalletTypeFlashWriteReply, []byte{1})
	}
}

func (ucan *fakeUCAN) palletReply(palletType byte, body []byte) {
	pallet := append([]byte{10, 20, 30, palletType}, body...)
	crc := CalculatePalletCRC(pallet, 0)
	pallet = append(pallet, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	segments := (len(pallet) + 6) / 7
	for index := 0; index < segments; index++ {
		header := byte(segments - 1 - index)
		if index == 0 {
			header |= 1 << 7
		}
		end := (index + 1) * 7
		if end > len(pallet) {
			end = len(pallet)
		}
		pushUCANRx(ucan.t, ucan.port, testCC, SIDBootloaderPallet, append([]byte{header}, pallet[index*7:end]...))
	}
}

func TestUCANUpdaterFullUpdate(t *testing.T) {
	if testing.Short() {
		t.Skip("relies on multi-second ping timeouts")
	}
	communicator, port := startedCommunicator(t, GenerationCore)
	ucanCommunicator := NewUCANCommunicator(communicator, false)
	fake := newFakeUCAN(t, port, true)

	// Reset vector 01 02 03 04, application bytes AA BB CC DD at 0x4
	hexFile := filepath.Join(t.TempDir(), "ucan.hex")
	assert.Nil(t, os.WriteFile(hexFile, []byte(":0800000001020304AABBCCDDE0\n:00000001FF\n"), 0o644))

	updater := NewUCANUpdater(ucanCommunicator, false)
	assert.Nil(t, updater.Update(testCC, "10.20.30", hexFile))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.erased)
	assert.False(t, fake.inBootloader)
	assert.Equal(t, 1, fake.safetyFlag)
	assert.Equal(t, 0, fake.bootloaderTimeout)

	// The first block carries the application bytes
	firstBlock := fake.flash[4]
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xFF, 0xFF}, firstBlock[:6])

	// The last block ends with the original reset vector and the image CRC
	var lastStart int
	for start := range fake.flash {
		if start > lastStart {
			lastStart = start
		}
	}
	lastBlock := fake.flash[lastStart]
	resetVector := lastBlock[len(lastBlock)-8 : len(lastBlock)-4]
	assert.Equal(t, []byte{1, 2, 3, 4}, resetVector)

	// Stitching all written blocks plus erased gaps together yields a
	// zero-residue image
	image := make([]byte, 0)
	for start := ucanAddressStart; start < ucanAddressEnd; start += ucanMaxFlashBytes {
		if block, ok := fake.flash[start]; ok {
			image = append(image, block...)
		} else {
			for i := 0; i < ucanMaxFlashBytes; i++ {
				image = append(image, 0xFF)
			}
		}
	}
	assert.Equal(t, uint32(0), CalculatePalletCRC(image, 0))
}
