package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUCANHash(t *testing.T) {
	assert.Equal(t, 0, ucanHash(nil))
	assert.Equal(t, 256, ucanHash([]byte{1}))
	// Position-weighted so permutations differ
	assert.NotEqual(t, ucanHash([]byte{1, 2}), ucanHash([]byte{2, 1}))
}

func TestUCANCommandRequestPayload(t *testing.T) {
	spec := UCANPing(SIDNormalCommand)
	payloads, err := spec.CreateRequestPayloads("1.2.3", map[string]any{"data": 42})
	assert.Nil(t, err)
	assert.Len(t, payloads, 1)
	payload := payloads[0]
	assert.LessOrEqual(t, len(payload), 8)
	assert.Equal(t, []byte{0, 96, 1, 2, 3, 42}, payload[:6])
	assert.Equal(t, additiveChecksum(payload[:6]), payload[6])
}

func TestUCANCommandRequestTooLarge(t *testing.T) {
	spec := NewUCANCommandSpec(SIDNormalCommand,
		Instruction{Instruction: []byte{0, 1}},
		NewAddressField("ucan_address", 3),
		[]Field{NewByteArrayField("data", 4)},
		nil, nil)
	_, err := spec.CreateRequestPayloads("1.2.3", map[string]any{"data": []byte{1, 2, 3, 4}})
	assert.IsType(t, &ValueError{}, err)
}

func TestUCANCommandResponseRoundTrip(t *testing.T) {
	spec := UCANPing(SIDNormalCommand)
	assert.Nil(t, spec.SetIdentity("1.2.3"))
	assert.Len(t, spec.Headers(), 1)

	response := []byte{1, 96, 1, 2, 3, 42}
	response = append(response, additiveChecksum(response))
	hash := spec.ExtractHash(response)
	assert.Equal(t, spec.Headers()[0], hash)

	result := spec.ConsumeResponsePayload(map[int][]byte{hash: response})
	assert.Equal(t, map[string]any{"data": 42}, result)
}

func TestUCANCommandResponseBadChecksum(t *testing.T) {
	spec := UCANPing(SIDNormalCommand)
	assert.Nil(t, spec.SetIdentity("1.2.3"))

	response := []byte{1, 96, 1, 2, 3, 42}
	response = append(response, additiveChecksum(response)^0xFF)
	result := spec.ConsumeResponsePayload(map[int][]byte{spec.Headers()[0]: response})
	assert.Nil(t, result)
}

func TestUCANCommandResponseIncomplete(t *testing.T) {
	spec := UCANReadConfig()
	assert.Nil(t, spec.SetIdentity("1.2.3"))
	assert.Len(t, spec.Headers(), 13)

	// Only one of the thirteen expected frames arrived
	response := []byte{1, 199, 1, 2, 3, 0, 0}
	response = append(response, additiveChecksum(response))
	result := spec.ConsumeResponsePayload(map[int][]byte{spec.Headers()[0]: response})
	assert.Nil(t, result)
}

func TestUCANCommandMultiFrameResponse(t *testing.T) {
	spec := UCANReadConfig()
	assert.Nil(t, spec.SetIdentity("1.2.3"))

	payloads := map[int][]byte{}
	for i, hash := range spec.Headers() {
		frame := []byte{byte(i + 1), 199, 1, 2, 3, byte(i), byte(i)}
		frame = append(frame, additiveChecksum(frame))
		payloads[hash] = frame
	}
	result := spec.ConsumeResponsePayload(payloads)
	assert.NotNil(t, result)
	assert.Equal(t, 0, result["input_link_0"])
	assert.Equal(t, "4.5.5", result["firmware_version"])
}

func TestPalletCRCResidue(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	crc := CalculatePalletCRC(data, 0)
	whole := append(append([]byte{}, data...), byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	assert.Equal(t, uint32(0), CalculatePalletCRC(whole, 0))

	// Incremental computation matches one-shot computation
	partial := CalculatePalletCRC(data[:4], 0)
	assert.Equal(t, crc, CalculatePalletCRC(data[4:], partial))
}

func TestPalletSegmentation(t *testing.T) {
	spec := UCANWriteFlash(10)
	payloads, err := spec.CreateRequestPayloads("1.2.3", map[string]any{
		"start_address": 0x0400,
		"data":          []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	})
	assert.Nil(t, err)

	// address(3) + type(1) + start_address(4) + data(10) + crc(4) = 22 bytes,
	// so four segments of at most 7 data bytes each
	assert.Len(t, payloads, 4)
	assert.Equal(t, byte(1<<7|3), payloads[0][0])
	assert.Equal(t, byte(2), payloads[1][0])
	assert.Equal(t, byte(1), payloads[2][0])
	assert.Equal(t, byte(0), payloads[3][0])

	var pallet []byte
	for _, payload := range payloads {
		assert.LessOrEqual(t, len(payload), 8)
		pallet = append(pallet, payload[1:]...)
	}
	assert.Equal(t, []byte{1, 2, 3, byte(PalletTypeFlashWriteRequest), 0, 0, 4, 0}, pallet[:8])
	assert.Equal(t, uint32(0), CalculatePalletCRC(pallet, 0))
}

func TestPalletResponseRoundTrip(t *testing.T) {
	spec := UCANGetBootloaderVersion()
	pallet := []byte{1, 2, 3, PalletTypeBootloaderIDReply, 9, 4}
	crc := CalculatePalletCRC(pallet, 0)
	pallet = append(pallet, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	result := spec.ConsumeResponsePayload(pallet)
	assert.Equal(t, map[string]any{"major": 9, "minor": 4}, result)
}

func TestPalletResponseBadCRC(t *testing.T) {
	spec := UCANGetBootloaderVersion()
	pallet := []byte{1, 2, 3, PalletTypeBootloaderIDReply, 9, 4}
	crc := CalculatePalletCRC(pallet, 0)
	pallet = append(pallet, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc)^0x01)
	assert.Nil(t, spec.ConsumeResponsePayload(pallet))
}
