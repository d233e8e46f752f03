package master

import (
	log "github.com/sirupsen/logrus"
)

// SID is the uCAN command class, selecting framing and CRC rules
type SID int

const (
	SIDNormalCommand     SID = 5
	SIDBootloaderCommand SID = 1
	SIDBootloaderPallet  SID = 0
)

// Pallet types used by the uCAN bootloader
const (
	PalletTypeMCUIDRequest        = 0
	PalletTypeMCUIDReply          = 1
	PalletTypeBootloaderIDRequest = 2
	PalletTypeBootloaderIDReply   = 3
	PalletTypeFlashWriteRequest   = 4
	PalletTypeFlashWriteReply     = 5
	PalletTypeFlashReadRequest    = 6
	PalletTypeFlashReadReply      = 7
	PalletTypeEraseFlashRequest   = 8
	PalletTypeEraseFlashReply     = 9
)

// Instruction is a 2-byte uCAN instruction, for responses paired with the
// index of the checksum byte within the received payload.
type Instruction struct {
	Instruction  []byte
	ChecksumByte int
}

// ucanHash computes the deterministic correlation key over the first bytes
// of a transport payload: instruction bytes plus identity address bytes.
func ucanHash(entries []byte) int {
	times := 1
	result := 0
	for _, entry := range entries {
		result += int(entry) * 256 * times
		times++
	}
	return result
}

// UCANCommand is implemented by both the normal and the pallet uCAN command
// specs. Unlike Master command specs a uCAN spec binds a per-call identity
// (the target address) and must be created fresh for every call, never
// shared across concurrent calls on different identities.
type UCANCommand interface {
	CommandSID() SID
	SetIdentity(identity string) error
	Headers() []int
	ExtractHash(payload []byte) int
	CreateRequestPayloads(identity string, fields map[string]any) ([][]byte, error)
	ConsumeResponsePayload(payload any) map[string]any
	ResponseCount() int
}

// UCANCommandSpec defines payload handling and (de)serialization of a
// non-pallet uCAN command. Requests are a single CAN message of at most 8
// bytes: instruction, address, fields and an additive 8-bit checksum.
type UCANCommandSpec struct {
	sid                  SID
	instruction          Instruction
	identifier           *AddressField
	requestFields        []Field
	responseInstructions []Instruction
	responseFields       []Field

	headerLength      int
	headers           []int
	instructionByHash map[int]Instruction
}

func NewUCANCommandSpec(sid SID, instruction Instruction, identifier *AddressField,
	requestFields []Field, responseInstructions []Instruction, responseFields []Field) *UCANCommandSpec {
	return &UCANCommandSpec{
		sid:                  sid,
		instruction:          instruction,
		identifier:           identifier,
		requestFields:        requestFields,
		responseInstructions: responseInstructions,
		responseFields:       responseFields,
		headerLength:         2 + identifier.Size(0),
	}
}

func (spec *UCANCommandSpec) CommandSID() SID { return spec.sid }

// SetIdentity computes, for every expected response instruction, the hash of
// instruction bytes plus identity address bytes. Incoming transport frames
// are matched by recomputing the same hash from their header bytes.
func (spec *UCANCommandSpec) SetIdentity(identity string) error {
	identityBytes, err := spec.identifier.Encode(identity)
	if err != nil {
		return err
	}
	spec.headers = spec.headers[:0]
	spec.instructionByHash = map[int]Instruction{}
	for _, instruction := range spec.responseInstructions {
		hashValue := ucanHash(append(append([]byte{}, instruction.Instruction...), identityBytes...))
		spec.headers = append(spec.headers, hashValue)
		spec.instructionByHash[hashValue] = instruction
	}
	return nil
}

func (spec *UCANCommandSpec) Headers() []int { return spec.headers }

func (spec *UCANCommandSpec) ResponseCount() int { return len(spec.responseInstructions) }

// ExtractHash computes the correlation hash of an incoming payload
func (spec *UCANCommandSpec) ExtractHash(payload []byte) int {
	if len(payload) < spec.headerLength {
		return -1
	}
	return ucanHash(payload[:spec.headerLength])
}

// CreateRequestPayloads builds the transport payloads for this command. A
// non-pallet command is a single payload: instruction + address + fields,
// terminated by an additive 8-bit checksum.
func (spec *UCANCommandSpec) CreateRequestPayloads(identity string, fields map[string]any) ([][]byte, error) {
	identityBytes, err := spec.identifier.Encode(identity)
	if err != nil {
		return nil, err
	}
	payload := append(append([]byte{}, spec.instruction.Instruction...), identityBytes...)
	for _, field := range spec.requestFields {
		data, err := field.Encode(fields[field.Name()])
		if err != nil {
			return nil, err
		}
		payload = append(payload, data...)
	}
	payload = append(payload, additiveChecksum(payload))
	if len(payload) > 8 {
		return nil, newValueError("uCAN request payload of %d bytes does not fit in a CAN message", len(payload))
	}
	return [][]byte{payload}, nil
}

// ConsumeResponsePayload consumes the payloads collected per response hash.
// It expects a map[int][]byte keyed by correlation hash and returns nil when
// the collected data is incomplete or checksum-invalid.
func (spec *UCANCommandSpec) ConsumeResponsePayload(payload any) map[string]any {
	payloadPerHash, ok := payload.(map[int][]byte)
	if !ok {
		return nil
	}
	var payloadData []byte
	for _, responseHash := range spec.headers {
		// Headers are ordered
		entry, found := payloadPerHash[responseHash]
		if !found {
			log.Warnf("[UCAN] payload did not contain all the expected data: %v", payloadPerHash)
			return nil
		}
		instruction := spec.instructionByHash[responseHash]
		if instruction.ChecksumByte >= len(entry) {
			log.Warnf("[UCAN] payload too short for checksum byte %d: %s", instruction.ChecksumByte, Printable(entry))
			return nil
		}
		crc := entry[instruction.ChecksumByte]
		if expected := additiveChecksum(entry[:instruction.ChecksumByte]); crc != expected {
			log.Infof("[UCAN] unexpected CRC (%d vs expected %d): %s", crc, expected, Printable(entry))
			return nil
		}
		payloadData = append(payloadData, entry[spec.headerLength:instruction.ChecksumByte]...)
	}
	return decodeUCANFields(spec.responseFields, payloadData)
}

func decodeUCANFields(fields []Field, payloadData []byte) map[string]any {
	result := make(map[string]any)
	payloadLength := len(payloadData)
	for _, field := range fields {
		size := field.Size(payloadLength)
		if size < 0 || len(payloadData) < size {
			log.Warnf("[UCAN] payload did not contain all the expected data: %s", Printable(payloadData))
			break
		}
		if _, isPadding := field.(*PaddingField); !isPadding {
			result[field.Name()] = field.Decode(payloadData[:size])
		}
		payloadData = payloadData[size:]
	}
	return result
}

// UCANPalletCommandSpec defines a segmented pallet transfer: an
// arbitrary-length payload chunked into 7-byte data segments. Each segment
// carries a header byte (is_first << 7) | segments_remaining and the whole
// reassembled pallet is guarded by a CRC-32.
type UCANPalletCommandSpec struct {
	identifier     *AddressField
	palletType     int
	requestFields  []Field
	responseFields []Field
}

func NewUCANPalletCommandSpec(identifier *AddressField, palletType int,
	requestFields []Field, responseFields []Field) *UCANPalletCommandSpec {
	return &UCANPalletCommandSpec{
		identifier:     identifier,
		palletType:     palletType,
		requestFields:  requestFields,
		responseFields: responseFields,
	}
}

func (spec *UCANPalletCommandSpec) CommandSID() SID { return SIDBootloaderPallet }

func (spec *UCANPalletCommandSpec) SetIdentity(string) error { return nil }

func (spec *UCANPalletCommandSpec) Headers() []int { return nil }

func (spec *UCANPalletCommandSpec) ResponseCount() int { return 1 }

func (spec *UCANPalletCommandSpec) ExtractHash([]byte) int { return -1 }

// CreateRequestPayloads chunks the pallet into segments of at most 7 data
// bytes. Segments are transmitted in descending remaining-count order, the
// first transmitted segment carries the is-first flag and announces the
// total amount.
func (spec *UCANPalletCommandSpec) CreateRequestPayloads(identity string, fields map[string]any) ([][]byte, error) {
	identityBytes, err := spec.identifier.Encode(identity)
	if err != nil {
		return nil, err
	}
	pallet := append(append([]byte{}, identityBytes...), byte(spec.palletType))
	for _, field := range spec.requestFields {
		data, err := field.Encode(fields[field.Name()])
		if err != nil {
			return nil, err
		}
		pallet = append(pallet, data...)
	}
	crc := CalculatePalletCRC(pallet, 0)
	pallet = append(pallet, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	segments := (len(pallet) + 6) / 7
	if segments > 128 {
		return nil, newValueError("pallet of %d bytes exceeds the maximum of 128 segments", len(pallet))
	}
	payloads := make([][]byte, 0, segments)
	for i := 0; i < segments; i++ {
		remaining := segments - 1 - i
		header := byte(remaining)
		if i == 0 {
			header |= 1 << 7
		}
		start := i * 7
		end := start + 7
		if end > len(pallet) {
			end = len(pallet)
		}
		payloads = append(payloads, append([]byte{header}, pallet[start:end]...))
	}
	return payloads, nil
}

// ConsumeResponsePayload validates and parses a reassembled pallet. It
// expects a []byte and returns nil when the CRC-32 over the whole buffer is
// not zero.
func (spec *UCANPalletCommandSpec) ConsumeResponsePayload(payload any) map[string]any {
	pallet, ok := payload.([]byte)
	if !ok {
		return nil
	}
	if residue := CalculatePalletCRC(pallet, 0); residue != 0 {
		log.Warnf("[UCAN] pallet CRC validation failed (residue 0x%08X): %s", residue, Printable(pallet))
		return nil
	}
	headerLength := spec.identifier.Size(0) + 1
	if len(pallet) < headerLength+4 {
		log.Warnf("[UCAN] pallet too short: %s", Printable(pallet))
		return nil
	}
	return decodeUCANFields(spec.responseFields, pallet[headerLength:len(pallet)-4])
}

// CalculatePalletCRC incrementally computes the pallet CRC-32 (polynomial
// 0x04C11DB7, zero initial remainder, no final xor). The trailing CRC bytes
// of a pallet are chosen so that the CRC over the whole buffer is zero.
func CalculatePalletCRC(data []byte, remainder uint32) uint32 {
	for _, item := range data {
		remainder ^= uint32(item) << 24
		for bit := 0; bit < 8; bit++ {
			if remainder&0x80000000 != 0 {
				remainder = (remainder << 1) ^ 0x04C11DB7
			} else {
				remainder <<= 1
			}
		}
	}
	return remainder
}
