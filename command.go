package master

import (
	"bytes"

	log "github.com/sirupsen/logrus"
)

// CommandSpec is the declarative description of a named Master instruction:
// its request and response field layout. A spec is constructed once per
// protocol operation and reused across calls, it carries no per-call state.
type CommandSpec struct {
	Instruction         string
	RequestFields       []Field
	ResponseFields      []Field
	ResponseInstruction string
}

// NewCommandSpec creates a command spec. responseInstruction is only needed
// when the reply instruction differs from the request instruction.
func NewCommandSpec(instruction string, requestFields, responseFields []Field, responseInstruction ...string) *CommandSpec {
	spec := &CommandSpec{
		Instruction:         instruction,
		RequestFields:       requestFields,
		ResponseFields:      responseFields,
		ResponseInstruction: instruction,
	}
	if len(responseInstruction) > 0 {
		spec.ResponseInstruction = responseInstruction[0]
	}
	return spec
}

// CreateRequestPayload concatenates the encoded request fields in declared
// order. Literal fields ignore the field map, missing padding encodes zeroes.
func (spec *CommandSpec) CreateRequestPayload(fields map[string]any) ([]byte, error) {
	var payload bytes.Buffer
	for _, field := range spec.RequestFields {
		data, err := field.Encode(fields[field.Name()])
		if err != nil {
			return nil, err
		}
		payload.Write(data)
	}
	return payload.Bytes(), nil
}

// CreateResponsePayload builds a response payload from field values. Only
// used in tests to fabricate replies.
func (spec *CommandSpec) CreateResponsePayload(fields map[string]any) ([]byte, error) {
	var payload bytes.Buffer
	for _, field := range spec.ResponseFields {
		data, err := field.Encode(fields[field.Name()])
		if err != nil {
			return nil, err
		}
		payload.Write(data)
	}
	return payload.Bytes(), nil
}

// ConsumeResponsePayload walks the response fields in order, consuming the
// declared number of bytes per field. A short payload yields the fields that
// fully fit, a partial map, and a warning. Higher layers must tolerate
// missing keys. Leftover bytes are a protocol-consistency warning, not fatal.
func (spec *CommandSpec) ConsumeResponsePayload(payload []byte) map[string]any {
	result := make(map[string]any)
	payloadLength := len(payload)
	for _, field := range spec.ResponseFields {
		size := field.Size(payloadLength)
		if size == SizeVariable {
			// NUL-terminated, consume through the first NUL
			index := bytes.IndexByte(payload, 0)
			if index < 0 {
				size = len(payload)
			} else {
				size = index + 1
			}
		}
		if len(payload) < size || size < 0 {
			log.Warnf("[COMMAND] payload for instruction %s did not contain all the expected data: %s",
				spec.Instruction, Printable(payload))
			break
		}
		data := payload[:size]
		if _, isPadding := field.(*PaddingField); !isPadding {
			result[field.Name()] = field.Decode(data)
		}
		payload = payload[size:]
	}
	if len(payload) != 0 {
		log.Warnf("[COMMAND] payload for instruction %s could not be consumed completely: %s",
			spec.Instruction, Printable(payload))
	}
	return result
}
