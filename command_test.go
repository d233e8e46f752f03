package master

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateRequestPayload(t *testing.T) {
	spec := NewCommandSpec("XX",
		[]Field{NewByteField("id"), NewWordField("value"), NewLiteralBytesField(255)},
		nil)
	payload, err := spec.CreateRequestPayload(map[string]any{"id": 5, "value": 0x0102})
	assert.Nil(t, err)
	assert.Equal(t, []byte{5, 1, 2, 255}, payload)
}

func TestCreateRequestPayloadRejectsBadValues(t *testing.T) {
	spec := NewCommandSpec("XX", []Field{NewByteField("id")}, nil)
	_, err := spec.CreateRequestPayload(map[string]any{"id": 300})
	assert.IsType(t, &ValueError{}, err)
	_, err = spec.CreateRequestPayload(nil)
	assert.NotNil(t, err)
}

func TestConsumeResponsePayload(t *testing.T) {
	spec := NewCommandSpec("XX", nil,
		[]Field{NewByteField("id"), NewWordField("value"), NewByteArrayField("data", 2)})
	result := spec.ConsumeResponsePayload([]byte{7, 1, 2, 9, 8})
	expected := map[string]any{"id": 7, "value": 0x0102, "data": []byte{9, 8}}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestConsumeResponsePayloadToleratesShortPayload(t *testing.T) {
	spec := NewCommandSpec("XX", nil,
		[]Field{NewByteField("id"), NewWordField("value")})
	result := spec.ConsumeResponsePayload([]byte{7, 1})
	if !reflect.DeepEqual(result, map[string]any{"id": 7}) {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestConsumeResponsePayloadVariableString(t *testing.T) {
	spec := NewCommandSpec("XX", nil,
		[]Field{NewStringField("name"), NewByteField("mode")})
	result := spec.ConsumeResponsePayload([]byte{'a', 'b', 0, 65})
	expected := map[string]any{"name": "ab", "mode": 65}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestConsumeResponsePayloadSkipsPadding(t *testing.T) {
	spec := NewCommandSpec("XX", nil,
		[]Field{NewByteField("id"), NewPaddingField(2), NewByteField("mode")})
	result := spec.ConsumeResponsePayload([]byte{7, 0, 0, 65})
	if !reflect.DeepEqual(result, map[string]any{"id": 7, "mode": 65}) {
		t.Errorf("unexpected result: %v", result)
	}
}

func TestResponseInstructionOverride(t *testing.T) {
	spec := NewCommandSpec("FW", nil, nil, "FM")
	assert.Equal(t, "FW", spec.Instruction)
	assert.Equal(t, "FM", spec.ResponseInstruction)
	plain := NewCommandSpec("FV", nil, nil)
	assert.Equal(t, "FV", plain.ResponseInstruction)
}

func TestAdditiveChecksum(t *testing.T) {
	assert.Equal(t, byte(0), additiveChecksum(nil))
	assert.Equal(t, byte(6), additiveChecksum([]byte{1, 2, 3}))
	assert.Equal(t, byte(4), additiveChecksum([]byte{255, 5}))
}

func TestBasicActionRoundTrip(t *testing.T) {
	action := &BasicAction{ActionType: 2, Action: 16, DeviceNr: 0x0102, ExtraParameter: 0x0304}
	data, err := action.Encode()
	assert.Nil(t, err)
	decoded, err := DecodeBasicAction(data)
	assert.Nil(t, err)
	assert.Equal(t, action, decoded)
	_, err = DecodeBasicAction([]byte{1, 2, 3})
	assert.NotNil(t, err)
}
