package master

import "fmt"

// BasicAction is the compact encoding of a single hardware operation:
// a type, an action, a device number and an optional extra parameter.
// Its wire representation is 6 bytes.
type BasicAction struct {
	ActionType     int
	Action         int
	DeviceNr       int
	ExtraParameter int
}

const basicActionLength = 6

// Encode serializes the basic action into its 6-byte representation
func (ba *BasicAction) Encode() ([]byte, error) {
	data := make([]byte, 0, basicActionLength)
	for _, part := range []struct {
		field Field
		value int
	}{
		{NewByteField("type"), ba.ActionType},
		{NewByteField("action"), ba.Action},
		{NewWordField("device_nr"), ba.DeviceNr},
		{NewWordField("extra_parameter"), ba.ExtraParameter},
	} {
		encoded, err := part.field.Encode(part.value)
		if err != nil {
			return nil, err
		}
		data = append(data, encoded...)
	}
	return data, nil
}

// DecodeBasicAction parses a 6-byte representation
func DecodeBasicAction(data []byte) (*BasicAction, error) {
	if len(data) != basicActionLength {
		return nil, newValueError("a basic action is %d bytes, got %d", basicActionLength, len(data))
	}
	return &BasicAction{
		ActionType:     int(data[0]),
		Action:         int(data[1]),
		DeviceNr:       int(data[2])<<8 | int(data[3]),
		ExtraParameter: int(data[4])<<8 | int(data[5]),
	}, nil
}

func (ba *BasicAction) String() string {
	return fmt.Sprintf("BA(%d, %d, %d, %d)", ba.ActionType, ba.Action, ba.DeviceNr, ba.ExtraParameter)
}
