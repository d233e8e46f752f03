package master

import (
	"fmt"
	"strconv"
	"strings"
)

// SizeVariable is returned by Size for fields without a fixed width, e.g. a
// NUL-terminated string. Such fields consume a payload-dependent amount of
// bytes when a response is parsed.
const SizeVariable = -1

// Field converts between a high-level value (int, string, byte slice) and its
// fixed or computed-length wire representation.
type Field interface {
	Name() string
	// Size returns the number of bytes this field occupies within a payload
	// of payloadLength bytes. Most field types have a fixed size.
	Size(payloadLength int) int
	// Encode converts a value into bytes. Out-of-range values are rejected
	// with a ValueError, never silently truncated.
	Encode(value any) ([]byte, error)
	// Decode converts bytes into a value. It is total over any byte sequence
	// of the declared size: corrupted bytes decode to some value, the reader
	// must never crash on them.
	Decode(data []byte) any
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	}
	return 0, false
}

// toWideInt widens without going through the platform int, values up to 32
// bits survive on 32-bit builds.
func toWideInt(value any) (int64, bool) {
	switch v := value.(type) {
	case uint32:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > 1<<63-1 {
			return 0, false
		}
		return int64(v), true
	}
	number, ok := toInt(value)
	return int64(number), ok
}

// ByteField is a single byte holding 0-255
type ByteField struct {
	name string
}

func NewByteField(name string) *ByteField {
	return &ByteField{name: name}
}

func (f *ByteField) Name() string { return f.name }

func (f *ByteField) Size(int) int { return 1 }

func (f *ByteField) Encode(value any) ([]byte, error) {
	v, ok := toInt(value)
	if !ok || v < 0 || v > 255 {
		return nil, newValueError("value `%v` out of limits: 0 <= value <= 255", value)
	}
	return []byte{byte(v)}, nil
}

func (f *ByteField) Decode(data []byte) any {
	if len(data) < 1 {
		return 0
	}
	return int(data[0])
}

// CharField is a single printable character
type CharField struct {
	name string
}

func NewCharField(name string) *CharField {
	return &CharField{name: name}
}

func (f *CharField) Name() string { return f.name }

func (f *CharField) Size(int) int { return 1 }

func (f *CharField) Encode(value any) ([]byte, error) {
	v, ok := value.(string)
	if !ok || len(v) != 1 {
		return nil, newValueError("value `%v` must be a single-character string", value)
	}
	return []byte{v[0]}, nil
}

func (f *CharField) Decode(data []byte) any {
	if len(data) < 1 {
		return ""
	}
	return string(data[:1])
}

// WordField is a 16 bit big-endian unsigned integer
type WordField struct {
	name string
}

func NewWordField(name string) *WordField {
	return &WordField{name: name}
}

func (f *WordField) Name() string { return f.name }

func (f *WordField) Size(int) int { return 2 }

func (f *WordField) Encode(value any) ([]byte, error) {
	v, ok := toInt(value)
	if !ok || v < 0 || v > 65535 {
		return nil, newValueError("value `%v` out of limits: 0 <= value <= 65535", value)
	}
	return []byte{byte(v >> 8), byte(v & 0xFF)}, nil
}

func (f *WordField) Decode(data []byte) any {
	if len(data) < 2 {
		return 0
	}
	return int(data[0])<<8 | int(data[1])
}

// ThreeBytesField is a 24 bit big-endian unsigned integer
type ThreeBytesField struct {
	name string
}

func NewThreeBytesField(name string) *ThreeBytesField {
	return &ThreeBytesField{name: name}
}

func (f *ThreeBytesField) Name() string { return f.name }

func (f *ThreeBytesField) Size(int) int { return 3 }

func (f *ThreeBytesField) Encode(value any) ([]byte, error) {
	v, ok := toInt(value)
	if !ok || v < 0 || v > 0xFFFFFF {
		return nil, newValueError("value `%v` out of limits: 0 <= value <= %d", value, 0xFFFFFF)
	}
	return []byte{byte(v >> 16), byte(v >> 8), byte(v & 0xFF)}, nil
}

func (f *ThreeBytesField) Decode(data []byte) any {
	if len(data) < 3 {
		return 0
	}
	return int(data[0])<<16 | int(data[1])<<8 | int(data[2])
}

// Int32Field is a 32 bit big-endian unsigned integer
type Int32Field struct {
	name string
}

func NewInt32Field(name string) *Int32Field {
	return &Int32Field{name: name}
}

func (f *Int32Field) Name() string { return f.name }

func (f *Int32Field) Size(int) int { return 4 }

func (f *Int32Field) Encode(value any) ([]byte, error) {
	v, ok := toWideInt(value)
	if !ok || v < 0 || v > 0xFFFFFFFF {
		return nil, newValueError("value `%v` out of limits: 0 <= value <= %d", value, int64(0xFFFFFFFF))
	}
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v & 0xFF)}, nil
}

func (f *Int32Field) Decode(data []byte) any {
	if len(data) < 4 {
		return 0
	}
	return int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
}

// ByteArrayField is a fixed or payload-length-computed array of bytes
type ByteArrayField struct {
	name   string
	length int
	sizeFn func(payloadLength int) int
}

func NewByteArrayField(name string, length int) *ByteArrayField {
	return &ByteArrayField{name: name, length: length}
}

// NewVariableByteArrayField creates a byte array whose size depends on the
// total response payload length, e.g. "remaining bytes minus 4".
func NewVariableByteArrayField(name string, sizeFn func(payloadLength int) int) *ByteArrayField {
	return &ByteArrayField{name: name, length: -1, sizeFn: sizeFn}
}

func (f *ByteArrayField) Name() string { return f.name }

func (f *ByteArrayField) Size(payloadLength int) int {
	if f.sizeFn != nil {
		return f.sizeFn(payloadLength)
	}
	return f.length
}

func (f *ByteArrayField) Encode(value any) ([]byte, error) {
	v, ok := value.([]byte)
	if !ok {
		if ints, isInts := value.([]int); isInts {
			v = make([]byte, 0, len(ints))
			for _, item := range ints {
				if item < 0 || item > 255 {
					return nil, newValueError("one of the items in value is out of limits: 0 <= item <= 255")
				}
				v = append(v, byte(item))
			}
		} else {
			return nil, newValueError("value `%v` should be an array of %d items with 0 <= item <= 255", value, f.length)
		}
	}
	if f.length >= 0 && len(v) != f.length {
		return nil, newValueError("value `%v` should be an array of %d items with 0 <= item <= 255", value, f.length)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (f *ByteArrayField) Decode(data []byte) any {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// WordArrayField is a fixed array of 16 bit big-endian unsigned integers
type WordArrayField struct {
	name string
	// length in words, the wire representation is twice as long
	words int
}

func NewWordArrayField(name string, words int) *WordArrayField {
	return &WordArrayField{name: name, words: words}
}

func (f *WordArrayField) Name() string { return f.name }

func (f *WordArrayField) Size(int) int { return f.words * 2 }

func (f *WordArrayField) Encode(value any) ([]byte, error) {
	v, ok := value.([]int)
	if !ok || len(v) != f.words {
		return nil, newValueError("value `%v` should be an array of %d items with 0 <= item <= 65535", value, f.words)
	}
	data := make([]byte, 0, f.words*2)
	for _, item := range v {
		if item < 0 || item > 65535 {
			return nil, newValueError("one of the items in value is out of limits: 0 <= item <= 65535")
		}
		data = append(data, byte(item>>8), byte(item&0xFF))
	}
	return data, nil
}

func (f *WordArrayField) Decode(data []byte) any {
	result := make([]int, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		result = append(result, int(data[i])<<8|int(data[i+1]))
	}
	return result
}

// LiteralBytesField is a constant byte sequence, encode-only
type LiteralBytesField struct {
	data []byte
}

func NewLiteralBytesField(data ...byte) *LiteralBytesField {
	return &LiteralBytesField{data: data}
}

func (f *LiteralBytesField) Name() string { return "literal_bytes" }

func (f *LiteralBytesField) Size(int) int { return len(f.data) }

func (f *LiteralBytesField) Encode(value any) ([]byte, error) {
	if value != nil {
		return nil, newValueError("LiteralBytesField does not support value encoding")
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

func (f *LiteralBytesField) Decode(data []byte) any {
	// Not used in responses, keep total anyway
	return data
}

// AddressField is a dotted decimal string of a fixed number of parts, each
// part holding 0-255, e.g. '001.002.003.004'
type AddressField struct {
	name  string
	parts int
}

func NewAddressField(name string, parts int) *AddressField {
	return &AddressField{name: name, parts: parts}
}

func (f *AddressField) Name() string { return f.name }

func (f *AddressField) Size(int) int { return f.parts }

func (f *AddressField) Encode(value any) ([]byte, error) {
	return encodeAddress(value, f.parts)
}

func (f *AddressField) Decode(data []byte) any {
	parts := make([]string, 0, len(data))
	for _, item := range data {
		parts = append(parts, fmt.Sprintf("%03d", item))
	}
	return strings.Join(parts, ".")
}

func encodeAddress(value any, length int) ([]byte, error) {
	example := make([]string, 0, length)
	for i := length - 1; i >= 0; i-- {
		example = append(example, fmt.Sprintf("ID%d", i))
	}
	errorMessage := fmt.Sprintf("value `%v` should be a string in the format of %s, where 0 <= IDx <= 255",
		value, strings.Join(example, "."))
	v, ok := value.(string)
	if !ok {
		return nil, newValueError("%s", errorMessage)
	}
	parts := strings.Split(v, ".")
	if len(parts) != length {
		return nil, newValueError("%s", errorMessage)
	}
	data := make([]byte, 0, length)
	for _, part := range parts {
		item, err := strconv.Atoi(part)
		if err != nil || item < 0 || item > 255 {
			return nil, newValueError("%s", errorMessage)
		}
		data = append(data, byte(item))
	}
	return data, nil
}

// VersionField is a 3-part version string, e.g. '1.0.2'
type VersionField struct {
	name string
}

func NewVersionField(name string) *VersionField {
	return &VersionField{name: name}
}

func (f *VersionField) Name() string { return f.name }

func (f *VersionField) Size(int) int { return 3 }

func (f *VersionField) Encode(value any) ([]byte, error) {
	return encodeAddress(value, 3)
}

func (f *VersionField) Decode(data []byte) any {
	parts := make([]string, 0, len(data))
	for _, item := range data {
		parts = append(parts, strconv.Itoa(int(item)))
	}
	return strings.Join(parts, ".")
}

// StringField is a NUL-terminated string, variable length on decode
type StringField struct {
	name string
}

func NewStringField(name string) *StringField {
	return &StringField{name: name}
}

func (f *StringField) Name() string { return f.name }

func (f *StringField) Size(int) int { return SizeVariable }

func (f *StringField) Encode(value any) ([]byte, error) {
	v, ok := value.(string)
	if !ok {
		return nil, newValueError("value `%v` should be a string", value)
	}
	return append([]byte(v), 0), nil
}

func (f *StringField) Decode(data []byte) any {
	return strings.Trim(string(data), "\x00")
}

// PaddingField fills a fixed amount of bytes. It encodes to zeroes regardless
// of input and decodes to a placeholder that is never exposed to callers.
type PaddingField struct {
	length int
}

func NewPaddingField(length int) *PaddingField {
	return &PaddingField{length: length}
}

func (f *PaddingField) Name() string { return "padding" }

func (f *PaddingField) Size(int) int { return f.length }

func (f *PaddingField) Encode(any) ([]byte, error) {
	return make([]byte, f.length), nil
}

func (f *PaddingField) Decode([]byte) any {
	return strings.Repeat(".", f.length)
}
