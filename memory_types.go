package master

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// memoryCodec converts between a high-level value and its raw byte
// representation in EEPROM/FRAM.
type memoryCodec interface {
	length() int
	encode(value any) ([]byte, error)
	decode(data []byte) any
}

type memoryByteCodec struct{}

func (memoryByteCodec) length() int { return 1 }

func (memoryByteCodec) encode(value any) ([]byte, error) {
	number, ok := toInt(value)
	if !ok || number < 0 || number > 255 {
		return nil, newValueError("value out of limits: 0 <= value <= 255")
	}
	return []byte{byte(number)}, nil
}

func (memoryByteCodec) decode(data []byte) any { return int(data[0]) }

type memoryWordCodec struct{}

func (memoryWordCodec) length() int { return 2 }

func (memoryWordCodec) encode(value any) ([]byte, error) {
	number, ok := toInt(value)
	if !ok || number < 0 || number > 65535 {
		return nil, newValueError("value out of limits: 0 <= value <= 65535")
	}
	return []byte{byte(number >> 8), byte(number)}, nil
}

func (memoryWordCodec) decode(data []byte) any { return int(data[0])<<8 | int(data[1]) }

type memory3BytesCodec struct{}

func (memory3BytesCodec) length() int { return 3 }

func (memory3BytesCodec) encode(value any) ([]byte, error) {
	number, ok := toInt(value)
	if !ok || number < 0 || number > 0xFFFFFF {
		return nil, newValueError("value out of limits: 0 <= value <= 16777215")
	}
	return []byte{byte(number >> 16), byte(number >> 8), byte(number)}, nil
}

func (memory3BytesCodec) decode(data []byte) any {
	return int(data[0])<<16 | int(data[1])<<8 | int(data[2])
}

type memoryByteArrayCodec struct{ size int }

func (codec memoryByteArrayCodec) length() int { return codec.size }

func (codec memoryByteArrayCodec) encode(value any) ([]byte, error) {
	data, ok := value.([]byte)
	if !ok {
		return nil, newValueError("value should be an array of %d bytes", codec.size)
	}
	if len(data) != codec.size {
		return nil, newValueError("value should be an array of %d bytes", codec.size)
	}
	return append([]byte{}, data...), nil
}

func (codec memoryByteArrayCodec) decode(data []byte) any { return append([]byte{}, data...) }

// memoryStringCodec stores a string padded with 255, decoding trailing 0 and
// 255 bytes away and mapping non-printable characters to spaces.
type memoryStringCodec struct{ size int }

func (codec memoryStringCodec) length() int { return codec.size }

func (codec memoryStringCodec) encode(value any) ([]byte, error) {
	text, ok := value.(string)
	if !ok {
		return nil, newValueError("value should be a string of at most %d characters", codec.size)
	}
	if len(text) > codec.size {
		return nil, newValueError("value should be a string of at most %d characters", codec.size)
	}
	data := append([]byte{}, text...)
	for len(data) < codec.size {
		data = append(data, 255)
	}
	return data, nil
}

func (codec memoryStringCodec) decode(data []byte) any {
	end := len(data)
	for end > 0 && (data[end-1] == 0 || data[end-1] == 255) {
		end--
	}
	var builder strings.Builder
	for _, item := range data[:end] {
		if item >= 32 && item <= 126 {
			builder.WriteByte(item)
		} else {
			builder.WriteByte(' ')
		}
	}
	return builder.String()
}

type memoryAddressCodec struct{}

func (memoryAddressCodec) length() int { return 4 }

func (memoryAddressCodec) encode(value any) ([]byte, error) {
	text, ok := value.(string)
	if !ok {
		return nil, newValueError("value should be a string in the format of ID3.ID2.ID1.ID0, where 0 <= IDx <= 255")
	}
	return encodeAddress(text, 4)
}

func (memoryAddressCodec) decode(data []byte) any {
	parts := make([]string, 0, len(data))
	for _, item := range data {
		parts = append(parts, fmt.Sprintf("%03d", item))
	}
	return strings.Join(parts, ".")
}

type memoryVersionCodec struct{}

func (memoryVersionCodec) length() int { return 3 }

func (memoryVersionCodec) encode(value any) ([]byte, error) {
	text, ok := value.(string)
	if !ok {
		return nil, newValueError("value should be a version string in the format of F.B.b")
	}
	return encodeAddress(text, 3)
}

func (memoryVersionCodec) decode(data []byte) any {
	parts := make([]string, 0, len(data))
	for _, item := range data {
		parts = append(parts, strconv.Itoa(int(item)))
	}
	return strings.Join(parts, ".")
}

type memoryBasicActionCodec struct{}

func (memoryBasicActionCodec) length() int { return basicActionLength }

func (memoryBasicActionCodec) encode(value any) ([]byte, error) {
	action, ok := value.(*BasicAction)
	if !ok {
		return nil, newValueError("value should be a BasicAction")
	}
	return action.Encode()
}

func (memoryBasicActionCodec) decode(data []byte) any {
	action, err := DecodeBasicAction(data)
	if err != nil {
		return nil
	}
	return action
}

// AddressSpec resolves the page and offset of a field for a model instance
type AddressSpec func(id int) (page int, offset int)

// FixedAddress is an AddressSpec that ignores the instance id
func FixedAddress(page, offset int) AddressSpec {
	return func(int) (int, int) { return page, offset }
}

// MemoryFieldSpec combines a codec with an address inside one of the memory
// banks.
type MemoryFieldSpec struct {
	name       string
	memoryType MemoryType
	codec      memoryCodec
	address    AddressSpec
}

func newMemoryFieldSpec(name string, memoryType MemoryType, address AddressSpec, codec memoryCodec) *MemoryFieldSpec {
	return &MemoryFieldSpec{name: name, memoryType: memoryType, codec: codec, address: address}
}

func NewMemoryByteField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryByteCodec{})
}

func NewMemoryWordField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryWordCodec{})
}

func NewMemory3BytesField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memory3BytesCodec{})
}

func NewMemoryByteArrayField(name string, memoryType MemoryType, address AddressSpec, length int) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryByteArrayCodec{size: length})
}

func NewMemoryStringField(name string, memoryType MemoryType, address AddressSpec, length int) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryStringCodec{size: length})
}

func NewMemoryAddressField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryAddressCodec{})
}

func NewMemoryVersionField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryVersionCodec{})
}

func NewMemoryBasicActionField(name string, memoryType MemoryType, address AddressSpec) *MemoryFieldSpec {
	return newMemoryFieldSpec(name, memoryType, address, memoryBasicActionCodec{})
}

// Address computes the memory address of this field for a model instance
func (spec *MemoryFieldSpec) Address(id int) MemoryAddress {
	page, offset := spec.address(id)
	return MemoryAddress{MemoryType: spec.memoryType, Page: page, Offset: offset, Length: spec.codec.length()}
}

func (spec *MemoryFieldSpec) Name() string { return spec.name }

// CompositePart is a sub-value packed inside the numeric value of an
// underlying memory field.
type CompositePart interface {
	partName() string
	extract(composite int) any
	insert(composite int, value any) (int, error)
}

// CompositeNumberField packs a number of the given bit width at a start bit.
// An optional value offset shifts the stored range, a max value bounds the
// logical one.
type CompositeNumberField struct {
	name        string
	startBit    uint
	mask        int
	maxValue    int
	valueOffset int
}

func NewCompositeNumberField(name string, startBit, width uint) *CompositeNumberField {
	return &CompositeNumberField{
		name:     name,
		startBit: startBit,
		mask:     (1 << width) - 1,
		maxValue: (1 << width) - 1,
	}
}

// WithLimits bounds the logical value and offsets the stored one
func (field *CompositeNumberField) WithLimits(maxValue, valueOffset int) *CompositeNumberField {
	field.maxValue = maxValue
	field.valueOffset = valueOffset
	return field
}

func (field *CompositeNumberField) partName() string { return field.name }

func (field *CompositeNumberField) extract(composite int) any {
	value := (composite >> field.startBit) & field.mask
	value -= field.valueOffset
	if value < 0 || value > field.maxValue {
		return nil
	}
	return value
}

func (field *CompositeNumberField) insert(composite int, value any) (int, error) {
	number, ok := toInt(value)
	if !ok {
		return 0, newValueError("value should be a number")
	}
	if number < 0 || number > field.maxValue {
		return 0, newValueError("value out of limits: 0 <= value <= %d", field.maxValue)
	}
	number += field.valueOffset
	composite &^= field.mask << field.startBit
	composite |= (number & field.mask) << field.startBit
	return composite, nil
}

// CompositeBitField packs a boolean at a single bit position
type CompositeBitField struct {
	name string
	bit  uint
}

func NewCompositeBitField(name string, bit uint) *CompositeBitField {
	return &CompositeBitField{name: name, bit: bit}
}

func (field *CompositeBitField) partName() string { return field.name }

func (field *CompositeBitField) extract(composite int) any {
	return composite>>field.bit&1 == 1
}

func (field *CompositeBitField) insert(composite int, value any) (int, error) {
	enabled, ok := value.(bool)
	if !ok {
		return 0, newValueError("value should be a boolean")
	}
	if enabled {
		composite |= 1 << field.bit
	} else {
		composite &^= 1 << field.bit
	}
	return composite, nil
}

// CompositeFieldSpec layers named sub-values over one numeric memory field.
// Writing a part is a read-modify-write of the underlying field, other parts
// keep their value.
type CompositeFieldSpec struct {
	name  string
	field *MemoryFieldSpec
	parts map[string]CompositePart
}

func NewCompositeFieldSpec(name string, field *MemoryFieldSpec, parts ...CompositePart) *CompositeFieldSpec {
	spec := &CompositeFieldSpec{name: name, field: field, parts: map[string]CompositePart{}}
	for _, part := range parts {
		spec.parts[part.partName()] = part
	}
	return spec
}

// MemoryRelation links a model to another model instance whose id is derived
// from the own id.
type MemoryRelation struct {
	name   string
	target *ModelDefinition
	idSpec func(id int) int
}

func NewMemoryRelation(name string, target *ModelDefinition, idSpec func(id int) int) *MemoryRelation {
	return &MemoryRelation{name: name, target: target, idSpec: idSpec}
}

// ModelDefinition is an explicitly registered schema describing how a
// configuration model maps onto EEPROM/FRAM addresses.
type ModelDefinition struct {
	name       string
	global     bool
	fieldOrder []string
	fields     map[string]*MemoryFieldSpec
	composites map[string]*CompositeFieldSpec
	relations  map[string]*MemoryRelation
}

// NewModelDefinition creates a schema for id-addressed model instances
func NewModelDefinition(name string) *ModelDefinition {
	return &ModelDefinition{
		name:       name,
		fields:     map[string]*MemoryFieldSpec{},
		composites: map[string]*CompositeFieldSpec{},
		relations:  map[string]*MemoryRelation{},
	}
}

// NewGlobalModelDefinition creates a schema with fixed addresses and a
// single instance.
func NewGlobalModelDefinition(name string) *ModelDefinition {
	definition := NewModelDefinition(name)
	definition.global = true
	return definition
}

// WithField registers a memory field on the schema
func (definition *ModelDefinition) WithField(spec *MemoryFieldSpec) *ModelDefinition {
	definition.fields[spec.name] = spec
	definition.fieldOrder = append(definition.fieldOrder, spec.name)
	return definition
}

// WithComposite registers a composite field on the schema
func (definition *ModelDefinition) WithComposite(spec *CompositeFieldSpec) *ModelDefinition {
	definition.composites[spec.name] = spec
	return definition
}

// WithRelation registers a relation to another model on the schema
func (definition *ModelDefinition) WithRelation(relation *MemoryRelation) *ModelDefinition {
	definition.relations[relation.name] = relation
	return definition
}

func (definition *ModelDefinition) Name() string { return definition.name }

// Load binds the schema to an instance id and the memory banks, yielding a
// record whose fields are read lazily and written on Save.
func (definition *ModelDefinition) Load(id int, files map[MemoryType]*MemoryFile) *Record {
	if definition.global {
		id = 0
	}
	return &Record{
		model:  definition,
		id:     id,
		files:  files,
		staged: map[string][]byte{},
	}
}

// Record is one instance of a model, bound to the memory banks
type Record struct {
	model  *ModelDefinition
	id     int
	files  map[MemoryType]*MemoryFile
	staged map[string][]byte
}

func (record *Record) ID() int { return record.id }

func (record *Record) fieldSpec(name string) (*MemoryFieldSpec, error) {
	spec, ok := record.model.fields[name]
	if !ok {
		return nil, newValueError("model %s has no field %s", record.model.name, name)
	}
	return spec, nil
}

func (record *Record) readField(spec *MemoryFieldSpec) ([]byte, error) {
	if data, ok := record.staged[spec.name]; ok {
		return data, nil
	}
	file, ok := record.files[spec.memoryType]
	if !ok {
		return nil, newValueError("no memory bank of type %c available", spec.memoryType)
	}
	address := spec.Address(record.id)
	data, err := file.Read([]MemoryAddress{address})
	if err != nil {
		return nil, err
	}
	return data[address], nil
}

// Get reads and decodes a field value
func (record *Record) Get(name string) (any, error) {
	spec, err := record.fieldSpec(name)
	if err != nil {
		return nil, err
	}
	data, err := record.readField(spec)
	if err != nil {
		return nil, err
	}
	return spec.codec.decode(data), nil
}

// Set encodes and stages a field value. The memory is only touched on Save.
func (record *Record) Set(name string, value any) error {
	spec, err := record.fieldSpec(name)
	if err != nil {
		return err
	}
	data, err := spec.codec.encode(value)
	if err != nil {
		return err
	}
	record.staged[spec.name] = data
	return nil
}

// GetComposite reads one sub-value of a composite field
func (record *Record) GetComposite(field, part string) (any, error) {
	spec, ok := record.model.composites[field]
	if !ok {
		return nil, newValueError("model %s has no composite field %s", record.model.name, field)
	}
	partSpec, ok := spec.parts[part]
	if !ok {
		return nil, newValueError("composite field %s has no part %s", field, part)
	}
	data, err := record.readField(spec.field)
	if err != nil {
		return nil, err
	}
	composite, ok := toInt(spec.field.codec.decode(data))
	if !ok {
		return nil, newValueError("composite field %s is not numeric", field)
	}
	return partSpec.extract(composite), nil
}

// SetComposite stages one sub-value of a composite field, keeping the other
// parts intact.
func (record *Record) SetComposite(field, part string, value any) error {
	spec, ok := record.model.composites[field]
	if !ok {
		return newValueError("model %s has no composite field %s", record.model.name, field)
	}
	partSpec, ok := spec.parts[part]
	if !ok {
		return newValueError("composite field %s has no part %s", field, part)
	}
	data, err := record.readField(spec.field)
	if err != nil {
		return err
	}
	composite, ok := toInt(spec.field.codec.decode(data))
	if !ok {
		return newValueError("composite field %s is not numeric", field)
	}
	composite, err = partSpec.insert(composite, value)
	if err != nil {
		return err
	}
	encoded, err := spec.field.codec.encode(composite)
	if err != nil {
		return err
	}
	record.staged[spec.field.name] = encoded
	return nil
}

// Relation yields the related record for this instance
func (record *Record) Relation(name string) (*Record, error) {
	relation, ok := record.model.relations[name]
	if !ok {
		return nil, newValueError("model %s has no relation %s", record.model.name, name)
	}
	return relation.target.Load(relation.idSpec(record.id), record.files), nil
}

// Save writes all staged fields to memory and clears the staging area
func (record *Record) Save() error {
	names := make([]string, 0, len(record.staged))
	for name := range record.staged {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := record.model.fields[name]
		if spec == nil {
			if composite, ok := record.compositeByFieldName(name); ok {
				spec = composite.field
			}
		}
		if spec == nil {
			continue
		}
		file, ok := record.files[spec.memoryType]
		if !ok {
			return newValueError("no memory bank of type %c available", spec.memoryType)
		}
		if err := file.Write(map[MemoryAddress][]byte{spec.Address(record.id): record.staged[name]}); err != nil {
			return err
		}
		delete(record.staged, name)
	}
	return nil
}

func (record *Record) compositeByFieldName(name string) (*CompositeFieldSpec, bool) {
	for _, composite := range record.model.composites {
		if composite.field.name == name {
			return composite, true
		}
	}
	return nil, false
}

// Serialize reads every registered field into a plain map
func (record *Record) Serialize() (map[string]any, error) {
	data := map[string]any{}
	if !record.model.global {
		data["id"] = record.id
	}
	for _, name := range record.model.fieldOrder {
		value, err := record.Get(name)
		if err != nil {
			return nil, err
		}
		data[name] = value
	}
	return data, nil
}
