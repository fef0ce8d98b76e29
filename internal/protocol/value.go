package protocol

import "fmt"

// Kind identifies the variant held by a Value. The numeric values are the
// type tags written on the wire.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindString
	KindBinary
	KindArray
	KindMap
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a node of the dynamically typed value tree carried by packets.
//
// The zero Value is Null. Values are built with the constructor functions
// (BoolValue, StringValue, MapValue, ...) and inspected with the As* accessors.
type Value struct {
	kind    Kind
	boolean bool
	integer int32
	text    string
	binary  []byte
	array   []Value
	entries []Entry
}

// Entry is a single key/value pair of a map Value.
type Entry struct {
	Key   string
	Value Value
}

// Field is shorthand for building an Entry.
func Field(key string, value Value) Entry {
	return Entry{Key: key, Value: value}
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// BoolValue returns a bool Value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// Int32Value returns an int32 Value.
func Int32Value(i int32) Value {
	return Value{kind: KindInt32, integer: i}
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, text: s}
}

// BinaryValue returns a binary Value. The slice is not copied.
func BinaryValue(b []byte) Value {
	if b == nil {
		b = []byte{}
	}

	return Value{kind: KindBinary, binary: b}
}

// ArrayValue returns an array Value holding items in order.
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}

	return Value{kind: KindArray, array: items}
}

// StringArray returns an array Value of string Values.
func StringArray(items ...string) Value {
	values := make([]Value, len(items))
	for i, item := range items {
		values[i] = StringValue(item)
	}

	return Value{kind: KindArray, array: values}
}

// MapValue returns a map Value. Entries are encoded in the given order.
func MapValue(entries ...Entry) Value {
	if entries == nil {
		entries = []Entry{}
	}

	return Value{kind: KindMap, entries: entries}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the bool held by v.
func (v Value) AsBool() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// AsInt32 returns the int32 held by v.
func (v Value) AsInt32() (int32, bool) {
	return v.integer, v.kind == KindInt32
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.text, v.kind == KindString
}

// AsBinary returns the bytes held by v.
func (v Value) AsBinary() ([]byte, bool) {
	return v.binary, v.kind == KindBinary
}

// AsArray returns the items held by v.
func (v Value) AsArray() ([]Value, bool) {
	return v.array, v.kind == KindArray
}

// AsMap returns the entries held by v in wire order.
func (v Value) AsMap() ([]Entry, bool) {
	return v.entries, v.kind == KindMap
}

// Get looks up key in a map Value. It returns false when v is not a map or
// the key is absent. With duplicate keys the last one wins.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}

	for i := len(v.entries) - 1; i >= 0; i-- {
		if v.entries[i].Key == key {
			return v.entries[i].Value, true
		}
	}

	return Value{}, false
}

// GetString looks up key in a map Value and returns it when it is a string.
func (v Value) GetString(key string) (string, bool) {
	field, ok := v.Get(key)
	if !ok {
		return "", false
	}

	return field.AsString()
}

// Has reports whether a map Value contains key.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)

	return ok
}

// Len returns the element count of an array, map, string or binary Value and
// zero for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.array)
	case KindMap:
		return len(v.entries)
	case KindString:
		return len(v.text)
	case KindBinary:
		return len(v.binary)
	default:
		return 0
	}
}
