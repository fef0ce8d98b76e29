package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wagiedev/esbuild-service-go/internal/errors"
)

// Direction tells whether a packet is a request or a response. It travels in
// bit 0 of the shifted packet id.
type Direction uint8

const (
	// Request packets carry bit 0 cleared.
	Request Direction = iota
	// Response packets carry bit 0 set.
	Response
)

// String returns "request" or "response".
func (d Direction) String() string {
	if d == Response {
		return "response"
	}

	return "request"
}

// MaxPacketID is the largest id that survives the one bit shift.
const MaxPacketID = math.MaxInt32

// initialPacketCapacity is the starting buffer size for encoded packets.
const initialPacketCapacity = 1024

// Packet is the decoded content of one frame.
type Packet struct {
	ID        uint32
	Direction Direction
	Value     Value

	// Size is the decoded payload length. It is zero for packets that were
	// not decoded from bytes.
	Size int
}

// IsRequest reports whether p was sent as a request.
func (p *Packet) IsRequest() bool {
	return p.Direction == Request
}

// Command returns the "command" field of a request packet, if any.
func (p *Packet) Command() string {
	command, _ := p.Value.GetString("command")

	return command
}

// EncodePacket encodes a complete frame: the length prefix, the shifted id and
// the value tree.
func EncodePacket(id uint32, dir Direction, value Value) ([]byte, error) {
	if id > MaxPacketID {
		return nil, fmt.Errorf("packet id %d exceeds %d", id, MaxPacketID)
	}

	shifted := id << 1
	if dir == Response {
		shifted |= 1
	}

	buf := make([]byte, 4, initialPacketCapacity)
	buf = binary.LittleEndian.AppendUint32(buf, shifted)

	buf, err := appendValue(buf, value)
	if err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(buf[:4], uint32(len(buf)-4))

	return buf, nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.kind))

	switch v.kind {
	case KindNull:
		return buf, nil

	case KindBool:
		if v.boolean {
			return append(buf, 1), nil
		}

		return append(buf, 0), nil

	case KindInt32:
		return binary.LittleEndian.AppendUint32(buf, uint32(v.integer)), nil

	case KindString:
		return appendString(buf, v.text), nil

	case KindBinary:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.binary)))

		return append(buf, v.binary...), nil

	case KindArray:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.array)))

		var err error
		for _, item := range v.array {
			if buf, err = appendValue(buf, item); err != nil {
				return nil, err
			}
		}

		return buf, nil

	case KindMap:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.entries)))

		var err error
		for _, entry := range v.entries {
			buf = appendString(buf, entry.Key)
			if buf, err = appendValue(buf, entry.Value); err != nil {
				return nil, err
			}
		}

		return buf, nil

	default:
		return nil, fmt.Errorf("cannot encode value of %s", v.kind)
	}
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))

	return append(buf, s...)
}

// DecodePacket decodes a frame payload, i.e. the bytes following the length
// prefix. The top-level value must be a map.
func DecodePacket(payload []byte) (*Packet, error) {
	d := &decoder{buf: payload}

	shifted, err := d.readUint32()
	if err != nil {
		return nil, err
	}

	value, err := d.readValue()
	if err != nil {
		return nil, err
	}

	if value.kind != KindMap {
		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("top-level value is %s, only maps are supported", value.kind),
		}
	}

	dir := Request
	if shifted&1 == 1 {
		dir = Response
	}

	return &Packet{ID: shifted >> 1, Direction: dir, Value: value, Size: len(payload)}, nil
}

// maxValueDepth bounds array and map nesting in a decoded value.
const maxValueDepth = 512

// decoder reads little-endian values from a payload with bounds checks.
type decoder struct {
	buf   []byte
	off   int
	depth int
}

// enter tracks one level of container nesting.
func (d *decoder) enter() error {
	d.depth++
	if d.depth > maxValueDepth {
		return &errors.ProtocolError{Reason: fmt.Sprintf("value nesting exceeds %d", maxValueDepth)}
	}

	return nil
}

func (d *decoder) need(n int) error {
	if n < 0 || len(d.buf)-d.off < n {
		return &errors.ProtocolError{
			Reason: fmt.Sprintf("truncated payload: need %d bytes at offset %d, have %d", n, d.off, len(d.buf)-d.off),
		}
	}

	return nil
}

func (d *decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}

	b := d.buf[d.off]
	d.off++

	return b, nil
}

func (d *decoder) readUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint32(d.buf[d.off:])
	d.off += 4

	return v, nil
}

// readLength reads a uint32 count and rejects counts the payload cannot hold.
// Every counted element occupies at least one byte.
func (d *decoder) readLength() (int, error) {
	n, err := d.readUint32()
	if err != nil {
		return 0, err
	}

	if int64(n) > int64(len(d.buf)-d.off) {
		return 0, &errors.ProtocolError{
			Reason: fmt.Sprintf("length %d exceeds remaining %d bytes", n, len(d.buf)-d.off),
		}
	}

	return int(n), nil
}

func (d *decoder) readBytes() ([]byte, error) {
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n

	return out, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readLength()
	if err != nil {
		return "", err
	}

	s := string(d.buf[d.off : d.off+n])
	d.off += n

	return s, nil
}

func (d *decoder) readValue() (Value, error) {
	tag, err := d.readByte()
	if err != nil {
		return Value{}, err
	}

	switch Kind(tag) {
	case KindNull:
		return Null(), nil

	case KindBool:
		b, err := d.readByte()
		if err != nil {
			return Value{}, err
		}

		return BoolValue(b != 0), nil

	case KindInt32:
		i, err := d.readUint32()
		if err != nil {
			return Value{}, err
		}

		return Int32Value(int32(i)), nil

	case KindString:
		s, err := d.readString()
		if err != nil {
			return Value{}, err
		}

		return StringValue(s), nil

	case KindBinary:
		b, err := d.readBytes()
		if err != nil {
			return Value{}, err
		}

		return BinaryValue(b), nil

	case KindArray:
		if err := d.enter(); err != nil {
			return Value{}, err
		}
		defer func() { d.depth-- }()

		n, err := d.readLength()
		if err != nil {
			return Value{}, err
		}

		items := make([]Value, n)
		for i := range items {
			if items[i], err = d.readValue(); err != nil {
				return Value{}, err
			}
		}

		return Value{kind: KindArray, array: items}, nil

	case KindMap:
		if err := d.enter(); err != nil {
			return Value{}, err
		}
		defer func() { d.depth-- }()

		n, err := d.readLength()
		if err != nil {
			return Value{}, err
		}

		entries := make([]Entry, n)
		for i := range entries {
			if entries[i].Key, err = d.readString(); err != nil {
				return Value{}, err
			}

			if entries[i].Value, err = d.readValue(); err != nil {
				return Value{}, err
			}
		}

		return Value{kind: KindMap, entries: entries}, nil

	default:
		return Value{}, &errors.ProtocolError{Reason: fmt.Sprintf("unknown type tag %d", tag)}
	}
}
