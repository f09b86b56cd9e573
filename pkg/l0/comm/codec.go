package comm

import (
	"encoding/binary"
	"math"
)

// FloatOrder is the byte order of float32 values on the wire.
// Floats are copied from the firmware's in-memory representation
// (Cortex-M, little-endian) without conversion, unlike integers
// which are big-endian.
var FloatOrder binary.ByteOrder = binary.LittleEndian

// Encoder appends fixed-width values to a caller sized buffer.
// The caller must size the buffer for everything it puts, overflowing
// it panics.
type Encoder struct {
	buf []byte
	pos int
}

// NewEncoder creates an Encoder writing from the start of buf.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// PutByte writes a single byte.
func (e *Encoder) PutByte(v byte) *Encoder {
	e.buf[e.pos] = v
	e.pos++
	return e
}

// PutInt16 writes a big-endian int16.
func (e *Encoder) PutInt16(v int16) *Encoder {
	return e.PutUint16(uint16(v))
}

// PutUint16 writes a big-endian uint16.
func (e *Encoder) PutUint16(v uint16) *Encoder {
	binary.BigEndian.PutUint16(e.buf[e.pos:e.pos+2], v)
	e.pos += 2
	return e
}

// PutInt32 writes a big-endian int32.
func (e *Encoder) PutInt32(v int32) *Encoder {
	return e.PutUint32(uint32(v))
}

// PutUint32 writes a big-endian uint32.
func (e *Encoder) PutUint32(v uint32) *Encoder {
	binary.BigEndian.PutUint32(e.buf[e.pos:e.pos+4], v)
	e.pos += 4
	return e
}

// PutFloat32 writes a float32 in FloatOrder.
func (e *Encoder) PutFloat32(v float32) *Encoder {
	FloatOrder.PutUint32(e.buf[e.pos:e.pos+4], math.Float32bits(v))
	e.pos += 4
	return e
}

// Len returns the number of bytes written.
func (e *Encoder) Len() int {
	return e.pos
}

// Bytes returns the written part of the buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf[:e.pos]
}

// Decoder reads fixed-width values from a buffer.
// Reading past the end panics.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a Decoder reading from the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Byte reads a single byte.
func (d *Decoder) Byte() byte {
	v := d.buf[d.pos]
	d.pos++
	return v
}

// Int16 reads a big-endian int16.
func (d *Decoder) Int16() int16 {
	return int16(d.Uint16())
}

// Uint16 reads a big-endian uint16.
func (d *Decoder) Uint16() uint16 {
	v := binary.BigEndian.Uint16(d.buf[d.pos : d.pos+2])
	d.pos += 2
	return v
}

// Int32 reads a big-endian int32.
func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() uint32 {
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v
}

// Float32 reads a float32 in FloatOrder.
func (d *Decoder) Float32() float32 {
	v := math.Float32frombits(FloatOrder.Uint32(d.buf[d.pos : d.pos+4]))
	d.pos += 4
	return v
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}
