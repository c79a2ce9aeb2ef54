package oer

import (
	"encoding/binary"
	"errors"
	"math"
)

// Errors latched by Encoder and Decoder. The first one raised wins.
var (
	ErrOutOfMemory = errors.New("oer: out of memory")
	ErrOutOfData   = errors.New("oer: out of data")
	ErrBadLength   = errors.New("oer: bad length")
	ErrBadChoice   = errors.New("oer: bad choice")
)

// Codec is implemented by every generated type.
type Codec interface {
	EncodeOER(buf []byte) (int, error)
	DecodeOER(buf []byte) (int, error)
}

// Encoder appends OER octets to a caller provided buffer.
type Encoder struct {
	buf []byte
	pos int
	err error
}

// Decoder consumes OER octets from a caller provided buffer.
type Decoder struct {
	buf []byte
	pos int
	err error
}

func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Result returns the number of bytes written, or the latched error.
func (e *Encoder) Result() (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	return e.pos, nil
}

// Abort latches err unless an earlier error is already latched.
func (e *Encoder) Abort(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Alloc reserves n bytes and returns their start position, or -1 once
// an error is latched.
func (e *Encoder) Alloc(n int) int {
	if e.err != nil {
		return -1
	}
	if n > len(e.buf)-e.pos {
		e.err = ErrOutOfMemory
		return -1
	}
	pos := e.pos
	e.pos += n
	return pos
}

func (e *Encoder) AppendBytes(b []byte) {
	pos := e.Alloc(len(b))
	if pos < 0 {
		return
	}
	copy(e.buf[pos:], b)
}

func (e *Encoder) AppendInteger8(v uint8) {
	pos := e.Alloc(1)
	if pos < 0 {
		return
	}
	e.buf[pos] = v
}

func (e *Encoder) AppendInteger16(v uint16) {
	pos := e.Alloc(2)
	if pos < 0 {
		return
	}
	binary.BigEndian.PutUint16(e.buf[pos:], v)
}

func (e *Encoder) AppendInteger32(v uint32) {
	pos := e.Alloc(4)
	if pos < 0 {
		return
	}
	binary.BigEndian.PutUint32(e.buf[pos:], v)
}

func (e *Encoder) AppendInteger64(v uint64) {
	pos := e.Alloc(8)
	if pos < 0 {
		return
	}
	binary.BigEndian.PutUint64(e.buf[pos:], v)
}

// AppendInteger writes the low n bytes of v. Widths other than 1, 2 and 3
// write all four bytes.
func (e *Encoder) AppendInteger(v uint32, n uint8) {
	switch n {
	case 1:
		e.AppendInteger8(uint8(v))
	case 2:
		e.AppendInteger16(uint16(v))
	case 3:
		e.AppendInteger8(uint8(v >> 16))
		e.AppendInteger16(uint16(v))
	default:
		e.AppendInteger32(v)
	}
}

func (e *Encoder) AppendFloat(v float32) {
	e.AppendInteger32(math.Float32bits(v))
}

func (e *Encoder) AppendDouble(v float64) {
	e.AppendInteger64(math.Float64bits(v))
}

func (e *Encoder) AppendBool(v bool) {
	if v {
		e.AppendInteger8(0xff)
	} else {
		e.AppendInteger8(0)
	}
}

// AppendLengthDeterminant writes length in short form below 128 and in
// long form with the fewest length octets otherwise.
func (e *Encoder) AppendLengthDeterminant(length uint32) {
	switch {
	case length < 128:
		e.AppendInteger8(uint8(length))
	case length < 256:
		e.AppendInteger8(0x81)
		e.AppendInteger8(uint8(length))
	case length < 65536:
		e.AppendInteger8(0x82)
		e.AppendInteger16(uint16(length))
	case length < 1<<24:
		e.AppendInteger8(0x83)
		e.AppendInteger8(uint8(length >> 16))
		e.AppendInteger16(uint16(length))
	default:
		e.AppendInteger8(0x84)
		e.AppendInteger32(length)
	}
}

// Result returns the number of bytes consumed, or the latched error.
func (d *Decoder) Result() (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	return d.pos, nil
}

// Abort latches err unless an earlier error is already latched.
func (d *Decoder) Abort(err error) {
	if d.err == nil {
		d.err = err
	}
}

// Free consumes n bytes and returns their start position, or -1 once an
// error is latched.
func (d *Decoder) Free(n int) int {
	if d.err != nil {
		return -1
	}
	if n > len(d.buf)-d.pos {
		d.err = ErrOutOfData
		return -1
	}
	pos := d.pos
	d.pos += n
	return pos
}

// Fits reports whether n more bytes remain. Otherwise it latches
// ErrOutOfData, so a length read from the input can be checked before
// anything is allocated for it.
func (d *Decoder) Fits(n uint32) bool {
	if d.err != nil {
		return false
	}
	if uint64(n) > uint64(len(d.buf)-d.pos) {
		d.err = ErrOutOfData
		return false
	}
	return true
}

// ReadBytes fills dst, or zero-fills it when the input is exhausted.
func (d *Decoder) ReadBytes(dst []byte) {
	pos := d.Free(len(dst))
	if pos < 0 {
		clear(dst)
		return
	}
	copy(dst, d.buf[pos:])
}

// ReadSlice returns a copy of the next n bytes. The length is checked
// against the remaining input before anything is allocated.
func (d *Decoder) ReadSlice(n uint32) []byte {
	if d.err == nil && uint64(n) > uint64(len(d.buf)-d.pos) {
		d.err = ErrOutOfData
	}
	pos := d.Free(int(n))
	if pos < 0 {
		return nil
	}
	b := make([]byte, n)
	copy(b, d.buf[pos:])
	return b
}

func (d *Decoder) ReadInteger8() uint8 {
	pos := d.Free(1)
	if pos < 0 {
		return 0
	}
	return d.buf[pos]
}

func (d *Decoder) ReadInteger16() uint16 {
	pos := d.Free(2)
	if pos < 0 {
		return 0
	}
	return binary.BigEndian.Uint16(d.buf[pos:])
}

func (d *Decoder) ReadInteger32() uint32 {
	pos := d.Free(4)
	if pos < 0 {
		return 0
	}
	return binary.BigEndian.Uint32(d.buf[pos:])
}

func (d *Decoder) ReadInteger64() uint64 {
	pos := d.Free(8)
	if pos < 0 {
		return 0
	}
	return binary.BigEndian.Uint64(d.buf[pos:])
}

// ReadInteger reads an n byte unsigned integer. Unsupported widths return
// 0xffffffff without consuming input.
func (d *Decoder) ReadInteger(n uint8) uint32 {
	switch n {
	case 1:
		return uint32(d.ReadInteger8())
	case 2:
		return uint32(d.ReadInteger16())
	case 3:
		v := uint32(d.ReadInteger8()) << 16
		return v | uint32(d.ReadInteger16())
	case 4:
		return d.ReadInteger32()
	default:
		return 0xffffffff
	}
}

func (d *Decoder) ReadFloat() float32 {
	return math.Float32frombits(d.ReadInteger32())
}

func (d *Decoder) ReadDouble() float64 {
	return math.Float64frombits(d.ReadInteger64())
}

func (d *Decoder) ReadBool() bool {
	return d.ReadInteger8() != 0
}

// ReadLengthDeterminant reads a short or long form length. A long form
// with more than four length octets yields 0xffffffff.
func (d *Decoder) ReadLengthDeterminant() uint32 {
	length := uint32(d.ReadInteger8())
	if length&0x80 == 0 {
		return length
	}
	switch length & 0x7f {
	case 1:
		return uint32(d.ReadInteger8())
	case 2:
		return uint32(d.ReadInteger16())
	case 3:
		v := uint32(d.ReadInteger8()) << 16
		return v | uint32(d.ReadInteger16())
	case 4:
		return d.ReadInteger32()
	default:
		return 0xffffffff
	}
}
