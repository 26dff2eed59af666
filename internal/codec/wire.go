package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Wire types carried in the low three bits of every field key.
const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
)

var (
	ErrTruncated = errors.New("truncated message")
	ErrOverflow  = errors.New("varint overflows 64 bits")
)

type writer struct {
	buf []byte
}

func (w *writer) key(tag, wt int) {
	w.buf = binary.AppendUvarint(w.buf, uint64(tag)<<3|uint64(wt))
}

func (w *writer) varint(tag int, v int64) {
	w.key(tag, wireVarint)
	w.buf = binary.AppendUvarint(w.buf, zigzag(v))
}

func (w *writer) double(tag int, v float64) {
	w.key(tag, wireFixed64)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *writer) bytes(tag int, b []byte) {
	w.key(tag, wireBytes)
	w.buf = binary.AppendUvarint(w.buf, uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) packedDoubles(tag int, vs []float64) {
	packed := make([]byte, 0, 8*len(vs))
	for _, v := range vs {
		packed = binary.LittleEndian.AppendUint64(packed, math.Float64bits(v))
	}
	w.bytes(tag, packed)
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) done() bool {
	return r.off >= len(r.buf)
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.off:])
	switch {
	case n == 0:
		return 0, ErrTruncated
	case n < 0:
		return 0, ErrOverflow
	}
	r.off += n
	return v, nil
}

func (r *reader) key() (tag, wt int, err error) {
	k, err := r.uvarint()
	if err != nil {
		return 0, 0, err
	}
	tag = int(k >> 3)
	if tag == 0 {
		return 0, 0, fmt.Errorf("invalid field tag 0 at offset %d", r.off)
	}
	return tag, int(k & 7), nil
}

func (r *reader) fixed64() (float64, error) {
	if len(r.buf)-r.off < 8 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(v), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.off) {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

// skip consumes a value of an unknown field.
func (r *reader) skip(wt int) error {
	switch wt {
	case wireVarint:
		_, err := r.uvarint()
		return err
	case wireFixed64:
		_, err := r.fixed64()
		return err
	case wireBytes:
		_, err := r.bytes()
		return err
	default:
		return fmt.Errorf("unsupported wire type %d", wt)
	}
}

func zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func unpackDoubles(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("packed doubles: %d bytes is not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
