// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package odometer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Record is the persisted odometer state: cumulative motor and spindle
// run time in milliseconds and per-axis travelled distance in mm.
// All fields only ever grow while the record is current; Reset is the
// only operation that zeroes them.
type Record struct {
	Motors   uint64
	Spindle  uint64
	Distance []float32
}

// RecordSize returns the encoded size in bytes for the given axis count,
// excluding the NVS integrity footer.
func RecordSize(nAxes int) uint32 {
	return 16 + 4*uint32(nAxes)
}

func newRecord(nAxes int) Record {
	return Record{Distance: make([]float32, nAxes)}
}

// reset zeroes all fields in place.
func (r *Record) reset() {
	r.Motors = 0
	r.Spindle = 0
	for i := range r.Distance {
		r.Distance[i] = 0
	}
}

// clone returns a deep copy.
func (r *Record) clone() Record {
	out := Record{
		Motors:   r.Motors,
		Spindle:  r.Spindle,
		Distance: make([]float32, len(r.Distance)),
	}
	copy(out.Distance, r.Distance)
	return out
}

// encode serializes the record in its fixed little-endian NVS layout.
func (r *Record) encode() []byte {
	buf := make([]byte, RecordSize(len(r.Distance)))
	binary.LittleEndian.PutUint64(buf[0:], r.Motors)
	binary.LittleEndian.PutUint64(buf[8:], r.Spindle)
	for i, d := range r.Distance {
		binary.LittleEndian.PutUint32(buf[16+4*i:], math.Float32bits(d))
	}
	return buf
}

// decodeRecord parses an encoded record. The data length must match the
// configured axis count exactly; a record persisted with a different
// axis count is not usable.
func decodeRecord(data []byte, nAxes int) (Record, error) {
	if uint32(len(data)) != RecordSize(nAxes) {
		return Record{}, fmt.Errorf("odometer: record size %d does not match %d axes", len(data), nAxes)
	}
	r := newRecord(nAxes)
	r.Motors = binary.LittleEndian.Uint64(data[0:])
	r.Spindle = binary.LittleEndian.Uint64(data[8:])
	for i := range r.Distance {
		r.Distance[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[16+4*i:]))
	}
	return r, nil
}
