// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package nvs

import "sync"

// Memory is an in-memory NVS backend. It is the default store for the
// simulator and the test double for the odometer core; fault hooks allow
// injecting write failures and corruption.
type Memory struct {
	mu   sync.Mutex
	typ  Type
	data []byte

	writeErr error // returned (once) by the next Write
}

// NewMemory creates an in-memory store of the given technology and size.
// Fresh storage reads as erased (0xFF), like real media.
func NewMemory(typ Type, size uint32) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xff
	}
	return &Memory{
		typ:  typ,
		data: data,
	}
}

func (m *Memory) Type() Type {
	return m.typ
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Read copies size bytes starting at addr. With withChecksum set the
// footer following the data is verified.
func (m *Memory) Read(addr, size uint32, withChecksum bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := size
	if withChecksum {
		total += ChecksumBytes
	}
	if err := checkRange(addr, total, uint32(len(m.data))); err != nil {
		return nil, err
	}

	out := make([]byte, size)
	copy(out, m.data[addr:addr+size])

	if withChecksum && m.data[addr+size] != Checksum(out) {
		return nil, ErrChecksum
	}
	return out, nil
}

// Write overwrites len(data) bytes at addr, appending the integrity
// footer when requested. The whole transfer happens under one lock, so a
// concurrent Read never observes a torn record.
func (m *Memory) Write(addr uint32, data []byte, withChecksum bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		err := m.writeErr
		m.writeErr = nil
		return err
	}

	total := uint32(len(data))
	if withChecksum {
		total += ChecksumBytes
	}
	if err := checkRange(addr, total, uint32(len(m.data))); err != nil {
		return err
	}

	copy(m.data[addr:], data)
	if withChecksum {
		m.data[addr+uint32(len(data))] = Checksum(data)
	}
	return nil
}

// FailNextWrite arranges for the next Write call to fail with err.
func (m *Memory) FailNextWrite(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// Corrupt flips one bit at addr, simulating an interrupted write or
// storage decay.
func (m *Memory) Corrupt(addr uint32) {
	m.mu.Lock()
	if addr < uint32(len(m.data)) {
		m.data[addr] ^= 0x01
	}
	m.mu.Unlock()
}

// Snapshot returns a copy of the raw contents, for simulating power loss
// and restart in tests.
func (m *Memory) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Restore replaces the raw contents with a snapshot.
func (m *Memory) Restore(data []byte) {
	m.mu.Lock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	m.mu.Unlock()
}
