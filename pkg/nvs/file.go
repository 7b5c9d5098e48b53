// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package nvs

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// File is an NVS backend persisting to a fixed-size backing file. The
// file is flock-ed for exclusive access and every write is fsync-ed, so a
// completed Write survives abrupt process death.
type File struct {
	mu   sync.Mutex
	f    *os.File
	typ  Type
	size uint32
}

// OpenFile opens (creating if absent) a backing file of the given size.
// An existing shorter file is extended with zeroes; existing contents are
// preserved.
func OpenFile(path string, typ Type, size uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("nvs: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("nvs: lock %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nvs: stat %s: %w", path, err)
	}
	if fi.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvs: size %s: %w", path, err)
		}
	}

	return &File{f: f, typ: typ, size: size}, nil
}

func (s *File) Type() Type {
	return s.typ
}

func (s *File) Size() uint32 {
	return s.size
}

func (s *File) Read(addr, size uint32, withChecksum bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := size
	if withChecksum {
		total += ChecksumBytes
	}
	if err := checkRange(addr, total, s.size); err != nil {
		return nil, err
	}

	buf := make([]byte, total)
	if _, err := s.f.ReadAt(buf, int64(addr)); err != nil {
		return nil, fmt.Errorf("nvs: read at %d: %w", addr, err)
	}

	data := buf[:size]
	if withChecksum && buf[size] != Checksum(data) {
		return nil, ErrChecksum
	}
	return data, nil
}

func (s *File) Write(addr uint32, data []byte, withChecksum bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := data
	if withChecksum {
		buf = make([]byte, len(data)+ChecksumBytes)
		copy(buf, data)
		buf[len(data)] = Checksum(data)
	}
	if err := checkRange(addr, uint32(len(buf)), s.size); err != nil {
		return err
	}

	if _, err := s.f.WriteAt(buf, int64(addr)); err != nil {
		return fmt.Errorf("%w: at %d: %v", ErrWriteFailed, addr, err)
	}
	if err := unix.Fsync(int(s.f.Fd())); err != nil {
		return fmt.Errorf("%w: fsync: %v", ErrWriteFailed, err)
	}
	return nil
}

// Close releases the lock and closes the backing file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unix.Flock(int(s.f.Fd()), unix.LOCK_UN)
	return s.f.Close()
}
