// Package nvs models the non-volatile storage collaborator used by the
// odometer plugin: key-addressed byte storage with an integrity footer.
//
// Two backends are provided. Memory is the default for tests and for the
// simulator; File persists to a fixed-size backing file and survives
// restarts.
//
// Copyright (C) 2026  grblHAL contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package nvs

import (
	"errors"
	"fmt"
	"strings"
)

// ChecksumBytes is the size of the integrity footer appended to every
// checksummed transfer.
const ChecksumBytes = 1

// Storage technology tags. Only byte-rewritable media (EEPROM, FRAM)
// support the in-place record rewrites the odometer depends on.
type Type int

const (
	TypeNone Type = iota
	TypeEEPROM
	TypeFRAM
	TypeFlash
)

func (t Type) String() string {
	switch t {
	case TypeEEPROM:
		return "eeprom"
	case TypeFRAM:
		return "fram"
	case TypeFlash:
		return "flash"
	default:
		return "none"
	}
}

// SupportsRewrite reports whether the medium supports byte-level
// random-access rewrite, as opposed to block erase/rewrite.
func (t Type) SupportsRewrite() bool {
	return t == TypeEEPROM || t == TypeFRAM
}

// ParseType parses a storage technology tag from configuration.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return TypeNone, nil
	case "eeprom":
		return TypeEEPROM, nil
	case "fram":
		return TypeFRAM, nil
	case "flash":
		return TypeFlash, nil
	}
	return TypeNone, fmt.Errorf("nvs: unknown storage type %q", s)
}

// Transfer failures callers branch on.
var (
	// ErrChecksum marks a read whose integrity footer did not match.
	ErrChecksum = errors.New("nvs: checksum mismatch")
	// ErrOutOfRange marks a transfer outside the storage area.
	ErrOutOfRange = errors.New("nvs: address out of range")
	// ErrWriteFailed marks a write the backend could not complete.
	ErrWriteFailed = errors.New("nvs: write failed")
)

// IO is the narrow storage interface the odometer consumes.
// With withChecksum set, Write appends a ChecksumBytes footer after the
// data and Read verifies it, failing with ErrChecksum on mismatch.
// Transfers are whole-buffer: a read never observes a partial write.
type IO interface {
	Type() Type
	Size() uint32
	Read(addr, size uint32, withChecksum bool) ([]byte, error)
	Write(addr uint32, data []byte, withChecksum bool) error
}

// Checksum computes the 8-bit rotate-and-add checksum used for the
// integrity footer. The sum is seeded with the data length so that
// erased media (all 0xFF) and zeroed media never verify by accident.
func Checksum(data []byte) byte {
	sum := byte(len(data))
	for _, b := range data {
		sum = (sum << 1) | (sum >> 7)
		sum += b
	}
	return sum
}

// checkRange validates a transfer of size bytes (footer included by the
// caller) starting at addr within a store of the given capacity.
func checkRange(addr, size, capacity uint32) error {
	if addr >= capacity || size > capacity || addr+size > capacity {
		return ErrOutOfRange
	}
	return nil
}
