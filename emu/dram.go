package emu

import (
	"encoding/binary"
	"fmt"
)

// DRAMSize is the size of the flat guest address space: 64 MiB.
const DRAMSize = 64 * 1024 * 1024

// Dram models guest physical memory as a fixed-size, zero-filled byte
// array. All multi-byte accesses are little-endian and unaligned access
// is permitted, matching the RISC-V base ISA.
type Dram struct {
	bytes []byte
}

// NewDram allocates a zero-filled DRAM of the given size.
func NewDram(size int) *Dram {
	return &Dram{bytes: make([]byte, size)}
}

// Len returns the DRAM size in bytes. It never changes over the life of
// the Dram.
func (d *Dram) Len() int {
	return len(d.bytes)
}

func (d *Dram) bounds(addr uint64, width int) error {
	size := uint64(len(d.bytes))
	if addr > size || uint64(width) > size-addr {
		return fmt.Errorf("%w: addr=0x%x width=%d", ErrBadAddress, addr, width)
	}
	return nil
}

// Read8 reads a single byte at addr.
func (d *Dram) Read8(addr uint64) (uint8, error) {
	if err := d.bounds(addr, 1); err != nil {
		return 0, err
	}
	return d.bytes[addr], nil
}

// Read16 reads a little-endian 16-bit value at addr.
func (d *Dram) Read16(addr uint64) (uint16, error) {
	if err := d.bounds(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.bytes[addr:]), nil
}

// Read32 reads a little-endian 32-bit value at addr.
func (d *Dram) Read32(addr uint64) (uint32, error) {
	if err := d.bounds(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.bytes[addr:]), nil
}

// Read64 reads a little-endian 64-bit value at addr.
func (d *Dram) Read64(addr uint64) (uint64, error) {
	if err := d.bounds(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.bytes[addr:]), nil
}

// Write8 writes a single byte at addr.
func (d *Dram) Write8(addr uint64, val uint8) error {
	if err := d.bounds(addr, 1); err != nil {
		return err
	}
	d.bytes[addr] = val
	return nil
}

// Write16 writes a little-endian 16-bit value at addr.
func (d *Dram) Write16(addr uint64, val uint16) error {
	if err := d.bounds(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(d.bytes[addr:], val)
	return nil
}

// Write32 writes a little-endian 32-bit value at addr.
func (d *Dram) Write32(addr uint64, val uint32) error {
	if err := d.bounds(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(d.bytes[addr:], val)
	return nil
}

// Write64 writes a little-endian 64-bit value at addr.
func (d *Dram) Write64(addr uint64, val uint64) error {
	if err := d.bounds(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(d.bytes[addr:], val)
	return nil
}

// Slice returns a contiguous run of bytes [addr, addr+length), used by the
// ECALL write path. The returned slice aliases DRAM; callers must not
// retain it past the current instruction.
func (d *Dram) Slice(addr, length uint64) ([]byte, error) {
	if err := d.bounds(addr, int(length)); err != nil {
		return nil, err
	}
	return d.bytes[addr : addr+length], nil
}

// LoadAt copies data into DRAM starting at addr, failing if any byte of
// the destination range falls outside the DRAM bounds.
func (d *Dram) LoadAt(addr uint64, data []byte) error {
	if err := d.bounds(addr, len(data)); err != nil {
		return err
	}
	copy(d.bytes[addr:], data)
	return nil
}
