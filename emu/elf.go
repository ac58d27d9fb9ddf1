package emu

import (
	"encoding/binary"
	"fmt"
	"os"
	"unicode/utf8"
)

// Section header types this loader cares about.
const (
	shtNull    = 0
	shtProgBit = 1
	shtStrTab  = 3
)

// Class is the object file's address width.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Endianness is the object file's byte order.
type Endianness uint8

const (
	LittleEndian Endianness = 1
	BigEndian    Endianness = 2
)

// riscVMachine is the e_machine value for RISC-V; 0 is accepted with a
// warning (unspecified architecture), anything else is rejected.
const riscVMachine = 0xF3

// FileHeader holds the parsed fields of the object file header.
type FileHeader struct {
	Class     Class
	Data      Endianness
	ABI       byte
	Type      uint16
	Machine   uint16
	Entry     uint64
	PHOff     uint64
	PHEntSize uint16
	PHNum     uint16
	SHOff     uint64
	SHEntSize uint16
	SHNum     uint16
	SHStrNdx  uint16
}

// ProgramHeader is one entry of the program header table. It is purely
// informational here: the loader never maps segments by it, text and
// data placement is driven entirely by section headers.
type ProgramHeader struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

// Readable, Writable and Executable decode the R/W/X bits of Flags.
func (p ProgramHeader) Readable() bool   { return p.Flags&0x4 != 0 }
func (p ProgramHeader) Writable() bool   { return p.Flags&0x2 != 0 }
func (p ProgramHeader) Executable() bool { return p.Flags&0x1 != 0 }

// SectionHeader is one entry of the section header table, with its name
// already resolved from the string table.
type SectionHeader struct {
	NameIndex uint32
	Name      string
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

// ObjectFile is the fully parsed object file: header, program headers and
// named section headers, plus the raw file bytes section contents are
// sliced out of.
type ObjectFile struct {
	Header         FileHeader
	ProgramHeaders []ProgramHeader
	SectionHeaders []SectionHeader

	raw []byte
}

// Parse validates the object file header and walks the program and
// section header tables, resolving section names via the string table.
func Parse(data []byte) (*ObjectFile, error) {
	if len(data) < 20 || data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return nil, ErrInvalidMagic
	}

	class := Class(data[4])
	dataEnc := Endianness(data[5])
	abi := data[7]
	objType := binary.LittleEndian.Uint16(data[16:18])
	machine := binary.LittleEndian.Uint16(data[18:20])

	if machine != 0 && machine != riscVMachine {
		return nil, fmt.Errorf("%w: machine=0x%x", ErrUnsupportedMachine, machine)
	}
	// machine == 0 (unspecified) and a class/endianness other than 64-bit
	// little-endian are both accepted with a warning on stderr; callers
	// that care inspect Header.Machine/Class/Data themselves. Only an
	// outright unsupported machine type is refused outright.
	if machine == 0 {
		fmt.Fprintln(os.Stderr, "warning: object file machine type is unspecified (0)")
	}
	if class != Class64 || dataEnc != LittleEndian {
		fmt.Fprintf(os.Stderr, "warning: object file is not 64-bit little-endian (class=%d data=%d)\n", class, dataEnc)
	}

	var hdr FileHeader
	hdr.Class = class
	hdr.Data = dataEnc
	hdr.ABI = abi
	hdr.Type = objType
	hdr.Machine = machine

	var rp int
	if class == Class64 {
		hdr.Entry = binary.LittleEndian.Uint64(data[24:32])
		hdr.PHOff = binary.LittleEndian.Uint64(data[32:40])
		hdr.SHOff = binary.LittleEndian.Uint64(data[40:48])
		rp = 48
	} else {
		hdr.Entry = uint64(binary.LittleEndian.Uint32(data[24:28]))
		hdr.PHOff = uint64(binary.LittleEndian.Uint32(data[28:32]))
		hdr.SHOff = uint64(binary.LittleEndian.Uint32(data[32:36]))
		rp = 36
	}
	// rp points at e_flags (4 bytes, skipped). What follows is six
	// consecutive uint16s regardless of class: e_ehsize, e_phentsize,
	// e_phnum, e_shentsize, e_shnum, e_shstrndx. e_ehsize itself is never
	// read since nothing here depends on the declared header size.
	hdr.PHEntSize = binary.LittleEndian.Uint16(data[rp+6 : rp+8])
	hdr.PHNum = binary.LittleEndian.Uint16(data[rp+8 : rp+10])
	hdr.SHEntSize = binary.LittleEndian.Uint16(data[rp+10 : rp+12])
	hdr.SHNum = binary.LittleEndian.Uint16(data[rp+12 : rp+14])
	hdr.SHStrNdx = binary.LittleEndian.Uint16(data[rp+14 : rp+16])

	of := &ObjectFile{Header: hdr, raw: data}

	for i := 0; i < int(hdr.PHNum); i++ {
		off := int(hdr.PHOff) + i*int(hdr.PHEntSize)
		of.ProgramHeaders = append(of.ProgramHeaders, parseProgramHeader(data, off, class))
	}

	for i := 0; i < int(hdr.SHNum); i++ {
		off := int(hdr.SHOff) + i*int(hdr.SHEntSize)
		of.SectionHeaders = append(of.SectionHeaders, parseSectionHeader(data, off, class))
	}

	strtab, err := of.findStringTable()
	if err != nil {
		return nil, err
	}
	for i := range of.SectionHeaders {
		name, err := resolveName(data, strtab, of.SectionHeaders[i].NameIndex)
		if err != nil {
			return nil, err
		}
		of.SectionHeaders[i].Name = name
	}

	return of, nil
}

// parseProgramHeader reads one program header table entry. The R/W/X
// flags are a single 4-byte field at byte offset 8 within a 64-bit entry
// and byte offset 24 within a 32-bit entry, decoded with bit 0 = X,
// bit 1 = W, bit 2 = R. The 32-bit layout matches the conventional
// Elf32_Phdr; the 64-bit layout does not match Elf64_Phdr (which puts
// flags at offset 4) and instead reserves 4 bytes after Type before
// Flags to hold it at offset 8.
func parseProgramHeader(data []byte, off int, class Class) ProgramHeader {
	var ph ProgramHeader
	if class == Class64 {
		ph.Type = binary.LittleEndian.Uint32(data[off : off+4])
		ph.Flags = binary.LittleEndian.Uint32(data[off+8 : off+12])
		ph.Offset = binary.LittleEndian.Uint64(data[off+16 : off+24])
		ph.VAddr = binary.LittleEndian.Uint64(data[off+24 : off+32])
		ph.PAddr = binary.LittleEndian.Uint64(data[off+32 : off+40])
		ph.FileSize = binary.LittleEndian.Uint64(data[off+40 : off+48])
		ph.MemSize = binary.LittleEndian.Uint64(data[off+48 : off+56])
		ph.Align = binary.LittleEndian.Uint64(data[off+56 : off+64])
	} else {
		ph.Type = binary.LittleEndian.Uint32(data[off : off+4])
		ph.Offset = uint64(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		ph.VAddr = uint64(binary.LittleEndian.Uint32(data[off+8 : off+12]))
		ph.PAddr = uint64(binary.LittleEndian.Uint32(data[off+12 : off+16]))
		ph.FileSize = uint64(binary.LittleEndian.Uint32(data[off+16 : off+20]))
		ph.MemSize = uint64(binary.LittleEndian.Uint32(data[off+20 : off+24]))
		ph.Flags = binary.LittleEndian.Uint32(data[off+24 : off+28])
		ph.Align = uint64(binary.LittleEndian.Uint32(data[off+28 : off+32]))
	}
	return ph
}

func parseSectionHeader(data []byte, off int, class Class) SectionHeader {
	var sh SectionHeader
	if class == Class64 {
		sh.NameIndex = binary.LittleEndian.Uint32(data[off : off+4])
		sh.Type = binary.LittleEndian.Uint32(data[off+4 : off+8])
		sh.Flags = binary.LittleEndian.Uint64(data[off+8 : off+16])
		sh.Addr = binary.LittleEndian.Uint64(data[off+16 : off+24])
		sh.Offset = binary.LittleEndian.Uint64(data[off+24 : off+32])
		sh.Size = binary.LittleEndian.Uint64(data[off+32 : off+40])
		sh.Link = binary.LittleEndian.Uint32(data[off+40 : off+44])
		sh.Info = binary.LittleEndian.Uint32(data[off+44 : off+48])
		sh.AddrAlign = binary.LittleEndian.Uint64(data[off+48 : off+56])
		sh.EntSize = binary.LittleEndian.Uint64(data[off+56 : off+64])
	} else {
		sh.NameIndex = binary.LittleEndian.Uint32(data[off : off+4])
		sh.Type = binary.LittleEndian.Uint32(data[off+4 : off+8])
		sh.Flags = uint64(binary.LittleEndian.Uint32(data[off+8 : off+12]))
		sh.Addr = uint64(binary.LittleEndian.Uint32(data[off+12 : off+16]))
		sh.Offset = uint64(binary.LittleEndian.Uint32(data[off+16 : off+20]))
		sh.Size = uint64(binary.LittleEndian.Uint32(data[off+20 : off+24]))
		sh.Link = binary.LittleEndian.Uint32(data[off+24 : off+28])
		sh.Info = binary.LittleEndian.Uint32(data[off+28 : off+32])
		sh.AddrAlign = uint64(binary.LittleEndian.Uint32(data[off+32 : off+36]))
		sh.EntSize = uint64(binary.LittleEndian.Uint32(data[off+36 : off+40]))
	}
	return sh
}

// findStringTable locates the section header string table by type: the
// first SHT_STRTAB section, not necessarily the one named by e_shstrndx.
func (of *ObjectFile) findStringTable() (SectionHeader, error) {
	for _, sh := range of.SectionHeaders {
		if sh.Type == shtStrTab {
			return sh, nil
		}
	}
	return SectionHeader{}, ErrStrTabMissing
}

func resolveName(data []byte, strtab SectionHeader, nameIndex uint32) (string, error) {
	start := int(strtab.Offset) + int(nameIndex)
	if start < 0 || start > len(data) {
		return "", fmt.Errorf("%w: name index out of range", ErrBadUTF8Name)
	}
	end := start
	for end < len(data) && data[end] != 0 {
		end++
	}
	name := data[start:end]
	if !utf8.Valid(name) {
		return "", ErrBadUTF8Name
	}
	return string(name), nil
}

// TextSection returns the .text section header. Its absence is fatal.
func (of *ObjectFile) TextSection() (*SectionHeader, error) {
	for i := range of.SectionHeaders {
		if of.SectionHeaders[i].Name == ".text" {
			return &of.SectionHeaders[i], nil
		}
	}
	return nil, ErrNoTextSection
}

// DataSection returns the .data section header, if present.
func (of *ObjectFile) DataSection() (*SectionHeader, bool) {
	for i := range of.SectionHeaders {
		if of.SectionHeaders[i].Name == ".data" {
			return &of.SectionHeaders[i], true
		}
	}
	return nil, false
}

// SectionBytes returns the section's raw file contents.
func (of *ObjectFile) SectionBytes(sh *SectionHeader) []byte {
	return of.raw[sh.Offset : sh.Offset+sh.Size]
}

// Image is the loader's output consumed by the driver: the entry point,
// the .text section's load address and bytes, and an optional .data
// section's load address and bytes.
type Image struct {
	Entry    uint32
	TextBase uint32
	Text     []byte
	HasData  bool
	DataBase uint32
	Data     []byte
}

// Load parses an object file and extracts the pieces the driver needs to
// seed DRAM: the entry point and the .text (required) and .data
// (optional) sections, placed at their section virtual addresses.
func Load(data []byte) (*Image, *ObjectFile, error) {
	of, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	text, err := of.TextSection()
	if err != nil {
		return nil, nil, err
	}

	img := &Image{
		Entry:    uint32(of.Header.Entry),
		TextBase: uint32(text.Addr),
		Text:     of.SectionBytes(text),
	}

	if dataSh, ok := of.DataSection(); ok {
		img.HasData = true
		img.DataBase = uint32(dataSh.Addr)
		img.Data = of.SectionBytes(dataSh)
	}

	return img, of, nil
}
