package emu

import "errors"

// Error taxonomy. These are sentinel values so callers can compare with
// errors.Is even after a call site has wrapped one with extra context.
var (
	ErrFileRead           = errors.New("could not read object file")
	ErrInvalidMagic       = errors.New("not an object file: bad magic")
	ErrUnsupportedMachine = errors.New("unsupported machine type")
	ErrStrTabMissing      = errors.New("no string table section")
	ErrNoTextSection      = errors.New("no .text section")
	ErrBadUTF8Name        = errors.New("section name is not valid utf-8")
	ErrBadAddress         = errors.New("address outside DRAM")
	ErrIllegalInstruction = errors.New("illegal instruction")
	ErrUnknownSyscall     = errors.New("unknown syscall")
)
