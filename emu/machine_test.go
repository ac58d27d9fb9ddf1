package emu

import (
	"bytes"
	"os"
	"testing"
)

// buildHelloProgram assembles: li a0,1; li a7,64; la a1,msg; li a2,5; ecall
// as raw RV64I encodings, with the message placed in a trailing .data
// section five bytes long.
func buildHelloProgram(t *testing.T, textAddr, dataAddr uint32) []byte {
	t.Helper()

	var text []byte
	emit := func(w uint32) {
		b := make([]byte, 4)
		b[0] = byte(w)
		b[1] = byte(w >> 8)
		b[2] = byte(w >> 16)
		b[3] = byte(w >> 24)
		text = append(text, b...)
	}

	emit(encodeI(opOpImm, RegA0, 0, 0, 1))                            // addi a0, x0, 1
	emit(encodeI(opOpImm, RegA7, 0, 0, 64))                           // addi a7, x0, 64
	emit(encodeU(opLUI, RegA1, dataAddr&0xFFFFF000))                  // lui a1, hi(dataAddr)
	emit(encodeI(opOpImm, RegA1, 0, RegA1, int32(dataAddr&0xFFF)))    // addi a1, a1, lo(dataAddr)
	emit(encodeI(opOpImm, RegA2, 0, 0, 5))                            // addi a2, x0, 5
	emit(opSystem)                                                    // ecall

	return buildELF64(t, text, []byte("HELLO"), textAddr, dataAddr, textAddr)
}

func TestMachineRunsHelloProgram(t *testing.T) {
	raw := buildHelloProgram(t, 0x1000, 0x2000)

	r, w, err := os.Pipe()
	assert(t, err == nil, "pipe: %v", err)

	m := NewMachine(w)
	assert(t, m.Load(raw) == nil, "Load failed")
	assert(t, m.State == StateLoaded, "state = %v, want loaded", m.State)

	assert(t, m.CPU.Get(RegSP) == uint64(m.Mem.Len()), "sp not initialized to |DRAM|")
	assert(t, m.CPU.Get(RegGP) == 0x2000, "gp = 0x%x, want 0x2000", m.CPU.Get(RegGP))
	assert(t, m.CPU.PC == 0x1000, "pc = 0x%x, want 0x1000", m.CPU.PC)

	err = m.Run()
	w.Close()

	var buf bytes.Buffer
	buf.ReadFrom(r)

	assert(t, err == nil, "Run failed: %v", err)
	assert(t, m.State == StateHalted, "state = %v, want halted", m.State)
	assert(t, buf.String() == "HELLO", "stdout = %q, want %q", buf.String(), "HELLO")
}

func TestMachineFaultsOnBadTextSection(t *testing.T) {
	raw := buildELF64(t, []byte{0, 0, 0, 0}, nil, 0x1000, 0, 0x1000)
	sh0 := int(readUint64(raw, 40))
	writeUint32(raw, sh0, 13) // rename .text out of existence

	m := NewMachine(os.Stdout)
	err := m.Load(raw)
	assert(t, err != nil, "expected Load to fail on missing .text")
}

func readUint64(b []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[off+i]) << (8 * i)
	}
	return v
}

func writeUint32(b []byte, off int, v uint32) {
	for i := 0; i < 4; i++ {
		b[off+i] = byte(v >> (8 * i))
	}
}
