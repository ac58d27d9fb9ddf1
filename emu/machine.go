package emu

import (
	"fmt"
	"os"
)

// State is one of the machine's lifecycle states.
type State int

const (
	StateLoaded State = iota
	StateRunning
	StateHalted
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Machine ties together DRAM, the CPU and the interpreter, and drives the
// fetch-execute loop to completion: Loaded -> Running -> Halted|Faulted.
type Machine struct {
	Mem    *Dram
	CPU    *CPU
	Interp *Interp

	State    State
	Err      error
	textBase uint32
	textSize uint32
	steps    uint64
}

// NewMachine allocates a fresh DRAM and CPU and wires an interpreter over
// them, writing ECALL output to out.
func NewMachine(out *os.File) *Machine {
	mem := NewDram(DRAMSize)
	cpu := &CPU{}
	return &Machine{
		Mem:    mem,
		CPU:    cpu,
		Interp: NewInterp(cpu, mem, out),
		State:  StateLoaded,
	}
}

// Load parses the object file, seeds DRAM with its .text and optional
// .data sections, and sets up the initial register state: sp = |DRAM|,
// gp = data_base if a .data section exists (0 otherwise), pc = text_base.
func (m *Machine) Load(objData []byte) error {
	img, _, err := Load(objData)
	if err != nil {
		return err
	}

	if err := m.Mem.LoadAt(uint64(img.TextBase), img.Text); err != nil {
		return fmt.Errorf("loading .text: %w", err)
	}
	if img.HasData {
		if err := m.Mem.LoadAt(uint64(img.DataBase), img.Data); err != nil {
			return fmt.Errorf("loading .data: %w", err)
		}
	}

	// sp starts one past the last valid DRAM byte; the guest's first
	// push (sp -= k) brings it in range before any store.
	m.CPU.Set(RegSP, uint64(m.Mem.Len()))
	if img.HasData {
		m.CPU.Set(RegGP, uint64(img.DataBase))
	} else {
		m.CPU.Set(RegGP, 0)
	}
	m.CPU.PC = img.TextBase

	m.textBase = img.TextBase
	m.textSize = uint32(len(img.Text))
	m.State = StateLoaded
	return nil
}

// Run executes instructions until pc leaves the text span or a fault
// occurs, leaving the machine in StateHalted or StateFaulted.
func (m *Machine) Run() error {
	m.State = StateRunning
	end := m.textBase + m.textSize

	for m.CPU.PC < end {
		if err := m.Interp.Step(); err != nil {
			m.State = StateFaulted
			m.Err = err
			return err
		}
		m.steps++
	}

	m.State = StateHalted
	return nil
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() uint64 {
	return m.steps
}
