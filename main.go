package main

import (
	"flag"
	"fmt"
	"os"

	"rv64emu/emu"
)

var (
	traceExec = flag.Bool("trace", false, "print pc/word before executing each instruction")
)

func init() {
	flag.Parse()
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: rv64emu [-trace] <object file>")
}

func main() {
	args := os.Args[len(os.Args)-flag.NArg():]
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", emu.ErrFileRead, err)
		os.Exit(1)
	}

	m := emu.NewMachine(os.Stdout)

	if *traceExec {
		m.Interp.Trace = func(pc uint32, word uint32) {
			fmt.Fprintf(os.Stderr, "pc=0x%08x word=0x%08x\n", pc, word)
		}
	}

	if err := m.Load(data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := m.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "fault at pc=0x%08x: %v\n", m.CPU.PC, err)
		os.Exit(1)
	}
}
