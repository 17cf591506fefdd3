package vm

// vm.go defines the virtual machine and assembles it from smaller parts.

import (
	"fmt"

	"github.com/smoynes/elsie/internal/log"
)

// LC3 is a computer, simulated in software.
type LC3 struct {
	PC  ProgramCounter  // Program counter.
	IR  Instruction     // Instruction register.
	PSR ProcessorStatus // Processor status register.
	MCR ControlRegister // Machine control register.
	USP Register        // User stack pointer, saved while running with system privileges.
	SSP Register        // System stack pointer, saved while running with user privileges.

	REG RegisterFile // General-purpose registers.
	INT Interrupt     // Interrupt controller.
	Mem Memory        // Memory controller.

	log *log.Logger
}

// An OptionFn configures a machine during construction. It is called twice: once during early
// initialization, before any device is mapped, and once during late initialization, after devices
// are mapped and privileges have been dropped to user mode. The late argument distinguishes the
// two calls.
type OptionFn func(cpu *LC3, late bool) error

// New creates and initializes a machine, ready to load a program and run.
func New(opts ...OptionFn) *LC3 {
	cpu := LC3{log: log.DefaultLogger()}
	cpu.initializeRegisters()
	cpu.Mem = NewMemory(&cpu.PSR)

	for _, fn := range opts {
		if err := fn(&cpu, false); err != nil {
			cpu.log.Error("init error", "err", err)
		}
	}

	kbd := NewKeyboard()
	display := NewDisplay()
	driver := NewDisplayDriver(display)

	devices := map[Word]any{
		MCRAddr:  &cpu.MCR,
		PSRAddr:  &cpu.PSR,
		KBSRAddr: kbd,
		KBDRAddr: kbd,
		DSRAddr:  driver,
		DDRAddr:  driver,
	}

	if err := cpu.Mem.Devices.Map(devices); err != nil {
		cpu.log.Error("map error", "err", err)
	}

	kbd.Init(&cpu, nil)
	driver.Init(&cpu, []Word{DSRAddr, DDRAddr})

	// Drop to user privileges; the machine starts running unprivileged user programs.
	cpu.PSR &^= StatusPrivilege
	cpu.PSR |= StatusUser
	cpu.REG[SP] = cpu.USP

	for _, fn := range opts {
		if err := fn(&cpu, true); err != nil {
			cpu.log.Error("init error", "err", err)
		}
	}

	return &cpu
}

func (cpu *LC3) initializeRegisters() {
	cpu.PSR = StatusSystem | StatusNormal | StatusZero
	cpu.PC = ProgramCounter(UserSpaceAddr)
	cpu.USP = Register(IOPageAddr)
	cpu.SSP = Register(UserSpaceAddr)
	cpu.MCR = ControlRunning

	copy(cpu.REG[:], []Register{
		0xffff, 0x0000, 0xfff0, 0xf000,
		0xff00, 0x0f00, Register(cpu.SSP), 0x00f0,
	})
}

func (cpu *LC3) String() string {
	return fmt.Sprintf("PC: %s IR: %s\nPSR: %s\nUSP: %s SSP: %s MCR: %s\nMAR: %s MDR: %s\n",
		cpu.PC, cpu.IR, cpu.PSR, cpu.USP, cpu.SSP, cpu.MCR, cpu.Mem.MAR, cpu.Mem.MDR)
}

// PushStack pushes a word onto the current stack, pointed at by R6.
func (cpu *LC3) PushStack(w Word) error {
	cpu.REG[SP]--
	cpu.Mem.MAR = cpu.REG[SP]
	cpu.Mem.MDR = Register(w)

	return cpu.Mem.Store()
}

// PopStack pops a word off the current stack into MDR.
func (cpu *LC3) PopStack() error {
	cpu.Mem.MAR = cpu.REG[SP]
	cpu.REG[SP]++

	return cpu.Mem.Fetch()
}

// WithSystemPrivileges sets the privilege bit to system during late initialization, letting an
// option function or test harness touch privileged memory after construction.
func WithSystemPrivileges() OptionFn {
	return func(cpu *LC3, late bool) error {
		if late {
			cpu.PSR &^= StatusPrivilege
			cpu.PSR |= StatusSystem
		}

		return nil
	}
}
