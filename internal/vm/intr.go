package vm

// intr.go unifies traps, interrupts and exceptions behind a single dispatch mechanism: each is
// represented as an *interrupt, an error value that Step recognizes and handles by transferring
// control through a vector table instead of simply propagating.

import (
	"fmt"

	"github.com/smoynes/elsie/internal/log"
)

// Vector tables. Each holds NumPL*32 entries but only a handful are used by this implementation.
const (
	TrapTable Word = TrapTableAddr
	ISRTable  Word = ISRTableAddr
)

// Built-in trap vectors, handled natively rather than through an assembled handler.
const (
	TrapGETC Word = 0x20
	TrapOUT  Word = 0x21
	TrapPUTS Word = 0x22
	TrapIN   Word = 0x23
	TrapHALT Word = 0x25
)

// Exception vectors, relative to ISRTable.
const (
	ExceptionPMV Word = 0x00 // Privilege-mode violation: RTI called from user mode.
	ExceptionXOP Word = 0x01 // Illegal opcode (RESV).
	ExceptionACV Word = 0x02 // Access-control violation.
)

// ISR associates a device driver with the vector the interrupt controller dispatches to when the
// device requests service.
type ISR struct {
	vector uint8
	driver interruptSource
}

type interruptSource interface {
	InterruptRequested() bool
}

// Interrupt is the interrupt controller: one slot per priority level, holding at most one pending
// device ISR.
type Interrupt struct {
	idt [NumPL]ISR
	log *log.Logger
}

// Register adds a device's ISR at the given priority level.
func (in *Interrupt) Register(pl Priority, isr ISR) {
	in.idt[pl] = isr
}

// Requested reports the highest-priority pending device interrupt above curr, if any.
func (in *Interrupt) Requested(curr Priority) (uint8, bool) {
	for pl := Priority(NumPL - 1); pl > curr; pl-- {
		isr := in.idt[pl]
		if isr.driver != nil && isr.driver.InterruptRequested() {
			return isr.vector, true
		}
	}

	return 0, false
}

// interrupt is the common representation of a trap, interrupt or exception: push the current
// PSR and PC onto the (possibly newly switched-to) system stack, then load PC from the vector
// table entry at table|vec.
type interrupt struct {
	table Word
	vec   Word
	pc    ProgramCounter
	psr   ProcessorStatus
}

func (in *interrupt) Error() string {
	return fmt.Sprintf("interrupt: table: %s vector: %s", in.table, in.vec)
}

func (in *interrupt) Is(err error) bool {
	_, ok := err.(*interrupt) //nolint:errorlint

	return ok
}

func (in *interrupt) As(target any) bool {
	i, ok := target.(**interrupt)
	if !ok {
		return false
	}

	*i = in

	return true
}

// Handle transfers control to the service routine named by the vector table entry, switching to
// the system stack and saving the interrupted context first.
func (in *interrupt) Handle(cpu *LC3) error {
	psr := cpu.PSR

	if psr.Privilege() == PrivilegeUser {
		cpu.USP = Register(cpu.REG[SP])
		cpu.REG[SP] = cpu.SSP
	}

	cpu.PSR &^= StatusPrivilege
	cpu.PSR |= StatusSystem

	if err := cpu.PushStack(Word(psr)); err != nil {
		return fmt.Errorf("interrupt: push psr: %w", err)
	}

	if err := cpu.PushStack(Word(cpu.PC)); err != nil {
		return fmt.Errorf("interrupt: push pc: %w", err)
	}

	cpu.Mem.MAR = Register(in.table | in.vec)
	if err := cpu.Mem.Fetch(); err != nil {
		return fmt.Errorf("interrupt: fetch vector: %w", err)
	}

	cpu.PC = ProgramCounter(cpu.Mem.MDR)

	return nil
}

// acv is a memory access-control violation.
type acv struct{ *interrupt }

func newACV(pc ProgramCounter, psr ProcessorStatus) *acv {
	return &acv{&interrupt{table: ISRTable, vec: ExceptionACV, pc: pc, psr: psr}}
}

// pmv is a privilege-mode violation: RTI called while running with user privileges.
type pmv struct{ *interrupt }

func newPMV(pc ProgramCounter, psr ProcessorStatus) *pmv {
	return &pmv{&interrupt{table: ISRTable, vec: ExceptionPMV, pc: pc, psr: psr}}
}

// xop is an illegal-opcode exception, raised by the reserved opcode.
type xop struct{ *interrupt }

func newXOP(pc ProgramCounter, psr ProcessorStatus) *xop {
	return &xop{&interrupt{table: ISRTable, vec: ExceptionXOP, pc: pc, psr: psr}}
}

// trapFault is raised by TRAP for any vector not handled natively.
type trapFault struct{ *interrupt }

func newTrapFault(vec uint8, pc ProgramCounter, psr ProcessorStatus) *trapFault {
	return &trapFault{&interrupt{table: TrapTable, vec: Word(vec), pc: pc, psr: psr}}
}
