package vm

// mem.go contains the machine's memory controller.

import (
	"errors"
	"fmt"

	"github.com/smoynes/elsie/internal/log"
)

// Memory translates logical addresses to registers, physical memory cells, or memory-mapped
// device registers. Access is mediated through two registers: the address register (MAR) and the
// data register (MDR). Fetch reads the cell MAR points at into MDR; Store writes MDR's value to
// the cell MAR points at.
type Memory struct {
	MAR Register
	MDR Register

	cell    PhysicalMemory
	Devices MMIO

	log *log.Logger
}

// Regions of the address space, in ascending order.
const (
	TrapTableAddr Word = 0x0000 // Trap vector table.
	ISRTableAddr  Word = 0x0100 // Interrupt/exception vector table.
	SystemAddr    Word = 0x0200 // Operating system code and data.
	UserSpaceAddr Word = 0x3000 // User programs.
	IOPageAddr    Word = 0xfe00 // Memory-mapped device registers.
	AddrSpace     Word = 0xffff // Top of the logical address space.
)

// PhysicalMemory backs everything below the I/O page.
type PhysicalMemory [AddrSpace & IOPageAddr]Word

// NewMemory initializes a memory controller.
func NewMemory(psr *ProcessorStatus) Memory {
	return Memory{
		MAR:     0xffff,
		MDR:     0x0000,
		cell:    PhysicalMemory{},
		Devices: *NewMMIO(),
		log:     log.DefaultLogger(),
	}
}

// Fetch loads MDR from the cell addressed by MAR, enforcing access control.
func (mem *Memory) Fetch() error {
	if mem.privileged() {
		return fmt.Errorf("%w: fetch: %w", &MemoryError{Addr: Word(mem.MAR)}, ErrAccessControl)
	}

	if err := mem.load(Word(mem.MAR), &mem.MDR); err != nil {
		return fmt.Errorf("%w: fetch: %w", &MemoryError{Addr: Word(mem.MAR)}, err)
	}

	return nil
}

// Store writes MDR to the cell addressed by MAR, enforcing access control.
func (mem *Memory) Store() error {
	if mem.privileged() {
		return fmt.Errorf("%w: store: %w", &MemoryError{Addr: Word(mem.MAR)}, ErrAccessControl)
	}

	if err := mem.store(Word(mem.MAR), Word(mem.MDR)); err != nil {
		return fmt.Errorf("%w: store: %w", &MemoryError{Addr: Word(mem.MAR)}, err)
	}

	return nil
}

// View returns a copy of physical memory. It is a debugging aid, not part of the data path.
func (mem *Memory) View() PhysicalMemory {
	var view PhysicalMemory
	copy(view[:], mem.cell[:])

	return view
}

func (mem *Memory) load(addr Word, reg *Register) error {
	if addr >= IOPageAddr {
		r, err := mem.Devices.Load(addr)
		*reg = r

		return err
	}

	*reg = Register(mem.cell[addr])

	return nil
}

func (mem *Memory) store(addr Word, cell Word) error {
	if addr >= IOPageAddr {
		return mem.Devices.Store(addr, Register(cell))
	}

	mem.cell[addr] = cell

	return nil
}

// privileged reports whether the address in MAR requires system privileges, and the processor is
// currently running unprivileged.
func (mem *Memory) privileged() bool {
	if mem.Devices.PSR().Privilege() != PrivilegeUser {
		return false
	}

	addr := Word(mem.MAR)

	return addr < UserSpaceAddr || addr == MCRAddr || addr == PSRAddr
}

// MemoryError reports the address involved in a failed memory access.
type MemoryError struct {
	Addr Word
}

func (me *MemoryError) Error() string { return fmt.Sprintf("%s: %s", ErrMemory, me.Addr) }

func (me *MemoryError) Is(err error) bool {
	if err == ErrMemory { //nolint:errorlint
		return true
	}

	_, ok := err.(*MemoryError)

	return ok
}

var (
	ErrMemory        = errors.New("memory error")
	ErrAccessControl = errors.New("access control violation")
)
