package vm

// exec.go implements the CPU's instruction cycle: fetch, decode, evaluate address, fetch
// operands, execute, store result. Each stage is an optional interface a concrete operation type
// may implement; Step runs whichever stages the decoded operation supports.

import (
	"context"
	"errors"
	"fmt"
)

// ErrHalted is returned by Run when the machine control register's run bit is cleared.
var ErrHalted = errors.New("halted")

// Run executes instructions until the machine halts, the context is cancelled, or a
// non-recoverable error occurs.
func (cpu *LC3) Run(ctx context.Context) error {
	for cpu.MCR&ControlRunning != 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := cpu.serviceInterrupts(); err != nil {
			return fmt.Errorf("run: %w", err)
		}

		if err := cpu.Step(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	return ErrHalted
}

// serviceInterrupts checks for a pending device interrupt above the current priority and, if
// found, dispatches it exactly like a trap or exception.
func (cpu *LC3) serviceInterrupts() error {
	vec, ok := cpu.INT.Requested(cpu.PSR.Priority())
	if !ok {
		return nil
	}

	in := &interrupt{table: ISRTable, vec: Word(vec), pc: cpu.PC, psr: cpu.PSR}

	return in.Handle(cpu)
}

// Step executes a single instruction cycle.
func (cpu *LC3) Step() error {
	if err := cpu.Fetch(); err != nil {
		return cpu.fault(err)
	}

	op := cpu.Decode()

	if addr, ok := op.(addressable); ok {
		addr.EvalAddress(cpu)
	}

	if fetch, ok := op.(fetchable); ok {
		if err := fetch.FetchOperands(cpu); err != nil {
			return cpu.fault(err)
		}
	}

	if exec, ok := op.(executable); ok {
		if err := exec.Execute(cpu); err != nil {
			return cpu.fault(err)
		}
	}

	if store, ok := op.(storable); ok {
		if err := store.StoreResult(cpu); err != nil {
			return cpu.fault(err)
		}
	}

	return nil
}

// fault recognizes an *interrupt-shaped error and handles it by transferring control; any other
// error is returned unchanged for Run to propagate.
func (cpu *LC3) fault(err error) error {
	var in *interrupt
	if errors.As(err, &in) {
		return in.Handle(cpu)
	}

	return err
}

// Fetch loads IR from the address in PC and increments PC.
func (cpu *LC3) Fetch() error {
	cpu.Mem.MAR = Register(cpu.PC)
	cpu.PC++

	if err := cpu.Mem.Fetch(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	cpu.IR = Instruction(cpu.Mem.MDR)

	return nil
}

// Decode builds the concrete operation the currently fetched instruction represents.
func (cpu *LC3) Decode() operation {
	ir := cpu.IR

	switch ir.Opcode() {
	case BR:
		return &br{ir: ir}
	case ADD:
		if ir.Imm() {
			return &addImm{ir: ir}
		}

		return &add{ir: ir}
	case LD:
		return &ld{ir: ir}
	case ST:
		return &st{ir: ir}
	case JSR:
		if ir&0x0800 != 0 {
			return &jsr{ir: ir}
		}

		return &jsrr{ir: ir}
	case AND:
		if ir.Imm() {
			return &andImm{ir: ir}
		}

		return &and{ir: ir}
	case LDR:
		return &ldr{ir: ir}
	case STR:
		return &str{ir: ir}
	case RTI:
		return &rti{ir: ir}
	case NOT:
		return &not{ir: ir}
	case LDI:
		return &ldi{ir: ir}
	case STI:
		return &sti{ir: ir}
	case JMP:
		return &jmp{ir: ir}
	case LEA:
		return &lea{ir: ir}
	case TRAP:
		return &trap{ir: ir}
	case RESV:
		fallthrough
	default:
		return &resv{ir: ir}
	}
}

// operation is the base interface every decoded instruction satisfies.
type operation interface {
	String() string
}

// addressable operations compute an effective address into MAR during the EvalAddress stage.
type addressable interface {
	operation
	EvalAddress(cpu *LC3)
}

// fetchable operations load an operand from memory (or an indirect address) during FetchOperands.
type fetchable interface {
	operation
	FetchOperands(cpu *LC3) error
}

// executable operations perform their computation, possibly setting condition codes.
type executable interface {
	operation
	Execute(cpu *LC3) error
}

// storable operations write a computed result back to memory during StoreResult.
type storable interface {
	operation
	StoreResult(cpu *LC3) error
}

// mo is embedded by every concrete operation for its decoded instruction and a default String.
type mo struct {
	ir Instruction
}

func (m mo) String() string { return m.ir.Opcode().String() }
