package vm

// ops.go defines the concrete CPU operations and their semantics.

import (
	"errors"
	"fmt"
	"runtime"
)

// --- BR ---

type br struct{ mo }

func (o *br) Execute(cpu *LC3) error {
	cond := Condition(o.ir.Cond())
	set := Condition(cpu.PSR & StatusCondition)

	if cond&set == 0 {
		return nil
	}

	offset := o.ir.Offset(OFFSET9)
	cpu.PC = ProgramCounter(Word(cpu.PC) + offset)

	return nil
}

// --- ADD ---

type add struct{ mo }

func (o *add) Execute(cpu *LC3) error {
	sum := Word(cpu.REG[o.ir.SR1()]) + Word(cpu.REG[o.ir.SR2()])
	cpu.REG[o.ir.DR()] = Register(sum)
	cpu.PSR.Set(sum)

	return nil
}

type addImm struct{ mo }

func (o *addImm) Execute(cpu *LC3) error {
	sum := Word(cpu.REG[o.ir.SR1()]) + o.ir.Literal()
	cpu.REG[o.ir.DR()] = Register(sum)
	cpu.PSR.Set(sum)

	return nil
}

// --- AND ---

type and struct{ mo }

func (o *and) Execute(cpu *LC3) error {
	result := Word(cpu.REG[o.ir.SR1()]) & Word(cpu.REG[o.ir.SR2()])
	cpu.REG[o.ir.DR()] = Register(result)
	cpu.PSR.Set(result)

	return nil
}

type andImm struct{ mo }

func (o *andImm) Execute(cpu *LC3) error {
	result := Word(cpu.REG[o.ir.SR1()]) & o.ir.Literal()
	cpu.REG[o.ir.DR()] = Register(result)
	cpu.PSR.Set(result)

	return nil
}

// --- NOT ---

type not struct{ mo }

func (o *not) Execute(cpu *LC3) error {
	result := ^Word(cpu.REG[o.ir.SR1()])
	cpu.REG[o.ir.DR()] = Register(result)
	cpu.PSR.Set(result)

	return nil
}

// --- LD ---

type ld struct{ mo }

func (o *ld) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET9)
	cpu.Mem.MAR = Register(Word(cpu.PC) + offset)
}

func (o *ld) FetchOperands(cpu *LC3) error {
	if err := cpu.Mem.Fetch(); err != nil {
		return withACV(cpu, err)
	}

	cpu.REG[o.ir.DR()] = cpu.Mem.MDR
	cpu.PSR.Set(Word(cpu.Mem.MDR))

	return nil
}

// withACV wraps a memory error from an address-control violation as an *interrupt Step can
// recognize and dispatch, or returns err unchanged if it is some other failure.
func withACV(cpu *LC3, err error) error {
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrAccessControl) {
		return err
	}

	a := newACV(cpu.PC, cpu.PSR)

	return fmt.Errorf("%w: %w", a.interrupt, err)
}

// --- LDI ---

type ldi struct{ mo }

func (o *ldi) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET9)
	cpu.Mem.MAR = Register(Word(cpu.PC) + offset)
}

func (o *ldi) FetchOperands(cpu *LC3) error {
	if err := cpu.Mem.Fetch(); err != nil {
		return withACV(cpu, err)
	}

	cpu.Mem.MAR = cpu.Mem.MDR

	if err := cpu.Mem.Fetch(); err != nil {
		return withACV(cpu, err)
	}

	cpu.REG[o.ir.DR()] = cpu.Mem.MDR
	cpu.PSR.Set(Word(cpu.Mem.MDR))

	return nil
}

// --- LDR ---

type ldr struct{ mo }

func (o *ldr) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET6)
	cpu.Mem.MAR = Register(Word(cpu.REG[o.ir.SR1()]) + offset)
}

func (o *ldr) FetchOperands(cpu *LC3) error {
	if err := cpu.Mem.Fetch(); err != nil {
		return withACV(cpu, err)
	}

	cpu.REG[o.ir.DR()] = cpu.Mem.MDR
	cpu.PSR.Set(Word(cpu.Mem.MDR))

	return nil
}

// --- LEA ---
//
// LEA loads a computed address into DR. The original implementation this machine is based on
// also sets condition codes from the loaded address, which is not standard LC-3 behavior but is
// preserved here deliberately (see DESIGN.md).

type lea struct{ mo }

func (o *lea) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET9)
	cpu.Mem.MAR = Register(Word(cpu.PC) + offset)
}

func (o *lea) Execute(cpu *LC3) error {
	result := Word(cpu.Mem.MAR)
	cpu.REG[o.ir.DR()] = Register(result)
	cpu.PSR.Set(result)

	return nil
}

// --- ST ---

type st struct{ mo }

func (o *st) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET9)
	cpu.Mem.MAR = Register(Word(cpu.PC) + offset)
}

func (o *st) StoreResult(cpu *LC3) error {
	cpu.Mem.MDR = cpu.REG[o.ir.DR()]

	return withACV(cpu, cpu.Mem.Store())
}

// --- STI ---

type sti struct{ mo }

func (o *sti) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET9)
	cpu.Mem.MAR = Register(Word(cpu.PC) + offset)
}

func (o *sti) FetchOperands(cpu *LC3) error {
	if err := cpu.Mem.Fetch(); err != nil {
		return withACV(cpu, err)
	}

	cpu.Mem.MAR = cpu.Mem.MDR

	return nil
}

func (o *sti) StoreResult(cpu *LC3) error {
	cpu.Mem.MDR = cpu.REG[o.ir.DR()]

	return withACV(cpu, cpu.Mem.Store())
}

// --- STR ---

type str struct{ mo }

func (o *str) EvalAddress(cpu *LC3) {
	offset := o.ir.Offset(OFFSET6)
	cpu.Mem.MAR = Register(Word(cpu.REG[o.ir.SR1()]) + offset)
}

func (o *str) StoreResult(cpu *LC3) error {
	cpu.Mem.MDR = cpu.REG[o.ir.DR()]

	return withACV(cpu, cpu.Mem.Store())
}

// --- JMP / RET ---

type jmp struct{ mo }

func (o *jmp) Execute(cpu *LC3) error {
	cpu.PC = ProgramCounter(cpu.REG[o.ir.SR1()])

	return nil
}

// --- JSR / JSRR ---

type jsr struct{ mo }

func (o *jsr) Execute(cpu *LC3) error {
	offset := o.ir.Offset(OFFSET11)
	cpu.REG[RETP] = Register(cpu.PC)
	cpu.PC = ProgramCounter(Word(cpu.PC) + offset)

	return nil
}

type jsrr struct{ mo }

func (o *jsrr) Execute(cpu *LC3) error {
	target := cpu.REG[o.ir.SR1()]
	cpu.REG[RETP] = Register(cpu.PC)
	cpu.PC = ProgramCounter(target)

	return nil
}

// --- TRAP ---

type trap struct{ mo }

func (o *trap) Execute(cpu *LC3) error {
	vec := o.ir.Vector()

	switch Word(vec) {
	case TrapGETC:
		cpu.REG[R0] = Register(cpu.readKBD())

		return nil
	case TrapOUT:
		cpu.writeDisplay(Word(cpu.REG[R0]))

		return nil
	case TrapPUTS:
		return cpu.writeString(Word(cpu.REG[R0]))
	case TrapIN:
		cpu.writeDisplay('?')
		ch := cpu.readKBD()
		cpu.writeDisplay(ch)
		cpu.REG[R0] = Register(ch)

		return nil
	case TrapHALT:
		cpu.MCR &^= ControlRunning

		return nil
	default:
		fault := newTrapFault(vec, cpu.PC, cpu.PSR)

		return fault.interrupt
	}
}

// readKBD blocks, polling the keyboard device, until a key is ready, then returns it.
func (cpu *LC3) readKBD() Word {
	for {
		if v, err := cpu.Mem.Devices.Load(KBSRAddr); err == nil && Register(v)&KeyboardReady != 0 {
			v, _ := cpu.Mem.Devices.Load(KBDRAddr)

			return Word(v)
		}

		runtime.Gosched()
	}
}

func (cpu *LC3) writeDisplay(ch Word) {
	_ = cpu.Mem.Devices.Store(DDRAddr, Register(ch))
}

func (cpu *LC3) writeString(addr Word) error {
	for {
		if err := cpu.Mem.load(addr, &cpu.Mem.MDR); err != nil {
			return err
		}

		if cpu.Mem.MDR == 0 {
			return nil
		}

		cpu.writeDisplay(Word(cpu.Mem.MDR))
		addr++
	}
}

// --- RTI ---

type rti struct{ mo }

func (o *rti) Execute(cpu *LC3) error {
	if cpu.PSR.Privilege() == PrivilegeUser {
		p := newPMV(cpu.PC, cpu.PSR)

		return p.interrupt
	}

	if err := cpu.PopStack(); err != nil {
		return fmt.Errorf("rti: pop pc: %w", err)
	}

	cpu.PC = ProgramCounter(cpu.Mem.MDR)

	if err := cpu.PopStack(); err != nil {
		return fmt.Errorf("rti: pop psr: %w", err)
	}

	restored := ProcessorStatus(cpu.Mem.MDR)

	if restored.Privilege() == PrivilegeUser {
		cpu.SSP = Register(cpu.REG[SP])
		cpu.REG[SP] = cpu.USP
	}

	cpu.PSR = restored

	return nil
}

// --- RESV ---

type resv struct{ mo }

func (o *resv) Execute(cpu *LC3) error {
	x := newXOP(cpu.PC, cpu.PSR)

	return x.interrupt
}
