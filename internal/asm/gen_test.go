package asm_test

import (
	"testing"

	. "github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/vm"
)

func assemble(t *testing.T, src string) vm.ObjectCode {
	t.Helper()

	obj, err := Assemble(t.Name(), src)
	if err != nil {
		t.Fatalf("assemble: %s", err)
	}

	return obj
}

func TestAssemble_ADDImmediate(t *testing.T) {
	obj := assemble(t, ".org #x3000\nadd %r0 %r0 #5\n")

	// .org pads to word 0x3000, then the one instruction word.
	if len(obj.Code) != 0x3001 || obj.Code[0x3000] != 0x1025 {
		t.Errorf("want word 0x1025 at 0x3000, got %d words", len(obj.Code))
	}
}

func TestAssemble_CountedLoop(t *testing.T) {
	src := `.org #x3000
and %r5 %r5 #0
add %r5 %r5 #5
$loop: add %r0 %r0 #2
add %r5 %r5 #-1
br p $loop
trap #x25
`
	obj := assemble(t, src)

	// .org pads to word 0x3000, then 6 instruction words.
	if len(obj.Code) != 0x3000+6 {
		t.Fatalf("want %d words, got %d", 0x3000+6, len(obj.Code))
	}

	machine := vm.New()
	machine.PC = vm.ProgramCounter(0x3000)
	machine.REG[vm.R0] = 0 // vm.New seeds R0 with 0xffff; the loop counts up from zero.

	loader := vm.NewLoader(machine)
	if _, err := loader.Load(obj); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		if !machine.MCR.Running() {
			break
		}

		if err := machine.Step(); err != nil {
			t.Fatal(err)
		}
	}

	if machine.REG[vm.R0] != 10 {
		t.Errorf("want R0 = 10, got %d", machine.REG[vm.R0])
	}

	if machine.REG[vm.R5] != 0 {
		t.Errorf("want R5 = 0, got %d", machine.REG[vm.R5])
	}

	if machine.PSR.Cond() != vm.ConditionZero {
		t.Errorf("want Z=1, got %s", machine.PSR.Cond())
	}
}

func TestAssemble_LEALabel(t *testing.T) {
	src := `.org #x3000
$msg: .stringz "Hi"
lea %r0 $msg
`
	obj := assemble(t, src)

	machine := vm.New()
	loader := vm.NewLoader(machine)
	if _, err := loader.Load(obj); err != nil {
		t.Fatal(err)
	}

	// "Hi"+NUL occupies 0x3000..0x3002; LEA itself is the word at 0x3003.
	machine.PC = vm.ProgramCounter(0x3003)

	if err := machine.Step(); err != nil {
		t.Fatal(err)
	}

	msgAddr := vm.Word(0x3000)
	if machine.REG[vm.R0] != vm.Register(msgAddr) {
		t.Errorf("want R0 = %s, got %#04x", msgAddr, machine.REG[vm.R0])
	}

	if obj.Code[0x3000] != vm.Word('H') || obj.Code[0x3001] != vm.Word('i') || obj.Code[0x3002] != 0 {
		t.Errorf("want \"Hi\"+NUL at 0x3000, got %#04x", obj.Code[0x3000:0x3003])
	}
}

func TestAssemble_TrapHalt(t *testing.T) {
	obj := assemble(t, ".org #x3000\ntrap #x25\n")

	if len(obj.Code) != 0x3001 || obj.Code[0x3000] != 0xf025 {
		t.Fatalf("want word 0xf025 at 0x3000, got %#04x", obj.Code)
	}

	machine := vm.New()
	machine.PC = vm.ProgramCounter(0x3000)

	loader := vm.NewLoader(machine)
	if _, err := loader.Load(obj); err != nil {
		t.Fatal(err)
	}

	if err := machine.Step(); err != nil {
		t.Fatal(err)
	}

	if machine.MCR.Running() {
		t.Error("expected MCR cleared after HALT")
	}
}

func TestAssemble_JSRAndRET(t *testing.T) {
	src := `.org #x3000
jsr $sub
trap #x25
$sub: add %r0 %r0 #1
ret
`
	obj := assemble(t, src)

	machine := vm.New()
	machine.PC = vm.ProgramCounter(0x3000)
	machine.REG[vm.R0] = 0 // vm.New seeds R0 with 0xffff; the subroutine adds 1 to zero.

	loader := vm.NewLoader(machine)
	if _, err := loader.Load(obj); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		if !machine.MCR.Running() {
			break
		}

		if err := machine.Step(); err != nil {
			t.Fatal(err)
		}
	}

	if machine.REG[vm.R0] != 1 {
		t.Errorf("want R0 = 1, got %d", machine.REG[vm.R0])
	}

	if machine.REG[vm.R7] != 0x3001 {
		t.Errorf("want R7 = 0x3001 (return address), got %s", vm.Word(machine.REG[vm.R7]))
	}
}

func TestAssemble_OrgNoPaddingAtCurrentWC(t *testing.T) {
	src := ".org #0\nadd %r0 %r0 #1\n.org #1\nadd %r1 %r1 #1\n"
	obj := assemble(t, src)

	if len(obj.Code) != 2 {
		t.Fatalf("want 2 words (.org at current wc pads nothing), got %d", len(obj.Code))
	}
}

func TestAssemble_OrgPadsLeadingZeroWords(t *testing.T) {
	obj := assemble(t, ".org #3\nadd %r0 %r0 #1\n")

	if len(obj.Code) != 4 {
		t.Fatalf("want 3 zero words + 1 instruction, got %d words", len(obj.Code))
	}

	for i := 0; i < 3; i++ {
		if obj.Code[i] != 0 {
			t.Errorf("word %d: want 0 padding, got %#04x", i, obj.Code[i])
		}
	}
}

func TestAssemble_DuplicateLabel(t *testing.T) {
	_, err := Assemble(t.Name(), "$x: add %r0 %r0 #1\n$x: add %r0 %r0 #1\n")
	if err == nil {
		t.Error("expected error for duplicate label definition")
	}
}

func TestAssemble_UndefinedLabel(t *testing.T) {
	_, err := Assemble(t.Name(), "br p $nope\n")
	if err == nil {
		t.Error("expected error for reference to undefined label")
	}
}

func TestPass1_SymbolOffsets(t *testing.T) {
	symbols, err := Pass1(t.Name(), "add %r0 %r0 #1\n$here: add %r0 %r0 #1\n")
	if err != nil {
		t.Fatal(err)
	}

	// "here" is defined at word offset 1 (the first instruction occupies word 0).
	offset, err := symbols.Offset("here", 1, vm.OFFSET9)
	if err != nil {
		t.Fatal(err)
	}

	if offset != 0 {
		t.Errorf("want offset 0 (here is exactly at pc), got %#x", offset)
	}
}
