package asm_test

import (
	"testing"

	. "github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/vm"
)

// reg returns a register operand token, as the lexer would produce it.
func reg(n int64) Token { return Token{Kind: TokRegister, Int: n, Text: "R"} }

// lit returns a literal operand token.
func lit(v int64) Token { return Token{Kind: TokLiteral, Int: v} }

func TestADD_Immediate(t *testing.T) {
	add := &ADD{}
	if err := add.Parse("add", []Token{reg(0), reg(0), lit(5)}); err != nil {
		t.Fatal(err)
	}

	words, err := add.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0x1025 {
		t.Errorf("want [0x1025], got %#04x", words)
	}
}

func TestAND_ToZero(t *testing.T) {
	and := &AND{}
	if err := and.Parse("and", []Token{reg(1), reg(1), lit(0)}); err != nil {
		t.Fatal(err)
	}

	words, err := and.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0x5260 {
		t.Errorf("want [0x5260], got %#04x", words)
	}
}

func TestADD_ImmediateOutOfRange(t *testing.T) {
	add := &ADD{}
	if err := add.Parse("add", []Token{reg(0), reg(0), lit(16)}); err != nil {
		t.Fatal(err)
	}

	if _, err := add.Generate(nil, 0x3001); err == nil {
		t.Error("expected literal-range error for imm5 = 16")
	}
}

func TestADD_Register(t *testing.T) {
	add := &ADD{}
	if err := add.Parse("add", []Token{reg(0), reg(1), reg(2)}); err != nil {
		t.Fatal(err)
	}

	words, err := add.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	// 0001 000 001 000 010
	if len(words) != 1 || words[0] != 0x1042 {
		t.Errorf("want [0x1042], got %#04x", words)
	}
}

func TestNOT(t *testing.T) {
	not := &NOT{}
	if err := not.Parse("not", []Token{reg(0), reg(1)}); err != nil {
		t.Fatal(err)
	}

	words, err := not.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0x907f {
		t.Errorf("want [0x907f], got %#04x", words)
	}
}

func TestRET_IsJMP_R7(t *testing.T) {
	ret := &RET{}
	if err := ret.Parse("ret", nil); err != nil {
		t.Fatal(err)
	}

	words, err := ret.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != vm.Word(vm.NewInstruction(vm.JMP, uint16(vm.R7)<<6)) {
		t.Errorf("want RET == JMP R7, got %#04x", words)
	}
}

func TestTRAP_HALT(t *testing.T) {
	trap := &TRAP{}
	if err := trap.Parse("trap", []Token{lit(0x25)}); err != nil {
		t.Fatal(err)
	}

	words, err := trap.Generate(nil, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0xf025 {
		t.Errorf("want [0xf025], got %#04x", words)
	}
}

func TestTRAP_VectorOutOfRange(t *testing.T) {
	trap := &TRAP{}
	if err := trap.Parse("trap", []Token{lit(0x100)}); err != nil {
		t.Fatal(err)
	}

	if _, err := trap.Generate(nil, 0x3001); err == nil {
		t.Error("expected error for 8-bit vector overflow")
	}
}

func TestBR_Label(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("loop", 0x3002)

	br := &BR{}
	cond := Token{Kind: TokCondition, Cond: CondPositive}
	target := Token{Kind: TokLabelRef, Text: "loop"}

	if err := br.Parse("br", []Token{cond, target}); err != nil {
		t.Fatal(err)
	}

	words, err := br.Generate(symbols, 0x3003)
	if err != nil {
		t.Fatal(err)
	}

	// BR P, offset = 0x3002 - 0x3003 = -1 (0x1ff, 9 bits).
	if len(words) != 1 || words[0] != 0x0001<<9|0x1ff {
		t.Errorf("want BR P -1, got %#04x", words)
	}
}

func TestJSR_Label(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("sub", 0x3010)

	jsr := &JSR{}
	if err := jsr.Parse("jsr", []Token{{Kind: TokLabelRef, Text: "sub"}}); err != nil {
		t.Fatal(err)
	}

	words, err := jsr.Generate(symbols, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	wantOffset := uint16(0x3010-0x3001) & (1<<11 - 1)
	want := vm.Word(vm.NewInstruction(vm.JSR, 1<<11|wantOffset))

	if len(words) != 1 || words[0] != want {
		t.Errorf("want %#04x, got %#04x", want, words)
	}
}

func TestLEA_Label(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("msg", 0x3002)

	lea := &LEA{}
	if err := lea.Parse("lea", []Token{reg(0), {Kind: TokLabelRef, Text: "msg"}}); err != nil {
		t.Fatal(err)
	}

	words, err := lea.Generate(symbols, 0x3001)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 {
		t.Fatalf("want 1 word, got %d", len(words))
	}

	// msg at 0x3002, pc 0x3001: offset 1.
	if want := vm.Word(vm.NewInstruction(vm.LEA, 0x001)); words[0] != want {
		t.Errorf("want %#04x, got %#04x", want, words[0])
	}
}

func TestSTRINGZ(t *testing.T) {
	s := &STRINGZ{}
	if err := s.Parse("stringz", []Token{{Kind: TokString, Text: "Hi"}}); err != nil {
		t.Fatal(err)
	}

	words, err := s.Generate(nil, 0x3003)
	if err != nil {
		t.Fatal(err)
	}

	want := []vm.Word{vm.Word('H'), vm.Word('i'), 0}
	if len(words) != len(want) {
		t.Fatalf("want %d words, got %d", len(want), len(words))
	}

	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d: want %#04x, got %#04x", i, want[i], words[i])
		}
	}
}

func TestSTRINGZ_Empty(t *testing.T) {
	s := &STRINGZ{}
	if err := s.Parse("stringz", []Token{{Kind: TokString, Text: ""}}); err != nil {
		t.Fatal(err)
	}

	words, err := s.Generate(nil, 0x3000)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0 {
		t.Errorf("empty .stringz should emit a single zero word, got %#04x", words)
	}
}

func TestFILL_Label(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("msg", 0x3005)

	fill := &FILL{}
	if err := fill.Parse("fill", []Token{{Kind: TokLabelRef, Text: "msg"}}); err != nil {
		t.Fatal(err)
	}

	words, err := fill.Generate(symbols, 0x3000)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 1 || words[0] != 0x3005 {
		t.Errorf("want [0x3005], got %#04x", words)
	}
}

func TestORG_PadsZeroWords(t *testing.T) {
	org := &ORG{Addr: 0x3000, Pad: 3}

	words, err := org.Generate(nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(words) != 3 {
		t.Fatalf("want 3 padding words, got %d", len(words))
	}

	for i, w := range words {
		if w != 0 {
			t.Errorf("padding word %d: want 0, got %#04x", i, w)
		}
	}
}
