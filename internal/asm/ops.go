package asm

// ops.go implements parsing and code generation for every mnemonic and directive.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smoynes/elsie/internal/vm"
)

// operandArity is the number of non-condition operand tokens each mnemonic consumes. BR is
// handled specially by nextOperands since it may be preceded by a condition-mask token.
var operandArity = map[string]int{
	"add": 3, "and": 3, "not": 2, "br": 1, "jmp": 1, "jsr": 1, "jsrr": 1, "ret": 0,
	"ld": 2, "ldi": 2, "ldr": 3, "lea": 2, "st": 2, "sti": 2, "str": 3, "rti": 0, "trap": 1,
}

// directiveArity is the number of operand tokens each directive consumes.
var directiveArity = map[string]int{"org": 1, "fill": 1, "stringz": 1}

// newOperation constructs the empty Operation for a mnemonic or directive name.
func newOperation(operator string) (Operation, bool) {
	switch operator {
	case "add":
		return &ADD{}, true
	case "and":
		return &AND{}, true
	case "not":
		return &NOT{}, true
	case "br":
		return &BR{}, true
	case "jmp":
		return &JMP{}, true
	case "ret":
		return &RET{}, true
	case "jsr":
		return &JSR{}, true
	case "jsrr":
		return &JSRR{}, true
	case "ld":
		return &LD{}, true
	case "ldi":
		return &LDI{}, true
	case "ldr":
		return &LDR{}, true
	case "lea":
		return &LEA{}, true
	case "st":
		return &ST{}, true
	case "sti":
		return &STI{}, true
	case "str":
		return &STR{}, true
	case "rti":
		return &RTI{}, true
	case "trap":
		return &TRAP{}, true
	case "org":
		return &ORG{}, true
	case "fill":
		return &FILL{}, true
	case "stringz":
		return &STRINGZ{}, true
	default:
		return nil, false
	}
}

// register converts a register token to a GPR index, failing if tok is not a register.
func register(op string, tok Token) (vm.GPR, error) {
	if tok.Kind != TokRegister {
		return vm.BadGPR, &RegisterError{Op: op, Reg: tok.Text}
	}

	return vm.GPR(tok.Int), nil
}

// literalField validates that val fits a signed field of width bits and returns its masked bits.
func literalField(val int64, width uint8) (uint16, error) {
	lo := -(int64(1) << (width - 1))
	hi := (int64(1) << (width - 1)) - 1

	if val < lo || val > hi {
		return 0, &LiteralRangeError{Literal: strconv.FormatInt(val, 10), Width: width}
	}

	return uint16(val) & uint16(1<<width-1), nil
}

// offsetField resolves an operand token, either a literal or a label reference, to a width-bit
// field, computing the PC-relative offset against pc when it is a label.
func offsetField(symbols SymbolTable, pc vm.Word, width uint8, tok Token) (uint16, error) {
	switch tok.Kind {
	case TokLabelRef:
		return symbols.Offset(tok.Text, pc, width)
	case TokLiteral:
		return literalField(tok.Int, width)
	default:
		return 0, &SyntaxError{Err: fmt.Errorf("%w: expected literal or label, got %s", ErrOperand, tok.Kind)}
	}
}

// BR: Conditional branch.
//
//	br [nzp] ( $label | #offset9 )
//
//	| 0000 | NZP | OFFSET9 |
//	|------+-----+---------|
//	|15  12|11  9|8       0|
type BR struct {
	SourceInfo
	NZP    uint8
	Target Token
}

func (br BR) String() string { return fmt.Sprintf("BR(nzp:%03b)", br.NZP) }

func (br *BR) Parse(_ string, operands []Token) error {
	if len(operands) != 2 || operands[0].Kind != TokCondition {
		return fmt.Errorf("%w: br: expected condition and target", ErrOperand)
	}

	*br = BR{SourceInfo: br.SourceInfo, NZP: operands[0].Cond, Target: operands[1]}

	return nil
}

func (br *BR) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	offset, err := offsetField(symbols, pc, vm.OFFSET9, br.Target)
	if err != nil {
		return nil, fmt.Errorf("br: %w", err)
	}

	code := vm.NewInstruction(vm.BR, uint16(br.NZP)<<9|offset)

	return []vm.Word{vm.Word(code)}, nil
}

// AND: Bitwise AND.
//
//	and %rD %rS1 %rS2
//	and %rD %rS1 #imm5
//
//	| 0101 | DR | SR1 | 0 | 00 | SR2 |  (register mode)
//	| 0101 | DR | SR1 | 1 | IMM5     |  (immediate mode)
type AND struct {
	SourceInfo
	DR, SR1 Token
	SR2     Token // TokRegister for register mode.
	Literal Token // TokLiteral for immediate mode.
	Imm     bool
}

func (and AND) String() string { return fmt.Sprintf("AND(%s, %s, ...)", and.DR.Text, and.SR1.Text) }

func (and *AND) Parse(_ string, operands []Token) error {
	if len(operands) != 3 {
		return fmt.Errorf("%w: and: expected 3 operands", ErrOperand)
	}

	*and = AND{SourceInfo: and.SourceInfo, DR: operands[0], SR1: operands[1]}

	if operands[2].Kind == TokRegister {
		and.SR2 = operands[2]
	} else {
		and.Imm = true
		and.Literal = operands[2]
	}

	return nil
}

func (and *AND) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("and", and.DR)
	if err != nil {
		return nil, err
	}

	sr1, err := register("and", and.SR1)
	if err != nil {
		return nil, err
	}

	bits := uint16(dr)<<9 | uint16(sr1)<<6

	if and.Imm {
		lit, err := literalField(and.Literal.Int, vm.IMM5)
		if err != nil {
			return nil, fmt.Errorf("and: %w", err)
		}

		bits |= 1<<5 | lit
	} else {
		sr2, err := register("and", and.SR2)
		if err != nil {
			return nil, err
		}

		bits |= uint16(sr2)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.AND, bits))}, nil
}

// ADD: Arithmetic addition.
//
//	add %rD %rS1 %rS2
//	add %rD %rS1 #imm5
type ADD struct {
	SourceInfo
	DR, SR1 Token
	SR2     Token
	Literal Token
	Imm     bool
}

func (add ADD) String() string { return fmt.Sprintf("ADD(%s, %s, ...)", add.DR.Text, add.SR1.Text) }

func (add *ADD) Parse(_ string, operands []Token) error {
	if len(operands) != 3 {
		return fmt.Errorf("%w: add: expected 3 operands", ErrOperand)
	}

	*add = ADD{SourceInfo: add.SourceInfo, DR: operands[0], SR1: operands[1]}

	if operands[2].Kind == TokRegister {
		add.SR2 = operands[2]
	} else {
		add.Imm = true
		add.Literal = operands[2]
	}

	return nil
}

func (add *ADD) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("add", add.DR)
	if err != nil {
		return nil, err
	}

	sr1, err := register("add", add.SR1)
	if err != nil {
		return nil, err
	}

	bits := uint16(dr)<<9 | uint16(sr1)<<6

	if add.Imm {
		lit, err := literalField(add.Literal.Int, vm.IMM5)
		if err != nil {
			return nil, fmt.Errorf("add: %w", err)
		}

		bits |= 1<<5 | lit
	} else {
		sr2, err := register("add", add.SR2)
		if err != nil {
			return nil, err
		}

		bits |= uint16(sr2)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.ADD, bits))}, nil
}

// NOT: Bitwise complement.
//
//	not %rD %rS
//
//	| 1001 | DR | SR | 111111 |
type NOT struct {
	SourceInfo
	DR, SR Token
}

func (not NOT) String() string { return fmt.Sprintf("NOT(%s, %s)", not.DR.Text, not.SR.Text) }

func (not *NOT) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: not: expected 2 operands", ErrOperand)
	}

	*not = NOT{SourceInfo: not.SourceInfo, DR: operands[0], SR: operands[1]}

	return nil
}

func (not *NOT) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("not", not.DR)
	if err != nil {
		return nil, err
	}

	sr, err := register("not", not.SR)
	if err != nil {
		return nil, err
	}

	code := vm.NewInstruction(vm.NOT, uint16(dr)<<9|uint16(sr)<<6|0x003f)

	return []vm.Word{vm.Word(code)}, nil
}

// JMP: Unconditional jump through a base register.
//
//	jmp %rBase
//
//	| 1100 | 000 | BaseR | 000000 |
type JMP struct {
	SourceInfo
	Base Token
}

func (jmp JMP) String() string { return fmt.Sprintf("JMP(%s)", jmp.Base.Text) }

func (jmp *JMP) Parse(_ string, operands []Token) error {
	if len(operands) != 1 {
		return fmt.Errorf("%w: jmp: expected 1 operand", ErrOperand)
	}

	*jmp = JMP{SourceInfo: jmp.SourceInfo, Base: operands[0]}

	return nil
}

func (jmp *JMP) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	base, err := register("jmp", jmp.Base)
	if err != nil {
		return nil, err
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.JMP, uint16(base)<<6))}, nil
}

// RET: Return from subroutine; JMP with BaseR = R7.
//
//	ret
type RET struct {
	SourceInfo
}

func (RET) String() string { return "RET" }

func (ret *RET) Parse(_ string, operands []Token) error {
	if len(operands) != 0 {
		return fmt.Errorf("%w: ret: expected no operands", ErrOperand)
	}

	return nil
}

func (ret *RET) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	return []vm.Word{vm.Word(vm.NewInstruction(vm.JMP, uint16(vm.R7)<<6))}, nil
}

// JSR: Jump to subroutine, PC-relative.
//
//	jsr ( $label | #offset11 )
//
//	| 0100 | 1 | OFFSET11 |
type JSR struct {
	SourceInfo
	Target Token
}

func (jsr JSR) String() string { return fmt.Sprintf("JSR(%s)", jsr.Target.Text) }

func (jsr *JSR) Parse(_ string, operands []Token) error {
	if len(operands) != 1 {
		return fmt.Errorf("%w: jsr: expected 1 operand", ErrOperand)
	}

	*jsr = JSR{SourceInfo: jsr.SourceInfo, Target: operands[0]}

	return nil
}

func (jsr *JSR) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	offset, err := offsetField(symbols, pc, vm.OFFSET11, jsr.Target)
	if err != nil {
		return nil, fmt.Errorf("jsr: %w", err)
	}

	code := vm.NewInstruction(vm.JSR, 1<<11|offset)

	return []vm.Word{vm.Word(code)}, nil
}

// JSRR: Jump to subroutine, through a base register.
//
//	jsrr %rBase
//
//	| 0100 | 0 | 00 | BaseR | 000000 |
type JSRR struct {
	SourceInfo
	Base Token
}

func (jsrr JSRR) String() string { return fmt.Sprintf("JSRR(%s)", jsrr.Base.Text) }

func (jsrr *JSRR) Parse(_ string, operands []Token) error {
	if len(operands) != 1 {
		return fmt.Errorf("%w: jsrr: expected 1 operand", ErrOperand)
	}

	*jsrr = JSRR{SourceInfo: jsrr.SourceInfo, Base: operands[0]}

	return nil
}

func (jsrr *JSRR) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	base, err := register("jsrr", jsrr.Base)
	if err != nil {
		return nil, err
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.JSR, uint16(base)<<6))}, nil
}

// LD: Load from memory, PC-relative.
//
//	ld %rD ( $label | #offset9 )
type LD struct {
	SourceInfo
	DR, Target Token
}

func (ld LD) String() string { return fmt.Sprintf("LD(%s, %s)", ld.DR.Text, ld.Target.Text) }

func (ld *LD) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: ld: expected 2 operands", ErrOperand)
	}

	*ld = LD{SourceInfo: ld.SourceInfo, DR: operands[0], Target: operands[1]}

	return nil
}

func (ld *LD) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("ld", ld.DR)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET9, ld.Target)
	if err != nil {
		return nil, fmt.Errorf("ld: %w", err)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.LD, uint16(dr)<<9|offset))}, nil
}

// LDI: Load indirect, PC-relative.
//
//	ldi %rD ( $label | #offset9 )
type LDI struct {
	SourceInfo
	DR, Target Token
}

func (ldi LDI) String() string { return fmt.Sprintf("LDI(%s, %s)", ldi.DR.Text, ldi.Target.Text) }

func (ldi *LDI) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: ldi: expected 2 operands", ErrOperand)
	}

	*ldi = LDI{SourceInfo: ldi.SourceInfo, DR: operands[0], Target: operands[1]}

	return nil
}

func (ldi *LDI) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("ldi", ldi.DR)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET9, ldi.Target)
	if err != nil {
		return nil, fmt.Errorf("ldi: %w", err)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.LDI, uint16(dr)<<9|offset))}, nil
}

// LDR: Load from memory, register-relative.
//
//	ldr %rD %rBase ( $label | #offset6 )
type LDR struct {
	SourceInfo
	DR, Base, Target Token
}

func (ldr LDR) String() string {
	return fmt.Sprintf("LDR(%s, %s, %s)", ldr.DR.Text, ldr.Base.Text, ldr.Target.Text)
}

func (ldr *LDR) Parse(_ string, operands []Token) error {
	if len(operands) != 3 {
		return fmt.Errorf("%w: ldr: expected 3 operands", ErrOperand)
	}

	*ldr = LDR{SourceInfo: ldr.SourceInfo, DR: operands[0], Base: operands[1], Target: operands[2]}

	return nil
}

func (ldr *LDR) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("ldr", ldr.DR)
	if err != nil {
		return nil, err
	}

	base, err := register("ldr", ldr.Base)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET6, ldr.Target)
	if err != nil {
		return nil, fmt.Errorf("ldr: %w", err)
	}

	bits := uint16(dr)<<9 | uint16(base)<<6 | offset

	return []vm.Word{vm.Word(vm.NewInstruction(vm.LDR, bits))}, nil
}

// LEA: Load effective address, PC-relative. Sets condition codes.
//
//	lea %rD ( $label | #offset9 )
type LEA struct {
	SourceInfo
	DR, Target Token
}

func (lea LEA) String() string { return fmt.Sprintf("LEA(%s, %s)", lea.DR.Text, lea.Target.Text) }

func (lea *LEA) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: lea: expected 2 operands", ErrOperand)
	}

	*lea = LEA{SourceInfo: lea.SourceInfo, DR: operands[0], Target: operands[1]}

	return nil
}

func (lea *LEA) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	dr, err := register("lea", lea.DR)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET9, lea.Target)
	if err != nil {
		return nil, fmt.Errorf("lea: %w", err)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.LEA, uint16(dr)<<9|offset))}, nil
}

// ST: Store to memory, PC-relative.
//
//	st %rS ( $label | #offset9 )
type ST struct {
	SourceInfo
	SR, Target Token
}

func (st ST) String() string { return fmt.Sprintf("ST(%s, %s)", st.SR.Text, st.Target.Text) }

func (st *ST) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: st: expected 2 operands", ErrOperand)
	}

	*st = ST{SourceInfo: st.SourceInfo, SR: operands[0], Target: operands[1]}

	return nil
}

func (st *ST) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	sr, err := register("st", st.SR)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET9, st.Target)
	if err != nil {
		return nil, fmt.Errorf("st: %w", err)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.ST, uint16(sr)<<9|offset))}, nil
}

// STI: Store indirect, PC-relative.
//
//	sti %rS ( $label | #offset9 )
type STI struct {
	SourceInfo
	SR, Target Token
}

func (sti STI) String() string { return fmt.Sprintf("STI(%s, %s)", sti.SR.Text, sti.Target.Text) }

func (sti *STI) Parse(_ string, operands []Token) error {
	if len(operands) != 2 {
		return fmt.Errorf("%w: sti: expected 2 operands", ErrOperand)
	}

	*sti = STI{SourceInfo: sti.SourceInfo, SR: operands[0], Target: operands[1]}

	return nil
}

func (sti *STI) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	sr, err := register("sti", sti.SR)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET9, sti.Target)
	if err != nil {
		return nil, fmt.Errorf("sti: %w", err)
	}

	return []vm.Word{vm.Word(vm.NewInstruction(vm.STI, uint16(sr)<<9|offset))}, nil
}

// STR: Store to memory, register-relative.
//
//	str %rS %rBase ( $label | #offset6 )
type STR struct {
	SourceInfo
	SR, Base, Target Token
}

func (str STR) String() string {
	return fmt.Sprintf("STR(%s, %s, %s)", str.SR.Text, str.Base.Text, str.Target.Text)
}

func (str *STR) Parse(_ string, operands []Token) error {
	if len(operands) != 3 {
		return fmt.Errorf("%w: str: expected 3 operands", ErrOperand)
	}

	*str = STR{SourceInfo: str.SourceInfo, SR: operands[0], Base: operands[1], Target: operands[2]}

	return nil
}

func (str *STR) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	sr, err := register("str", str.SR)
	if err != nil {
		return nil, err
	}

	base, err := register("str", str.Base)
	if err != nil {
		return nil, err
	}

	offset, err := offsetField(symbols, pc, vm.OFFSET6, str.Target)
	if err != nil {
		return nil, fmt.Errorf("str: %w", err)
	}

	bits := uint16(sr)<<9 | uint16(base)<<6 | offset

	return []vm.Word{vm.Word(vm.NewInstruction(vm.STR, bits))}, nil
}

// RTI: Return from trap or interrupt.
//
//	rti
type RTI struct {
	SourceInfo
}

func (RTI) String() string { return "RTI" }

func (rti *RTI) Parse(_ string, operands []Token) error {
	if len(operands) != 0 {
		return fmt.Errorf("%w: rti: expected no operands", ErrOperand)
	}

	return nil
}

func (rti *RTI) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	return []vm.Word{vm.Word(vm.NewInstruction(vm.RTI, 0))}, nil
}

// TRAP: System call.
//
//	trap #vector8
type TRAP struct {
	SourceInfo
	Vector Token
}

func (trap TRAP) String() string { return fmt.Sprintf("TRAP(%s)", trap.Vector.Text) }

func (trap *TRAP) Parse(_ string, operands []Token) error {
	if len(operands) != 1 {
		return fmt.Errorf("%w: trap: expected 1 operand", ErrOperand)
	} else if operands[0].Kind != TokLiteral {
		return fmt.Errorf("%w: trap: expected literal vector", ErrOperand)
	}

	*trap = TRAP{SourceInfo: trap.SourceInfo, Vector: operands[0]}

	return nil
}

func (trap *TRAP) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	if trap.Vector.Int < 0 || trap.Vector.Int > 0xff {
		return nil, fmt.Errorf("trap: %w", &LiteralRangeError{
			Literal: strconv.FormatInt(trap.Vector.Int, 10), Width: vm.VECTOR8,
		})
	}

	code := vm.NewInstruction(vm.TRAP, uint16(trap.Vector.Int)&0x00ff)

	return []vm.Word{vm.Word(code)}, nil
}

// ORG: Sets the location counter, padding the object stream with zero words up to the new
// address.
//
//	.org #addr
type ORG struct {
	SourceInfo
	Addr vm.Word
	Pad  uint16 // computed by the assembler driver at build time
}

func (orig *ORG) Parse(_ string, operands []Token) error {
	if len(operands) != 1 || operands[0].Kind != TokLiteral {
		return fmt.Errorf("%w: org: expected literal address", ErrOperand)
	}

	orig.Addr = vm.Word(operands[0].Int)

	return nil
}

func (orig *ORG) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	return make([]vm.Word, orig.Pad), nil
}

// FILL: Allocate and initialize one word of data.
//
//	.fill #1234
//	.fill $label
type FILL struct {
	SourceInfo
	Value Token
}

func (fill *FILL) Parse(_ string, operands []Token) error {
	if len(operands) != 1 {
		return fmt.Errorf("%w: fill: expected 1 operand", ErrOperand)
	}

	fill.Value = operands[0]

	return nil
}

func (fill *FILL) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	switch fill.Value.Kind {
	case TokLabelRef:
		addr, ok := symbols[strings.ToUpper(fill.Value.Text)]
		if !ok {
			return nil, fmt.Errorf("fill: %w", &SymbolError{Symbol: fill.Value.Text, Loc: pc})
		}

		return []vm.Word{addr}, nil
	case TokLiteral:
		return []vm.Word{vm.Word(uint16(fill.Value.Int))}, nil
	default:
		return nil, fmt.Errorf("%w: fill: expected literal or label", ErrOperand)
	}
}

// STRINGZ: Allocate a zero-terminated, ASCII-encoded string.
//
//	$msg: .stringz "Hello, world!"
type STRINGZ struct {
	SourceInfo
	Value string
}

func (s *STRINGZ) Parse(_ string, operands []Token) error {
	if len(operands) != 1 || operands[0].Kind != TokString {
		return fmt.Errorf("%w: stringz: expected string literal", ErrOperand)
	}

	s.Value = operands[0].Text

	return nil
}

func (s *STRINGZ) Generate(symbols SymbolTable, pc vm.Word) ([]vm.Word, error) {
	code := make([]vm.Word, 0, len(s.Value)+1)

	for _, r := range s.Value {
		code = append(code, vm.Word(r))
	}

	code = append(code, 0) // NUL terminator.

	return code, nil
}
