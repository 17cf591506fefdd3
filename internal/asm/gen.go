package asm

// gen.go drives the assembler's two passes: pass 1 discovers symbols by walking the token
// stream and tracking a word counter; pass 2 re-lexes the same buffer, builds the syntax table
// and emits one 16-bit word per instruction or directive.

import (
	"fmt"
	"strings"

	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/vm"
)

// Assemble runs both passes over src (attributed to file in error messages) and returns the
// finished object code.
func Assemble(file, src string) (vm.ObjectCode, error) {
	symbols, err := Pass1(file, src)
	if err != nil {
		return vm.ObjectCode{}, err
	}

	gen := NewGenerator(symbols)

	if err := gen.Pass2(file, src); err != nil {
		return vm.ObjectCode{}, err
	}

	return gen.Emit()
}

// nextOperands reads the operand tokens a mnemonic or directive consumes. BR is special-cased:
// it may be preceded by a condition-mask token, which does not count against its arity; when
// absent, the implied mask is nzp (branch always).
func nextOperands(lx *Lexer, operator string) ([]Token, error) {
	if operator == "br" {
		first, err := lx.Next()
		if err != nil {
			return nil, err
		}

		if first.Kind == TokCondition {
			target, err := lx.Next()
			if err != nil {
				return nil, err
			}

			return []Token{first, target}, nil
		}

		return []Token{{Kind: TokCondition, Cond: CondNZP}, first}, nil
	}

	n, ok := operandArity[operator]
	if !ok {
		n, ok = directiveArity[operator]
	}

	if !ok {
		return nil, fmt.Errorf("%w: unknown operator: %q", ErrOpcode, operator)
	}

	operands := make([]Token, 0, n)

	for len(operands) < n {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}

		if tok.Kind == TokEOF {
			return nil, &SyntaxError{File: lx.file, Pos: tok.Pos,
				Err: fmt.Errorf("%w: unexpected end of input", ErrOperand)}
		}

		operands = append(operands, tok)
	}

	return operands, nil
}

// Pass1 walks the token stream once, populating a symbol table with the word address of every
// label definition. It does not build operations: it only needs each mnemonic/directive's arity
// to stay in lockstep with the token stream.
func Pass1(file, src string) (SymbolTable, error) {
	lx := NewLexer(file, src)
	symbols := make(SymbolTable)

	var wc vm.Word

	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}

		switch tok.Kind {
		case TokEOF:
			return symbols, nil

		case TokLabelDef:
			if _, exists := symbols[strings.ToUpper(tok.Text)]; exists {
				return nil, &SyntaxError{File: file, Pos: tok.Pos,
					Err: &SymbolError{Symbol: tok.Text, Loc: wc}}
			}

			symbols.Add(tok.Text, wc)

		case TokDirective:
			operands, err := nextOperands(lx, tok.Text)
			if err != nil {
				return nil, err
			}

			switch tok.Text {
			case "org":
				addr := vm.Word(operands[0].Int)
				if addr < wc {
					return nil, &SyntaxError{File: file, Pos: tok.Pos,
						Err: fmt.Errorf("%w: .org: address %s before current location %s",
							ErrOperand, addr, wc)}
				}

				wc = addr
			case "fill":
				wc++
			case "stringz":
				wc += vm.Word(len(operands[0].Text)) + 1
			}

		case TokMnemonic:
			if _, err := nextOperands(lx, tok.Text); err != nil {
				return nil, err
			}

			wc++

		default:
			return nil, &SyntaxError{File: file, Pos: tok.Pos,
				Err: fmt.Errorf("%w: unexpected %s %q", ErrOpcode, tok.Kind, tok.Text)}
		}
	}
}

// Generator drives pass 2: it builds the syntax table from the token stream and then emits
// object code from it.
type Generator struct {
	symbols SymbolTable
	syntax  SyntaxTable
	orig    vm.Word // not read by Emit, which always produces Orig 0.
	log     *log.Logger
}

// NewGenerator creates a code generator that resolves label references against symbols.
func NewGenerator(symbols SymbolTable) *Generator {
	return &Generator{symbols: symbols, log: log.DefaultLogger()}
}

// Pass2 re-lexes src and builds the syntax table, computing each operation's word address and,
// for .org, the zero-word padding needed to reach its target address.
func (gen *Generator) Pass2(file, src string) error {
	lx := NewLexer(file, src)

	var wc vm.Word

	for {
		tok, err := lx.Next()
		if err != nil {
			return err
		}

		switch tok.Kind {
		case TokEOF:
			return nil

		case TokLabelDef:
			continue

		case TokDirective, TokMnemonic:
			operands, err := nextOperands(lx, tok.Text)
			if err != nil {
				return err
			}

			op, ok := newOperation(tok.Text)
			if !ok {
				return &SyntaxError{File: file, Pos: tok.Pos,
					Err: fmt.Errorf("%w: %q", ErrOpcode, tok.Text)}
			}

			if err := op.Parse(tok.Text, operands); err != nil {
				return &SyntaxError{File: file, Pos: tok.Pos, Err: err}
			}

			if orig, ok := op.(*ORG); ok {
				if orig.Addr < wc {
					return &SyntaxError{File: file, Pos: tok.Pos,
						Err: fmt.Errorf("%w: .org: address %s before current location %s",
							ErrOperand, orig.Addr, wc)}
				}

				orig.Pad = uint16(orig.Addr - wc)
				wc = orig.Addr
			}

			wrapped := &SourceInfo{Filename: file, Pos: tok.Pos, Operation: op}
			gen.syntax.Add(wrapped)

			switch tok.Text {
			case "fill":
				wc++
			case "stringz":
				if s, ok := op.(*STRINGZ); ok {
					wc += vm.Word(len(s.Value)) + 1
				}
			case "org":
				// wc already advanced above.
			default:
				wc++
			}

		default:
			return &SyntaxError{File: file, Pos: tok.Pos,
				Err: fmt.Errorf("%w: unexpected %s %q", ErrOpcode, tok.Kind, tok.Text)}
		}
	}
}

// Emit generates object code for every operation in the syntax table, in order. The returned
// object code begins at word address 0: any .org padding is already represented as leading zero
// words within Code, per the flat object-file format.
func (gen *Generator) Emit() (vm.ObjectCode, error) {
	var (
		obj vm.ObjectCode
		wc  vm.Word
	)

	for _, op := range gen.syntax {
		words, err := op.Generate(gen.symbols, wc+1)
		if err != nil {
			return vm.ObjectCode{}, gen.annotate(op, err)
		}

		obj.Code = append(obj.Code, words...)
		wc += vm.Word(len(words))
	}

	return obj, nil
}

// annotate wraps a generation error with the source location of the operation that caused it.
func (gen *Generator) annotate(op Operation, err error) error {
	if src, ok := op.(*SourceInfo); ok {
		return &SyntaxError{File: src.Filename, Pos: src.Pos, Err: err}
	}

	return err
}
