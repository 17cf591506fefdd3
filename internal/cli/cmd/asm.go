package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/cli"
	"github.com/smoynes/elsie/internal/encoding"
	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/vm"
)

// Assembler is the command that translates source code into executable object code.
//
//	elsie asm -o a.o FILE.asm
func Assembler() cli.Command {
	return new(assembler)
}

type assembler struct {
	debug  bool
	hexOut bool
	output string
}

func (assembler) Description() string {
	return "assemble source code into object code"
}

func (assembler) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `asm [-o file.o] [-hex] file.asm

Assemble source into object code. By default, the output is a flat,
headerless stream of little-endian words starting at word address 0; any
.org directive is realized as zero-word padding within that stream. With
-hex, the output is the Intel-Hex based debug encoding instead.`)

	return err
}

func (a *assembler) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	fs.BoolVar(&a.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&a.hexOut, "hex", false, "write the Intel-Hex debug encoding instead of the flat object format")
	fs.StringVar(&a.output, "o", "a.o", "output `filename`")

	return fs
}

// Run assembles each source file named in args and writes the resulting object code to the
// configured output file.
func (a *assembler) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if a.debug {
		log.LogLevel.Set(log.Debug)
	}

	if len(args) == 0 {
		logger.Error("asm: no source files given")
		return 1
	}

	var written []byte

	for _, fn := range args {
		src, err := os.ReadFile(fn)
		if err != nil {
			logger.Error("Read error", "file", fn, "err", err)
			return 1
		}

		code, err := asm.Assemble(fn, string(src))
		if err != nil {
			logger.Error("Assemble error", "file", fn, "err", err)
			return 1
		}

		logger.Debug("Assembled source", "file", fn, "words", len(code.Code))

		bs, err := a.encode(code)
		if err != nil {
			logger.Error("Encode error", "file", fn, "err", err)
			return 1
		}

		written = append(written, bs...)
	}

	out, err := os.Create(a.output)
	if err != nil {
		logger.Error("open failed", "out", a.output, "err", err)
		return 1
	}
	defer out.Close()

	if _, err := out.Write(written); err != nil {
		logger.Error("I/O error", "out", a.output, "err", err)
		return 1
	}

	logger.Debug("Wrote object", "out", a.output, "bytes", len(written))

	return 0
}

// encode marshals object code using the format selected by -hex.
func (a *assembler) encode(code vm.ObjectCode) ([]byte, error) {
	if a.hexOut {
		enc := encoding.HexEncoding{Code: []vm.ObjectCode{code}}
		return enc.MarshalText()
	}

	flat := encoding.FlatEncoding{Code: code}

	return flat.MarshalBinary()
}
