package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/smoynes/elsie/internal/cli"
	"github.com/smoynes/elsie/internal/encoding"
	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/monitor"
	"github.com/smoynes/elsie/internal/vm"
)

func Executor() cli.Command {
	exec := &executor{log: log.DefaultLogger()}
	return exec
}

type executor struct {
	logLevel slog.Level
	log      *log.Logger

	os  string
	bin string
	hex bool
}

func (executor) Description() string {
	return "run a program"
}

func (executor) Usage(out io.Writer) error {
	var err error
	_, err = fmt.Fprintln(out, `exec -os os.bin -b user.bin
exec -b user.bin

Runs an executable in the emulator. At least one of -os or -b is required.
The OS image, if given, supplies the trap and interrupt service routines and
execution begins at 0x0200; otherwise execution begins at 0x3000. Each image
is loaded where its own .org directives placed its words. There are no execution
timeouts: a program runs until it halts or the machine is interrupted.`)

	return err
}

func (ex *executor) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return ex.logLevel.UnmarshalText([]byte(s))
	})
	fs.StringVar(&ex.os, "os", "", "operating system image `file`")
	fs.StringVar(&ex.bin, "b", "", "user program image `file`")
	fs.BoolVar(&ex.hex, "hex", false, "images are encoded as Intel-Hex rather than the flat object format")

	return fs
}

// Run executes the program.
func (ex *executor) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger,
) int {
	log.LogLevel.Set(ex.logLevel)

	if ex.os == "" && ex.bin == "" {
		logger.Error("exec: at least one of -os or -b is required")
		return 1
	}

	var (
		code  []vm.ObjectCode
		start vm.Word
		found bool
	)

	if ex.os != "" {
		obj, err := ex.loadCode(ex.os)
		if err != nil {
			logger.Error("Error loading OS image", "err", err)
			return 1
		}

		code = append(code, obj...)

		if len(obj) > 0 {
			start, found = vm.SystemAddr, true
		}
	}

	if ex.bin != "" {
		obj, err := ex.loadCode(ex.bin)
		if err != nil {
			logger.Error("Error loading user program", "err", err)
			return 1
		}

		code = append(code, obj...)

		if !found && len(obj) > 0 {
			start, found = vm.UserSpaceAddr, true
		}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(context.Canceled)

	logger.Debug("Initializing machine")

	dispCh := make(chan rune, 1)

	machine := vm.New(
		vm.WithLogger(logger),
		monitor.WithDefaultSystemImage(),
		vm.WithDisplayListener(func(displayed uint16) {
			dispCh <- rune(displayed)
		}),
	)

	if found {
		machine.PC = vm.ProgramCounter(start)
	}

	loader := vm.NewLoader(machine)
	count := uint16(0)

	for i := range code {
		n, err := loader.Load(code[i])
		count += n

		if err != nil {
			logger.Error(err.Error())
			return 1
		}
	}

	go func() {
		logger.Debug("Starting display")

		for {
			select {
			case disp := <-dispCh:
				fmt.Printf("%c", disp)
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Debug("Loaded program", "os", ex.os, "bin", ex.bin, "loaded", count)

	go func(cancel context.CancelCauseFunc) {
		logger.Info("Starting machine")

		err := machine.Run(ctx)

		switch {
		case err == nil, errors.Is(err, vm.ErrHalted):
			cancel(context.Canceled)
		default:
			logger.Error(err.Error())
			cancel(err)
		}
	}(cancel)

	<-ctx.Done()

	close(dispCh)

	if err := context.Cause(ctx); errors.Is(err, context.Canceled) {
		logger.Info("Program completed")
		return 0
	} else if err != nil {
		logger.Error("Program error", "err", err)
		return 2
	}

	logger.Info("Terminated")

	return 0
}

func (ex executor) loadCode(fn string) ([]vm.ObjectCode, error) {
	ex.log.Debug("Loading executable", "file", fn)

	file, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bs, err := io.ReadAll(file)
	if err != nil {
		ex.log.Error(err.Error())
		return nil, err
	}

	ex.log.Debug("Loaded file", "bytes", len(bs))

	if ex.hex {
		hex := encoding.HexEncoding{}
		if err := hex.UnmarshalText(bs); err != nil {
			ex.log.Error(err.Error())
			return nil, err
		}

		return hex.Code, nil
	}

	flat := encoding.FlatEncoding{}
	if err := flat.UnmarshalBinary(bs); err != nil {
		ex.log.Error(err.Error())
		return nil, err
	}

	return []vm.ObjectCode{flat.Code}, nil
}
