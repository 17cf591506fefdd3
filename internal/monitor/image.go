// Package monitor implements a system monitor for the machine: the handful of service routines
// that aren't built into the emulator's TRAP instruction, installed into low memory and the
// trap/interrupt vector tables at boot.
package monitor

import (
	"fmt"

	"github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/vm"
)

// WithSystemImage initializes the machine with a given image.
func WithSystemImage(image *SystemImage) vm.OptionFn {
	return func(machine *vm.LC3, late bool) error {
		if late {
			loader := vm.NewLoader(machine)
			_, err := image.LoadTo(loader)

			return err
		}

		return nil
	}
}

// WithDefaultSystemImage initializes the machine with the default system image. You should
// probably use this.
func WithDefaultSystemImage() vm.OptionFn {
	return WithSystemImage(NewSystemImage())
}

// SystemImage holds the routines loaded into memory at boot: exception handlers, interrupt
// service routines, and any trap service routine not built into the emulator directly.
type SystemImage struct {
	Traps      []Routine // Software traps not handled natively by TRAP.
	ISRs       []Routine // Device interrupt service routines.
	Exceptions []Routine // PMV/XOP/ACV exception handlers.

	log *log.Logger
}

// Routine is assembly source for a service routine, along with the vector table entry that
// should point to it once loaded and the address it is relocated to.
type Routine struct {
	Name   string // Debug friend.
	Vector vm.Word
	Orig   vm.Word
	Source string
}

// NewSystemImage creates the default system image: handlers for the three exceptions the
// emulator can raise (privilege-mode violation, illegal opcode, access-control violation), each
// of which simply halts the machine. No traps or device ISRs are installed by default since
// GETC, OUT, PUTS, IN and HALT are handled natively by the TRAP instruction.
func NewSystemImage() *SystemImage {
	return &SystemImage{
		Traps: nil,
		ISRs:  nil,
		Exceptions: []Routine{
			FaultHandler("fault_pmv", vm.ISRTable+vm.ExceptionPMV, 0x0200),
			FaultHandler("fault_xop", vm.ISRTable+vm.ExceptionXOP, 0x0210),
			FaultHandler("fault_acv", vm.ISRTable+vm.ExceptionACV, 0x0220),
		},
		log: log.DefaultLogger(),
	}
}

// LoadTo assembles and loads every routine in the image, pointing each's vector table entry at
// its relocated address.
func (img *SystemImage) LoadTo(loader *vm.Loader) (uint16, error) {
	count := uint16(0)

	for _, routines := range [][]Routine{img.Traps, img.ISRs, img.Exceptions} {
		for _, routine := range routines {
			n, err := img.load(loader, routine)
			count += n

			if err != nil {
				return count, err
			}
		}
	}

	return count, nil
}

func (img *SystemImage) load(loader *vm.Loader, routine Routine) (uint16, error) {
	obj, err := asm.Assemble(routine.Name, routine.Source)
	if err != nil {
		return 0, fmt.Errorf("monitor: %s: %w", routine.Name, err)
	}

	obj.Orig = routine.Orig

	img.logger().Debug("loading routine",
		"routine", routine.Name, "vector", routine.Vector, "orig", obj.Orig, "size", len(obj.Code))

	return loader.LoadVector(routine.Vector, obj)
}

func (img *SystemImage) logger() *log.Logger {
	if img.log == nil {
		return log.DefaultLogger()
	}

	return img.log
}
