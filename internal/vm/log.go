package vm

import (
	"github.com/smoynes/elsie/internal/log"
)

// WithLogger configures every loggable component of the machine to use the given logger.
func WithLogger(l *log.Logger) OptionFn {
	return func(cpu *LC3, late bool) error {
		if late {
			return nil
		}

		cpu.log = l
		cpu.Mem.log = l
		cpu.Mem.Devices.log = l
		cpu.INT.log = l

		return nil
	}
}

func (cpu *LC3) LogValue() log.Value {
	return log.GroupValue(
		log.String("PC", cpu.PC.String()),
		log.String("IR", cpu.IR.String()),
		log.String("PSR", cpu.PSR.String()),
		log.String("USP", Register(cpu.USP).String()),
		log.String("SSP", Register(cpu.SSP).String()),
		log.String("MCR", cpu.MCR.String()),
	)
}
