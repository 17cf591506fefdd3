package vm

// loader.go holds the object loader: it takes assembled code and writes it into memory.

import (
	"errors"
	"fmt"

	"github.com/smoynes/elsie/internal/log"
)

// Loader writes object code into a machine's memory.
type Loader struct {
	vm  *LC3
	log *log.Logger
}

// NewLoader creates a loader bound to a machine.
func NewLoader(cpu *LC3) *Loader {
	return &Loader{vm: cpu, log: log.DefaultLogger()}
}

// Load stores the object code starting at its origin address.
func (l *Loader) Load(obj ObjectCode) (uint16, error) {
	if len(obj.Code) == 0 {
		return 0, fmt.Errorf("%w: object too small", ErrObjectLoader)
	}

	addr := obj.Orig
	count := uint16(0)

	for _, word := range obj.Code {
		if err := l.vm.Mem.store(addr, word); err != nil {
			return count, fmt.Errorf("%w: %w", ErrObjectLoader, err)
		}

		count++
		addr++
	}

	return count, nil
}

// LoadVector stores the object and points a vector-table entry at its origin address.
func (l *Loader) LoadVector(vector Word, obj ObjectCode) (uint16, error) {
	l.log.Debug("loading vector", "vector", vector, "orig", obj.Orig)

	count, err := l.Load(obj)
	if err != nil {
		return count, err
	}

	if err := l.vm.Mem.store(vector, obj.Orig); err != nil {
		return count, fmt.Errorf("%w: %w", ErrObjectLoader, err)
	}

	return count, nil
}

// ObjectCode holds a contiguous run of assembled words and the address they begin at.
type ObjectCode struct {
	Orig Word
	Code []Word
}

var ErrObjectLoader = errors.New("loader error")
