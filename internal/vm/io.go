package vm

// io.go implements memory-mapped I/O.

import (
	"errors"
	"fmt"

	"github.com/smoynes/elsie/internal/log"
)

// MMIO is the memory-mapped I/O controller: a table, indexed by logical address, of either a
// simple register or a fuller device driver.
//
// Device registers come in different concrete types (KBSR, DSR, ...) and Go pointers are not
// convertible between distinct named types even when the underlying type is identical, so the
// table holds `any` and type-switches on access.
type MMIO struct {
	devs map[Word]any
	log  *log.Logger
}

// NewMMIO creates an empty memory-mapped I/O controller.
func NewMMIO() *MMIO {
	return &MMIO{devs: make(map[Word]any), log: log.DefaultLogger()}
}

// Addresses of memory-mapped device registers.
const (
	KBSRAddr Word = 0xfe00 // Keyboard status and data registers.
	KBDRAddr Word = 0xfe02
	DSRAddr  Word = 0xfe04 // Display status and data registers.
	DDRAddr  Word = 0xfe06
	PSRAddr  Word = 0xfffc // Processor status register. Privileged.
	MCRAddr  Word = 0xfffe // Machine control register. Privileged.
)

var (
	errMMIO = errors.New("mmio")

	// ErrNoDevice is returned when accessing an address with no device mapped.
	ErrNoDevice = fmt.Errorf("%w: no device", errMMIO)
)

// Device is implemented by anything that can be mapped into the I/O page.
type Device interface {
	device() string
}

// RegisterDevice is a device whose single register can be read and written directly, e.g. the MCR
// or PSR.
type RegisterDevice interface {
	Device
	Get() Register
	Put(Register)
}

// ReadDriver is a device driver that handles reads at one or more addresses.
type ReadDriver interface {
	Device
	Read(addr Word) (Word, error)
}

// WriteDriver is a device driver that handles writes at one or more addresses.
type WriteDriver interface {
	Device
	Write(addr Word, val Register) error
}

// Store writes a word to a memory-mapped address.
func (mmio MMIO) Store(addr Word, mdr Register) error {
	dev := mmio.devs[addr]

	switch d := dev.(type) {
	case nil:
		return fmt.Errorf("%w: write: addr: %s", ErrNoDevice, addr)
	case RegisterDevice:
		d.Put(mdr)
	case WriteDriver:
		if err := d.Write(addr, mdr); err != nil {
			return fmt.Errorf("mmio: write: %s: %w", addr, err)
		}
	default:
		return fmt.Errorf("%w: addr: %s: %T", ErrNoDevice, addr, dev)
	}

	mmio.log.Debug("stored", log.String("ADDR", addr.String()), log.String("DATA", mdr.String()))

	return nil
}

// Load reads a word from a memory-mapped address.
func (mmio MMIO) Load(addr Word) (Register, error) {
	dev := mmio.devs[addr]

	var value Word

	switch d := dev.(type) {
	case nil:
		return 0xffff, fmt.Errorf("%w: read: addr: %s", ErrNoDevice, addr)
	case RegisterDevice:
		value = Word(d.Get())
	case ReadDriver:
		var err error

		value, err = d.Read(addr)
		if err != nil {
			return 0xffff, fmt.Errorf("mmio: read: %s: %w", addr, err)
		}
	default:
		return 0xffff, fmt.Errorf("%w: addr: %s: %T", ErrNoDevice, addr, dev)
	}

	mmio.log.Debug("loaded", log.String("ADDR", addr.String()), log.String("DATA", value.String()))

	return Register(value), nil
}

// Map adds devices to the I/O table. All devices are validated before any are committed, so a
// bad call leaves the table unchanged.
func (mmio *MMIO) Map(devices map[Word]any) error {
	for addr, dev := range devices {
		dd, ok := dev.(Device)
		if !ok || dev == nil {
			return fmt.Errorf("%w: map: unsupported device: %s: %T", errMMIO, addr, dev)
		}

		mmio.log.Debug("mapped device", log.String("ADDR", addr.String()), log.String("DEVICE", dd.device()))
	}

	for addr, dev := range devices {
		mmio.devs[addr] = dev
	}

	return nil
}

// Get returns the raw device mapped at addr, or nil.
func (mmio MMIO) Get(addr Word) any { return mmio.devs[addr] }

// PSR returns the current processor status, if mapped.
func (mmio MMIO) PSR() ProcessorStatus {
	if dev, ok := mmio.devs[PSRAddr].(*ProcessorStatus); ok {
		return *dev
	}

	return 0
}
