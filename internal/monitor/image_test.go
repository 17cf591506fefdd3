package monitor

import (
	"testing"

	"github.com/smoynes/elsie/internal/log"
	"github.com/smoynes/elsie/internal/vm"
)

func TestSystemImage_LoadTo(t *testing.T) {
	if testing.Verbose() {
		log.LogLevel.Set(log.Debug)
	} else {
		log.LogLevel.Set(log.Warn)
	}

	image := NewSystemImage()
	machine := vm.New(WithSystemImage(image))
	loader := vm.NewLoader(machine)

	count, err := image.LoadTo(loader)
	if err != nil {
		t.Fatal(err)
	}

	if count == 0 {
		t.Error("expected routines to be loaded")
	}

	view := machine.Mem.View()

	for _, tc := range image.Exceptions {
		vector := view[tc.Vector]
		if vm.Word(vector) != tc.Orig {
			t.Errorf("routine %s: vector %s: want %s, got %s", tc.Name, tc.Vector, tc.Orig, vector)
		}
	}
}

func TestFaultHandler_HaltsMachine(t *testing.T) {
	routine := FaultHandler("test_fault", vm.ISRTable+vm.ExceptionACV, 0x0200)

	image := &SystemImage{Exceptions: []Routine{routine}}
	machine := vm.New(WithSystemImage(image))
	loader := vm.NewLoader(machine)

	// LDR R0,R1,#0 with R1 pointing below user space raises ACV in user mode.
	code := vm.ObjectCode{
		Orig: 0x3000,
		Code: []vm.Word{
			vm.Word(vm.NewInstruction(vm.LDR, uint16(vm.R0)<<9|uint16(vm.R1)<<6)),
		},
	}

	if _, err := loader.Load(code); err != nil {
		t.Fatal(err)
	}

	machine.REG[vm.R1] = 0x0000
	machine.MCR = vm.ControlRunning

	for i := 0; i < 100 && machine.MCR.Running(); i++ {
		if err := machine.Step(); err != nil {
			t.Fatal(err)
		}
	}

	if machine.MCR.Running() {
		t.Error("expected machine to halt after ACV fault")
	}
}
