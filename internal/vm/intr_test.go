package vm

import "testing"

func TestInterrupt(tt *testing.T) {
	var (
		intr = Interrupt{}
		kbd  = NewKeyboard()
	)

	intr.Register(PriorityHigh, ISR{vector: 0xad, driver: kbd})

	idt := intr.idt[PriorityHigh]
	if idt.vector != 0xad {
		tt.Errorf("idt vector incorrect: want: %0#2x, got: %0#2x", 0xad, idt.vector)
	}

	if idt.driver != kbd {
		tt.Errorf("idt driver incorrect: want: %v, got: %v", kbd, idt.driver)
	}

	if _, ok := intr.Requested(PriorityLow); ok {
		tt.Errorf("no interrupt should be pending before the keyboard has data")
	}

	kbd.mut.Lock()
	kbd.KBSR = KeyboardEnable | KeyboardReady
	kbd.mut.Unlock()

	vec, ok := intr.Requested(PriorityLow)
	if !ok {
		tt.Errorf("expected interrupt raised")
	} else if vec != 0xad {
		tt.Errorf("expected keyboard interrupt vector: want: %0#2x, got: %0#2x", 0xad, vec)
	}
}
