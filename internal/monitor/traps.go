package monitor

import "github.com/smoynes/elsie/internal/vm"

// FaultHandler builds the default exception handler: it clears the machine control register,
// stopping the machine, since none of PMV, XOP or ACV are recoverable without an operating
// system that does more than this monitor provides.
func FaultHandler(name string, vector, orig vm.Word) Routine {
	return Routine{
		Name:   name,
		Vector: vector,
		Orig:   orig,
		Source: `
and %r0 %r0 #0
ld %r1 $mcr
str %r0 %r1 #0
rti
$mcr: .fill #xfffe
`,
	}
}
