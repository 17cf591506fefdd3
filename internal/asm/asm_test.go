package asm_test

import (
	"errors"
	"testing"

	. "github.com/smoynes/elsie/internal/asm"
	"github.com/smoynes/elsie/internal/vm"
)

func TestSymbolTable_AddAndOffset(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("loop", 0x3002)

	if symbols.Count() != 1 {
		t.Fatalf("want 1 symbol, got %d", symbols.Count())
	}

	offset, err := symbols.Offset("loop", 0x3003, vm.OFFSET9)
	if err != nil {
		t.Fatal(err)
	}

	// loop (0x3002) - pc (0x3003) = -1.
	if offset != 0x1ff {
		t.Errorf("want offset 0x1ff, got %#x", offset)
	}
}

func TestSymbolTable_CaseInsensitive(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("Loop", 0x3000)

	if _, err := symbols.Offset("LOOP", 0x3000, vm.OFFSET9); err != nil {
		t.Errorf("symbol lookup should be case-insensitive: %s", err)
	}
}

func TestSymbolTable_Undefined(t *testing.T) {
	symbols := make(SymbolTable)

	_, err := symbols.Offset("nope", 0x3000, vm.OFFSET9)

	var symErr *SymbolError
	if !errors.As(err, &symErr) {
		t.Errorf("want *SymbolError, got %T: %s", err, err)
	}
}

func TestSymbolTable_OffsetOutOfRange(t *testing.T) {
	symbols := make(SymbolTable)
	symbols.Add("far", 0x4000)

	_, err := symbols.Offset("far", 0x3000, vm.OFFSET9)

	var rangeErr *OffsetRangeError
	if !errors.As(err, &rangeErr) {
		t.Errorf("want *OffsetRangeError, got %T: %s", err, err)
	}
}

func TestSymbolTable_AddEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic adding an empty symbol")
		}
	}()

	make(SymbolTable).Add("", 0)
}
