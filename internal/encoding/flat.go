package encoding

// flat.go implements the assembler's primary object-file format: a flat, headerless stream of
// little-endian 16-bit words, written contiguously starting at word address 0. There is no
// relocation and no symbol table; a `.org` directive in the source is realized as zero-word
// padding already present in the stream, so loading a flat object is just copying its words into
// memory starting at address 0.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/smoynes/elsie/internal/vm"
)

// FlatEncoding implements marshalling and unmarshalling of object code as a flat little-endian
// word stream.
type FlatEncoding struct {
	Code vm.ObjectCode
}

// MarshalBinary encodes the object code as a sequence of little-endian 16-bit words.
func (f *FlatEncoding) MarshalBinary() ([]byte, error) {
	buf := make([]byte, len(f.Code.Code)*2)

	for i, word := range f.Code.Code {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(word))
	}

	return buf, nil
}

// WriteTo writes the encoded object to out.
func (f *FlatEncoding) WriteTo(out io.Writer) (int64, error) {
	bs, err := f.MarshalBinary()
	if err != nil {
		return 0, err
	}

	n, err := out.Write(bs)

	return int64(n), err
}

// UnmarshalBinary decodes a flat little-endian word stream. The object's origin is always 0:
// any non-zero load address is already baked into the stream as leading zero words.
func (f *FlatEncoding) UnmarshalBinary(bs []byte) error {
	if len(bs)%2 != 0 {
		return fmt.Errorf("%w: odd byte length: %d", ErrDecode, len(bs))
	}

	words := make([]vm.Word, len(bs)/2)
	for i := range words {
		words[i] = vm.Word(binary.LittleEndian.Uint16(bs[i*2:]))
	}

	f.Code = vm.ObjectCode{Orig: 0, Code: words}

	return nil
}

// ReadFrom reads a flat object from in, slurping it fully before decoding.
func (f *FlatEncoding) ReadFrom(in io.Reader) (int64, error) {
	var buf bytes.Buffer

	n, err := buf.ReadFrom(in)
	if err != nil {
		return n, err
	}

	return n, f.UnmarshalBinary(buf.Bytes())
}
