package ucprof

import (
	"debug/elf"
	"errors"
	"fmt"
)

var (
	ErrNotELF   = errors.New("ucprof: not an ELF file")
	ErrNot32Bit = errors.New("ucprof: not a 32-bit ELF")
	ErrNoSymtab = errors.New("ucprof: ELF has no symbol table")
	elfMagic    = []byte(elf.ELFMAG)
)

// ReadSymbolsELF reads the function symbols of a 32-bit firmware image.
// Global functions get kind 'T', local ones 't', matching what nm prints.
// File and line information is not available without DWARF and is left empty.
func ReadSymbolsELF(path string) ([]Symbol, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	defer ef.Close()

	if ef.Class != elf.ELFCLASS32 {
		return nil, ErrNot32Bit
	}

	syms, err := ef.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, ErrNoSymtab
		}
		return nil, fmt.Errorf("ucprof: symtab: %w", err)
	}

	out := make([]Symbol, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Name == "" {
			continue
		}
		kind := byte('T')
		if elf.ST_BIND(s.Info) == elf.STB_LOCAL {
			kind = 't'
		}
		out = append(out, Symbol{
			Address: uint32(s.Value),
			Kind:    kind,
			Name:    s.Name,
		})
	}
	return out, nil
}
