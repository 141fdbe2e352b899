package ucprof

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
)

// nmLinePattern matches `nm -l` output lines: "<address> <kind> <name>[\t<file>:<line>]".
var nmLinePattern = regexp.MustCompile(`^([0-9a-f]+)\s(\w)\s([^\t\n]*)(?:\t(.*):(\d+))?`)

// IsFunctionKind reports whether an nm symbol kind can own code. Absolute,
// bss, data, read-only data and weak object symbols are not functions.
func IsFunctionKind(kind byte) bool {
	switch kind {
	case 'a', 'A', 'b', 'B', 'd', 'D', 'r', 'R', 'V':
		return false
	}
	return true
}

// SymbolTable answers which function owns an address. It is immutable once
// loaded.
type SymbolTable struct {
	symbols []Symbol // ascending by address, load order among equal addresses
}

// LoadSymbols builds a table from raw entries, dropping non-function kinds.
func LoadSymbols(entries []Symbol) *SymbolTable {
	symbols := make([]Symbol, 0, len(entries))
	for _, s := range entries {
		if !IsFunctionKind(s.Kind) {
			continue
		}
		symbols = append(symbols, s)
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		return symbols[i].Address < symbols[j].Address
	})
	return &SymbolTable{symbols: symbols}
}

// Len returns the number of function symbols in the table.
func (st *SymbolTable) Len() int { return len(st.symbols) }

// Symbols returns the table contents in ascending address order.
func (st *SymbolTable) Symbols() []Symbol { return st.symbols }

// Resolve returns the symbol with the greatest address not above addr.
// When several symbols share that address the first loaded one wins.
func (st *SymbolTable) Resolve(addr uint32) (Symbol, bool) {
	i := sort.Search(len(st.symbols), func(i int) bool {
		return st.symbols[i].Address > addr
	})
	if i == 0 {
		return Symbol{}, false
	}
	i--
	for i > 0 && st.symbols[i-1].Address == st.symbols[i].Address {
		i--
	}
	return st.symbols[i], true
}

// placeholderName is used for addresses no symbol covers.
func placeholderName(addr uint32) string {
	return fmt.Sprintf("fn @ 0x%08x", addr)
}

// ParseSymbols reads nm text output. Lines that do not look like symbols are
// ignored, as are addresses outside the 32-bit target space; kinds are not
// filtered here.
func ParseSymbols(r io.Reader, log logrus.Ext1FieldLogger) ([]Symbol, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var symbols []Symbol
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := nmLinePattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		addr, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			log.Debugf("Skipping symbol %s: address 0x%s out of range", m[3], m[1])
			continue
		}
		sym := Symbol{
			Address: uint32(addr),
			Kind:    m[2][0],
			Name:    m[3],
			File:    m[4],
		}
		if m[5] != "" {
			line, err := strconv.ParseUint(m[5], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid line number %q for %s: %w", m[5], sym.Name, err)
			}
			sym.Line = uint32(line)
		}
		symbols = append(symbols, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading symbols: %w", err)
	}
	return symbols, nil
}

// ReadSymbolsFile loads a symbol table from either an ELF image or nm text
// output, depending on the file's magic.
func ReadSymbolsFile(path string, log logrus.Ext1FieldLogger) (*SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, _ := br.Peek(len(elfMagic))
	if bytes.Equal(magic, elfMagic) {
		entries, err := ReadSymbolsELF(path)
		if err != nil {
			return nil, err
		}
		return LoadSymbols(entries), nil
	}

	entries, err := ParseSymbols(br, log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return LoadSymbols(entries), nil
}
