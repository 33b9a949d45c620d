package exportlib

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ExportedSymbols lists the names a shared library exports. PE images are
// read from their export directory; ELF objects from the defined dynamic
// symbols.
func ExportedSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	switch {
	case magic[0] == 'M' && magic[1] == 'Z':
		pf, err := pe.NewFile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return peExports(pf)
	case bytes.Equal(magic[:], []byte(elf.ELFMAG)):
		ef, err := elf.NewFile(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return elfExports(ef)
	default:
		return nil, fmt.Errorf("%s: not a PE or ELF shared library", path)
	}
}

func elfExports(f *elf.File) ([]string, error) {
	symbols, err := f.DynamicSymbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, sym := range symbols {
		if sym.Section == elf.SHN_UNDEF || elf.ST_BIND(sym.Info) == elf.STB_LOCAL {
			continue
		}
		if elf.ST_VISIBILITY(sym.Other) == elf.STV_HIDDEN {
			continue
		}
		names = append(names, sym.Name)
	}
	return names, nil
}

// imageExportDirectory mirrors IMAGE_EXPORT_DIRECTORY.
type imageExportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

func peExports(f *pe.File) ([]string, error) {
	var dirs []pe.DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	default:
		return nil, fmt.Errorf("PE file has no optional header")
	}
	if len(dirs) <= pe.IMAGE_DIRECTORY_ENTRY_EXPORT || dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].VirtualAddress == 0 {
		return nil, nil
	}
	exportRVA := dirs[pe.IMAGE_DIRECTORY_ENTRY_EXPORT].VirtualAddress

	raw, err := readRVA(f, exportRVA, uint64(binary.Size(imageExportDirectory{})))
	if err != nil {
		return nil, err
	}
	var dir imageExportDirectory
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &dir); err != nil {
		return nil, err
	}
	if dir.NumberOfNames == 0 {
		return nil, nil
	}

	table, err := readRVA(f, dir.AddressOfNames, 4*uint64(dir.NumberOfNames))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(table)/4)
	for off := 0; off+4 <= len(table); off += 4 {
		nameRVA := binary.LittleEndian.Uint32(table[off:])
		name, err := readCString(f, nameRVA)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// sectionAt returns the section whose virtual range holds rva and the offset
// of rva inside it. Bounds are computed in 64 bits.
func sectionAt(f *pe.File, rva uint32, size func(*pe.Section) uint32) (*pe.Section, uint64, bool) {
	for _, s := range f.Sections {
		start := uint64(s.VirtualAddress)
		if uint64(rva) < start || uint64(rva) >= start+uint64(size(s)) {
			continue
		}
		return s, uint64(rva) - start, true
	}
	return nil, 0, false
}

// readRVA returns n bytes of the image starting at rva.
func readRVA(f *pe.File, rva uint32, n uint64) ([]byte, error) {
	s, off, ok := sectionAt(f, rva, func(s *pe.Section) uint32 {
		if s.VirtualSize == 0 {
			return s.Size
		}
		return s.VirtualSize
	})
	if !ok {
		return nil, fmt.Errorf("PE rva %#x is not inside any section", rva)
	}
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	if off > uint64(len(data)) || n > uint64(len(data))-off {
		return nil, fmt.Errorf("PE export data at %#x runs past section %s", rva, s.Name)
	}
	return data[off : off+n], nil
}

func readCString(f *pe.File, rva uint32) (string, error) {
	s, off, ok := sectionAt(f, rva, func(s *pe.Section) uint32 { return max(s.VirtualSize, s.Size) })
	if !ok {
		return "", fmt.Errorf("PE rva %#x is not inside any section", rva)
	}
	data, err := s.Data()
	if err != nil {
		return "", err
	}
	if off >= uint64(len(data)) {
		return "", fmt.Errorf("PE rva %#x is past the data of section %s", rva, s.Name)
	}
	end := bytes.IndexByte(data[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated export name at %#x", rva)
	}
	return string(data[off : off+uint64(end)]), nil
}

// verifyExports checks that got is exactly the set want.
func verifyExports(got []string, want ExportSpec) error {
	have := make(map[string]struct{}, len(got))
	for _, name := range got {
		have[name] = struct{}{}
	}
	expected := make(map[string]struct{}, len(want))
	var missing []string
	for _, name := range want {
		expected[name] = struct{}{}
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	var extra []string
	for name := range have {
		if _, ok := expected[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w: exports differ from the table (missing %v, unexpected %v)", ErrFinalLink, missing, extra)
}
