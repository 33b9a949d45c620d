package exportlib

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyExports(t *testing.T) {
	assert.NoError(t, verifyExports([]string{"b", "a"}, ExportSpec{"a", "b"}))
	assert.NoError(t, verifyExports(nil, ExportSpec{}))

	err := verifyExports([]string{"a", "z", "y"}, ExportSpec{"a", "b"})
	require.ErrorIs(t, err, ErrFinalLink)
	assert.Contains(t, err.Error(), "missing [b], unexpected [y z]")
}

func TestExportedSymbolsRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mylib.dll")
	require.NoError(t, os.WriteFile(path, []byte("LIBRARY mylib.dll\nEXPORTS\n"), 0o644))

	_, err := ExportedSymbols(path)
	assert.ErrorContains(t, err, "not a PE or ELF shared library")

	empty := filepath.Join(t.TempDir(), "empty.dll")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ExportedSymbols(empty)
	assert.Error(t, err)
}

// writePE writes a minimal PE32+ DLL with a single .edata section holding an
// export directory for names. edit, when non-nil, alters the directory and
// the name pointer table before they are written.
func writePE(t *testing.T, names []string, edit func(dir *imageExportDirectory, namePtrs []uint32)) string {
	t.Helper()
	const (
		sectionRVA  = 0x1000
		sectionSize = 0x200
		fileAlign   = 0x200
	)

	dirSize := uint32(binary.Size(imageExportDirectory{}))
	namePtrs := make([]uint32, len(names))
	var strs bytes.Buffer
	strBase := sectionRVA + dirSize + 4*uint32(len(names))
	for i, name := range names {
		namePtrs[i] = strBase + uint32(strs.Len())
		strs.WriteString(name)
		strs.WriteByte(0)
	}
	dir := imageExportDirectory{
		NumberOfNames:  uint32(len(names)),
		AddressOfNames: sectionRVA + dirSize,
	}
	if edit != nil {
		edit(&dir, namePtrs)
	}

	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")

	oh := pe.OptionalHeader64{
		Magic:               0x20b,
		SectionAlignment:    0x1000,
		FileAlignment:       fileAlign,
		SizeOfImage:         sectionRVA + 0x1000,
		SizeOfHeaders:       fileAlign,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{VirtualAddress: sectionRVA, Size: dirSize}
	sh := pe.SectionHeader32{
		VirtualSize:      sectionSize,
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    sectionSize,
		PointerToRawData: fileAlign,
		Characteristics:  pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ,
	}
	copy(sh.Name[:], ".edata")

	for _, v := range []any{
		pe.FileHeader{
			Machine:              pe.IMAGE_FILE_MACHINE_AMD64,
			NumberOfSections:     1,
			SizeOfOptionalHeader: uint16(binary.Size(oh)),
			Characteristics:      pe.IMAGE_FILE_DLL | pe.IMAGE_FILE_EXECUTABLE_IMAGE,
		},
		oh,
		sh,
	} {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.Write(make([]byte, fileAlign-buf.Len()))

	var sectionBuf bytes.Buffer
	require.NoError(t, binary.Write(&sectionBuf, binary.LittleEndian, dir))
	require.NoError(t, binary.Write(&sectionBuf, binary.LittleEndian, namePtrs))
	sectionBuf.Write(strs.Bytes())
	require.LessOrEqual(t, sectionBuf.Len(), sectionSize)
	sectionBuf.Write(make([]byte, sectionSize-sectionBuf.Len()))
	buf.Write(sectionBuf.Bytes())

	path := filepath.Join(t.TempDir(), "mylib.dll")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExportedSymbolsPE(t *testing.T) {
	names, err := ExportedSymbols(writePE(t, []string{"mlirContextCreate", "mlir_global"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"mlirContextCreate", "mlir_global"}, names)

	names, err = ExportedSymbols(writePE(t, nil, nil))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestExportedSymbolsPECorruptDirectory(t *testing.T) {
	tests := []struct {
		name string
		edit func(dir *imageExportDirectory, namePtrs []uint32)
		want string
	}{
		{
			name: "name count wraps the table size",
			edit: func(dir *imageExportDirectory, _ []uint32) { dir.NumberOfNames = 0x40000001 },
			want: "runs past section",
		},
		{
			name: "name table outside the image",
			edit: func(dir *imageExportDirectory, _ []uint32) { dir.AddressOfNames = 0xfffffffc },
			want: "is not inside any section",
		},
		{
			name: "name pointer near the top of the address space",
			edit: func(_ *imageExportDirectory, namePtrs []uint32) { namePtrs[0] = 0xffffffff },
			want: "is not inside any section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			var err error
			require.NotPanics(t, func() {
				names, err = ExportedSymbols(writePE(t, []string{"mlirFoo"}, tt.edit))
			})
			assert.ErrorContains(t, err, tt.want)
			assert.Nil(t, names)
		})
	}
}

func TestExportedSymbolsELF(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs a system ELF shared library")
	}

	var libc string
	for _, pattern := range []string{
		"/lib/x86_64-linux-gnu/libc.so.6",
		"/lib/aarch64-linux-gnu/libc.so.6",
		"/lib64/libc.so.6",
		"/usr/lib/libc.so.6",
		"/lib/ld-musl-*.so.1",
	} {
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			libc = matches[0]
			break
		}
	}
	if libc == "" {
		t.Skip("libc shared library not found")
	}

	names, err := ExportedSymbols(libc)
	require.NoError(t, err)
	assert.True(t, slices.Contains(names, "malloc"), "libc should export malloc")
}
