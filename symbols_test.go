package exportlib

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, dump string) ([]SymbolRecord, error) {
	t.Helper()
	var records []SymbolRecord
	for rec, err := range ReadSymbols(strings.NewReader(dump)) {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func TestReadSymbols(t *testing.T) {
	tests := []struct {
		name string
		dump string
		want []SymbolRecord
	}{
		{
			name: "one name per line",
			dump: "mlir_foo\nother_sym\nmlir_bar\n",
			want: []SymbolRecord{
				{Name: "mlir_foo", Line: 1},
				{Name: "other_sym", Line: 2},
				{Name: "mlir_bar", Line: 3},
			},
		},
		{
			name: "no trailing newline and CRLF",
			dump: "mlir_foo\r\nmlir_bar",
			want: []SymbolRecord{
				{Name: "mlir_foo", Line: 1},
				{Name: "mlir_bar", Line: 2},
			},
		},
		{
			name: "byte order mark",
			dump: "\ufeffmlir_foo\n",
			want: []SymbolRecord{{Name: "mlir_foo", Line: 1}},
		},
		{
			name: "empty",
			dump: "",
		},
		{
			name: "blank lines and comments",
			dump: "\n; generated\n\n  mlir_foo  \n",
			want: []SymbolRecord{{Name: "mlir_foo", Line: 4}},
		},
		{
			name: "module definition",
			dump: "LIBRARY \"mylib.throwaway.dll\" BASE=0x10000000\nEXPORTS\n    mlirFoo @1\n    mlir_table @2 DATA\n    mlir_k @3 NONAME CONSTANT\n    hidden @4 PRIVATE\n",
			want: []SymbolRecord{
				{Name: "mlirFoo", Kind: SymbolCode, Line: 3},
				{Name: "mlir_table", Kind: SymbolData, Line: 4},
				{Name: "mlir_k", Kind: SymbolConstant, Line: 5},
				{Name: "hidden", Kind: SymbolCode, Line: 6},
			},
		},
		{
			name: "lower-case keywords are symbols",
			dump: "name\nlibrary\nexports\nmlir_foo\n",
			want: []SymbolRecord{
				{Name: "name", Line: 1},
				{Name: "library", Line: 2},
				{Name: "exports", Line: 3},
				{Name: "mlir_foo", Line: 4},
			},
		},
		{
			name: "LIBRARY without EXPORTS is a symbol",
			dump: "LIBRARY\nmlir_foo\n",
			want: []SymbolRecord{
				{Name: "LIBRARY", Line: 1},
				{Name: "mlir_foo", Line: 2},
			},
		},
		{
			name: "lone NAME",
			dump: "NAME\n",
			want: []SymbolRecord{{Name: "NAME", Line: 1}},
		},
		{
			name: "NAME directive",
			dump: "NAME mylib\n\nEXPORTS\nLIBRARY\n",
			want: []SymbolRecord{{Name: "LIBRARY", Line: 4}},
		},
		{
			name: "mangled names",
			dump: "_ZN4mlir7Context6createEv\n?create@Context@mlir@@SAXXZ\n",
			want: []SymbolRecord{
				{Name: "_ZN4mlir7Context6createEv", Line: 1},
				{Name: "?create@Context@mlir@@SAXXZ", Line: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, tt.dump)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReadSymbols (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadSymbolsMalformed(t *testing.T) {
	tests := []struct {
		name string
		dump string
		line int
		msg  string
	}{
		{"extra field", "mlir_foo\nmlir_bar baz\n", 2, `unexpected field "baz"`},
		{"bad ordinal", "mlir_foo @x\n", 1, "bad ordinal"},
		{"forwarder", "EXPORTS\nmlir_foo=other.mlir_foo\n", 2, "forwarded or quoted exports are not supported"},
		{"control character", "mlir\x01foo\n", 1, "symbol contains control or space characters"},
		{"invalid utf-8", "mlir\xfffoo\n", 1, "symbol is not valid UTF-8"},
		{"directive after entries", "mlir_foo\nEXPORTS extra\n", 2, `unexpected field "extra"`},
		{"text after EXPORTS", "EXPORTS mlir_foo\n", 1, "unexpected text after EXPORTS"},
		{"long directive", "LIBRARY a.dll BASE=1 extra\nEXPORTS\n", 1, "unexpected module directive"},
		{"LIBRARY line without EXPORTS", "LIBRARY \"a.dll\"\nmlir_foo\n", 1, `unexpected field "\"a.dll\""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, tt.dump)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMetadata))

			var metaErr *MetadataError
			require.ErrorAs(t, err, &metaErr)
			assert.Equal(t, tt.line, metaErr.Line)
			assert.Equal(t, tt.msg, metaErr.Msg)
		})
	}
}

func TestReadSymbolsStopsEarly(t *testing.T) {
	n := 0
	for range ReadSymbols(strings.NewReader("a\nb\nc\n")) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestReadSymbolFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.def")
	require.NoError(t, os.WriteFile(path, []byte("mlir_a\nmlir_b\n"), 0o644))

	records, err := ReadSymbolFile(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = ReadSymbolFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSymbolKindString(t *testing.T) {
	assert.Equal(t, "code", SymbolCode.String())
	assert.Equal(t, "data", SymbolData.String())
	assert.Equal(t, "constant", SymbolConstant.String())
}
