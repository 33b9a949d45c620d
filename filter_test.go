package exportlib

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(names ...string) []SymbolRecord {
	recs := make([]SymbolRecord, len(names))
	for i, name := range names {
		recs[i] = SymbolRecord{Name: name, Line: i + 1}
	}
	return recs
}

func TestFilterExports(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		pred    Predicate
		want    ExportSpec
	}{
		{
			name:    "default prefix",
			symbols: []string{"mlir_foo", "other_sym", "mlir_bar"},
			want:    ExportSpec{"mlir_foo", "mlir_bar"},
		},
		{
			name:    "duplicates keep first position",
			symbols: []string{"mlir_b", "mlir_a", "mlir_b", "mlir_c", "mlir_a"},
			want:    ExportSpec{"mlir_b", "mlir_a", "mlir_c"},
		},
		{
			name:    "nothing matches",
			symbols: []string{"foo", "bar"},
			want:    ExportSpec{},
		},
		{
			name: "empty input",
			want: ExportSpec{},
		},
		{
			name:    "prefix is case sensitive",
			symbols: []string{"MLIR_foo", "mlir_foo"},
			want:    ExportSpec{"mlir_foo"},
		},
		{
			name:    "custom prefixes",
			symbols: []string{"TF_NewGraph", "mlirFoo", "xla_Run"},
			pred:    PrefixPredicate("TF_", "xla_"),
			want:    ExportSpec{"TF_NewGraph", "xla_Run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterExports(SliceRecords(records(tt.symbols...)), tt.pred)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FilterExports (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterExportsIsSubsetAndDeterministic(t *testing.T) {
	input := records("mlir_z", "x", "mlir_y", "mlir_z", "mlirA", "y", "mlir_y")

	first, err := FilterExports(SliceRecords(input), nil)
	require.NoError(t, err)
	second, err := FilterExports(SliceRecords(input), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	seen := map[string]bool{}
	for _, name := range first {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
		assert.Contains(t, []string{"mlir_z", "mlir_y", "mlirA"}, name)
	}
}

func TestFilterExportsPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	seq := func(yield func(SymbolRecord, error) bool) {
		if !yield(SymbolRecord{Name: "mlir_a"}, nil) {
			return
		}
		yield(SymbolRecord{}, boom)
	}

	_, err := FilterExports(seq, nil)
	assert.ErrorIs(t, err, boom)

	_, err = FilterExports(SliceRecords([]SymbolRecord{{Name: "", Line: 7}}), nil)
	assert.ErrorIs(t, err, ErrMalformedMetadata)
}

func TestPrefixPredicate(t *testing.T) {
	pred := PrefixPredicate("mlir", "", "mlir")
	assert.True(t, pred("mlirContextCreate"))
	assert.True(t, pred("  mlir_padded"))
	assert.False(t, pred("_mlir"))
	assert.False(t, PrefixPredicate()("mlir"))
}

func TestPatternPredicate(t *testing.T) {
	pred, err := PatternPredicate(`^mlir[A-Z]`, `^_?TF_`)
	require.NoError(t, err)
	assert.True(t, pred("mlirFoo"))
	assert.True(t, pred("_TF_Run"))
	assert.False(t, pred("mlir_foo"))

	_, err = PatternPredicate(`(`)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAnyPredicate(t *testing.T) {
	pred := AnyPredicate(nil, PrefixPredicate("a"), PrefixPredicate("b"))
	assert.True(t, pred("apple"))
	assert.True(t, pred("banana"))
	assert.False(t, pred("cherry"))
	assert.False(t, AnyPredicate()("anything"))
}

func TestExportSpecContains(t *testing.T) {
	spec := ExportSpec{"a", "b"}
	assert.True(t, spec.Contains("b"))
	assert.False(t, spec.Contains("c"))
}
