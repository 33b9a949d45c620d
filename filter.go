package exportlib

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/emirpasic/gods/v2/sets/linkedhashset"
)

// DefaultExportPrefix is the namespace exported when no predicate is configured.
const DefaultExportPrefix = "mlir"

// Predicate decides whether a symbol name belongs in the export table.
type Predicate func(name string) bool

// PrefixPredicate matches names that begin with any of prefixes, ignoring
// leading whitespace. With no prefixes it matches nothing.
func PrefixPredicate(prefixes ...string) Predicate {
	prefixes = uniqueStrings(prefixes)
	return func(name string) bool {
		name = strings.TrimLeft(name, " \t")
		for _, prefix := range prefixes {
			if strings.HasPrefix(name, prefix) {
				return true
			}
		}
		return false
	}
}

// PatternPredicate compiles patterns and matches names accepted by any of them.
func PatternPredicate(patterns ...string) (Predicate, error) {
	compiled, err := CompilePatterns(patterns...)
	if err != nil {
		return nil, err
	}
	return func(name string) bool {
		for _, re := range compiled {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}, nil
}

// CompilePatterns compiles every pattern, reporting the first bad one.
func CompilePatterns(patterns ...string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, invalidf("export pattern %q: %v", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// AnyPredicate matches when at least one of preds does. Nil entries are skipped.
func AnyPredicate(preds ...Predicate) Predicate {
	return func(name string) bool {
		for _, pred := range preds {
			if pred != nil && pred(name) {
				return true
			}
		}
		return false
	}
}

// ExportSpec is the ordered, duplicate-free list of symbols to export.
type ExportSpec []string

// Contains reports whether name is exported.
func (s ExportSpec) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// FilterExports keeps the records accepted by pred, in first-seen order and
// without duplicates. A nil pred matches DefaultExportPrefix. The first error
// of the sequence aborts filtering.
func FilterExports(records iter.Seq2[SymbolRecord, error], pred Predicate) (ExportSpec, error) {
	if pred == nil {
		pred = PrefixPredicate(DefaultExportPrefix)
	}

	selected := linkedhashset.New[string]()
	for rec, err := range records {
		if err != nil {
			return nil, err
		}
		if rec.Name == "" {
			return nil, fmt.Errorf("%w: empty symbol name at line %d", ErrMalformedMetadata, rec.Line)
		}
		if pred(rec.Name) {
			selected.Add(rec.Name)
		}
	}

	spec := ExportSpec(selected.Values())
	if spec == nil {
		spec = ExportSpec{}
	}
	return spec, nil
}

// SliceRecords adapts an in-memory slice to the sequence FilterExports reads.
func SliceRecords(records []SymbolRecord) iter.Seq2[SymbolRecord, error] {
	return func(yield func(SymbolRecord, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
