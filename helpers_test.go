package exportlib

import (
	"errors"
	"testing"
)

func TestMatchesPattern(t *testing.T) {
	testCases := []struct {
		name     string
		patterns []string
		expected bool
	}{
		{"mlirContextCreate", []string{`^mlir[A-Z]`}, true},
		{"_mlir_foo", []string{`^mlir`, `^_?mlir_`}, true},
		{"TF_NewGraph", []string{`^TF_`}, true},
		{"helper", []string{`^mlir`, `^TF_`}, false},
		{"mlirFoo", []string{`(`}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := MatchesPattern(tc.name, tc.patterns...)
			if result != tc.expected {
				t.Errorf("MatchesPattern(%s, %v) = %v, expected %v",
					tc.name, tc.patterns, result, tc.expected)
			}
		})
	}
}

func TestMatchesExtension(t *testing.T) {
	testCases := []struct {
		filename   string
		extensions []string
		expected   bool
	}{
		{"libMLIRIR.a", []string{".a"}, true},
		{"MLIRIR.LIB", []string{".lib"}, true},
		{"capi.obj", []string{"a", "obj"}, true},
		{"capi.o", []string{".a", ".lib"}, false},
		{"noext", []string{".a"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			result := MatchesExtension(tc.filename, tc.extensions...)
			if result != tc.expected {
				t.Errorf("MatchesExtension(%s, %v) = %v, expected %v",
					tc.filename, tc.extensions, result, tc.expected)
			}
		})
	}
}

func TestBuildError(t *testing.T) {
	output := []string{"line 1", "", "  ", "undefined symbol: mlir_foo"}
	err := BuildError("lld-link", output, errors.New("exit status 1"))

	expected := "lld-link failed: exit status 1\n\nLinker output:\nline 1\nundefined symbol: mlir_foo"
	if err.Error() != expected {
		t.Errorf("BuildError output mismatch.\nExpected: %s\nGot: %s", expected, err.Error())
	}

	if got := BuildError("gcc", nil, nil).Error(); got != "gcc failed" {
		t.Errorf("BuildError without output = %q", got)
	}
}
