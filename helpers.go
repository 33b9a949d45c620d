package exportlib

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchesPattern checks if name matches any of the given regex patterns.
//
// Invalid patterns never match; use CompilePatterns when the caller needs to
// report them.
//
// # Example
//
//	if MatchesPattern("mlirContextCreate", `^mlir[A-Z]`, `^_?mlir_`) {
//	    // export it
//	}
func MatchesPattern(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, name); matched {
			return true
		}
	}
	return false
}

// MatchesExtension checks if a filename has any of the given extensions,
// ignoring case. Extensions may be given with or without the leading dot.
func MatchesExtension(filename string, extensions ...string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized tool failure error with output context.
//
// With error and output:
//
//	x86_64-w64-mingw32-gcc failed: final link failed (exit status 1): exit status 1
//
//	Linker output:
//	ld: cannot export mlir_missing: symbol not defined
//
// Blank output lines are dropped.
func BuildError(tool string, output []string, err error) error {
	var lines []string
	for _, line := range output {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s failed: %v", tool, err)
	} else {
		prefix = fmt.Sprintf("%s failed", tool)
	}

	if len(lines) > 0 {
		return fmt.Errorf("%s\n\nLinker output:\n%s", prefix, strings.Join(lines, "\n"))
	}

	return fmt.Errorf("%s", prefix)
}
