package exportlib

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExportTable is a module-definition document: the LIBRARY clause naming the
// final artifact and one EXPORTS entry per symbol.
type ExportTable struct {
	Library string
	Symbols ExportSpec
}

// NewExportTable builds the table for the artifact named output. output must
// be the final output filename, not a path; the linker stamps it into the
// binary and consumers resolve the library by it.
func NewExportTable(output string, spec ExportSpec) (*ExportTable, error) {
	if err := checkOutputName(output); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(spec))
	for _, name := range spec {
		if msg := checkSymbolName(name); msg != "" || name == "" {
			return nil, invalidf("export %q: %s", name, msg)
		}
		if _, dup := seen[name]; dup {
			return nil, invalidf("export %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	return &ExportTable{Library: output, Symbols: append(ExportSpec{}, spec...)}, nil
}

// WriteTo renders the table:
//
//	LIBRARY mylib.dll
//	EXPORTS
//	mlir_foo
//	mlir_bar
func (t *ExportTable) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	write := func(s string) {
		m, _ := bw.WriteString(s)
		n += int64(m)
	}

	write("LIBRARY " + quoteLibrary(t.Library) + "\n")
	write("EXPORTS\n")
	for _, name := range t.Symbols {
		write(name + "\n")
	}
	return n, bw.Flush()
}

func (t *ExportTable) String() string {
	var buf bytes.Buffer
	_, _ = t.WriteTo(&buf)
	return buf.String()
}

// WriteFile writes the table to path.
func (t *ExportTable) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := t.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseExportTable reads a document produced by WriteTo. It is strict: the
// first non-empty line must be LIBRARY, the second EXPORTS, and every other
// line a bare symbol name.
func ParseExportTable(r io.Reader) (*ExportTable, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSymbolLine)

	t := &ExportTable{Symbols: ExportSpec{}}
	state := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch state {
		case 0:
			rest, ok := strings.CutPrefix(line, "LIBRARY")
			if ok && rest != "" && rest[0] != ' ' && rest[0] != '\t' {
				ok = false
			}
			rest = strings.TrimSpace(rest)
			if !ok || rest == "" {
				return nil, fmt.Errorf("export table line %d: expected LIBRARY clause, got %q", lineNo, line)
			}
			t.Library = unquoteLibrary(rest)
			state = 1
		case 1:
			if line != "EXPORTS" {
				return nil, fmt.Errorf("export table line %d: expected EXPORTS, got %q", lineNo, line)
			}
			state = 2
		default:
			if msg := checkSymbolName(line); msg != "" {
				return nil, fmt.Errorf("export table line %d: %s", lineNo, msg)
			}
			t.Symbols = append(t.Symbols, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if state < 2 {
		return nil, fmt.Errorf("export table is missing its LIBRARY or EXPORTS header")
	}
	return t, nil
}

// ReadExportTableFile parses the export table stored at path.
func ReadExportTableFile(path string) (*ExportTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseExportTable(f)
}

// CheckLibraryName rejects a table that would stamp the wrong identity on output.
func (t *ExportTable) CheckLibraryName(output string) error {
	if t.Library != output {
		return fmt.Errorf("%w: LIBRARY %q, output %q", ErrNameMismatch, t.Library, output)
	}
	return nil
}

func checkOutputName(output string) error {
	switch {
	case output == "":
		return invalidf("output filename is empty")
	case output != filepath.Base(output) || strings.ContainsAny(output, `/\`):
		return invalidf("output %q must be a filename, not a path", output)
	case strings.ContainsAny(output, "\"\r\n"):
		return invalidf("output %q contains characters a LIBRARY clause cannot carry", output)
	}
	return nil
}

func quoteLibrary(name string) string {
	if strings.ContainsAny(name, " \t;=") {
		return `"` + name + `"`
	}
	return name
}

func unquoteLibrary(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}
