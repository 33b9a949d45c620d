package exportlib

import (
	"bufio"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SymbolKind is the visibility class the linker reported for a symbol.
type SymbolKind int

const (
	SymbolCode SymbolKind = iota
	SymbolData
	SymbolConstant
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolData:
		return "data"
	case SymbolConstant:
		return "constant"
	default:
		return "code"
	}
}

// SymbolRecord is one externally visible symbol taken from a link-metadata dump.
type SymbolRecord struct {
	Name string
	Kind SymbolKind
	Line int
}

// maxSymbolLine bounds a single dump line; C++ mangled names get long.
const maxSymbolLine = 1 << 20

// ReadSymbols lazily parses a link-metadata dump.
//
// The canonical format is one symbol name per line with no header. The
// module-definition flavour written by `--output-def` style flags is accepted
// too: blank lines, `;` comments, the EXPORTS header optionally preceded by a
// LIBRARY or NAME directive, and the per-entry attributes @ordinal, NONAME,
// DATA, PRIVATE and CONSTANT. Header keywords are case sensitive, and a
// leading LIBRARY or NAME line is a directive only when EXPORTS follows it;
// otherwise it is a symbol. Anything else yields a *MetadataError and ends
// the sequence.
func ReadSymbols(r io.Reader) iter.Seq2[SymbolRecord, error] {
	return func(yield func(SymbolRecord, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSymbolLine)

		// entry reports a symbol line; false ends the sequence.
		entry := func(lineNo int, raw string, fields []string) bool {
			rec, err := parseSymbolLine(lineNo, raw, fields)
			if err != nil {
				yield(SymbolRecord{}, err)
				return false
			}
			return yield(rec, nil)
		}

		var (
			lineNo    int
			inBody    bool
			directive *headerLine
		)
		for scanner.Scan() {
			lineNo++
			raw := scanner.Text()
			if lineNo == 1 {
				raw = strings.TrimPrefix(raw, "\ufeff")
			}

			line := strings.TrimSpace(raw)
			if line == "" || strings.HasPrefix(line, ";") {
				continue
			}
			fields := strings.Fields(line)

			if !inBody {
				switch {
				case fields[0] == "EXPORTS":
					if directive != nil && len(directive.fields) > 3 {
						yield(SymbolRecord{}, &MetadataError{Line: directive.lineNo, Text: directive.raw, Msg: "unexpected module directive"})
						return
					}
					if len(fields) != 1 {
						yield(SymbolRecord{}, &MetadataError{Line: lineNo, Text: raw, Msg: "unexpected text after EXPORTS"})
						return
					}
					inBody = true
					continue
				case directive == nil && (fields[0] == "LIBRARY" || fields[0] == "NAME"):
					directive = &headerLine{lineNo: lineNo, raw: raw, fields: fields}
					continue
				}
				inBody = true
				if directive != nil && !entry(directive.lineNo, directive.raw, directive.fields) {
					return
				}
			}

			if !entry(lineNo, raw, fields) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(SymbolRecord{}, err)
			return
		}
		if !inBody && directive != nil {
			entry(directive.lineNo, directive.raw, directive.fields)
		}
	}
}

// headerLine is a LIBRARY or NAME line held until the next line shows
// whether it opened a module-definition header.
type headerLine struct {
	lineNo int
	raw    string
	fields []string
}

func parseSymbolLine(lineNo int, raw string, fields []string) (SymbolRecord, error) {
	name := fields[0]
	if msg := checkSymbolName(name); msg != "" {
		return SymbolRecord{}, &MetadataError{Line: lineNo, Text: raw, Msg: msg}
	}

	rec := SymbolRecord{Name: name, Kind: SymbolCode, Line: lineNo}
	for _, attr := range fields[1:] {
		switch {
		case strings.HasPrefix(attr, "@"):
			if _, err := strconv.ParseUint(attr[1:], 10, 16); err != nil {
				return SymbolRecord{}, &MetadataError{Line: lineNo, Text: raw, Msg: "bad ordinal"}
			}
		case attr == "NONAME", attr == "PRIVATE":
		case attr == "DATA":
			rec.Kind = SymbolData
		case attr == "CONSTANT":
			rec.Kind = SymbolConstant
		default:
			return SymbolRecord{}, &MetadataError{Line: lineNo, Text: raw, Msg: "unexpected field " + strconv.Quote(attr)}
		}
	}
	return rec, nil
}

// checkSymbolName returns a description of what is wrong with name, or "".
func checkSymbolName(name string) string {
	if !utf8.ValidString(name) {
		return "symbol is not valid UTF-8"
	}
	if strings.ContainsAny(name, "=\"") {
		return "forwarded or quoted exports are not supported"
	}
	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "symbol contains control or space characters"
		}
	}
	return ""
}

// ReadSymbolFile collects every record of the dump at path.
func ReadSymbolFile(path string) ([]SymbolRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []SymbolRecord
	for rec, err := range ReadSymbols(f) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
