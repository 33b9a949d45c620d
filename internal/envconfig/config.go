// Package envconfig reads the environment variables understood by the
// exportlib command. The library itself never reads the environment.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via EXPORTLIB_DEBUG in the environment
	Debug bool
	// Set via EXPORTLIB_LINKER in the environment
	Linker string
	// Set via EXPORTLIB_JOBS in the environment
	Jobs int
	// Set via EXPORTLIB_TMPDIR in the environment
	TmpDir string
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"EXPORTLIB_DEBUG":  {"EXPORTLIB_DEBUG", Debug, "Show additional debug information (e.g. EXPORTLIB_DEBUG=1)"},
		"EXPORTLIB_LINKER": {"EXPORTLIB_LINKER", Linker, "Linker driver to use when --linker is not given (mingw, lld-link, msvc)"},
		"EXPORTLIB_JOBS":   {"EXPORTLIB_JOBS", Jobs, "Maximum number of targets built concurrently (default 1)"},
		"EXPORTLIB_TMPDIR": {"EXPORTLIB_TMPDIR", TmpDir, "Location for scratch link directories"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = false
	if debug := clean("EXPORTLIB_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	Linker = strings.ToLower(clean("EXPORTLIB_LINKER"))

	Jobs = 1
	if jobs := clean("EXPORTLIB_JOBS"); jobs != "" {
		val, err := strconv.Atoi(jobs)
		if err != nil || val <= 0 {
			slog.Error("invalid setting must be greater than zero", "EXPORTLIB_JOBS", jobs, "error", err)
		} else {
			Jobs = val
		}
	}

	TmpDir = clean("EXPORTLIB_TMPDIR")
}
