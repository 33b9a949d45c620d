package exportlib

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TargetFile is the build-wide configuration the command reads once: shared
// lists that apply to every target, plus the targets themselves.
//
//	linker: mingw
//	out_dir: dist
//	export_prefixes: [mlir]
//	link_args: [-lws2_32]
//	targets:
//	  - name: mlir_capi
//	    out: mlir_capi.dll
//	    srcs: [capi.o]
//	    deps: [libMLIRCAPIIR.a]
//
// Relative paths resolve against the directory holding the file.
type TargetFile struct {
	Linker         string            `yaml:"linker"`
	OutDir         string            `yaml:"out_dir"`
	ScratchDir     string            `yaml:"scratch_dir"`
	Jobs           int               `yaml:"jobs"`
	ExportPrefixes []string          `yaml:"export_prefixes"`
	ExportPatterns []string          `yaml:"export_patterns"`
	LinkArgs       []string          `yaml:"link_args"`
	Env            map[string]string `yaml:"env"`
	Manifest       bool              `yaml:"manifest"`
	Verify         bool              `yaml:"verify"`
	Targets        []TargetSpec      `yaml:"targets"`

	dir string
}

// TargetSpec is one entry of TargetFile.Targets: the parameters of one
// filtered-export shared library.
type TargetSpec struct {
	Name           string   `yaml:"name"`
	Out            string   `yaml:"out"`
	ImportLibrary  string   `yaml:"import_library"`
	Srcs           []string `yaml:"srcs"`
	Deps           []string `yaml:"deps"`
	LinkArgs       []string `yaml:"link_args"`
	ExportPrefixes []string `yaml:"export_prefixes"`
	ExportPatterns []string `yaml:"export_patterns"`
}

// LoadTargetFile reads and decodes the target file at path. Unknown keys
// are rejected.
func LoadTargetFile(path string) (*TargetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tf TargetFile
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	tf.dir = abs
	return &tf, nil
}

// Configs expands the file into one PipelineConfig per target. Target-level
// prefixes and patterns replace the file-level ones; link args are appended.
func (tf *TargetFile) Configs() ([]*PipelineConfig, error) {
	if len(tf.Targets) == 0 {
		return nil, invalidf("target file defines no targets")
	}

	configs := make([]*PipelineConfig, 0, len(tf.Targets))
	for _, spec := range tf.Targets {
		prefixes, patterns := tf.ExportPrefixes, tf.ExportPatterns
		if len(spec.ExportPrefixes) > 0 || len(spec.ExportPatterns) > 0 {
			prefixes, patterns = spec.ExportPrefixes, spec.ExportPatterns
		}

		config := &PipelineConfig{
			Name:           spec.Name,
			Output:         spec.Out,
			OutDir:         tf.OutDir,
			ImportLibrary:  spec.ImportLibrary,
			Srcs:           spec.Srcs,
			Deps:           spec.Deps,
			LinkArgs:       append(append([]string{}, tf.LinkArgs...), spec.LinkArgs...),
			WorkDir:        tf.dir,
			Env:            tf.Env,
			ExportPrefixes: prefixes,
			ExportPatterns: patterns,
			ScratchDir:     tf.ScratchDir,
			WriteManifest:  tf.Manifest,
			Verify:         tf.Verify,
		}
		if config.ScratchDir != "" {
			config.ScratchDir = config.resolve(config.ScratchDir)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("target %q: %w", spec.Name, err)
		}
		configs = append(configs, config)
	}
	return configs, nil
}
