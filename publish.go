package exportlib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImportTarget is the published pair: the shared library and the import
// library other links resolve against. Consumers depend on it by Name and
// pass LinkInputs to their own link; they never need to know that two files
// are involved.
type ImportTarget struct {
	Name             string     `yaml:"name"`
	SharedLibrary    string     `yaml:"shared_library"`
	InterfaceLibrary string     `yaml:"interface_library"`
	Exports          ExportSpec `yaml:"exports,omitempty"`
}

// LinkInputs returns the arguments a dependent link adds to resolve against
// this library.
func (t *ImportTarget) LinkInputs() []string {
	return []string{t.InterfaceLibrary}
}

// RuntimeFiles returns the files that must ship next to dependent binaries.
func (t *ImportTarget) RuntimeFiles() []string {
	return []string{t.SharedLibrary}
}

// ManifestPath is where WriteManifest places the import manifest.
func ManifestPath(outDir, name string) string {
	return filepath.Join(outDir, name+".import.yaml")
}

// WriteManifest records the target as YAML at path.
func (t *ImportTarget) WriteManifest(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o644)
}

// ReadManifest loads an import manifest written by WriteManifest.
func ReadManifest(path string) (*ImportTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t ImportTarget
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("import manifest %s: %w", path, err)
	}
	if t.Name == "" || t.SharedLibrary == "" || t.InterfaceLibrary == "" {
		return nil, fmt.Errorf("import manifest %s: name, shared_library and interface_library are required", path)
	}
	return &t, nil
}

// importLibraryCandidates lists where toolchains leave the import library
// when the requested path was not honoured.
func importLibraryCandidates(dir, requested, output string) []string {
	stem := strings.TrimSuffix(output, filepath.Ext(output))
	return uniqueStrings([]string{
		requested,
		filepath.Join(dir, output+".if.lib"),
		filepath.Join(dir, stem+".lib"),
		filepath.Join(dir, "lib"+stem+".dll.a"),
		filepath.Join(dir, output+".a"),
	})
}

// locateImportLibrary finds the import library the final link produced.
func locateImportLibrary(dir, requested, output string) (string, error) {
	for _, candidate := range importLibraryCandidates(dir, requested, output) {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrImportLibrary, strings.Join(importLibraryCandidates(dir, requested, output), ", "))
}

// publishPair copies the staged binary and import library into outDir under
// their final names. Either both files are published or neither is.
func publishPair(outDir, binary, binaryName, implib, implibName string) (string, string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", err
	}

	binaryDest := filepath.Join(outDir, binaryName)
	implibDest := filepath.Join(outDir, implibName)

	binaryTmp, err := copyToTemp(binary, binaryDest)
	if err != nil {
		return "", "", err
	}
	implibTmp, err := copyToTemp(implib, implibDest)
	if err != nil {
		os.Remove(binaryTmp)
		return "", "", err
	}

	if err := os.Rename(implibTmp, implibDest); err != nil {
		os.Remove(binaryTmp)
		os.Remove(implibTmp)
		return "", "", err
	}
	if err := os.Rename(binaryTmp, binaryDest); err != nil {
		os.Remove(binaryTmp)
		os.Remove(implibDest)
		return "", "", err
	}
	return binaryDest, implibDest, nil
}

// copyToTemp copies srcPath next to destPath under a temporary name.
func copyToTemp(srcPath, destPath string) (string, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return "", err
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

// Clean removes everything a successful run of config published.
func Clean(config *PipelineConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	outDir := config.outDir()
	var errs []error
	for _, path := range []string{
		filepath.Join(outDir, config.Output),
		filepath.Join(outDir, config.importLibraryName()),
		ManifestPath(outDir, config.Name),
	} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}
