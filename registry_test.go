package exportlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkerRegistry(t *testing.T) {
	registry := NewLinkerRegistry()

	assert.Equal(t, []string{"mingw", "lld-link", "msvc"}, registry.Names())
	assert.Len(t, registry.ListLinkers(), 3)

	testCases := []struct {
		name         string
		expectedName string
	}{
		{"mingw", "mingw"},
		{"MinGW", "mingw"},
		{"lld-link", "lld-link"},
		{"MSVC", "msvc"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			linker, err := registry.LinkerFor(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedName, linker.Name())
		})
	}

	_, err := registry.LinkerFor("ld64")
	assert.EqualError(t, err, `no linker named "ld64" (known: mingw, lld-link, msvc)`)
}

func TestLinkerRegistryRegisterReplaces(t *testing.T) {
	registry := NewLinkerRegistry()
	custom := &LLDLinker{Tool: "/opt/llvm/bin/lld-link"}

	registry.Register(custom)
	registry.Register(&fakeLinker{})

	assert.Equal(t, []string{"mingw", "lld-link", "msvc", "fake"}, registry.Names())
	linker, err := registry.LinkerFor("lld-link")
	require.NoError(t, err)
	assert.Same(t, custom, linker)
}

func TestLinkerRegistryDetect(t *testing.T) {
	t.Run("priority order", func(t *testing.T) {
		stubLookPath(t, "lld-link", "x86_64-w64-mingw32-gcc", "link", "def_parser")
		linker, err := NewLinkerRegistry().Detect()
		require.NoError(t, err)
		assert.Equal(t, "mingw", linker.Name())
	})

	t.Run("skips drivers with missing tools", func(t *testing.T) {
		stubLookPath(t, "lld-link", "link")
		linker, err := NewLinkerRegistry().Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "lld-link", linker.Name())
	})

	t.Run("msvc needs def_parser", func(t *testing.T) {
		stubLookPath(t, "link")
		_, err := NewLinkerRegistry().Detect()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable linker found")
		assert.Contains(t, err.Error(), "msvc: def_parser (symbol dump tool) not found in PATH")
	})

	t.Run("linkers without tool checks", func(t *testing.T) {
		stubLookPath(t)
		registry := &LinkerRegistry{}
		registry.Register(&LLDLinker{})
		registry.Register(&fakeLinker{})
		linker, err := registry.Detect()
		require.NoError(t, err)
		assert.Equal(t, "fake", linker.Name())
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := (&LinkerRegistry{}).Detect()
		assert.EqualError(t, err, "no linkers registered")
	})
}

func TestLinkerRegistryResolveByName(t *testing.T) {
	stubLookPath(t)
	linker, err := NewLinkerRegistry().Resolve("msvc")
	require.NoError(t, err)
	assert.IsType(t, &CommandLinker{}, linker)
}
