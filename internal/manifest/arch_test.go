package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeArch(t *testing.T) {
	cases := map[string]string{
		"mi100":   "gfx908",
		"mi200":   "gfx90a",
		"mi210":   "gfx90a",
		"mi250":   "gfx90a",
		"mi300":   "gfx940",
		"mi300a":  "gfx940",
		"mi300x":  "gfx942",
		"gfx908":  "gfx908",
		"unknown": "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeArch(in), "input=%s", in)
	}
}

func TestNormalizeArchIdempotent(t *testing.T) {
	for _, in := range []string{"mi100", "mi300x", "gfx90a", "weird-thing"} {
		once := NormalizeArch(in)
		twice := NormalizeArch(once)
		assert.Equal(t, once, twice)
	}
}

func TestFilterByArch(t *testing.T) {
	images := map[string]BuildEntry{
		"A": {GPUArchitecture: "gfx908"},
		"B": {GPUArchitecture: "gfx942"},
		"C": {},
	}

	filtered := FilterByArch(images, "gfx908")
	_, hasA := filtered["A"]
	_, hasB := filtered["B"]
	_, hasC := filtered["C"]

	assert.True(t, hasA)
	assert.False(t, hasB)
	assert.True(t, hasC)
}

func TestFilterByArchIdempotent(t *testing.T) {
	images := map[string]BuildEntry{
		"A": {GPUArchitecture: "gfx908"},
		"B": {GPUArchitecture: "gfx942"},
		"C": {},
	}

	once := FilterByArch(images, "mi100")
	twice := FilterByArch(once, "mi100")
	assert.Equal(t, once, twice)
}

func TestFilterByArchPreservesLegacyEntries(t *testing.T) {
	images := map[string]BuildEntry{
		"legacy": {},
	}
	for _, target := range []string{"gfx908", "gfx90a", "gfx940", "gfx942", "mi100"} {
		filtered := FilterByArch(images, target)
		_, ok := filtered["legacy"]
		assert.True(t, ok, "target=%s", target)
	}
}
