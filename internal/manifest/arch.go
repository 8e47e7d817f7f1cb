package manifest

import "strings"

// NormalizeArch maps a vendor-facing GPU SKU name to its compilation
// target (gfx code), per spec.md §4.5 step 3's normalization table. An
// already-normalized "gfx…" value, and any unrecognized value, passes
// through unchanged — this makes NormalizeArch idempotent by
// construction, matching the testable property in spec.md §8.
func NormalizeArch(arch string) string {
	switch strings.ToLower(strings.TrimSpace(arch)) {
	case "mi100":
		return "gfx908"
	case "mi200", "mi210", "mi250":
		return "gfx90a"
	case "mi300", "mi300a":
		return "gfx940"
	case "mi300x":
		return "gfx942"
	default:
		return arch
	}
}

// FilterByArch implements the Build-Manifest Arch Filter shared helper
// (§4.11): given a set of built images, keep entries with no
// gpu_architecture field (legacy, backward-compatible) or whose
// normalized architecture matches the normalized target.
func FilterByArch(images map[string]BuildEntry, target string) map[string]BuildEntry {
	normTarget := NormalizeArch(target)
	out := make(map[string]BuildEntry, len(images))
	for name, entry := range images {
		if entry.GPUArchitecture == "" {
			out[name] = entry
			continue
		}
		if NormalizeArch(entry.GPUArchitecture) == normTarget {
			out[name] = entry
		}
	}
	return out
}
