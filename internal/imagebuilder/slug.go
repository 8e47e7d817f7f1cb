package imagebuilder

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// slugifyModelName turns a hierarchical model name ("group/name") into
// the flat, lowercase token used in image tags ("group_name"), Unicode
// case-folding via golang.org/x/text rather than strings.ToLower so
// non-ASCII model names fold correctly.
func slugifyModelName(name string) string {
	return lowerCaser.String(strings.ReplaceAll(name, "/", "_"))
}

// dockerfileStem strips a path down to its base name without an
// extension, e.g. "scripts/resnet/resnet50.Dockerfile.rocm" -> "resnet50".
func dockerfileStem(dockerfilePath string) string {
	base := dockerfilePath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.Index(base, ".Dockerfile"); idx >= 0 {
		return base[:idx]
	}
	return base
}
