package imagebuilder

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/amd/madctl/internal/manifest"
)

// recognizedGPUArchVars are the dockerfile ARG/ENV names that declare a
// build's supported GPU architecture(s), per spec.md §4.5 step 3.
var recognizedGPUArchVars = []string{
	"MAD_SYSTEM_GPU_ARCHITECTURE",
	"PYTORCH_ROCM_ARCH",
	"GPU_TARGETS",
	"GFX_COMPILATION_ARCH",
	"GPU_ARCHS",
}

// singleArchVars are recognized vars that declare exactly one arch; the
// rest are treated as lists.
var singleArchVars = map[string]bool{
	"MAD_SYSTEM_GPU_ARCHITECTURE": true,
	"GFX_COMPILATION_ARCH":        true,
}

var argOrEnvLine = regexp.MustCompile(`^\s*(ARG|ENV)\s+([A-Za-z0-9_]+)\s*(?:=\s*(.*))?$`)

// gpuArchDeclarations parses a dockerfile's ARG/ENV directives and
// returns the recognized GPU-arch variables it declares, each mapped to
// its (comma/semicolon-split, whitespace-trimmed) declared values.
func gpuArchDeclarations(dockerfilePath string) (map[string][]string, error) {
	f, err := os.Open(dockerfilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	declared := map[string][]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := argOrEnvLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name, value := m[2], m[3]
		if !isRecognizedGPUArchVar(name) || value == "" {
			continue
		}
		declared[name] = splitArchList(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return declared, nil
}

func isRecognizedGPUArchVar(name string) bool {
	for _, v := range recognizedGPUArchVars {
		if v == name {
			return true
		}
	}
	return false
}

func splitArchList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// archCompatible implements the compatibility rule from spec.md §4.5
// step 3: single-arch vars require an exact normalized match; list vars
// require the normalized request to appear in the normalized declared
// list; unknown/undeclared variables are compatible by default.
func archCompatible(declared map[string][]string, requestedArch string) bool {
	if len(declared) == 0 {
		return true
	}
	normRequest := manifest.NormalizeArch(requestedArch)

	for name, values := range declared {
		normValues := make([]string, len(values))
		for i, v := range values {
			normValues[i] = manifest.NormalizeArch(v)
		}

		if singleArchVars[name] {
			if len(normValues) == 0 || normValues[0] != normRequest {
				return false
			}
			continue
		}

		found := false
		for _, v := range normValues {
			if v == normRequest {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hasAnyGPUArchDeclaration reports whether any recognized var was found,
// which drives whether an arch suffix is appended to the image tag.
func hasAnyGPUArchDeclaration(declared map[string][]string) bool {
	return len(declared) > 0
}
