package imagebuilder

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amd/madctl/internal/buildcontext"
)

// candidate is one dockerfile glob match paired with its parsed
// # CONTEXT expression (unparsed text is kept for audit/log purposes).
type candidate struct {
	path     string
	rawExpr  string
	expr     buildcontext.Expr
}

// enumerateCandidates globs dockerfilePrefix+".*" and reads each match's
// first five lines for a "# CONTEXT <expr>" directive.
func enumerateCandidates(dockerfilePrefix string) ([]candidate, error) {
	matches, err := filepath.Glob(dockerfilePrefix + ".*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	candidates := make([]candidate, 0, len(matches))
	for _, path := range matches {
		rawExpr, err := readContextDirective(path)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    path,
			rawExpr: rawExpr,
			expr:    buildcontext.ParseExpr(rawExpr),
		})
	}
	return candidates, nil
}

// readContextDirective reads a dockerfile's first five lines looking
// for "# CONTEXT <expr>".
func readContextDirective(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 5 && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# CONTEXT ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# CONTEXT ")), nil
		}
	}
	return "", scanner.Err()
}

// filterCandidates keeps only candidates whose expression is satisfiable
// against ctx.
func filterCandidates(candidates []candidate, ctx *buildcontext.Context) []candidate {
	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.expr.Eval(ctx) {
			kept = append(kept, c)
		}
	}
	return kept
}

// baseDockerFromDockerfile parses "ARG BASE_DOCKER=<ref>" from a dockerfile.
func baseDockerFromDockerfile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "ARG BASE_DOCKER=") {
			return strings.TrimPrefix(line, "ARG BASE_DOCKER="), nil
		}
	}
	return "", scanner.Err()
}
