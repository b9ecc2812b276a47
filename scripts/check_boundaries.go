package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	modulePath = "ocelot"
	// servicePlaceholder stands for the import path of the file's own service.
	servicePlaceholder = "{service}"
)

// layerAllowlists lists the non-stdlib imports each guarded layer may use.
// Layers without an entry (adapters, transport, module root) are only
// checked for cross-service imports.
var layerAllowlists = map[string][]string{
	"domain": {
		servicePlaceholder + "/domain",
	},
	"application": {
		servicePlaceholder + "/application",
		servicePlaceholder + "/domain",
		servicePlaceholder + "/ports",
		modulePath + "/contracts",
	},
	"ports": {
		servicePlaceholder + "/domain",
		modulePath + "/contracts",
		modulePath + "/internal/shared",
	},
}

// runtimePrefixes are process wiring packages no guarded layer may reach.
var runtimePrefixes = []string{
	modulePath + "/internal/platform",
	modulePath + "/internal/app",
	modulePath + "/cmd",
}

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations := collectViolations(root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

// collectViolations walks root, which must be a contexts/ directory laid out
// as contexts/<context>/<service>/<layer>/...
func collectViolations(root string) []violation {
	var violations []violation

	base := filepath.Dir(filepath.Clean(root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		relative, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		normalized := filepath.ToSlash(relative)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}

		servicePath := strings.Join([]string{modulePath, "contexts", parts[1], parts[2]}, "/")
		violations = append(violations, checkFile(path, normalized, parts[3], servicePath)...)
		return nil
	})

	return violations
}

func checkFile(path string, normalizedPath string, layer string, servicePath string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	report := func(line int, importPath string, rule string) {
		violations = append(violations, violation{File: normalizedPath, Line: line, Import: importPath, Rule: rule})
	}

	allowlist, guarded := layerAllowlists[layer]
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		line := fset.Position(imp.Pos()).Line

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePath) {
			report(line, importPath, "cross-service imports are forbidden")
		}
		if !guarded || isStdlib(importPath) {
			continue
		}
		if strings.Contains(importPath, "/adapters/") || strings.HasSuffix(importPath, "/adapters") {
			report(line, importPath, layer+" must not import adapters")
		}
		if isAllowed(importPath, runtimePrefixes) {
			report(line, importPath, layer+" must not import runtime infrastructure")
		}
		if !isAllowed(importPath, expand(allowlist, servicePath)) {
			report(line, importPath, layer+" import is outside explicit allowlist")
		}
	}
	return violations
}

func expand(prefixes []string, servicePath string) []string {
	expanded := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		expanded = append(expanded, strings.Replace(prefix, servicePlaceholder, servicePath, 1))
	}
	return expanded
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

// isStdlib treats any path whose first element has no dot as standard
// library, except this module's own packages.
func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
