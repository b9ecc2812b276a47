package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContextsRespectLayerBoundaries(t *testing.T) {
	violations := collectViolations(filepath.Join("..", "contexts"))
	for _, v := range violations {
		t.Errorf("%s:%d imports %q (%s)", v.File, v.Line, v.Import, v.Rule)
	}
}

func TestDomainImportOfPlatformIsReported(t *testing.T) {
	root := filepath.Join(t.TempDir(), "contexts")
	dir := filepath.Join(root, "evaluation", "sample-service", "domain", "services")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	source := "package services\n\nimport _ \"ocelot/internal/platform/db\"\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(source), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	violations := collectViolations(root)
	if len(violations) == 0 {
		t.Fatalf("expected a violation for domain importing platform code")
	}
	if violations[0].File != "contexts/evaluation/sample-service/domain/services/bad.go" {
		t.Fatalf("unexpected violation path %q", violations[0].File)
	}
}

func TestApplicationImportsAreChecked(t *testing.T) {
	root := filepath.Join(t.TempDir(), "contexts")
	dir := filepath.Join(root, "evaluation", "sample-service", "application", "commands")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	source := "package commands\n\nimport (\n" +
		"\t_ \"ocelot/contexts/evaluation/sample-service/adapters/memory\"\n" +
		"\t_ \"ocelot/contexts/evaluation/other-service/ports\"\n" +
		"\t_ \"ocelot/contexts/evaluation/sample-service/ports\"\n" +
		"\t_ \"ocelot/contracts/gen/events/v1\"\n" +
		"\t_ \"context\"\n)\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(source), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rules := map[string]bool{}
	for _, v := range collectViolations(root) {
		rules[v.Import+" | "+v.Rule] = true
	}
	for _, want := range []string{
		"ocelot/contexts/evaluation/sample-service/adapters/memory | application must not import adapters",
		"ocelot/contexts/evaluation/other-service/ports | cross-service imports are forbidden",
	} {
		if !rules[want] {
			t.Fatalf("missing violation %q in %v", want, rules)
		}
	}
	for key := range rules {
		if strings.HasPrefix(key, "ocelot/contracts") || strings.HasPrefix(key, "context ") ||
			strings.HasPrefix(key, "ocelot/contexts/evaluation/sample-service/ports ") {
			t.Fatalf("allowed import reported: %q", key)
		}
	}
}
