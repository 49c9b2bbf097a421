package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPromptsEmbedded(t *testing.T) {
	t.Parallel()
	p, err := LoadPrompts("", "Университет ИТМО")
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	for name, text := range map[string]string{
		"refine": p.Refine, "multiple_choice": p.MultipleChoice, "condense": p.Condense,
		"variant": p.Variant, "explanation": p.Explanation,
	} {
		if strings.TrimSpace(text) == "" {
			t.Fatalf("prompt %s is empty", name)
		}
		if strings.Contains(text, "{university}") {
			t.Fatalf("prompt %s still has a placeholder", name)
		}
	}
	if !strings.Contains(p.Condense, "Университет ИТМО") {
		t.Fatalf("university not substituted: %q", p.Condense)
	}
	if len(p.Affirmative) == 0 {
		t.Fatalf("expected affirmative tokens")
	}
}

func TestLoadPromptsOverride(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	if err := os.WriteFile(path, []byte("refine: \"Search query about {university}\"\n"), 0o600); err != nil {
		t.Fatalf("write prompts: %v", err)
	}
	p, err := LoadPrompts(path, "MIT")
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	if p.Refine != "Search query about MIT" {
		t.Fatalf("override not applied: %q", p.Refine)
	}
	if p.Variant == "" {
		t.Fatalf("fields missing from the override must keep defaults")
	}
}
