package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompts is the catalogue of system prompts used by the answer pipeline.
type Prompts struct {
	Refine         string   `yaml:"refine"`
	MultipleChoice string   `yaml:"multiple_choice"`
	Condense       string   `yaml:"condense"`
	Variant        string   `yaml:"variant"`
	Explanation    string   `yaml:"explanation"`
	Affirmative    []string `yaml:"affirmative"`
}

// LoadPrompts decodes the embedded catalogue, overlays the file at path when
// given, and substitutes the university name.
func LoadPrompts(path, university string) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(defaultPrompts, &p); err != nil {
		return Prompts{}, fmt.Errorf("decode default prompts: %w", err)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Prompts{}, fmt.Errorf("read prompts file: %w", err)
		}
		// Fields absent from the override keep their embedded value.
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Prompts{}, fmt.Errorf("decode prompts file %s: %w", path, err)
		}
	}
	r := strings.NewReplacer("{university}", university)
	p.Refine = r.Replace(p.Refine)
	p.MultipleChoice = r.Replace(p.MultipleChoice)
	p.Condense = r.Replace(p.Condense)
	p.Variant = r.Replace(p.Variant)
	p.Explanation = r.Replace(p.Explanation)
	if len(p.Affirmative) == 0 {
		return Prompts{}, fmt.Errorf("prompts: affirmative tokens required")
	}
	return p, nil
}
