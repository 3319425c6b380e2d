package importer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptPolicy holds the starter prompt sets synthesized for assistant turns
// that arrive without any.
type PromptPolicy struct {
	// Introductory is used for the first assistant turn in a document.
	Introductory []string `yaml:"introductory"`
	// Continuation is used for every later assistant turn.
	Continuation []string `yaml:"continuation"`
}

// DefaultPrompts returns the built-in policy.
func DefaultPrompts() PromptPolicy {
	return PromptPolicy{
		Introductory: []string{
			"Tell me more about what you can do",
			"I need help with something",
			"How do I get started?",
		},
		Continuation: []string{
			"Thanks, that helps",
			"I have another question",
			"Can you explain that in more detail?",
		},
	}
}

// LoadPromptPolicy reads a YAML policy file. Lists left empty in the file
// fall back to the built-in sets.
func LoadPromptPolicy(path string) (PromptPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptPolicy{}, fmt.Errorf("read prompt policy %q: %w", path, err)
	}

	var p PromptPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return PromptPolicy{}, fmt.Errorf("parse prompt policy %q: %w", path, err)
	}

	def := DefaultPrompts()
	if len(p.Introductory) == 0 {
		p.Introductory = def.Introductory
	}
	if len(p.Continuation) == 0 {
		p.Continuation = def.Continuation
	}
	return p, nil
}

// forTurn picks the set for an assistant turn given how many assistant
// turns precede it in the document. The returned slice is a fresh copy.
func (p PromptPolicy) forTurn(assistantIndex int) []string {
	src := p.Continuation
	if assistantIndex == 0 {
		src = p.Introductory
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
