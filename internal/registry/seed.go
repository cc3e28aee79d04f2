package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultDocument returns the configuration the platform ships with: one
// descriptor per configured model, one routing entry per agent task, and the
// three stock profiles. Used to seed a fresh deployment.
func DefaultDocument() Document {
	return Document{
		Providers: []ModelDescriptor{
			{ID: "openai-gpt4", Family: FamilyOpenAI, BackendModel: "gpt-4-turbo", Name: "GPT-4 Turbo", Description: "Highest quality reasoning and synthesis."},
			{ID: "openai-gpt35", Family: FamilyOpenAI, BackendModel: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Fast and inexpensive for routine tasks."},
			{ID: "anthropic-claude3-sonnet", Family: FamilyAnthropic, BackendModel: "anthropic.claude-3-sonnet", Name: "Claude 3 Sonnet", Description: "Strong long-context literature analysis."},
			{ID: "meta-llama3", Family: FamilyMeta, BackendModel: "llama3", Name: "Llama 3", Description: "Locally served, no per-token cost."},
			{ID: "google-gemini15-pro", Family: FamilyGoogle, BackendModel: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Description: "Long-context multimodal analysis."},
		},
		TaskRouting: map[string]TaskRoute{
			"literature_search":     {Primary: "openai-gpt4"},
			"hypothesis_generation": {Primary: "openai-gpt4"},
			"experimental_design":   {Primary: "anthropic-claude3-sonnet"},
			"data_insight":          {Primary: "openai-gpt35"},
			"regulatory_analysis":   {Primary: "anthropic-claude3-sonnet"},
		},
		Preferences: Preferences{
			DefaultProfile: "balanced",
			Profiles: map[string]Profile{
				"quality":  {PrimaryModels: []string{"openai-gpt4", "anthropic-claude3-sonnet"}},
				"balanced": {PrimaryModels: []string{"openai-gpt35", "openai-gpt4"}},
				"economy":  {PrimaryModels: []string{"meta-llama3", "openai-gpt35"}},
			},
		},
	}
}

// LoadOrInit loads the configuration document from path, seeding it with the
// default document when the file does not exist yet.
func LoadOrInit(path string) (*Store, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return Load(path)
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
			return nil, fmt.Errorf("registry: create config dir: %w", mkErr)
		}
		doc := DefaultDocument()
		if wErr := writeDocument(path, &doc); wErr != nil {
			return nil, wErr
		}
		return New(path, doc)
	default:
		return nil, fmt.Errorf("registry: stat %s: %w", path, err)
	}
}
