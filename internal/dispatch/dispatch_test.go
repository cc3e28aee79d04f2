package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/registry"
)

// fakeRegistry resolves a fixed descriptor set.
type fakeRegistry struct {
	models map[string]registry.ModelDescriptor
}

func (f *fakeRegistry) Model(id string) (registry.ModelDescriptor, error) {
	m, ok := f.models[id]
	if !ok {
		return registry.ModelDescriptor{}, fault.New(fault.NotFound, "registry: model %q: unknown model", id)
	}
	return m, nil
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{models: map[string]registry.ModelDescriptor{
		"openai-gpt4": {ID: "openai-gpt4", Family: registry.FamilyOpenAI, BackendModel: "gpt-4-turbo"},
		"meta-llama3": {ID: "meta-llama3", Family: registry.FamilyMeta, BackendModel: "llama3"},
		"odd-family":  {ID: "odd-family", Family: registry.Family("cohere"), BackendModel: "command-r"},
	}}
}

func Test_Dispatch_OfflinePlaceholder(t *testing.T) {
	t.Parallel()

	d, err := New(newFakeRegistry(), &Config{}, true)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	got, err := d.Dispatch(context.Background(), "openai-gpt4", "What is CRISPR?")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := "Mock response for model 'openai-gpt4' with prompt: 'What is CRISPR?...'"
	if got != want {
		t.Errorf("offline response:\n got %q\nwant %q", got, want)
	}
}

func Test_Dispatch_OfflineTruncatesLongPrompt(t *testing.T) {
	t.Parallel()

	d, err := New(newFakeRegistry(), &Config{}, true)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	prompt := strings.Repeat("x", 250)
	got, err := d.Dispatch(context.Background(), "meta-llama3", prompt)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	wantPreview := strings.Repeat("x", promptPreviewLen)
	if !strings.Contains(got, "'"+wantPreview+"...'") {
		t.Errorf("expected %d-char prompt preview, got %q", promptPreviewLen, got)
	}
	if strings.Contains(got, strings.Repeat("x", promptPreviewLen+1)) {
		t.Error("preview exceeds the truncation length")
	}
}

func Test_Dispatch_UnknownModel(t *testing.T) {
	t.Parallel()

	d, err := New(newFakeRegistry(), &Config{}, true)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "ghost", "hello")
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	if fault.KindOf(err) != fault.NotFound {
		t.Errorf("want not_found kind, got %v", fault.KindOf(err))
	}
}

func Test_Dispatch_UnimplementedFamily(t *testing.T) {
	t.Parallel()

	// Online mode so the adapter lookup actually runs.
	d, err := New(newFakeRegistry(), &Config{}, false)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "odd-family", "hello")
	if !errors.Is(err, ErrUnimplementedProvider) {
		t.Errorf("want ErrUnimplementedProvider, got %v", err)
	}
	if fault.KindOf(err) != fault.Configuration {
		t.Errorf("want configuration kind, got %v", fault.KindOf(err))
	}
}

func Test_Dispatch_MissingCredentialsFailAtDispatch(t *testing.T) {
	t.Parallel()

	d, err := New(newFakeRegistry(), &Config{OpenAIAPIKey: ""}, false)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	// Construction is lazy, so the missing key surfaces here, classified as
	// a provider failure.
	_, err = d.Dispatch(context.Background(), "openai-gpt4", "hello")
	if err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
	if fault.KindOf(err) != fault.Provider {
		t.Errorf("want provider kind, got %v", fault.KindOf(err))
	}
}

func Test_New_NilRegistry(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &Config{}, true); err == nil {
		t.Error("expected error for nil registry")
	}
}

func Test_ConfigApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.applyDefaults()
	if cfg.MaxTokens != 4096 {
		t.Errorf("max tokens default: want 4096, got %d", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("temperature default: want 0.2, got %v", cfg.Temperature)
	}
	if cfg.OllamaHost != "http://localhost:11434" {
		t.Errorf("ollama host default: got %q", cfg.OllamaHost)
	}
}
