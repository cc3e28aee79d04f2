// Package dispatch turns a routed model id and a prompt into a text
// completion. Each provider family owns one backend integration (built on
// the eino chat-model adapters) and one failure mapping: upstream transport
// or auth failures surface as typed provider errors and are never retried
// here — retry policy belongs to the caller.
//
// The family of a model is read from its registry descriptor, which resolved
// it once at load time; dispatch never re-parses the id string.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/registry"
)

// promptPreviewLen is how much of the prompt the offline placeholder echoes.
const promptPreviewLen = 100

// systemPrompt is the fixed system message sent with every dispatched prompt.
const systemPrompt = "You are a helpful assistant."

// ErrUnimplementedProvider means the model's family has no adapter in this
// build. With families validated at registry load this indicates a family
// whose backend integration is missing, not a typo in the model id.
var ErrUnimplementedProvider = fault.New(fault.Configuration, "provider family not implemented")

// chatModel is the subset of the eino chat-model contract dispatch needs.
type chatModel interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// builder constructs the family's chat model for a concrete backend model
// name. Builders are invoked lazily on first dispatch and the result cached.
type builder func(ctx context.Context, backendModel string) (chatModel, error)

// Registry is the task/model resolution surface dispatch depends on.
type Registry interface {
	// Model returns the descriptor for a model id.
	Model(id string) (registry.ModelDescriptor, error)
}

// Dispatcher routes prompts to provider family adapters.
// Safe for concurrent use.
type Dispatcher struct {
	// registry resolves model ids to descriptors.
	registry Registry

	// offline, when true, short-circuits every dispatch with a
	// deterministic placeholder and never contacts a backend. Set once at
	// construction; it must not change mid-process.
	offline bool

	// builders maps each implemented family to its adapter constructor.
	builders map[registry.Family]builder

	// mu guards models.
	mu sync.Mutex

	// models caches constructed chat models keyed by family + backend model.
	models map[string]chatModel
}

// New constructs a Dispatcher. When offline is true no backend is ever
// contacted and no credentials are required.
func New(reg Registry, cfg *Config, offline bool) (*Dispatcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("dispatch: registry must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()

	return &Dispatcher{
		registry: reg,
		offline:  offline,
		builders: familyBuilders(cfg),
		models:   make(map[string]chatModel),
	}, nil
}

// Dispatch produces a completion for the prompt using the named model.
// In offline mode it returns a deterministic placeholder embedding the model
// id and a prefix of the prompt, over the same signature and success path.
func (d *Dispatcher) Dispatch(ctx context.Context, modelID, prompt string) (string, error) {
	desc, err := d.registry.Model(modelID)
	if err != nil {
		return "", err
	}

	if d.offline {
		return offlineResponse(modelID, prompt), nil
	}

	cm, err := d.adapterFor(ctx, desc)
	if err != nil {
		return "", err
	}

	msg, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fault.Wrap(fault.Provider, err, "dispatch: %s backend failed for model %q", desc.Family, modelID)
	}
	return msg.Content, nil
}

// adapterFor returns the cached chat model for a descriptor, constructing it
// on first use.
func (d *Dispatcher) adapterFor(ctx context.Context, desc registry.ModelDescriptor) (chatModel, error) {
	build, ok := d.builders[desc.Family]
	if !ok {
		return nil, fmt.Errorf("dispatch: family %q for model %q: %w", desc.Family, desc.ID, ErrUnimplementedProvider)
	}

	key := string(desc.Family) + "/" + desc.BackendModel

	d.mu.Lock()
	defer d.mu.Unlock()

	if cm, ok := d.models[key]; ok {
		return cm, nil
	}
	cm, err := build(ctx, desc.BackendModel)
	if err != nil {
		return nil, fault.Wrap(fault.Provider, err, "dispatch: failed to initialise %s adapter", desc.Family)
	}
	d.models[key] = cm
	return cm, nil
}

// offlineResponse is the deterministic offline-mode placeholder. It embeds
// the model id and a prefix of the prompt so callers and tests can assert
// the routed model without a live backend.
func offlineResponse(modelID, prompt string) string {
	preview := prompt
	if len(preview) > promptPreviewLen {
		preview = preview[:promptPreviewLen]
	}
	return fmt.Sprintf("Mock response for model '%s' with prompt: '%s...'", modelID, preview)
}
