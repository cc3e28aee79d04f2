// Package registry owns the model catalogue and the task routing table.
// Both live in a single JSON configuration document, loaded wholesale at
// startup and written back wholesale after every successful administrative
// mutation. The Store is the single authority for task → model resolution;
// routes are resolved at call time, never cached, so administrative updates
// take effect immediately.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/genskey/gskai-go/internal/fault"
)

// Family identifies a provider family: a group of model ids sharing one
// backend integration and failure-handling strategy. The set is closed —
// a descriptor naming an unknown family is rejected at load time, so family
// resolution never happens per call by re-parsing the model id string.
type Family string

const (
	// FamilyOpenAI is the OpenAI chat completion backend.
	FamilyOpenAI Family = "openai"
	// FamilyAnthropic is the Anthropic Claude backend (served through a
	// Bedrock-compatible endpoint).
	FamilyAnthropic Family = "anthropic"
	// FamilyMeta is the Meta Llama backend (served by Ollama).
	FamilyMeta Family = "meta"
	// FamilyGoogle is the Google Gemini backend.
	FamilyGoogle Family = "google"
)

// knownFamilies is the closed family set used for load-time validation.
var knownFamilies = map[Family]bool{
	FamilyOpenAI:    true,
	FamilyAnthropic: true,
	FamilyMeta:      true,
	FamilyGoogle:    true,
}

// Typed sentinel errors. Wrapped with per-call context via %w, so callers
// match with errors.Is and classify with fault.KindOf.
var (
	// ErrUnknownTask means the task name has no routing table entry.
	ErrUnknownTask = fault.New(fault.NotFound, "unknown task")
	// ErrUnconfigured means the routing entry exists but names no primary
	// model. Operationally distinct from an unknown task.
	ErrUnconfigured = fault.New(fault.Configuration, "no primary model configured")
	// ErrUnknownModel means the model id is absent from the descriptor set.
	ErrUnknownModel = fault.New(fault.NotFound, "unknown model")
	// ErrUnknownProfile means the named profile does not exist.
	ErrUnknownProfile = fault.New(fault.NotFound, "unknown profile")
)

// ModelDescriptor describes one configured model. The JSON field names
// mirror the platform's llm_config.json document.
type ModelDescriptor struct {
	// ID is the routing-visible model identifier (e.g. "openai-gpt4").
	ID string `json:"id"`
	// Family is the provider family this model belongs to.
	Family Family `json:"provider"`
	// BackendModel is the concrete upstream model name the family adapter
	// sends to its backend (e.g. "gpt-4-turbo"). Resolved once here rather
	// than mapped inside each adapter.
	BackendModel string `json:"backend_model"`
	// Name is the human-readable display name.
	Name string `json:"name"`
	// Description is free-form display metadata.
	Description string `json:"description,omitempty"`
}

// TaskRoute is one routing table entry.
type TaskRoute struct {
	// Primary is the model id this task resolves to. Empty means the task
	// is known but unconfigured.
	Primary string `json:"primary"`
}

// Profile bulk-assigns a default model to every task.
type Profile struct {
	// PrimaryModels lists the profile's preferred models; the first entry
	// becomes every task's primary when the profile is applied.
	PrimaryModels []string `json:"primary_models"`
}

// Preferences holds the profile catalogue and the active profile name.
type Preferences struct {
	// DefaultProfile is the most recently applied profile name.
	DefaultProfile string `json:"default_profile,omitempty"`
	// Profiles maps profile name to its definition.
	Profiles map[string]Profile `json:"profiles,omitempty"`
}

// Document is the persisted configuration: the authoritative model set, the
// task routing table, and the user profiles, stored as one structured file.
type Document struct {
	// Providers is the authoritative set RoutingTable updates validate against.
	Providers []ModelDescriptor `json:"llm_providers"`
	// TaskRouting maps task name to its route.
	TaskRouting map[string]TaskRoute `json:"task_routing"`
	// Preferences holds profiles.
	Preferences Preferences `json:"user_preferences"`
}

// Store is the process-wide routing/model configuration authority.
// Reads take a shared lock and return consistent snapshots; mutations are
// single-writer and persist the whole document before returning, rolling
// back the in-memory state if persistence fails.
type Store struct {
	// path is the JSON document location; empty disables persistence (tests).
	path string

	// mu guards doc and byID.
	mu sync.RWMutex

	// doc is the current configuration document.
	doc Document

	// byID indexes descriptors by model id, rebuilt on every mutation.
	byID map[string]ModelDescriptor
}

// Load reads the configuration document from path and validates it.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	return New(path, doc)
}

// New constructs a Store around an in-memory document, validating it first.
// An empty path disables persistence.
func New(path string, doc Document) (*Store, error) {
	s := &Store{path: path, doc: doc}
	if err := s.validate(&doc); err != nil {
		return nil, err
	}
	s.byID = indexByID(doc.Providers)
	return s, nil
}

// validate enforces the document invariants: descriptor families belong to
// the closed set, ids are unique, and every configured primary exists in the
// descriptor set. The table must never be loadable in a state where a task
// maps to a non-existent model.
func (s *Store) validate(doc *Document) error {
	ids := make(map[string]bool, len(doc.Providers))
	for _, m := range doc.Providers {
		if m.ID == "" {
			return fault.New(fault.Validation, "registry: model descriptor with empty id")
		}
		if ids[m.ID] {
			return fault.New(fault.Validation, "registry: duplicate model id %q", m.ID)
		}
		if !knownFamilies[m.Family] {
			return fault.New(fault.Validation, "registry: model %q has unknown provider family %q", m.ID, m.Family)
		}
		ids[m.ID] = true
	}
	for task, route := range doc.TaskRouting {
		if route.Primary != "" && !ids[route.Primary] {
			return fault.New(fault.Validation, "registry: task %q routes to unknown model %q", task, route.Primary)
		}
	}
	for name, profile := range doc.Preferences.Profiles {
		for _, id := range profile.PrimaryModels {
			if !ids[id] {
				return fault.New(fault.Validation, "registry: profile %q names unknown model %q", name, id)
			}
		}
	}
	return nil
}

// indexByID builds the model-id lookup map.
func indexByID(models []ModelDescriptor) map[string]ModelDescriptor {
	byID := make(map[string]ModelDescriptor, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}
	return byID
}

// Route resolves a task name to its primary model id at call time.
func (s *Store) Route(task string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.doc.TaskRouting[task]
	if !ok {
		return "", fmt.Errorf("registry: task %q: %w", task, ErrUnknownTask)
	}
	if route.Primary == "" {
		return "", fmt.Errorf("registry: task %q: %w", task, ErrUnconfigured)
	}
	return route.Primary, nil
}

// Model returns the descriptor for a model id.
func (s *Store) Model(id string) (ModelDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return ModelDescriptor{}, fmt.Errorf("registry: model %q: %w", id, ErrUnknownModel)
	}
	return m, nil
}

// Models returns the descriptor set in document order.
func (s *Store) Models() []ModelDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ModelDescriptor, len(s.doc.Providers))
	copy(out, s.doc.Providers)
	return out
}

// Snapshot returns a deep copy of the current document for concurrent
// readers (e.g. the GET /api/llm-config handler).
func (s *Store) Snapshot() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDocument(&s.doc)
}

// UpdateRouting points a task's primary at a model id. Fails with
// ErrUnknownTask or ErrUnknownModel without side effect; on success the
// change is committed atomically and persisted wholesale.
func (s *Store) UpdateRouting(task, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.TaskRouting[task]; !ok {
		return fmt.Errorf("registry: task %q: %w", task, ErrUnknownTask)
	}
	if _, ok := s.byID[modelID]; !ok {
		return fmt.Errorf("registry: model %q: %w", modelID, ErrUnknownModel)
	}

	next := copyDocument(&s.doc)
	next.TaskRouting[task] = TaskRoute{Primary: modelID}
	return s.commit(next)
}

// ApplyProfile bulk-sets every task's primary model to the profile's first
// primary model. All-or-nothing: on any failure the table is unchanged.
func (s *Store) ApplyProfile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.doc.Preferences.Profiles[name]
	if !ok {
		return fmt.Errorf("registry: profile %q: %w", name, ErrUnknownProfile)
	}
	if len(profile.PrimaryModels) == 0 {
		return fault.New(fault.Configuration, "registry: profile %q has no primary models", name)
	}
	primary := profile.PrimaryModels[0]
	if _, ok := s.byID[primary]; !ok {
		return fmt.Errorf("registry: profile %q primary %q: %w", name, primary, ErrUnknownModel)
	}

	next := copyDocument(&s.doc)
	for task := range next.TaskRouting {
		next.TaskRouting[task] = TaskRoute{Primary: primary}
	}
	next.Preferences.DefaultProfile = name
	return s.commit(next)
}

// commit persists the candidate document and, only on success, makes it the
// live one. Callers must hold the write lock. The in-memory table therefore
// never diverges from the persisted file.
func (s *Store) commit(next Document) error {
	if s.path != "" {
		if err := writeDocument(s.path, &next); err != nil {
			return err
		}
	}
	s.doc = next
	s.byID = indexByID(next.Providers)
	return nil
}

// writeDocument writes the document wholesale via temp file + rename so a
// crash mid-write never leaves a truncated config on disk.
func writeDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".llm_config-*.json")
	if err != nil {
		return fmt.Errorf("registry: create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("registry: replace config: %w", err)
	}
	return nil
}

// copyDocument deep-copies a document so snapshots and candidate mutations
// never alias live state.
func copyDocument(doc *Document) Document {
	out := Document{
		Providers:   make([]ModelDescriptor, len(doc.Providers)),
		TaskRouting: make(map[string]TaskRoute, len(doc.TaskRouting)),
		Preferences: Preferences{
			DefaultProfile: doc.Preferences.DefaultProfile,
			Profiles:       make(map[string]Profile, len(doc.Preferences.Profiles)),
		},
	}
	copy(out.Providers, doc.Providers)
	for task, route := range doc.TaskRouting {
		out.TaskRouting[task] = route
	}
	for name, profile := range doc.Preferences.Profiles {
		models := make([]string, len(profile.PrimaryModels))
		copy(models, profile.PrimaryModels)
		out.Preferences.Profiles[name] = Profile{PrimaryModels: models}
	}
	return out
}
