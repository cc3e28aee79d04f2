package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/genskey/gskai-go/internal/fault"
)

// newTestStore builds a non-persisting Store from the default document.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("", DefaultDocument())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func Test_Route(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id, err := s.Route("literature_search")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id != "openai-gpt4" {
		t.Errorf("route: want openai-gpt4, got %s", id)
	}
}

func Test_Route_UnknownTask(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Route("protein_folding")
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("want ErrUnknownTask, got %v", err)
	}
	if fault.KindOf(err) != fault.NotFound {
		t.Errorf("want not_found kind, got %v", fault.KindOf(err))
	}
}

func Test_Route_UnconfiguredTask(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument()
	doc.TaskRouting["data_insight"] = TaskRoute{Primary: ""}
	s, err := New("", doc)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	_, err = s.Route("data_insight")
	if !errors.Is(err, ErrUnconfigured) {
		t.Errorf("want ErrUnconfigured, got %v", err)
	}
	if fault.KindOf(err) != fault.Configuration {
		t.Errorf("want configuration kind, got %v", fault.KindOf(err))
	}
}

func Test_Model_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.Model("no-such-model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("want ErrUnknownModel, got %v", err)
	}
}

func Test_UpdateRouting(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.UpdateRouting("literature_search", "meta-llama3"); err != nil {
		t.Fatalf("update routing: %v", err)
	}
	id, err := s.Route("literature_search")
	if err != nil {
		t.Fatalf("route after update: %v", err)
	}
	if id != "meta-llama3" {
		t.Errorf("route: want meta-llama3, got %s", id)
	}
}

func Test_UpdateRouting_UnknownModelLeavesTableUnchanged(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.UpdateRouting("literature_search", "ghost-model")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("want ErrUnknownModel, got %v", err)
	}

	id, err := s.Route("literature_search")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id != "openai-gpt4" {
		t.Errorf("failed update must not change the table: got %s", id)
	}
}

func Test_UpdateRouting_UnknownTask(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.UpdateRouting("no_such_task", "openai-gpt4")
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("want ErrUnknownTask, got %v", err)
	}
}

func Test_ApplyProfile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if err := s.ApplyProfile("economy"); err != nil {
		t.Fatalf("apply profile: %v", err)
	}

	snap := s.Snapshot()
	for task, route := range snap.TaskRouting {
		if route.Primary != "meta-llama3" {
			t.Errorf("task %s: want meta-llama3, got %s", task, route.Primary)
		}
	}
	if snap.Preferences.DefaultProfile != "economy" {
		t.Errorf("default profile: want economy, got %s", snap.Preferences.DefaultProfile)
	}
}

func Test_ApplyProfile_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	err := s.ApplyProfile("deluxe")
	if !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("want ErrUnknownProfile, got %v", err)
	}

	// Routing table untouched.
	id, err := s.Route("experimental_design")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id != "anthropic-claude3-sonnet" {
		t.Errorf("failed apply must not change the table: got %s", id)
	}
}

func Test_Snapshot_IsDeepCopy(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	snap := s.Snapshot()
	snap.TaskRouting["literature_search"] = TaskRoute{Primary: "meta-llama3"}
	snap.Providers[0].ID = "mutated"

	id, err := s.Route("literature_search")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id != "openai-gpt4" {
		t.Error("mutating a snapshot leaked into the live table")
	}
	if _, err := s.Model("openai-gpt4"); err != nil {
		t.Error("mutating a snapshot leaked into the descriptor set")
	}
}

func Test_Validate_RejectsBadDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"empty model id", func(d *Document) {
			d.Providers[0].ID = ""
		}},
		{"duplicate model id", func(d *Document) {
			d.Providers = append(d.Providers, d.Providers[0])
		}},
		{"unknown family", func(d *Document) {
			d.Providers[0].Family = "mistral"
		}},
		{"route to unknown model", func(d *Document) {
			d.TaskRouting["literature_search"] = TaskRoute{Primary: "ghost"}
		}},
		{"profile names unknown model", func(d *Document) {
			d.Preferences.Profiles["quality"] = Profile{PrimaryModels: []string{"ghost"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := DefaultDocument()
			tt.mutate(&doc)
			if _, err := New("", doc); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func Test_LoadOrInit_SeedsMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cfg", "llm_config.json")
	s, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("load or init: %v", err)
	}

	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("seed file was not written: %v", statErr)
	}
	if got := len(s.Models()); got != 5 {
		t.Errorf("seeded models: want 5, got %d", got)
	}

	// A second load must read the seeded file, not re-seed.
	s2, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := len(s2.Models()); got != 5 {
		t.Errorf("reloaded models: want 5, got %d", got)
	}
}

func Test_Persistence_SurvivesReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "llm_config.json")
	s, err := LoadOrInit(path)
	if err != nil {
		t.Fatalf("load or init: %v", err)
	}
	if err := s.UpdateRouting("data_insight", "google-gemini15-pro"); err != nil {
		t.Fatalf("update routing: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	id, err := reloaded.Route("data_insight")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if id != "google-gemini15-pro" {
		t.Errorf("persisted route: want google-gemini15-pro, got %s", id)
	}
}

func Test_Store_ConcurrentRoutingReadsAndWrites(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var wg sync.WaitGroup

	// Writers flip one task between two valid models while a profile writer
	// rewrites the whole table. All mutations are single-writer, so every
	// call must succeed.
	for i := range 4 {
		model := "openai-gpt4"
		if i%2 == 1 {
			model = "meta-llama3"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if err := s.UpdateRouting("literature_search", model); err != nil {
					t.Errorf("update routing: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 25 {
			if err := s.ApplyProfile("balanced"); err != nil {
				t.Errorf("apply profile: %v", err)
				return
			}
		}
	}()

	// Readers must always resolve the task to a model the store knows, and
	// every snapshot's routing table must be internally consistent with its
	// own provider set.
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id, err := s.Route("literature_search")
				if err != nil {
					t.Errorf("route: %v", err)
					return
				}
				if _, err := s.Model(id); err != nil {
					t.Errorf("route resolved to unknown model %q: %v", id, err)
					return
				}

				snap := s.Snapshot()
				known := make(map[string]bool, len(snap.Providers))
				for _, m := range snap.Providers {
					known[m.ID] = true
				}
				for task, route := range snap.TaskRouting {
					if route.Primary != "" && !known[route.Primary] {
						t.Errorf("snapshot routes %q to model %q absent from its own provider set", task, route.Primary)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
