// Package agent implements the retrieval-augmented question answering
// flow: embed the question, retrieve matching literature from the vector
// index, assemble a grounded prompt, and hand it to the model routed for
// the literature-search task.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/genskey/gskai-go/internal/budget"
	"github.com/genskey/gskai-go/internal/embed"
	"github.com/genskey/gskai-go/internal/fault"
	"github.com/genskey/gskai-go/internal/ingest"
	"github.com/genskey/gskai-go/internal/logging"
	"github.com/genskey/gskai-go/internal/vector"
)

// DefaultTopK is the number of documents retrieved per question when the
// caller does not ask for a specific count.
const DefaultTopK = 5

// routingTask is the registry task the agent answers under.
const routingTask = "literature_search"

// noDocumentsAnswer is returned when retrieval comes back empty. The
// dispatcher is not called in that case.
const noDocumentsAnswer = "I could not find any relevant documents in the vector database."

// Router resolves a task name to the model id configured for it.
type Router interface {
	Route(task string) (string, error)
}

// Dispatcher sends a prompt to a registered model and returns its reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, modelID, prompt string) (string, error)
}

// Answer is the result of one question: the generated text plus the ids
// of the documents it was grounded on, in retrieval order.
type Answer struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// QueryAgent wires the embedder, the vector index, the routing table and
// the dispatcher into a single Answer call.
type QueryAgent struct {
	embedder   embed.Embedder
	index      vector.Index
	router     Router
	dispatcher Dispatcher

	// maxContextTokens caps the retrieved-context portion of the prompt.
	maxContextTokens int
}

// New constructs a QueryAgent over the given collaborators.
func New(embedder embed.Embedder, index vector.Index, router Router, dispatcher Dispatcher) *QueryAgent {
	return &QueryAgent{
		embedder:         embedder,
		index:            index,
		router:           router,
		dispatcher:       dispatcher,
		maxContextTokens: budget.DefaultMaxContextTokens,
	}
}

// Answer runs the full retrieval-augmented flow for question. topK <= 0
// selects [DefaultTopK]. Citations are exactly the ids returned by the
// index, in order, regardless of how much context fits the token budget.
func (a *QueryAgent) Answer(ctx context.Context, question string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fault.New(fault.Validation, "agent: question must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	log := logging.FromContext(ctx)
	start := time.Now()

	vectors, err := a.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fault.Wrap(fault.Embedding, err, "agent: embed question")
	}
	if len(vectors) != 1 {
		return nil, fault.New(fault.Embedding, "agent: expected 1 query vector, got %d", len(vectors))
	}

	matches, err := a.index.Query(ctx, ingest.Namespace, vectors[0], topK, nil)
	if err != nil {
		return nil, fmt.Errorf("agent: query index: %w", err)
	}
	if len(matches) == 0 {
		log.InfoContext(ctx, "no documents retrieved", "question_len", len(question))
		return &Answer{Answer: noDocumentsAnswer, Citations: []string{}}, nil
	}

	citations := make([]string, len(matches))
	for i, m := range matches {
		citations[i] = m.ID
	}

	modelID, err := a.router.Route(routingTask)
	if err != nil {
		return nil, fmt.Errorf("agent: route %q: %w", routingTask, err)
	}

	prompt := a.buildPrompt(question, matches)

	text, err := a.dispatcher.Dispatch(ctx, modelID, prompt)
	if err != nil {
		return nil, fmt.Errorf("agent: dispatch to %q: %w", modelID, err)
	}

	log.InfoContext(ctx, "question answered",
		"model_id", modelID,
		"matches", len(matches),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Answer{Answer: text, Citations: citations}, nil
}

// buildPrompt assembles the fixed instruction, the question and one
// context block per match. Context blocks are trimmed to the token
// budget; the question and instructions always survive.
func (a *QueryAgent) buildPrompt(question string, matches []vector.Match) string {
	fixed := fmt.Sprintf("Use the following retrieved documents to answer the question.\n\nQuestion: %s\n\nDocuments:\n", question)

	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = contextBlock(m)
	}
	blocks = budget.TrimBlocks(fixed, blocks, a.maxContextTokens)

	var b strings.Builder
	b.WriteString(fixed)
	for _, block := range blocks {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer using only the documents above. Cite sources by their Source ID.")
	return b.String()
}

// contextBlock renders one retrieved document for the prompt.
func contextBlock(m vector.Match) string {
	title := "(untitled)"
	if t, ok := m.Metadata["title"].(string); ok && t != "" {
		title = t
	}
	return fmt.Sprintf("Source ID: %s\nTitle: %s\n", m.ID, title)
}
