// Package budget provides token budget estimation and context trimming for
// prompt assembly. Because the core supports multiple LLM backends with
// different tokenizers, it uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). This deliberately under-estimates
// so prompts leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in
	// tokens. Conservative enough to fit within 8k-context models while
	// leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimBlocks drops trailing context blocks until fixed plus the remaining
// blocks fit within maxTokens. fixed is the prompt text that must survive
// (template, question); blocks are ordered most-relevant-first, so the least
// relevant context is dropped. Returns the retained prefix of blocks; an
// empty slice when even one block overflows the budget.
func TrimBlocks(fixed string, blocks []string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	remaining := maxTokens - Estimate(fixed)
	kept := 0
	for _, b := range blocks {
		cost := Estimate(b)
		if cost > remaining {
			break
		}
		remaining -= cost
		kept++
	}
	return blocks[:kept]
}
