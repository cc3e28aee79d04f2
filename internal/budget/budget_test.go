package budget

import (
	"strings"
	"testing"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"shorter than one token rounds up", "abc", 1},
		{"exact multiple", "abcdefgh", 2},
		{"prose", strings.Repeat("a", 400), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.in); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func Test_TrimBlocks_AllFit(t *testing.T) {
	t.Parallel()

	blocks := []string{"aaaa", "bbbb", "cccc"}
	got := TrimBlocks("fixed prompt", blocks, 1000)
	if len(got) != 3 {
		t.Fatalf("want all 3 blocks kept, got %d", len(got))
	}
}

func Test_TrimBlocks_DropsLeastRelevantFirst(t *testing.T) {
	t.Parallel()

	// fixed costs 5 tokens, each block 25 tokens; budget 60 fits two blocks.
	fixed := strings.Repeat("f", 20)
	block := strings.Repeat("b", 100)
	blocks := []string{block, block, block}

	got := TrimBlocks(fixed, blocks, 60)
	if len(got) != 2 {
		t.Fatalf("want 2 blocks kept, got %d", len(got))
	}
	// Retained blocks are the leading (most relevant) ones.
	if got[0] != blocks[0] || got[1] != blocks[1] {
		t.Error("kept blocks are not the leading prefix")
	}
}

func Test_TrimBlocks_SingleOversizedBlock(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", 4*DefaultMaxContextTokens)
	got := TrimBlocks("question", []string{huge}, 100)
	if len(got) != 0 {
		t.Errorf("want 0 blocks when the first block overflows, got %d", len(got))
	}
}

func Test_TrimBlocks_ZeroBudgetUsesDefault(t *testing.T) {
	t.Parallel()

	blocks := []string{"small", "also small"}
	got := TrimBlocks("fixed", blocks, 0)
	if len(got) != 2 {
		t.Errorf("want default budget to keep both blocks, got %d", len(got))
	}
}
