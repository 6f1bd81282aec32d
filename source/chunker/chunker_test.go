package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split_SimpleDocument(t *testing.T) {
	c := NewDefault()

	content := `# Introduction

This is the introduction section.

## Policies

Some policy content.

## Contacts

Who to reach and how.
`

	chunks := c.Split("doc.handbook", content)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.Equal(t, "doc.handbook", chunk.DocumentID)
		assert.NotEmpty(t, chunk.Content)
		assert.GreaterOrEqual(t, chunk.Index, 0)
		assert.Greater(t, chunk.TokenCount, 0)
	}
}

func TestChunker_Split_EmptyContent(t *testing.T) {
	c := NewDefault()
	assert.Empty(t, c.Split("doc.x", ""))
	assert.Empty(t, c.Split("doc.x", "   \n\n  "))
}

func TestChunker_Split_RespectsMaxTokens(t *testing.T) {
	c, err := New(Config{TargetTokens: 50, MaxTokens: 80, MinTokens: 10})
	require.NoError(t, err)

	// One long run of sentences that must be split.
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("This sentence pads out the section to force splitting. ")
	}

	chunks := c.Split("doc.big", sb.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 80, "chunk %d exceeds MaxTokens", chunk.Index)
	}
}

func TestChunker_Split_KeepsCodeBlocksIntact(t *testing.T) {
	c, err := New(Config{TargetTokens: 50, MaxTokens: 100, MinTokens: 10})
	require.NoError(t, err)

	content := "# Example\n\n```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```\n\nTrailing text."
	chunks := c.Split("doc.code", content)

	var found bool
	for _, chunk := range chunks {
		if strings.Contains(chunk.Content, "```go") {
			found = true
			assert.Contains(t, chunk.Content, "func main()")
			assert.True(t, strings.Count(chunk.Content, "```") >= 2, "fence should close in the same chunk")
		}
	}
	assert.True(t, found, "code block should survive chunking")
}

func TestChunker_Split_SectionHeadingsCarried(t *testing.T) {
	c := NewDefault()

	chunks := c.Split("doc.s", "# Onboarding\n\nWelcome text that fills the section.")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "Onboarding", chunks[0].Section)
}

func TestChunker_Split_IndicesSequential(t *testing.T) {
	c, err := New(Config{TargetTokens: 30, MaxTokens: 60, MinTokens: 5})
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("## Heading\n\nParagraph content for this section goes here.\n\n")
	}

	chunks := c.Split("doc.i", sb.String())
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults valid", DefaultConfig(), false},
		{"zero min", Config{TargetTokens: 100, MaxTokens: 150, MinTokens: 0}, true},
		{"min above target", Config{TargetTokens: 100, MaxTokens: 150, MinTokens: 100}, true},
		{"target above max", Config{TargetTokens: 200, MaxTokens: 150, MinTokens: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
