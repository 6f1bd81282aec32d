// Package chunker splits enriched document text into bounded chunks for
// relevance scoring and prompt construction.
package chunker

import (
	"fmt"
	"strings"

	"github.com/docuchat/docqa/source"
)

// charsPerToken is the approximate average characters per token for GPT
// tokenizers.
const charsPerToken = 4

// Config holds chunking configuration.
type Config struct {
	// TargetTokens is the ideal chunk size in tokens.
	TargetTokens int `yaml:"target_tokens"`

	// MaxTokens is the maximum chunk size.
	MaxTokens int `yaml:"max_tokens"`

	// MinTokens is the minimum chunk size; smaller chunks are merged
	// into their neighbor.
	MinTokens int `yaml:"min_tokens"`
}

// DefaultConfig returns sensible chunking defaults.
func DefaultConfig() Config {
	return Config{
		TargetTokens: 1000,
		MaxTokens:    1500,
		MinTokens:    200,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MinTokens <= 0 || c.TargetTokens <= 0 || c.MaxTokens <= 0 {
		return fmt.Errorf("chunk sizes must be positive (min=%d target=%d max=%d)",
			c.MinTokens, c.TargetTokens, c.MaxTokens)
	}
	if c.MinTokens >= c.TargetTokens {
		return fmt.Errorf("min_tokens (%d) must be less than target_tokens (%d)", c.MinTokens, c.TargetTokens)
	}
	if c.TargetTokens > c.MaxTokens {
		return fmt.Errorf("target_tokens (%d) must not exceed max_tokens (%d)", c.TargetTokens, c.MaxTokens)
	}
	return nil
}

// Chunker splits document text into chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, returning an error for invalid configuration.
func New(cfg Config) (*Chunker, error) {
	if cfg.TargetTokens == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// NewDefault creates a Chunker with default configuration.
func NewDefault() *Chunker {
	c, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return c
}

// Split divides content into chunks owned by docID. Markdown headings start
// new sections; sections are packed toward TargetTokens, oversized sections
// are split at paragraph then sentence boundaries, and undersized trailing
// chunks are merged forward.
func (c *Chunker) Split(docID, content string) []source.Chunk {
	var chunks []source.Chunk
	var pending source.Chunk
	pending.DocumentID = docID

	flush := func() {
		if c.tokens(pending.Content) > 0 {
			chunks = append(chunks, c.seal(pending, len(chunks)))
		}
		pending = source.Chunk{DocumentID: docID}
	}

	for _, sec := range parseSections(content) {
		secTokens := c.tokens(sec.content)

		if secTokens > c.cfg.MaxTokens {
			flush()
			chunks = append(chunks, c.splitOversized(docID, sec, len(chunks))...)
			continue
		}

		if cur := c.tokens(pending.Content); cur > 0 && cur+secTokens > c.cfg.TargetTokens {
			flush()
		}

		if pending.Section == "" {
			pending.Section = sec.heading
		}
		if pending.Content != "" {
			pending.Content += "\n\n"
		}
		pending.Content += sec.content
	}
	flush()

	return c.mergeSmall(chunks)
}

// section is a heading plus the content under it.
type section struct {
	heading string
	content string
}

// parseSections splits markdown content at headings, keeping code blocks
// intact.
func parseSections(content string) []section {
	var sections []section
	var cur section
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		if !inFence && strings.HasPrefix(trimmed, "#") {
			if strings.TrimSpace(cur.content) != "" {
				sections = append(sections, cur)
			}
			cur = section{
				heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
				content: line,
			}
			continue
		}

		if cur.content != "" {
			cur.content += "\n"
		}
		cur.content += line
	}

	if strings.TrimSpace(cur.content) != "" {
		sections = append(sections, cur)
	}
	return sections
}

// splitOversized breaks a section exceeding MaxTokens at paragraph
// boundaries, falling back to sentences and finally hard character cuts.
func (c *Chunker) splitOversized(docID string, sec section, startIndex int) []source.Chunk {
	var chunks []source.Chunk
	cur := source.Chunk{DocumentID: docID, Section: sec.heading}

	flush := func() {
		if c.tokens(cur.Content) > 0 {
			chunks = append(chunks, c.seal(cur, startIndex+len(chunks)))
		}
		cur = source.Chunk{DocumentID: docID, Section: sec.heading}
	}

	for _, para := range splitParagraphs(sec.content) {
		paraTokens := c.tokens(para)

		if paraTokens > c.cfg.MaxTokens {
			flush()
			for _, piece := range c.splitLongParagraph(para) {
				chunks = append(chunks, c.seal(source.Chunk{
					DocumentID: docID,
					Section:    sec.heading,
					Content:    piece,
				}, startIndex+len(chunks)))
			}
			continue
		}

		if t := c.tokens(cur.Content); t > 0 && t+paraTokens > c.cfg.TargetTokens {
			flush()
		}
		if cur.Content != "" {
			cur.Content += "\n\n"
		}
		cur.Content += para
	}
	flush()

	return chunks
}

// splitParagraphs splits at blank lines outside code fences.
func splitParagraphs(content string) []string {
	var paragraphs []string
	var cur strings.Builder
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		if !inFence && trimmed == "" {
			if cur.Len() > 0 {
				paragraphs = append(paragraphs, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
			continue
		}

		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}

	if cur.Len() > 0 {
		paragraphs = append(paragraphs, strings.TrimSpace(cur.String()))
	}
	return paragraphs
}

// splitLongParagraph packs sentences up to TargetTokens; sentence-free runs
// are hard-cut at the MaxTokens character equivalent.
func (c *Chunker) splitLongParagraph(para string) []string {
	sentences := splitSentences(para)
	if len(sentences) <= 1 {
		return c.hardCut(para)
	}

	var pieces []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && c.tokens(cur.String())+c.tokens(s) > c.cfg.TargetTokens {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		pieces = append(pieces, cur.String())
	}
	return pieces
}

// hardCut slices text at rune boundaries so MaxTokens is never exceeded.
func (c *Chunker) hardCut(text string) []string {
	maxChars := c.cfg.MaxTokens * charsPerToken
	runes := []rune(text)

	var pieces []string
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[i:end]))
	}
	return pieces
}

// splitSentences splits text on sentence-ending punctuation followed by a
// space or newline.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] != '.' && runes[i] != '?' && runes[i] != '!' {
			continue
		}
		if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n' {
			sentences = append(sentences, strings.TrimSpace(cur.String()))
			cur.Reset()
			if i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
		}
	}

	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// mergeSmall combines chunks below MinTokens with their successor when the
// result stays within MaxTokens, then re-indexes.
func (c *Chunker) mergeSmall(chunks []source.Chunk) []source.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	var result []source.Chunk
	for i := 0; i < len(chunks); i++ {
		cur := chunks[i]
		if cur.TokenCount < c.cfg.MinTokens && i < len(chunks)-1 {
			combined := cur.Content + "\n\n" + chunks[i+1].Content
			if t := c.tokens(combined); t <= c.cfg.MaxTokens {
				chunks[i+1] = source.Chunk{
					DocumentID: cur.DocumentID,
					Section:    cur.Section,
					Content:    combined,
					TokenCount: t,
				}
				continue
			}
		}
		result = append(result, cur)
	}

	for i := range result {
		result[i].Index = i
	}
	return result
}

// seal sets the index and token count for a finished chunk.
func (c *Chunker) seal(chunk source.Chunk, index int) source.Chunk {
	chunk.Index = index
	chunk.TokenCount = c.tokens(chunk.Content)
	return chunk
}

// tokens estimates token count with the chars/token heuristic.
func (c *Chunker) tokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + charsPerToken - 1) / charsPerToken
}
