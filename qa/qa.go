// Package qa answers questions strictly from ingested documents. Chunks are
// ranked by word overlap with the question and the best ones are forwarded
// to the LLM inside a document-grounded prompt.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/docuchat/docqa/llm"
	"github.com/docuchat/docqa/source"
)

// defaultTopK is how many top-scoring chunks are forwarded to the LLM.
const defaultTopK = 5

// Canned responses for the two empty-context cases.
const (
	answerNoDocuments = "I don't have any documents loaded yet. Please upload some documents first, and I'll be happy to help you analyze them!"

	answerNoRelevantChunks = "I couldn't find specific information about that in the documents you've provided. However, I can help you with general questions or suggest what kind of information might be useful to look for. Could you rephrase your question or let me know what specific aspect you'd like to explore?"
)

const systemPrompt = `You are a knowledgeable and helpful assistant who specializes in analyzing documents. Your top priority is to answer questions as directly, precisely, and to-the-point as possible, while still being friendly and helpful.

CORE PRINCIPLES:
1. Directness: Start with a clear, concise answer to the question.
2. Precision: Be as specific and succinct as possible. Avoid unnecessary elaboration unless asked.
3. Document Grounding: Base your answer on the provided documents.
4. Reasoning: Only provide detailed reasoning or analysis if the question requests it, or if clarification is needed.
5. Conversational Tone: Remain approachable and helpful.

WHEN ANSWERING:
- Begin with a direct, precise answer.
- Only elaborate with reasoning or details if the question asks for it or if it improves clarity.
- Reference specific parts of the documents if relevant.
- If the answer is not in the documents, say so clearly.`

// ChunkSource provides the chunks to rank and resolves chunk owners to
// display titles. *store.Store satisfies it.
type ChunkSource interface {
	Chunks() []source.Chunk
	TitleByID(id string) string
	Len() int
}

// Completer is the LLM surface the engine needs. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error)
}

// Answer is the result of asking a question.
type Answer struct {
	// Text is the answer content.
	Text string `json:"answer"`

	// Sources lists the titles of the documents that contributed chunks,
	// in ranking order without duplicates. Empty for canned answers.
	Sources []string `json:"sources,omitempty"`

	// Grounded reports whether the answer came from the LLM over document
	// context, as opposed to a canned empty-context response.
	Grounded bool `json:"grounded"`
}

// Engine ranks chunks and drives the LLM.
type Engine struct {
	chunks ChunkSource
	llm    Completer
	logger *slog.Logger
	topK   int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTopK sets how many chunks are forwarded to the LLM.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine creates a Q&A engine over the given chunk source and LLM.
func NewEngine(chunks ChunkSource, completer Completer, opts ...EngineOption) *Engine {
	e := &Engine{
		chunks: chunks,
		llm:    completer,
		logger: slog.Default(),
		topK:   defaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scoredChunk pairs a chunk with its overlap score for ranking.
type scoredChunk struct {
	score float64
	chunk source.Chunk
}

// Ask answers a question from the loaded documents. When no documents are
// loaded or no chunk overlaps the question, a canned response is returned
// without calling the LLM.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	if e.chunks.Len() == 0 {
		return &Answer{Text: answerNoDocuments}, nil
	}

	relevant := e.rank(question)
	if len(relevant) == 0 {
		return &Answer{Text: answerNoRelevantChunks}, nil
	}

	var blocks []string
	var sources []string
	seen := make(map[string]bool)
	for _, sc := range relevant {
		title := e.chunks.TitleByID(sc.chunk.DocumentID)
		blocks = append(blocks, fmt.Sprintf("[From: %s]\n%s", title, sc.chunk.Content))
		if !seen[title] {
			seen[title] = true
			sources = append(sources, title)
		}
	}

	prompt := fmt.Sprintf("DOCUMENTS TO ANALYZE:\n%s\n\nQUESTION: %s\n\nPlease provide a direct, precise, and to-the-point answer based on the documents above. Only elaborate if necessary or requested.",
		strings.Join(blocks, "\n\n"), question)

	resp, err := e.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("complete question: %w", err)
	}

	e.logger.Info("Question answered",
		"chunks_used", len(relevant),
		"sources", len(sources),
		"tokens", resp.Usage.TotalTokens)

	return &Answer{
		Text:     resp.Content,
		Sources:  sources,
		Grounded: true,
	}, nil
}

// rank scores every chunk against the question and returns the top chunks
// with a positive score, best first. Ties keep store order.
func (e *Engine) rank(question string) []scoredChunk {
	questionWords := wordSet(question)

	chunks := e.chunks.Chunks()
	scored := make([]scoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		s := score(questionWords, chunk.Content)
		if s > 0 {
			scored = append(scored, scoredChunk{score: s, chunk: chunk})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > e.topK {
		scored = scored[:e.topK]
	}
	return scored
}

// score computes word-set overlap between the question and a chunk,
// normalized by the question word count.
func score(questionWords map[string]bool, chunkText string) float64 {
	if len(questionWords) == 0 {
		return 0
	}
	overlap := 0
	for word := range wordSet(chunkText) {
		if questionWords[word] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(questionWords))
}

// wordSet splits text into a lowercase word set.
func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	return words
}
