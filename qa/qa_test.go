package qa

import (
	"context"
	"strings"
	"testing"

	"github.com/docuchat/docqa/llm"
	"github.com/docuchat/docqa/source"
)

// stubChunks is an in-memory ChunkSource for tests.
type stubChunks struct {
	chunks []source.Chunk
	titles map[string]string
}

func (s *stubChunks) Chunks() []source.Chunk { return s.chunks }
func (s *stubChunks) Len() int               { return len(s.titles) }
func (s *stubChunks) TitleByID(id string) string {
	if t, ok := s.titles[id]; ok {
		return t
	}
	return id
}

// stubLLM records the last request and returns a fixed answer.
type stubLLM struct {
	lastMessages []llm.Message
	answer       string
	err          error
	calls        int
}

func (s *stubLLM) Complete(_ context.Context, messages []llm.Message) (*llm.Response, error) {
	s.calls++
	s.lastMessages = messages
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.answer}, nil
}

func chunk(docID string, index int, content string) source.Chunk {
	return source.Chunk{DocumentID: docID, Index: index, Content: content}
}

func TestEngine_NoDocuments(t *testing.T) {
	mock := &stubLLM{}
	e := NewEngine(&stubChunks{titles: map[string]string{}}, mock)

	ans, err := e.Ask(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(ans.Text, "don't have any documents loaded") {
		t.Errorf("Text = %q, want the no-documents response", ans.Text)
	}
	if ans.Grounded {
		t.Error("canned answer must not be marked grounded")
	}
	if mock.calls != 0 {
		t.Error("LLM must not be called without documents")
	}
}

func TestEngine_NoRelevantChunks(t *testing.T) {
	mock := &stubLLM{}
	src := &stubChunks{
		titles: map[string]string{"doc.a": "A"},
		chunks: []source.Chunk{chunk("doc.a", 0, "completely unrelated material")},
	}
	e := NewEngine(src, mock)

	ans, err := e.Ask(context.Background(), "quantum blockchain synergy?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(ans.Text, "couldn't find specific information") {
		t.Errorf("Text = %q, want the no-relevant-chunks response", ans.Text)
	}
	if mock.calls != 0 {
		t.Error("LLM must not be called when nothing scores above zero")
	}
}

func TestEngine_GroundedAnswer(t *testing.T) {
	mock := &stubLLM{answer: "Parental leave is 16 weeks."}
	src := &stubChunks{
		titles: map[string]string{"doc.handbook": "Handbook", "doc.memo": "Memo"},
		chunks: []source.Chunk{
			chunk("doc.handbook", 0, "Parental leave lasts 16 weeks for all employees."),
			chunk("doc.memo", 0, "The office closes early on Fridays."),
		},
	}
	e := NewEngine(src, mock)

	ans, err := e.Ask(context.Background(), "How long is parental leave?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if ans.Text != "Parental leave is 16 weeks." {
		t.Errorf("Text = %q", ans.Text)
	}
	if !ans.Grounded {
		t.Error("LLM answer should be marked grounded")
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "Handbook" {
		t.Errorf("Sources = %v, want [Handbook]", ans.Sources)
	}

	if len(mock.lastMessages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(mock.lastMessages))
	}
	user := mock.lastMessages[1].Content
	if !strings.Contains(user, "DOCUMENTS TO ANALYZE:") {
		t.Error("prompt should carry the documents header")
	}
	if !strings.Contains(user, "[From: Handbook]") {
		t.Error("prompt should attribute chunks to their document title")
	}
	if !strings.Contains(user, "QUESTION: How long is parental leave?") {
		t.Error("prompt should carry the question")
	}
	if strings.Contains(user, "closes early on Fridays") {
		t.Error("zero-score chunks must not reach the prompt")
	}
}

func TestEngine_RanksByOverlap(t *testing.T) {
	mock := &stubLLM{answer: "ok"}
	src := &stubChunks{
		titles: map[string]string{"doc.a": "A", "doc.b": "B"},
		chunks: []source.Chunk{
			chunk("doc.a", 0, "deploy the service"),
			chunk("doc.b", 0, "deploy the service to production with rollback"),
		},
	}
	e := NewEngine(src, mock, WithTopK(1))

	if _, err := e.Ask(context.Background(), "how do I deploy to production with rollback"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	user := mock.lastMessages[1].Content
	if !strings.Contains(user, "[From: B]") {
		t.Error("the higher-overlap chunk should win with topK=1")
	}
	if strings.Contains(user, "[From: A]") {
		t.Error("only the top chunk should reach the prompt with topK=1")
	}
}

func TestEngine_TopKBound(t *testing.T) {
	mock := &stubLLM{answer: "ok"}
	src := &stubChunks{titles: map[string]string{"doc.a": "A"}}
	for i := 0; i < 20; i++ {
		src.chunks = append(src.chunks, chunk("doc.a", i, "release process step"))
	}
	e := NewEngine(src, mock)

	if _, err := e.Ask(context.Background(), "what is the release process"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	user := mock.lastMessages[1].Content
	if got := strings.Count(user, "[From: A]"); got != 5 {
		t.Errorf("prompt carries %d chunks, want the top 5", got)
	}
}

func TestEngine_CaseInsensitiveMatching(t *testing.T) {
	mock := &stubLLM{answer: "ok"}
	src := &stubChunks{
		titles: map[string]string{"doc.a": "A"},
		chunks: []source.Chunk{chunk("doc.a", 0, "KUBERNETES runs the WORKLOADS")},
	}
	e := NewEngine(src, mock)

	ans, err := e.Ask(context.Background(), "what runs on kubernetes?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !ans.Grounded {
		t.Error("matching should be case-insensitive")
	}
}

func TestEngine_EmptyQuestion(t *testing.T) {
	e := NewEngine(&stubChunks{titles: map[string]string{}}, &stubLLM{})
	if _, err := e.Ask(context.Background(), "   "); err == nil {
		t.Error("Ask() should reject a blank question")
	}
}
