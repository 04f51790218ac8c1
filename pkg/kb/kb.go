// Package kb implements the knowledge base: document ingestion (chunk,
// summarize, embed) and hybrid search over chunks and standing memories,
// fusing a dense (cosine similarity) ranking with a lexical (ILIKE) ranking
// via reciprocal rank fusion.
package kb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/loomctl/loom/pkg/apperr"
	"github.com/loomctl/loom/pkg/store"
)

const (
	chunkTargetTokens  = 400
	chunkOverlapTokens = 50
	rrfK               = 60
	defaultTopK        = 5
	maxIngestBytes     = 10 << 20 // 10 MiB
)

var allowedFormats = map[string]bool{
	"pdf": true, "docx": true, "txt": true, "md": true, "csv": true,
}

// magicBytes holds the signature prefix for binary formats that have one;
// txt/md/csv are free-form and aren't cross-checked.
var magicBytes = map[string][]byte{
	"pdf":  []byte("%PDF-"),
	"docx": {0x50, 0x4B, 0x03, 0x04}, // docx is a zip container
}

// Embedder is the subset of modelrouter.Router an ingest/search pass needs.
type Embedder interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float64, error)
}

// Summarizer produces the two-level (L0 terse, L1 detailed) document
// summaries stored alongside a document's chunks.
type Summarizer interface {
	Summarize(ctx context.Context, fullText string) (l0, l1 string, err error)
}

type Service struct {
	store      *store.Store
	embedder   Embedder
	summarizer Summarizer
	embedModel string
}

func New(s *store.Store, embedder Embedder, summarizer Summarizer, embedModel string) *Service {
	return &Service{store: s, embedder: embedder, summarizer: summarizer, embedModel: embedModel}
}

// Parse validates an uploaded document against the ingest whitelist before
// any chunk/embed work begins: format must be one of the allowed
// extensions, raw bytes must not exceed the size cap, and formats with a
// known binary signature must match it (guarding against a mislabeled
// upload). Text extraction for pdf/docx is not implemented — no parsing
// library for either format is available, so their raw bytes are decoded
// as best-effort UTF-8, same as txt/md/csv.
func Parse(filename, format string, raw []byte) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if !allowedFormats[format] {
		return "", apperr.InvalidInputf("unsupported document format %q", format)
	}
	if len(raw) > maxIngestBytes {
		return "", apperr.InvalidInputf("document %s exceeds the %d byte limit", filename, maxIngestBytes)
	}
	if sig, ok := magicBytes[format]; ok {
		if len(raw) < len(sig) || string(raw[:len(sig)]) != string(sig) {
			return "", apperr.InvalidInputf("document %s does not match the %s file signature", filename, format)
		}
	}
	return string(raw), nil
}

// Ingest chunks fullText on paragraph boundaries (merging runs of short
// paragraphs up to chunkTargetTokens), embeds every chunk, and stores a
// two-level summary on the document. Callers run Parse on the raw upload
// first; Ingest assumes fullText already passed the format/size checks.
func (s *Service) Ingest(ctx context.Context, teamID, filename, format, fullText string) (*store.KBDocument, error) {
	doc, err := s.store.CreateKBDocument(ctx, teamID, filename, format)
	if err != nil {
		return nil, err
	}

	chunks := chunkText(fullText, chunkTargetTokens)
	if len(chunks) == 0 {
		if err := s.store.SetKBDocumentStatus(ctx, teamID, doc.ID, "ready", ""); err != nil {
			return nil, err
		}
		return s.store.GetKBDocument(ctx, teamID, doc.ID)
	}

	embeddings, err := s.embedder.Embed(ctx, s.embedModel, chunks)
	if err != nil {
		_ = s.store.SetKBDocumentStatus(ctx, teamID, doc.ID, "failed", err.Error())
		return nil, err
	}

	for i, chunk := range chunks {
		var embedding store.Float8Array
		if i < len(embeddings) {
			embedding = embeddings[i]
		}
		if _, err := s.store.CreateKBChunk(ctx, store.CreateKBChunkParams{
			TeamID:     teamID,
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    chunk,
			TokenCount: approxTokenCount(chunk),
			Embedding:  embedding,
		}); err != nil {
			_ = s.store.SetKBDocumentStatus(ctx, teamID, doc.ID, "failed", err.Error())
			return nil, err
		}
	}

	l0, l1 := fullText, fullText
	if s.summarizer != nil {
		l0, l1, err = s.summarizer.Summarize(ctx, fullText)
		if err != nil {
			_ = s.store.SetKBDocumentStatus(ctx, teamID, doc.ID, "failed", err.Error())
			return nil, err
		}
	}
	if err := s.store.SetKBDocumentSummaries(ctx, teamID, doc.ID, l0, l1, len(chunks)); err != nil {
		return nil, err
	}
	return s.store.GetKBDocument(ctx, teamID, doc.ID)
}

// chunkText splits on blank-line paragraph boundaries, greedily merging
// consecutive paragraphs until the running token estimate would exceed
// target, then carries the trailing paragraphs of each chunk forward into
// the next chunk so retrieval near a chunk boundary still has surrounding
// context. The last paragraph is always carried, whatever its size; earlier
// ones are added only while the carried tail stays within chunkOverlapTokens.
func chunkText(text string, target int) []string {
	var paragraphs []string
	for _, p := range strings.Split(strings.TrimSpace(text), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []string
	var current []string
	currentTokens := 0

	overlapTail := func(paras []string) ([]string, int) {
		var tail []string
		tailTokens := 0
		for i := len(paras) - 1; i >= 0; i-- {
			t := approxTokenCount(paras[i])
			if tailTokens > 0 && tailTokens+t > chunkOverlapTokens {
				break
			}
			tail = append([]string{paras[i]}, tail...)
			tailTokens += t
		}
		return tail, tailTokens
	}

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n\n"))
		current, currentTokens = overlapTail(current)
	}

	for _, p := range paragraphs {
		pTokens := approxTokenCount(p)
		if currentTokens > 0 && currentTokens+pTokens > target {
			flush()
		}
		current = append(current, p)
		currentTokens += pTokens
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

func approxTokenCount(s string) int {
	return (len(s) + 3) / 4
}

type Result struct {
	Content string
	Score   float64
	Source  string // "chunk" or "memory"
	ID      string
}

// Search runs dense and lexical passes over both chunks and memories and
// fuses the rankings with reciprocal rank fusion: score(d) = sum(1/(k+rank)).
func (s *Service) Search(ctx context.Context, teamID, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = defaultTopK
	}

	queryVec, err := s.embedder.Embed(ctx, s.embedModel, []string{query})
	if err != nil {
		return nil, err
	}
	var qv []float64
	if len(queryVec) > 0 {
		qv = queryVec[0]
	}

	chunks, err := s.store.AllChunksForDense(ctx, teamID)
	if err != nil {
		return nil, err
	}
	memories, err := s.store.AllMemoriesForDense(ctx, teamID)
	if err != nil {
		return nil, err
	}

	type scored struct {
		Result
		denseScore float64
	}
	var candidates []scored
	for _, c := range chunks {
		candidates = append(candidates, scored{
			Result:     Result{Content: c.Content, Source: "chunk", ID: c.ID},
			denseScore: cosineSimilarity(qv, []float64(c.Embedding)),
		})
	}
	for _, m := range memories {
		candidates = append(candidates, scored{
			Result:     Result{Content: m.Content, Source: "memory", ID: m.ID},
			denseScore: cosineSimilarity(qv, []float64(m.Embedding)),
		})
	}

	candidateCap := 2 * topK

	denseRank := make(map[string]int, candidateCap)
	byDense := append([]scored(nil), candidates...)
	sort.Slice(byDense, func(i, j int) bool { return byDense[i].denseScore > byDense[j].denseScore })
	if len(byDense) > candidateCap {
		byDense = byDense[:candidateCap]
	}
	for i, c := range byDense {
		denseRank[c.Source+":"+c.ID] = i + 1
	}

	lexicalChunks, err := s.store.LexicalSearchChunks(ctx, teamID, query, candidateCap)
	if err != nil {
		return nil, err
	}
	lexicalMemories, err := s.store.LexicalSearchMemories(ctx, teamID, query, candidateCap)
	if err != nil {
		return nil, err
	}
	lexicalRank := make(map[string]int)
	for i, c := range lexicalChunks {
		lexicalRank["chunk:"+c.ID] = i + 1
	}
	for i, m := range lexicalMemories {
		lexicalRank["memory:"+m.ID] = i + 1
	}

	fused := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		key := c.Source + ":" + c.ID
		rrf := 0.0
		if r, ok := denseRank[key]; ok {
			rrf += 1.0 / float64(rrfK+r)
		}
		if r, ok := lexicalRank[key]; ok {
			rrf += 1.0 / float64(rrfK+r)
		}
		if rrf == 0 {
			continue
		}
		c.Result.Score = rrf
		fused = append(fused, c.Result)
	}

	sort.Slice(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (s *Service) AddMemory(ctx context.Context, teamID string, agentID *string, content string) error {
	embeddings, err := s.embedder.Embed(ctx, s.embedModel, []string{content})
	if err != nil {
		return err
	}
	var embedding store.Float8Array
	if len(embeddings) > 0 {
		embedding = embeddings[0]
	}
	_, err = s.store.CreateKBMemory(ctx, teamID, agentID, content, embedding)
	return err
}

// Bound adapts a Service to one team/agent pair for direct wiring into a
// tool registry.
type Bound struct {
	svc           *Service
	TeamID, Agent string
}

func (s *Service) Bind(teamID, agentID string) *Bound {
	return &Bound{svc: s, TeamID: teamID, Agent: agentID}
}

func (b *Bound) Search(ctx context.Context, query string, topK int) (string, error) {
	results, err := b.svc.Search(ctx, b.TeamID, query, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "no results", nil
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. [%s score=%.3f] %s\n", i+1, r.Source, r.Score, r.Content)
	}
	return sb.String(), nil
}

func (b *Bound) AddMemory(ctx context.Context, content string) error {
	agentID := b.Agent
	return b.svc.AddMemory(ctx, b.TeamID, &agentID, content)
}
