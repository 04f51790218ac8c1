package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/loomctl/loom/pkg/apperr"
)

func (s *Store) CreateKBDocument(ctx context.Context, teamID, filename, format string) (*KBDocument, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_documents (id, team_id, filename, format) VALUES ($1,$2,$3,$4)`,
		id, teamID, filename, format)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create kb document")
	}
	return s.GetKBDocument(ctx, teamID, id)
}

func (s *Store) GetKBDocument(ctx context.Context, teamID, id string) (*KBDocument, error) {
	var d KBDocument
	err := s.db.GetContext(ctx, &d,
		`SELECT * FROM kb_documents WHERE id = $1 AND team_id = $2`, id, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("document %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "get kb document")
	}
	return &d, nil
}

func (s *Store) ListKBDocuments(ctx context.Context, teamID string) ([]KBDocument, error) {
	var docs []KBDocument
	err := s.db.SelectContext(ctx, &docs,
		`SELECT * FROM kb_documents WHERE team_id = $1 ORDER BY created_at DESC`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list kb documents")
	}
	return docs, nil
}

func (s *Store) SetKBDocumentStatus(ctx context.Context, teamID, id, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE kb_documents SET status=$1, error=$2, updated_at=NOW() WHERE id=$3 AND team_id=$4`,
		status, errMsg, id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "set kb document status")
	}
	return nil
}

func (s *Store) SetKBDocumentSummaries(ctx context.Context, teamID, id, l0, l1 string, chunkCount int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE kb_documents SET summary_l0=$1, summary_l1=$2, chunk_count=$3,
		       status='ready', updated_at=NOW()
		WHERE id=$4 AND team_id=$5`, l0, l1, chunkCount, id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "set kb document summaries")
	}
	return nil
}

func (s *Store) DeleteKBDocument(ctx context.Context, teamID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kb_documents WHERE id=$1 AND team_id=$2`, id, teamID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "delete kb document")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFoundf("document %s", id)
	}
	return nil
}

type CreateKBChunkParams struct {
	TeamID     string
	DocumentID string
	Ordinal    int
	Content    string
	TokenCount int
	Embedding  Float8Array
}

func (s *Store) CreateKBChunk(ctx context.Context, p CreateKBChunkParams) (*KBChunk, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_chunks (id, team_id, document_id, ordinal, content, token_count, embedding)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, p.TeamID, p.DocumentID, p.Ordinal, p.Content, p.TokenCount, p.Embedding)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create kb chunk")
	}
	var c KBChunk
	if err := s.db.GetContext(ctx, &c, `SELECT * FROM kb_chunks WHERE id = $1`, id); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "reload kb chunk")
	}
	return &c, nil
}

// AllChunksForDense loads every chunk for a team for an in-process cosine
// similarity scan — acceptable at the scale this engine targets; see the
// knowledge base package for the scoring pass.
func (s *Store) AllChunksForDense(ctx context.Context, teamID string) ([]KBChunk, error) {
	var chunks []KBChunk
	err := s.db.SelectContext(ctx, &chunks,
		`SELECT * FROM kb_chunks WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load chunks for dense search")
	}
	return chunks, nil
}

// LexicalSearchChunks runs an ILIKE term match over chunk content, the
// lexical leg of the hybrid search's reciprocal rank fusion.
func (s *Store) LexicalSearchChunks(ctx context.Context, teamID, term string, limit int) ([]KBChunk, error) {
	if limit <= 0 {
		limit = 50
	}
	var chunks []KBChunk
	err := s.db.SelectContext(ctx, &chunks, `
		SELECT * FROM kb_chunks
		WHERE team_id = $1 AND content ILIKE '%' || $2 || '%'
		ORDER BY ordinal LIMIT $3`, teamID, term, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "lexical search chunks")
	}
	return chunks, nil
}

func (s *Store) CreateKBMemory(ctx context.Context, teamID string, agentID *string, content string, embedding Float8Array) (*KBMemory, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kb_memories (id, team_id, agent_id, content, embedding) VALUES ($1,$2,$3,$4,$5)`,
		id, teamID, agentID, content, embedding)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "create kb memory")
	}
	var m KBMemory
	if err := s.db.GetContext(ctx, &m, `SELECT * FROM kb_memories WHERE id = $1`, id); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "reload kb memory")
	}
	return &m, nil
}

func (s *Store) AllMemoriesForDense(ctx context.Context, teamID string) ([]KBMemory, error) {
	var memories []KBMemory
	err := s.db.SelectContext(ctx, &memories,
		`SELECT * FROM kb_memories WHERE team_id = $1`, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "load memories for dense search")
	}
	return memories, nil
}

func (s *Store) LexicalSearchMemories(ctx context.Context, teamID, term string, limit int) ([]KBMemory, error) {
	if limit <= 0 {
		limit = 50
	}
	var memories []KBMemory
	err := s.db.SelectContext(ctx, &memories, `
		SELECT * FROM kb_memories
		WHERE team_id = $1 AND content ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC LIMIT $3`, teamID, term, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "lexical search memories")
	}
	return memories, nil
}
