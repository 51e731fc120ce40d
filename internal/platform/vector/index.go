package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one embedded slice of a document, keyed by (document_id, sequence).
type Chunk struct {
	DocumentID  uuid.UUID
	PatientID   uuid.UUID
	Sequence    int
	Text        string
	Embedding   []float32
	ContentHash string
}

// Match is a similarity search hit. Score is 1 - cosine distance, in [0,1]
// for normalized embeddings.
type Match struct {
	DocumentID uuid.UUID
	PatientID  uuid.UUID
	Sequence   int
	Text       string
	Score      float64
}

// Index is the nearest-neighbor chunk index. Searches are always scoped to a
// single patient.
type Index interface {
	UpsertChunks(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int) ([]Match, error)
	HasContent(ctx context.Context, patientID uuid.UUID, contentHash string) (bool, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error
}

type pgIndex struct {
	pool *pgxpool.Pool
}

// NewPGIndex returns an Index backed by the document_chunk pgvector table.
// The table and ivfflat index are created by migrations, not here.
func NewPGIndex(pool *pgxpool.Pool) Index {
	return &pgIndex{pool: pool}
}

// UpsertChunks writes all chunks in one transaction. Re-upserting the same
// (document_id, sequence) replaces the row instead of duplicating it.
func (idx *pgIndex) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := idx.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin chunk upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		batch.Queue(`
			INSERT INTO document_chunk (document_id, patient_id, sequence_index, text, embedding, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (document_id, sequence_index) DO UPDATE SET
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding,
				content_hash = EXCLUDED.content_hash`,
			ch.DocumentID, ch.PatientID, ch.Sequence, ch.Text,
			pgvector.NewVector(ch.Embedding), ch.ContentHash,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close chunk batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunk upsert: %w", err)
	}
	return nil
}

// Search returns the nearest chunks for one patient, best first. The
// patient_id predicate is part of the SQL so no cross-patient row can leave
// the database.
func (idx *pgIndex) Search(ctx context.Context, patientID uuid.UUID, embedding []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := idx.pool.Query(ctx, `
		SELECT document_id, patient_id, sequence_index, text,
		       1 - (embedding <=> $2) AS score
		FROM document_chunk
		WHERE patient_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		patientID, pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.DocumentID, &m.PatientID, &m.Sequence, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan chunk match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk matches: %w", err)
	}
	return matches, nil
}

// HasContent reports whether a chunk-set for (patient_id, content_hash)
// already exists, which makes re-ingestion a no-op.
func (idx *pgIndex) HasContent(ctx context.Context, patientID uuid.UUID, contentHash string) (bool, error) {
	var exists bool
	err := idx.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM document_chunk
			WHERE patient_id = $1 AND content_hash = $2
		)`, patientID, contentHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check chunk content: %w", err)
	}
	return exists, nil
}

func (idx *pgIndex) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := idx.pool.Exec(ctx, `DELETE FROM document_chunk WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}
