// Package memory wraps a [translate.Translator] with a pgvector-backed
// translation memory: a near-duplicate source utterance gets its
// previously stored translation reused instead of calling the backend
// again. Every translation the backend produces is stored.
package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/dubctl/internal/translate"
	"github.com/MrWong99/dubctl/pkg/provider/embeddings"
)

// Schema is the DDL a deployment must apply before using [Translator]:
//
//	CREATE EXTENSION IF NOT EXISTS vector;
//	CREATE TABLE translation_memory (
//	    id          bigserial PRIMARY KEY,
//	    source_lang text NOT NULL,
//	    target_lang text NOT NULL,
//	    source_text text NOT NULL,
//	    target_text text NOT NULL,
//	    embedding   vector(%d) NOT NULL
//	);
//	CREATE INDEX ON translation_memory USING hnsw (embedding vector_cosine_ops);
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS translation_memory (
    id          bigserial PRIMARY KEY,
    source_lang text NOT NULL,
    target_lang text NOT NULL,
    source_text text NOT NULL,
    target_text text NOT NULL,
    embedding   vector NOT NULL
);
CREATE INDEX IF NOT EXISTS translation_memory_embedding_idx
    ON translation_memory USING hnsw (embedding vector_cosine_ops);
`

// DefaultSimilarityThreshold is the maximum cosine distance (lower is more
// similar) at which a memory hit is trusted instead of calling the backend.
const DefaultSimilarityThreshold = 0.05

// Translator decorates an inner [translate.Translator] with a
// pgvector-backed cache of previously-produced translation pairs.
type Translator struct {
	inner     translate.Translator
	pool      *pgxpool.Pool
	embedder  embeddings.Provider
	threshold float64
}

var _ translate.Translator = (*Translator)(nil)

// New builds a memory-backed Translator. inner is called (and its result
// stored) whenever no sufficiently similar prior translation is found.
func New(inner translate.Translator, pool *pgxpool.Pool, embedder embeddings.Provider, threshold float64) *Translator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Translator{inner: inner, pool: pool, embedder: embedder, threshold: threshold}
}

func (t *Translator) Translate(ctx context.Context, req translate.Request) (string, error) {
	vec, err := t.embedder.Embed(ctx, req.SourceText)
	if err != nil {
		return t.inner.Translate(ctx, req)
	}

	if hit, ok, err := t.lookup(ctx, req, vec); err == nil && ok {
		return hit, nil
	}

	target, err := t.inner.Translate(ctx, req)
	if err != nil {
		return "", err
	}

	if err := t.store(ctx, req, target, vec); err != nil {
		// A failed write-back never fails the translation itself — the
		// memory is a cache, not an SSOT.
		return target, nil
	}
	return target, nil
}

func (t *Translator) lookup(ctx context.Context, req translate.Request, vec []float32) (string, bool, error) {
	const q = `
		SELECT target_text, embedding <=> $1 AS distance
		FROM translation_memory
		WHERE source_lang = $2 AND target_lang = $3
		ORDER BY embedding <=> $1
		LIMIT 1`

	row := t.pool.QueryRow(ctx, q, pgvector.NewVector(vec), req.SourceLang, req.TargetLang)

	var target string
	var distance float64
	if err := row.Scan(&target, &distance); err != nil {
		return "", false, fmt.Errorf("translation memory: lookup: %w", err)
	}
	if distance > t.threshold {
		return "", false, nil
	}
	return target, true, nil
}

func (t *Translator) store(ctx context.Context, req translate.Request, target string, vec []float32) error {
	const q = `
		INSERT INTO translation_memory (source_lang, target_lang, source_text, target_text, embedding)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := t.pool.Exec(ctx, q, req.SourceLang, req.TargetLang, req.SourceText, target, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("translation memory: store: %w", err)
	}
	return nil
}
