package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/collective-judgment/cjo/internal/model"
)

// Precedent is a prior Judgment surfaced as a nearest-neighbor match for a
// new Item, by embedding distance.
type Precedent struct {
	JudgmentID uuid.UUID
	Distance   float64
	Verdict    model.Verdict
	QScore     float64
}

// StoreEmbedding records the embedding vector computed for a judged item,
// making it eligible for future precedent lookups.
func (s *Store) StoreEmbedding(ctx context.Context, judgmentID uuid.UUID, domain string, embedding []float32) error {
	const q = `INSERT INTO judgment_embeddings (judgment_id, domain, embedding) VALUES ($1, $2, $3)
ON CONFLICT (judgment_id) DO UPDATE SET domain = excluded.domain, embedding = excluded.embedding`
	_, err := s.db.pool.Exec(ctx, q, judgmentID, domain, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("storage: store embedding: %w", err)
	}
	return nil
}

// NearestPrecedents returns the limit closest prior judgments to embedding
// within domain, nearest first, using pgvector's cosine-distance operator.
func (s *Store) NearestPrecedents(ctx context.Context, domain string, embedding []float32, limit int) ([]Precedent, error) {
	const q = `
SELECT j.id, e.embedding <=> $1, j.verdict, j.q_score
FROM judgment_embeddings e
JOIN judgments j ON j.id = e.judgment_id
WHERE e.domain = $2
ORDER BY e.embedding <=> $1
LIMIT $3`
	rows, err := s.db.pool.Query(ctx, q, pgvector.NewVector(embedding), domain, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: nearest precedents: %w", err)
	}
	defer rows.Close()

	var out []Precedent
	for rows.Next() {
		var p Precedent
		var verdict string
		if err := rows.Scan(&p.JudgmentID, &p.Distance, &verdict, &p.QScore); err != nil {
			return nil, fmt.Errorf("storage: scan precedent row: %w", err)
		}
		p.Verdict = model.Verdict(verdict)
		out = append(out, p)
	}
	return out, rows.Err()
}
