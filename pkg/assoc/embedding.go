package assoc

import (
	"context"
	"fmt"

	"github.com/ethicase/backend/internal/util"
	"github.com/ethicase/backend/pkg/common"

	"github.com/pgvector/pgvector-go"
)

// Cosine distance; score is similarity in [0, 1] for normalised embeddings.
const conceptsBySimilaritySQL = `
SELECT uri, label, 1 - (embedding <=> $1) AS score
FROM concepts
WHERE embedding IS NOT NULL
  AND 1 - (embedding <=> $1) >= $2
ORDER BY score DESC
LIMIT $3;
`

// scoreByEmbedding embeds the section text and keeps every concept whose
// embedding similarity clears the threshold. The similarity becomes the
// association's match score.
func (s *Scorer) scoreByEmbedding(ctx context.Context, sectionID int64, text string) ([]common.Association, error) {
	text = truncateTokens(text, maxSectionTokens)
	embedding, err := util.RetryWithContext(ctx, maxAIRetries, func(ctx context.Context) ([]float32, error) {
		return s.client.GenerateEmbedding(ctx, []byte(text))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed section text: %w", err)
	}

	rows, err := s.conn.Query(ctx, conceptsBySimilaritySQL,
		pgvector.NewVector(embedding), embedThreshold(), embedLimit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts by similarity: %w", err)
	}
	defer rows.Close()

	var associations []common.Association
	for rows.Next() {
		a := common.Association{
			SectionID: sectionID,
			Method:    common.MethodEmbedding,
		}
		if err := rows.Scan(&a.ConceptURI, &a.ConceptLabel, &a.MatchScore); err != nil {
			return nil, fmt.Errorf("failed to scan concept match: %w", err)
		}
		associations = append(associations, a)
	}
	return associations, rows.Err()
}
