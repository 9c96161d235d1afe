package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const insertAssociationSQL = `
INSERT INTO section_concept_associations (section_id, concept_uri, concept_label, match_score, method)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (section_id, concept_uri, method) DO NOTHING;
`

// ReplaceForSection swaps all associations of one method for a section.
// Delete and insert share a transaction, so concurrent readers see either
// the old set or the new set, never a half-deleted one.
func (s *Storage) ReplaceForSection(
	ctx context.Context,
	sectionID int64,
	method common.AssociationMethod,
	assocs []common.Association,
) (int, error) {
	if !method.Valid() {
		return 0, fmt.Errorf("%w: unknown association method %q", store.ErrConstraintViolation, method)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM section_concept_associations WHERE section_id = $1 AND method = $2;`,
		sectionID, method,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear section associations: %w", err)
	}

	inserted := 0
	for _, a := range assocs {
		if a.ConceptURI == "" {
			continue
		}
		tag, err := tx.Exec(ctx, insertAssociationSQL,
			sectionID, a.ConceptURI, a.ConceptLabel, a.MatchScore, method,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert association: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit section associations: %w", err)
	}
	return inserted, nil
}

// GetForSection returns all associations of a section across both methods.
func (s *Storage) GetForSection(ctx context.Context, sectionID int64) ([]common.Association, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, section_id, concept_uri, concept_label, match_score, method, created_at
		 FROM section_concept_associations WHERE section_id = $1 ORDER BY method, match_score DESC;`,
		sectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query associations: %w", err)
	}
	defer rows.Close()

	var out []common.Association
	for rows.Next() {
		var a common.Association
		err := rows.Scan(&a.ID, &a.SectionID, &a.ConceptURI, &a.ConceptLabel, &a.MatchScore, &a.Method, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan association: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetDocument loads a document record.
func (s *Storage) GetDocument(ctx context.Context, id int64) (common.Document, error) {
	var d common.Document
	err := s.conn.QueryRow(ctx,
		`SELECT id, title, source_key, guideline_id, created_at FROM documents WHERE id = $1;`, id,
	).Scan(&d.ID, &d.Title, &d.SourceKey, &d.GuidelineID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return d, fmt.Errorf("%w: document %d", store.ErrNotFound, id)
		}
		return d, fmt.Errorf("failed to load document: %w", err)
	}
	return d, nil
}

// GetSections returns the sections of a document in reading order.
func (s *Storage) GetSections(ctx context.Context, documentID int64) ([]common.Section, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, document_id, position, span_start, span_end, text FROM sections
		 WHERE document_id = $1 ORDER BY position;`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var out []common.Section
	for rows.Next() {
		var sec common.Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Position, &sec.Start, &sec.End, &sec.Text); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// GetGuidelinesForDocument returns all guideline records referencing a
// document, oldest first. More than one row is a data-quality defect the
// deduplication service heals.
func (s *Storage) GetGuidelinesForDocument(ctx context.Context, documentID int64) ([]common.Guideline, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT id, document_id, title, created_at FROM guidelines WHERE document_id = $1 ORDER BY id;`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query guidelines: %w", err)
	}
	defer rows.Close()

	var out []common.Guideline
	for rows.Next() {
		var g common.Guideline
		if err := rows.Scan(&g.ID, &g.DocumentID, &g.Title, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan guideline: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
