// Package dedupe collapses semantically identical facts and records onto a
// single canonical row before they reach the triple store. Triple identity is
// syntactic and first-writer-wins; guideline identity is per document and
// oldest-wins.
package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/logger"
	"github.com/ethicase/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Service resolves candidate facts and duplicate guideline records against
// the store.
type Service struct {
	conn pgxIConn
}

// New creates a deduplication service over a pgx pool or connection.
func New(conn pgxIConn) *Service {
	return &Service{conn: conn}
}

const resolveInsertSQL = `
INSERT INTO triples (graph, subject, predicate, object, is_literal, owner_entity_type, owner_entity_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT triples_fact_unique DO NOTHING
RETURNING id;
`

const resolveSelectSQL = `
SELECT id FROM triples
WHERE graph = $1 AND subject = $2 AND predicate = $3 AND object = $4
  AND is_literal = $5 AND owner_entity_id = $6;
`

// Resolve decides whether a candidate triple is new information or a
// restatement of an existing fact, and returns the canonical row ID either
// way. The existing row always wins; the candidate is discarded, not merged.
func (s *Service) Resolve(ctx context.Context, t common.Triple) (int64, bool, error) {
	return s.resolveOn(ctx, s.conn, t)
}

func (s *Service) resolveOn(ctx context.Context, conn pgxIConn, t common.Triple) (int64, bool, error) {
	if err := store.ValidateTriple(t); err != nil {
		return 0, false, err
	}

	var id int64
	err := conn.QueryRow(ctx, resolveSelectSQL,
		t.Graph, t.Subject, t.Predicate, t.Object, t.IsLiteral, t.OwnerID,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to look up triple: %w", err)
	}

	err = conn.QueryRow(ctx, resolveInsertSQL,
		t.Graph, t.Subject, t.Predicate, t.Object, t.IsLiteral,
		t.OwnerType, t.OwnerID, t.Metadata,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to insert triple: %w", err)
	}

	// A concurrent writer won the insert; their row is canonical.
	err = conn.QueryRow(ctx, resolveSelectSQL,
		t.Graph, t.Subject, t.Predicate, t.Object, t.IsLiteral, t.OwnerID,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve triple after conflict: %w", err)
	}
	return id, false, nil
}

// ResolveGuideline consolidates duplicate guideline records for a document.
// The oldest record (lowest ID) is kept as canonical; triples, annotation
// versions and the document's guideline reference are repointed to it and
// the superseded rows are deleted, all in one transaction. With no
// duplicates left this is a no-op returning the single canonical ID.
func (s *Service) ResolveGuideline(ctx context.Context, documentID int64) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id FROM guidelines WHERE document_id = $1 ORDER BY id FOR UPDATE;`,
		documentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to lock guidelines: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no guideline for document %d", store.ErrNotFound, documentID)
	}
	canonical := ids[0]
	if len(ids) == 1 {
		return canonical, tx.Commit(ctx)
	}

	for _, dupe := range ids[1:] {
		if err := s.mergeGuideline(ctx, tx, canonical, dupe); err != nil {
			return 0, fmt.Errorf("failed to merge guideline %d into %d: %w", dupe, canonical, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit guideline consolidation: %w", err)
	}
	logger.Info("[Dedupe] Consolidated duplicate guidelines",
		"document_id", documentID, "canonical", canonical, "merged", len(ids)-1)
	return canonical, nil
}

// mergeGuideline repoints everything owned by dupe onto canonical and
// deletes the dupe. Triples the canonical guideline already holds are
// dropped from the dupe first so the repoint cannot trip the fact
// uniqueness constraint.
func (s *Service) mergeGuideline(ctx context.Context, tx pgxv5.Tx, canonical, dupe int64) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM triples t
		WHERE t.owner_entity_type = $1 AND t.owner_entity_id = $2
		  AND EXISTS (
			SELECT 1 FROM triples c
			WHERE c.owner_entity_id = $3
			  AND c.graph = t.graph AND c.subject = t.subject
			  AND c.predicate = t.predicate AND c.object = t.object
			  AND c.is_literal = t.is_literal
		  );`,
		common.OwnerGuideline, dupe, canonical,
	)
	if err != nil {
		return fmt.Errorf("failed to drop colliding triples: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE triples SET owner_entity_id = $3 WHERE owner_entity_type = $1 AND owner_entity_id = $2;`,
		common.OwnerGuideline, dupe, canonical,
	)
	if err != nil {
		return fmt.Errorf("failed to repoint triples: %w", err)
	}
	logger.Debug("[Dedupe] Repointed triples", "from", dupe, "to", canonical, "count", tag.RowsAffected())

	_, err = tx.Exec(ctx,
		`UPDATE annotation_versions SET guideline_id = $2 WHERE guideline_id = $1;`,
		dupe, canonical,
	)
	if err != nil {
		return fmt.Errorf("failed to repoint annotation versions: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE documents SET guideline_id = $2 WHERE guideline_id = $1;`,
		dupe, canonical,
	)
	if err != nil {
		return fmt.Errorf("failed to repoint document reference: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM guidelines WHERE id = $1;`, dupe)
	if err != nil {
		return fmt.Errorf("failed to delete superseded guideline: %w", err)
	}
	return nil
}

func scanIDs(rows pgxv5.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
