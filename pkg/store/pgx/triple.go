package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const insertTripleSQL = `
INSERT INTO triples (graph, subject, predicate, object, is_literal, owner_entity_type, owner_entity_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT triples_fact_unique DO NOTHING
RETURNING id;
`

const selectTripleIDSQL = `
SELECT id FROM triples
WHERE graph = $1 AND subject = $2 AND predicate = $3 AND object = $4
  AND is_literal = $5 AND owner_entity_id = $6;
`

// Put stores a triple and returns its row ID. Identical facts for the same
// owner resolve to the existing row: the insert is a no-op on conflict and
// the original ID is returned, so Put never updates and stays auditable.
func (s *Storage) Put(ctx context.Context, t common.Triple) (int64, error) {
	if err := store.ValidateTriple(t); err != nil {
		return 0, err
	}

	var id int64
	err := s.conn.QueryRow(ctx, insertTripleSQL,
		t.Graph, t.Subject, t.Predicate, t.Object, t.IsLiteral,
		t.OwnerType, t.OwnerID, t.Metadata,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return 0, fmt.Errorf("failed to insert triple: %w", err)
	}

	// Conflict path: the fact already exists for this owner.
	err = s.conn.QueryRow(ctx, selectTripleIDSQL,
		t.Graph, t.Subject, t.Predicate, t.Object, t.IsLiteral, t.OwnerID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve existing triple: %w", err)
	}
	return id, nil
}

// DeleteByOwner removes every triple owned by the given entity and returns
// the number of rows removed.
func (s *Storage) DeleteByOwner(ctx context.Context, ownerType string, ownerID int64) (int64, error) {
	tag, err := s.conn.Exec(ctx,
		`DELETE FROM triples WHERE owner_entity_type = $1 AND owner_entity_id = $2;`,
		ownerType, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete triples by owner: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByGraph removes every triple in the named graph. Annotation commits
// use one graph per annotation group, so this is how superseded versions
// drop their facts.
func (s *Storage) DeleteByGraph(ctx context.Context, graph string) (int64, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM triples WHERE graph = $1;`, graph)
	if err != nil {
		return 0, fmt.Errorf("failed to delete triples by graph: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Query returns all triples matching the pattern, ordered by ID.
func (s *Storage) Query(ctx context.Context, p store.TriplePattern) ([]common.Triple, error) {
	sql, args := buildTripleQuery(p)
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triples: %w", err)
	}
	defer rows.Close()

	var out []common.Triple
	for rows.Next() {
		var t common.Triple
		err := rows.Scan(
			&t.ID, &t.Graph, &t.Subject, &t.Predicate, &t.Object,
			&t.IsLiteral, &t.OwnerType, &t.OwnerID, &t.Metadata, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan triple: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// buildTripleQuery translates a wildcard pattern into SQL. Unset fields are
// omitted from the WHERE clause.
func buildTripleQuery(p store.TriplePattern) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Graph != "" {
		add("graph", p.Graph)
	}
	if p.Subject != "" {
		add("subject", p.Subject)
	}
	if p.Predicate != "" {
		add("predicate", p.Predicate)
	}
	if p.Object != "" {
		add("object", p.Object)
	}
	if p.IsLiteral != nil {
		add("is_literal", *p.IsLiteral)
	}
	if p.OwnerType != "" {
		add("owner_entity_type", p.OwnerType)
	}
	if p.OwnerID != 0 {
		add("owner_entity_id", p.OwnerID)
	}

	sql := `SELECT id, graph, subject, predicate, object, is_literal, owner_entity_type, owner_entity_id, metadata, created_at FROM triples`
	if len(conds) > 0 {
		sql += " WHERE " + strings.Join(conds, " AND ")
	}
	sql += " ORDER BY id;"
	return sql, args
}
