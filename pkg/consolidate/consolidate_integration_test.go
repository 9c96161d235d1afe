package consolidate

import (
	"context"
	"os"
	"testing"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/db"
	"github.com/ethicase/backend/pkg/dedupe"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a migrated Postgres database and are skipped unless
// DATABASE_URL is set. Setting MIGRATIONS_DIR additionally applies the schema
// before running.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		if err := db.Migrate(dir, url); err != nil {
			t.Fatalf("failed to migrate: %v", err)
		}
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// insertTriple writes a triple row directly and removes it when the test
// ends, whether or not a pass already deleted it.
func insertTriple(t *testing.T, pool *pgxpool.Pool, ownerID int64) int64 {
	t.Helper()
	graph := "urn:ethicase:test:" + uuid.NewString()

	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO triples (graph, subject, predicate, object, owner_entity_type, owner_entity_id)
		 VALUES ($1, 'urn:s', 'urn:p', 'urn:o', $2, $3) RETURNING id;`,
		graph, common.OwnerGuideline, ownerID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("failed to insert triple: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM triples WHERE id = $1;`, id)
	})
	return id
}

func TestRemoveOrphanedTriples(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	job := NewJob(pool, dedupe.New(pool))

	// No guideline row exists for this owner id.
	var missingOwner int64
	err := pool.QueryRow(ctx, `SELECT coalesce(max(id), 0) + 1000000 FROM guidelines;`).Scan(&missingOwner)
	if err != nil {
		t.Fatalf("failed to pick missing owner: %v", err)
	}
	orphanID := insertTriple(t, pool, missingOwner)

	result, err := job.removeOrphanedTriples(ctx)
	if err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", result.Failures)
	}
	if result.Removed < 1 {
		t.Fatalf("expected at least the seeded orphan removed, got %d", result.Removed)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM triples WHERE id = $1;`, orphanID).Scan(&count); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Fatal("expected orphaned triple deleted")
	}
}

func TestDeleteRowsSkipsHealedRows(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	job := NewJob(pool, dedupe.New(pool))

	var documentID int64
	if err := pool.QueryRow(ctx, `INSERT INTO documents (title) VALUES ('heal test') RETURNING id;`).Scan(&documentID); err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM documents WHERE id = $1;`, documentID)
	})
	var guidelineID int64
	if err := pool.QueryRow(ctx, `INSERT INTO guidelines (document_id) VALUES ($1) RETURNING id;`, documentID).Scan(&guidelineID); err != nil {
		t.Fatalf("failed to insert guideline: %v", err)
	}

	// The owner is alive, so the recheck matches nothing: the row counts as
	// examined but never as removed.
	tripleID := insertTriple(t, pool, guidelineID)

	result := PassResult{Name: "orphaned_triples"}
	job.deleteRows(ctx, &result, []int64{tripleID}, orphanedTripleDeleteSQL)

	if len(result.Failures) != 0 {
		t.Fatalf("expected no failures, got %v", result.Failures)
	}
	if result.Removed != 0 {
		t.Fatalf("expected removed count 0 for a healed row, got %d", result.Removed)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM triples WHERE id = $1;`, tripleID).Scan(&count); err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Fatal("expected healed triple untouched")
	}
}
