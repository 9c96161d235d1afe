package pgx

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/db"
	"github.com/ethicase/backend/pkg/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The tests below need a migrated Postgres database and are skipped unless
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

// newGuideline creates a document with one guideline and removes both (and
// their annotation versions, via cascade) when the test ends.
func newGuideline(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()

	var documentID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO documents (title) VALUES ('ledger test') RETURNING id;`,
	).Scan(&documentID)
	if err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM documents WHERE id = $1;`, documentID)
	})

	var guidelineID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO guidelines (document_id) VALUES ($1) RETURNING id;`, documentID,
	).Scan(&guidelineID)
	if err != nil {
		t.Fatalf("failed to insert guideline: %v", err)
	}
	return guidelineID
}

func testContent() common.AnnotationContent {
	return common.AnnotationContent{
		SectionID:  1,
		ConceptURI: "urn:ethicase:concept:autonomy",
		Snippet:    "the patient decides",
		Confidence: 0.9,
	}
}

func TestCreateVersionChainsAndFlipsCurrent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := New(pool)
	guidelineID := newGuideline(t, pool)

	v1, err := s.CreateVersion(ctx, store.CreateVersionParams{
		GuidelineID: guidelineID,
		Content:     testContent(),
	})
	if err != nil {
		t.Fatalf("failed to create first version: %v", err)
	}
	if v1.VersionNumber != 1 || !v1.IsCurrent {
		t.Fatalf("expected current version 1, got %d current=%v", v1.VersionNumber, v1.IsCurrent)
	}

	v2, err := s.CreateVersion(ctx, store.CreateVersionParams{
		GroupID:     &v1.GroupID,
		GuidelineID: guidelineID,
		Content:     testContent(),
	})
	if err != nil {
		t.Fatalf("failed to create second version: %v", err)
	}
	if v2.VersionNumber != 2 {
		t.Fatalf("expected version 2, got %d", v2.VersionNumber)
	}
	if v2.ParentID == nil || *v2.ParentID != v1.ID {
		t.Fatalf("expected parent %d, got %v", v1.ID, v2.ParentID)
	}

	current, err := s.GetCurrent(ctx, v1.GroupID)
	if err != nil {
		t.Fatalf("failed to get current: %v", err)
	}
	if current.ID != v2.ID {
		t.Fatalf("expected current %d, got %d", v2.ID, current.ID)
	}
}

func TestRollbackMakesEarlierVersionCurrent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := New(pool)
	guidelineID := newGuideline(t, pool)

	v1, err := s.CreateVersion(ctx, store.CreateVersionParams{
		GuidelineID: guidelineID,
		Content:     testContent(),
	})
	if err != nil {
		t.Fatalf("failed to create first version: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, err := s.CreateVersion(ctx, store.CreateVersionParams{
			GroupID:     &v1.GroupID,
			GuidelineID: guidelineID,
			Content:     testContent(),
		})
		if err != nil {
			t.Fatalf("failed to create version: %v", err)
		}
	}

	// The target row is physically earlier than the current one, so a
	// rollback that sets the new flag before clearing the old would trip
	// the one-current unique index.
	if err := s.Rollback(ctx, v1.GroupID, 1); err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}

	current, err := s.GetCurrent(ctx, v1.GroupID)
	if err != nil {
		t.Fatalf("failed to get current: %v", err)
	}
	if current.VersionNumber != 1 {
		t.Fatalf("expected version 1 current after rollback, got %d", current.VersionNumber)
	}

	// Version numbers continue from the historical maximum, never reused.
	v4, err := s.CreateVersion(ctx, store.CreateVersionParams{
		GroupID:     &v1.GroupID,
		GuidelineID: guidelineID,
		Content:     testContent(),
	})
	if err != nil {
		t.Fatalf("failed to create version after rollback: %v", err)
	}
	if v4.VersionNumber != 4 {
		t.Fatalf("expected version 4 after rollback, got %d", v4.VersionNumber)
	}
}

func TestRollbackUnknownVersion(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	s := New(pool)
	guidelineID := newGuideline(t, pool)

	v1, err := s.CreateVersion(ctx, store.CreateVersionParams{
		GuidelineID: guidelineID,
		Content:     testContent(),
	})
	if err != nil {
		t.Fatalf("failed to create version: %v", err)
	}

	err = s.Rollback(ctx, v1.GroupID, 7)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
