package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/logger"
	"github.com/ethicase/backend/pkg/store"

	"github.com/google/uuid"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const versionColumns = `id, annotation_group_id, version_number, approval_stage, parent_annotation_id, user_edits, is_current, guideline_id, content, created_at`

const lockGroupVersionsSQL = `
SELECT id, version_number, is_current FROM annotation_versions
WHERE annotation_group_id = $1
ORDER BY version_number
FOR UPDATE;
`

const insertVersionSQL = `
INSERT INTO annotation_versions
  (annotation_group_id, version_number, approval_stage, parent_annotation_id, user_edits, is_current, guideline_id, content)
VALUES ($1, $2, $3, $4, $5, true, $6, $7)
RETURNING id, created_at;
`

// groupRow is the locked snapshot of one existing version during a write.
type groupRow struct {
	ID            int64
	VersionNumber int
	IsCurrent     bool
}

// CreateVersion inserts a new annotation revision. With a nil GroupID it
// mints a fresh group at version 1; otherwise it locks the group's rows,
// computes max+1, flips the previous current row and inserts the new one in
// the same transaction. Two racing calls for one group cannot both win: the
// loser's insert hits the (group, version) unique constraint and surfaces as
// ErrVersionConflict for the caller to retry.
func (s *Storage) CreateVersion(ctx context.Context, params store.CreateVersionParams) (common.AnnotationVersion, error) {
	var zero common.AnnotationVersion

	stage := params.Stage
	if stage == "" {
		stage = common.StageLLMExtracted
	}
	if !stage.Valid() {
		return zero, fmt.Errorf("%w: unknown approval stage %q", store.ErrConstraintViolation, params.Stage)
	}
	if params.GuidelineID <= 0 {
		return zero, fmt.Errorf("%w: guideline id is not set", store.ErrConstraintViolation)
	}
	if err := validate.Struct(params.Content); err != nil {
		return zero, fmt.Errorf("%w: invalid annotation content: %v", store.ErrConstraintViolation, err)
	}
	if params.UserEdits != nil {
		if err := validate.Struct(params.UserEdits); err != nil {
			return zero, fmt.Errorf("%w: invalid user edits: %v", store.ErrConstraintViolation, err)
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	groupID, next, parentID, err := prepareGroupInsert(ctx, tx, params)
	if err != nil {
		return zero, err
	}

	if next > 1 {
		_, err = tx.Exec(ctx,
			`UPDATE annotation_versions SET is_current = false WHERE annotation_group_id = $1 AND is_current;`,
			groupID,
		)
		if err != nil {
			return zero, fmt.Errorf("failed to retire current version: %w", err)
		}
	}

	v := common.AnnotationVersion{
		GroupID:       groupID,
		VersionNumber: next,
		Stage:         stage,
		ParentID:      parentID,
		UserEdits:     params.UserEdits,
		IsCurrent:     true,
		GuidelineID:   params.GuidelineID,
		Content:       params.Content,
	}
	err = tx.QueryRow(ctx, insertVersionSQL,
		groupID, next, stage, parentID, params.UserEdits, params.GuidelineID, params.Content,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return zero, fmt.Errorf("%w: group %s version %d", store.ErrVersionConflict, groupID, next)
		}
		return zero, fmt.Errorf("failed to insert annotation version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit annotation version: %w", err)
	}
	logger.Debug("[Ledger] Created annotation version", "group", groupID, "version", next, "stage", stage)
	return v, nil
}

// prepareGroupInsert resolves the group, next version number and parent for
// a CreateVersion call, holding row locks on the group for the rest of the
// transaction.
func prepareGroupInsert(
	ctx context.Context,
	tx pgxv5.Tx,
	params store.CreateVersionParams,
) (uuid.UUID, int, *int64, error) {
	if params.GroupID == nil {
		if params.ParentID != nil {
			return uuid.Nil, 0, nil, fmt.Errorf("%w: first version cannot have a parent", store.ErrConstraintViolation)
		}
		return uuid.New(), 1, nil, nil
	}

	groupID := *params.GroupID
	existing, err := lockGroupRows(ctx, tx, groupID)
	if err != nil {
		return uuid.Nil, 0, nil, err
	}
	if len(existing) == 0 {
		return uuid.Nil, 0, nil, fmt.Errorf("%w: annotation group %s", store.ErrNotFound, groupID)
	}

	next := existing[len(existing)-1].VersionNumber + 1
	parentID, err := resolveParent(existing, params.ParentID, next)
	if err != nil {
		return uuid.Nil, 0, nil, err
	}
	return groupID, next, parentID, nil
}

func lockGroupRows(ctx context.Context, tx pgxv5.Tx, groupID uuid.UUID) ([]groupRow, error) {
	rows, err := tx.Query(ctx, lockGroupVersionsSQL, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock annotation group: %w", err)
	}
	defer rows.Close()

	var out []groupRow
	for rows.Next() {
		var r groupRow
		if err := rows.Scan(&r.ID, &r.VersionNumber, &r.IsCurrent); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// resolveParent picks the parent for a new version. Without an explicit
// parent the current version is used. An explicit parent must exist in the
// group with a version number strictly below the new one; anything else
// could close a cycle in the chain and is rejected at write time.
func resolveParent(existing []groupRow, explicit *int64, next int) (*int64, error) {
	if explicit == nil {
		for _, r := range existing {
			if r.IsCurrent {
				id := r.ID
				return &id, nil
			}
		}
		return nil, nil
	}
	for _, r := range existing {
		if r.ID != *explicit {
			continue
		}
		if r.VersionNumber >= next {
			return nil, fmt.Errorf(
				"%w: parent version %d would not precede version %d",
				store.ErrConstraintViolation, r.VersionNumber, next,
			)
		}
		id := r.ID
		return &id, nil
	}
	return nil, fmt.Errorf("%w: parent annotation %d is not in the group", store.ErrConstraintViolation, *explicit)
}

// Promote moves a version to a strictly later approval stage.
func (s *Storage) Promote(ctx context.Context, versionID int64, to common.ApprovalStage) (common.AnnotationVersion, error) {
	var zero common.AnnotationVersion
	if !to.Valid() {
		return zero, fmt.Errorf("%w: unknown approval stage %q", store.ErrInvalidTransition, to)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	v, err := scanVersion(tx.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM annotation_versions WHERE id = $1 FOR UPDATE;`, versionID,
	))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return zero, fmt.Errorf("%w: annotation version %d", store.ErrNotFound, versionID)
		}
		return zero, err
	}

	if !v.Stage.CanPromoteTo(to) {
		return zero, fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, v.Stage, to)
	}

	_, err = tx.Exec(ctx, `UPDATE annotation_versions SET approval_stage = $2 WHERE id = $1;`, versionID, to)
	if err != nil {
		return zero, fmt.Errorf("failed to promote version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit promotion: %w", err)
	}

	logger.Debug("[Ledger] Promoted annotation version", "version", versionID, "from", v.Stage, "to", to)
	v.Stage = to
	return v, nil
}

// Rollback makes toVersion the current version of the group. Later versions
// stay in place as historical rows, so the next CreateVersion still continues
// from max+1 and version numbers are never reused.
func (s *Storage) Rollback(ctx context.Context, groupID uuid.UUID, toVersion int) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := lockGroupRows(ctx, tx, groupID)
	if err != nil {
		return err
	}
	found := false
	for _, r := range existing {
		if r.VersionNumber == toVersion {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: group %s has no version %d", store.ErrNotFound, groupID, toVersion)
	}

	// Clear the old flag before setting the new one. The partial unique
	// index on is_current is checked per row, so a single UPDATE that sets
	// the physically earlier target row first would collide with the still
	// current row.
	_, err = tx.Exec(ctx,
		`UPDATE annotation_versions SET is_current = false WHERE annotation_group_id = $1 AND is_current;`,
		groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to retire current version: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE annotation_versions SET is_current = true WHERE annotation_group_id = $1 AND version_number = $2;`,
		groupID, toVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to roll back group: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	logger.Info("[Ledger] Rolled back annotation group", "group", groupID, "to_version", toVersion)
	return nil
}

// GetCurrent returns the group's current version.
func (s *Storage) GetCurrent(ctx context.Context, groupID uuid.UUID) (common.AnnotationVersion, error) {
	v, err := scanVersion(s.conn.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM annotation_versions WHERE annotation_group_id = $1 AND is_current;`,
		groupID,
	))
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return v, fmt.Errorf("%w: annotation group %s", store.ErrNotFound, groupID)
		}
		return v, err
	}
	return v, nil
}

// GetHistory walks the parent chain from the current version back to the
// first and returns it newest first. A revisited row means the chain is
// corrupt; that is reported rather than looped on.
func (s *Storage) GetHistory(ctx context.Context, groupID uuid.UUID) ([]common.AnnotationVersion, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+versionColumns+` FROM annotation_versions WHERE annotation_group_id = $1 ORDER BY version_number DESC;`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation group: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]common.AnnotationVersion)
	var current *common.AnnotationVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		byID[v.ID] = v
		if v.IsCurrent {
			cp := v
			current = &cp
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(byID) == 0 {
		return nil, fmt.Errorf("%w: annotation group %s", store.ErrNotFound, groupID)
	}
	if current == nil {
		return nil, fmt.Errorf("annotation group %s has no current version: history needs repair", groupID)
	}

	return walkParentChain(*current, byID)
}

// walkParentChain follows parent links from head, detecting cycles.
func walkParentChain(head common.AnnotationVersion, byID map[int64]common.AnnotationVersion) ([]common.AnnotationVersion, error) {
	visited := make(map[int64]bool, len(byID))
	out := make([]common.AnnotationVersion, 0, len(byID))

	v := head
	for {
		if visited[v.ID] {
			return nil, fmt.Errorf("annotation chain cycle at version %d: history needs repair", v.ID)
		}
		visited[v.ID] = true
		out = append(out, v)

		if v.ParentID == nil {
			return out, nil
		}
		parent, ok := byID[*v.ParentID]
		if !ok {
			return nil, fmt.Errorf("annotation chain broken at version %d: history needs repair", v.ID)
		}
		v = parent
	}
}

// DeleteGroup removes an annotation group and its triples entirely. This is
// the fresh-start reset used when an annotation is regenerated from scratch.
func (s *Storage) DeleteGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM triples WHERE graph = $1;`, common.AnnotationGraph(groupID)); err != nil {
		return 0, fmt.Errorf("failed to delete group triples: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM annotation_versions WHERE annotation_group_id = $1;`, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group versions: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit group deletion: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanVersion(row pgxv5.Row) (common.AnnotationVersion, error) {
	var v common.AnnotationVersion
	err := row.Scan(
		&v.ID, &v.GroupID, &v.VersionNumber, &v.Stage, &v.ParentID,
		&v.UserEdits, &v.IsCurrent, &v.GuidelineID, &v.Content, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return v, err
		}
		return v, fmt.Errorf("failed to scan annotation version: %w", err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
