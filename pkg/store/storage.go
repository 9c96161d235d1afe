package store

import (
	"context"

	"github.com/ethicase/backend/pkg/common"
	"github.com/google/uuid"
)

// TripleStore persists subject/predicate/object facts with provenance
// metadata. Put is idempotent and append-only: a tuple that already exists
// for the same owner resolves to the existing row, never an update.
type TripleStore interface {
	Put(ctx context.Context, t common.Triple) (int64, error)
	DeleteByOwner(ctx context.Context, ownerType string, ownerID int64) (int64, error)
	DeleteByGraph(ctx context.Context, graph string) (int64, error)
	Query(ctx context.Context, p TriplePattern) ([]common.Triple, error)
}

// TriplePattern selects triples by exact match on its set fields. Empty
// string fields and a zero OwnerID match anything; IsLiteral is a tristate.
type TriplePattern struct {
	Graph     string
	Subject   string
	Predicate string
	Object    string
	IsLiteral *bool
	OwnerType string
	OwnerID   int64
}

// CreateVersionParams describes a new annotation revision. A nil GroupID
// starts a new annotation group at version 1. Stage defaults to
// llm_extracted when empty; human edits are committed directly at
// user_approved by the caller.
type CreateVersionParams struct {
	GroupID     *uuid.UUID
	ParentID    *int64
	GuidelineID int64
	Content     common.AnnotationContent
	Stage       common.ApprovalStage
	UserEdits   *common.UserEdits
}

// AnnotationLedger owns the versioning and approval state machine for
// concept annotations. Version numbers within a group are contiguous from 1
// and never reused; exactly one version per group is current.
//
// CreateVersion for an existing group is serialized per group via row
// locking; a racing caller receives ErrVersionConflict and may retry. The
// ledger itself never retries.
type AnnotationLedger interface {
	CreateVersion(ctx context.Context, params CreateVersionParams) (common.AnnotationVersion, error)
	Promote(ctx context.Context, versionID int64, to common.ApprovalStage) (common.AnnotationVersion, error)
	Rollback(ctx context.Context, groupID uuid.UUID, toVersion int) error
	GetCurrent(ctx context.Context, groupID uuid.UUID) (common.AnnotationVersion, error)
	GetHistory(ctx context.Context, groupID uuid.UUID) ([]common.AnnotationVersion, error)
	DeleteGroup(ctx context.Context, groupID uuid.UUID) (int64, error)
}

// AssociationStore persists section/concept associations produced by the
// scorer. ReplaceForSection swaps all associations of one method for a
// section in a single transaction so readers never observe a half-deleted
// state.
type AssociationStore interface {
	ReplaceForSection(ctx context.Context, sectionID int64, method common.AssociationMethod, assocs []common.Association) (int, error)
	GetForSection(ctx context.Context, sectionID int64) ([]common.Association, error)
}

// CaseStore reads the document/guideline/section/concept records the engine
// operates on. Writing them is the import pipeline's concern.
type CaseStore interface {
	GetDocument(ctx context.Context, id int64) (common.Document, error)
	GetSections(ctx context.Context, documentID int64) ([]common.Section, error)
	GetGuidelinesForDocument(ctx context.Context, documentID int64) ([]common.Guideline, error)
}
