package pgx

import (
	"errors"
	"testing"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"

	"github.com/google/uuid"
)

func TestResolveParent_DefaultsToCurrent(t *testing.T) {
	existing := []groupRow{
		{ID: 11, VersionNumber: 1, IsCurrent: false},
		{ID: 12, VersionNumber: 2, IsCurrent: false},
		{ID: 13, VersionNumber: 3, IsCurrent: true},
	}
	parent, err := resolveParent(existing, nil, 4)
	if err != nil {
		t.Fatal(err)
	}
	if parent == nil || *parent != 13 {
		t.Fatalf("expected parent 13, got %v", parent)
	}
}

func TestResolveParent_ExplicitEarlierVersion(t *testing.T) {
	existing := []groupRow{
		{ID: 11, VersionNumber: 1, IsCurrent: false},
		{ID: 12, VersionNumber: 2, IsCurrent: true},
	}
	explicit := int64(11)
	parent, err := resolveParent(existing, &explicit, 3)
	if err != nil {
		t.Fatal(err)
	}
	if parent == nil || *parent != 11 {
		t.Fatalf("expected parent 11, got %v", parent)
	}
}

func TestResolveParent_RejectsCycleRisk(t *testing.T) {
	existing := []groupRow{
		{ID: 11, VersionNumber: 1, IsCurrent: false},
		{ID: 12, VersionNumber: 2, IsCurrent: true},
	}

	// A parent at or above the new version number could close a cycle.
	explicit := int64(12)
	_, err := resolveParent(existing, &explicit, 2)
	if !errors.Is(err, store.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}

	// A parent outside the group is equally invalid.
	outside := int64(99)
	_, err = resolveParent(existing, &outside, 3)
	if !errors.Is(err, store.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestWalkParentChain(t *testing.T) {
	groupID := uuid.New()
	p1, p2 := int64(1), int64(2)
	byID := map[int64]common.AnnotationVersion{
		1: {ID: 1, GroupID: groupID, VersionNumber: 1},
		2: {ID: 2, GroupID: groupID, VersionNumber: 2, ParentID: &p1},
		3: {ID: 3, GroupID: groupID, VersionNumber: 3, ParentID: &p2, IsCurrent: true},
	}
	chain, err := walkParentChain(byID[3], byID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected chain of 3, got %d", len(chain))
	}
	for i, wantVersion := range []int{3, 2, 1} {
		if chain[i].VersionNumber != wantVersion {
			t.Fatalf("chain[%d] = v%d, want v%d", i, chain[i].VersionNumber, wantVersion)
		}
	}
}

func TestWalkParentChain_DetectsCycle(t *testing.T) {
	p1, p2 := int64(1), int64(2)
	byID := map[int64]common.AnnotationVersion{
		1: {ID: 1, VersionNumber: 1, ParentID: &p2},
		2: {ID: 2, VersionNumber: 2, ParentID: &p1, IsCurrent: true},
	}
	_, err := walkParentChain(byID[2], byID)
	if err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestWalkParentChain_DetectsBrokenLink(t *testing.T) {
	missing := int64(42)
	byID := map[int64]common.AnnotationVersion{
		2: {ID: 2, VersionNumber: 2, ParentID: &missing, IsCurrent: true},
	}
	_, err := walkParentChain(byID[2], byID)
	if err == nil {
		t.Fatal("expected broken chain error")
	}
}
