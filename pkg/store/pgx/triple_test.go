package pgx

import (
	"strings"
	"testing"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"
)

func TestBuildTripleQuery_NoPattern(t *testing.T) {
	sql, args := buildTripleQuery(store.TriplePattern{})
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("empty pattern must not produce a WHERE clause: %s", sql)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestBuildTripleQuery_OwnerOnly(t *testing.T) {
	sql, args := buildTripleQuery(store.TriplePattern{OwnerID: 42})
	if !strings.Contains(sql, "owner_entity_id = $1") {
		t.Fatalf("expected owner_entity_id condition: %s", sql)
	}
	if len(args) != 1 || args[0] != int64(42) {
		t.Fatalf("expected args [42], got %v", args)
	}
}

func TestBuildTripleQuery_AllFields(t *testing.T) {
	lit := true
	sql, args := buildTripleQuery(store.TriplePattern{
		Graph:     "urn:g",
		Subject:   "urn:s",
		Predicate: "urn:p",
		Object:    "urn:o",
		IsLiteral: &lit,
		OwnerType: common.OwnerGuideline,
		OwnerID:   7,
	})
	for _, cond := range []string{
		"graph = $1", "subject = $2", "predicate = $3", "object = $4",
		"is_literal = $5", "owner_entity_type = $6", "owner_entity_id = $7",
	} {
		if !strings.Contains(sql, cond) {
			t.Fatalf("missing condition %q in %s", cond, sql)
		}
	}
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(args))
	}
}

func TestBuildTripleQuery_IsLiteralFalseIsNotWildcard(t *testing.T) {
	lit := false
	_, args := buildTripleQuery(store.TriplePattern{IsLiteral: &lit})
	if len(args) != 1 || args[0] != false {
		t.Fatalf("explicit is_literal=false must be matched, got args %v", args)
	}
}
