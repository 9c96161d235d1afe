package dedupe

import (
	"testing"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"

	"github.com/google/uuid"
)

func sampleVersion() common.AnnotationVersion {
	return common.AnnotationVersion{
		ID:            1,
		GroupID:       uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		VersionNumber: 2,
		Stage:         common.StageLLMApproved,
		GuidelineID:   7,
		Content: common.AnnotationContent{
			SectionID:    42,
			ConceptURI:   "http://example.org/onto#InformedConsent",
			ConceptLabel: "Informed Consent",
			Snippet:      "the patient must be informed",
			Confidence:   0.91,
		},
	}
}

func TestDeriveTriples(t *testing.T) {
	v := sampleVersion()
	triples := deriveTriples(v)
	if len(triples) != 4 {
		t.Fatalf("expected 4 triples, got %d", len(triples))
	}

	graph := common.AnnotationGraph(v.GroupID)
	section := common.SectionURI(42)
	for i, tr := range triples {
		if tr.Graph != graph {
			t.Fatalf("triple %d: wrong graph %q", i, tr.Graph)
		}
		if tr.OwnerType != common.OwnerGuideline || tr.OwnerID != 7 {
			t.Fatalf("triple %d: wrong owner %s/%d", i, tr.OwnerType, tr.OwnerID)
		}
		if err := store.ValidateTriple(tr); err != nil {
			t.Fatalf("triple %d invalid: %v", i, err)
		}
	}

	if triples[0].Subject != section || triples[0].Predicate != predHasConcept ||
		triples[0].Object != v.Content.ConceptURI || triples[0].IsLiteral {
		t.Fatalf("unexpected concept triple: %+v", triples[0])
	}
	if triples[1].Subject != v.Content.ConceptURI || triples[1].Object != "Informed Consent" || !triples[1].IsLiteral {
		t.Fatalf("unexpected label triple: %+v", triples[1])
	}
	if triples[2].Predicate != predEvidence || triples[2].Object != "the patient must be informed" {
		t.Fatalf("unexpected evidence triple: %+v", triples[2])
	}
	if triples[3].Predicate != predConfidence || triples[3].Object != "0.91" {
		t.Fatalf("unexpected confidence triple: %+v", triples[3])
	}
}

func TestDeriveTriplesSkipsEmptyOptionalFacts(t *testing.T) {
	v := sampleVersion()
	v.Content.ConceptLabel = ""
	v.Content.Snippet = ""
	triples := deriveTriples(v)
	if len(triples) != 2 {
		t.Fatalf("expected 2 triples without label and snippet, got %d", len(triples))
	}
	for _, tr := range triples {
		if tr.Predicate == predLabel || tr.Predicate == predEvidence {
			t.Fatalf("unexpected optional triple: %+v", tr)
		}
	}
}

func TestDeriveTriplesVersionMetadata(t *testing.T) {
	v := sampleVersion()
	triples := deriveTriples(v)
	meta := triples[0].Metadata
	if meta["annotation_group"] != v.GroupID.String() {
		t.Fatalf("wrong group in metadata: %v", meta["annotation_group"])
	}
	if meta["version"] != 2 {
		t.Fatalf("wrong version in metadata: %v", meta["version"])
	}
	if meta["stage"] != string(common.StageLLMApproved) {
		t.Fatalf("wrong stage in metadata: %v", meta["stage"])
	}
}
