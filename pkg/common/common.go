package common

import (
	"time"

	"github.com/google/uuid"
)

// Triple is a subject-predicate-object fact scoped to an owning entity.
// Triples carry the machine-readable content of concept annotations and are
// append-only: a triple is never mutated in place, only superseded when a new
// annotation version replaces it or removed by the consolidation job.
//
// Identity is syntactic. Two triples encode the same fact when graph, subject,
// predicate, object, literal flag and owning entity all match.
type Triple struct {
	ID        int64          `json:"id"`
	Graph     string         `json:"graph"`
	Subject   string         `json:"subject"`
	Predicate string         `json:"predicate"`
	Object    string         `json:"object"`
	IsLiteral bool           `json:"is_literal"`
	OwnerType string         `json:"owner_entity_type"`
	OwnerID   int64          `json:"owner_entity_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Owner entity types recognised by the triple store.
const (
	OwnerGuideline = "guideline"
	OwnerDocument  = "document"
)

// AnnotationVersion is one revision of a concept annotation applied to a
// document section. All revisions of the same logical annotation share a
// GroupID; VersionNumber is contiguous from 1 within a group and exactly one
// row per group is current.
type AnnotationVersion struct {
	ID            int64             `json:"id"`
	GroupID       uuid.UUID         `json:"annotation_group_id"`
	VersionNumber int               `json:"version_number"`
	Stage         ApprovalStage     `json:"approval_stage"`
	ParentID      *int64            `json:"parent_annotation_id,omitempty"`
	UserEdits     *UserEdits        `json:"user_edits,omitempty"`
	IsCurrent     bool              `json:"is_current"`
	GuidelineID   int64             `json:"guideline_id"`
	Content       AnnotationContent `json:"content"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AnnotationContent is the reviewed payload of an annotation version: which
// ontology concept applies to which document section, and the supporting text.
type AnnotationContent struct {
	SectionID    int64   `json:"section_id" validate:"required,gt=0"`
	ConceptURI   string  `json:"concept_uri" validate:"required"`
	ConceptLabel string  `json:"concept_label"`
	Snippet      string  `json:"snippet"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// UserEdits is the structured patch recorded when a human changes
// LLM-proposed content. The shape is versioned so old rows stay readable
// when the format evolves; readers must reject shapes they do not know.
type UserEdits struct {
	Shape  string      `json:"shape" validate:"required,eq=v1"`
	Fields []FieldEdit `json:"fields" validate:"required,min=1,dive"`
}

// FieldEdit records a single field change within a user edit.
type FieldEdit struct {
	Field string `json:"field" validate:"required"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Guideline is the per-document annotation container. Historic imports
// sometimes created several guidelines for one document; the deduplication
// service heals that by keeping the oldest.
type Guideline struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Document is an imported ethics case. SourceKey points at the full plain
// text of the case in the object store; sections reference spans into it.
type Document struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	SourceKey   string    `json:"source_key"`
	GuidelineID *int64    `json:"guideline_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Section is a contiguous span of a document. Text may be materialised in the
// database; when empty it is loaded from the document object using the span.
type Section struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Position   int    `json:"position"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Text       string `json:"text"`
}

// Concept is an ontology concept candidate for association scoring.
type Concept struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
}

// AssociationMethod identifies which scoring method produced an association.
// The two methods are independent and may disagree for the same section.
type AssociationMethod string

const (
	MethodEmbedding AssociationMethod = "embedding"
	MethodLLM       AssociationMethod = "llm"
)

// Valid reports whether m is a known scoring method.
func (m AssociationMethod) Valid() bool {
	return m == MethodEmbedding || m == MethodLLM
}

// Association is a confidence-scored link between a document section and an
// ontology concept. Unique per (section, concept, method).
type Association struct {
	ID           int64             `json:"id"`
	SectionID    int64             `json:"section_id"`
	ConceptURI   string            `json:"concept_uri"`
	ConceptLabel string            `json:"concept_label"`
	MatchScore   float64           `json:"match_score"`
	Method       AssociationMethod `json:"method"`
	CreatedAt    time.Time         `json:"created_at"`
}
