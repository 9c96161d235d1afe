package dedupe

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/logger"
	"github.com/ethicase/backend/pkg/store"
	storepgx "github.com/ethicase/backend/pkg/store/pgx"
)

const (
	predHasConcept = "urn:ethicase:pred:hasConcept"
	predEvidence   = "urn:ethicase:pred:evidenceText"
	predConfidence = "urn:ethicase:pred:confidence"
	predLabel      = "http://www.w3.org/2000/01/rdf-schema#label"
)

// CommitAnnotation writes a new annotation version and projects its content
// into the triple store as one transaction. Facts of earlier versions of the
// same group are superseded: the group's graph is cleared before the new
// version's facts are resolved in, so the store only ever reflects the
// current version.
//
// Returns the created version and how many of its facts were new rather than
// restatements.
func (s *Service) CommitAnnotation(ctx context.Context, params store.CreateVersionParams) (common.AnnotationVersion, int, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.AnnotationVersion{}, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	st := storepgx.New(tx)
	version, err := st.CreateVersion(ctx, params)
	if err != nil {
		return common.AnnotationVersion{}, 0, err
	}

	graph := common.AnnotationGraph(version.GroupID)
	if _, err := st.DeleteByGraph(ctx, graph); err != nil {
		return common.AnnotationVersion{}, 0, err
	}

	fresh := 0
	for _, t := range deriveTriples(version) {
		_, isNew, err := s.resolveOn(ctx, tx, t)
		if err != nil {
			return common.AnnotationVersion{}, 0, err
		}
		if isNew {
			fresh++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.AnnotationVersion{}, 0, fmt.Errorf("failed to commit annotation: %w", err)
	}
	logger.Debug("[Dedupe] Committed annotation version",
		"group", version.GroupID, "version", version.VersionNumber, "new_facts", fresh)
	return version, fresh, nil
}

// deriveTriples projects an annotation version's content into facts. All
// facts live in the group's graph and are owned by the guideline the
// annotation belongs to.
func deriveTriples(v common.AnnotationVersion) []common.Triple {
	graph := common.AnnotationGraph(v.GroupID)
	section := common.SectionURI(v.Content.SectionID)
	meta := map[string]any{
		"annotation_group": v.GroupID.String(),
		"version":          v.VersionNumber,
		"stage":            string(v.Stage),
	}

	base := common.Triple{
		Graph:     graph,
		OwnerType: common.OwnerGuideline,
		OwnerID:   v.GuidelineID,
		Metadata:  meta,
	}

	concept := base
	concept.Subject = section
	concept.Predicate = predHasConcept
	concept.Object = v.Content.ConceptURI

	triples := []common.Triple{concept}

	if v.Content.ConceptLabel != "" {
		label := base
		label.Subject = v.Content.ConceptURI
		label.Predicate = predLabel
		label.Object = v.Content.ConceptLabel
		label.IsLiteral = true
		triples = append(triples, label)
	}

	if v.Content.Snippet != "" {
		evidence := base
		evidence.Subject = section
		evidence.Predicate = predEvidence
		evidence.Object = v.Content.Snippet
		evidence.IsLiteral = true
		triples = append(triples, evidence)
	}

	confidence := base
	confidence.Subject = section
	confidence.Predicate = predConfidence
	confidence.Object = strconv.FormatFloat(v.Content.Confidence, 'f', -1, 64)
	confidence.IsLiteral = true
	triples = append(triples, confidence)

	return triples
}
