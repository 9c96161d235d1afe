// Package assoc computes confidence-scored links between document sections
// and ontology concepts. Two independent methods are supported: vector
// similarity over concept embeddings and LLM relevance judgement. Results are
// regenerated wholesale per section so reruns converge to the same state.
package assoc

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ethicase/backend/internal/util"
	"github.com/ethicase/backend/pkg/ai"
	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/logger"
	"github.com/ethicase/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEmbedThreshold   = 0.75
	defaultEmbedLimit       = 25
	defaultScoreConcurrency = 4
	maxSectionTokens        = 6000
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// DocumentTextLoader fetches the full plain text of a document from the
// object store, keyed by the document's source key.
type DocumentTextLoader interface {
	GetText(ctx context.Context, key string) (string, error)
}

// Scorer regenerates section-concept associations for documents.
type Scorer struct {
	conn   pgxIConn
	cases  store.CaseStore
	assocs store.AssociationStore
	client ai.ScorerAIClient
	docs   DocumentTextLoader
}

// NewScorerParams bundles the dependencies of a Scorer. Docs may be nil when
// every section has its text materialised in the database.
type NewScorerParams struct {
	Conn   pgxIConn
	Cases  store.CaseStore
	Assocs store.AssociationStore
	Client ai.ScorerAIClient
	Docs   DocumentTextLoader
}

func NewScorer(params NewScorerParams) *Scorer {
	return &Scorer{
		conn:   params.Conn,
		cases:  params.Cases,
		assocs: params.Assocs,
		client: params.Client,
		docs:   params.Docs,
	}
}

// RegenerateForDocument recomputes all associations for every section of the
// document using the given method, replacing whatever the method produced
// before. Associations from the other method are untouched. Returns the
// number of associations written.
func (s *Scorer) RegenerateForDocument(ctx context.Context, documentID int64, method common.AssociationMethod) (int, error) {
	if !method.Valid() {
		return 0, fmt.Errorf("%w: unknown association method %q", store.ErrConstraintViolation, method)
	}

	doc, err := s.cases.GetDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	sections, err := s.cases.GetSections(ctx, documentID)
	if err != nil {
		return 0, err
	}

	// Sections are scored concurrently; the AI client's semaphore caps the
	// provider load. Writes stay sequential so each section's replace is its
	// own transaction.
	scored := make([][]common.Association, len(sections))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(scoreConcurrency())
	for i := range sections {
		idx := i
		section := sections[i]
		eg.Go(func() error {
			text, err := s.sectionText(ectx, doc, section)
			if err != nil {
				return fmt.Errorf("failed to load text for section %d: %w", section.ID, err)
			}

			var associations []common.Association
			switch method {
			case common.MethodEmbedding:
				associations, err = s.scoreByEmbedding(ectx, section.ID, text)
			case common.MethodLLM:
				associations, err = s.scoreByLLM(ectx, section.ID, text)
			}
			if err != nil {
				return fmt.Errorf("failed to score section %d: %w", section.ID, err)
			}
			scored[idx] = associations
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for i, section := range sections {
		written, err := s.assocs.ReplaceForSection(ctx, section.ID, method, scored[i])
		if err != nil {
			return total, err
		}
		total += written
	}

	logger.Info("[Assoc] Regenerated associations",
		"document_id", documentID, "method", method, "sections", len(sections), "written", total)
	return total, nil
}

// sectionText prefers the materialised text and falls back to slicing the
// document object by the section's span.
func (s *Scorer) sectionText(ctx context.Context, doc common.Document, section common.Section) (string, error) {
	if section.Text != "" {
		return section.Text, nil
	}
	if s.docs == nil {
		return "", fmt.Errorf("section %d has no text and no document loader is configured", section.ID)
	}
	full, err := s.docs.GetText(ctx, doc.SourceKey)
	if err != nil {
		return "", err
	}
	return sliceSpan(full, section.Start, section.End), nil
}

// sliceSpan extracts [start, end) from text, clamping out-of-range spans
// instead of panicking on rows written by older importers. Offsets landing
// inside a multi-byte rune shrink inward to the nearest boundary so the
// slice stays valid UTF-8.
func sliceSpan(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > 0 && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	if start >= end {
		return ""
	}
	return text[start:end]
}

func embedThreshold() float64 {
	t := util.GetEnvNumeric("ASSOC_EMBED_THRESHOLD", 0)
	if t <= 0 || t > 1 {
		return defaultEmbedThreshold
	}
	return t
}

func embedLimit() int {
	l := int(util.GetEnvNumeric("ASSOC_EMBED_LIMIT", defaultEmbedLimit))
	if l <= 0 {
		return defaultEmbedLimit
	}
	return l
}

func scoreConcurrency() int {
	n := int(util.GetEnvNumeric("ASSOC_CONCURRENCY", defaultScoreConcurrency))
	if n < 1 {
		return 1
	}
	return n
}
