package assoc

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethicase/backend/internal/util"
	"github.com/ethicase/backend/pkg/ai"
	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/store"
)

const (
	conceptBatchSize = 40
	maxAIRetries     = 3
)

const llmSystemPrompt = `You review sections of medical ethics case documents.
For each candidate concept decide whether the section genuinely concerns it.
Mark a concept relevant only when the section's text supports it; do not
guess from the concept name alone.`

type conceptPick struct {
	ConceptURI string  `json:"concept_uri" jsonschema_description:"URI of the candidate concept"`
	Relevant   bool    `json:"relevant" jsonschema_description:"Whether the section concerns this concept"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence in the judgement between 0 and 1"`
}

type conceptPickList struct {
	Picks []conceptPick `json:"picks"`
}

const listConceptsSQL = `
SELECT uri, label FROM concepts ORDER BY uri;
`

// scoreByLLM asks the model, in batches of candidate concepts, which apply to
// the section. Picks referencing concepts that were not offered are dropped.
func (s *Scorer) scoreByLLM(ctx context.Context, sectionID int64, text string) ([]common.Association, error) {
	concepts, err := s.listConcepts(ctx)
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, nil
	}

	text = truncateTokens(text, maxSectionTokens)
	genOpts := generateOptions()

	var associations []common.Association
	err = store.ChunkRange(len(concepts), conceptBatchSize, func(start, end int) error {
		batch := concepts[start:end]
		var out conceptPickList
		err := util.RetryErrWithContext(ctx, maxAIRetries, func(ctx context.Context) error {
			out = conceptPickList{}
			return s.client.GenerateCompletionWithFormat(ctx,
				"concept_relevance",
				"Relevance judgement for each candidate concept against the section text",
				buildLLMPrompt(text, batch),
				&out,
				genOpts...,
			)
		})
		if err != nil {
			return fmt.Errorf("failed to score concepts via llm: %w", err)
		}
		associations = append(associations, filterPicks(sectionID, out.Picks, batch)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return associations, nil
}

func (s *Scorer) listConcepts(ctx context.Context) ([]common.Concept, error) {
	rows, err := s.conn.Query(ctx, listConceptsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()

	var concepts []common.Concept
	for rows.Next() {
		var c common.Concept
		if err := rows.Scan(&c.URI, &c.Label); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// generateOptions builds the per-request options for relevance scoring.
// Model, temperature and thinking effort are operator overrides; unset they
// leave the client's defaults in place.
func generateOptions() []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithSystemPrompts(llmSystemPrompt)}
	if model := util.GetEnv("ASSOC_LLM_MODEL"); model != "" {
		opts = append(opts, ai.WithModel(model))
	}
	if temp := util.GetEnvNumeric("ASSOC_LLM_TEMPERATURE", 0); temp > 0 {
		opts = append(opts, ai.WithTemperature(temp))
	}
	if thinking := util.GetEnv("ASSOC_LLM_THINKING"); thinking != "" {
		opts = append(opts, ai.WithThinking(thinking))
	}
	return opts
}

func buildLLMPrompt(text string, concepts []common.Concept) string {
	var b strings.Builder
	b.WriteString("Section text:\n")
	b.WriteString(text)
	b.WriteString("\n\nCandidate concepts:\n")
	for _, c := range concepts {
		fmt.Fprintf(&b, "- %s (%s)\n", c.URI, c.Label)
	}
	b.WriteString("\nJudge every candidate concept exactly once.")
	return b.String()
}

// filterPicks keeps relevant picks that reference an offered concept and
// converts them to associations. Missing confidences default to 1.0 and
// out-of-range values are clamped.
func filterPicks(sectionID int64, picks []conceptPick, offered []common.Concept) []common.Association {
	labels := make(map[string]string, len(offered))
	for _, c := range offered {
		labels[c.URI] = c.Label
	}

	var associations []common.Association
	for _, p := range picks {
		if !p.Relevant {
			continue
		}
		label, known := labels[p.ConceptURI]
		if !known {
			continue
		}
		score := p.Confidence
		if score <= 0 {
			score = 1.0
		}
		if score > 1 {
			score = 1.0
		}
		associations = append(associations, common.Association{
			SectionID:    sectionID,
			ConceptURI:   p.ConceptURI,
			ConceptLabel: label,
			MatchScore:   score,
			Method:       common.MethodLLM,
		})
	}
	return associations
}
