package consolidate

import (
	"context"
	"fmt"

	"github.com/ethicase/backend/pkg/common"
)

const orphanedTriplesScanSQL = `
SELECT t.id FROM triples t
WHERE (t.owner_entity_type = 'guideline'
       AND NOT EXISTS (SELECT 1 FROM guidelines g WHERE g.id = t.owner_entity_id))
   OR (t.owner_entity_type = 'document'
       AND NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = t.owner_entity_id))
ORDER BY t.id;
`

const orphanedTripleDeleteSQL = `
DELETE FROM triples t
WHERE t.id = $1
  AND ((t.owner_entity_type = 'guideline'
        AND NOT EXISTS (SELECT 1 FROM guidelines g WHERE g.id = t.owner_entity_id))
    OR (t.owner_entity_type = 'document'
        AND NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = t.owner_entity_id)));
`

// removeOrphanedTriples drops triples whose owning entity was deleted.
func (j *Job) removeOrphanedTriples(ctx context.Context) (PassResult, error) {
	result := PassResult{Name: "orphaned_triples"}

	ids, err := j.scanIDs(ctx, orphanedTriplesScanSQL)
	if err != nil {
		return result, fmt.Errorf("failed to scan orphaned triples: %w", err)
	}
	result.Examined = len(ids)

	j.deleteRows(ctx, &result, ids, orphanedTripleDeleteSQL)
	return result, nil
}

const duplicateGuidelineDocsSQL = `
SELECT document_id, count(*) FROM guidelines
GROUP BY document_id HAVING count(*) > 1
ORDER BY document_id;
`

// mergeDuplicateGuidelines finds documents with more than one guideline and
// lets the deduplication service collapse each onto its oldest record. Each
// document is its own transaction; one failed merge does not stop the rest.
func (j *Job) mergeDuplicateGuidelines(ctx context.Context) (PassResult, error) {
	result := PassResult{Name: "duplicate_guidelines"}

	rows, err := j.conn.Query(ctx, duplicateGuidelineDocsSQL)
	if err != nil {
		return result, fmt.Errorf("failed to scan duplicate guidelines: %w", err)
	}
	type dupeDoc struct {
		documentID int64
		count      int
	}
	var docs []dupeDoc
	for rows.Next() {
		var d dupeDoc
		if err := rows.Scan(&d.documentID, &d.count); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan duplicate guideline row: %w", err)
		}
		docs = append(docs, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	result.Examined = len(docs)
	for _, d := range docs {
		if _, err := j.dedupe.ResolveGuideline(ctx, d.documentID); err != nil {
			result.Failures = append(result.Failures, RowFailure{RowID: d.documentID, Err: err.Error()})
			continue
		}
		result.Removed += d.count - 1
	}
	return result, nil
}

const duplicateFactsScanSQL = `
SELECT t.id FROM triples t
WHERE t.owner_entity_type = $1
  AND EXISTS (
	SELECT 1 FROM triples k
	WHERE k.owner_entity_type = t.owner_entity_type
	  AND k.owner_entity_id = t.owner_entity_id
	  AND k.subject = t.subject AND k.predicate = t.predicate
	  AND k.object = t.object AND k.is_literal = t.is_literal
	  AND k.id < t.id
  )
ORDER BY t.id;
`

const duplicateFactDeleteSQL = `
DELETE FROM triples t
WHERE t.id = $1
  AND EXISTS (
	SELECT 1 FROM triples k
	WHERE k.owner_entity_type = t.owner_entity_type
	  AND k.owner_entity_id = t.owner_entity_id
	  AND k.subject = t.subject AND k.predicate = t.predicate
	  AND k.object = t.object AND k.is_literal = t.is_literal
	  AND k.id < t.id
  );
`

// removeDuplicateFacts drops triples restating a fact the same guideline
// already holds in another graph, keeping the oldest row. The fact
// uniqueness constraint only covers identical graphs, so restatements across
// annotation groups accumulate until this pass runs.
func (j *Job) removeDuplicateFacts(ctx context.Context) (PassResult, error) {
	result := PassResult{Name: "duplicate_facts"}

	ids, err := j.scanIDs(ctx, duplicateFactsScanSQL, common.OwnerGuideline)
	if err != nil {
		return result, fmt.Errorf("failed to scan duplicate facts: %w", err)
	}
	result.Examined = len(ids)

	j.deleteRows(ctx, &result, ids, duplicateFactDeleteSQL)
	return result, nil
}
