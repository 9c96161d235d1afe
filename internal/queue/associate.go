package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ethicase/backend/internal/storage"
	"github.com/ethicase/backend/pkg/ai"
	"github.com/ethicase/backend/pkg/assoc"
	"github.com/ethicase/backend/pkg/common"
	"github.com/ethicase/backend/pkg/logger"
	storepgx "github.com/ethicase/backend/pkg/store/pgx"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessAssociateMessage regenerates associations for the document named in
// the message. Regeneration replaces per section, so redelivery after a crash
// converges to the same result.
func ProcessAssociateMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	aiClient ai.ScorerAIClient,
	conn *pgxpool.Pool,
	msg string,
) error {
	data := new(AssociateMessage)
	if err := decodeMessage(msg, data); err != nil {
		return err
	}
	method := common.AssociationMethod(data.Method)

	st := storepgx.New(conn)
	scorer := assoc.NewScorer(assoc.NewScorerParams{
		Conn:   conn,
		Cases:  st,
		Assocs: st,
		Client: aiClient,
		Docs:   storage.NewTextLoader(s3Client),
	})

	start := time.Now()
	written, err := scorer.RegenerateForDocument(ctx, data.DocumentID, method)
	if err != nil {
		return fmt.Errorf("failed to regenerate associations for document %d: %w", data.DocumentID, err)
	}

	logger.Info("[Queue] Associate completed",
		"document_id", data.DocumentID, "method", method,
		"written", written, "duration_sec", time.Since(start).Seconds())
	return nil
}
