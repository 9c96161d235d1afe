package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// AssociateMessage requests regeneration of section-concept associations for
// one document with one scoring method.
type AssociateMessage struct {
	DocumentID int64  `json:"document_id" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required,oneof=embedding llm"`
}

// ConsolidateMessage triggers a consolidation run. DocumentID optionally
// narrows the duplicate-guideline pass to one document; zero means all.
type ConsolidateMessage struct {
	DocumentID int64 `json:"document_id,omitempty" validate:"gte=0"`
}

func decodeMessage(raw string, out any) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}
