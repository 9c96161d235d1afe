package ai

import (
	"encoding/json"
	"testing"
)

type scorePayload struct {
	ConceptURI string  `json:"concept_uri"`
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
}

func TestUnmarshalFlexible_StandardJSON(t *testing.T) {
	var out scorePayload
	err := UnmarshalFlexible(`{"concept_uri": "urn:c:1", "relevant": true, "confidence": 0.8}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.ConceptURI != "urn:c:1" || !out.Relevant || out.Confidence != 0.8 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DoubleEncoded(t *testing.T) {
	var out scorePayload
	err := UnmarshalFlexible(`"{\"concept_uri\": \"urn:c:2\", \"relevant\": false, \"confidence\": 0.1}"`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.ConceptURI != "urn:c:2" || out.Relevant {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_Malformed(t *testing.T) {
	var out scorePayload
	err := UnmarshalFlexible(`{concept_uri: "urn:c:3", relevant: true, confidence: 1,}`, &out)
	if err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if out.ConceptURI != "urn:c:3" || !out.Relevant {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalFlexible_DuplicateLeadingBrace(t *testing.T) {
	var out scorePayload
	err := UnmarshalFlexible(`{ {"concept_uri": "urn:c:4", "relevant": true, "confidence": 0.5}`, &out)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if out.ConceptURI != "urn:c:4" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema(&scorePayload{})
	raw, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("schema should marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("schema should be valid JSON: %v", err)
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", raw)
	}
	for _, field := range []string{"concept_uri", "relevant", "confidence"} {
		if _, ok := props[field]; !ok {
			t.Fatalf("schema missing field %q: %s", field, raw)
		}
	}
	if decoded["additionalProperties"] != false {
		t.Fatalf("schema should forbid additional properties: %s", raw)
	}
}
