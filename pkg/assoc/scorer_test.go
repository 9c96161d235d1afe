package assoc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ethicase/backend/pkg/ai"
	"github.com/ethicase/backend/pkg/common"
)

func TestSliceSpan(t *testing.T) {
	text := "informed consent matters"

	if got := sliceSpan(text, 0, 8); got != "informed" {
		t.Fatalf("expected informed, got %q", got)
	}
	if got := sliceSpan(text, 9, 16); got != "consent" {
		t.Fatalf("expected consent, got %q", got)
	}
	if got := sliceSpan(text, -5, 8); got != "informed" {
		t.Fatalf("negative start should clamp, got %q", got)
	}
	if got := sliceSpan(text, 0, 1000); got != text {
		t.Fatalf("overlong end should clamp, got %q", got)
	}
	if got := sliceSpan(text, 20, 10); got != "" {
		t.Fatalf("inverted span should be empty, got %q", got)
	}
}

func TestSliceSpanRuneBoundaries(t *testing.T) {
	// "ï" occupies bytes 2-3 and "é" bytes 8-9; offsets landing inside them
	// must snap inward instead of splitting the rune.
	text := "naïve décision"

	if got := sliceSpan(text, 0, 3); got != "na" {
		t.Fatalf("end inside rune should snap back, got %q", got)
	}
	if got := sliceSpan(text, 3, 6); got != "ve" {
		t.Fatalf("start inside rune should snap forward, got %q", got)
	}
	if got := sliceSpan(text, 3, 3); got != "" {
		t.Fatalf("degenerate mid-rune span should be empty, got %q", got)
	}
	for start := 0; start <= len(text); start++ {
		for end := start; end <= len(text); end++ {
			if got := sliceSpan(text, start, end); !utf8.ValidString(got) {
				t.Fatalf("sliceSpan(%d, %d) produced invalid UTF-8: %q", start, end, got)
			}
		}
	}
}

func TestGenerateOptions(t *testing.T) {
	t.Setenv("ASSOC_LLM_MODEL", "")
	t.Setenv("ASSOC_LLM_TEMPERATURE", "")
	t.Setenv("ASSOC_LLM_THINKING", "")

	var opts ai.GenerateOptions
	for _, apply := range generateOptions() {
		apply(&opts)
	}
	if len(opts.SystemPrompts) != 1 || opts.SystemPrompts[0] != llmSystemPrompt {
		t.Fatalf("expected only the scoring system prompt, got %v", opts.SystemPrompts)
	}
	if opts.Model != "" || opts.Temperature != 0 || opts.Thinking != "" {
		t.Fatalf("expected client defaults untouched, got %+v", opts)
	}

	t.Setenv("ASSOC_LLM_MODEL", "scorer-large")
	t.Setenv("ASSOC_LLM_TEMPERATURE", "0.2")
	t.Setenv("ASSOC_LLM_THINKING", "low")

	opts = ai.GenerateOptions{}
	for _, apply := range generateOptions() {
		apply(&opts)
	}
	if opts.Model != "scorer-large" {
		t.Fatalf("expected model override, got %q", opts.Model)
	}
	if opts.Temperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", opts.Temperature)
	}
	if opts.Thinking != "low" {
		t.Fatalf("expected thinking override, got %q", opts.Thinking)
	}
}

func TestFilterPicks(t *testing.T) {
	offered := []common.Concept{
		{URI: "urn:c:consent", Label: "Informed Consent"},
		{URI: "urn:c:autonomy", Label: "Autonomy"},
	}
	picks := []conceptPick{
		{ConceptURI: "urn:c:consent", Relevant: true, Confidence: 0.8},
		{ConceptURI: "urn:c:autonomy", Relevant: false, Confidence: 0.9},
		{ConceptURI: "urn:c:invented", Relevant: true, Confidence: 0.7},
	}

	got := filterPicks(5, picks, offered)
	if len(got) != 1 {
		t.Fatalf("expected 1 association, got %d", len(got))
	}
	a := got[0]
	if a.SectionID != 5 || a.ConceptURI != "urn:c:consent" || a.ConceptLabel != "Informed Consent" {
		t.Fatalf("unexpected association: %+v", a)
	}
	if a.MatchScore != 0.8 || a.Method != common.MethodLLM {
		t.Fatalf("unexpected score or method: %+v", a)
	}
}

func TestFilterPicksConfidenceDefaultsAndClamps(t *testing.T) {
	offered := []common.Concept{
		{URI: "urn:c:a", Label: "A"},
		{URI: "urn:c:b", Label: "B"},
	}
	picks := []conceptPick{
		{ConceptURI: "urn:c:a", Relevant: true},
		{ConceptURI: "urn:c:b", Relevant: true, Confidence: 3.5},
	}

	got := filterPicks(1, picks, offered)
	if len(got) != 2 {
		t.Fatalf("expected 2 associations, got %d", len(got))
	}
	if got[0].MatchScore != 1.0 {
		t.Fatalf("missing confidence should default to 1.0, got %v", got[0].MatchScore)
	}
	if got[1].MatchScore != 1.0 {
		t.Fatalf("overrange confidence should clamp to 1.0, got %v", got[1].MatchScore)
	}
}

func TestBuildLLMPrompt(t *testing.T) {
	prompt := buildLLMPrompt("the patient refused treatment", []common.Concept{
		{URI: "urn:c:refusal", Label: "Treatment Refusal"},
	})
	if !strings.Contains(prompt, "the patient refused treatment") {
		t.Fatalf("prompt missing section text: %s", prompt)
	}
	if !strings.Contains(prompt, "urn:c:refusal (Treatment Refusal)") {
		t.Fatalf("prompt missing concept listing: %s", prompt)
	}
}
