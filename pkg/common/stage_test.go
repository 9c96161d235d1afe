package common

import "testing"

func TestCanPromoteTo_ForwardOnly(t *testing.T) {
	cases := []struct {
		from, to ApprovalStage
		want     bool
	}{
		{StageLLMExtracted, StageLLMApproved, true},
		{StageLLMExtracted, StageUserApproved, true},
		{StageLLMApproved, StageUserApproved, true},
		{StageLLMApproved, StageLLMExtracted, false},
		{StageUserApproved, StageLLMApproved, false},
		{StageUserApproved, StageUserApproved, false},
		{StageLLMExtracted, StageLLMExtracted, false},
	}
	for _, c := range cases {
		if got := c.from.CanPromoteTo(c.to); got != c.want {
			t.Fatalf("CanPromoteTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCanPromoteTo_RejectsUnknownStages(t *testing.T) {
	if StageLLMExtracted.CanPromoteTo("approved") {
		t.Fatal("promotion to unknown stage must be rejected")
	}
	if ApprovalStage("draft").CanPromoteTo(StageUserApproved) {
		t.Fatal("promotion from unknown stage must be rejected")
	}
}

func TestApprovalStageValid(t *testing.T) {
	for _, s := range []ApprovalStage{StageLLMExtracted, StageLLMApproved, StageUserApproved} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if ApprovalStage("USER_APPROVED").Valid() {
		t.Fatal("stage matching is case sensitive")
	}
}
