package common

// ApprovalStage is the human-review status of an annotation version. Stages
// only ever move forward for a given version; creating a new version resets
// the stage for that version, not for its predecessors.
type ApprovalStage string

const (
	StageLLMExtracted ApprovalStage = "llm_extracted"
	StageLLMApproved  ApprovalStage = "llm_approved"
	StageUserApproved ApprovalStage = "user_approved"
)

// stageOrder is the closed transition table. Unknown stages rank -1 so they
// are rejected rather than silently accepted.
var stageOrder = map[ApprovalStage]int{
	StageLLMExtracted: 0,
	StageLLMApproved:  1,
	StageUserApproved: 2,
}

// Valid reports whether s is one of the known approval stages.
func (s ApprovalStage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// rank returns the position of s in the progression, or -1 for unknown stages.
func (s ApprovalStage) rank() int {
	r, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return r
}

// CanPromoteTo reports whether a version at stage s may be promoted to
// target. Only strictly forward moves between known stages are allowed.
func (s ApprovalStage) CanPromoteTo(target ApprovalStage) bool {
	from, to := s.rank(), target.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}
