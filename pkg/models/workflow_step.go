package models

// StepKind selects the execution strategy for a workflow step.
type StepKind string

const (
	StepKindTrigger   StepKind = "trigger"
	StepKindInput     StepKind = "input"
	StepKindProcess   StepKind = "process"
	StepKindOutput    StepKind = "output"
	StepKindTool      StepKind = "tool"
	StepKindDecision  StepKind = "decision"
	StepKindTransform StepKind = "transform"
	StepKindLoop      StepKind = "loop"
)

// WorkflowStep is one ordered step of an agent workflow. Order is the sole
// control-flow structure; the engine walks the list front to back.
type WorkflowStep struct {
	Step        string         `json:"step"             validate:"required"`
	Description string         `json:"description"`
	Type        StepKind       `json:"type"             validate:"required,oneof=trigger input process output tool decision transform loop"`
	Config      map[string]any `json:"config,omitempty"`
}
