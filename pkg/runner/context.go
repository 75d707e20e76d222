package runner

// WorkflowContext is the mutable shared state threaded between steps. It is
// not safe for concurrent access: steps run strictly in order, and the order
// of writes encodes the workflow's data flow.
type WorkflowContext struct {
	variables   map[string]any
	stepOutputs map[int]map[string]any
}

func NewWorkflowContext(initial map[string]any) *WorkflowContext {
	variables := make(map[string]any, len(initial))
	for key, value := range initial {
		variables[key] = value
	}

	return &WorkflowContext{
		variables:   variables,
		stepOutputs: make(map[int]map[string]any),
	}
}

func (c *WorkflowContext) Set(key string, value any) {
	c.variables[key] = value
}

func (c *WorkflowContext) Get(key string) any {
	return c.variables[key]
}

func (c *WorkflowContext) Delete(key string) {
	delete(c.variables, key)
}

func (c *WorkflowContext) Update(updates map[string]any) {
	for key, value := range updates {
		c.variables[key] = value
	}
}

// All returns a copy of the variables, so callers cannot mutate the context
// behind the engine's back.
func (c *WorkflowContext) All() map[string]any {
	snapshot := make(map[string]any, len(c.variables))
	for key, value := range c.variables {
		snapshot[key] = value
	}

	return snapshot
}

// TrackStepOutput records a step's outputs by ordinal and merges them into
// the shared variables. Later steps overwrite earlier keys.
func (c *WorkflowContext) TrackStepOutput(stepIndex int, outputs map[string]any) {
	c.stepOutputs[stepIndex] = outputs
	c.Update(outputs)
}

// StepOutputs returns the outputs recorded for one ordinal, or nil.
func (c *WorkflowContext) StepOutputs(stepIndex int) map[string]any {
	return c.stepOutputs[stepIndex]
}
