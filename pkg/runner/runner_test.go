package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/llm"
	"github.com/graviton-studio/logos/pkg/models"
)

type scriptedSession struct {
	mu      sync.Mutex
	replies []string
	calls   int
	systems []string
}

func (s *scriptedSession) Converse(_ context.Context, system string, _ []llm.Message) (string, map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systems = append(s.systems, system)

	if s.calls >= len(s.replies) {
		return "", nil, errors.New("no scripted reply left")
	}

	reply := s.replies[s.calls]
	s.calls++

	return reply, nil, nil
}

type fakeInvoker struct {
	mu     sync.Mutex
	result models.ToolResult
	err    error
	names  []string
	args   []map[string]any
}

func (f *fakeInvoker) Invoke(_ context.Context, name string, args map[string]any) (models.ToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.names = append(f.names, name)
	f.args = append(f.args, args)

	return f.result, f.err
}

type memStore struct {
	mu      sync.Mutex
	records map[string]*models.ExecutionRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.ExecutionRecord)}
}

func (s *memStore) InsertExecution(_ context.Context, record *models.ExecutionRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.records[record.ID] = &clone

	return record.ID, nil
}

func (s *memStore) UpdateExecution(_ context.Context, record *models.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.records[record.ID] = &clone

	return nil
}

func (s *memStore) ExecutionByID(_ context.Context, executionID string) (*models.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[executionID], nil
}

type memSink struct {
	mu      sync.Mutex
	entries []*models.ExecutionLogEntry
}

func (s *memSink) WriteLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)

	return nil
}

func (s *memSink) countMessage(message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, entry := range s.entries {
		if entry.Content["message"] == message {
			count++
		}
	}

	return count
}

func testAgent(steps ...models.WorkflowStep) *models.Agent {
	return &models.Agent{
		ID:     "agent-1",
		Name:   "Research Agent",
		UserID: "user-1",
		StructuredInstructions: &models.StructuredInstructions{
			Objective: "research a topic",
			Workflow:  steps,
		},
	}
}

func TestNewRunnerRequiresWorkflow(t *testing.T) {
	_, err := NewRunner(&models.Agent{ID: "a"}, nil, nil, nil, nil, nil, config.Config{}, nil)
	require.Error(t, err)
}

func TestRunThreeStepWorkflow(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Collect topic", Type: models.StepKindInput, Config: map[string]any{"default_value": "go runtimes"}},
		models.WorkflowStep{Step: "Summarize", Type: models.StepKindProcess},
		models.WorkflowStep{Step: "Report", Type: models.StepKindOutput},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_1_result": "summary of go runtimes"}`,
		`{"final_summary": "summary of go runtimes"}`,
	}}
	store := newMemStore()
	sink := &memSink{}

	r, err := NewRunner(agent, sess, nil, store, sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "summary of go runtimes", result.FinalOutputs["final_summary"])
	assert.Equal(t, 2, sess.calls)
	assert.Equal(t, "completed_successfully", r.wctx.Get("workflow_status_detail"))

	record, err := store.ExecutionByID(context.Background(), result.ExecutionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.ExecutionStateCompleted, record.State)
	assert.NotNil(t, record.CompletedAt)
	assert.Equal(t, "summary of go runtimes", record.FinalOutputs["final_summary"])
}

func TestDecisionStepStopsWorkflow(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Check flag", Type: models.StepKindDecision, Config: map[string]any{"condition": "not_empty:flag"}},
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{"default_value": "x"}},
	)

	sink := &memSink{}

	r, err := NewRunner(agent, nil, nil, newMemStore(), sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"flag": ""})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "completed_stopped_by_decision", r.wctx.Get("workflow_status_detail"))
	assert.Equal(t, 1, sink.countMessage("Starting step execution"))
}

func TestDecisionStepContinues(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Check flag", Type: models.StepKindDecision, Config: map[string]any{"condition": "not_empty:flag"}},
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{"default_value": "x"}},
	)

	sink := &memSink{}

	r, err := NewRunner(agent, nil, nil, newMemStore(), sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"flag": "set"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "completed_successfully", r.wctx.Get("workflow_status_detail"))
	assert.Equal(t, 2, sink.countMessage("Starting step execution"))
}

func TestRunStopsAtStepCeiling(t *testing.T) {
	steps := make([]models.WorkflowStep, 25)
	for i := range steps {
		steps[i] = models.WorkflowStep{
			Step:   fmt.Sprintf("Step %d", i),
			Type:   models.StepKindInput,
			Config: map[string]any{"default_value": "v"},
		}
	}

	agent := testAgent(steps...)
	sink := &memSink{}
	store := newMemStore()

	r, err := NewRunner(agent, nil, nil, store, sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateFailed, result.FinalState)
	assert.Equal(t, "Reached maximum workflow steps. Terminating.", result.ErrorMessage)
	assert.Equal(t, "terminated_max_steps", r.wctx.Get("workflow_status_detail"))
	assert.Equal(t, config.DefaultMaxWorkflowSteps, sink.countMessage("Starting step execution"))
}

func TestToolStepOutputMapping(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Fetch rows", Type: models.StepKindTool, Config: map[string]any{
			"tool_name":      "fetch_rows",
			"input_mapping":  map[string]any{"query": "topic"},
			"output_mapping": map[string]any{"rows": "$output"},
		}},
	)

	invoker := &fakeInvoker{result: models.ToolResult{Content: map[string]any{"a": float64(1)}}}

	r, err := NewRunner(agent, nil, invoker, newMemStore(), &memSink{}, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"topic": "runtimes"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	require.Len(t, invoker.names, 1)
	assert.Equal(t, "fetch_rows", invoker.names[0])
	assert.Equal(t, map[string]any{"query": "runtimes"}, invoker.args[0])
	assert.Equal(t, map[string]any{"a": float64(1)}, r.wctx.Get("rows"))
}

func TestToolStepNamedFieldMapping(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Fetch", Type: models.StepKindTool, Config: map[string]any{
			"tool_name":      "fetch",
			"input_mapping":  map[string]any{},
			"output_mapping": map[string]any{"total": "count"},
		}},
	)

	invoker := &fakeInvoker{result: models.ToolResult{Content: map[string]any{"count": float64(7), "items": []any{}}}}

	r, err := NewRunner(agent, nil, invoker, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, float64(7), r.wctx.Get("total"))
}

func TestToolStepErrorFailsRun(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Fetch", Type: models.StepKindTool, Config: map[string]any{
			"tool_name":     "fetch",
			"input_mapping": map[string]any{},
		}},
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{"default_value": "x"}},
	)

	invoker := &fakeInvoker{err: errors.New("connection refused")}
	sink := &memSink{}

	r, err := NewRunner(agent, nil, invoker, newMemStore(), sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateFailed, result.FinalState)
	assert.Contains(t, result.ErrorMessage, "connection refused")
	assert.Equal(t, "failed_step_error", r.wctx.Get("workflow_status_detail"))
	assert.Contains(t, r.wctx.Get("step_0_error"), "connection refused")
	assert.Equal(t, 1, sink.countMessage("Starting step execution"))
}

func TestTransformStepDirectStringify(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Encode", Type: models.StepKindTransform, Config: map[string]any{
			"input_variables": []any{"data"},
		}},
	)

	r, err := NewRunner(agent, nil, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"data": map[string]any{"k": "v"}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, `{"k":"v"}`, r.wctx.Get("step_0_result"))
}

func TestLoopStepIteratesCollection(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Process each", Type: models.StepKindLoop, Config: map[string]any{
			"collection_variable": "items",
		}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_result": "handled a"}`,
		`{"step_0_result": "handled b"}`,
	}}

	r, err := NewRunner(agent, sess, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, 2, sess.calls)
	assert.Equal(t, []any{"handled a", "handled b"}, r.wctx.Get("step_0_result"))
}

func TestLoopStepBoundsIterations(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Process each", Type: models.StepKindLoop, Config: map[string]any{
			"collection_variable": "items",
			"max_iterations":      2,
		}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_result": "one"}`,
		`{"step_0_result": "two"}`,
	}}

	r, err := NewRunner(agent, sess, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"items": []any{"a", "b", "c", "d"}})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, 2, sess.calls)
}

func TestRunWithoutStoreStillCompletes(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{"default_value": "x"}},
	)

	r, err := NewRunner(agent, nil, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.NotEmpty(t, result.ExecutionID)
}

func TestInputStepLeavesBoundVariableUntouched(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{
			"variable_name": "topic",
			"default_value": "fallback",
		}},
	)

	r, err := NewRunner(agent, nil, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), map[string]any{"topic": "provided"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "provided", r.wctx.Get("topic"))
}

func TestFinalizeNormalizesAmbiguousState(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Collect", Type: models.StepKindInput, Config: map[string]any{"default_value": "x"}},
	)
	store := newMemStore()

	r, err := NewRunner(agent, nil, nil, store, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	r.wctx = NewWorkflowContext(nil)

	record := &models.ExecutionRecord{
		ID:      "exec-1",
		AgentID: agent.ID,
		State:   models.ExecutionStateRunning,
	}
	_, err = store.InsertExecution(context.Background(), record)
	require.NoError(t, err)

	inserted := true
	r.finalize(context.Background(), record, &inserted, record.CreatedAt)

	assert.Equal(t, models.ExecutionStateFailed, record.State)
	assert.Equal(t, "Workflow ended in an unexpected or ambiguous state.", record.ErrorMessage)

	saved, err := store.ExecutionByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStateFailed, saved.State)
}

func TestDecisionUnboundVariableDelegatesToModel(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Check flag", Type: models.StepKindDecision, Config: map[string]any{"condition": "not_empty:never_bound"}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_condition_result": true}`,
	}}
	sink := &memSink{}

	r, err := NewRunner(agent, sess, nil, newMemStore(), sink, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sess.calls)
	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "completed_successfully", r.wctx.Get("workflow_status_detail"))
}

func TestContainsConditionUnboundVariableDelegatesToModel(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Check body", Type: models.StepKindDecision, Config: map[string]any{"condition": "contains:never_bound:needle"}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_condition_result": false}`,
	}}

	r, err := NewRunner(agent, sess, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sess.calls)
	assert.Equal(t, models.ExecutionStateCompleted, result.FinalState)
	assert.Equal(t, "completed_stopped_by_decision", r.wctx.Get("workflow_status_detail"))
}

func TestExecutionIDFormat(t *testing.T) {
	assert.True(t, strings.HasPrefix(newExecutionID(), "exec-"))
	assert.Len(t, newExecutionID(), len("exec-")+8)
	assert.NotEqual(t, newExecutionID(), newExecutionID())
}

func TestPreviewKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 100)

	out := preview(text, 5)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "éé", out)

	assert.Equal(t, "short", preview("short", 10))
}

func TestLoopStepUnbindsItemVariable(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Process each", Type: models.StepKindLoop, Config: map[string]any{
			"collection_variable": "items",
		}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_result": "one"}`,
		`{"step_0_result": "two"}`,
	}}

	r, err := NewRunner(agent, sess, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{"items": []any{"a", "b"}})
	require.NoError(t, err)

	assert.Nil(t, r.wctx.Get("item"))
}

func TestLoopStepRestoresPriorItemBinding(t *testing.T) {
	agent := testAgent(
		models.WorkflowStep{Step: "Process each", Type: models.StepKindLoop, Config: map[string]any{
			"collection_variable": "items",
		}},
	)

	sess := &scriptedSession{replies: []string{
		`{"step_0_result": "one"}`,
	}}

	r, err := NewRunner(agent, sess, nil, nil, nil, nil, config.Config{}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), map[string]any{
		"items": []any{"a"},
		"item":  "original",
	})
	require.NoError(t, err)

	assert.Equal(t, "original", r.wctx.Get("item"))
}
