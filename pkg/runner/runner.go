// Package runner implements the bounded workflow step engine: it walks an
// agent's ordered step list, dispatches each step to the right execution
// strategy, and threads a mutable shared context between steps.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/graviton-studio/logos/pkg/config"
	"github.com/graviton-studio/logos/pkg/eventbus"
	"github.com/graviton-studio/logos/pkg/events"
	"github.com/graviton-studio/logos/pkg/llm"
	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
)

const contextPreviewSize = 5

// Conversing runs one bounded multi-turn model conversation.
type Conversing interface {
	Converse(ctx context.Context, system string, userMessages []llm.Message) (string, map[string]any, error)
}

// ToolInvoker executes a single named tool call.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (models.ToolResult, error)
}

// Runner executes one agent workflow run. Construct a fresh Runner per run:
// it carries run-scoped state and must not be reused.
type Runner struct {
	agent   *models.Agent
	session Conversing
	gateway ToolInvoker
	store   persistence.ExecutionStore
	sink    persistence.LogSink
	bus     eventbus.EventBus

	maxSteps    int
	triggerType models.TriggerType
	triggerID   string
	logger      *slog.Logger

	steps       []models.WorkflowStep
	wctx        *WorkflowContext
	currentStep int
}

// NewRunner validates the agent and builds a run-scoped engine. The store,
// sink, and bus may be nil: the run then executes in degraded mode without
// persistence or events.
func NewRunner(
	agent *models.Agent,
	sess Conversing,
	gateway ToolInvoker,
	store persistence.ExecutionStore,
	sink persistence.LogSink,
	bus eventbus.EventBus,
	cfg config.Config,
	logger *slog.Logger,
) (*Runner, error) {
	if agent == nil || !agent.HasWorkflow() {
		return nil, errors.New("agent must have structured instructions with workflow steps defined")
	}

	maxSteps := cfg.MaxWorkflowSteps
	if maxSteps <= 0 {
		maxSteps = config.DefaultMaxWorkflowSteps
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		agent:       agent,
		session:     sess,
		gateway:     gateway,
		store:       store,
		sink:        sink,
		bus:         bus,
		maxSteps:    maxSteps,
		triggerType: models.TriggerTypeManual,
		logger:      logger.With("module", "runner", "agent_id", agent.ID),
		steps:       agent.StructuredInstructions.Workflow,
	}, nil
}

// SetTrigger overrides the default manual trigger attribution.
func (r *Runner) SetTrigger(triggerType models.TriggerType, triggerID string) {
	r.triggerType = triggerType
	r.triggerID = triggerID
}

// Run executes the workflow. It always returns a RunResult with a terminal
// state; partial final outputs gathered before a failure are included.
func (r *Runner) Run(ctx context.Context, initialContext map[string]any) (*models.RunResult, error) {
	r.wctx = NewWorkflowContext(initialContext)
	r.currentStep = 0

	executionID := newExecutionID()
	started := time.Now().UTC()

	record := &models.ExecutionRecord{
		ID:             executionID,
		AgentID:        r.agent.ID,
		UserID:         r.agent.UserID,
		TriggerID:      r.triggerID,
		TriggerType:    r.triggerType,
		InitialContext: r.wctx.All(),
		State:          models.ExecutionStateRunning,
		StartedAt:      &started,
	}

	r.wctx.Update(map[string]any{
		"execution_id": executionID,
		"agent_id":     r.agent.ID,
		"agent_name":   r.agent.Name,
	})

	inserted := false

	if r.store != nil {
		confirmedID, err := r.store.InsertExecution(ctx, record)
		if err != nil {
			r.logger.Warn("Failed to insert execution record, continuing without persistence", "error", err)
		} else {
			if confirmedID != "" && confirmedID != executionID {
				executionID = confirmedID
				record.ID = executionID
				r.wctx.Set("execution_id", executionID)
			}

			inserted = true
		}
	} else {
		r.logger.Warn("No execution store configured, run will not be persisted")
	}

	r.wctx.Update(map[string]any{
		"user_id":            r.agent.UserID,
		"workflow_objective": r.agent.StructuredInstructions.Objective,
	})

	r.logEvent(ctx, executionID, models.LogTypeInfo, map[string]any{
		"message":              "Workflow started",
		"initial_context_keys": mapKeys(r.wctx.All()),
	}, "", nil)

	r.publish(ctx, events.ExecutionStarted{
		BaseEvent:      events.NewBaseEvent(events.ExecutionStartedEvent, r.agent.ID, executionID),
		TriggerType:    r.triggerType,
		InitialContext: record.InitialContext,
	})

	finalOutputs := make(map[string]any)

	defer r.finalize(ctx, record, &inserted, started)

	stepIndex := 0
	shouldContinue := true
	errorStop := ""

	for stepIndex < len(r.steps) && shouldContinue && r.currentStep < r.maxSteps {
		r.currentStep++

		step := r.steps[stepIndex]

		r.logger.Info("Executing step",
			"step", r.currentStep,
			"max_steps", r.maxSteps,
			"step_index", stepIndex,
			"step_name", step.Step,
			"step_kind", step.Type,
			"execution_id", executionID)

		stepOutputs, cont, stepErr := r.executeStep(ctx, stepIndex, executionID, r.currentStep)
		shouldContinue = cont

		if stepErr != nil {
			errorStop = stepErr.Error()
		}

		if step.Type == models.StepKindOutput {
			for key, value := range stepOutputs {
				finalOutputs[key] = serializable(value)
			}
		}

		stepIndex++
	}

	switch {
	case r.currentStep >= r.maxSteps && stepIndex < len(r.steps):
		msg := "Reached maximum workflow steps. Terminating."

		r.logger.Warn(msg, "max_steps", r.maxSteps, "execution_id", executionID)

		record.State = models.ExecutionStateFailed
		record.ErrorMessage = msg
		r.wctx.Set("workflow_status_detail", "terminated_max_steps")
		r.logEvent(ctx, executionID, models.LogTypeWarning, map[string]any{
			"message":        msg,
			"steps_executed": r.currentStep,
		}, "", nil)
	case errorStop != "":
		record.State = models.ExecutionStateFailed
		record.ErrorMessage = errorStop
		r.wctx.Set("workflow_status_detail", "failed_step_error")
	case !shouldContinue:
		r.logger.Info("Workflow stopped early by decision step", "execution_id", executionID)

		record.State = models.ExecutionStateCompleted
		r.wctx.Set("workflow_status_detail", "completed_stopped_by_decision")
		r.logEvent(ctx, executionID, models.LogTypeInfo, map[string]any{
			"message":         "Workflow stopped early due to decision step returning false.",
			"last_step_index": stepIndex - 1,
		}, "", nil)
	default:
		r.logger.Info("Workflow completed successfully", "execution_id", executionID)

		record.State = models.ExecutionStateCompleted
		r.wctx.Set("workflow_status_detail", "completed_successfully")
	}

	record.FinalOutputs = finalOutputs

	return &models.RunResult{
		ExecutionID:    executionID,
		FinalState:     record.State,
		FinalOutputs:   finalOutputs,
		ErrorMessage:   record.ErrorMessage,
		ContextPreview: r.contextPreview(),
	}, nil
}

// finalize normalizes the record into a terminal state and hands it to the
// store and sink. It runs exactly once per run, whatever happened inside
// the main loop.
func (r *Runner) finalize(ctx context.Context, record *models.ExecutionRecord, inserted *bool, started time.Time) {
	now := time.Now().UTC()

	if record.CompletedAt == nil {
		record.CompletedAt = &now
	}

	record.UpdatedAt = now

	if record.State != models.ExecutionStateCompleted && record.State != models.ExecutionStateFailed {
		r.logger.Warn("Execution ended in ambiguous state, marking as failed",
			"execution_id", record.ID, "state", record.State)

		record.State = models.ExecutionStateFailed

		if record.ErrorMessage == "" {
			record.ErrorMessage = "Workflow ended in an unexpected or ambiguous state."
		}
	}

	if *inserted && r.store != nil {
		err := r.store.UpdateExecution(ctx, record)
		if err != nil {
			r.logger.Error("Failed to finalize execution record", "execution_id", record.ID, "error", err)
		}
	}

	r.logEvent(ctx, record.ID, models.LogTypeInfo, map[string]any{
		"message":              "Workflow execution attempt finished.",
		"final_recorded_state": record.State,
	}, "", nil)

	duration := now.Sub(started)

	if record.State == models.ExecutionStateCompleted {
		r.publish(ctx, events.ExecutionCompleted{
			BaseEvent:    events.NewBaseEvent(events.ExecutionCompletedEvent, r.agent.ID, record.ID),
			FinalOutputs: record.FinalOutputs,
			Duration:     duration,
		})
	} else {
		r.publish(ctx, events.ExecutionFailed{
			BaseEvent: events.NewBaseEvent(events.ExecutionFailedEvent, r.agent.ID, record.ID),
			Error:     record.ErrorMessage,
			Duration:  duration,
		})
	}

	r.logger.Info("Workflow execution attempt finished",
		"execution_id", record.ID, "final_state", record.State)
}

// logEvent writes one execution log entry, fire-and-forget: sink failures
// are recorded in the process log and otherwise ignored.
func (r *Runner) logEvent(ctx context.Context, executionID string, logType models.LogType, content map[string]any, nodeID string, stepNumber *int) {
	if r.sink == nil {
		return
	}

	entry := &models.ExecutionLogEntry{
		ExecutionID: executionID,
		NodeID:      nodeID,
		StepNumber:  stepNumber,
		LogType:     logType,
		Content:     content,
		Timestamp:   time.Now().UTC(),
	}

	err := r.sink.WriteLog(ctx, entry)
	if err != nil {
		r.logger.Error("Failed to write execution log", "execution_id", executionID, "error", err)
	}
}

func (r *Runner) publish(ctx context.Context, event eventbus.Event) {
	if r.bus == nil {
		return
	}

	err := r.bus.Publish(ctx, r.agent.ID, event)
	if err != nil {
		r.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) contextPreview() map[string]any {
	preview := make(map[string]any, contextPreviewSize)

	for key, value := range r.wctx.All() {
		if len(preview) >= contextPreviewSize {
			break
		}

		preview[key] = serializable(value)
	}

	return preview
}

// serializable coerces a value to a JSON-marshalable form, falling back to
// its string representation rather than dropping it.
func serializable(value any) any {
	_, err := json.Marshal(value)
	if err != nil {
		return stringify(value)
	}

	return value
}

// newExecutionID mints a short run identifier, exec-<8 hex chars>.
func newExecutionID() string {
	return "exec-" + uuid.New().String()[:8]
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	return keys
}
