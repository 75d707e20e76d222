package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/graviton-studio/logos/pkg/events"
	"github.com/graviton-studio/logos/pkg/llm"
	"github.com/graviton-studio/logos/pkg/models"
)

// wholeOutputSentinel maps a tool step's entire result to a context variable.
const wholeOutputSentinel = "$output"

// executeStep runs one step and reports (outputs, continue, error). Errors
// are absorbed into the run: they land in the context as step_<ordinal>_error
// and stop forward progress without crashing the engine.
func (r *Runner) executeStep(ctx context.Context, stepIndex int, executionID string, stepNumber int) (map[string]any, bool, error) {
	step := r.steps[stepIndex]
	stepID := stepNodeID(stepIndex, step)

	r.logEvent(ctx, executionID, models.LogTypeNodeExecution, map[string]any{
		"message":          "Starting step execution",
		"step_name":        step.Step,
		"step_type":        step.Type,
		"step_description": step.Description,
	}, stepID, &stepNumber)

	cfg := stepConfig(step, stepIndex)

	var (
		outputs map[string]any
		err     error
	)

	if step.Type == models.StepKindTool {
		outputs, err = r.executeToolStep(ctx, step, stepIndex, cfg, executionID, stepNumber)
	} else {
		outputs, err = r.executeStepWithLLM(ctx, step, stepIndex, cfg, executionID, stepNumber)
	}

	if err != nil {
		errMsg := fmt.Sprintf("Error executing step %d %q: %v", stepIndex, step.Step, err)

		r.logger.Error("Step execution failed", "step_index", stepIndex, "error", err)
		r.wctx.Set(fmt.Sprintf("step_%d_error", stepIndex), errMsg)
		r.logEvent(ctx, executionID, models.LogTypeError, map[string]any{
			"message": errMsg,
		}, stepID, &stepNumber)

		return map[string]any{fmt.Sprintf("step_%d_error", stepIndex): errMsg}, false, fmt.Errorf("%s", errMsg)
	}

	shouldContinue := true

	if step.Type == models.StepKindDecision {
		resultKey := fmt.Sprintf("step_%d_condition_result", stepIndex)
		if result, ok := outputs[resultKey].(bool); ok && !result {
			shouldContinue = false

			r.logger.Info("Decision step returned false, stopping workflow", "step_index", stepIndex)
		}
	}

	r.wctx.TrackStepOutput(stepIndex, outputs)

	r.logEvent(ctx, executionID, models.LogTypeNodeExecution, map[string]any{
		"message":         "Step execution completed",
		"outputs_keys":    mapKeys(outputs),
		"should_continue": shouldContinue,
	}, stepID, &stepNumber)

	r.publish(ctx, events.StepFinished{
		BaseEvent:  events.NewBaseEvent(events.StepFinishedEvent, r.agent.ID, executionID),
		StepName:   step.Step,
		StepNumber: stepNumber,
		StepKind:   string(step.Type),
		Outputs:    map[string]any{"keys": mapKeys(outputs)},
	})

	return outputs, shouldContinue, nil
}

// executeToolStep calls the named tool directly through the gateway, with no
// model in the loop: arguments come from context variables, and the result
// lands back in context per the output mapping.
func (r *Runner) executeToolStep(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, error) {
	stepID := stepNodeID(stepIndex, step)
	outputs := make(map[string]any)

	resolvedArgs := make(map[string]any)
	contextVars := r.wctx.All()

	inputMapping, _ := cfg["input_mapping"].(map[string]any)
	for argName, rawPath := range inputMapping {
		contextVarPath, ok := rawPath.(string)
		if !ok {
			resolvedArgs[argName] = rawPath

			continue
		}

		value, found := contextVars[contextVarPath]
		if !found {
			r.logger.Warn("Context variable not found for tool argument",
				"variable", contextVarPath, "argument", argName)

			continue
		}

		resolvedArgs[argName] = value
	}

	toolName, _ := cfg["tool_name"].(string)

	r.logEvent(ctx, executionID, models.LogTypeToolCall, map[string]any{
		"message":   fmt.Sprintf("Attempting to call tool %q", toolName),
		"tool_name": toolName,
		"arguments": resolvedArgs,
	}, stepID, &stepNumber)

	if r.gateway == nil {
		return nil, fmt.Errorf("no tool gateway available for tool %q", toolName)
	}

	result, err := r.gateway.Invoke(ctx, toolName, resolvedArgs)
	if err != nil {
		r.logEvent(ctx, executionID, models.LogTypeError, map[string]any{
			"message":       fmt.Sprintf("Error executing tool %q", toolName),
			"tool_name":     toolName,
			"error_details": err.Error(),
		}, stepID, &stepNumber)

		return nil, fmt.Errorf("executing tool %q: %w", toolName, err)
	}

	if result.IsError {
		return nil, fmt.Errorf("tool %q reported an error: %v", toolName, result.Content)
	}

	r.logEvent(ctx, executionID, models.LogTypeToolResult, map[string]any{
		"message":        fmt.Sprintf("Tool %q executed successfully", toolName),
		"tool_name":      toolName,
		"result_preview": preview(result.Content, 200),
	}, stepID, &stepNumber)

	outputMapping, _ := cfg["output_mapping"].(map[string]any)
	for contextVar, rawPath := range outputMapping {
		sourcePath, _ := rawPath.(string)
		if sourcePath == wholeOutputSentinel {
			outputs[contextVar] = result.Content

			continue
		}

		if asMap, ok := result.Content.(map[string]any); ok {
			if field, present := asMap[sourcePath]; present {
				outputs[contextVar] = field

				continue
			}
		}

		outputs[contextVar] = result.Content

		r.logger.Info("Output mapping key not found in result, using entire result",
			"source_path", sourcePath, "tool_name", toolName)
	}

	return outputs, nil
}

// executeStepWithLLM handles every non-tool kind. Deterministic shortcuts
// run first (input defaults, decision conditions, direct transforms, loop
// iteration); everything else goes to the model session with a kind-specific
// framing.
func (r *Runner) executeStepWithLLM(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, error) {
	switch step.Type {
	case models.StepKindInput:
		outputs, handled := r.inputStep(ctx, step, stepIndex, cfg, executionID, stepNumber)
		if handled {
			return outputs, nil
		}
	case models.StepKindDecision:
		outputs, handled := r.decisionStep(ctx, step, stepIndex, cfg, executionID, stepNumber)
		if handled {
			return outputs, nil
		}
	case models.StepKindTransform:
		outputs, handled := r.transformStep(ctx, step, stepIndex, cfg, executionID, stepNumber)
		if handled {
			return outputs, nil
		}
	case models.StepKindLoop:
		outputs, handled, err := r.loopStep(ctx, step, stepIndex, cfg, executionID, stepNumber)
		if handled {
			return outputs, err
		}
	}

	return r.llmFraming(ctx, step, stepIndex, cfg, executionID, stepNumber, "")
}

// inputStep is idempotent: a variable already bound in context is left
// untouched. An unbound variable takes the configured default when present.
func (r *Runner) inputStep(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, bool) {
	varName, _ := cfg["variable_name"].(string)
	if varName == "" {
		varName = fmt.Sprintf("step_%d_input", stepIndex)
	}

	if r.wctx.Get(varName) != nil {
		return map[string]any{}, true
	}

	defaultValue := cfg["default_value"]
	if defaultValue == nil {
		return nil, false
	}

	r.logger.Info("Using default value for input variable", "variable", varName)
	r.logEvent(ctx, executionID, models.LogTypeInfo, map[string]any{
		"message": fmt.Sprintf("Input step %q used default value for %q", step.Step, varName),
	}, stepNodeID(stepIndex, step), &stepNumber)

	return map[string]any{varName: defaultValue}, true
}

// decisionStep evaluates simple conditions deterministically:
// "not_empty:<var>" and "contains:<var>:<literal>". Unrecognized syntax
// falls back to a model judgment.
func (r *Runner) decisionStep(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, bool) {
	condition, _ := cfg["condition"].(string)
	parts := strings.Split(condition, ":")

	var (
		result    bool
		evaluated bool
		reason    string
	)

	// An unbound variable is not evaluated directly: the step falls through
	// to the model, which may still resolve the condition from context.
	switch {
	case len(parts) == 2 && parts[0] == "not_empty":
		variableValue := r.wctx.Get(parts[1])
		if variableValue == nil {
			break
		}

		result = !isEmptyValue(variableValue)
		evaluated = true

		if result {
			reason = fmt.Sprintf("The condition %q is TRUE because %q is not empty", condition, parts[1])
		} else {
			reason = fmt.Sprintf("The condition %q is FALSE because %q is empty", condition, parts[1])
		}
	case len(parts) == 3 && parts[0] == "contains":
		variableValue := r.wctx.Get(parts[1])
		if variableValue == nil {
			break
		}

		result = strings.Contains(stringify(variableValue), parts[2])
		evaluated = true

		if result {
			reason = fmt.Sprintf("The condition %q is TRUE because %q contains %q", condition, parts[1], parts[2])
		} else {
			reason = fmt.Sprintf("The condition %q is FALSE because %q does not contain %q", condition, parts[1], parts[2])
		}
	}

	if !evaluated {
		return nil, false
	}

	r.logger.Info("Direct evaluation of decision condition", "condition", condition, "result", result)

	outputs := map[string]any{
		fmt.Sprintf("step_%d_condition_result", stepIndex): result,
		fmt.Sprintf("step_%d_explanation", stepIndex):      reason,
	}

	r.logEvent(ctx, executionID, models.LogTypeInfo, map[string]any{
		"message":     fmt.Sprintf("Decision step %q direct evaluation", step.Step),
		"condition":   condition,
		"result":      result,
		"explanation": reason,
	}, stepNodeID(stepIndex, step), &stepNumber)

	return outputs, true
}

// transformStep handles transformations that need no model. Currently that
// is json_stringify of the first input variable.
func (r *Runner) transformStep(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, bool) {
	transformation, _ := cfg["transformation"].(string)
	transformation = strings.ToLower(transformation)

	inputVars := stringSlice(cfg["input_variables"])

	outputVar, _ := cfg["output_variable"].(string)
	if outputVar == "" {
		outputVar = fmt.Sprintf("step_%d_result", stepIndex)
	}

	if transformation != "json_stringify" || len(inputVars) == 0 {
		return nil, false
	}

	encoded, err := json.Marshal(r.wctx.Get(inputVars[0]))
	if err != nil {
		r.logger.Warn("Direct transform failed, falling back to model", "error", err)

		return nil, false
	}

	r.logEvent(ctx, executionID, models.LogTypeInfo, map[string]any{
		"message":         fmt.Sprintf("Transform step %q direct evaluation for %q", step.Step, transformation),
		"output_variable": outputVar,
	}, stepNodeID(stepIndex, step), &stepNumber)

	return map[string]any{outputVar: string(encoded)}, true
}

// loopStep iterates a slice-valued context variable, running the model
// framing once per item with the item bound under the configured name. The
// iteration count is bounded; a missing or non-slice collection falls back
// to the plain framing.
func (r *Runner) loopStep(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int) (map[string]any, bool, error) {
	collectionVar, _ := cfg["collection_variable"].(string)
	itemVar, _ := cfg["item_variable"].(string)

	if itemVar == "" {
		itemVar = "item"
	}

	maxIterations := intValue(cfg["max_iterations"], 10)

	outputVar, _ := cfg["output_variable_name"].(string)
	if outputVar == "" {
		outputVar = fmt.Sprintf("step_%d_result", stepIndex)
	}

	collection := asSlice(r.wctx.Get(collectionVar))
	if collection == nil {
		return nil, false, nil
	}

	// The item binding is loop-scoped: restore whatever held the name
	// before, so later steps cannot see the last iteration's item.
	prior, hadPrior := r.wctx.All()[itemVar]

	defer func() {
		if hadPrior {
			r.wctx.Set(itemVar, prior)
		} else {
			r.wctx.Delete(itemVar)
		}
	}()

	if len(collection) > maxIterations {
		r.logger.Warn("Loop collection larger than iteration bound, truncating",
			"collection", collectionVar, "size", len(collection), "max_iterations", maxIterations)

		collection = collection[:maxIterations]
	}

	results := make([]any, 0, len(collection))

	for i, item := range collection {
		r.wctx.Set(itemVar, item)

		framing := fmt.Sprintf(
			"This step iterates over the collection %q. You are processing item %d of %d, bound to the variable %q.",
			collectionVar, i+1, len(collection), itemVar)

		itemOutputs, err := r.llmFraming(ctx, step, stepIndex, cfg, executionID, stepNumber, framing)
		if err != nil {
			return nil, true, fmt.Errorf("loop iteration %d: %w", i, err)
		}

		if value, ok := itemOutputs[outputVar]; ok {
			results = append(results, value)
		} else {
			results = append(results, itemOutputs)
		}
	}

	return map[string]any{outputVar: results}, true, nil
}

var stepKindDescriptions = map[models.StepKind]string{
	models.StepKindTrigger:   "A trigger step records the event that started the workflow.",
	models.StepKindInput:     "An input step defines or retrieves variables to be used in the workflow.",
	models.StepKindProcess:   "A process step performs custom logic on input data to produce new outputs.",
	models.StepKindOutput:    "An output step collects variables to be returned as the final result.",
	models.StepKindDecision:  "A decision step evaluates a condition to determine if workflow should continue.",
	models.StepKindTransform: "A transform step performs data transformations on input variables.",
	models.StepKindTool:      "A tool step calls external tools or APIs to retrieve data.",
	models.StepKindLoop:      "A loop step processes each item of a collection variable in turn.",
}

// llmFraming delegates the step to the model session with a kind-specific
// natural-language framing and parses output variables from the reply.
func (r *Runner) llmFraming(ctx context.Context, step models.WorkflowStep, stepIndex int, cfg map[string]any, executionID string, stepNumber int, extraFraming string) (map[string]any, error) {
	stepID := stepNodeID(stepIndex, step)

	if r.session == nil {
		return nil, fmt.Errorf("no model session available for step kind %q", step.Type)
	}

	filteredContext := r.filteredContext(step, stepIndex, cfg)

	desc, ok := stepKindDescriptions[step.Type]
	if !ok {
		desc = fmt.Sprintf("A %s step in the workflow.", step.Type)
	}

	configJSON, _ := json.MarshalIndent(cfg, "", "  ")

	persistentVarsInfo := ""
	if all := r.wctx.All(); len(all) > 0 {
		allJSON, _ := json.MarshalIndent(all, "", "  ")
		persistentVarsInfo = fmt.Sprintf(`
PERSISTENT VARIABLES AVAILABLE:
%s

These variables have been created in previous steps and should be reused when appropriate.
For example, if a spreadsheet was created earlier, use its ID/URL instead of creating a new one.
`, allJSON)
	}

	systemPrompt := fmt.Sprintf(`You are processing a workflow step in an agent execution.

STEP TYPE: %s
STEP DESCRIPTION: %s
STEP NAME: %s
STEP DETAILS: %s

STEP CONFIGURATION:
%s
%s
Your task is to execute this step according to its type and configuration.
Based on the step type, perform the appropriate action and determine what output variables to set.
When working with resources like spreadsheets, documents, or files, check if they already exist in the persistent variables before creating new ones.

IMPORTANT: If the configuration specifies an 'output_variable_name', you MUST create that variable with a summary of your results.
This ensures proper data flow between workflow steps.
`, step.Type, desc, step.Step, step.Description, configJSON, persistentVarsInfo)

	if extraFraming != "" {
		systemPrompt += "\n" + extraFraming + "\n"
	}

	outputInstructions := ""

	requiredOutputVar, _ := cfg["output_variable_name"].(string)
	if requiredOutputVar != "" {
		outputInstructions = fmt.Sprintf(`

REQUIRED OUTPUT: You MUST create a variable named '%s' that contains a summary or reference to your main results.
This is critical for workflow continuity - subsequent steps will look for this variable.`, requiredOutputVar)
	}

	contextJSON, _ := json.MarshalIndent(filteredContext, "", "  ")

	userMessage := fmt.Sprintf(`Please execute this %s step using the following context variables:

CONTEXT VARIABLES:
%s
USER'S ID: %s
%s

Determine the appropriate outputs for this step based on its type and configuration.
For each output variable, provide the variable name and its value.
Return your response as a JSON object with these outputs.
`, step.Type, contextJSON, r.agent.UserID, outputInstructions)

	r.logEvent(ctx, executionID, models.LogTypeLLMInput, map[string]any{
		"message":               fmt.Sprintf("Sending request to model for step %q", step.Step),
		"system_prompt_preview": preview(systemPrompt, 200),
		"user_message_preview":  preview(userMessage, 200),
	}, stepID, &stepNumber)

	reply, _, err := r.session.Converse(ctx, systemPrompt, []llm.Message{
		{Role: llm.RoleUser, Content: userMessage},
	})
	if err != nil {
		return nil, fmt.Errorf("model interaction for step execution: %w", err)
	}

	r.logEvent(ctx, executionID, models.LogTypeLLMOutput, map[string]any{
		"message":          fmt.Sprintf("Received model response for step %q", step.Step),
		"response_preview": preview(reply, 200),
	}, stepID, &stepNumber)

	outputs := parseOutputs(reply)
	if outputs == nil {
		fallbackVar := requiredOutputVar
		if fallbackVar == "" {
			fallbackVar = fmt.Sprintf("step_%d_result", stepIndex)
		}

		outputs = map[string]any{fallbackVar: reply}
	}

	if step.Type == models.StepKindDecision {
		resultKey := fmt.Sprintf("step_%d_condition_result", stepIndex)
		if _, present := outputs[resultKey]; !present {
			outputs[resultKey] = parseBoolean(reply)
		}
	}

	r.logger.Info("Processed step with model", "outputs", len(outputs))

	return outputs, nil
}

// filteredContext selects the context subset the model sees, per kind.
func (r *Runner) filteredContext(step models.WorkflowStep, stepIndex int, cfg map[string]any) map[string]any {
	filtered := make(map[string]any)
	contextVars := r.wctx.All()

	inputVariables := stringSlice(cfg["input_variables"])

	switch {
	case len(inputVariables) > 0:
		for _, varName := range inputVariables {
			if value, ok := contextVars[varName]; ok {
				filtered[varName] = serializable(value)
			}
		}
	case step.Type == models.StepKindInput:
		varName, _ := cfg["variable_name"].(string)
		if varName == "" {
			varName = fmt.Sprintf("step_%d_input", stepIndex)
		}

		if value, ok := contextVars[varName]; ok {
			filtered[varName] = serializable(value)
		}
	case step.Type == models.StepKindOutput:
		for _, varName := range stringSlice(cfg["output_variables"]) {
			if value, ok := contextVars[varName]; ok {
				filtered[varName] = serializable(value)
			}
		}
	default:
		// Include small values only, so one large object cannot crowd out
		// the rest of the context.
		for key, value := range contextVars {
			switch value.(type) {
			case string, int, int64, float64, bool:
				filtered[key] = serializable(value)
			case []any, map[string]any:
				if len(stringify(value)) < 1000 {
					filtered[key] = serializable(value)
				}
			}
		}
	}

	filtered["agent_name"] = r.agent.Name
	filtered["agent_id"] = r.agent.ID

	return filtered
}

func stepNodeID(stepIndex int, step models.WorkflowStep) string {
	return fmt.Sprintf("step_%d_%s", stepIndex, strings.ToLower(strings.ReplaceAll(step.Step, " ", "_")))
}

// parseOutputs extracts the JSON object embedded in a model reply, or nil.
func parseOutputs(reply string) map[string]any {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")

	if start < 0 || end <= start {
		return nil
	}

	var outputs map[string]any

	err := json.Unmarshal([]byte(reply[start:end+1]), &outputs)
	if err != nil {
		return nil
	}

	return outputs
}

// parseBoolean extracts a judgment from free text, defaulting to true so an
// unparseable reply does not silently halt the workflow.
func parseBoolean(reply string) bool {
	lowered := strings.ToLower(reply)

	falseIdx := strings.Index(lowered, "false")
	trueIdx := strings.Index(lowered, "true")

	if falseIdx >= 0 && (trueIdx < 0 || falseIdx < trueIdx) {
		return false
	}

	return true
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Slice, reflect.Map, reflect.Array:
			return rv.Len() == 0
		default:
			return false
		}
	}
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	if text, ok := value.(string); ok {
		return text
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(encoded)
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		items := make([]string, 0, len(v))

		for _, item := range v {
			if text, ok := item.(string); ok {
				items = append(items, text)
			}
		}

		return items
	default:
		return nil
	}
}

func asSlice(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil
		}

		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}

		return items
	}
}

func intValue(value any, fallback int) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func preview(value any, limit int) string {
	text := stringify(value)
	if len(text) <= limit {
		return text
	}

	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}

	return text[:limit]
}
