package runner

import (
	"strconv"
	"strings"

	"github.com/graviton-studio/logos/pkg/models"
)

// stepDefaults is the per-kind configuration template. The {index} and
// {prev_index} placeholders are substituted with the step's own ordinal and
// the previous step's ordinal before the step's declared config is merged
// on top.
var stepDefaults = map[models.StepKind]map[string]any{
	models.StepKindInput: {
		"variable_name":        "step_{index}_input",
		"default_value":        nil,
		"output_variable_name": "step_{index}_result",
	},
	models.StepKindTrigger: {
		"output_variable_name": "step_{index}_result",
	},
	models.StepKindOutput: {
		"output_variables": []any{"step_{index}_result"},
		"format":           nil,
	},
	models.StepKindProcess: {
		"input_variables":      []any{"step_{prev_index}_result"},
		"output_variable_name": "step_{index}_result",
	},
	models.StepKindTool: {
		"tool_name":      "exa_search",
		"input_mapping":  map[string]any{"query": "step_{prev_index}_result"},
		"output_mapping": map[string]any{"search_results": "$output"},
	},
	models.StepKindDecision: {
		"condition":       "not_empty:step_result",
		"input_variables": []any{"step_{prev_index}_result"},
	},
	models.StepKindTransform: {
		"transformation":  "json_stringify",
		"input_variables": []any{"step_{prev_index}_result"},
		"output_variable": "step_{index}_result",
	},
	models.StepKindLoop: {
		"collection_variable":  "step_{prev_index}_result",
		"item_variable":        "item",
		"max_iterations":       10,
		"output_variable_name": "step_{index}_result",
	},
}

// stepConfig builds the effective configuration for one step: kind defaults
// with placeholders substituted, then the step's declared config on top.
// A {prev_index} entry at ordinal 0 is dropped, not substituted, since there
// is no previous step.
func stepConfig(step models.WorkflowStep, stepIndex int) map[string]any {
	config := map[string]any{
		"step":        step.Step,
		"description": step.Description,
		"type":        string(step.Type),
	}

	for key, value := range stepDefaults[step.Type] {
		substituted, keep := substitutePlaceholders(value, stepIndex)
		if !keep {
			continue
		}

		config[key] = substituted
	}

	for key, value := range step.Config {
		config[key] = value
	}

	return config
}

func substitutePlaceholders(value any, stepIndex int) (any, bool) {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, "{prev_index}") && stepIndex == 0 {
			return nil, false
		}

		return substituteString(v, stepIndex), true
	case []any:
		items := make([]any, 0, len(v))

		for _, item := range v {
			text, ok := item.(string)
			if !ok {
				items = append(items, item)

				continue
			}

			if strings.Contains(text, "{prev_index}") && stepIndex == 0 {
				continue
			}

			items = append(items, substituteString(text, stepIndex))
		}

		return items, true
	case map[string]any:
		entries := make(map[string]any, len(v))

		for key, item := range v {
			text, ok := item.(string)
			if !ok {
				entries[key] = item

				continue
			}

			if strings.Contains(text, "{prev_index}") && stepIndex == 0 {
				continue
			}

			entries[key] = substituteString(text, stepIndex)
		}

		return entries, true
	default:
		return value, true
	}
}

func substituteString(text string, stepIndex int) string {
	text = strings.ReplaceAll(text, "{index}", strconv.Itoa(stepIndex))

	return strings.ReplaceAll(text, "{prev_index}", strconv.Itoa(stepIndex-1))
}
