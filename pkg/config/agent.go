package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/graviton-studio/logos/pkg/models"
)

// LoadAgentFile loads and validates an agent definition from a YAML or JSON
// file. YAML documents are round-tripped through JSON so the models' json
// tags apply to both formats.
func LoadAgentFile(path string) (*models.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent file %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML agent file %s: %w", path, err)
		}

		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert agent file %s: %w", path, err)
		}
	}

	var agent models.Agent
	if err := json.Unmarshal(data, &agent); err != nil {
		return nil, fmt.Errorf("failed to parse agent file %s: %w", path, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&agent); err != nil {
		return nil, fmt.Errorf("invalid agent definition in %s: %w", path, err)
	}

	if !agent.HasWorkflow() {
		return nil, fmt.Errorf("agent %s has no workflow steps defined", agent.Name)
	}

	return &agent, nil
}
