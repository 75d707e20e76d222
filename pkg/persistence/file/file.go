// Package file provides file-based persistence for agents and execution
// records, suitable for local development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/graviton-studio/logos/pkg/models"
	"github.com/graviton-studio/logos/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system. Agents, executions, and logs live in sibling directories under
// the configured root.
type Persistence struct {
	root string
}

func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// InsertExecution writes a new execution record and returns its ID, minting
// one when the caller did not.
func (fp *Persistence) InsertExecution(_ context.Context, record *models.ExecutionRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	err := fp.writeJSON("executions", record.ID, record)
	if err != nil {
		return "", persistence.NewExecutionError("Insert", record.ID, err)
	}

	return record.ID, nil
}

func (fp *Persistence) UpdateExecution(_ context.Context, record *models.ExecutionRecord) error {
	filePath := filepath.Clean(path.Join(fp.root, "executions", record.ID+".json"))
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return persistence.NewExecutionError("Update", record.ID, persistence.ErrExecutionNotFound)
	}

	record.UpdatedAt = time.Now().UTC()

	err := fp.writeJSON("executions", record.ID, record)
	if err != nil {
		return persistence.NewExecutionError("Update", record.ID, err)
	}

	return nil
}

func (fp *Persistence) ExecutionByID(_ context.Context, executionID string) (*models.ExecutionRecord, error) {
	var record models.ExecutionRecord

	found, err := fp.readJSON("executions", executionID, &record)
	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	if !found {
		return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
	}

	return &record, nil
}

// WriteLog appends one log entry as its own file under the execution's log
// directory, named so lexical order matches write order.
func (fp *Persistence) WriteLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	dir := path.Join(fp.root, "logs", entry.ExecutionID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal log entry %s: %w", entry.ID, err)
	}

	name := fmt.Sprintf("%s_%s.json", entry.Timestamp.UTC().Format("20060102T150405.000000000"), entry.ID)

	return os.WriteFile(path.Join(dir, name), data, 0600)
}

// LogsByExecution returns an execution's log entries in write order.
func (fp *Persistence) LogsByExecution(_ context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	dir := os.DirFS(path.Join(fp.root, "logs", executionID))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}

	sort.Strings(jsonFiles)

	entries := make([]*models.ExecutionLogEntry, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		body, err := fs.ReadFile(dir, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read log file %s: %w", file, err)
		}

		var entry models.ExecutionLogEntry

		err = json.Unmarshal(body, &entry)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log file %s: %w", file, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

func (fp *Persistence) AgentByID(_ context.Context, agentID string) (*models.Agent, error) {
	var agent models.Agent

	found, err := fp.readJSON("agents", agentID, &agent)
	if err != nil {
		return nil, &persistence.AgentError{Op: "GetByID", AgentID: agentID, Err: err}
	}

	if !found {
		return nil, &persistence.AgentError{Op: "GetByID", AgentID: agentID, Err: persistence.ErrAgentNotFound}
	}

	return &agent, nil
}

func (fp *Persistence) SaveAgent(_ context.Context, agent *models.Agent) error {
	if agent.ID == "" {
		agent.ID = uuid.New().String()
	}

	err := fp.writeJSON("agents", agent.ID, agent)
	if err != nil {
		return &persistence.AgentError{Op: "Save", AgentID: agent.ID, Err: err}
	}

	return nil
}

func (fp *Persistence) Agents(ctx context.Context) ([]*models.Agent, error) {
	dir := os.DirFS(path.Join(fp.root, "agents"))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list agent files: %w", err)
	}

	agents := make([]*models.Agent, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		agentID := file[:len(file)-5]

		agent, err := fp.AgentByID(ctx, agentID)
		if err != nil {
			return nil, err
		}

		agents = append(agents, agent)
	}

	return agents, nil
}

func (fp *Persistence) writeJSON(kind, id string, v any) error {
	dir := path.Join(fp.root, kind)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	return os.WriteFile(path.Join(dir, id+".json"), data, 0600)
}

func (fp *Persistence) readJSON(kind, id string, v any) (bool, error) {
	filePath := filepath.Clean(path.Join(fp.root, kind, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return true, nil
}
