// Package registry reads and writes the activity registry, the catalogue of
// job types this service implements and the input schema each one accepts.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault falls back to the built-in registry when path is empty or
// missing.
func LoadOrDefault(path string) (*ActivityRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	reg, err := LoadRegistry(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return reg, err
}

func SaveRegistry(reg *ActivityRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (r *ActivityRegistry) Find(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// InputSchema returns the schema registered for taskType, or the built-in
// one when the registry does not carry it.
func (r *ActivityRegistry) InputSchema(taskType string) map[string]interface{} {
	if r != nil {
		if a, ok := r.FindByTaskType(taskType); ok && len(a.InputSchema) > 0 {
			return a.InputSchema
		}
	}
	if a, ok := Default().FindByTaskType(taskType); ok {
		return a.InputSchema
	}
	return nil
}
