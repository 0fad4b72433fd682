// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mandate-matching/pkg/registry"
)

const defaultPath = "configs/activity-registry.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	force := fs.Bool("force", false, "Overwrite an existing registry")
	_ = fs.Parse(args)

	if _, err := os.Stat(*path); err == nil && !*force {
		return fmt.Errorf("%s exists, pass -force to overwrite", *path)
	}
	if err := os.MkdirAll(filepath.Dir(*path), 0o755); err != nil {
		return err
	}
	if err := registry.SaveRegistry(registry.Default(), *path); err != nil {
		return err
	}
	fmt.Printf("Wrote built-in registry to %s\n", *path)
	return nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID (e.g., matching.mandate.search)")
	displayName := fs.String("displayName", "", "Display name")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "matching", "Category")
	taskType := fs.String("taskType", "", "Zeebe task type (e.g., search-mandate-matches)")
	version := fs.String("version", "1.0.0", "Version")
	status := fs.String("status", "planned", "Implementation status (planned, in-progress, completed, verified)")
	_ = fs.Parse(args)

	if *id == "" || *displayName == "" || *taskType == "" {
		fs.Usage()
		return fmt.Errorf("id, displayName and taskType are required")
	}

	reg, err := registry.LoadOrDefault(*path)
	if err != nil {
		return err
	}
	if _, exists := reg.Find(*id); exists {
		return fmt.Errorf("activity %s already exists", *id)
	}

	reg.Activities = append(reg.Activities, registry.Activity{
		ID:                   *id,
		DisplayName:          *displayName,
		Description:          *description,
		Category:             *category,
		Version:              *version,
		TaskType:             *taskType,
		ImplementationStatus: *status,
		InputSchema:          map[string]interface{}{"type": "object"},
		OutputSchema:         map[string]interface{}{"type": "object"},
		ErrorCodes:           []string{},
		Timeout:              "10s",
		Workflows:            []string{},
		Tags:                 []string{},
	})
	if err := reg.Validate(); err != nil {
		return err
	}
	if err := registry.SaveRegistry(reg, *path); err != nil {
		return err
	}
	fmt.Printf("Added activity: %s\n", *id)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	id := fs.String("id", "", "Activity ID to update")
	field := fs.String("field", "", "Field to update (status, version, displayName, description, timeout, retries)")
	value := fs.String("value", "", "New value")
	_ = fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("id, field and value are required")
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	a, ok := reg.Find(*id)
	if !ok {
		return fmt.Errorf("activity %s not found", *id)
	}

	switch *field {
	case "status":
		a.ImplementationStatus = *value
	case "version":
		a.Version = *value
	case "displayName":
		a.DisplayName = *value
	case "description":
		a.Description = *value
	case "timeout":
		a.Timeout = *value
	case "retries":
		retries, err := strconv.Atoi(*value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", *field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	if err := registry.SaveRegistry(reg, *path); err != nil {
		return err
	}
	fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", defaultPath, "Path to registry file")
	_ = fs.Parse(args)

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	for _, required := range registry.Default().Activities {
		if _, ok := reg.FindByTaskType(required.TaskType); !ok {
			return fmt.Errorf("task type %s has no activity", required.TaskType)
		}
	}
	fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  init      Write the built-in matching activities to the registry file
  add       Add a new activity to the registry
  update    Update an existing activity's field
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater init -path configs/activity-registry.json
  registry-updater update -id matching.mandate.search -field status -value verified
  registry-updater validate -path configs/activity-registry.json`)
}
