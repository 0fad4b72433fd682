// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"mandate-matching/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	Dir          string
	Category     string
	TaskType     string
	TimeoutExpr  string
	InputSchema  map[string]interface{}
	OutputSchema map[string]interface{}
}

func newWorkerData(a *registry.Activity) WorkerData {
	category := a.Category
	if category == "" {
		category = "matching"
	}
	return WorkerData{
		Name:         a.DisplayName,
		PackageName:  strings.ReplaceAll(a.TaskType, "-", ""),
		Dir:          a.TaskType,
		Category:     category,
		TaskType:     a.TaskType,
		TimeoutExpr:  timeoutExpr(a.Timeout),
		InputSchema:  a.InputSchema,
		OutputSchema: a.OutputSchema,
	}
}

// timeoutExpr renders a registry timeout as a Go duration expression.
func timeoutExpr(raw string) string {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return "30 * time.Second"
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d * time.Minute", d/time.Minute)
	}
	if d%time.Second == 0 {
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	}
	return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
}

// schemaProperties extracts properties from a JSON schema object
func schemaProperties(schema map[string]interface{}) map[string]interface{} {
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	}
	return "interface{}"
}

// structFields renders Go struct fields for a schema's properties in name
// order.
func structFields(schema map[string]interface{}) string {
	props := schemaProperties(schema)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]string, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		field := fmt.Sprintf("\t%s %s `json:\"%s\"`", upperFirst(name), goTypeFromJSONType(details["type"]), name)
		if desc, ok := details["description"].(string); ok && desc != "" {
			field += " // " + desc
		}
		fields = append(fields, field)
	}
	return strings.Join(fields, "\n")
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// render executes every template for data and gofmts the result.
func render(data WorkerData) (map[string][]byte, error) {
	templates := map[string]string{
		"handler.go":      handlerTemplate,
		"config.go":       configTemplate,
		"models.go":       modelsTemplate,
		"handler_test.go": testTemplate,
	}
	funcs := template.FuncMap{"structFields": structFields}

	files := make(map[string][]byte, len(templates))
	for name, text := range templates {
		tmpl, err := template.New(name).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("execute %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		files[name] = src
	}
	return files, nil
}

// generate writes the scaffold for activityID under outputDir and returns
// the worker directory. Existing files are left alone unless force is set.
func generate(reg *registry.ActivityRegistry, activityID, outputDir string, force bool) (string, error) {
	activity, ok := reg.Find(activityID)
	if !ok {
		return "", fmt.Errorf("activity %q not found in registry", activityID)
	}

	data := newWorkerData(activity)
	files, err := render(data)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(outputDir, data.Category, data.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				return "", fmt.Errorf("%s already exists (use -force to overwrite)", path)
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func main() {
	activity := flag.String("activity", "", "Activity ID from registry (e.g., matching.mandate.search)")
	outputDir := flag.String("output", "internal/workers", "Root directory for generated workers")
	registryPath := flag.String("registry", "configs/activity-registry.json", "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *activity == "" {
		fmt.Println("Usage: worker-generator -activity <id> [-output <dir>] [-registry <path>] [-force]")
		os.Exit(1)
	}

	reg, err := registry.LoadOrDefault(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}

	dir, err := generate(reg, *activity, *outputDir, *force)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Worker scaffold generated at %s\n", dir)
	fmt.Println("Next: implement Execute, then register the handler in cmd/matching-service/main.go")
}
