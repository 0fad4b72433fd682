package registry

import (
	"fmt"
	"regexp"
	"time"
)

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Workflows            []string               `json:"workflows"`
	Tags                 []string               `json:"tags"`
}

var (
	activityIDPattern = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)
	taskTypePattern   = regexp.MustCompile(`^[a-z]+(-[a-z]+)*$`)
	validStatuses     = map[string]bool{"planned": true, "in-progress": true, "completed": true, "verified": true}
)

// Validate checks naming, uniqueness and timeouts across all activities.
func (r *ActivityRegistry) Validate() error {
	ids := make(map[string]bool, len(r.Activities))
	taskTypes := make(map[string]bool, len(r.Activities))

	for _, a := range r.Activities {
		if !activityIDPattern.MatchString(a.ID) {
			return fmt.Errorf("activity %q: id must follow domain.subdomain.action", a.ID)
		}
		if ids[a.ID] {
			return fmt.Errorf("activity %q: duplicate id", a.ID)
		}
		ids[a.ID] = true

		if !taskTypePattern.MatchString(a.TaskType) {
			return fmt.Errorf("activity %q: invalid task type %q", a.ID, a.TaskType)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("activity %q: task type %q registered twice", a.ID, a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.ImplementationStatus != "" && !validStatuses[a.ImplementationStatus] {
			return fmt.Errorf("activity %q: unknown status %q", a.ID, a.ImplementationStatus)
		}
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %q: invalid timeout %q", a.ID, a.Timeout)
			}
		}
		if a.Retries < 0 {
			return fmt.Errorf("activity %q: retries must not be negative", a.ID)
		}
	}
	return nil
}
