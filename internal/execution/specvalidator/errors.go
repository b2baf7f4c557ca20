package specvalidator

import (
	"fmt"
	"strings"
)

// ValidationError aggregates declaration issues so a single run reports all of them.
type ValidationError struct {
	Workflow string
	Issues   []string
}

func (e *ValidationError) Error() string {
	prefix := "workflow validation failed"
	if strings.TrimSpace(e.Workflow) != "" {
		prefix = fmt.Sprintf("workflow %q validation failed", e.Workflow)
	}
	if len(e.Issues) == 0 {
		return prefix
	}
	return prefix + ": " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	if strings.TrimSpace(issue) == "" {
		return
	}
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, args ...any) {
	e.Add(fmt.Sprintf(format, args...))
}

func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
