package action

import (
	"fmt"
	"strings"
)

// Stage is one step of the request lifecycle
type Stage int

const (
	RequestInit Stage = iota
	ActionBeanResolution
	HandlerResolution
	BindingAndValidation
	CustomValidation
	EventHandling
	ResolutionExecution
	RequestComplete
)

var stageNames = [...]string{
	"RequestInit",
	"ActionBeanResolution",
	"HandlerResolution",
	"BindingAndValidation",
	"CustomValidation",
	"EventHandling",
	"ResolutionExecution",
	"RequestComplete",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Stages lists every stage in execution order
func Stages() []Stage {
	stages := make([]Stage, len(stageNames))
	for i := range stageNames {
		stages[i] = Stage(i)
	}
	return stages
}

// ParseStage resolves a stage name, case-insensitively
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown lifecycle stage %q", name)
}
