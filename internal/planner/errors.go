package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Nomadcxx/jellyrename/internal/naming"
)

var (
	ErrDuplicateTarget = errors.New("duplicate target")
	ErrDuplicateSource = errors.New("duplicate source")
	ErrSerialOverflow  = errors.New("serial index overflows width")
	// ErrTemplate is naming.ErrTemplate so callers need one import.
	ErrTemplate = naming.ErrTemplate
)

// PlanningError means no collision-free plan exists. Nothing is executed.
type PlanningError struct {
	Err     error
	Path    string
	Entries []int
	Detail  string
}

func (e *PlanningError) Error() string {
	var sb strings.Builder
	sb.WriteString("planning failed: ")
	sb.WriteString(e.Err.Error())
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
	}
	if len(e.Entries) > 0 {
		ids := make([]string, len(e.Entries))
		for i, id := range e.Entries {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&sb, " (entries %s)", strings.Join(ids, ", "))
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *PlanningError) Unwrap() error {
	return e.Err
}
