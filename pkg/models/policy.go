package models

import (
	"fmt"
)

// Operator is a comparison operator used by alert triggers
type Operator string

const (
	OperatorEq             Operator = "eq"
	OperatorNe             Operator = "ne"
	OperatorGt             Operator = "gt"
	OperatorGte            Operator = "gte"
	OperatorLt             Operator = "lt"
	OperatorLte            Operator = "lte"
	OperatorContains       Operator = "contains"
	OperatorDoesNotContain Operator = "does_not_contain"
)

// Operators is the closed set of supported comparison operators
var Operators = []Operator{
	OperatorEq, OperatorNe,
	OperatorGt, OperatorGte, OperatorLt, OperatorLte,
	OperatorContains, OperatorDoesNotContain,
}

// Known reports whether the operator belongs to the supported set
func (o Operator) Known() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// AlertTrigger is a single threshold condition over one status key-path.
// The condition fires only when the Repetition most recent status records
// all match.
type AlertTrigger struct {
	ID         string   `json:"id"`
	Scope      Scope    `json:"scope"`
	Key        string   `json:"key"`      // dotted key-path, e.g. "instant.cpu_use"
	Operator   Operator `json:"operator"`
	Value      string   `json:"value"`    // raw value, typed by the key-path's semantic type
	Repetition int      `json:"repetition"`
}

// Name returns the display name of the trigger, used in notifications and logs
func (t *AlertTrigger) Name() string {
	name := fmt.Sprintf("%s %s %s", t.Key, t.Operator, t.Value)
	if t.Repetition > 1 {
		name += fmt.Sprintf(" (%d times)", t.Repetition)
	}
	return name
}

// AlertPolicy is a named group of triggers plus a recipient list. All of the
// policy's triggers must match (AND) for the policy to fire; a policy with no
// triggers never fires.
type AlertPolicy struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Scope      Scope    `json:"scope"`
	TriggerIDs []string `json:"triggerIds"`
	UserIDs    []string `json:"userIds"`
	GroupIDs   []string `json:"groupIds"`

	// Triggers resolved from TriggerIDs by the catalog read
	Triggers []*AlertTrigger `json:"triggers,omitempty"`
}

// MaxRepetition returns the largest repetition among the policy's triggers,
// never less than 1
func (p *AlertPolicy) MaxRepetition() int {
	max := 1
	for _, trigger := range p.Triggers {
		if trigger.Repetition > max {
			max = trigger.Repetition
		}
	}
	return max
}
