package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/status"
)

// EvaluateTrigger reports whether a trigger fires against a status history.
// history is ordered newest first; the trigger fires only if its condition
// holds on each of the last Repetition records. A history shorter than the
// repetition count can never fire.
func EvaluateTrigger(trigger *models.AlertTrigger, history []*models.StatusRecord) bool {
	repetition := trigger.Repetition
	if repetition < 1 {
		repetition = 1
	}
	if len(history) < repetition {
		return false
	}

	for i := 0; i < repetition; i++ {
		record := history[i]
		raw, ok := status.Resolve(record.Payload, trigger.Key)
		if !ok {
			return false
		}
		observed := status.Adapt(trigger.Scope, trigger.Key, raw)
		reference := status.Adapt(trigger.Scope, trigger.Key, trigger.Value)
		if !compare(observed, trigger.Operator, reference) {
			return false
		}
	}
	return true
}

// EvaluatePolicy reports whether a policy fires: every one of its triggers
// must fire. A policy with no triggers never fires.
func EvaluatePolicy(policy *models.AlertPolicy, history []*models.StatusRecord) bool {
	if len(policy.Triggers) == 0 {
		return false
	}
	for _, trigger := range policy.Triggers {
		if !EvaluateTrigger(trigger, history) {
			return false
		}
	}
	return true
}

// ValidateTrigger rejects triggers with an unknown operator or a key-path
// outside the scope's key-path table
func ValidateTrigger(trigger *models.AlertTrigger) error {
	if trigger.Key == "" {
		return fmt.Errorf("trigger %s has an empty key", trigger.ID)
	}
	if !trigger.Operator.Known() {
		return fmt.Errorf("trigger %s has unknown operator %q", trigger.ID, trigger.Operator)
	}
	if _, ok := status.TypeOf(trigger.Scope, trigger.Key); !ok {
		return fmt.Errorf("trigger %s key %q is not available for scope %q",
			trigger.ID, trigger.Key, trigger.Scope)
	}
	return nil
}

// ValidatePolicy rejects policies whose trigger set is empty, invalid, or
// scoped to a different target kind than the policy itself
func ValidatePolicy(policy *models.AlertPolicy) error {
	if len(policy.Triggers) == 0 {
		return fmt.Errorf("policy %s has no triggers", policy.Name)
	}
	for _, trigger := range policy.Triggers {
		if err := ValidateTrigger(trigger); err != nil {
			return fmt.Errorf("policy %s: %w", policy.Name, err)
		}
		if trigger.Scope != models.ScopeAll && trigger.Scope != policy.Scope {
			return fmt.Errorf("policy %s (scope %q) uses trigger %s of incompatible scope %q",
				policy.Name, policy.Scope, trigger.ID, trigger.Scope)
		}
	}
	return nil
}

// compare applies an operator to an observed and a reference value, both
// already adapted to the trigger key's semantic type
func compare(observed interface{}, operator models.Operator, reference interface{}) bool {
	switch operator {
	case models.OperatorEq:
		return equalValues(observed, reference)
	case models.OperatorNe:
		return !equalValues(observed, reference)
	case models.OperatorGt, models.OperatorGte, models.OperatorLt, models.OperatorLte:
		left, leftOK := asFloat(observed)
		right, rightOK := asFloat(reference)
		if !leftOK || !rightOK {
			return false
		}
		switch operator {
		case models.OperatorGt:
			return left > right
		case models.OperatorGte:
			return left >= right
		case models.OperatorLt:
			return left < right
		default:
			return left <= right
		}
	case models.OperatorContains:
		return strings.Contains(render(observed), render(reference))
	case models.OperatorDoesNotContain:
		return !strings.Contains(render(observed), render(reference))
	default:
		return false
	}
}

func equalValues(a, b interface{}) bool {
	if a == b {
		return true
	}
	// numeric values of different widths still compare equal
	left, leftOK := asFloat(a)
	right, rightOK := asFloat(b)
	if leftOK && rightOK {
		return left == right
	}
	return render(a) == render(b)
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func render(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
