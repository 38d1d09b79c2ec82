package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

func statusHistory(ramValues ...string) []*models.StatusRecord {
	// newest first, as RecentStatuses returns them
	records := make([]*models.StatusRecord, 0, len(ramValues))
	for _, ram := range ramValues {
		records = append(records, &models.StatusRecord{
			Up: true,
			Payload: map[string]interface{}{
				"state": map[string]interface{}{"up": true},
				"instant": map[string]interface{}{
					"ram_use": ram,
				},
			},
		})
	}
	return records
}

func ramTrigger(operator models.Operator, value string, repetition int) *models.AlertTrigger {
	return &models.AlertTrigger{
		ID:         "trg-ram",
		Scope:      models.ScopeAll,
		Key:        "instant.ram_use",
		Operator:   operator,
		Value:      value,
		Repetition: repetition,
	}
}

func TestEvaluateTriggerSingleSample(t *testing.T) {
	trigger := ramTrigger(models.OperatorGt, "50%", 1)

	assert.True(t, EvaluateTrigger(trigger, statusHistory("75%")))
	assert.False(t, EvaluateTrigger(trigger, statusHistory("40%")))
	assert.False(t, EvaluateTrigger(trigger, statusHistory("50%")))
}

func TestEvaluateTriggerRepetition(t *testing.T) {
	trigger := ramTrigger(models.OperatorGt, "90%", 3)

	// three consecutive breaches fire
	assert.True(t, EvaluateTrigger(trigger, statusHistory("95%", "93%", "99%")))

	// a recovery inside the window resets the streak
	assert.False(t, EvaluateTrigger(trigger, statusHistory("95%", "40%", "99%")))

	// older samples beyond the window are ignored
	assert.True(t, EvaluateTrigger(trigger, statusHistory("95%", "93%", "99%", "10%")))
}

func TestEvaluateTriggerShortHistory(t *testing.T) {
	trigger := ramTrigger(models.OperatorGt, "90%", 3)

	assert.False(t, EvaluateTrigger(trigger, statusHistory("95%", "99%")))
	assert.False(t, EvaluateTrigger(trigger, nil))
}

func TestEvaluateTriggerZeroRepetition(t *testing.T) {
	// repetition below 1 behaves as 1
	trigger := ramTrigger(models.OperatorGt, "50%", 0)
	assert.True(t, EvaluateTrigger(trigger, statusHistory("75%")))
}

func TestEvaluateTriggerMissingKey(t *testing.T) {
	trigger := &models.AlertTrigger{
		Scope:      models.ScopeAll,
		Key:        "instant.not_reported",
		Operator:   models.OperatorGt,
		Value:      "1",
		Repetition: 1,
	}
	assert.False(t, EvaluateTrigger(trigger, statusHistory("75%")))
}

func TestEvaluateTriggerBooleanKey(t *testing.T) {
	trigger := &models.AlertTrigger{
		Scope:      models.ScopeAll,
		Key:        "state.up",
		Operator:   models.OperatorEq,
		Value:      "false",
		Repetition: 1,
	}

	down := []*models.StatusRecord{{
		Up: false,
		Payload: map[string]interface{}{
			"state": map[string]interface{}{"up": false},
		},
	}}
	assert.True(t, EvaluateTrigger(trigger, down))
	assert.False(t, EvaluateTrigger(trigger, statusHistory("40%")))
}

func TestEvaluateTriggerOperators(t *testing.T) {
	history := statusHistory("75%")

	tests := []struct {
		operator models.Operator
		value    string
		want     bool
	}{
		{models.OperatorEq, "75%", true},
		{models.OperatorEq, "74%", false},
		{models.OperatorNe, "74%", true},
		{models.OperatorNe, "75%", false},
		{models.OperatorGt, "74%", true},
		{models.OperatorGte, "75%", true},
		{models.OperatorLt, "76%", true},
		{models.OperatorLt, "75%", false},
		{models.OperatorLte, "75%", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.operator)+" "+tt.value, func(t *testing.T) {
			trigger := ramTrigger(tt.operator, tt.value, 1)
			assert.Equal(t, tt.want, EvaluateTrigger(trigger, history))
		})
	}
}

func TestEvaluateTriggerContains(t *testing.T) {
	history := []*models.StatusRecord{{
		Up: true,
		Payload: map[string]interface{}{
			"services": map[string]interface{}{
				"failed": "nginx,mysql",
			},
		},
	}}

	trigger := &models.AlertTrigger{
		Scope:      models.ScopeAll,
		Key:        "services.failed",
		Operator:   models.OperatorContains,
		Value:      "mysql",
		Repetition: 1,
	}
	assert.True(t, EvaluateTrigger(trigger, history))

	trigger.Operator = models.OperatorDoesNotContain
	assert.False(t, EvaluateTrigger(trigger, history))

	trigger.Value = "postgres"
	assert.True(t, EvaluateTrigger(trigger, history))
}

func TestEvaluatePolicyAllTriggersMustFire(t *testing.T) {
	history := statusHistory("95%")
	ram := ramTrigger(models.OperatorGt, "90%", 1)
	cpu := &models.AlertTrigger{
		Scope:      models.ScopeAll,
		Key:        "instant.cpu_use",
		Operator:   models.OperatorGt,
		Value:      "80%",
		Repetition: 1,
	}

	policy := &models.AlertPolicy{
		Name:     "resources exhausted",
		Scope:    models.ScopeAll,
		Triggers: []*models.AlertTrigger{ram, cpu},
	}

	// cpu_use is absent from the payload so the second trigger cannot fire
	assert.False(t, EvaluatePolicy(policy, history))

	policy.Triggers = []*models.AlertTrigger{ram}
	assert.True(t, EvaluatePolicy(policy, history))
}

func TestEvaluatePolicyNoTriggers(t *testing.T) {
	policy := &models.AlertPolicy{Name: "empty"}
	assert.False(t, EvaluatePolicy(policy, statusHistory("95%")))
}

func TestValidateTrigger(t *testing.T) {
	assert.NoError(t, ValidateTrigger(ramTrigger(models.OperatorGt, "90%", 1)))

	bad := ramTrigger(models.Operator("between"), "90%", 1)
	assert.Error(t, ValidateTrigger(bad))

	empty := ramTrigger(models.OperatorGt, "90%", 1)
	empty.Key = ""
	assert.Error(t, ValidateTrigger(empty))

	// key-paths outside the scope's table are configuration errors
	unknown := ramTrigger(models.OperatorGt, "90%", 1)
	unknown.Key = "instant.not_in_table"
	assert.Error(t, ValidateTrigger(unknown))

	// b2-only key is invalid under scope all but valid under b2
	scoped := ramTrigger(models.OperatorGt, "12%", 1)
	scoped.Key = "instant.mysql_mem"
	assert.Error(t, ValidateTrigger(scoped))
	scoped.Scope = models.Scope(models.KindB2)
	assert.NoError(t, ValidateTrigger(scoped))
}

func TestValidatePolicy(t *testing.T) {
	policy := &models.AlertPolicy{
		Name:     "ram",
		Triggers: []*models.AlertTrigger{ramTrigger(models.OperatorGt, "90%", 1)},
	}
	assert.NoError(t, ValidatePolicy(policy))

	assert.Error(t, ValidatePolicy(&models.AlertPolicy{Name: "empty"}))

	// a kind-specific trigger cannot back a policy of another scope
	mismatched := &models.AlertPolicy{
		Name:  "backups",
		Scope: models.Scope(models.KindB2),
		Triggers: []*models.AlertTrigger{{
			ID:         "trg-age",
			Scope:      models.Scope(models.KindK2),
			Key:        "instant.backup_age",
			Operator:   models.OperatorGt,
			Value:      "2",
			Repetition: 1,
		}},
	}
	assert.Error(t, ValidatePolicy(mismatched))

	policy.Triggers[0].Operator = "between"
	assert.Error(t, ValidatePolicy(policy))
}
