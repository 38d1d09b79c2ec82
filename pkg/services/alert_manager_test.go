package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/timeplus"
)

// catalog rows shared by the cycle tests: one b2 server, one gt-90% ram
// trigger repeated 2 times, one policy wired to it
func setupCycleCatalog(mockClient *MockClient, ramValues ...string) {
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TargetsStream)).
		Return([]map[string]interface{}{targetRow("srv-1", "host-1", "b2")}, nil)

	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.PoliciesStream)).
		Return([]map[string]interface{}{{
			"id":          "pol-1",
			"name":        "High memory usage",
			"scope":       "all",
			"trigger_ids": `["trg-1"]`,
			"user_ids":    `["usr-1"]`,
			"group_ids":   `[]`,
		}}, nil)

	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TriggersStream)).
		Return([]map[string]interface{}{{
			"id":         "trg-1",
			"scope":      "all",
			"key":        "instant.ram_use",
			"operator":   "gt",
			"value":      "90%",
			"repetition": int64(2),
		}}, nil)

	rows := make([]map[string]interface{}, 0, len(ramValues))
	now := time.Now()
	for i, ram := range ramValues {
		rows = append(rows, statusRow("srv-1", `{"instant":{"ram_use":"`+ram+`"}}`,
			now.Add(-time.Duration(i)*time.Minute)))
	}
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.StatusesStream)).
		Return(rows, nil)
}

func TestRunCycleCreatesAlert(t *testing.T) {
	mockClient := new(MockClient)
	setupCycleCatalog(mockClient, "95%", "99%")

	// no pending alert yet
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.AlertsStream)).
		Return([]map[string]interface{}{}, nil)
	mockClient.On("InsertIntoStream", mock.Anything, timeplus.AlertsStream, mock.Anything, mock.Anything).
		Return(nil)

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.TargetsEvaluated)
	assert.Equal(t, 1, result.AlertsCreated)
	mockClient.AssertCalled(t, "InsertIntoStream", mock.Anything, timeplus.AlertsStream, mock.Anything, mock.Anything)
}

func TestRunCycleDedupPendingAlert(t *testing.T) {
	mockClient := new(MockClient)
	setupCycleCatalog(mockClient, "95%", "99%")

	// a pending alert for the pair already exists
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.AlertsStream)).
		Return([]map[string]interface{}{{"id": "al-1"}}, nil)

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.AlertsCreated)
	mockClient.AssertNotCalled(t, "InsertIntoStream", mock.Anything, timeplus.AlertsStream, mock.Anything, mock.Anything)
}

func TestRunCycleBelowThreshold(t *testing.T) {
	mockClient := new(MockClient)
	setupCycleCatalog(mockClient, "40%", "45%")

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.AlertsCreated)
	mockClient.AssertNotCalled(t, "InsertIntoStream", mock.Anything, timeplus.AlertsStream, mock.Anything, mock.Anything)
}

func TestRunCycleRepetitionNotMet(t *testing.T) {
	mockClient := new(MockClient)
	// only one breach recorded, trigger wants two in a row
	setupCycleCatalog(mockClient, "95%")

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, result.AlertsCreated)
}

func TestRunCycleEmptyHistorySkipsTarget(t *testing.T) {
	mockClient := new(MockClient)
	setupCycleCatalog(mockClient)

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.TargetsEvaluated)
	assert.Equal(t, 0, result.AlertsCreated)
}

func TestRunCycleSkipsInvalidPolicy(t *testing.T) {
	mockClient := new(MockClient)

	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TargetsStream)).
		Return([]map[string]interface{}{targetRow("srv-1", "host-1", "b2")}, nil)
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.PoliciesStream)).
		Return([]map[string]interface{}{{
			"id":          "pol-bad",
			"name":        "Broken policy",
			"scope":       "all",
			"trigger_ids": `["trg-bad"]`,
			"user_ids":    `[]`,
			"group_ids":   `[]`,
		}}, nil)
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TriggersStream)).
		Return([]map[string]interface{}{{
			"id":         "trg-bad",
			"scope":      "all",
			"key":        "instant.ram_use",
			"operator":   "between",
			"value":      "90%",
			"repetition": int64(1),
		}}, nil)

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.PoliciesSkipped)
	assert.Equal(t, 0, result.AlertsCreated)
	mockClient.AssertNotCalled(t, "InsertIntoStream", mock.Anything, timeplus.AlertsStream, mock.Anything, mock.Anything)
}

func TestRunCycleScopeFilter(t *testing.T) {
	mockClient := new(MockClient)

	// k2-scoped policy must not be evaluated against a b2 server
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TargetsStream)).
		Return([]map[string]interface{}{targetRow("srv-1", "host-1", "b2")}, nil)
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.PoliciesStream)).
		Return([]map[string]interface{}{{
			"id":          "pol-k2",
			"name":        "Stale backups",
			"scope":       "k2",
			"trigger_ids": `["trg-1"]`,
			"user_ids":    `[]`,
			"group_ids":   `[]`,
		}}, nil)
	mockClient.On("ExecuteQuery", mock.Anything, queryOn(timeplus.TriggersStream)).
		Return([]map[string]interface{}{{
			"id":         "trg-1",
			"scope":      "k2",
			"key":        "instant.backup_age",
			"operator":   "gt",
			"value":      "2",
			"repetition": int64(1),
		}}, nil)

	manager := NewAlertManager(NewFleetService(mockClient))
	result, err := manager.RunCycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1, result.TargetsEvaluated)
	assert.Equal(t, 0, result.AlertsCreated)
	// the status store is never consulted when no policy matches the target
	mockClient.AssertNotCalled(t, "ExecuteQuery", mock.Anything, queryOn(timeplus.StatusesStream))
}
