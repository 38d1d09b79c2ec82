package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

// AlertManager runs evaluation cycles: for every target it loads the recent
// status history, evaluates every policy whose scope matches, and records a
// pending alert per firing unless one is already open for the same
// policy/target pair.
type AlertManager struct {
	fleetService *FleetService
}

// NewAlertManager creates a new alert manager
func NewAlertManager(fleetService *FleetService) *AlertManager {
	return &AlertManager{fleetService: fleetService}
}

// CycleResult summarizes one evaluation cycle
type CycleResult struct {
	TargetsEvaluated int
	PoliciesSkipped  int
	AlertsCreated    int
}

// RunCycle evaluates all policies against all targets. A failure to read the
// catalog or the policy set aborts the cycle; a failure on a single target is
// logged and the cycle moves on.
func (m *AlertManager) RunCycle(ctx context.Context) (*CycleResult, error) {
	targets, err := m.fleetService.GetTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load targets: %w", err)
	}

	policies, err := m.fleetService.GetPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	result := &CycleResult{}

	valid := make([]*models.AlertPolicy, 0, len(policies))
	for _, policy := range policies {
		if err := ValidatePolicy(policy); err != nil {
			logrus.Errorf("Skipping invalid policy: %v", err)
			result.PoliciesSkipped++
			continue
		}
		valid = append(valid, policy)
	}

	for _, target := range targets {
		created, err := m.evaluateTarget(ctx, target, valid)
		if err != nil {
			logrus.Errorf("Failed to evaluate target %s: %v", target.Name, err)
			continue
		}
		result.TargetsEvaluated++
		result.AlertsCreated += created
	}

	logrus.Infof("Evaluation cycle done: %d targets, %d alerts created, %d policies skipped",
		result.TargetsEvaluated, result.AlertsCreated, result.PoliciesSkipped)
	return result, nil
}

func (m *AlertManager) evaluateTarget(ctx context.Context, target *models.Target, policies []*models.AlertPolicy) (int, error) {
	matching := make([]*models.AlertPolicy, 0, len(policies))
	windowSize := 0
	for _, policy := range policies {
		if !policy.Scope.Matches(target.Kind) {
			continue
		}
		matching = append(matching, policy)
		if max := policy.MaxRepetition(); max > windowSize {
			windowSize = max
		}
	}
	if len(matching) == 0 {
		return 0, nil
	}

	history, err := m.fleetService.RecentStatuses(ctx, target.ID, windowSize)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		// never polled yet, nothing to evaluate
		return 0, nil
	}

	created := 0
	for _, policy := range matching {
		if !EvaluatePolicy(policy, history) {
			continue
		}

		exists, err := m.fleetService.PendingAlertExists(ctx, policy.ID, target.ID)
		if err != nil {
			logrus.Errorf("Failed to check pending alerts for policy %s on %s: %v",
				policy.Name, target.Name, err)
			continue
		}
		if exists {
			logrus.Debugf("Policy %s already has a pending alert for %s", policy.Name, target.Name)
			continue
		}

		alert, err := m.fleetService.CreateAlert(ctx, policy.ID, target.ID)
		if err != nil {
			logrus.Errorf("Failed to create alert for policy %s on %s: %v",
				policy.Name, target.Name, err)
			continue
		}
		logrus.Infof("Alert %s created: policy %s fired on %s", alert.ID, policy.Name, target.Name)
		created++
	}

	return created, nil
}
