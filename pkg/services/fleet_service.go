package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/timeplus"
)

// FleetService reads the fleet catalog, the policy/trigger configuration and
// the recipient directory, and owns the persistence of status records and
// alerts. All access goes through the Timeplus client interface.
type FleetService struct {
	tpClient timeplus.TimeplusClient
}

// NewFleetService creates a new fleet service
func NewFleetService(tpClient timeplus.TimeplusClient) *FleetService {
	return &FleetService{tpClient: tpClient}
}

// GetTargets returns every monitored target, servers and instances alike
func (s *FleetService) GetTargets(ctx context.Context) ([]*models.Target, error) {
	query := fmt.Sprintf(`
		SELECT id, name, kind, parent_id, accesses, up, last_synced
		FROM table(%s)
	`, timeplus.TargetsStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}

	targets := make([]*models.Target, 0, len(results))
	for _, result := range results {
		targets = append(targets, mapToTarget(result))
	}
	return targets, nil
}

// GetTarget returns a target by ID
func (s *FleetService) GetTarget(ctx context.Context, id string) (*models.Target, error) {
	query := fmt.Sprintf(`
		SELECT id, name, kind, parent_id, accesses, up, last_synced
		FROM table(%s)
		WHERE id = '%s'
	`, timeplus.TargetsStream, escape(id))

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query target: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("target with ID %s not found", id)
	}
	return mapToTarget(results[0]), nil
}

// GetServers returns the directly polled targets (everything but instances)
func (s *FleetService) GetServers(ctx context.Context) ([]*models.Target, error) {
	targets, err := s.GetTargets(ctx)
	if err != nil {
		return nil, err
	}
	servers := make([]*models.Target, 0, len(targets))
	for _, target := range targets {
		if target.IsServer() {
			servers = append(servers, target)
		}
	}
	return servers, nil
}

// GetInstances returns the instances hosted on the given server
func (s *FleetService) GetInstances(ctx context.Context, serverID string) ([]*models.Target, error) {
	query := fmt.Sprintf(`
		SELECT id, name, kind, parent_id, accesses, up, last_synced
		FROM table(%s)
		WHERE kind = '%s' AND parent_id = '%s'
	`, timeplus.TargetsStream, models.KindInstance, escape(serverID))

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}

	instances := make([]*models.Target, 0, len(results))
	for _, result := range results {
		instances = append(instances, mapToTarget(result))
	}
	return instances, nil
}

// SaveTarget persists a target into the catalog stream
func (s *FleetService) SaveTarget(ctx context.Context, target *models.Target) error {
	return s.persistTarget(ctx, target)
}

// MarkTargetSynced updates a target's up flag and sync timestamp after a poll.
// The write replaces the whole row keyed by id, so the pair is atomic.
func (s *FleetService) MarkTargetSynced(ctx context.Context, target *models.Target, up bool, syncedAt time.Time) error {
	target.Up = up
	target.LastSynced = &syncedAt
	return s.persistTarget(ctx, target)
}

func (s *FleetService) persistTarget(ctx context.Context, target *models.Target) error {
	accesses, err := json.Marshal(target.Accesses)
	if err != nil {
		return fmt.Errorf("failed to encode accesses: %w", err)
	}

	var lastSynced interface{}
	if target.LastSynced != nil {
		lastSynced = *target.LastSynced
	}

	columns := []string{"id", "name", "kind", "parent_id", "accesses", "up", "last_synced"}
	values := []interface{}{
		target.ID,
		target.Name,
		string(target.Kind),
		target.ParentID,
		string(accesses),
		target.Up,
		lastSynced,
	}

	if err := s.tpClient.InsertIntoStream(ctx, timeplus.TargetsStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist target %s: %w", target.ID, err)
	}
	return nil
}

// AppendStatus appends one immutable status record for a target
func (s *FleetService) AppendStatus(ctx context.Context, record *models.StatusRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode status payload: %w", err)
	}

	columns := []string{"id", "target_id", "up", "status_data", "created_at"}
	values := []interface{}{
		record.ID,
		record.TargetID,
		record.Up,
		string(payload),
		record.CreatedAt,
	}

	if err := s.tpClient.InsertIntoStream(ctx, timeplus.StatusesStream, columns, values); err != nil {
		return fmt.Errorf("failed to append status for target %s: %w", record.TargetID, err)
	}
	return nil
}

// RecentStatuses returns up to limit status records for a target, newest first
func (s *FleetService) RecentStatuses(ctx context.Context, targetID string, limit int) ([]*models.StatusRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, target_id, up, status_data, created_at
		FROM table(%s)
		WHERE target_id = '%s'
		ORDER BY created_at DESC
		LIMIT %d
	`, timeplus.StatusesStream, escape(targetID), limit)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}

	records := make([]*models.StatusRecord, 0, len(results))
	for _, result := range results {
		records = append(records, mapToStatusRecord(result))
	}
	return records, nil
}

// GetTriggers returns all configured alert triggers
func (s *FleetService) GetTriggers(ctx context.Context) ([]*models.AlertTrigger, error) {
	query := fmt.Sprintf(`
		SELECT id, scope, key, operator, value, repetition
		FROM table(%s)
	`, timeplus.TriggersStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}

	triggers := make([]*models.AlertTrigger, 0, len(results))
	for _, result := range results {
		triggers = append(triggers, mapToTrigger(result))
	}
	return triggers, nil
}

// GetPolicies returns all alert policies with their triggers resolved
func (s *FleetService) GetPolicies(ctx context.Context) ([]*models.AlertPolicy, error) {
	query := fmt.Sprintf(`
		SELECT id, name, scope, trigger_ids, user_ids, group_ids
		FROM table(%s)
	`, timeplus.PoliciesStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}

	triggers, err := s.GetTriggers(ctx)
	if err != nil {
		return nil, err
	}
	triggersByID := make(map[string]*models.AlertTrigger, len(triggers))
	for _, trigger := range triggers {
		triggersByID[trigger.ID] = trigger
	}

	policies := make([]*models.AlertPolicy, 0, len(results))
	for _, result := range results {
		policy := mapToPolicy(result)
		for _, triggerID := range policy.TriggerIDs {
			trigger, ok := triggersByID[triggerID]
			if !ok {
				logrus.Errorf("Policy %s references unknown trigger %s", policy.Name, triggerID)
				continue
			}
			policy.Triggers = append(policy.Triggers, trigger)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// GetPolicy returns a policy by ID, with triggers resolved
func (s *FleetService) GetPolicy(ctx context.Context, id string) (*models.AlertPolicy, error) {
	policies, err := s.GetPolicies(ctx)
	if err != nil {
		return nil, err
	}
	for _, policy := range policies {
		if policy.ID == id {
			return policy, nil
		}
	}
	return nil, fmt.Errorf("policy with ID %s not found", id)
}

// SaveTrigger persists an alert trigger definition
func (s *FleetService) SaveTrigger(ctx context.Context, trigger *models.AlertTrigger) error {
	columns := []string{"id", "scope", "key", "operator", "value", "repetition"}
	values := []interface{}{
		trigger.ID,
		string(trigger.Scope),
		trigger.Key,
		string(trigger.Operator),
		trigger.Value,
		trigger.Repetition,
	}
	if err := s.tpClient.InsertIntoStream(ctx, timeplus.TriggersStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist trigger %s: %w", trigger.ID, err)
	}
	return nil
}

// SavePolicy persists an alert policy definition
func (s *FleetService) SavePolicy(ctx context.Context, policy *models.AlertPolicy) error {
	columns := []string{"id", "name", "scope", "trigger_ids", "user_ids", "group_ids"}
	values := []interface{}{
		policy.ID,
		policy.Name,
		string(policy.Scope),
		encodeStringList(policy.TriggerIDs),
		encodeStringList(policy.UserIDs),
		encodeStringList(policy.GroupIDs),
	}
	if err := s.tpClient.InsertIntoStream(ctx, timeplus.PoliciesStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist policy %s: %w", policy.ID, err)
	}
	return nil
}

// SaveUser persists a directory user
func (s *FleetService) SaveUser(ctx context.Context, user *models.User) error {
	columns := []string{"id", "login"}
	values := []interface{}{user.ID, user.Login}
	if err := s.tpClient.InsertIntoStream(ctx, timeplus.UsersStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist user %s: %w", user.ID, err)
	}
	return nil
}

// SaveGroup persists a directory group
func (s *FleetService) SaveGroup(ctx context.Context, group *models.Group) error {
	columns := []string{"id", "name", "user_ids"}
	values := []interface{}{group.ID, group.Name, encodeStringList(group.UserIDs)}
	if err := s.tpClient.InsertIntoStream(ctx, timeplus.GroupsStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist group %s: %w", group.ID, err)
	}
	return nil
}

// GetUsers returns the notification user directory
func (s *FleetService) GetUsers(ctx context.Context) ([]*models.User, error) {
	query := fmt.Sprintf("SELECT id, login FROM table(%s)", timeplus.UsersStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	users := make([]*models.User, 0, len(results))
	for _, result := range results {
		users = append(users, &models.User{
			ID:    getString(result, "id"),
			Login: getString(result, "login"),
		})
	}
	return users, nil
}

// GetGroups returns the notification group directory
func (s *FleetService) GetGroups(ctx context.Context) ([]*models.Group, error) {
	query := fmt.Sprintf("SELECT id, name, user_ids FROM table(%s)", timeplus.GroupsStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(results))
	for _, result := range results {
		groups = append(groups, &models.Group{
			ID:      getString(result, "id"),
			Name:    getString(result, "name"),
			UserIDs: decodeStringList(result, "user_ids"),
		})
	}
	return groups, nil
}

// ResolveRecipients computes a policy's effective recipient set: the union of
// its direct users' addresses and all members of its groups, deduplicated,
// first-seen order preserved.
func (s *FleetService) ResolveRecipients(ctx context.Context, policy *models.AlertPolicy) ([]string, error) {
	users, err := s.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := s.GetGroups(ctx)
	if err != nil {
		return nil, err
	}

	usersByID := make(map[string]*models.User, len(users))
	for _, user := range users {
		usersByID[user.ID] = user
	}
	groupsByID := make(map[string]*models.Group, len(groups))
	for _, group := range groups {
		groupsByID[group.ID] = group
	}

	seen := make(map[string]bool)
	addresses := make([]string, 0)
	addUser := func(userID string) {
		user, ok := usersByID[userID]
		if !ok || user.Login == "" {
			return
		}
		if !seen[user.Login] {
			seen[user.Login] = true
			addresses = append(addresses, user.Login)
		}
	}

	for _, userID := range policy.UserIDs {
		addUser(userID)
	}
	for _, groupID := range policy.GroupIDs {
		group, ok := groupsByID[groupID]
		if !ok {
			logrus.Warnf("Policy %s references unknown group %s", policy.Name, groupID)
			continue
		}
		for _, userID := range group.UserIDs {
			addUser(userID)
		}
	}

	return addresses, nil
}

// PendingAlertExists reports whether an undispatched alert already exists for
// the given (policy, target) pair. Used to deduplicate firings within one
// episode and to guard against overlapping cycles.
func (s *FleetService) PendingAlertExists(ctx context.Context, policyID, targetID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT id
		FROM table(%s)
		WHERE policy_id = '%s' AND target_id = '%s' AND status = '%s'
		LIMIT 1
	`, timeplus.AlertsStream, escape(policyID), escape(targetID), models.AlertStatusPending)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to query pending alerts: %w", err)
	}
	return len(results) > 0, nil
}

// CreateAlert records a new pending alert for a policy/target firing
func (s *FleetService) CreateAlert(ctx context.Context, policyID, targetID string) (*models.Alert, error) {
	now := time.Now()
	alert := &models.Alert{
		ID:        uuid.New().String(),
		PolicyID:  policyID,
		TargetID:  targetID,
		Status:    models.AlertStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persistAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// MarkAlertSent transitions an alert to sent after successful dispatch
func (s *FleetService) MarkAlertSent(ctx context.Context, alert *models.Alert) error {
	alert.Status = models.AlertStatusSent
	alert.UpdatedAt = time.Now()
	return s.persistAlert(ctx, alert)
}

func (s *FleetService) persistAlert(ctx context.Context, alert *models.Alert) error {
	columns := []string{"id", "policy_id", "target_id", "status", "created_at", "updated_at"}
	values := []interface{}{
		alert.ID,
		alert.PolicyID,
		alert.TargetID,
		string(alert.Status),
		alert.CreatedAt,
		alert.UpdatedAt,
	}

	if err := s.tpClient.InsertIntoStream(ctx, timeplus.AlertsStream, columns, values); err != nil {
		return fmt.Errorf("failed to persist alert %s: %w", alert.ID, err)
	}
	return nil
}

// PendingAlerts returns all alerts awaiting dispatch, oldest first
func (s *FleetService) PendingAlerts(ctx context.Context) ([]*models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT id, policy_id, target_id, status, created_at, updated_at
		FROM table(%s)
		WHERE status = '%s'
		ORDER BY created_at ASC
	`, timeplus.AlertsStream, models.AlertStatusPending)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alerts: %w", err)
	}

	alerts := make([]*models.Alert, 0, len(results))
	for _, result := range results {
		alerts = append(alerts, mapToAlert(result))
	}
	return alerts, nil
}

// GetAlerts returns recent alerts, newest first
func (s *FleetService) GetAlerts(ctx context.Context) ([]*models.Alert, error) {
	query := fmt.Sprintf(`
		SELECT id, policy_id, target_id, status, created_at, updated_at
		FROM table(%s)
		ORDER BY created_at DESC
		LIMIT 1000
	`, timeplus.AlertsStream)

	results, err := s.tpClient.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	alerts := make([]*models.Alert, 0, len(results))
	for _, result := range results {
		alerts = append(alerts, mapToAlert(result))
	}
	return alerts, nil
}

// Mapping helpers from query result maps to models

func mapToTarget(data map[string]interface{}) *models.Target {
	target := &models.Target{
		ID:       getString(data, "id"),
		Name:     getString(data, "name"),
		Kind:     models.TargetKind(getString(data, "kind")),
		ParentID: getString(data, "parent_id"),
		Up:       getBool(data, "up"),
	}

	if raw := getString(data, "accesses"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &target.Accesses); err != nil {
			logrus.Warnf("Unparsable accesses for target %s: %v", target.ID, err)
		}
	}

	if synced := getTime(data, "last_synced"); !synced.IsZero() {
		target.LastSynced = &synced
	}

	return target
}

func mapToStatusRecord(data map[string]interface{}) *models.StatusRecord {
	record := &models.StatusRecord{
		ID:        getString(data, "id"),
		TargetID:  getString(data, "target_id"),
		Up:        getBool(data, "up"),
		Payload:   map[string]interface{}{},
		CreatedAt: getTime(data, "created_at"),
	}

	if raw := getString(data, "status_data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &record.Payload); err != nil {
			logrus.Warnf("Unparsable status payload for record %s: %v", record.ID, err)
			record.Payload = map[string]interface{}{}
		}
	}

	return record
}

func mapToTrigger(data map[string]interface{}) *models.AlertTrigger {
	return &models.AlertTrigger{
		ID:         getString(data, "id"),
		Scope:      models.Scope(getString(data, "scope")),
		Key:        getString(data, "key"),
		Operator:   models.Operator(getString(data, "operator")),
		Value:      getString(data, "value"),
		Repetition: getInt(data, "repetition"),
	}
}

func mapToPolicy(data map[string]interface{}) *models.AlertPolicy {
	return &models.AlertPolicy{
		ID:         getString(data, "id"),
		Name:       getString(data, "name"),
		Scope:      models.Scope(getString(data, "scope")),
		TriggerIDs: decodeStringList(data, "trigger_ids"),
		UserIDs:    decodeStringList(data, "user_ids"),
		GroupIDs:   decodeStringList(data, "group_ids"),
	}
}

func mapToAlert(data map[string]interface{}) *models.Alert {
	return &models.Alert{
		ID:        getString(data, "id"),
		PolicyID:  getString(data, "policy_id"),
		TargetID:  getString(data, "target_id"),
		Status:    models.AlertStatus(getString(data, "status")),
		CreatedAt: getTime(data, "created_at"),
		UpdatedAt: getTime(data, "updated_at"),
	}
}

// escape escapes single quotes for interpolation into query literals
func escape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
