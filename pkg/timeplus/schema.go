package timeplus

// Stream names for the fleet monitoring storage
const (
	// TargetsStream is the mutable stream holding the fleet catalog
	TargetsStream = "fleet_targets"

	// StatusesStream is the append-only stream of status snapshots
	StatusesStream = "fleet_statuses"

	// PoliciesStream is the mutable stream of alert policies
	PoliciesStream = "fleet_alert_policies"

	// TriggersStream is the mutable stream of alert triggers
	TriggersStream = "fleet_alert_triggers"

	// AlertsStream is the mutable stream of alert firings
	AlertsStream = "fleet_alerts"

	// UsersStream is the mutable stream of notification users
	UsersStream = "fleet_users"

	// GroupsStream is the mutable stream of notification groups
	GroupsStream = "fleet_groups"
)

// GetTargetsSchema returns the schema for the targets stream
func GetTargetsSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "name", Type: "string"},
		{Name: "kind", Type: "string"},
		{Name: "parent_id", Type: "string", Nullable: true},
		{Name: "accesses", Type: "string"}, // JSON array of {type, url, port}
		{Name: "up", Type: "bool"},
		{Name: "last_synced", Type: "datetime64", Nullable: true},
	}
}

// GetStatusesSchema returns the schema for the append-only status stream
func GetStatusesSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "target_id", Type: "string"},
		{Name: "up", Type: "bool"},
		{Name: "status_data", Type: "string"}, // JSON string of the status payload
		{Name: "created_at", Type: "datetime64"},
	}
}

// GetPoliciesSchema returns the schema for the alert policies stream
func GetPoliciesSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "name", Type: "string"},
		{Name: "scope", Type: "string"},
		{Name: "trigger_ids", Type: "string"}, // JSON array of trigger ids
		{Name: "user_ids", Type: "string"},    // JSON array of user ids
		{Name: "group_ids", Type: "string"},   // JSON array of group ids
	}
}

// GetTriggersSchema returns the schema for the alert triggers stream
func GetTriggersSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "scope", Type: "string"},
		{Name: "key", Type: "string"},
		{Name: "operator", Type: "string"},
		{Name: "value", Type: "string"},
		{Name: "repetition", Type: "int32"},
	}
}

// GetAlertsSchema returns the schema for the alerts stream
func GetAlertsSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "policy_id", Type: "string"},
		{Name: "target_id", Type: "string"},
		{Name: "status", Type: "string"},
		{Name: "created_at", Type: "datetime64"},
		{Name: "updated_at", Type: "datetime64"},
	}
}

// GetUsersSchema returns the schema for the users stream
func GetUsersSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "login", Type: "string"},
	}
}

// GetGroupsSchema returns the schema for the groups stream
func GetGroupsSchema() []Column {
	return []Column{
		{Name: "id", Type: "string"},
		{Name: "name", Type: "string"},
		{Name: "user_ids", Type: "string"}, // JSON array of user ids
	}
}
