package models

import (
	"time"
)

// AlertStatus tracks an alert through its lifecycle
type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusSent    AlertStatus = "sent"
)

// Alert is a concrete firing of a policy against a target. It is created in
// pending state by the alert manager and transitions to sent only after the
// dispatcher has delivered the notification.
type Alert struct {
	ID        string      `json:"id"`
	PolicyID  string      `json:"policyId"`
	TargetID  string      `json:"targetId"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`

	// Denormalized for display, filled in by catalog reads
	PolicyName string `json:"policyName,omitempty"`
	TargetName string `json:"targetName,omitempty"`
}
