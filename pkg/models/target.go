package models

import (
	"time"
)

// TargetKind identifies the role of a monitored target
type TargetKind string

const (
	KindB2       TargetKind = "b2"    // web hosting node, carries instances
	KindK2       TargetKind = "k2"    // backup server
	KindS2       TargetKind = "s2"    // stats server
	KindAdmin    TargetKind = "admin" // admin server
	KindInstance TargetKind = "b2_instance"
)

// ServerKinds lists the kinds that are polled directly over their management API.
// Instances are reached through their parent b2 server.
var ServerKinds = []TargetKind{KindB2, KindK2, KindS2, KindAdmin}

// Scope is the applicability class of a policy or trigger: a target kind, or
// "all" which matches every kind
type Scope string

const ScopeAll Scope = "all"

// Matches reports whether a target of the given kind falls under the scope
func (s Scope) Matches(kind TargetKind) bool {
	return s == ScopeAll || string(s) == string(kind)
}

// Access describes one configured way to reach a target
type Access struct {
	Type string `json:"type"` // http, https, ssh, ftp, ...
	URL  string `json:"url"`
	Port string `json:"port"`
}

// Target is a monitored server or instance from the fleet inventory.
// The inventory owns creation and editing; the poller only mutates
// Up and LastSynced.
type Target struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       TargetKind `json:"kind"`
	ParentID   string     `json:"parentId,omitempty"` // set for instances only
	Accesses   []Access   `json:"accesses,omitempty"`
	Up         bool       `json:"up"`
	LastSynced *time.Time `json:"lastSynced,omitempty"`
}

// IsServer reports whether the target is polled directly (not an instance)
func (t *Target) IsServer() bool {
	return t.Kind != KindInstance
}

// StatusRecord is one immutable snapshot of a target's health and metrics.
// Records are append-only and are read back newest first.
type StatusRecord struct {
	ID        string                 `json:"id"`
	TargetID  string                 `json:"targetId"`
	Up        bool                   `json:"up"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"createdAt"`
}
