package status

import (
	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

// SemanticType declares how the raw value behind a status key-path is
// interpreted when comparing against trigger values
type SemanticType string

const (
	TypeBoolean    SemanticType = "boolean"
	TypeInteger    SemanticType = "integer"
	TypePercentage SemanticType = "percentage"
	TypeDataSize   SemanticType = "data_size"
	TypeDataRate   SemanticType = "data_rate"
	TypeDays       SemanticType = "days"
)

// commonKeyPaths are available for every scope
var commonKeyPaths = map[string]SemanticType{
	"state.up":           TypeBoolean,
	"instant.total_proc": TypeInteger,
	"instant.ram_use":    TypePercentage,
	"instant.cpu_use":    TypePercentage,
	"instant.dsk_use":    TypePercentage,
	"instant.dsk_free":   TypeDataSize,
	"stats.net.rx":       TypeDataRate,
	"stats.net.tx":       TypeDataRate,
}

// scopeKeyPaths are the scope-specific additions to the common set. The
// tables are versioned with the hosts' status API: a key accepted here must
// be served by every host of that kind.
var scopeKeyPaths = map[models.Scope]map[string]SemanticType{
	models.Scope(models.KindB2): {
		"instant.mysql_mem":   TypePercentage,
		"instant.apache_mem":  TypePercentage,
		"instant.nginx_mem":   TypePercentage,
		"instant.apache_proc": TypeInteger,
		"instant.nginx_proc":  TypeInteger,
		"instant.mysql_proc":  TypeInteger,
	},
	models.Scope(models.KindInstance): {
		"state.maintenance": TypeBoolean,
	},
	models.Scope(models.KindK2): {
		"instant.backup_tokens_qty": TypeInteger,
		"instant.backups_disk":      TypePercentage,
		"instant.backup_age":        TypeDays,
	},
}

// KeyPathsFor returns the set of key-paths allowed for a scope, with their
// semantic types. Scope "all" exposes only the common set.
func KeyPathsFor(scope models.Scope) map[string]SemanticType {
	merged := make(map[string]SemanticType, len(commonKeyPaths))
	for key, typ := range commonKeyPaths {
		merged[key] = typ
	}
	for key, typ := range scopeKeyPaths[scope] {
		merged[key] = typ
	}
	return merged
}

// TypeOf returns the semantic type of a key-path within a scope. The second
// return value is false when the key-path is not allowed for the scope.
func TypeOf(scope models.Scope, keyPath string) (SemanticType, bool) {
	if typ, ok := scopeKeyPaths[scope][keyPath]; ok {
		return typ, true
	}
	typ, ok := commonKeyPaths[keyPath]
	return typ, ok
}
