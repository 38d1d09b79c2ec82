package status

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

// Resolve descends into a nested status payload following a dotted key-path.
// It returns the value at the leaf and true, or nil and false if any
// intermediate segment is missing, not a map, or the leaf is absent.
func Resolve(payload map[string]interface{}, keyPath string) (interface{}, bool) {
	segments := strings.Split(keyPath, ".")

	current := payload
	for i, segment := range segments {
		value, ok := current[segment]
		if !ok {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		nested, ok := value.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = nested
	}

	return nil, false
}

// Adapt converts a raw value to the type declared for the key-path within
// the given scope. Both trigger values (raw strings from configuration) and
// resolved status values (whatever JSON decoding produced) go through here so
// that comparisons happen on like types. Unknown key-paths pass the value
// through unchanged.
func Adapt(scope models.Scope, keyPath string, value interface{}) interface{} {
	typ, ok := TypeOf(scope, keyPath)
	if !ok {
		return value
	}

	raw := stringify(value)

	switch typ {
	case TypeBoolean:
		switch strings.ToLower(raw) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	case TypeInteger, TypePercentage, TypeDays:
		return int64(parseNumeric(raw))
	case TypeDataSize, TypeDataRate:
		return parseNumeric(raw)
	default:
		return raw
	}
}

// parseNumeric parses the numeric part of a raw value, tolerating a trailing
// unit such as "%". An unparsable value yields 0, matching how hosts report
// a metric they cannot measure.
func parseNumeric(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(trimmed, "%")
	trimmed = strings.TrimSpace(trimmed)

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return value
}

// stringify renders a payload or trigger value as a plain string
func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
