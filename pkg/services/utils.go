package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Helper functions to safely get values from query result maps

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getBool(data map[string]interface{}, key string) bool {
	switch v := data[key].(type) {
	case bool:
		return v
	case uint8:
		return v != 0
	case int8:
		return v != 0
	default:
		return false
	}
}

// getTime extracts a time.Time value from a map using the given key
func getTime(data map[string]interface{}, key string) time.Time {
	if val, ok := data[key]; ok && val != nil {
		if t, err := parseTimeplus(val); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseTimeplus parses a Timeplus datetime value into a time.Time
func parseTimeplus(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		layouts := []string{
			time.RFC3339,
			time.RFC3339Nano,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02T15:04:05.999999999",
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse time string: %s", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported time type: %T", val)
	}
}

// decodeStringList decodes a JSON array column into a string slice. Bad data
// is logged and treated as empty rather than failing the whole read.
func decodeStringList(data map[string]interface{}, key string) []string {
	raw := getString(data, key)
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		logrus.Warnf("Unparsable list in column %s: %v", key, err)
		return nil
	}
	return list
}

// encodeStringList encodes a string slice for storage in a JSON array column
func encodeStringList(list []string) string {
	if list == nil {
		list = []string{}
	}
	encoded, _ := json.Marshal(list)
	return string(encoded)
}
